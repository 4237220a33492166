// Command decryptfs-server serves the containers below a directory over a
// Unix socket, decrypting each response with the request's Basic credential.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/absfs/decryptfs"
)

func main() {
	configPath := flag.String("config", os.Getenv("DECRYPTFS_CONFIG"), "Path to a YAML config file")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stderr)

	cfg, err := decryptfs.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}
	log.SetLevel(level)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *decryptfs.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metrics *decryptfs.Metrics
	if cfg.MetricsAddr != "" {
		metrics = decryptfs.NewMetrics()
	}

	fs, err := decryptfs.New(decryptfs.DirFS(cfg.Root), cfg, metrics)
	if err != nil {
		return err
	}
	defer fs.Close()

	handler := decryptfs.NewHandler(fs, log, metrics)
	srv := decryptfs.NewServer(cfg.ListenOn, handler, cfg.ShutdownTimeout, log)

	log.WithFields(logrus.Fields{
		"root":        cfg.Root,
		"kdf_workers": cfg.KDF.MaxWorkers,
		"chunk_size":  cfg.ChunkSize,
	}).Info("starting decryptfs")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	if metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		ms := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			log.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
			if err := ms.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ms.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
