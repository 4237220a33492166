package decryptfs

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request ID in requests and responses
const RequestIDHeader = "X-Request-Id"

// maxRequestIDLength bounds an inbound request ID echoed into logs
const maxRequestIDLength = 128

// Handler serves GET /<name> as the decrypted content of container <name>,
// using the Basic credential of the request as the password.
type Handler struct {
	fs             *DecryptFS
	log            logrus.FieldLogger
	metrics        *Metrics
	maxPasswordLen int
}

// NewHandler creates an HTTP handler for fs. log and metrics may be nil.
func NewHandler(fs *DecryptFS, log logrus.FieldLogger, metrics *Metrics) *Handler {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	maxLen := DefaultMaxPasswordLength
	if fs.config.MaxPasswordLength > 0 {
		maxLen = fs.config.MaxPasswordLength
	}
	return &Handler{
		fs:             fs,
		log:            log,
		metrics:        metrics,
		maxPasswordLen: maxLen,
	}
}

// statusRecorder remembers the status and body size written through it
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := r.Header.Get(RequestIDHeader)
	if !validRequestID(requestID) {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	rec := &statusRecorder{ResponseWriter: w}
	log := h.log.WithFields(logrus.Fields{
		"request_id": requestID,
		"method":     r.Method,
		"path":       r.URL.Path,
	})

	h.metrics.InFlight(1)
	defer func() {
		h.metrics.InFlight(-1)
		status := rec.status
		if status == 0 {
			// Client went away before anything was written
			status = 499
		}
		h.metrics.RecordRequest(r.Method, status, time.Since(start))
		log.WithFields(logrus.Fields{
			"status":   status,
			"bytes":    rec.bytes,
			"duration": time.Since(start).String(),
		}).Info("request served")
	}()

	h.serve(rec, r, log)
}

func (h *Handler) serve(w *statusRecorder, r *http.Request, log logrus.FieldLogger) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeStatus(w, http.StatusMethodNotAllowed)
		return
	}

	name, err := CleanRequestPath(r.URL.Path)
	if err != nil {
		writeStatus(w, http.StatusNotFound)
		return
	}

	password, err := requestCredential(r, h.maxPasswordLen)
	if err != nil {
		if errors.Is(err, ErrMissingCredential) {
			w.Header().Set("WWW-Authenticate", "Basic")
			writeStatus(w, http.StatusUnauthorized)
			return
		}
		writeStatus(w, http.StatusBadRequest)
		return
	}
	defer zeroize(password)

	openStart := time.Now()
	file, err := h.fs.Open(r.Context(), name, password)
	if err != nil {
		status := statusFor(err)
		if status == 0 {
			log.WithError(err).Debug("client went away during key derivation")
			return
		}
		if status == http.StatusInternalServerError {
			log.WithError(err).Error("failed to open container")
		} else {
			log.WithError(err).Debug("container unavailable")
		}
		writeStatus(w, status)
		return
	}
	defer file.Close()
	log.WithField("open_duration", time.Since(openStart).String()).Debug("container opened")

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	rc := http.NewResponseController(w)
	for chunk, err := range file.Chunks() {
		if err != nil {
			h.metrics.StreamError()
			log.WithError(err).WithField("offset", file.Offset()).Warn("aborting response mid-stream")
			panic(http.ErrAbortHandler)
		}
		if _, err := w.Write(chunk); err != nil {
			log.WithError(err).Debug("client stopped reading")
			return
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			log.WithError(err).Debug("flush failed")
			return
		}
	}
}

// validRequestID accepts up to maxRequestIDLength printable ASCII bytes
// without spaces
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// requestCredential distinguishes an absent Authorization header from an
// empty one
func requestCredential(r *http.Request, maxLen int) ([]byte, error) {
	values, ok := r.Header["Authorization"]
	if !ok || len(values) == 0 {
		return nil, ErrMissingCredential
	}
	if values[0] == "" {
		return nil, ErrInvalidCredential
	}
	return BasicCredential(values[0], maxLen)
}

// statusFor maps an Open failure to a response status. It returns 0 when
// the request was cancelled and nothing should be written.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 0
	case errors.Is(err, fs.ErrNotExist), IsUnavailable(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeStatus(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}
