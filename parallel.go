package decryptfs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// deriveJob represents one password derivation request
type deriveJob struct {
	password []byte
	salt     [SaltSize]byte
	result   chan deriveResult // buffered, so an abandoned job never blocks a worker
}

type deriveResult struct {
	material KeyMaterial
	err      error
}

// Deriver runs key derivations on a fixed pool of worker goroutines so that
// the CPU-bound KDF cannot occupy more than MaxWorkers CPUs, however many
// requests arrive at once.
type Deriver struct {
	jobs    chan deriveJob
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	metrics *Metrics

	// derive is swapped out in tests
	derive func(password []byte, salt [SaltSize]byte) KeyMaterial
}

// NewDeriver starts a pool of derivation workers
func NewDeriver(config ParallelConfig, metrics *Metrics) *Deriver {
	d := &Deriver{
		jobs:    make(chan deriveJob, config.queueSize()),
		done:    make(chan struct{}),
		metrics: metrics,
		derive:  DeriveKeyMaterial,
	}

	numWorkers := config.workers()
	for w := 0; w < numWorkers; w++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Deriver) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.done:
			return
		case job := <-d.jobs:
			job.result <- d.run(job)
		}
	}
}

// run derives one job, converting a panic into an error
func (d *Deriver) run(job deriveJob) (res deriveResult) {
	defer zeroize(job.password)
	defer func() {
		if r := recover(); r != nil {
			res = deriveResult{err: fmt.Errorf("panic in key derivation worker: %v", r)}
		}
	}()

	start := time.Now()
	material := d.derive(job.password, job.salt)
	d.metrics.ObserveKDF(time.Since(start))

	return deriveResult{material: material}
}

// Derive computes the key material for password and salt on a worker.
// It returns early with ctx.Err() if ctx is done before the result arrives.
// The password is copied; the caller may reuse its slice immediately.
func (d *Deriver) Derive(ctx context.Context, password []byte, salt [SaltSize]byte) (KeyMaterial, error) {
	if err := ctx.Err(); err != nil {
		return KeyMaterial{}, err
	}

	job := deriveJob{
		password: append([]byte(nil), password...),
		salt:     salt,
		result:   make(chan deriveResult, 1),
	}

	d.metrics.KDFQueued(1)
	defer d.metrics.KDFQueued(-1)

	select {
	case <-d.done:
		return KeyMaterial{}, ErrDeriverClosed
	default:
	}

	select {
	case d.jobs <- job:
	case <-ctx.Done():
		zeroize(job.password)
		return KeyMaterial{}, ctx.Err()
	case <-d.done:
		zeroize(job.password)
		return KeyMaterial{}, ErrDeriverClosed
	}

	select {
	case res := <-job.result:
		if res.err != nil {
			return KeyMaterial{}, NewEncryptionError("derive", "", res.err)
		}
		return res.material, nil
	case <-ctx.Done():
		return KeyMaterial{}, ctx.Err()
	case <-d.done:
		return KeyMaterial{}, ErrDeriverClosed
	}
}

// Close stops the workers. Derivations already running finish; queued jobs
// are abandoned and their callers receive ErrDeriverClosed.
func (d *Deriver) Close() {
	d.once.Do(func() {
		close(d.done)
	})
	d.wg.Wait()
}
