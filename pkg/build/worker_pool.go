package build

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gnana997/dyntheme/pkg/util"
)

// FileJob is a stylesheet waiting to be transformed.
type FileJob struct {
	Path  string
	JobID int
}

// FileResult reports a transformed stylesheet.
type FileResult struct {
	Path  string
	JobID int
	Size  int
}

// FileError reports a stylesheet that failed to read or transform.
type FileError struct {
	Path  string
	JobID int
	Err   error
}

func (e FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e FileError) Unwrap() error {
	return e.Err
}

// ProcessFunc transforms one file's content. It must be safe for
// concurrent calls with distinct paths.
type ProcessFunc func(ctx context.Context, path, content string) error

// WorkerPool transforms files on a fixed number of goroutines.
//
// Usage:
//
//	pool := NewWorkerPool(ctx, 0, files, process, logger)
//	pool.Start()
//	go func() {
//	    for i, path := range paths {
//	        pool.Submit(FileJob{Path: path, JobID: i})
//	    }
//	    pool.FinishSubmitting()
//	}()
//	for i := 0; i < len(paths); i++ {
//	    select {
//	    case res := <-pool.Results():
//	    case err := <-pool.Errors():
//	    }
//	}
//	pool.Stop()
type WorkerPool struct {
	numWorkers int
	jobs       chan FileJob
	results    chan FileResult
	errors     chan FileError
	wg         sync.WaitGroup
	files      util.FileCache
	process    ProcessFunc
	logger     *slog.Logger

	ctx        context.Context
	cancel     context.CancelFunc
	started    atomic.Bool
	stopped    atomic.Bool
	jobsClosed atomic.Bool

	jobsSubmitted atomic.Int64
	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
}

// NewWorkerPool creates a pool of numWorkers goroutines (0 selects
// util.GetOptimalPoolSize). Cancelling ctx stops the workers.
func NewWorkerPool(ctx context.Context, numWorkers int, files util.FileCache, process ProcessFunc, logger *slog.Logger) *WorkerPool {
	numWorkers = util.GetOptimalPoolSizeWithOverride(numWorkers)
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers: numWorkers,
		jobs:       make(chan FileJob, numWorkers*2),
		results:    make(chan FileResult, numWorkers),
		errors:     make(chan FileError, numWorkers),
		files:      files,
		process:    process,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start spawns the workers. It must be called before Submit.
func (wp *WorkerPool) Start() {
	if !wp.started.CompareAndSwap(false, true) {
		wp.logger.Warn("worker pool already started")
		return
	}

	wp.logger.Debug("starting worker pool", "workers", wp.numWorkers)

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case <-wp.ctx.Done():
			return

		case job, ok := <-wp.jobs:
			if !ok {
				return
			}
			wp.processJob(id, job)
		}
	}
}

func (wp *WorkerPool) processJob(workerID int, job FileJob) {
	content, err := wp.files.ReadFile(job.Path)
	if err != nil {
		wp.fail(job, fmt.Errorf("failed to read file: %w", err))
		return
	}

	if err := wp.process(wp.ctx, job.Path, content); err != nil {
		wp.logger.Debug("transform failed", "worker_id", workerID, "file", job.Path, "error", err)
		wp.fail(job, err)
		return
	}

	wp.jobsProcessed.Add(1)
	select {
	case wp.results <- FileResult{Path: job.Path, JobID: job.JobID, Size: len(content)}:
	case <-wp.ctx.Done():
	}
}

func (wp *WorkerPool) fail(job FileJob, err error) {
	wp.jobsFailed.Add(1)
	select {
	case wp.errors <- FileError{Path: job.Path, JobID: job.JobID, Err: err}:
	case <-wp.ctx.Done():
	}
}

// Submit enqueues a job, blocking while the queue is full.
func (wp *WorkerPool) Submit(job FileJob) error {
	if wp.stopped.Load() {
		return fmt.Errorf("worker pool is stopped")
	}

	wp.jobsSubmitted.Add(1)

	select {
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool cancelled")
	case wp.jobs <- job:
		return nil
	}
}

func (wp *WorkerPool) Results() <-chan FileResult {
	return wp.results
}

func (wp *WorkerPool) Errors() <-chan FileError {
	return wp.errors
}

// FinishSubmitting closes the job queue so workers exit once it drains.
// Safe to call more than once.
func (wp *WorkerPool) FinishSubmitting() {
	if wp.jobsClosed.CompareAndSwap(false, true) {
		close(wp.jobs)
	}
}

// Wait blocks until every worker has exited.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Stop cancels the workers, waits for them to exit and closes the result
// channels. The queue is left to the submitter, which may still be
// blocked in Submit. Safe to call more than once.
func (wp *WorkerPool) Stop() {
	if !wp.stopped.CompareAndSwap(false, true) {
		return
	}

	wp.cancel()
	wp.wg.Wait()

	close(wp.results)
	close(wp.errors)

	wp.logger.Debug("worker pool stopped",
		"jobs_submitted", wp.jobsSubmitted.Load(),
		"jobs_processed", wp.jobsProcessed.Load(),
		"jobs_failed", wp.jobsFailed.Load())
}

// GetStats returns current worker pool statistics.
func (wp *WorkerPool) GetStats() WorkerPoolStats {
	return WorkerPoolStats{
		NumWorkers:    wp.numWorkers,
		JobsSubmitted: wp.jobsSubmitted.Load(),
		JobsProcessed: wp.jobsProcessed.Load(),
		JobsFailed:    wp.jobsFailed.Load(),
	}
}

// WorkerPoolStats contains statistics about the worker pool.
type WorkerPoolStats struct {
	NumWorkers    int
	JobsSubmitted int64
	JobsProcessed int64
	JobsFailed    int64
}
