package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/wikirefs/internal/config"
	"github.com/dgallion1/wikirefs/internal/metrics"
	"github.com/dgallion1/wikirefs/internal/wiki"
)

var (
	ErrQueueFull = errors.New("job queue is full")
	ErrStopped   = errors.New("orchestrator stopped")
)

const jobCleanupInterval = 5 * time.Minute

// Orchestrator runs batch scan jobs on a fixed pool of workers.
type Orchestrator struct {
	jobs     *JobStore
	fetcher  wiki.Fetcher
	log      *slog.Logger
	workers  int
	capacity int

	// mu serializes sends on queue with closing it.
	mu      sync.Mutex
	queue   chan *Job
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(cfg config.Config, fetcher wiki.Fetcher, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		fetcher:  fetcher,
		log:      log,
		workers:  max(cfg.WorkerCount, 1),
		capacity: cfg.MaxQueueSize,
		queue:    make(chan *Job, cfg.MaxQueueSize),
	}
}

// Start launches the workers and the expired-job janitor. It does nothing
// once the orchestrator has been stopped.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped || o.cancel != nil {
		return
	}
	ctx, o.cancel = context.WithCancel(ctx)

	o.wg.Add(o.workers + 1)
	for id := range o.workers {
		go o.runWorker(ctx, id)
	}
	go o.janitor(ctx)
}

func (o *Orchestrator) runWorker(ctx context.Context, id int) {
	defer o.wg.Done()
	w := NewWorker(o.fetcher, o.log.With("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.queue:
			if !ok {
				return
			}
			metrics.QueueDepth.Set(float64(len(o.queue)))
			w.Process(ctx, job)
		}
	}
}

func (o *Orchestrator) janitor(ctx context.Context) {
	defer o.wg.Done()
	ticker := time.NewTicker(jobCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.jobs.Cleanup()
		}
	}
}

// Stop cancels in-flight jobs and waits for the workers to exit. Jobs still
// waiting in the queue are marked failed. Later calls to Submit return
// ErrStopped; calling Stop again is a no-op.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.mu.Unlock()

	o.wg.Wait()

	abandoned := 0
	for job := range o.queue {
		job.SetStatus(StatusFailed, "stopped")
		abandoned++
	}
	metrics.QueueDepth.Set(0)
	if abandoned > 0 {
		o.log.Warn("orchestrator stopped with queued jobs", "abandoned", abandoned)
	}
}

// Submit stores the job and queues it for processing. A job that cannot be
// queued stays retrievable with status failed.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "stopped")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		metrics.JobsSubmitted.Inc()
		metrics.QueueDepth.Set(float64(len(o.queue)))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, o.capacity)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Fetcher returns the page fetcher for direct use by API handlers.
func (o *Orchestrator) Fetcher() wiki.Fetcher {
	return o.fetcher
}
