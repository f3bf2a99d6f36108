package jobs

import (
	"context"
	"sync"

	"github.com/sngdarren/mr-team/internal/apperr"
	"github.com/sngdarren/mr-team/internal/metrics"
	"github.com/sngdarren/mr-team/pkg/log"
)

// Executor runs one job. Returning nil marks the job done; an error marks it failed.
type Executor func(ctx context.Context, job *Job) error

// Queue dispatches jobs from the registry to a fixed set of background workers.
type Queue struct {
	registry    *Registry
	workerCount int

	mu         sync.Mutex
	started    bool
	backlog    []string
	pendingIDs chan string

	ctx      context.Context
	cancel   context.CancelFunc
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewQueue(registry *Registry, workerCount int) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		registry:    registry,
		workerCount: workerCount,
		pendingIDs:  make(chan string, 1024),
		ctx:         ctx,
		cancel:      cancel,
		stopCh:      make(chan struct{}),
	}
}

func (q *Queue) Registry() *Registry {
	return q.registry
}

// Enqueue registers the job as processing and schedules it.
func (q *Queue) Enqueue(req EnqueueRequest) (*Job, error) {
	job, err := q.registry.Create(req.ID, req.Payload)
	if err != nil {
		return nil, err
	}
	metrics.JobsSubmitted.Inc()

	q.mu.Lock()
	started := q.started
	if !started {
		q.backlog = append(q.backlog, job.ID)
	}
	q.mu.Unlock()

	if started {
		q.enqueuePendingID(job.ID)
	}
	return job, nil
}

func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	backlog := q.backlog
	q.backlog = nil
	q.mu.Unlock()

	for _, id := range backlog {
		q.enqueuePendingID(id)
	}

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

// Stop cancels running jobs and waits for the workers to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancel()
		close(q.stopCh)
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		case id := <-q.pendingIDs:
			q.run(exec, id)
		}
	}
}

func (q *Queue) run(exec Executor, id string) {
	job, ok := q.registry.Get(id)
	if !ok || job.Status.Terminal() {
		return
	}

	metrics.JobsActive.Inc()
	defer metrics.JobsActive.Dec()

	log.Info("Job %s started", id)
	err := apperr.SafeExecute(func() error {
		return exec(q.ctx, job)
	})
	if err != nil {
		q.markFailed(id, err)
		return
	}
	q.markDone(id)
}

func (q *Queue) markDone(id string) {
	if err := q.registry.MarkDone(id); err != nil {
		log.Error("Failed to mark job %s done: %v", id, err)
		return
	}
	metrics.JobsFinished.WithLabelValues(string(StatusDone)).Inc()
	log.Info("Job %s done", id)
}

func (q *Queue) markFailed(id string, cause error) {
	if err := q.registry.MarkFailed(id, cause); err != nil {
		log.Error("Failed to mark job %s failed: %v", id, err)
		return
	}
	metrics.JobsFinished.WithLabelValues(string(StatusFailed)).Inc()
	log.Error("Job %s failed: %v", id, cause)
}

func (q *Queue) enqueuePendingID(id string) {
	select {
	case q.pendingIDs <- id:
	default:
		go func() {
			select {
			case q.pendingIDs <- id:
			case <-q.stopCh:
			}
		}()
	}
}
