package export

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Status string

const (
	Submitted Status = "SUBMITTED"
	Running   Status = "RUNNING"
	Completed Status = "COMPLETED"
	Failed    Status = "FAILED"
)

var ErrQueueClosed = errors.New("export queue closed")

// Task is the handle returned by Submit.
type Task struct {
	Job Job

	mu     sync.Mutex
	status Status
	err    error
	done   chan struct{}
}

// Status returns the current state and, for failed tasks, the error.
func (t *Task) Status() (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status, t.err
}

// Done is closed once the task has completed or failed.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		_, err := t.Status()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) set(s Status, err error) {
	t.mu.Lock()
	t.status = s
	t.err = err
	t.mu.Unlock()
}

// StatusRecorder persists task state changes.
type StatusRecorder interface {
	Record(ctx context.Context, job Job, status Status, jobErr error) error
}

// Queue runs submitted jobs on a fixed pool of workers in submission
// order. Submit never waits for a worker.
type Queue struct {
	ctx      context.Context
	sink     Sink
	recorder StatusRecorder

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*Task
	tasks   []*Task
	closed  bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

type QueueOption func(*Queue)

// WithRecorder records every status change, e.g. to a Ledger.
func WithRecorder(r StatusRecorder) QueueOption {
	return func(q *Queue) { q.recorder = r }
}

// NewQueue starts workers that export to sink until ctx is done or Close
// is called.
func NewQueue(ctx context.Context, sink Sink, workers int, opts ...QueueOption) *Queue {
	q := &Queue{ctx: ctx, sink: sink, stop: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	for _, opt := range opts {
		opt(q)
	}
	if workers < 1 {
		workers = 1
	}
	q.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go q.work()
	}
	go func() {
		select {
		case <-ctx.Done():
			q.Close()
		case <-q.stop:
		}
	}()
	return q
}

// Submit queues job and returns its handle immediately.
func (q *Queue) Submit(job Job) (*Task, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	task := &Task{Job: job, status: Submitted, done: make(chan struct{})}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, fmt.Errorf("submit %s: %w", job, ErrQueueClosed)
	}
	// Recorded before a worker can see the task, so the ledger never moves
	// backwards.
	q.record(job, Submitted, nil)
	q.pending = append(q.pending, task)
	q.tasks = append(q.tasks, task)
	q.cond.Signal()
	q.mu.Unlock()

	logrus.WithFields(logrus.Fields{"id": job.ID, "job": job.String()}).Info("Export submitted")
	return task, nil
}

// Tasks returns every submitted task in submission order.
func (q *Queue) Tasks() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}

// Wait blocks until every task submitted so far has finished and returns
// the failures joined.
func (q *Queue) Wait(ctx context.Context) error {
	var errs []error
	for _, task := range q.Tasks() {
		select {
		case <-task.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		if _, err := task.Status(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting jobs and waits for the workers to drain the queue.
// Tasks still pending when the queue's context is cancelled fail with the
// context error.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.stop)
		q.cond.Broadcast()
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) next() *Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.pending) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.pending) == 0 {
		return nil
	}
	task := q.pending[0]
	q.pending = q.pending[1:]
	return task
}

func (q *Queue) work() {
	defer q.wg.Done()
	for task := q.next(); task != nil; task = q.next() {
		q.run(task)
	}
}

func (q *Queue) run(task *Task) {
	log := logrus.WithFields(logrus.Fields{"id": task.Job.ID, "job": task.Job.String()})
	defer close(task.done)

	if err := q.ctx.Err(); err != nil {
		task.set(Failed, err)
		q.record(task.Job, Failed, err)
		return
	}

	task.set(Running, nil)
	q.record(task.Job, Running, nil)
	log.Debug("Export running")

	if err := q.sink.Export(q.ctx, task.Job); err != nil {
		log.Errorf("Export failed: %v", err)
		task.set(Failed, err)
		q.record(task.Job, Failed, err)
		return
	}
	log.Info("Export completed")
	task.set(Completed, nil)
	q.record(task.Job, Completed, nil)
}

func (q *Queue) record(job Job, status Status, jobErr error) {
	if q.recorder == nil {
		return
	}
	if err := q.recorder.Record(context.WithoutCancel(q.ctx), job, status, jobErr); err != nil {
		logrus.Warnf("Could not record %s as %s: %v", job, status, err)
	}
}
