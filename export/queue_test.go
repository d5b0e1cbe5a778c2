package export

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestQueueRunsJobsInOrder(t *testing.T) {
	sink := &Recorder{}
	q := NewQueue(context.Background(), sink, 1)
	defer q.Close()

	want := []string{"MODIS_NDVI_Sep_2018_Forest_Agri", "MODIS_NDVI_Sep_2019_Forest_Agri", "MODIS_NDVI_Change_2024_2018_Forest_Agri"}
	for _, d := range want {
		if _, err := q.Submit(Job{Description: d, Folder: DefaultFolder}); err != nil {
			t.Fatal(err)
		}
	}
	if err := q.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := sink.Descriptions(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
	for _, task := range q.Tasks() {
		if status, err := task.Status(); status != Completed || err != nil {
			t.Errorf("%s: got %s, %v", task.Job, status, err)
		}
		if task.Job.ID == "" {
			t.Errorf("%s has no ID", task.Job)
		}
	}
}

// blockingSink holds every export until release is closed.
type blockingSink struct {
	release chan struct{}
}

func (b blockingSink) Export(ctx context.Context, _ Job) error {
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSubmitDoesNotWait(t *testing.T) {
	sink := blockingSink{release: make(chan struct{})}
	q := NewQueue(context.Background(), sink, 1)

	done := make(chan struct{})
	var tasks []*Task
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			task, err := q.Submit(Job{Description: "job"})
			if err != nil {
				t.Error(err)
				return
			}
			tasks = append(tasks, task)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked on a busy worker")
	}

	status, _ := tasks[2].Status()
	if status != Submitted {
		t.Errorf("got %s, want %s", status, Submitted)
	}
	close(sink.release)
	if err := tasks[2].Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	q.Close()
}

func TestQueueReportsFailures(t *testing.T) {
	sink := &Recorder{Fail: func(j Job) error {
		if j.Description == "too-big" {
			return ErrTooManyPixels
		}
		return nil
	}}
	q := NewQueue(context.Background(), sink, 2)
	defer q.Close()

	ok, _ := q.Submit(Job{Description: "fine"})
	bad, _ := q.Submit(Job{Description: "too-big"})

	err := q.Wait(context.Background())
	if !errors.Is(err, ErrTooManyPixels) {
		t.Errorf("got %v, want ErrTooManyPixels", err)
	}
	if status, _ := ok.Status(); status != Completed {
		t.Errorf("got %s, want %s", status, Completed)
	}
	if status, err := bad.Status(); status != Failed || !errors.Is(err, ErrTooManyPixels) {
		t.Errorf("got %s, %v", status, err)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	q := NewQueue(context.Background(), &Recorder{}, 1)
	q.Close()
	if _, err := q.Submit(Job{Description: "late"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("got %v, want ErrQueueClosed", err)
	}
}

func TestCancelledQueueFailsPendingTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sink := blockingSink{release: make(chan struct{})}
	q := NewQueue(ctx, sink, 1)

	first, _ := q.Submit(Job{Description: "first"})
	second, _ := q.Submit(Job{Description: "second"})
	cancel()
	q.Close()

	for _, task := range []*Task{first, second} {
		if status, err := task.Status(); status != Failed || !errors.Is(err, context.Canceled) {
			t.Errorf("%s: got %s, %v", task.Job, status, err)
		}
	}
}

type statusLog struct {
	mu      sync.Mutex
	entries []Status
}

func (s *statusLog) Record(_ context.Context, _ Job, status Status, _ error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, status)
	return nil
}

func TestQueueRecordsStatusChanges(t *testing.T) {
	log := &statusLog{}
	q := NewQueue(context.Background(), &Recorder{}, 1, WithRecorder(log))
	task, err := q.Submit(Job{Description: "job"})
	if err != nil {
		t.Fatal(err)
	}
	if err := task.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	q.Close()

	want := []Status{Submitted, Running, Completed}
	if !reflect.DeepEqual(log.entries, want) {
		t.Errorf("got %v, want %v", log.entries, want)
	}
}
