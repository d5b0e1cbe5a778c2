package export

import (
	"context"
	"sync"
)

// Recorder is a Sink that keeps every job it is given. Fail, when set,
// decides the outcome of each job.
type Recorder struct {
	Fail func(Job) error

	mu   sync.Mutex
	Jobs []Job
}

var _ Sink = (*Recorder)(nil)

func (r *Recorder) Export(_ context.Context, job Job) error {
	r.mu.Lock()
	r.Jobs = append(r.Jobs, job)
	r.mu.Unlock()
	if r.Fail != nil {
		return r.Fail(job)
	}
	return nil
}

// Descriptions returns the recorded job descriptions in export order.
func (r *Recorder) Descriptions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Jobs))
	for i, j := range r.Jobs {
		out[i] = j.Description
	}
	return out
}
