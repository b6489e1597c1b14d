package cron

import (
	"context"
	"fmt"
)

// Job is one unit of scheduled work. Run must honor ctx cancellation.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order. Names are unique.
type Registry struct {
	order []string
	jobs  map[string]Job
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]Job)}
}

// Register adds job under its name.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if _, dup := r.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	r.jobs[name] = job
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the named job.
func (r *Registry) Lookup(name string) (Job, bool) {
	job, ok := r.jobs[name]
	return job, ok
}

// Jobs returns a copy of the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	out := make([]Job, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.jobs[name])
	}
	return out
}

func (r *Registry) Len() int { return len(r.order) }
