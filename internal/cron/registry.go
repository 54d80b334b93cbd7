package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is a unit of scheduled work. Names must be unique within a registry
// since metrics and logs are keyed by them.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry is the ordered set of jobs a cycle runs.
type Registry struct {
	jobs  []Job
	index map[string]int
}

// NewRegistry keeps jobs in the given order, skipping nils.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(jobs))}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends job. A nil job is ignored.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron job name required")
	}
	if _, dup := r.index[name]; dup {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.index[name] = len(r.jobs)
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs in registration order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names lists job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}

// Only narrows the registry to the named jobs, keeping registration order.
// An empty list returns the registry unchanged.
func (r *Registry) Only(names ...string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	keep := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := r.index[name]; !ok {
			return nil, fmt.Errorf("unknown cron job %q (have %s)", name, strings.Join(r.Names(), ", "))
		}
		keep[name] = true
	}

	var selected []Job
	for _, job := range r.jobs {
		if keep[job.Name()] {
			selected = append(selected, job)
		}
	}
	return NewRegistry(selected...)
}
