// Package jobs holds the notification pipelines and the Runner that invokes
// them. Each job fetches from its sources, ranks what it found and posts
// messages through the environment's sink.
package jobs

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hoanghai1803/pushkit/internal/config"
	"github.com/hoanghai1803/pushkit/internal/fetch"
	"github.com/hoanghai1803/pushkit/internal/kv"
	"github.com/hoanghai1803/pushkit/internal/models"
	"github.com/hoanghai1803/pushkit/internal/notify"
	"github.com/hoanghai1803/pushkit/internal/present"
)

var (
	// ErrUnknownJob is returned for a job name that is not registered.
	ErrUnknownJob = errors.New("unknown job")
	// ErrBusy is returned when the job is already running.
	ErrBusy = errors.New("job already running")
)

// Env is the set of capabilities a job runs against.
type Env struct {
	HTTP     fetch.Doer
	Notify   notify.Sink
	Settings kv.Store
	State    kv.Store
	Present  *present.Presenter
	// Location is the zone push slots and dates are evaluated in.
	Location *time.Location
	Now      func() time.Time
	// Sleep waits between paced requests. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (e *Env) now() time.Time {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	if e.Location != nil {
		return now().In(e.Location)
	}
	return now()
}

func (e *Env) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// send posts msgs in order and returns how many the sink accepted.
func (e *Env) send(ctx context.Context, msgs ...models.Message) int {
	return notify.SendAll(ctx, e.Notify, msgs)
}

// presenter returns the environment's Presenter pinned to its clock.
func (e *Env) presenter() *present.Presenter {
	p := present.New(present.DefaultBudget)
	if e.Present != nil {
		cp := *e.Present
		p = &cp
	}
	if p.Now == nil {
		p.Now = e.now
	}
	return p
}

// Outcome summarizes one job invocation.
type Outcome struct {
	Sent int
	// Cached is set when a stored render was replayed instead of live data.
	Cached bool
	// Skipped explains a silent exit, such as a quote run outside its slot.
	Skipped string
}

// Job is one notification pipeline.
type Job interface {
	Name() string
	Description() string
	// Run executes the pipeline with the raw invocation argument. A non-nil
	// error means the run failed, even if a diagnostic was delivered.
	Run(ctx context.Context, env *Env, argument string) (Outcome, error)
}

// Registry maps job names to jobs.
type Registry struct {
	jobs map[string]Job
}

// NewRegistry registers jobs under their names. Later duplicates win.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{jobs: make(map[string]Job, len(jobs))}
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
	return r
}

// Builtin registers every pipeline configured from cfg.
func Builtin(cfg *config.Config) *Registry {
	return NewRegistry(
		&News{Config: cfg.News},
		&Trending{Config: cfg.Trending},
		&Quotes{Config: cfg.Quotes},
		&Weather{Config: cfg.Weather},
		&Weibo{Config: cfg.Weibo},
	)
}

// Get returns the job registered as name.
func (r *Registry) Get(name string) (Job, bool) {
	j, ok := r.jobs[name]
	return j, ok
}

// List returns every job sorted by name.
func (r *Registry) List() []Job {
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func asStatusError(err error) (*fetch.StatusError, bool) {
	var se *fetch.StatusError
	ok := errors.As(err, &se)
	return se, ok
}
