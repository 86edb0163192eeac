package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hoanghai1803/pushkit/internal/models"
	"github.com/hoanghai1803/pushkit/internal/notify"
)

// RunStore records the audit trail of runs.
type RunStore interface {
	StartRun(ctx context.Context, job, argument string) (int64, error)
	FinishRun(ctx context.Context, id int64, status, errMsg string, sent int) error
}

// Runner invokes registered jobs one at a time per job name.
type Runner struct {
	registry *Registry
	env      *Env
	runs     RunStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRunner creates a Runner. runs may be nil, in which case nothing is
// recorded.
func NewRunner(registry *Registry, env *Env, runs RunStore) *Runner {
	return &Runner{registry: registry, env: env, runs: runs, locks: make(map[string]*sync.Mutex)}
}

// Registry returns the jobs the runner can invoke.
func (r *Runner) Registry() *Registry { return r.registry }

func (r *Runner) lock(name string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	if !ok {
		l = &sync.Mutex{}
		r.locks[name] = l
	}
	return l
}

// Run executes the named job with argument. The run is recorded as
// finished exactly once, whether the job returns, fails or panics. The
// returned error is the job's error; the record carries it as text.
func (r *Runner) Run(ctx context.Context, name, argument string) (models.RunRecord, error) {
	job, ok := r.registry.Get(name)
	if !ok {
		return models.RunRecord{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}

	l := r.lock(name)
	if !l.TryLock() {
		return models.RunRecord{}, fmt.Errorf("%s: %w", name, ErrBusy)
	}
	defer l.Unlock()

	rec := models.RunRecord{Job: name, Argument: argument, Status: models.RunRunning, StartedAt: time.Now().UTC()}
	if r.runs != nil {
		id, err := r.runs.StartRun(ctx, name, argument)
		if err != nil {
			slog.Warn("recording run start failed", "job", name, "error", err)
		}
		rec.ID = id
	}

	slog.Info("job started", "job", name, "run", rec.ID)
	start := time.Now()
	out, err := r.invoke(notify.WithJob(ctx, name), job, argument)

	rec.Sent = out.Sent
	switch {
	case isPanic(err):
		rec.Status = models.RunPanic
	case err != nil:
		rec.Status = models.RunFailed
	default:
		rec.Status = models.RunOK
	}
	if err != nil {
		rec.Error = err.Error()
	}
	finished := time.Now().UTC()
	rec.FinishedAt = &finished

	if r.runs != nil && rec.ID != 0 {
		// The caller's context may already be cancelled; the record must
		// still be closed.
		fctx := context.WithoutCancel(ctx)
		if ferr := r.runs.FinishRun(fctx, rec.ID, rec.Status, rec.Error, rec.Sent); ferr != nil {
			slog.Warn("recording run finish failed", "job", name, "run", rec.ID, "error", ferr)
		}
	}

	attrs := []any{"job", name, "run", rec.ID, "status", rec.Status, "sent", out.Sent, "duration", time.Since(start)}
	switch {
	case err != nil:
		slog.Error("job failed", append(attrs, "error", err)...)
	case out.Skipped != "":
		slog.Info("job skipped", append(attrs, "reason", out.Skipped)...)
	default:
		slog.Info("job finished", append(attrs, "cached", out.Cached)...)
	}
	return rec, err
}

type panicError struct {
	value any
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

func isPanic(err error) bool {
	_, ok := err.(*panicError)
	return ok
}

func (r *Runner) invoke(ctx context.Context, job Job, argument string) (out Outcome, err error) {
	defer func() {
		if v := recover(); v != nil {
			slog.Error("job panicked", "job", job.Name(), "panic", v, "stack", string(debug.Stack()))
			err = &panicError{value: v}
		}
	}()
	return job.Run(ctx, r.env, argument)
}
