// Package schedule runs jobs on their configured cron specs.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hoanghai1803/pushkit/internal/config"
	"github.com/hoanghai1803/pushkit/internal/models"
)

// ErrUnknownJob is returned when a schedule entry names no registered job.
var ErrUnknownJob = errors.New("scheduled job is not registered")

// Runner invokes a job by name.
type Runner interface {
	Run(ctx context.Context, name, argument string) (models.RunRecord, error)
}

// Planned is one schedule entry and its next fire time.
type Planned struct {
	Job      string    `json:"job"`
	Spec     string    `json:"cron"`
	Argument string    `json:"argument,omitempty"`
	Next     time.Time `json:"next"`
}

type entry struct {
	config.ScheduleEntry
	sched cron.Schedule
}

// Scheduler fires Runner.Run for every entry. A still-running invocation
// of the same entry causes the next tick to be skipped.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	loc     *time.Location
	entries []entry
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New validates entries against known and registers them. loc is the zone
// the specs are evaluated in.
func New(runner Runner, loc *time.Location, entries []config.ScheduleEntry, known func(name string) bool) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	logger := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(config.CronParser()),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		runner: runner,
		loc:    loc,
		now:    time.Now,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for i, e := range entries {
		if known != nil && !known(e.Job) {
			return nil, fmt.Errorf("schedule[%d]: %w: %q", i, ErrUnknownJob, e.Job)
		}
		sched, err := config.CronParser().Parse(e.Spec)
		if err != nil {
			return nil, fmt.Errorf("schedule[%d] cron %q: %w", i, e.Spec, err)
		}
		ent := entry{ScheduleEntry: e, sched: sched}
		s.cron.Schedule(sched, cron.FuncJob(func() { s.fire(ent) }))
		s.entries = append(s.entries, ent)
	}
	return s, nil
}

func (s *Scheduler) fire(e entry) {
	slog.Info("scheduled run", "job", e.Job, "cron", e.Spec)
	if _, err := s.runner.Run(s.ctx, e.Job, e.Argument); err != nil {
		slog.Warn("scheduled run failed", "job", e.Job, "error", err)
	}
}

// Start begins firing entries in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "entries", len(s.entries), "location", s.loc.String())
}

// Stop stops new runs, cancels running ones and waits for them to return
// or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for scheduled runs: %w", ctx.Err())
	}
}

// Planned lists the entries ordered by their next fire time.
func (s *Scheduler) Planned() []Planned {
	now := s.now().In(s.loc)
	out := make([]Planned, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Planned{Job: e.Job, Spec: e.Spec, Argument: e.Argument, Next: e.sched.Next(now)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Next.Before(out[j].Next) })
	return out
}

// cronLogger forwards cron's own logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
