package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/hoanghai1803/pushkit/internal/jobs"
	"github.com/hoanghai1803/pushkit/internal/models"
	"github.com/hoanghai1803/pushkit/internal/notify"
	"github.com/hoanghai1803/pushkit/internal/storage"
)

// newTestStore creates an in-memory SQLite store with migrations applied. It
// registers a cleanup function to close the database when the test
// completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	return storage.NewStore(db)
}

type fakeJob struct {
	name    string
	gate    chan struct{}
	started chan struct{}
	args    []string
}

func (f *fakeJob) Name() string        { return f.name }
func (f *fakeJob) Description() string { return "fake " + f.name }

func (f *fakeJob) Run(ctx context.Context, env *jobs.Env, argument string) (jobs.Outcome, error) {
	f.args = append(f.args, argument)
	if f.started != nil {
		close(f.started)
	}
	if f.gate != nil {
		<-f.gate
	}
	if argument == "fail" {
		return jobs.Outcome{}, errors.New("upstream unavailable")
	}
	sent := 0
	if notify.Send(ctx, env.Notify, models.Message{Title: f.name, Body: argument}) {
		sent++
	}
	return jobs.Outcome{Sent: sent}, nil
}

// newTestRunner wires fake jobs to store for runs and notifications.
func newTestRunner(t *testing.T, store *storage.Store, fakes ...*fakeJob) *jobs.Runner {
	t.Helper()
	list := make([]jobs.Job, len(fakes))
	for i, f := range fakes {
		list[i] = f
	}
	env := &jobs.Env{Notify: store, Settings: store.Settings(), State: store.State()}
	return jobs.NewRunner(jobs.NewRegistry(list...), env, store)
}
