package main

import (
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/hoanghai1803/pushkit/internal/config"
	"github.com/hoanghai1803/pushkit/internal/fetch"
	"github.com/hoanghai1803/pushkit/internal/jobs"
	"github.com/hoanghai1803/pushkit/internal/notify"
	"github.com/hoanghai1803/pushkit/internal/present"
	"github.com/hoanghai1803/pushkit/internal/storage"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "pushkit",
	Short:        "pushkit runs notification pipelines on a schedule or on demand.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "path to config file")
}

// app is the wired set of components every command works with.
type app struct {
	cfg    *config.Config
	loc    *time.Location
	store  *storage.Store
	sink   notify.Sink
	runner *jobs.Runner

	closeLog func() error
}

// setup loads the config, installs the logger, opens the store and builds
// the job runner. dryRun routes notifications to the log only.
func setup(dryRun bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	closeLog := setupLogger(cfg.Log)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("loading timezone: %w", err)
	}

	store, err := storage.Open(cfg.Store.Path)
	if err != nil {
		closeLog()
		return nil, err
	}

	client := fetch.NewClient(fetch.Options{
		Timeout:     cfg.HTTP.Timeout,
		UserAgent:   cfg.HTTP.UserAgent,
		Routes:      cfg.Routes,
		DirectHosts: cfg.HTTP.DirectHosts,
		HostSpacing: map[string]time.Duration{
			"fundgz.1234567.com.cn": cfg.Quotes.FundSpacing,
		},
	})

	sink := sinks(cfg.Notify, store, dryRun)
	env := &jobs.Env{
		HTTP:     client,
		Notify:   sink,
		Settings: store.Settings(),
		State:    store.State(),
		Present:  present.New(cfg.Notify.BodyBudget),
		Location: loc,
	}

	return &app{
		cfg:      cfg,
		loc:      loc,
		store:    store,
		sink:     sink,
		runner:   jobs.NewRunner(jobs.Builtin(cfg), env, store),
		closeLog: closeLog,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("closing store", "error", err)
	}
	a.closeLog()
}

// sinks fans messages out to the log, the notification log and Bark when a
// device key is configured.
func sinks(cfg config.NotifyConfig, store *storage.Store, dryRun bool) notify.Sink {
	if dryRun {
		return notify.Log{}
	}
	out := notify.Multi{notify.Log{}, store}
	if cfg.DeviceKey != "" {
		out = append(out, notify.NewBark(notify.BarkOptions{
			Server:    cfg.BarkServer,
			DeviceKey: cfg.DeviceKey,
			Group:     cfg.Group,
		}))
	} else {
		slog.Warn("no bark device key configured, notifications are only logged")
	}
	return out
}
