package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hoanghai1803/pushkit/internal/args"
	"github.com/hoanghai1803/pushkit/internal/config"
	"github.com/hoanghai1803/pushkit/internal/models"
	"github.com/hoanghai1803/pushkit/internal/weather"
)

const (
	weatherTitle        = "今日天气"
	weatherFailureTitle = "天气获取失败"
)

var (
	weatherQKeyField     = args.Field{Keys: []string{"qweatherApiKey"}, Setting: "qweatherApiKey"}
	weatherQHostField    = args.Field{Keys: []string{"qweatherHost"}, Setting: "qweatherHost"}
	weatherAmapKeyField  = args.Field{Keys: []string{"amapApiKey"}, Setting: "amapApiKey"}
	weatherLocationField = args.Field{Keys: []string{"weatherLocOverride"}, Setting: "weatherLocOverride"}
	weatherRouteField    = args.Field{Keys: []string{"netNode", "node"}, Setting: "netNode"}
)

// Weather pushes the district-level weather of the user's location.
type Weather struct {
	Config config.WeatherConfig
	// AmapBase overrides the AMap endpoint.
	AmapBase string
}

func (j *Weather) Name() string        { return "weather" }
func (j *Weather) Description() string { return "本地天气：实况、今日预报、空气质量与出行建议" }

// Run resolves keys and location, then posts the report. Any failure is
// posted as a diagnostic carrying the error text.
func (j *Weather) Run(ctx context.Context, env *Env, argument string) (Outcome, error) {
	eff := j.resolve(ctx, env, argument)
	slog.Debug("weather config", "config", eff)

	opts := weather.Options{
		QWeatherKey:  eff.Override(weatherQKeyField.Setting),
		QWeatherHost: eff.Override(weatherQHostField.Setting),
		AmapKey:      eff.Override(weatherAmapKeyField.Setting),
		AmapBase:     j.AmapBase,
		Route:        eff.Route,
	}

	msg, err := j.report(ctx, env, opts, eff.Override(weatherLocationField.Setting))
	if err != nil {
		sent := env.send(ctx, models.Message{Title: weatherFailureTitle, Body: weatherFailureText(err)})
		return Outcome{Sent: sent}, err
	}
	return Outcome{Sent: env.send(ctx, msg)}, nil
}

// resolve collects the route plus the key, host and location overrides,
// keyed by their settings names.
func (j *Weather) resolve(ctx context.Context, env *Env, argument string) args.Effective {
	r := args.NewResolver(args.Parse(argument, "weatherLocOverride"), env.Settings)

	withDefault := func(f args.Field, def string) args.Field {
		f.Default = def
		return f
	}
	overrides := make(map[string]string, 4)
	for _, f := range []args.Field{
		withDefault(weatherQKeyField, j.Config.QWeatherKey),
		withDefault(weatherQHostField, j.Config.QWeatherHost),
		withDefault(weatherAmapKeyField, j.Config.AmapKey),
		withDefault(weatherLocationField, j.Config.Location),
	} {
		if v := r.String(ctx, f); v != "" {
			overrides[f.Setting] = v
		}
	}
	return args.Effective{
		Route:     r.Route(ctx, withDefault(weatherRouteField, j.Config.Route)),
		Overrides: overrides,
	}
}

func (j *Weather) report(ctx context.Context, env *Env, opts weather.Options, override string) (models.Message, error) {
	client, err := weather.NewClient(env.HTTP, opts)
	if err != nil {
		return models.Message{}, err
	}
	loc, err := client.Locate(ctx, override)
	if err != nil {
		return models.Message{}, fmt.Errorf("locating: %w", err)
	}
	report, err := client.Forecast(ctx, loc)
	if err != nil {
		return models.Message{}, fmt.Errorf("forecast for %s: %w", loc.Label(), err)
	}
	return models.Message{Title: weatherTitle, Subtitle: loc.Label(), Body: weather.Format(report)}, nil
}

func weatherFailureText(err error) string {
	switch {
	case errors.Is(err, weather.ErrMissingKey):
		return "缺少 API Key：请在设置中填写 qweatherApiKey 与 amapApiKey\n(" + err.Error() + ")"
	case errors.Is(err, weather.ErrNoCity):
		return "和风城市 ID 获取失败：请检查定位/覆盖位置是否正确"
	}
	return err.Error()
}
