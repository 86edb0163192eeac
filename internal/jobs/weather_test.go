package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hoanghai1803/pushkit/internal/config"
	"github.com/hoanghai1803/pushkit/internal/weather"
)

func weatherEnv(t *testing.T) *testEnv {
	env := newTestEnv(t)
	env.doer.
		on("https://restapi.amap.com/v3/geocode/regeo", body(`{"status":"1","regeocode":{"addressComponent":{"province":"浙江省","city":"杭州市","district":"西湖区","adcode":"330106"}}}`)).
		on("https://qw.example.com/geo/v2/city/lookup", body(`{"code":"200","location":[{"id":"101210113"}]}`)).
		on("https://qw.example.com/v7/weather/now", body(`{"code":"200","now":{"text":"晴","temp":"8","windDir":"东北风","windScale":"3","humidity":"40"}}`)).
		on("https://qw.example.com/v7/weather/3d", body(`{"code":"200","daily":[{"textDay":"晴","textNight":"多云","tempMin":"5","tempMax":"15","uvIndex":"3","precip":"0.0"}]}`)).
		on("https://qw.example.com/v7/air/now", body(`{"code":"200","now":{"category":"良","aqi":"62"}}`))
	return env
}

func TestWeather_Report(t *testing.T) {
	env := weatherEnv(t)
	ctx := context.Background()
	for k, v := range map[string]string{"qweatherApiKey": "qk", "amapApiKey": "ak", "qweatherHost": "qw.example.com/"} {
		if err := env.settings.Write(ctx, k, v); err != nil {
			t.Fatal(err)
		}
	}

	out, err := (&Weather{}).Run(ctx, env.Env, "120.25,30.25")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	msg := env.sink.Messages()[0]
	if out.Sent != 1 || msg.Title != "今日天气" || msg.Subtitle != "杭州市 西湖区" {
		t.Errorf("message = %+v", msg)
	}
	for _, want := range []string{"当前: 晴 8°C", "5°C ~ 15°C", "空气质量: 良 (AQI 62)", "气温较低，注意保暖"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("body missing %q:\n%s", want, msg.Body)
		}
	}
	if n := len(env.doer.requests("https://restapi.amap.com/v3/ip")); n != 0 {
		t.Errorf("coordinates override still located by IP (%d requests)", n)
	}
}

func TestWeather_MissingKey(t *testing.T) {
	env := newTestEnv(t)
	job := &Weather{Config: config.WeatherConfig{AmapKey: "ak"}}

	out, err := job.Run(context.Background(), env.Env, "")
	if !errors.Is(err, weather.ErrMissingKey) {
		t.Fatalf("Run() error = %v, want ErrMissingKey", err)
	}
	msg := env.sink.Messages()[0]
	if out.Sent != 1 || msg.Title != "天气获取失败" || !strings.HasPrefix(msg.Body, "缺少 API Key") {
		t.Errorf("message = %+v", msg)
	}
	if n := len(env.doer.requests("")); n != 0 {
		t.Errorf("%d requests made without keys", n)
	}
}

func TestWeather_NoCity(t *testing.T) {
	env := weatherEnv(t)
	env.doer.on("https://qw.example.com/geo/v2/city/lookup", body(`{"code":"404"}`))
	job := &Weather{Config: config.WeatherConfig{QWeatherKey: "qk", AmapKey: "ak", QWeatherHost: "https://qw.example.com"}}

	_, err := job.Run(context.Background(), env.Env, "weatherLocOverride=120.25,30.25")
	if !errors.Is(err, weather.ErrNoCity) {
		t.Fatalf("Run() error = %v, want ErrNoCity", err)
	}
	if got := env.sink.Messages()[0].Body; !strings.Contains(got, "城市 ID") {
		t.Errorf("failure body = %q", got)
	}
}

func TestWeather_ResolveOverrides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if err := env.settings.Write(ctx, "qweatherApiKey", "from-settings"); err != nil {
		t.Fatal(err)
	}
	job := &Weather{Config: config.WeatherConfig{AmapKey: "from-config", Route: "Proxy"}}

	eff := job.resolve(ctx, env.Env, "上海市浦东新区")

	want := map[string]string{
		"qweatherApiKey":     "from-settings",
		"amapApiKey":         "from-config",
		"weatherLocOverride": "上海市浦东新区",
	}
	for k, v := range want {
		if got := eff.Override(k); got != v {
			t.Errorf("Override(%q) = %q, want %q", k, got, v)
		}
	}
	if got := eff.Override("qweatherHost"); got != "" {
		t.Errorf("unset host override = %q", got)
	}
	if eff.Route != "Proxy" {
		t.Errorf("Route = %q, want Proxy", eff.Route)
	}
}
