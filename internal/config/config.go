package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
)

// Config holds all application configuration.
type Config struct {
	// Timezone is the zone cron schedules and push slots are evaluated in.
	Timezone string            `toml:"timezone"`
	Server   ServerConfig      `toml:"server"`
	Store    StoreConfig       `toml:"store"`
	Log      LogConfig         `toml:"log"`
	HTTP     HTTPConfig        `toml:"http"`
	Routes   map[string]string `toml:"routes"`
	Notify   NotifyConfig      `toml:"notify"`
	News     NewsConfig        `toml:"news"`
	Trending TrendingConfig    `toml:"trending"`
	Quotes   QuotesConfig      `toml:"quotes"`
	Weather  WeatherConfig     `toml:"weather"`
	Weibo    WeiboConfig       `toml:"weibo"`
	Schedule []ScheduleEntry   `toml:"schedule"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
	// Token, when set, must be presented as a bearer token on /api and /hook.
	Token string `toml:"token"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// LogConfig configures the console and optional rotating file logs.
type LogConfig struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// HTTPConfig configures outbound requests.
type HTTPConfig struct {
	Timeout   time.Duration `toml:"timeout"`
	UserAgent string        `toml:"user_agent"`
	// DirectHosts always bypass the requested route.
	DirectHosts []string `toml:"direct_hosts"`
}

// NotifyConfig configures notification sinks.
type NotifyConfig struct {
	BarkServer string `toml:"bark_server"`
	DeviceKey  string `toml:"device_key"`
	Group      string `toml:"group"`
	// BodyBudget is the number of runes a message body may hold.
	BodyBudget int `toml:"body_budget"`
}

// NewsConfig holds the defaults of the morning news job.
type NewsConfig struct {
	Sources       []string `toml:"sources"`
	Route         string   `toml:"route"`
	Max           int      `toml:"max"`
	Keywords      []string `toml:"keywords"`
	SkipDelivered bool     `toml:"skip_delivered"`
}

// TrendingConfig holds the defaults of the GitHub trending job.
type TrendingConfig struct {
	Route     string   `toml:"route"`
	MinStars  int      `toml:"min_stars"`
	Max       int      `toml:"max"`
	Topics    []string `toml:"topics"`
	Since     string   `toml:"since"`
	ChunkSize int      `toml:"chunk_size"`
	Lang      string   `toml:"lang"`
}

// QuotesConfig holds the defaults of the quotes job.
type QuotesConfig struct {
	Codes       []string      `toml:"codes"`
	Route       string        `toml:"route"`
	USTimeMode  string        `toml:"us_time_mode"`
	FundSpacing time.Duration `toml:"fund_spacing"`
}

// WeatherConfig holds the defaults of the weather job.
type WeatherConfig struct {
	QWeatherKey  string `toml:"qweather_key"`
	QWeatherHost string `toml:"qweather_host"`
	AmapKey      string `toml:"amap_key"`
	Location     string `toml:"location"`
	Route        string `toml:"route"`
}

// WeiboConfig holds the defaults of the super-topic check-in job.
type WeiboConfig struct {
	Route      string        `toml:"route"`
	MaxTopics  int           `toml:"max_topics"`
	SignDelay  time.Duration `toml:"sign_delay"`
	MaxRetry   int           `toml:"max_retry"`
	RetryDelay time.Duration `toml:"retry_delay"`
}

// ScheduleEntry runs Job with Argument on the cron Spec.
type ScheduleEntry struct {
	Job      string `toml:"job"`
	Spec     string `toml:"cron"`
	Argument string `toml:"argument"`
}

// DefaultNewsKeywords is the built-in keyword list of the news job.
var DefaultNewsKeywords = []string{
	"deepseek", "gemini", "gpt", "grok", "claude", "qwen", "llama", "mistral", "kimi", "minimax", "glm", "openai", "anthropic",
	"agent", "rag", "retrieval", "mcp", "tool", "function", "workflow", "orchestration", "planner", "memory", "vector",
	"vllm", "transformers", "llama.cpp", "langchain", "langgraph", "llamaindex", "autogen", "crew", "swe-bench", "bench",
}

// DefaultNewsSources are tried in order until one yields entries.
var DefaultNewsSources = []string{
	"https://r.jina.ai/https://www.aicpb.com/news",
	"https://r.jina.ai/https://www.aicpb.cn/news",
	"https://www.aicpb.com/news",
	"https://www.aicpb.cn/news",
}

const defaultConfigContent = `timezone = "Asia/Shanghai"

[server]
host = "127.0.0.1"
port = 8787
token = ""                        # or set PUSHKIT_API_TOKEN

[store]
path = "data/pushkit.db"

[log]
level = "info"
file = ""                         # e.g. "logs/pushkit.log" for a rotating JSON log

[http]
timeout = "15s"
direct_hosts = ["qt.gtimg.cn", "fundgz.1234567.com.cn"]

[routes]
# name = "http://127.0.0.1:7890"  # route name -> proxy URL, "DIRECT" = no proxy

[notify]
bark_server = "https://api.day.app"
device_key = ""                   # or set PUSHKIT_BARK_DEVICE_KEY
group = "pushkit"
body_budget = 400

[news]
max = 8

[trending]
max = 15
since = "weekly"
chunk_size = 4

[quotes]
codes = []
us_time_mode = "SUMMER"
fund_spacing = "250ms"

[weather]
qweather_key = ""                 # or set QWEATHER_API_KEY
amap_key = ""                     # or set AMAP_API_KEY

[weibo]
max_topics = 20
sign_delay = "2s"
max_retry = 2
retry_delay = "3s"

[[schedule]]
job = "news"
cron = "30 8 * * *"

[[schedule]]
job = "weather"
cron = "0 8 * * *"
`

// Load reads and parses the TOML config at path, creating a default file if
// none exists. Environment variables override values from the file.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("creating default config: %w", err)
		}
		slog.Info("created default config file", "path", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes a TOML document and applies defaults, environment overrides
// and validation.
func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Explicit zeroes are errors rather than silently defaulted.
	if err := validateExplicit(&cfg, md); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	applyDefaults(&cfg, md)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func createDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigContent), 0o644); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	return nil
}

func validateExplicit(cfg *Config, md toml.MetaData) error {
	if md.IsDefined("server", "port") && (cfg.Server.Port < 1 || cfg.Server.Port > 65535) {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}
	if md.IsDefined("news", "max") && cfg.News.Max < 1 {
		return fmt.Errorf("invalid news.max %d: must be >= 1", cfg.News.Max)
	}
	if md.IsDefined("trending", "max") && cfg.Trending.Max < 1 {
		return fmt.Errorf("invalid trending.max %d: must be >= 1", cfg.Trending.Max)
	}
	if md.IsDefined("http", "timeout") && cfg.HTTP.Timeout <= 0 {
		return fmt.Errorf("invalid http.timeout %s: must be positive", cfg.HTTP.Timeout)
	}
	if cfg.Weibo.MaxRetry < 0 {
		return fmt.Errorf("invalid weibo.max_retry %d: must be >= 0", cfg.Weibo.MaxRetry)
	}
	if cfg.Weibo.SignDelay < 0 || cfg.Weibo.RetryDelay < 0 || cfg.Quotes.FundSpacing < 0 {
		return errors.New("invalid delay: weibo.sign_delay, weibo.retry_delay and quotes.fund_spacing must not be negative")
	}
	return nil
}

// applyDefaults fills unset fields. Counts and delays where zero is a valid
// choice are defaulted only when the key is absent.
func applyDefaults(cfg *Config, md toml.MetaData) {
	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Shanghai"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8787
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "data/pushkit.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 20
	}
	if cfg.Log.MaxBackups == 0 {
		cfg.Log.MaxBackups = 5
	}
	if cfg.Log.MaxAgeDays == 0 {
		cfg.Log.MaxAgeDays = 14
	}
	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = 15 * time.Second
	}
	if cfg.Notify.BarkServer == "" {
		cfg.Notify.BarkServer = "https://api.day.app"
	}
	if cfg.Notify.BodyBudget == 0 {
		cfg.Notify.BodyBudget = 400
	}

	if len(cfg.News.Sources) == 0 {
		cfg.News.Sources = DefaultNewsSources
	}
	if cfg.News.Max == 0 {
		cfg.News.Max = 8
	}
	if len(cfg.News.Keywords) == 0 {
		cfg.News.Keywords = DefaultNewsKeywords
	}

	if cfg.Trending.Max == 0 {
		cfg.Trending.Max = 15
	}
	if cfg.Trending.Since == "" {
		cfg.Trending.Since = "weekly"
	}
	if cfg.Trending.ChunkSize == 0 {
		cfg.Trending.ChunkSize = 4
	}

	if cfg.Quotes.USTimeMode == "" {
		cfg.Quotes.USTimeMode = "SUMMER"
	}
	if !md.IsDefined("quotes", "fund_spacing") {
		cfg.Quotes.FundSpacing = 250 * time.Millisecond
	}

	if cfg.Weibo.MaxTopics == 0 {
		cfg.Weibo.MaxTopics = 20
	}
	if !md.IsDefined("weibo", "sign_delay") {
		cfg.Weibo.SignDelay = 2 * time.Second
	}
	if !md.IsDefined("weibo", "max_retry") {
		cfg.Weibo.MaxRetry = 2
	}
	if !md.IsDefined("weibo", "retry_delay") {
		cfg.Weibo.RetryDelay = 3 * time.Second
	}
}

// applyEnvOverrides lets secrets live outside the config file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PUSHKIT_API_TOKEN"); v != "" {
		cfg.Server.Token = v
	}
	if v := os.Getenv("PUSHKIT_BARK_DEVICE_KEY"); v != "" {
		cfg.Notify.DeviceKey = v
	}
	if v := os.Getenv("QWEATHER_API_KEY"); v != "" {
		cfg.Weather.QWeatherKey = v
	}
	if v := os.Getenv("AMAP_API_KEY"); v != "" {
		cfg.Weather.AmapKey = v
	}
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronParser parses the five-field schedule specs accepted in [[schedule]].
func CronParser() cron.Parser { return cronParser }

func validate(cfg *Config) error {
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d: must be between 1 and 65535", cfg.Server.Port)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q: must be debug, info, warn or error", cfg.Log.Level)
	}

	for name, proxy := range cfg.Routes {
		if strings.EqualFold(proxy, "DIRECT") {
			continue
		}
		u, err := url.Parse(proxy)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid routes.%s %q: must be a proxy URL or \"DIRECT\"", name, proxy)
		}
	}

	switch cfg.Trending.Since {
	case "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("invalid trending.since %q: must be daily, weekly or monthly", cfg.Trending.Since)
	}

	for i, e := range cfg.Schedule {
		if e.Job == "" {
			return fmt.Errorf("invalid schedule[%d]: job is required", i)
		}
		if _, err := cronParser.Parse(e.Spec); err != nil {
			return fmt.Errorf("invalid schedule[%d] cron %q: %w", i, e.Spec, err)
		}
	}

	if cfg.Notify.DeviceKey == "" {
		slog.Warn("notify.device_key is empty: notifications are only logged and recorded")
	}
	return nil
}
