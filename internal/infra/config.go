package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"wanx/internal/domain"
)

const (
	DefaultBaseURL      = "https://dashscope.aliyuncs.com"
	DefaultModel        = "wanx2.1-t2i-turbo"
	DefaultPollInterval = 2 * time.Second
	DefaultTimeout      = 300 * time.Second
	DefaultHTTPTimeout  = 60 * time.Second
)

// Config represents the client configuration. Values come from built-in
// defaults, then an optional YAML file, then environment variables.
type Config struct {
	AppEnv       string
	APIKey       string
	BaseURL      string
	Model        string
	PollInterval time.Duration
	Timeout      time.Duration
	HTTPTimeout  time.Duration
	OutputDir    string
	Lang         string
}

// fileConfig mirrors the optional YAML configuration file.
type fileConfig struct {
	DashScope struct {
		APIKey  string `yaml:"api_key"`
		BaseURL string `yaml:"base_url"`
		Model   string `yaml:"model"`
	} `yaml:"dashscope"`
	Poll struct {
		Interval string `yaml:"interval"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"poll"`
	HTTP struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"http"`
	OutputDir string `yaml:"output_dir"`
	Lang      string `yaml:"lang"`
}

// EnvFiles are loaded, when present, before the environment is read.
var EnvFiles = []string{".env", ".env.local"}

// LoadConfig loads configuration and validates that a credential is present.
// path may be empty, in which case WANX_CONFIG is consulted.
func LoadConfig(path string) (*Config, error) {
	for _, f := range EnvFiles {
		// Missing files are fine.
		_ = godotenv.Load(f)
	}

	cfg := &Config{
		AppEnv:       "production",
		BaseURL:      DefaultBaseURL,
		Model:        DefaultModel,
		PollInterval: DefaultPollInterval,
		Timeout:      DefaultTimeout,
		HTTPTimeout:  DefaultHTTPTimeout,
		OutputDir:    ".",
	}

	if path == "" {
		path = os.Getenv("WANX_CONFIG")
	}
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.APIKey = strings.TrimSpace(getEnv("DASHSCOPE_API_KEY", cfg.APIKey))
	cfg.BaseURL = strings.TrimRight(getEnv("DASHSCOPE_BASE_URL", cfg.BaseURL), "/")
	cfg.Model = getEnv("WANX_MODEL", cfg.Model)
	cfg.OutputDir = getEnv("WANX_OUTPUT_DIR", cfg.OutputDir)
	cfg.Lang = getEnv("WANX_LANG", cfg.Lang)
	if cfg.Lang == "" {
		cfg.Lang = os.Getenv("LANG")
	}

	var err error
	if cfg.PollInterval, err = getEnvDuration("WANX_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = getEnvDuration("WANX_TIMEOUT", cfg.Timeout); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getEnvDuration("WANX_HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return nil, err
	}

	if cfg.APIKey == "" {
		return nil, &domain.ConfigError{Key: "DASHSCOPE_API_KEY", Reason: "is required"}
	}
	if cfg.PollInterval <= 0 {
		return nil, &domain.ConfigError{Key: "WANX_POLL_INTERVAL", Reason: "must be positive"}
	}
	if cfg.Timeout <= 0 {
		return nil, &domain.ConfigError{Key: "WANX_TIMEOUT", Reason: "must be positive"}
	}

	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &domain.ConfigError{Key: path, Reason: fmt.Sprintf("read config file: %v", err)}
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return &domain.ConfigError{Key: path, Reason: fmt.Sprintf("parse config file: %v", err)}
	}

	c.APIKey = firstNonEmpty(fc.DashScope.APIKey, c.APIKey)
	c.BaseURL = firstNonEmpty(fc.DashScope.BaseURL, c.BaseURL)
	c.Model = firstNonEmpty(fc.DashScope.Model, c.Model)
	c.OutputDir = firstNonEmpty(fc.OutputDir, c.OutputDir)
	c.Lang = firstNonEmpty(fc.Lang, c.Lang)

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"poll.interval", fc.Poll.Interval, &c.PollInterval},
		{"poll.timeout", fc.Poll.Timeout, &c.Timeout},
		{"http.timeout", fc.HTTP.Timeout, &c.HTTPTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.value) == "" {
			continue
		}
		parsed, err := parseDuration(d.value)
		if err != nil {
			return &domain.ConfigError{Key: d.key, Reason: err.Error()}
		}
		*d.dst = parsed
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	d, err := parseDuration(v)
	if err != nil {
		return 0, &domain.ConfigError{Key: key, Reason: err.Error()}
	}
	return d, nil
}

// parseDuration accepts Go duration strings ("90s", "5m") or a bare number of
// seconds.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
