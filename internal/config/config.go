package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Provider modes select which ForecastSource variant feeds the trend engine.
const (
	// ModeGridpoints pairs the historical archive with the government
	// gridpoint forecast.
	ModeGridpoints = "gridpoints"
	// ModeConditions pairs the historical archive with the bucketized
	// 3-hourly forecast from the conditions provider.
	ModeConditions = "conditions"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	ProviderMode string

	ArchiveBaseURL string
	ArchiveToken   string
	ArchiveTimeout time.Duration

	ConditionsBaseURL string
	ConditionsAPIKey  string
	ConditionsTimeout time.Duration

	GridBaseURL   string
	GridUserAgent string
	GridTimeout   time.Duration

	GeoIPBaseURL string
	GeoIPTimeout time.Duration

	RequestTimeout time.Duration

	CacheTTL              time.Duration
	CacheBackend          string // "in_memory" or "memcached"
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	OverloadWindow   time.Duration
	DegradedWindow   time.Duration
	DegradedErrorPct int

	ShutdownTimeout time.Duration
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Providers struct {
		Mode string `yaml:"mode"`

		Archive struct {
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
		} `yaml:"archive"`

		Conditions struct {
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
		} `yaml:"conditions"`

		Grid struct {
			URL       string `yaml:"url"`
			UserAgent string `yaml:"user_agent"`
			Timeout   string `yaml:"timeout"`
		} `yaml:"grid"`

		GeoIP struct {
			URL     string `yaml:"url"`
			Timeout string `yaml:"timeout"`
		} `yaml:"geoip"`
	} `yaml:"providers"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Lifecycle struct {
		OverloadWindow   string `yaml:"overload_window"`
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"lifecycle"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

type secretsFile struct {
	ArchiveToken     string `yaml:"archive_token"`
	ConditionsAPIKey string `yaml:"conditions_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml, with a .env file loaded first if present. Credentials
// come from ARCHIVE_TOKEN / CONDITIONS_API_KEY env or the secrets file; both
// may be absent, in which case the affected gateways fail per-request with a
// synthetic 401 rather than blocking startup.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.ProviderMode = strings.TrimSpace(strings.ToLower(os.Getenv("PROVIDER_MODE")))
	if cfg.ProviderMode == "" {
		cfg.ProviderMode = strings.TrimSpace(strings.ToLower(fc.Providers.Mode))
	}
	if cfg.ProviderMode == "" {
		cfg.ProviderMode = ModeGridpoints
	}

	cfg.ArchiveBaseURL = fc.Providers.Archive.URL
	if cfg.ArchiveBaseURL == "" {
		cfg.ArchiveBaseURL = "https://www.ncei.noaa.gov/cdo-web/api/v2"
	}
	cfg.ArchiveTimeout = parseDuration(fc.Providers.Archive.Timeout, 20*time.Second)

	cfg.ConditionsBaseURL = fc.Providers.Conditions.URL
	if cfg.ConditionsBaseURL == "" {
		cfg.ConditionsBaseURL = "https://api.openweathermap.org"
	}
	cfg.ConditionsTimeout = parseDuration(fc.Providers.Conditions.Timeout, 20*time.Second)

	cfg.GridBaseURL = fc.Providers.Grid.URL
	if cfg.GridBaseURL == "" {
		cfg.GridBaseURL = "https://api.weather.gov"
	}
	cfg.GridUserAgent = fc.Providers.Grid.UserAgent
	if cfg.GridUserAgent == "" {
		// The government API rejects requests without a User-Agent.
		cfg.GridUserAgent = "trend-service (ops@wxtrends.example)"
	}
	cfg.GridTimeout = parseDuration(fc.Providers.Grid.Timeout, 10*time.Second)

	cfg.GeoIPBaseURL = fc.Providers.GeoIP.URL
	if cfg.GeoIPBaseURL == "" {
		cfg.GeoIPBaseURL = "http://ip-api.com"
	}
	cfg.GeoIPTimeout = parseDuration(fc.Providers.GeoIP.Timeout, 5*time.Second)

	cfg.ArchiveToken = os.Getenv("ARCHIVE_TOKEN")
	cfg.ConditionsAPIKey = os.Getenv("CONDITIONS_API_KEY")
	if cfg.ArchiveToken == "" || cfg.ConditionsAPIKey == "" {
		secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
		secretsData, err := os.ReadFile(secretsPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read secrets file: %w", err)
			}
		} else {
			var sec secretsFile
			if err := yaml.Unmarshal(secretsData, &sec); err != nil {
				return nil, fmt.Errorf("parse secrets file: %w", err)
			}
			if cfg.ArchiveToken == "" {
				cfg.ArchiveToken = sec.ArchiveToken
			}
			if cfg.ConditionsAPIKey == "" {
				cfg.ConditionsAPIKey = sec.ConditionsAPIKey
			}
		}
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 30*time.Second)

	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 5*time.Minute)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.OverloadWindow = parseDuration(fc.Lifecycle.OverloadWindow, 60*time.Second)
	cfg.DegradedWindow = parseDuration(fc.Lifecycle.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Lifecycle.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	switch cfg.ProviderMode {
	case ModeGridpoints, ModeConditions:
		// valid
	default:
		return fmt.Errorf("providers.mode must be %s or %s, got %q", ModeGridpoints, ModeConditions, cfg.ProviderMode)
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.RequestTimeout <= cfg.ArchiveTimeout {
		cfg.RequestTimeout = cfg.ArchiveTimeout + 10*time.Second
	}
	return nil
}
