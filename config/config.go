package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// Config is the process configuration, read once from the environment.
type Config struct {
	Port   string
	Env    string
	APIKey string

	LogLevel string

	OllamaBaseURL string
	OllamaTimeout time.Duration

	SummarizerModel string
	OptimizerModel  string
	CoderModel      string

	DBDriver    string // sqlite | postgres
	DBPath      string
	PostgresURI string

	RedisAddr      string
	ModelsCacheTTL time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	// TrustedProxies lists the IPs or CIDRs allowed to set X-Forwarded-For.
	// Empty means the limiter keys on the socket address only.
	TrustedProxies []string
}

// IsProduction reports whether internal error detail must be hidden.
func (c Config) IsProduction() bool { return c.Env == EnvProduction }

// Load reads the environment into a Config. Call godotenv.Load first if a
// .env file should be honoured.
func Load() (Config, error) {
	c := Config{
		Port:            getenv("PORT", "3000"),
		Env:             strings.ToLower(firstEnv("APP_ENV", "GO_ENV")),
		APIKey:          strings.TrimSpace(os.Getenv("API_KEY")),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		OllamaBaseURL:   strings.TrimRight(getenv("OLLAMA_BASE_URL", "http://localhost:11434"), "/"),
		SummarizerModel: getenv("SUMMARIZER_MODEL", "phi3"),
		OptimizerModel:  getenv("OPTIMIZER_MODEL", "mistral"),
		CoderModel:      getenv("CODER_MODEL", "deepseek-coder:6.7b"),
		DBDriver:        strings.ToLower(getenv("DB_DRIVER", "sqlite")),
		DBPath:          getenv("DB_PATH", "database.sqlite"),
		PostgresURI:     os.Getenv("POSTGRES_URI"),
		RedisAddr:       firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
	}
	if c.Env == "" {
		c.Env = EnvDevelopment
	}

	var err error
	if c.OllamaTimeout, err = durationEnv("OLLAMA_TIMEOUT", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if c.ModelsCacheTTL, err = durationEnv("MODELS_CACHE_TTL", time.Minute); err != nil {
		return Config{}, err
	}
	if c.RateLimitWindow, err = durationEnv("RATE_LIMIT_WINDOW", time.Minute); err != nil {
		return Config{}, err
	}
	if c.RateLimitMax, err = intEnv("RATE_LIMIT_MAX", 20); err != nil {
		return Config{}, err
	}

	if c.TrustedProxies, err = proxiesEnv("TRUSTED_PROXIES"); err != nil {
		return Config{}, err
	}

	switch c.DBDriver {
	case "sqlite", "sqlite3":
		c.DBDriver = "sqlite"
	case "postgres", "postgresql":
		c.DBDriver = "postgres"
		if c.PostgresURI == "" {
			return Config{}, errors.New("POSTGRES_URI environment variable is not set")
		}
	default:
		return Config{}, fmt.Errorf("DB_DRIVER %q is not supported (sqlite|postgres)", c.DBDriver)
	}

	if c.RateLimitMax <= 0 {
		return Config{}, errors.New("RATE_LIMIT_MAX must be > 0")
	}
	if c.RateLimitWindow <= 0 {
		return Config{}, errors.New("RATE_LIMIT_WINDOW must be > 0")
	}
	if c.OllamaTimeout <= 0 {
		return Config{}, errors.New("OLLAMA_TIMEOUT must be > 0")
	}
	return c, nil
}

// RequireAPIKey fails when the shared secret is missing; only the server needs it.
// API_KEY is trimmed on load because HTTP parsing strips the whitespace
// around header values, so a padded key could never match a request.
func (c Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return errors.New("API_KEY environment variable is not set")
	}
	return nil
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", k, v, err)
	}
	return d, nil
}

func intEnv(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", k, v, err)
	}
	return n, nil
}

func proxiesEnv(k string) ([]string, error) {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return nil, fmt.Errorf("%s: invalid IP or CIDR %q", k, p)
			}
		}
		out = append(out, p)
	}
	return out, nil
}
