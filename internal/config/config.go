package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
)

type Config struct {
	HTTPAddr             string   `envconfig:"HTTP_ADDR" default:":8080"`
	DatabaseURL          string   `envconfig:"DATABASE_URL" default:"memoflux.db"`
	CORSAllowedOrigins   []string `envconfig:"CORS_ALLOWED_ORIGINS"`
	CORSAllowCredentials bool     `envconfig:"CORS_ALLOW_CREDENTIALS" default:"false"`

	// APITokenSecret signs and verifies API bearer tokens. Empty disables API auth.
	APITokenSecret string `envconfig:"API_TOKEN_SECRET"`

	AIGenBaseURL         string        `envconfig:"AIGEN_BASE_URL"`
	AIGenToken           string        `envconfig:"AIGEN_TOKEN"`
	AIGenRequestTimeout  time.Duration `envconfig:"AIGEN_REQUEST_TIMEOUT" default:"30s"`
	AIGenResourceTimeout time.Duration `envconfig:"AIGEN_RESOURCE_TIMEOUT" default:"60s"`

	InboxDir          string        `envconfig:"INBOX_DIR"`
	InboxFile         string        `envconfig:"INBOX_FILE" default:"imageFromShortcut.png"`
	InboxPollInterval time.Duration `envconfig:"INBOX_POLL_INTERVAL" default:"30s"`

	TagSweepInterval   time.Duration `envconfig:"TAG_SWEEP_INTERVAL" default:"0s"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"800ms"`

	TesseractPath string `envconfig:"TESSERACT_PATH" default:"tesseract"`
	OCRLanguages  string `envconfig:"OCR_LANGUAGES" default:"chi_sim+eng"`
	ImageQuality  string `envconfig:"IMAGE_QUALITY" default:"default"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
}

// Load reads a .env file when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	origins := cfg.CORSAllowedOrigins[:0]
	for _, o := range cfg.CORSAllowedOrigins {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSAllowedOrigins = origins
	cfg.AIGenBaseURL = strings.TrimRight(strings.TrimSpace(cfg.AIGenBaseURL), "/")

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.ImageQuality {
	case "default", "high", "low":
	default:
		return fmt.Errorf("invalid IMAGE_QUALITY %q, expected default, high or low", c.ImageQuality)
	}
	if c.AIGenRequestTimeout <= 0 || c.AIGenResourceTimeout <= 0 {
		return fmt.Errorf("AIGEN timeouts must be positive")
	}
	if c.WorkerPollInterval <= 0 {
		return fmt.Errorf("WORKER_POLL_INTERVAL must be positive")
	}
	if c.InboxDir != "" && c.InboxPollInterval <= 0 {
		return fmt.Errorf("INBOX_POLL_INTERVAL must be positive when INBOX_DIR is set")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q, expected console or json", c.LogFormat)
	}
	return nil
}
