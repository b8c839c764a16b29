package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port        string `yaml:"port" env:"PORT" env-default:"2121"`
	CORSOrigin  string `yaml:"cors_origin" env:"CORS_ORIGIN" env-default:"http://localhost:8080"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	RatePerSec  int    `yaml:"rate_per_sec" env:"RATE_PER_SEC" env-default:"10"`
	JWTSecret   string `yaml:"jwt_secret" env:"JWT_SECRET" env-default:"change-me-in-production"`
	AdminUser   string `yaml:"admin_user" env:"ADMIN_USER" env-default:"admin"`
	AdminPass   string `yaml:"admin_pass" env:"ADMIN_PASS" env-default:"admin"`
	CountryCode string `yaml:"country_code" env:"COUNTRY_CODE" env-default:"62"`

	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Blast    BlastConfig    `yaml:"blast"`
	Cloud    CloudConfig    `yaml:"cloud"`
}

type DatabaseConfig struct {
	// Dialect selects the backing store: "sqlite" (default, single file,
	// no external service) or "postgres".
	Dialect string `yaml:"dialect" env:"DB_DIALECT" env-default:"sqlite"`
	// URL is a postgres connection string, or a file path for sqlite.
	URL string `yaml:"url" env:"DATABASE_URL" env-default:"gowa-blast.db"`
}

type SessionConfig struct {
	// QRTimeout bounds how long a pairing attempt waits for a scan.
	QRTimeout time.Duration `yaml:"qr_timeout" env:"QR_TIMEOUT" env-default:"3m"`
	// ReconnectDelay is the fixed backoff before re-dialing after an
	// unexpected drop.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" env:"RECONNECT_DELAY" env-default:"5s"`
}

type BlastConfig struct {
	// PaceInterval is the delay inserted after every send in a blast to
	// stay under the remote side's rate limits.
	PaceInterval time.Duration `yaml:"pace_interval" env:"BLAST_PACE_INTERVAL" env-default:"3s"`
}

type CloudConfig struct {
	BaseURL string        `yaml:"base_url" env:"CLOUD_BASE_URL" env-default:"https://graph.facebook.com/v19.0"`
	Timeout time.Duration `yaml:"timeout" env:"CLOUD_TIMEOUT" env-default:"30s"`
}

// Load reads the optional yaml config file, then environment overrides.
// Path priority: -config flag > CONFIG_PATH env > none (env only).
func Load() (*Config, error) {
	path := fetchConfigPath()

	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return &cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env config: %w", err)
	}
	return &cfg, nil
}

func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}
	return res
}
