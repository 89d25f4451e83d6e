// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

type Config struct {
	Port        string `env:"PORT,default=3333"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	AutoMigrate bool   `env:"AUTO_MIGRATE,default=true"`

	ClerkSecretKey     string `env:"CLERK_SECRET_KEY,required"`
	ClerkWebhookSecret string `env:"CLERK_WEBHOOK_SECRET"`

	PaddleAPIKey        string `env:"PADDLE_API_KEY"`
	PaddleWebhookSecret string `env:"PADDLE_WEBHOOK_SECRET"`
	PaddleEnvironment   string `env:"PADDLE_ENVIRONMENT,default=sandbox"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	GitHubToken          string        `env:"GITHUB_TOKEN"`
	GitHubGraphQLURL     string        `env:"GITHUB_GRAPHQL_URL,default=https://api.github.com/graphql"`
	ContributionCacheTTL time.Duration `env:"CONTRIBUTION_CACHE_TTL,default=1h"`

	StreakTimezone      string `env:"STREAK_TIMEZONE,default=UTC"`
	ActivityWorkers     int    `env:"ACTIVITY_WORKERS,default=4"`
	ActivityMaxAttempts int    `env:"ACTIVITY_MAX_ATTEMPTS,default=3"`

	FCMCredentialsFile string `env:"FCM_CREDENTIALS_FILE,default=./serviceAccountKey.json"`

	MailgunDomain string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `env:"MAILGUN_API_KEY"`
	MailSender    string `env:"MAIL_SENDER,default=Build In Public <sponsors@buildinpublic.dev>"`

	// TrustedProxies lists comma-separated proxy IPs or CIDRs whose
	// X-Forwarded-For header is believed.
	TrustedProxies string `env:"TRUSTED_PROXIES"`

	MetricsUser string `env:"METRICS_USER"`
	MetricsPass string `env:"METRICS_PASS"`

	PublicBaseURL string `env:"PUBLIC_BASE_URL,default=http://localhost:3333"`
	LogLevel      string `env:"LOG_LEVEL,default=info"`
	LogFormat     string `env:"LOG_FORMAT,default=json"`
}

// Load reads an optional .env file and decodes the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found")
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL environment variable is not set")
	}
	if c.ClerkSecretKey == "" {
		return errors.New("CLERK_SECRET_KEY environment variable is not set")
	}
	if _, err := time.LoadLocation(c.StreakTimezone); err != nil {
		return fmt.Errorf("invalid STREAK_TIMEZONE %q: %w", c.StreakTimezone, err)
	}
	if c.ContributionCacheTTL <= 0 {
		return fmt.Errorf("CONTRIBUTION_CACHE_TTL must be positive, got %s", c.ContributionCacheTTL)
	}
	if c.ActivityWorkers < 1 {
		return fmt.Errorf("ACTIVITY_WORKERS must be at least 1, got %d", c.ActivityWorkers)
	}
	if c.ActivityMaxAttempts < 1 {
		return fmt.Errorf("ACTIVITY_MAX_ATTEMPTS must be at least 1, got %d", c.ActivityMaxAttempts)
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// TrustedProxyPrefixes parses TRUSTED_PROXIES. A bare address is a single-host prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, part := range strings.Split(c.TrustedProxies, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "/") {
			p, err := netip.ParsePrefix(part)
			if err != nil {
				return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", part, err)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(part)
		if err != nil {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: %w", part, err)
		}
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
	}
	return prefixes, nil
}

// Location returns the timezone used for streak day boundaries.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.StreakTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) PaddleSandbox() bool {
	return !strings.EqualFold(c.PaddleEnvironment, "production")
}

// ConfigureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logrus logger.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	if strings.EqualFold(c.LogFormat, "text") {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		return
	}
	log.SetFormatter(&log.JSONFormatter{})
}
