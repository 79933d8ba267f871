package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration required by the API process.
// Values come from env; a .env file in the working directory is loaded first when present.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Webhook   WebhookConfig
	Provider  ProviderConfig
	Mail      MailConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Reports   ReportsConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	// Host is optional. Without it the scheduler runs without a dispatch lock.
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type WebhookConfig struct {
	// Secret is the HMAC secret shared with the voice provider.
	// Empty disables signature verification.
	Secret string
	// TargetAgentID restricts ingestion to one agent. Empty accepts all agents.
	TargetAgentID string
}

type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type MailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	SendTimeout  time.Duration
}

type SchedulerConfig struct {
	Enabled        bool
	TickInterval   time.Duration
	ReloadInterval time.Duration
	LockTTL        time.Duration
}

type NotifyConfig struct {
	Enabled      bool
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
}

type ReportsConfig struct {
	// SeedFile is an optional YAML file with report configs created at startup.
	SeedFile string
}

func Load() (Config, error) {
	// Missing .env is the normal case outside local development.
	_ = godotenv.Load()

	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Webhook.Secret = os.Getenv("ELEVENLABS_WEBHOOK_SECRET")
	c.Webhook.TargetAgentID = strings.TrimSpace(os.Getenv("ELEVENLABS_AGENT_ID"))

	c.Provider.BaseURL = strings.TrimSpace(os.Getenv("ELEVENLABS_BASE_URL"))
	c.Provider.APIKey = os.Getenv("ELEVENLABS_API_KEY")
	c.Provider.Timeout = mustDuration("ELEVENLABS_TIMEOUT")

	c.Mail.SMTPHost = strings.TrimSpace(os.Getenv("SMTP_HOST"))
	if c.Mail.SMTPHost != "" {
		n, err := mustInt("SMTP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Mail.SMTPPort = n
	}
	c.Mail.SMTPUsername = strings.TrimSpace(os.Getenv("SMTP_USERNAME"))
	c.Mail.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	c.Mail.From = strings.TrimSpace(os.Getenv("MAIL_FROM"))
	c.Mail.SendTimeout = mustDuration("MAIL_SEND_TIMEOUT")

	c.Scheduler.Enabled = optionalBool("SCHEDULER_ENABLED", true)
	c.Scheduler.TickInterval = mustDuration("SCHEDULER_TICK")
	c.Scheduler.ReloadInterval = mustDuration("SCHEDULER_RELOAD")
	c.Scheduler.LockTTL = mustDuration("SCHEDULER_LOCK_TTL")

	c.Notify.Enabled = optionalBool("NOTIFY_ENABLED", true)
	c.Notify.PollInterval = mustDuration("NOTIFY_POLL_INTERVAL")
	c.Notify.BatchSize, parseErrs = optionalInt(parseErrs, "NOTIFY_BATCH_SIZE")
	c.Notify.MaxAttempts, parseErrs = optionalInt(parseErrs, "NOTIFY_MAX_ATTEMPTS")

	c.Reports.SeedFile = strings.TrimSpace(os.Getenv("REPORT_SEED_FILE"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = "https://api.elevenlabs.io"
	}
	if c.Provider.Timeout <= 0 {
		c.Provider.Timeout = 15 * time.Second
	}

	if c.Mail.SMTPHost != "" {
		if c.Mail.SMTPPort <= 0 || c.Mail.SMTPPort > 65535 {
			errs = append(errs, fmt.Errorf("SMTP_PORT must be a valid port, got %d", c.Mail.SMTPPort))
		}
		if c.Mail.From == "" {
			errs = append(errs, errors.New("MAIL_FROM is required when SMTP_HOST is set"))
		}
	} else if c.IsProduction() {
		errs = append(errs, errors.New("SMTP_HOST is required in production"))
	}
	if c.Mail.SendTimeout <= 0 {
		c.Mail.SendTimeout = 30 * time.Second
	}

	if c.Scheduler.TickInterval <= 0 {
		c.Scheduler.TickInterval = time.Minute
	}
	if c.Scheduler.ReloadInterval <= 0 {
		c.Scheduler.ReloadInterval = time.Hour
	}
	if c.Scheduler.LockTTL <= 0 {
		c.Scheduler.LockTTL = 10 * time.Minute
	}

	if c.Notify.PollInterval <= 0 {
		c.Notify.PollInterval = 15 * time.Second
	}
	if c.Notify.BatchSize <= 0 {
		c.Notify.BatchSize = 20
	}
	if c.Notify.MaxAttempts <= 0 {
		c.Notify.MaxAttempts = 5
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

// RedisAddr returns "" when Redis is not configured.
func (c Config) RedisAddr() string {
	if c.Redis.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optionalInt(errs []error, key string) (int, []error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n, errs
}

func optionalBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
