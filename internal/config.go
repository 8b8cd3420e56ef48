package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env           string              `mapstructure:"env" envconfig:"APP_ENV" default:"development"`
	Server        ServerConfig        `mapstructure:"http_server" envconfig:"HTTP_SERVER"`
	Database      DatabaseConfig      `mapstructure:"database" envconfig:"DATABASE"`
	Security      SecurityConfig      `mapstructure:"security" envconfig:"SECURITY" validate:"required"`
	Processor     ProcessorConfig     `mapstructure:"processor" envconfig:"PROCESSOR"`
	Payout        PayoutConfig        `mapstructure:"payout" envconfig:"PAYOUT"`
	Redis         RedisConfig         `mapstructure:"redis" envconfig:"REDIS"`
	Broker        BrokerConfig        `mapstructure:"broker" envconfig:"BROKER"`
	Mailer        MailerConfig        `mapstructure:"mailer" envconfig:"MAILER"`
	Observability ObservabilityConfig `mapstructure:"observability" envconfig:"OBSERVABILITY"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" envconfig:"BASE_URL"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"20" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" default:"5" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" default:"30m" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" envconfig:"CONN_MAX_IDLE_TIME" default:"5m" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" envconfig:"SOURCE" validate:"required"`
}

type SecurityConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" envconfig:"JWT_SECRET" validate:"required,min=32"`
	JWTIssuer string `mapstructure:"jwt_issuer" envconfig:"JWT_ISSUER" default:"care-payments"`

	AccessTokenTTL time.Duration `mapstructure:"access_token_ttl" envconfig:"ACCESS_TOKEN_TTL" default:"1h"`
}

const (
	ProcessorDriverStripe = "stripe"
	ProcessorDriverHTTP   = "http"
)

type ProcessorConfig struct {
	Driver            string        `mapstructure:"driver" envconfig:"DRIVER" default:"stripe" validate:"required,oneof=stripe http"`
	SecretKey         string        `mapstructure:"secret_key" envconfig:"SECRET_KEY" validate:"required_if=Driver stripe"`
	WebhookSecret     string        `mapstructure:"webhook_secret" envconfig:"WEBHOOK_SECRET"`
	APIURL            string        `mapstructure:"api_url" envconfig:"API_URL" validate:"required_if=Driver http,omitempty,url"`
	APIKey            string        `mapstructure:"api_key" envconfig:"API_KEY"`
	Currency          string        `mapstructure:"currency" envconfig:"CURRENCY" default:"usd" validate:"required,len=3"`
	Timeout           time.Duration `mapstructure:"timeout" envconfig:"TIMEOUT" default:"15s" validate:"required,min=1s"`
	OnboardingRefresh string        `mapstructure:"onboarding_refresh_url" envconfig:"ONBOARDING_REFRESH_URL" validate:"required,url"`
	OnboardingReturn  string        `mapstructure:"onboarding_return_url" envconfig:"ONBOARDING_RETURN_URL" validate:"required,url"`
}

type PayoutConfig struct {
	Timezone    string `mapstructure:"timezone" envconfig:"TIMEZONE" default:"America/New_York" validate:"required"`
	Concurrency int    `mapstructure:"concurrency" envconfig:"CONCURRENCY" default:"4" validate:"min=1,max=64"`
	// Weekday and Time define when the scheduler fires, e.g. "monday" at "06:00".
	Weekday string `mapstructure:"weekday" envconfig:"WEEKDAY" default:"monday" validate:"required,oneof=sunday monday tuesday wednesday thursday friday saturday"`
	Time    string `mapstructure:"time" envconfig:"TIME" default:"06:00" validate:"required"`
	// LockTTL bounds how long a crashed run can hold the distributed lock.
	LockTTL time.Duration `mapstructure:"lock_ttl" envconfig:"LOCK_TTL" default:"30m" validate:"required,min=1m"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled" envconfig:"ENABLED"`
	Addr     string `mapstructure:"addr" envconfig:"ADDR" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	DB       int    `mapstructure:"db" envconfig:"DB"`
}

type BrokerConfig struct {
	Enabled  bool   `mapstructure:"enabled" envconfig:"ENABLED"`
	URL      string `mapstructure:"url" envconfig:"URL" validate:"required_if=Enabled true"`
	Exchange string `mapstructure:"exchange" envconfig:"EXCHANGE" default:"payments.events"`
}

type MailerConfig struct {
	Enabled  bool   `mapstructure:"enabled" envconfig:"ENABLED"`
	Host     string `mapstructure:"host" envconfig:"HOST" validate:"required_if=Enabled true"`
	Port     int    `mapstructure:"port" envconfig:"PORT" default:"587"`
	Username string `mapstructure:"username" envconfig:"USERNAME"`
	Password string `mapstructure:"password" envconfig:"PASSWORD"`
	From     string `mapstructure:"from" envconfig:"FROM" validate:"required_if=Enabled true,omitempty,email"`
	// OpsAddress receives payout failures and reconciliation warnings.
	OpsAddress string `mapstructure:"ops_address" envconfig:"OPS_ADDRESS" validate:"required_if=Enabled true,omitempty,email"`
}

type ObservabilityConfig struct {
	Tracing TracingConfig `mapstructure:"tracing" envconfig:"TRACING"`
	Logging LoggingConfig `mapstructure:"logging" envconfig:"LOGGING"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" envconfig:"ENABLED"`
	ServiceName  string  `mapstructure:"service_name" envconfig:"SERVICE_NAME" default:"care-payments" validate:"required_if=Enabled true"`
	SamplingRate float64 `mapstructure:"sampling_rate" envconfig:"SAMPLING_RATE" default:"1" validate:"min=0,max=1"`
	Endpoint     string  `mapstructure:"endpoint" envconfig:"ENDPOINT" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" envconfig:"LEVEL" default:"info" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" envconfig:"FORMAT" default:"json" validate:"required,oneof=json text"`
}

// LoadConfigFromEnv builds the config from environment variables, used for container deployments.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env config: %w", err)
	}
	return &cfg, nil
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Payout.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payout config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *PayoutConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, _, err := c.ScheduleClock(); err != nil {
		return err
	}
	return nil
}

// Location resolves the business timezone payout weeks are computed in.
func (c *PayoutConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ScheduleClock parses Time as HH:MM.
func (c *PayoutConfig) ScheduleClock() (hour, minute uint, err error) {
	t, err := time.Parse("15:04", c.Time)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid schedule time %q: %w", c.Time, err)
	}
	return uint(t.Hour()), uint(t.Minute()), nil
}

func (c *PayoutConfig) ScheduleWeekday() time.Weekday {
	switch strings.ToLower(c.Weekday) {
	case "sunday":
		return time.Sunday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	case "saturday":
		return time.Saturday
	default:
		return time.Monday
	}
}
