package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration required by the dialer agent.
// Values come from env, optionally overlaid on a dialer.yaml file.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	Backend   BackendConfig
	Telephony TelephonyConfig
	Session   SessionConfig
	DB        DBConfig
	Redis     RedisConfig
	NATS      NATSConfig
}

type AppConfig struct {
	Env      string
	Port     int
	LogLevel string
}

// BackendConfig points at the REST API that owns users, contacts,
// performance data and call records.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

const (
	DialModeDevice = "device"
	DialModeBridge = "bridge"
)

type TelephonyConfig struct {
	// DialMode selects how outbound calls are placed:
	// device connects through the SDK, bridge asks the backend to originate.
	DialMode string

	// DefaultCountryCode is prefixed to numbers without a leading "+".
	DefaultCountryCode string

	RingTimeout     time.Duration
	ReadyFallback   time.Duration
	MetadataTimeout time.Duration

	// GuardSessions enforces one active call per user across processes (needs Redis).
	GuardSessions bool
	GuardTTL      time.Duration
}

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type SessionConfig struct {
	Store            string
	ValidateInterval time.Duration
	KeyPrefix        string
}

// DBConfig is optional; an empty Host keeps the session journal in memory.
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
	Host     string
	Port     int
	Password string
	DB       int
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

// Load reads configuration through viper. A dialer.yaml in the working
// directory or ./configs is optional; env always wins.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("dialer")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config file: %w", err)
		}
	}
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("APP_PORT", 8080)
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("TELEPHONY_DIAL_MODE", DialModeDevice)
	v.SetDefault("TELEPHONY_DEFAULT_COUNTRY_CODE", "+1")
	v.SetDefault("SESSION_STORE", SessionStoreMemory)
	v.SetDefault("SESSION_KEY_PREFIX", "levlyfy:")
	v.SetDefault("NATS_SUBJECT_PREFIX", "dialer.session")
}

func fromViper(v *viper.Viper) (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(v.GetString("APP_ENV"))
	c.App.LogLevel = strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL")))
	{
		n, err := mustInt(v, "APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.Backend.BaseURL = strings.TrimSpace(v.GetString("BACKEND_BASE_URL"))
	c.Backend.Timeout = mustDuration(v, "BACKEND_TIMEOUT")

	c.Telephony.DialMode = strings.TrimSpace(v.GetString("TELEPHONY_DIAL_MODE"))
	c.Telephony.DefaultCountryCode = strings.TrimSpace(v.GetString("TELEPHONY_DEFAULT_COUNTRY_CODE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Telephony.RingTimeout = mustDuration(v, "TELEPHONY_RING_TIMEOUT")
	c.Telephony.ReadyFallback = mustDuration(v, "TELEPHONY_READY_FALLBACK")
	c.Telephony.MetadataTimeout = mustDuration(v, "TELEPHONY_METADATA_TIMEOUT")
	c.Telephony.GuardSessions = v.GetBool("TELEPHONY_GUARD_SESSIONS")
	c.Telephony.GuardTTL = mustDuration(v, "TELEPHONY_GUARD_TTL")

	c.Session.Store = strings.TrimSpace(v.GetString("SESSION_STORE"))
	c.Session.ValidateInterval = mustDuration(v, "SESSION_VALIDATE_INTERVAL")
	c.Session.KeyPrefix = v.GetString("SESSION_KEY_PREFIX")

	c.DB.Host = strings.TrimSpace(v.GetString("DB_HOST"))
	if c.DB.Host != "" {
		n, err := mustInt(v, "DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(v.GetString("DB_USER"))
	c.DB.Password = v.GetString("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(v.GetString("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(v.GetString("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(v.GetString("REDIS_HOST"))
	if c.Redis.Host != "" {
		n, err := mustInt(v, "REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
		c.Redis.Password = v.GetString("REDIS_PASSWORD")
		c.Redis.DB = v.GetInt("REDIS_DB")
	}

	c.NATS.URL = strings.TrimSpace(v.GetString("NATS_URL"))
	c.NATS.SubjectPrefix = strings.TrimSpace(v.GetString("NATS_SUBJECT_PREFIX"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the whole tree and fills optional defaults in place.
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
	if c.App.LogLevel != "" && !isValidLogLevel(c.App.LogLevel) {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.App.LogLevel))
	}

	if c.Backend.BaseURL == "" {
		errs = append(errs, errors.New("BACKEND_BASE_URL is required"))
	} else if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("BACKEND_BASE_URL must be an absolute URL, got %q", c.Backend.BaseURL))
	} else if c.IsProduction() && u.Scheme != "https" {
		errs = append(errs, errors.New("BACKEND_BASE_URL must use https in production"))
	}
	if c.Backend.Timeout <= 0 {
		c.Backend.Timeout = 15 * time.Second
	}

	switch c.Telephony.DialMode {
	case "":
		c.Telephony.DialMode = DialModeDevice
	case DialModeDevice, DialModeBridge:
	default:
		errs = append(errs, fmt.Errorf("TELEPHONY_DIAL_MODE must be one of device, bridge, got %q", c.Telephony.DialMode))
	}
	if !isValidCountryCode(c.Telephony.DefaultCountryCode) {
		errs = append(errs, fmt.Errorf("TELEPHONY_DEFAULT_COUNTRY_CODE must look like +<1-3 digits>, got %q", c.Telephony.DefaultCountryCode))
	}
	if c.Telephony.RingTimeout <= 0 {
		c.Telephony.RingTimeout = 15 * time.Second
	}
	if c.Telephony.ReadyFallback <= 0 {
		c.Telephony.ReadyFallback = 3 * time.Second
	}
	if c.Telephony.MetadataTimeout <= 0 {
		c.Telephony.MetadataTimeout = 10 * time.Second
	}
	if c.Telephony.GuardTTL <= 0 {
		// Longer than any realistic call; the guard is refreshed on every transition.
		c.Telephony.GuardTTL = 2 * time.Hour
	}
	if c.Telephony.GuardSessions && c.Redis.Host == "" {
		errs = append(errs, errors.New("TELEPHONY_GUARD_SESSIONS requires REDIS_HOST"))
	}

	switch c.Session.Store {
	case "":
		c.Session.Store = SessionStoreMemory
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.Redis.Host == "" {
			errs = append(errs, errors.New("SESSION_STORE=redis requires REDIS_HOST"))
		}
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be one of memory, redis, got %q", c.Session.Store))
	}
	if c.Session.ValidateInterval <= 0 {
		c.Session.ValidateInterval = 5 * time.Minute
	}

	if c.DB.Host != "" {
		if c.DB.Port <= 0 || c.DB.Port > 65535 {
			errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
		}
		if c.DB.User == "" {
			errs = append(errs, errors.New("DB_USER is required when DB_HOST is set"))
		}
		if c.DB.Name == "" {
			errs = append(errs, errors.New("DB_NAME is required when DB_HOST is set"))
		}
		if c.DB.SSLMode == "" {
			if c.IsProduction() {
				errs = append(errs, errors.New("DB_SSLMODE is required in production"))
			} else {
				c.DB.SSLMode = "disable"
			}
		}
		if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
			errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
		}
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		errs = append(errs, fmt.Errorf("REDIS_DB must be between 0 and 15, got %d", c.Redis.DB))
	}

	if c.NATS.URL != "" && c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "dialer.session"
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) JournalEnabled() bool {
	return c.DB.Host != ""
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

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(v *viper.Viper, key string) (int, error) {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return n, nil
}

func mustDuration(v *viper.Viper, key string) time.Duration {
	s := strings.TrimSpace(v.GetString(key))
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
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

func isValidLogLevel(v string) bool {
	switch v {
	case "debug", "info", "warn", "error":
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

func isValidCountryCode(v string) bool {
	if len(v) < 2 || len(v) > 4 || v[0] != '+' {
		return false
	}
	for _, r := range v[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
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
