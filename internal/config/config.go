package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/walletbot/ingress/internal/ratelimit"
	internalsettings "github.com/walletbot/ingress/internal/settings"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvLogLevel     = "LOG_LEVEL"
)

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 12 * time.Hour

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = strings.TrimSpace(os.Getenv(EnvConfigPath))
	}
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// DatabaseConfig selects the durable account and session store. An empty DSN
// keeps both in process memory.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// AdminConfig holds the operator login.
type AdminConfig struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password-hash"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures logrus.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TierConfig is one quota tier. A zero limit takes the default; a negative
// limit leaves the window unlimited.
type TierConfig struct {
	Limit      int           `yaml:"limit"`
	Window     time.Duration `yaml:"window"`
	LongLimit  int           `yaml:"long-limit"`
	LongWindow time.Duration `yaml:"long-window"`
}

// LimitsConfig groups the three tiers.
type LimitsConfig struct {
	Message   TierConfig `yaml:"message"`
	Command   TierConfig `yaml:"command"`
	Financial TierConfig `yaml:"financial"`
}

// IdentityConfig configures account provisioning.
type IdentityConfig struct {
	AddressPrefix string        `yaml:"address-prefix"`
	AddressDomain string        `yaml:"address-domain"`
	CreateTimeout time.Duration `yaml:"create-timeout"`
}

// RedisConfig configures the optional shared rate state.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	StateTTL time.Duration `yaml:"state-ttl"`
}

// RetentionConfig configures the idle-state sweep.
type RetentionConfig struct {
	Idle     time.Duration `yaml:"idle"`
	Interval time.Duration `yaml:"interval"`
}

// IngressConfig configures the process-wide webhook intake limit. A zero
// RPS disables it.
type IngressConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Config is the resolved application configuration.
type Config struct {
	Path string `yaml:"-"`

	Database  DatabaseConfig  `yaml:"database"`
	JWT       JWTConfig       `yaml:"jwt"`
	Admin     AdminConfig     `yaml:"admin"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Limits    LimitsConfig    `yaml:"limits"`
	Identity  IdentityConfig  `yaml:"identity"`
	Redis     RedisConfig     `yaml:"redis"`
	Retention RetentionConfig `yaml:"retention"`
	Ingress   IngressConfig   `yaml:"ingress"`

	// Cooldowns maps command names to milliseconds between uses.
	Cooldowns         map[string]int64 `yaml:"cooldowns"`
	FinancialCommands []string         `yaml:"financial-commands"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, then validates the result. A missing file yields the defaults.
func Load(path string) (Config, error) {
	path = ResolveConfigPath(path)
	cfg := Config{}

	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config file: %w", errRead)
	}
	cfg.Path = path

	cfg.applyEnv()
	cfg.applyDefaults()
	if errValidate := cfg.Validate(); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		c.Database.DSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		c.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			c.JWT.Expiry = expiry
		}
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		c.Redis.Addr = addr
		c.Redis.Enabled = true
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		c.Logging.Level = level
	}
}

func (c *Config) applyDefaults() {
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.JWT.Expiry <= 0 {
		c.JWT.Expiry = defaultJWTExpiry
	}
	if strings.TrimSpace(c.Server.Addr) == "" {
		c.Server.Addr = internalsettings.DefaultServerAddr
	}
	if c.Logging.Level == "" {
		c.Logging.Level = internalsettings.DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = internalsettings.DefaultLogFormat
	}

	defaultTier(&c.Limits.Message, internalsettings.DefaultMessageLimit, internalsettings.DefaultMessageLongLimit)
	defaultTier(&c.Limits.Command, internalsettings.DefaultCommandLimit, internalsettings.DefaultCommandLongLimit)
	defaultTier(&c.Limits.Financial, internalsettings.DefaultFinancialLimit, 0)

	if c.Cooldowns == nil {
		c.Cooldowns = make(map[string]int64, len(internalsettings.DefaultCooldowns))
		for cmd, ms := range internalsettings.DefaultCooldowns {
			c.Cooldowns[cmd] = ms
		}
	}
	if c.FinancialCommands == nil {
		c.FinancialCommands = append([]string(nil), internalsettings.DefaultFinancialCommands...)
	}

	if c.Identity.AddressPrefix == "" {
		c.Identity.AddressPrefix = internalsettings.DefaultAddressPrefix
	}
	if c.Identity.AddressDomain == "" {
		c.Identity.AddressDomain = internalsettings.DefaultAddressDomain
	}
	if c.Identity.CreateTimeout <= 0 {
		c.Identity.CreateTimeout = internalsettings.DefaultCreateTimeout
	}

	if c.Retention.Idle <= 0 {
		c.Retention.Idle = internalsettings.DefaultRetentionIdle
	}
	if c.Retention.Interval <= 0 {
		c.Retention.Interval = internalsettings.DefaultRetentionInterval
	}
	if c.Redis.StateTTL == 0 {
		c.Redis.StateTTL = c.Retention.Idle
	}

	if c.Ingress.RPS == 0 && c.Ingress.Burst == 0 {
		c.Ingress.RPS = internalsettings.DefaultIngressRPS
		c.Ingress.Burst = internalsettings.DefaultIngressBurst
	}
	if c.Ingress.RPS > 0 && c.Ingress.Burst <= 0 {
		c.Ingress.Burst = int(c.Ingress.RPS)
	}
}

func defaultTier(t *TierConfig, limit, longLimit int) {
	if t.Limit == 0 {
		t.Limit = limit
	}
	if t.Window <= 0 {
		t.Window = internalsettings.DefaultWindow
	}
	if t.LongLimit == 0 {
		t.LongLimit = longLimit
	}
	if t.LongWindow <= 0 {
		t.LongWindow = internalsettings.DefaultLongWindow
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("config: logging.format must be text or json, got %q", c.Logging.Format)
	}
	for name, ms := range c.Cooldowns {
		if ratelimit.NormalizeCommand(name) == "" {
			return fmt.Errorf("config: cooldowns: empty command name")
		}
		if ms < 0 {
			return fmt.Errorf("config: cooldowns.%s: negative value %d", name, ms)
		}
	}
	if c.Ingress.RPS < 0 {
		return fmt.Errorf("config: ingress.rps must not be negative")
	}
	if c.Redis.Enabled && strings.TrimSpace(c.Redis.Addr) == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}
	if c.Admin.Username != "" && c.Admin.PasswordHash == "" {
		return fmt.Errorf("config: admin.password-hash is required when admin.username is set")
	}
	if c.Admin.Username != "" && c.JWT.Secret == "" {
		return fmt.Errorf("config: jwt.secret is required for the admin API")
	}
	return nil
}

// TierLimits converts the limits section into quota windows.
func (c Config) TierLimits() ratelimit.TierLimits {
	return ratelimit.TierLimits{
		ratelimit.TierMessage:   c.Limits.Message.windows(),
		ratelimit.TierCommand:   c.Limits.Command.windows(),
		ratelimit.TierFinancial: c.Limits.Financial.windows(),
	}
}

func (t TierConfig) windows() []ratelimit.Window {
	out := []ratelimit.Window{{Limit: t.Limit, Length: t.Window}}
	if t.LongLimit > 0 {
		out = append(out, ratelimit.Window{Limit: t.LongLimit, Length: t.LongWindow})
	}
	return out
}

// CooldownDurations converts the millisecond cooldown map.
func (c Config) CooldownDurations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(c.Cooldowns))
	for cmd, ms := range c.Cooldowns {
		out[cmd] = time.Duration(ms) * time.Millisecond
	}
	return out
}

// RateStateSettings returns the rate state backend settings.
func (c Config) RateStateSettings() ratelimit.SettingsConfig {
	return ratelimit.SettingsConfig{
		RedisEnabled:  c.Redis.Enabled,
		RedisAddr:     c.Redis.Addr,
		RedisPassword: c.Redis.Password,
		RedisDB:       c.Redis.DB,
		RedisPrefix:   c.Redis.Prefix,
		StateTTL:      c.Redis.StateTTL,
	}
}

// String renders a redacted summary for startup logs.
func (c Config) String() string {
	var b strings.Builder
	b.WriteString("addr=" + c.Server.Addr)
	b.WriteString(" store=")
	if c.Database.DSN == "" {
		b.WriteString("memory")
	} else {
		b.WriteString("sql")
	}
	b.WriteString(" redis=" + strconv.FormatBool(c.Redis.Enabled))
	b.WriteString(" financial=" + strings.Join(c.FinancialCommands, ","))
	return b.String()
}
