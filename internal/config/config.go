// Package config loads the service configuration from a YAML file, an optional
// .env file and HIRELOOP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/spigell/hireloop/internal/secrets"
)

const EnvPrefix = "HIRELOOP"

type Config struct {
	Server      Server      `mapstructure:"server"`
	Database    Database    `mapstructure:"database"`
	Auth        Auth        `mapstructure:"auth"`
	AI          AI          `mapstructure:"ai"`
	Interviews  Interviews  `mapstructure:"interviews"`
	Maintenance Maintenance `mapstructure:"maintenance"`
}

type Server struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
	CORSOrigins     []string      `mapstructure:"cors-origins"`
}

type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Auth struct {
	JWTSecret     string        `mapstructure:"jwt-secret"`
	JWTSecretFile string        `mapstructure:"jwt-secret-file"`
	SessionTTL    time.Duration `mapstructure:"session-ttl"`
	CookieName    string        `mapstructure:"cookie-name"`
	SecureCookie  bool          `mapstructure:"secure-cookie"`
	Remote        RemoteAuth    `mapstructure:"remote"`
	Revocation    Revocation    `mapstructure:"revocation"`
}

// RemoteAuth describes the managed auth provider whose tokens are trusted.
// An empty issuer disables the remote side of the session bridge.
type RemoteAuth struct {
	Issuer     string `mapstructure:"issuer"`
	Secret     string `mapstructure:"secret"`
	SecretFile string `mapstructure:"secret-file"`
}

type Revocation struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis-addr"`
	RedisPassword string `mapstructure:"redis-password"`
	RedisDB       int    `mapstructure:"redis-db"`
}

type AI struct {
	RateLimit    float64       `mapstructure:"rate-limit"`
	Burst        int           `mapstructure:"burst"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxLogLength int           `mapstructure:"max-log-length"`

	Chat      Chat      `mapstructure:"chat"`
	TTS       TTS       `mapstructure:"tts"`
	Avatar    Avatar    `mapstructure:"avatar"`
	Screening Screening `mapstructure:"screening"`

	Anthropic  Provider `mapstructure:"anthropic"`
	OpenAI     Provider `mapstructure:"openai"`
	Groq       Provider `mapstructure:"groq"`
	Gemini     Provider `mapstructure:"gemini"`
	ElevenLabs Provider `mapstructure:"elevenlabs"`
}

// Provider holds vendor credentials. Model is the chat model, or the speech
// model for text-to-speech vendors.
type Provider struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
	BaseURL    string `mapstructure:"base-url"`
}

// Configured reports whether any credential source is set.
func (p Provider) Configured() bool {
	return secrets.Source{Value: p.APIKey, File: p.APIKeyFile}.Configured()
}

type Chat struct {
	// Provider is one of anthropic, openai, groq or gemini. Empty disables chat.
	Provider string `mapstructure:"provider"`
}

type TTS struct {
	// Provider is elevenlabs or openai. Empty disables speech.
	Provider string `mapstructure:"provider"`
	Voice    string `mapstructure:"voice"`
	Model    string `mapstructure:"model"`
}

type Avatar struct {
	APIKey     string `mapstructure:"api-key"`
	APIKeyFile string `mapstructure:"api-key-file"`
	FaceID     string `mapstructure:"face-id"`
	BaseURL    string `mapstructure:"base-url"`
}

func (a Avatar) Configured() bool {
	return strings.TrimSpace(a.FaceID) != "" && secrets.Source{Value: a.APIKey, File: a.APIKeyFile}.Configured()
}

type Screening struct {
	MinimumFitScore float64 `mapstructure:"minimum-fit-score"`
	MaxRetries      int     `mapstructure:"max-retries"`
	Prompt          Prompt  `mapstructure:"prompt"`
}

// Prompt holds recruiter preferences added to the fit-matching prompt.
type Prompt struct {
	ExtraCriteria     string `mapstructure:"extra-criteria"`
	DealBreakers      string `mapstructure:"deal-breakers"`
	CustomKeywords    string `mapstructure:"custom-keywords"`
	Tone              string `mapstructure:"tone"`
	RegionConstraints string `mapstructure:"region-constraints"`
	Instructions      string `mapstructure:"instructions"`
}

type Interviews struct {
	InviteTTL time.Duration `mapstructure:"invite-ttl"`
}

type Maintenance struct {
	SessionPurge    string `mapstructure:"session-purge"`
	InterviewExpiry string `mapstructure:"interview-expiry"`
}

var defaults = map[string]any{
	"server.addr":             ":8080",
	"server.read-timeout":     "15s",
	"server.write-timeout":    "60s",
	"server.shutdown-timeout": "20s",
	"server.cors-origins":     []string{},

	"database.driver": "sqlite",
	"database.dsn":    "hireloop.db",

	"auth.jwt-secret":               "",
	"auth.jwt-secret-file":          "",
	"auth.session-ttl":              "24h",
	"auth.cookie-name":              "hireloop",
	"auth.secure-cookie":            false,
	"auth.remote.issuer":            "",
	"auth.remote.secret":            "",
	"auth.remote.secret-file":       "",
	"auth.revocation.backend":       "memory",
	"auth.revocation.redis-addr":    "",
	"auth.revocation.redis-password": "",
	"auth.revocation.redis-db":      0,

	"ai.rate-limit":     1.0,
	"ai.burst":          5,
	"ai.timeout":        "60s",
	"ai.max-log-length": 200,
	"ai.chat.provider":  "",
	"ai.tts.provider":   "",
	"ai.tts.voice":      "",
	"ai.tts.model":      "",

	"ai.avatar.api-key":      "",
	"ai.avatar.api-key-file": "",
	"ai.avatar.face-id":      "",
	"ai.avatar.base-url":     "",

	"ai.screening.minimum-fit-score":         0.5,
	"ai.screening.max-retries":               3,
	"ai.screening.prompt.extra-criteria":     "",
	"ai.screening.prompt.deal-breakers":      "",
	"ai.screening.prompt.custom-keywords":    "",
	"ai.screening.prompt.tone":               "",
	"ai.screening.prompt.region-constraints": "",
	"ai.screening.prompt.instructions":       "",

	"interviews.invite-ttl": "72h",

	"maintenance.session-purge":    "@every 1h",
	"maintenance.interview-expiry": "*/15 * * * *",
}

var providerNames = []string{"anthropic", "openai", "groq", "gemini", "elevenlabs"}

// SetDefaults registers every key, so environment variables are picked up even
// when the config file does not mention them.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, name := range providerNames {
		for _, field := range []string{"api-key", "api-key-file", "model", "base-url"} {
			v.SetDefault("ai."+name+"."+field, "")
		}
	}
}

// BindEnv makes HIRELOOP_SERVER_ADDR override server.addr and so on.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads variables from a .env file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	BindEnv(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Auth.Revocation.Backend = strings.ToLower(strings.TrimSpace(c.Auth.Revocation.Backend))
	c.AI.Chat.Provider = strings.ToLower(strings.TrimSpace(c.AI.Chat.Provider))
	c.AI.TTS.Provider = strings.ToLower(strings.TrimSpace(c.AI.TTS.Provider))
	c.Auth.Remote.Issuer = strings.TrimSpace(c.Auth.Remote.Issuer)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}

	if !(secrets.Source{Value: c.Auth.JWTSecret, File: c.Auth.JWTSecretFile}).Configured() {
		errs = append(errs, errors.New("auth.jwt-secret or auth.jwt-secret-file is required"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("auth.session-ttl must be positive"))
	}
	if c.Auth.Remote.Issuer != "" && !(secrets.Source{Value: c.Auth.Remote.Secret, File: c.Auth.Remote.SecretFile}).Configured() {
		errs = append(errs, errors.New("auth.remote.secret is required when auth.remote.issuer is set"))
	}

	switch c.Auth.Revocation.Backend {
	case "memory":
	case "redis":
		if strings.TrimSpace(c.Auth.Revocation.RedisAddr) == "" {
			errs = append(errs, errors.New("auth.revocation.redis-addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.revocation.backend: unsupported backend %q", c.Auth.Revocation.Backend))
	}

	switch c.AI.Chat.Provider {
	case "":
	case "anthropic", "openai", "groq", "gemini":
		if !c.ChatProvider().Configured() {
			errs = append(errs, fmt.Errorf("ai.%s.api-key is required for the %s chat provider", c.AI.Chat.Provider, c.AI.Chat.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("ai.chat.provider: unsupported provider %q", c.AI.Chat.Provider))
	}

	switch c.AI.TTS.Provider {
	case "":
	case "elevenlabs":
		if !c.AI.ElevenLabs.Configured() {
			errs = append(errs, errors.New("ai.elevenlabs.api-key is required for the elevenlabs tts provider"))
		}
		if strings.TrimSpace(c.AI.TTS.Voice) == "" {
			errs = append(errs, errors.New("ai.tts.voice is required for the elevenlabs tts provider"))
		}
	case "openai":
		if !c.AI.OpenAI.Configured() {
			errs = append(errs, errors.New("ai.openai.api-key is required for the openai tts provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("ai.tts.provider: unsupported provider %q", c.AI.TTS.Provider))
	}

	if s := c.AI.Screening.MinimumFitScore; s < 0 || s > 1 {
		errs = append(errs, fmt.Errorf("ai.screening.minimum-fit-score must be within [0, 1], got %v", s))
	}
	if c.AI.RateLimit < 0 {
		errs = append(errs, errors.New("ai.rate-limit must not be negative"))
	}

	return errors.Join(errs...)
}

// ChatProvider returns the credentials of the selected chat vendor.
func (c *Config) ChatProvider() Provider {
	switch c.AI.Chat.Provider {
	case "anthropic":
		return c.AI.Anthropic
	case "openai":
		return c.AI.OpenAI
	case "groq":
		return c.AI.Groq
	case "gemini":
		return c.AI.Gemini
	default:
		return Provider{}
	}
}

func (c *Config) JWTSecret() (string, error) {
	return secrets.Load(secrets.Source{Name: "jwt secret", Value: c.Auth.JWTSecret, File: c.Auth.JWTSecretFile})
}

func (c *Config) RemoteSecret() (string, error) {
	return secrets.Load(secrets.Source{Name: "remote auth secret", Value: c.Auth.Remote.Secret, File: c.Auth.Remote.SecretFile})
}

// Key resolves a vendor key; name is used in error messages.
func (p Provider) Key(name string) (string, error) {
	return secrets.Load(secrets.Source{Name: name + " api key", Value: p.APIKey, File: p.APIKeyFile})
}

func (a Avatar) Key() (string, error) {
	return secrets.Load(secrets.Source{Name: "simli api key", Value: a.APIKey, File: a.APIKeyFile})
}
