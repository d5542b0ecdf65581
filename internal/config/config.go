package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	HTTPPort    string
	DatabaseURL string
	LogLevel    string

	JWTSecret     string
	JWTTTL        time.Duration
	SessionCookie string
	CookieSecure  bool

	RedisURL string
	CacheTTL time.Duration

	KafkaBrokers     []string
	KafkaTopicPrefix string

	CaptchaSecret    string
	CaptchaVerifyURL string

	MockData    bool
	PreviewMode bool

	StorageDir   string
	PDFFontDir   string
	GotenbergURL string

	CORSAllowedOrigins []string
	ApprovalTokenTTL   time.Duration
	PublicBaseURL      string

	SeedAdminEmail    string
	SeedAdminPassword string
}

// MockEnabled reports whether placeholder contract content may be synthesized.
func (c Config) MockEnabled() bool { return c.MockData || c.PreviewMode }

type configFile struct {
	Server struct {
		Port          string   `yaml:"port"`
		PublicBaseURL string   `yaml:"public_base_url"`
		CORSOrigins   []string `yaml:"cors_allowed_origins"`
	} `yaml:"server"`
	Dependencies struct {
		PostgresURL  string   `yaml:"postgres_url"`
		RedisURL     string   `yaml:"redis_url"`
		KafkaBrokers []string `yaml:"kafka_brokers"`
		GotenbergURL string   `yaml:"gotenberg_url"`
	} `yaml:"dependencies"`
	Auth struct {
		TokenTTL         string `yaml:"token_ttl"`
		SessionCookie    string `yaml:"session_cookie"`
		ApprovalTokenTTL string `yaml:"approval_token_ttl"`
	} `yaml:"auth"`
	Features struct {
		MockData    *bool `yaml:"mock_data"`
		PreviewMode *bool `yaml:"preview_mode"`
	} `yaml:"features"`
	Render struct {
		StorageDir string `yaml:"storage_dir"`
		FontDir    string `yaml:"font_dir"`
	} `yaml:"render"`
}

// Load resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{
		HTTPPort:         "8080",
		LogLevel:         "info",
		JWTTTL:           24 * time.Hour,
		SessionCookie:    "session",
		CacheTTL:         10 * time.Minute,
		KafkaTopicPrefix: "contractdesk.",
		CaptchaVerifyURL: "https://hcaptcha.com/siteverify",
		StorageDir:       "./storage/contracts",
		ApprovalTokenTTL: 72 * time.Hour,
		PublicBaseURL:    "http://localhost:8080",
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if err := cfg.applyFile(raw); err != nil {
				return Config{}, err
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is empty")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is empty")
	}
	return cfg, nil
}

func (c *Config) applyFile(raw []byte) error {
	var f configFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if f.Server.Port != "" {
		c.HTTPPort = f.Server.Port
	}
	if f.Server.PublicBaseURL != "" {
		c.PublicBaseURL = f.Server.PublicBaseURL
	}
	if len(f.Server.CORSOrigins) > 0 {
		c.CORSAllowedOrigins = f.Server.CORSOrigins
	}
	if f.Dependencies.PostgresURL != "" {
		c.DatabaseURL = f.Dependencies.PostgresURL
	}
	if f.Dependencies.RedisURL != "" {
		c.RedisURL = f.Dependencies.RedisURL
	}
	if len(f.Dependencies.KafkaBrokers) > 0 {
		c.KafkaBrokers = f.Dependencies.KafkaBrokers
	}
	if f.Dependencies.GotenbergURL != "" {
		c.GotenbergURL = f.Dependencies.GotenbergURL
	}
	if f.Auth.SessionCookie != "" {
		c.SessionCookie = f.Auth.SessionCookie
	}
	if f.Auth.TokenTTL != "" {
		d, err := time.ParseDuration(f.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("parse auth.token_ttl: %w", err)
		}
		c.JWTTTL = d
	}
	if f.Auth.ApprovalTokenTTL != "" {
		d, err := time.ParseDuration(f.Auth.ApprovalTokenTTL)
		if err != nil {
			return fmt.Errorf("parse auth.approval_token_ttl: %w", err)
		}
		c.ApprovalTokenTTL = d
	}
	if f.Features.MockData != nil {
		c.MockData = *f.Features.MockData
	}
	if f.Features.PreviewMode != nil {
		c.PreviewMode = *f.Features.PreviewMode
	}
	if f.Render.StorageDir != "" {
		c.StorageDir = f.Render.StorageDir
	}
	if f.Render.FontDir != "" {
		c.PDFFontDir = f.Render.FontDir
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.HTTPPort, "HTTP_PORT")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.JWTSecret, "JWT_SECRET")
	setString(&c.SessionCookie, "SESSION_COOKIE")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.KafkaTopicPrefix, "KAFKA_TOPIC_PREFIX")
	setString(&c.CaptchaSecret, "CAPTCHA_SECRET")
	setString(&c.CaptchaVerifyURL, "CAPTCHA_VERIFY_URL")
	setString(&c.StorageDir, "STORAGE_DIR")
	setString(&c.PDFFontDir, "PDF_FONT_DIR")
	setString(&c.GotenbergURL, "GOTENBERG_URL")
	setString(&c.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.SeedAdminEmail, "SEED_ADMIN_EMAIL")
	setString(&c.SeedAdminPassword, "SEED_ADMIN_PASSWORD")
	setList(&c.KafkaBrokers, "KAFKA_BROKERS")
	setList(&c.CORSAllowedOrigins, "CORS_ALLOWED_ORIGINS")

	for _, d := range []struct {
		dst *time.Duration
		key string
	}{
		{&c.JWTTTL, "JWT_EXPIRES_IN"},
		{&c.CacheTTL, "CACHE_TTL"},
		{&c.ApprovalTokenTTL, "APPROVAL_TOKEN_TTL"},
	} {
		if err := setDuration(d.dst, d.key); err != nil {
			return err
		}
	}
	for _, b := range []struct {
		dst *bool
		key string
	}{
		{&c.CookieSecure, "COOKIE_SECURE"},
		{&c.MockData, "MOCK_DATA"},
		{&c.PreviewMode, "PREVIEW_MODE"},
	} {
		if err := setBool(b.dst, b.key); err != nil {
			return err
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = b
	return nil
}
