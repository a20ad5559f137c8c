package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	Path     string `mapstructure:"path"`
	InMemory bool   `mapstructure:"in_memory"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
	MaxAge       int      `mapstructure:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	IdleTTL           time.Duration `mapstructure:"idle_ttl"`
}

type RegistryConfig struct {
	ManifestDir string `mapstructure:"manifest_dir"`
}

type BackendConfig struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	Kind     string `mapstructure:"kind"`
	Endpoint string `mapstructure:"endpoint"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	Enabled  bool   `mapstructure:"enabled"`
}

type LLMConfig struct {
	Timeout         time.Duration     `mapstructure:"timeout"`
	Referer         string            `mapstructure:"referer"`
	Title           string            `mapstructure:"title"`
	BreakerFailures int               `mapstructure:"breaker_failures"`
	BreakerTimeout  time.Duration     `mapstructure:"breaker_timeout"`
	Backends        []BackendConfig   `mapstructure:"backends"`
	Assignments     map[string]string `mapstructure:"assignments"`
}

type AuthConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Username     string        `mapstructure:"username"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	Channel      string        `mapstructure:"channel"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	NotifyTo string `mapstructure:"notify_to"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// Secrets are only ever read from the environment.
type Secrets struct {
	LLMAPIKey         string `envconfig:"LLM_API_KEY"`
	JWTSecret         string `envconfig:"JWT_SECRET"`
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH"`
	SMTPPassword      string `envconfig:"SMTP_PASSWORD"`
	RedisURL          string `envconfig:"REDIS_URL"`
}

// InMemory reports whether the database should live in memory only.
func (c *Config) InMemory() bool {
	return c.Database.InMemory || c.Env == "test"
}

// DatabaseDSN returns the sqlite data source for the configured environment.
func (c *Config) DatabaseDSN() string {
	if c.InMemory() {
		return ":memory:"
	}
	return c.Database.Path
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)

	v.SetDefault("database.path", "data/detailing.db")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allow_origins", []string{"*"})
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 1.0)
	v.SetDefault("rate_limit.burst", 5)
	v.SetDefault("rate_limit.idle_ttl", 10*time.Minute)

	v.SetDefault("registry.manifest_dir", "")

	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.referer", "https://detailing.example.com")
	v.SetDefault("llm.title", "Mobile Detailing Assistant")
	v.SetDefault("llm.breaker_failures", 5)
	v.SetDefault("llm.breaker_timeout", 30*time.Second)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.token_ttl", 12*time.Hour)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.channel", "detailing.events")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.notify_to", "")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "detailing")
}

// DefaultBackends is the backend table used when the config file declares none.
func DefaultBackends() []BackendConfig {
	return []BackendConfig{
		{ID: "openrouter-gpt", Name: "OpenRouter GPT-4o mini", Kind: "openai", Endpoint: "https://openrouter.ai/api/v1", Model: "openai/gpt-4o-mini", Enabled: true},
		{ID: "openrouter-claude", Name: "OpenRouter Claude Haiku", Kind: "openai", Endpoint: "https://openrouter.ai/api/v1", Model: "anthropic/claude-3.5-haiku", Enabled: true},
		{ID: "openrouter-deepseek", Name: "OpenRouter DeepSeek R1", Kind: "openai", Endpoint: "https://openrouter.ai/api/v1", Model: "deepseek/deepseek-r1", Enabled: true},
		{ID: "openrouter-llama", Name: "OpenRouter Llama 3.3", Kind: "openai", Endpoint: "https://openrouter.ai/api/v1", Model: "meta-llama/llama-3.3-70b-instruct", Enabled: true},
		{ID: "local-gateway", Name: "Local generation gateway", Kind: "http", Endpoint: "http://localhost:8787/api/generate", Enabled: false},
	}
}

// DefaultAssignments maps every known role to a backend.
func DefaultAssignments() map[string]string {
	return map[string]string{
		"chat":       "openrouter-gpt",
		"quotes":     "openrouter-gpt",
		"pricing":    "openrouter-gpt",
		"booking":    "openrouter-gpt",
		"scheduling": "openrouter-gpt",
		"services":   "openrouter-llama",
		"support":    "openrouter-llama",
		"reasoning":  "openrouter-deepseek",
		"analysis":   "openrouter-deepseek",
		"creative":   "openrouter-claude",
		"fallback":   "openrouter-claude",
	}
}

// LoadConfig reads config.yaml (optional), then the environment. paths
// overrides the default search locations.
func LoadConfig(paths ...string) (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{".", "./config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("env", "APP_ENV")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		return nil, fmt.Errorf("failed to read secrets: %w", err)
	}
	config.applySecrets(secrets)

	if len(config.LLM.Backends) == 0 {
		config.LLM.Backends = DefaultBackends()
	}
	if len(config.LLM.Assignments) == 0 {
		config.LLM.Assignments = DefaultAssignments()
	}
	for i := range config.LLM.Backends {
		if config.LLM.Backends[i].APIKey == "" {
			config.LLM.Backends[i].APIKey = secrets.LLMAPIKey
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applySecrets(s Secrets) {
	if s.JWTSecret != "" {
		c.Auth.JWTSecret = s.JWTSecret
	}
	if s.AdminPasswordHash != "" {
		c.Auth.PasswordHash = s.AdminPasswordHash
	}
	if s.SMTPPassword != "" {
		c.SMTP.Password = s.SMTPPassword
	}
	if s.RedisURL != "" {
		c.Redis.URL = s.RedisURL
	}
}

// Validate rejects configurations the server cannot start with. Role
// assignments are deliberately not checked here; they fail per request.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if !c.InMemory() && strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database.path is required")
	}
	if c.Auth.Enabled && (c.Auth.JWTSecret == "" || c.Auth.PasswordHash == "") {
		return errors.New("auth is enabled but jwt secret or admin password hash is missing")
	}
	seen := make(map[string]bool, len(c.LLM.Backends))
	for _, b := range c.LLM.Backends {
		if b.ID == "" {
			return errors.New("llm backend without id")
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate llm backend id: %s", b.ID)
		}
		seen[b.ID] = true
	}
	return nil
}
