// Package config loads server settings from an optional YAML file and the
// environment. Environment variables (prefix PLACEMENT_) win over the file;
// a .env file in the working directory is read first when present.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. PLACEMENT_DATABASE_DSN.
const EnvPrefix = "placement"

type ctxKey string

const configContextKey ctxKey = "placement.config"

// WithContext stores cfg in ctx.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

// FromContext returns the config stored by WithContext, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	HTTPAddr        string        `yaml:"httpAddr"        split_words:"true"`
	OpsAddr         string        `yaml:"opsAddr"         split_words:"true"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" split_words:"true"`
	Debug           bool          `yaml:"debug"`

	DatabaseDSN      string `yaml:"databaseDsn"      envconfig:"DATABASE_DSN"`
	DatabaseMaxConns int32  `yaml:"databaseMaxConns" envconfig:"DATABASE_MAX_CONNS"`
	MigrateOnStart   bool   `yaml:"migrateOnStart"   split_words:"true"`

	JWTKey    string        `yaml:"jwtKey"    envconfig:"JWT_KEY"`
	AccessTTL time.Duration `yaml:"accessTtl" envconfig:"ACCESS_TTL"`

	LoginWindow   time.Duration `yaml:"loginWindow"   split_words:"true"`
	LoginMaxFails int           `yaml:"loginMaxFails" split_words:"true"`
	LoginBlockFor time.Duration `yaml:"loginBlockFor" split_words:"true"`

	RedisAddr        string        `yaml:"redisAddr"        split_words:"true"`
	RedisPassword    string        `yaml:"redisPassword"    split_words:"true"`
	VerifyRateLimit  int           `yaml:"verifyRateLimit"  split_words:"true"`
	VerifyRateWindow time.Duration `yaml:"verifyRateWindow" split_words:"true"`

	KafkaBrokers  []string `yaml:"kafkaBrokers"  split_words:"true"`
	KafkaTopic    string   `yaml:"kafkaTopic"    split_words:"true"`
	KafkaUsername string   `yaml:"kafkaUsername" split_words:"true"`
	KafkaPassword string   `yaml:"kafkaPassword" split_words:"true"`

	AIServiceURL string        `yaml:"aiServiceUrl" envconfig:"AI_SERVICE_URL"`
	AITimeout    time.Duration `yaml:"aiTimeout"    envconfig:"AI_TIMEOUT"`
	SkipAI       bool          `yaml:"skipAi"       envconfig:"SKIP_AI"`

	DefaultMaxApplications int `yaml:"defaultMaxApplications" split_words:"true"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		HTTPAddr:               ":8080",
		OpsAddr:                ":9090",
		ShutdownTimeout:        15 * time.Second,
		DatabaseDSN:            "",
		AccessTTL:              15 * time.Minute,
		LoginWindow:            15 * time.Minute,
		LoginMaxFails:          5,
		LoginBlockFor:          15 * time.Minute,
		VerifyRateLimit:        30,
		VerifyRateWindow:       time.Minute,
		KafkaTopic:             "placement.events",
		AITimeout:              5 * time.Second,
		DefaultMaxApplications: 100,
	}
}

// Load reads .env, then configFile (optional), then the environment.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	cfg := Default()
	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(buf, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error processing environment: %w", err)
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var problems []error
	if c.DatabaseDSN == "" {
		problems = append(problems, errors.New("database DSN is required (PLACEMENT_DATABASE_DSN)"))
	}
	if c.JWTKey == "" {
		problems = append(problems, errors.New("JWT signing key is required (PLACEMENT_JWT_KEY)"))
	}
	if c.AccessTTL <= 0 {
		problems = append(problems, errors.New("accessTtl must be positive"))
	}
	if c.LoginMaxFails <= 0 {
		problems = append(problems, errors.New("loginMaxFails must be positive"))
	}
	if c.VerifyRateLimit <= 0 || c.VerifyRateWindow <= 0 {
		problems = append(problems, errors.New("verify rate limit and window must be positive"))
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		problems = append(problems, errors.New("kafkaTopic is required when brokers are set"))
	}
	return errors.Join(problems...)
}

// AIEnabled reports whether the AI collaborator should be called at all.
func (c *Config) AIEnabled() bool { return c.AIServiceURL != "" && !c.SkipAI }
