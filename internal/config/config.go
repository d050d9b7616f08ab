package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "TABLECRAFT"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultDatabasePath  = "tablecraft.db"
	defaultLogLevel      = "info"
	defaultTokenTTL      = 480
	defaultFloorWidth    = 1200.0
	defaultFloorHeight   = 800.0
	defaultGridSize      = 20.0
	defaultTenantID      = "default"
	defaultTokenIssuer   = "tablecraft-auth"
	defaultTokenAudience = "tablecraft-api"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	SigningSecret string
	TokenIssuer   string
	TokenAudience string
	TokenTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	AMQPURL       string
	TenantID      string
	FloorWidth    float64
	FloorHeight   float64
	GridSize      float64
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.token_issuer", defaultTokenIssuer)
	configViper.SetDefault("auth.token_audience", defaultTokenAudience)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("tenant.id", defaultTenantID)
	configViper.SetDefault("floor.width", defaultFloorWidth)
	configViper.SetDefault("floor.height", defaultFloorHeight)
	configViper.SetDefault("grid.size", defaultGridSize)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		TokenIssuer:   configViper.GetString("auth.token_issuer"),
		TokenAudience: configViper.GetString("auth.token_audience"),
		TokenTTL:      time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		RedisAddr:     configViper.GetString("redis.addr"),
		RedisPassword: configViper.GetString("redis.password"),
		AMQPURL:       configViper.GetString("amqp.url"),
		TenantID:      configViper.GetString("tenant.id"),
		FloorWidth:    configViper.GetFloat64("floor.width"),
		FloorHeight:   configViper.GetFloat64("floor.height"),
		GridSize:      configViper.GetFloat64("grid.size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.FloorWidth <= 0 || c.FloorHeight <= 0 {
		return fmt.Errorf("floor.width and floor.height must be positive")
	}
	if c.GridSize <= 0 {
		return fmt.Errorf("grid.size must be positive")
	}
	return nil
}
