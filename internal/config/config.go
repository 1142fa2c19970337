package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Alwanly/axon-agent/pkg/validator"
	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "AXON"
	configFileName = "axon"
)

const (
	BrokerMQTT  = "mqtt"
	BrokerRedis = "redis"
)

type AgentConfig struct {
	BrokerKind           string `validate:"oneof=mqtt redis"`
	BrokerHost           string `validate:"required"`
	BrokerPort           int    `validate:"min=1,max=65535"`
	BrokerUsername       string
	BrokerPassword       string
	BrokerQoS            int           `validate:"min=0,max=2"`
	BrokerKeepAlive      time.Duration `validate:"gt=0"`
	BrokerConnectTimeout time.Duration `validate:"gt=0"`
	RedisPassword        string
	RedisDB              int `validate:"min=0"`

	// Initial connect retry configuration. Zero retries means a single attempt.
	ConnectMaxRetries        int           `validate:"min=-1"`
	ConnectInitialBackoff    time.Duration `validate:"gte=0"`
	ConnectMaxBackoff        time.Duration `validate:"gte=0"`
	ConnectBackoffMultiplier float64       `validate:"gte=1"`

	ServiceID    string `validate:"required"`
	ServiceName  string `validate:"required"`
	ServiceGroup string `validate:"required"`
	AuthToken    string `validate:"required"`
	// TTL is in whole seconds; it is published as an integer.
	TTL     int    `validate:"min=1"`
	Profile string `validate:"oneof=full minimal"`

	Simulate          bool
	PrivilegedActions bool
	ActionTimeout     time.Duration `validate:"gt=0"`

	AdminAddr     string
	AdminUsername string
	AdminPassword string
}

// TTLDuration is TTL as a duration.
func (c *AgentConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("broker_kind", BrokerMQTT)
	v.SetDefault("broker_host", "localhost")
	v.SetDefault("broker_port", 1883)
	v.SetDefault("broker_qos", 0)
	v.SetDefault("broker_keepalive", "60s")
	v.SetDefault("broker_connect_timeout", "10s")
	v.SetDefault("redis_db", 0)

	v.SetDefault("connect_max_retries", 0)
	v.SetDefault("connect_initial_backoff", "1s")
	v.SetDefault("connect_max_backoff", "30s")
	v.SetDefault("connect_backoff_multiplier", 2.0)

	v.SetDefault("service_id", "memory-sidecar-go")
	v.SetDefault("service_name", "Memory Monitor")
	v.SetDefault("service_group", "System")
	v.SetDefault("auth_token", "synapse-secret")
	v.SetDefault("ttl", 10)
	v.SetDefault("profile", "full")

	v.SetDefault("simulate", true)
	v.SetDefault("privileged_actions", false)
	v.SetDefault("action_timeout", "30s")

	v.SetDefault("admin_addr", "")
	v.SetDefault("admin_user", "admin")
	v.SetDefault("admin_password", "")
}

// LoadAgentConfig reads AXON_* environment variables over an optional
// axon.yaml (or the file named by AXON_CONFIG) over defaults.
func LoadAgentConfig() (*AgentConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := os.Getenv(EnvPrefix + "_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &AgentConfig{
		BrokerKind:           strings.ToLower(v.GetString("broker_kind")),
		BrokerHost:           v.GetString("broker_host"),
		BrokerPort:           v.GetInt("broker_port"),
		BrokerUsername:       v.GetString("broker_username"),
		BrokerPassword:       v.GetString("broker_password"),
		BrokerQoS:            v.GetInt("broker_qos"),
		BrokerKeepAlive:      v.GetDuration("broker_keepalive"),
		BrokerConnectTimeout: v.GetDuration("broker_connect_timeout"),
		RedisPassword:        v.GetString("redis_password"),
		RedisDB:              v.GetInt("redis_db"),

		ConnectMaxRetries:        v.GetInt("connect_max_retries"),
		ConnectInitialBackoff:    v.GetDuration("connect_initial_backoff"),
		ConnectMaxBackoff:        v.GetDuration("connect_max_backoff"),
		ConnectBackoffMultiplier: v.GetFloat64("connect_backoff_multiplier"),

		ServiceID:    v.GetString("service_id"),
		ServiceName:  v.GetString("service_name"),
		ServiceGroup: v.GetString("service_group"),
		AuthToken:    v.GetString("auth_token"),
		TTL:          v.GetInt("ttl"),
		Profile:      strings.ToLower(v.GetString("profile")),

		Simulate:          v.GetBool("simulate"),
		PrivilegedActions: v.GetBool("privileged_actions"),
		ActionTimeout:     v.GetDuration("action_timeout"),

		AdminAddr:     v.GetString("admin_addr"),
		AdminUsername: v.GetString("admin_user"),
		AdminPassword: v.GetString("admin_password"),
	}

	if err := validator.ValidateStruct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %v", validator.TranslateError(err))
	}
	if cfg.AdminAddr != "" && cfg.AdminPassword == "" {
		return nil, fmt.Errorf("invalid config: %s_ADMIN_PASSWORD is required when the admin API is enabled", EnvPrefix)
	}
	return cfg, nil
}
