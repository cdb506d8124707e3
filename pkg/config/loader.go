package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "DIZIDUNYA"

// Load reads configuration from an optional .env file, a YAML file and
// environment variables.
func Load(logger *slog.Logger, fileName string, paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded", slog.Any("error", err))
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		logger.Warn("Config file not found. ignoring error and relying on defaults/env vars")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("server.insecureSkipVerify", false)
	v.SetDefault("server.auth.jwtSecret", "default-secret-key-change-me")
	v.SetDefault("server.connectionLimit.maxPerUser", 0)
	v.SetDefault("server.connectionLimit.mode", "reject")
	v.SetDefault("server.shutdownTimeout", "10s")

	v.SetDefault("transport.readTimeout", "60s")
	v.SetDefault("transport.writeTimeout", "10s")
	v.SetDefault("transport.sendBuffer", 256)
	v.SetDefault("transport.maxMessageSize", 32768)
	v.SetDefault("transport.persistTimeout", "5s")
	v.SetDefault("transport.messageRate", "")

	v.SetDefault("notifications.welcome", "Connected to DiziDünya notifications")
	v.SetDefault("notifications.queueSize", 1024)

	v.SetDefault("chat.defaultUsername", "Unknown User")
	v.SetDefault("chat.requireCommunity", false)
	v.SetDefault("chat.timezone", "Local")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.memory.communities", []int64{})
	v.SetDefault("store.memory.users", []int64{})
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.Server.ConnectionLimit.Mode {
	case "reject", "cycle":
	default:
		return fmt.Errorf("invalid connection limit mode %q: want reject or cycle", c.Server.ConnectionLimit.Mode)
	}
	switch c.Store.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid store driver %q: want memory or redis", c.Store.Driver)
	}
	if c.Transport.SendBuffer <= 0 {
		return errors.New("transport.sendBuffer must be positive")
	}
	if c.Notifications.QueueSize <= 0 {
		return errors.New("notifications.queueSize must be positive")
	}
	if _, err := c.Chat.Location(); err != nil {
		return fmt.Errorf("invalid chat.timezone: %w", err)
	}
	return nil
}
