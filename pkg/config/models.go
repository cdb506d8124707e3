package config

import "time"

type Config struct {
	Server        ServerConfig
	Transport     TransportConfig
	Notifications NotificationsConfig
	Chat          ChatConfig
	Store         StoreConfig
	Log           LogConfig
}

type ServerConfig struct {
	Address            string
	AllowedOrigins     []string `mapstructure:"allowedOrigins"`
	InsecureSkipVerify bool     `mapstructure:"insecureSkipVerify"`
	Auth               AuthConfig
	ConnectionLimit    ConnectionLimitConfig `mapstructure:"connectionLimit"`
	ShutdownTimeout    time.Duration         `mapstructure:"shutdownTimeout"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwtSecret"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	SendBuffer     int           `mapstructure:"sendBuffer"`
	MaxMessageSize int64         `mapstructure:"maxMessageSize"`
	PersistTimeout time.Duration `mapstructure:"persistTimeout"`
	// MessageRate caps inbound frames per connection, e.g. "20/s". Empty disables.
	MessageRate string `mapstructure:"messageRate"`
}

type NotificationsConfig struct {
	Welcome   string `mapstructure:"welcome"`
	QueueSize int    `mapstructure:"queueSize"`
}

type ChatConfig struct {
	DefaultUsername  string `mapstructure:"defaultUsername"`
	RequireCommunity bool   `mapstructure:"requireCommunity"`
	Timezone         string `mapstructure:"timezone"`
}

type StoreConfig struct {
	Driver string            `mapstructure:"driver"` // "memory" or "redis"
	Memory MemoryStoreConfig `mapstructure:"memory"`
	Redis  RedisStoreConfig  `mapstructure:"redis"`
}

// MemoryStoreConfig seeds the in-memory store with the community and user
// ids the CRUD backend knows about.
type MemoryStoreConfig struct {
	Communities []int64 `mapstructure:"communities"`
	Users       []int64 `mapstructure:"users"`
}

type RedisStoreConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Location resolves the chat timestamp timezone.
func (c ChatConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}
