package config

// This file defines a Redis client constructor for the application.  Redis is
// used for distributed rate limiting, HTTP response caching and the shared
// unit lock.  If connection fails during startup, the function returns nil
// and callers should degrade gracefully by disabling those features.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection parameters of the Redis server.
// REDIS_HOST and REDIS_PORT take precedence over REDIS_ADDR when both are set.
type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Host     string `envconfig:"REDIS_HOST"`
	Port     string `envconfig:"REDIS_PORT"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
	TLS      bool   `envconfig:"REDIS_TLS" default:"false"`
}

// LoadRedisConfig reads REDIS_* variables.
func LoadRedisConfig() (RedisConfig, error) {
	var c RedisConfig
	if err := envconfig.Process("", &c); err != nil {
		return RedisConfig{}, err
	}
	if c.Host != "" && c.Port != "" {
		c.Addr = c.Host + ":" + c.Port
	}
	return c, nil
}

// NewRedisClient instantiates a Redis client for cfg.  The returned client
// is nil if a connection cannot be established.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
