package config

// This file defines the Redis client constructor for the application.  Redis
// holds server-side session records and backs the response cache and the
// chatbot rate limiter.  When no address is configured an embedded Redis is
// started so a single-binary deployment still has a session store.

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// RedisConn bundles the client with the embedded server, if one was
// started.  Close releases both.
type RedisConn struct {
	Client   *redis.Client
	embedded *miniredis.Miniredis
}

// Embedded reports whether the connection points to the in-process server.
func (r *RedisConn) Embedded() bool { return r.embedded != nil }

// Close closes the client and stops the embedded server.
func (r *RedisConn) Close() error {
	err := r.Client.Close()
	if r.embedded != nil {
		r.embedded.Close()
	}
	return err
}

// RedisConfig holds the Redis connection settings.  An empty Addr selects
// the embedded server.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// loadRedisConfig reads the Redis variables:
//
//	REDIS_HOST and REDIS_PORT: hostname and port of the Redis server
//	REDIS_ADDR: host:port shorthand (host/port take precedence when both are set)
//	REDIS_PASSWORD: optional password
//	REDIS_DB: database number (default 0)
//	REDIS_TLS: enable TLS
func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT"); host != "" && port != "" {
		addr = host + ":" + port
	}
	return RedisConfig{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       envInt("REDIS_DB", 0),
		TLS:      envBool("REDIS_TLS", false),
	}
}

// NewRedisClient connects to the server described by cfg.  With no address
// an embedded server is started.  An external server that does not answer a
// ping is an error.
func NewRedisClient(cfg RedisConfig) (*RedisConn, error) {
	if cfg.Addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, fmt.Errorf("start embedded redis: %w", err)
		}
		return &RedisConn{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()}), embedded: mr}, nil
	}

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
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", cfg.Addr, err)
	}
	return &RedisConn{Client: client}, nil
}
