package service

import (
	"context"
	"time"
)

// Default values for configuration
const (
	DefaultDrainTimeout  = 10 * time.Second
	DefaultMaxBodyBytes  = 1 << 20
	DefaultEventIDHeader = "event-id"

	// MaxTopicLength is the longest topic name the broker accepts.
	MaxTopicLength = 249
)

// Config controls the accepting boundary.
type Config struct {
	// DrainTimeout bounds how long Shutdown waits for in-flight accepts.
	// Default: 10s
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`

	// MaxBodyBytes limits HTTP request bodies. Default: 1 MiB
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`

	// EventIDHeader names the record header carrying the event id. The id is
	// generated unless the request supplies the header. Default: "event-id"
	EventIDHeader string `mapstructure:"event_id_header"`

	// ListenAddress is where cmd/eventpipe serves the HTTP handler.
	ListenAddress string `mapstructure:"listen_address"`
}

// Logger is an interface that matches the logger.Logger interface.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

func (cfg Config) withDefaults() Config {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.EventIDHeader == "" {
		cfg.EventIDHeader = DefaultEventIDHeader
	}
	return cfg
}
