package kafka

import (
	"context"
	"time"
)

// Config holds everything needed to reach the brokers and to bound the
// connection's retry policy.
type Config struct {
	// Brokers is a list of Kafka broker addresses
	Brokers []string `mapstructure:"brokers"`

	// ClientID identifies this producer to the brokers. Default: "eventpipe"
	ClientID string `mapstructure:"client_id"`

	// ConnectTimeout bounds a single dial and handshake attempt. Default: 5s
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// WriteTimeout bounds a produce request waiting for its acknowledgment.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// RequiredAcks determines how many replica acknowledgments to wait for
	// Options:
	//   RequireNone (0): Don't wait for acknowledgment (fire-and-forget, fastest but least safe)
	//   RequireOne (1): Wait for leader only (balance of speed and durability)
	//   RequireAll (-1): Wait for all in-sync replicas (slowest but most durable)
	// Default: RequireAll (-1)
	RequiredAcks *int `mapstructure:"required_acks"`

	// Partitioner picks the partition for a keyed message.
	// Options: "murmur2" (Java client compatible), "hash" (FNV-1a),
	// "crc32" (librdkafka compatible), "round_robin" (ignores keys)
	// Default: "murmur2"
	Partitioner string `mapstructure:"partitioner"`

	// CompressionCodec specifies the compression algorithm to use
	// Options: "" (none), gzip, snappy, lz4, zstd
	CompressionCodec string `mapstructure:"compression_codec"`

	// MaxConnectAttempts caps connection attempts per EnsureReady call.
	// Default: 5
	MaxConnectAttempts int `mapstructure:"max_connect_attempts"`

	// BackoffBase is the wait after the first failed attempt; later waits
	// grow exponentially. Default: 100ms
	BackoffBase time.Duration `mapstructure:"backoff_base"`

	// BackoffMax caps a single wait between attempts. Default: 5s
	BackoffMax time.Duration `mapstructure:"backoff_max"`

	// BackoffJitter is the randomization factor applied to each wait, in
	// [0, 1). Zero disables jitter.
	BackoffJitter float64 `mapstructure:"backoff_jitter"`

	// MetadataTTL is how long partition lists are cached per topic.
	// Default: 1m
	MetadataTTL time.Duration `mapstructure:"metadata_ttl"`

	// TLS contains TLS/SSL configuration
	TLS TLSConfig `mapstructure:"tls"`

	// SASL contains SASL authentication configuration
	SASL SASLConfig `mapstructure:"sasl"`
}

// TLSConfig contains TLS/SSL configuration parameters.
type TLSConfig struct {
	// Enabled determines whether to use TLS/SSL for the connection
	Enabled bool `mapstructure:"enabled"`

	// CACertPath is the file path to the CA certificate for verifying the broker
	CACertPath string `mapstructure:"ca_cert_path"`

	// ClientCertPath is the file path to the client certificate
	ClientCertPath string `mapstructure:"client_cert_path"`

	// ClientKeyPath is the file path to the client certificate's private key
	ClientKeyPath string `mapstructure:"client_key_path"`

	// InsecureSkipVerify controls whether to skip verification of the server's certificate
	// WARNING: Setting this to true is insecure and should only be used in testing
	InsecureSkipVerify bool `mapstructure:"insecure_skip_verify"`
}

// SASLConfig contains SASL authentication configuration parameters.
type SASLConfig struct {
	// Enabled determines whether to use SASL authentication
	Enabled bool `mapstructure:"enabled"`

	// Mechanism specifies the SASL mechanism to use
	// Options: "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"
	Mechanism string `mapstructure:"mechanism"`

	// Username is the SASL username
	Username string `mapstructure:"username"`

	// Password is the SASL password
	Password string `mapstructure:"password"` //nolint:gosec
}

// Logger is an interface that matches the logger.Logger interface.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

// Default values for configuration
const (
	DefaultClientID           = "eventpipe"
	DefaultConnectTimeout     = 5 * time.Second
	DefaultWriteTimeout       = 10 * time.Second
	DefaultRequiredAcks       = RequireAll
	DefaultPartitioner        = PartitionerMurmur2
	DefaultMaxConnectAttempts = 5
	DefaultBackoffBase        = 100 * time.Millisecond
	DefaultBackoffMax         = 5 * time.Second
	DefaultMetadataTTL        = time.Minute

	// Producer acknowledgment modes
	RequireNone = 0  // Fire-and-forget (no acknowledgment)
	RequireOne  = 1  // Wait for leader only
	RequireAll  = -1 // Wait for all in-sync replicas (most durable)

	PartitionerMurmur2    = "murmur2"
	PartitionerHash       = "hash"
	PartitionerCRC32      = "crc32"
	PartitionerRoundRobin = "round_robin"
)

// withDefaults returns cfg with zero values replaced by defaults.
func (cfg Config) withDefaults() Config {
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.RequiredAcks == nil {
		acks := DefaultRequiredAcks
		cfg.RequiredAcks = &acks
	}
	if cfg.Partitioner == "" {
		cfg.Partitioner = DefaultPartitioner
	}
	if cfg.MaxConnectAttempts <= 0 {
		cfg.MaxConnectAttempts = DefaultMaxConnectAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = DefaultBackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
	if cfg.BackoffMax < cfg.BackoffBase {
		cfg.BackoffMax = cfg.BackoffBase
	}
	if cfg.MetadataTTL <= 0 {
		cfg.MetadataTTL = DefaultMetadataTTL
	}
	return cfg
}
