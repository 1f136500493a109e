package kafka

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// KafkaTransport is the segmentio/kafka-go implementation of Transport.
//
// It talks to the brokers through a kafka.Client so that every produce
// request returns the partition and base offset the broker assigned.
type KafkaTransport struct {
	cfg Config

	addr        net.Addr
	transport   *kafka.Transport
	client      *kafka.Client
	balancer    kafka.Balancer
	compression compress.Compression

	// partitions caches the partition ids of each topic for MetadataTTL.
	mu         sync.Mutex
	partitions map[string]topicPartitions

	now func() time.Time
}

type topicPartitions struct {
	ids     []int
	fetched time.Time
}

var _ Transport = (*KafkaTransport)(nil)

// NewTransport validates cfg and builds the kafka-go client. No network
// connection is made until Connect.
func NewTransport(cfg Config) (*KafkaTransport, error) {
	cfg = cfg.withDefaults()
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}

	balancer, err := createBalancer(cfg.Partitioner)
	if err != nil {
		return nil, err
	}
	compression, err := parseCompression(cfg.CompressionCodec)
	if err != nil {
		return nil, err
	}

	transport := &kafka.Transport{
		ClientID:    cfg.ClientID,
		DialTimeout: cfg.ConnectTimeout,
		MetadataTTL: cfg.MetadataTTL,
	}
	if cfg.TLS.Enabled {
		tlsConfig, err := createTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		transport.TLS = tlsConfig
	}
	if cfg.SASL.Enabled {
		mechanism, err := createSASLMechanism(cfg.SASL)
		if err != nil {
			return nil, err
		}
		transport.SASL = mechanism
	}

	addr := kafka.TCP(cfg.Brokers...)
	return &KafkaTransport{
		cfg:       cfg,
		addr:      addr,
		transport: transport,
		client: &kafka.Client{
			Addr:      addr,
			Timeout:   cfg.WriteTimeout,
			Transport: transport,
		},
		balancer:    balancer,
		compression: compression,
		partitions:  make(map[string]topicPartitions),
		now:         time.Now,
	}, nil
}

// createBalancer maps a partitioner name to a kafka-go balancer. murmur2 is
// the partitioner of the Java client and of kafkajs' legacy partitioner, so
// keyed messages land where those producers would put them.
func createBalancer(name string) (kafka.Balancer, error) {
	switch strings.ToLower(name) {
	case PartitionerMurmur2, "":
		return kafka.Murmur2Balancer{}, nil
	case PartitionerHash:
		return &kafka.Hash{}, nil
	case PartitionerCRC32:
		return kafka.CRC32Balancer{}, nil
	case PartitionerRoundRobin:
		return &kafka.RoundRobin{}, nil
	default:
		return nil, fmt.Errorf("unsupported partitioner: %s", name)
	}
}

func parseCompression(codec string) (compress.Compression, error) {
	switch strings.ToLower(codec) {
	case "", "none":
		return compress.None, nil
	case "gzip":
		return compress.Gzip, nil
	case "snappy":
		return compress.Snappy, nil
	case "lz4":
		return compress.Lz4, nil
	case "zstd":
		return compress.Zstd, nil
	default:
		return compress.None, fmt.Errorf("unsupported compression codec: %s", codec)
	}
}

// createTLSConfig creates a TLS configuration from the provided config
func createTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec
	}

	if cfg.CACertPath != "" {
		caCert, err := os.ReadFile(cfg.CACertPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to parse CA cert")
		}
		tlsConfig.RootCAs = caCertPool
	}

	if cfg.ClientCertPath != "" && cfg.ClientKeyPath != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertPath, cfg.ClientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// createSASLMechanism creates a SASL mechanism from the provided config
func createSASLMechanism(cfg SASLConfig) (sasl.Mechanism, error) {
	switch cfg.Mechanism {
	case "PLAIN":
		return plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, cfg.Username, cfg.Password)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, cfg.Username, cfg.Password)
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", cfg.Mechanism)
	}
}
