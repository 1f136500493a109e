package kafka

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	t.Parallel()

	cfg := Config{Brokers: []string{"b:9092"}}.withDefaults()
	assert.Equal(t, DefaultClientID, cfg.ClientID)
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultWriteTimeout, cfg.WriteTimeout)
	require.NotNil(t, cfg.RequiredAcks)
	assert.Equal(t, RequireAll, *cfg.RequiredAcks)
	assert.Equal(t, PartitionerMurmur2, cfg.Partitioner)
	assert.Equal(t, DefaultMaxConnectAttempts, cfg.MaxConnectAttempts)
	assert.Equal(t, DefaultBackoffBase, cfg.BackoffBase)
	assert.Equal(t, DefaultBackoffMax, cfg.BackoffMax)
	assert.Equal(t, DefaultMetadataTTL, cfg.MetadataTTL)
	assert.Zero(t, cfg.BackoffJitter)

	acks := RequireNone
	custom := Config{RequiredAcks: &acks, BackoffBase: time.Second, BackoffMax: time.Millisecond}.withDefaults()
	assert.Equal(t, RequireNone, *custom.RequiredAcks, "explicit fire-and-forget is kept")
	assert.Equal(t, time.Second, custom.BackoffMax, "max never below base")
}

func TestNewTransport(t *testing.T) {
	t.Parallel()

	_, err := NewTransport(Config{})
	assert.Error(t, err)

	_, err = NewTransport(Config{Brokers: []string{"b:9092"}, Partitioner: "sticky"})
	assert.ErrorContains(t, err, "unsupported partitioner")

	_, err = NewTransport(Config{Brokers: []string{"b:9092"}, CompressionCodec: "brotli"})
	assert.ErrorContains(t, err, "unsupported compression codec")

	_, err = NewTransport(Config{Brokers: []string{"b:9092"}, SASL: SASLConfig{Enabled: true, Mechanism: "GSSAPI"}})
	assert.ErrorContains(t, err, "unsupported SASL mechanism")

	tr, err := NewTransport(Config{
		Brokers:          []string{"b1:9092", "b2:9092"},
		ClientID:         "orders-api",
		CompressionCodec: "snappy",
		SASL:             SASLConfig{Enabled: true, Mechanism: "PLAIN", Username: "u", Password: "p"},
	})
	require.NoError(t, err)
	assert.Equal(t, "orders-api", tr.transport.ClientID)
	assert.Equal(t, compress.Snappy, tr.compression)
	assert.Equal(t, plain.Mechanism{Username: "u", Password: "p"}, tr.transport.SASL)
	assert.Equal(t, DefaultWriteTimeout, tr.client.Timeout)
}

func TestCreateBalancer(t *testing.T) {
	t.Parallel()

	tests := map[string]kafka.Balancer{
		"":            kafka.Murmur2Balancer{},
		"murmur2":     kafka.Murmur2Balancer{},
		"hash":        &kafka.Hash{},
		"CRC32":       kafka.CRC32Balancer{},
		"round_robin": &kafka.RoundRobin{},
	}
	for name, want := range tests {
		got, err := createBalancer(name)
		require.NoError(t, err, name)
		assert.IsType(t, want, got, name)
	}
}

func TestMurmur2KeyPlacementIsStable(t *testing.T) {
	t.Parallel()

	balancer, err := createBalancer(PartitionerMurmur2)
	require.NoError(t, err)

	partitions := []int{0, 1, 2, 3, 4, 5}
	first := balancer.Balance(kafka.Message{Key: []byte("SO-1001")}, partitions...)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, balancer.Balance(kafka.Message{Key: []byte("SO-1001")}, partitions...))
	}
}

func TestParseCompression(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]compress.Compression{
		"":       compress.None,
		"none":   compress.None,
		"gzip":   compress.Gzip,
		"Snappy": compress.Snappy,
		"lz4":    compress.Lz4,
		"zstd":   compress.Zstd,
	} {
		got, err := parseCompression(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestCreateTLSConfig(t *testing.T) {
	t.Parallel()

	cfg, err := createTLSConfig(TLSConfig{Enabled: true, InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Nil(t, cfg.RootCAs)

	_, err = createTLSConfig(TLSConfig{Enabled: true, CACertPath: filepath.Join(t.TempDir(), "missing.pem")})
	assert.ErrorContains(t, err, "failed to read CA cert")

	garbage := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(garbage, []byte("not a certificate"), 0o600))
	_, err = createTLSConfig(TLSConfig{Enabled: true, CACertPath: garbage})
	assert.ErrorContains(t, err, "failed to parse CA cert")
}

func TestCreateSASLMechanism(t *testing.T) {
	t.Parallel()

	for _, mechanism := range []string{"PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512"} {
		m, err := createSASLMechanism(SASLConfig{Mechanism: mechanism, Username: "u", Password: "p"})
		require.NoError(t, err, mechanism)
		assert.Equal(t, mechanism, m.Name())
	}
}
