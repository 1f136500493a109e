package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/aalemi-dev/eventpipe/encoder"
	"github.com/aalemi-dev/eventpipe/kafka"
	"github.com/aalemi-dev/eventpipe/logger"
	"github.com/aalemi-dev/eventpipe/metrics"
	"github.com/aalemi-dev/eventpipe/publisher"
	"github.com/aalemi-dev/eventpipe/schema_registry"
	"github.com/aalemi-dev/eventpipe/service"
	"github.com/aalemi-dev/eventpipe/tracer"
)

// EnvPrefix prefixes every environment override, e.g.
// EVENTPIPE_KAFKA_BROKERS or EVENTPIPE_REGISTRY_URL.
const EnvPrefix = "EVENTPIPE"

// Config is the whole process configuration. Each section is the Config of
// the package that consumes it.
type Config struct {
	ServiceName string `mapstructure:"service_name"`
	AppEnv      string `mapstructure:"app_env"`

	// Codec is "raw", "json" or "binary".
	Codec string `mapstructure:"codec"`

	// SchemaFiles maps a subject to a file holding its schema body. Files
	// are read by Load and merged into SchemaRegistry.Schemas.
	SchemaFiles map[string]string `mapstructure:"schema_files"`

	Logger         logger.Config          `mapstructure:"logger"`
	Kafka          kafka.Config           `mapstructure:"kafka"`
	SchemaRegistry schema_registry.Config `mapstructure:"schema_registry"`
	Publisher      publisher.Config       `mapstructure:"publisher"`
	Service        service.Config         `mapstructure:"service"`
	Metrics        metrics.Config         `mapstructure:"metrics"`
	Tracer         tracer.Config          `mapstructure:"tracer"`
}

// Flat keys accepted next to the nested sections. When set they win over
// the nested value.
const (
	keyBrokerAddresses    = "broker_addresses"
	keyRegistryURL        = "registry_url"
	keyConnectTimeoutMS   = "connect_timeout_ms"
	keyMaxConnectAttempts = "max_connect_attempts"
)

// Load reads the optional YAML file at path, applies EVENTPIPE_* environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		keyBrokerAddresses, keyRegistryURL, keyConnectTimeoutMS, keyMaxConnectAttempts,
		"metrics.system_metrics_address", "metrics.application_metrics_address",
		"schema_registry.username", "schema_registry.password",
		"kafka.sasl.username", "kafka.sasl.password",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	applyFlatKeys(v, &cfg)
	cfg.propagateServiceName()

	if err := cfg.loadSchemaFiles(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "eventpipe")
	v.SetDefault("app_env", "development")
	v.SetDefault("codec", string(encoder.CodecJSON))

	v.SetDefault("logger.level", logger.Info)
	v.SetDefault("logger.encoding", logger.EncodingJSON)
	v.SetDefault("logger.enable_tracing", true)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.client_id", kafka.DefaultClientID)
	v.SetDefault("kafka.connect_timeout", kafka.DefaultConnectTimeout)
	v.SetDefault("kafka.write_timeout", kafka.DefaultWriteTimeout)
	v.SetDefault("kafka.partitioner", kafka.DefaultPartitioner)
	v.SetDefault("kafka.compression_codec", "")
	v.SetDefault("kafka.max_connect_attempts", kafka.DefaultMaxConnectAttempts)
	v.SetDefault("kafka.backoff_base", kafka.DefaultBackoffBase)
	v.SetDefault("kafka.backoff_max", kafka.DefaultBackoffMax)
	v.SetDefault("kafka.backoff_jitter", 0.5)
	v.SetDefault("kafka.metadata_ttl", kafka.DefaultMetadataTTL)
	v.SetDefault("kafka.tls.enabled", false)
	v.SetDefault("kafka.sasl.enabled", false)
	v.SetDefault("kafka.sasl.mechanism", "PLAIN")

	v.SetDefault("schema_registry.url", "")
	v.SetDefault("schema_registry.timeout", schema_registry.DefaultTimeout)
	v.SetDefault("schema_registry.schema_type", schema_registry.SchemaTypeAvro)

	v.SetDefault("publisher.subject_suffix", publisher.DefaultSubjectSuffix)
	v.SetDefault("publisher.publish_timeout", 30*time.Second)

	v.SetDefault("service.listen_address", ":8080")
	v.SetDefault("service.drain_timeout", service.DefaultDrainTimeout)
	v.SetDefault("service.max_body_bytes", service.DefaultMaxBodyBytes)
	v.SetDefault("service.event_id_header", service.DefaultEventIDHeader)

	v.SetDefault("metrics.namespace", metrics.DefaultNamespace)

	v.SetDefault("tracer.enable_export", false)
	v.SetDefault("tracer.insecure", false)
}

func applyFlatKeys(v *viper.Viper, cfg *Config) {
	if v.IsSet(keyBrokerAddresses) {
		cfg.Kafka.Brokers = splitList(v.GetStringSlice(keyBrokerAddresses))
	}
	if v.IsSet(keyRegistryURL) {
		cfg.SchemaRegistry.URL = v.GetString(keyRegistryURL)
	}
	if v.IsSet(keyConnectTimeoutMS) {
		cfg.Kafka.ConnectTimeout = time.Duration(v.GetInt64(keyConnectTimeoutMS)) * time.Millisecond
	}
	if v.IsSet(keyMaxConnectAttempts) {
		cfg.Kafka.MaxConnectAttempts = v.GetInt(keyMaxConnectAttempts)
	}
	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)
}

// splitList flattens comma separated entries, which is how lists arrive
// from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *Config) propagateServiceName() {
	if c.Logger.ServiceName == "" {
		c.Logger.ServiceName = c.ServiceName
	}
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = c.ServiceName
	}
	if c.Tracer.ServiceName == "" {
		c.Tracer.ServiceName = c.ServiceName
	}
	if c.Tracer.AppEnv == "" {
		c.Tracer.AppEnv = c.AppEnv
	}
}

func (c *Config) loadSchemaFiles() error {
	if len(c.SchemaFiles) == 0 {
		return nil
	}
	if c.SchemaRegistry.Schemas == nil {
		c.SchemaRegistry.Schemas = make(map[string]string, len(c.SchemaFiles))
	}
	for subject, path := range c.SchemaFiles {
		body, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading schema for subject %s: %w", subject, err)
		}
		c.SchemaRegistry.Schemas[subject] = string(body)
	}
	return nil
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error

	codec, err := encoder.ParseCodec(c.Codec)
	if err != nil {
		errs = append(errs, fmt.Errorf("codec: %w", err))
	}
	if len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers: at least one broker address is required"))
	}
	if c.Kafka.MaxConnectAttempts < 1 {
		errs = append(errs, errors.New("kafka.max_connect_attempts: must be at least 1"))
	}
	if c.Kafka.ConnectTimeout <= 0 {
		errs = append(errs, errors.New("kafka.connect_timeout: must be positive"))
	}
	if c.Kafka.BackoffJitter < 0 || c.Kafka.BackoffJitter >= 1 {
		errs = append(errs, errors.New("kafka.backoff_jitter: must be in [0, 1)"))
	}
	if codec.RequiresSchema() && c.SchemaRegistry.URL == "" {
		errs = append(errs, fmt.Errorf("schema_registry.url: required for codec %s", codec))
	}
	return errors.Join(errs...)
}

// Encoder returns the encoder section. Call it on a validated Config.
func (c *Config) Encoder() encoder.Config {
	codec, _ := encoder.ParseCodec(c.Codec)
	return encoder.Config{Codec: codec}
}

// RequiresRegistry reports whether the configured codec needs the schema
// registry.
func (c *Config) RequiresRegistry() bool {
	return c.Encoder().Codec.RequiresSchema()
}
