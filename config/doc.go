// Package config loads the eventpipe configuration with viper.
//
// Values come, lowest precedence first, from built-in defaults, an optional
// YAML file and EVENTPIPE_* environment variables. Nested keys map to
// variables by replacing dots with underscores:
//
//	kafka.brokers            EVENTPIPE_KAFKA_BROKERS=b1:9092,b2:9092
//	schema_registry.url      EVENTPIPE_SCHEMA_REGISTRY_URL=http://registry:8081
//
// The flat keys broker_addresses, registry_url, connect_timeout_ms and
// max_connect_attempts are accepted as well and override their nested
// counterparts.
package config
