package publisher

import (
	"context"
	"time"
)

// DefaultSubjectSuffix is appended to a topic to name its value schema.
const DefaultSubjectSuffix = "-value"

// Config controls subject naming and the default publish deadline.
type Config struct {
	// SubjectSuffix turns a topic into its registry subject. Default: "-value"
	SubjectSuffix string `mapstructure:"subject_suffix"`

	// PublishTimeout bounds a publish whose context carries no deadline.
	// Zero leaves such publishes unbounded.
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// Logger is an interface that matches the logger.Logger interface.
type Logger interface {
	InfoWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, err error, fields ...map[string]interface{})
}

func (cfg Config) withDefaults() Config {
	if cfg.SubjectSuffix == "" {
		cfg.SubjectSuffix = DefaultSubjectSuffix
	}
	return cfg
}
