package encoder

// Config selects the codec used for message values.
type Config struct {
	// Codec is one of "raw", "json" or "binary". Defaults to "json".
	Codec Codec `mapstructure:"codec"`
}
