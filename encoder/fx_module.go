package encoder

import "go.uber.org/fx"

// FXModule provides an *Encoder built from an encoder.Config.
var FXModule = fx.Module("encoder",
	fx.Provide(New),
)
