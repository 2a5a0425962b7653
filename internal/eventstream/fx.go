package eventstream

import "go.uber.org/fx"

var Module = fx.Module("eventstream",
	fx.Provide(
		fx.Annotate(NewRedisStream, fx.As(new(Stream))),
	),
)
