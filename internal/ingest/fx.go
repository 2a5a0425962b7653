package ingest

import (
	"github.com/smallbiznis/sparks/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("ingest.service",
	fx.Provide(New),
	fx.Provide(func(l *ratelimit.WebhookLimiter) ChannelLimiter { return l }),
)
