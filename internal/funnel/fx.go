package funnel

import (
	"github.com/smallbiznis/sparks/internal/funnel/repository"
	"github.com/smallbiznis/sparks/internal/funnel/service"
	"go.uber.org/fx"
)

var Module = fx.Module("funnel.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
