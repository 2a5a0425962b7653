package keyword

import (
	"github.com/smallbiznis/sparks/internal/keyword/repository"
	"github.com/smallbiznis/sparks/internal/keyword/service"
	"go.uber.org/fx"
)

var Module = fx.Module("keyword.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
