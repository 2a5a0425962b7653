package main

import (
	"github.com/smallbiznis/sparks/internal/config"
	"github.com/smallbiznis/sparks/internal/keyword"
	"github.com/smallbiznis/sparks/internal/keyword/filesource"
	"github.com/smallbiznis/sparks/internal/observability"
	"github.com/smallbiznis/sparks/pkg/rdb"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		rdb.Module,

		keyword.Module,
		filesource.Module,
	)
	app.Run()
}
