package main

import (
	"github.com/smallbiznis/sparks/internal/clock"
	"github.com/smallbiznis/sparks/internal/config"
	"github.com/smallbiznis/sparks/internal/funnel"
	"github.com/smallbiznis/sparks/internal/keyword"
	"github.com/smallbiznis/sparks/internal/metricspush"
	"github.com/smallbiznis/sparks/internal/observability"
	"github.com/smallbiznis/sparks/internal/ratelimit"
	"github.com/smallbiznis/sparks/internal/room"
	"github.com/smallbiznis/sparks/internal/scheduler"
	"github.com/smallbiznis/sparks/pkg/db"
	"github.com/smallbiznis/sparks/pkg/rdb"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		rdb.Module,
		db.Module,

		keyword.Module,
		room.Module,
		funnel.Module,

		// Redis lock for single-instance passes, optional Pushgateway export.
		ratelimit.Module,
		metricspush.Module,
		scheduler.Module,
	)
	app.Run()
}
