package main

import (
	"github.com/smallbiznis/sparks/internal/clock"
	"github.com/smallbiznis/sparks/internal/config"
	"github.com/smallbiznis/sparks/internal/eventstream"
	"github.com/smallbiznis/sparks/internal/funnel"
	"github.com/smallbiznis/sparks/internal/ingest"
	"github.com/smallbiznis/sparks/internal/keyword"
	"github.com/smallbiznis/sparks/internal/keyword/filesource"
	"github.com/smallbiznis/sparks/internal/metricspush"
	"github.com/smallbiznis/sparks/internal/migration"
	"github.com/smallbiznis/sparks/internal/observability"
	"github.com/smallbiznis/sparks/internal/ratelimit"
	"github.com/smallbiznis/sparks/internal/rawstore"
	"github.com/smallbiznis/sparks/internal/room"
	"github.com/smallbiznis/sparks/internal/scheduler"
	"github.com/smallbiznis/sparks/internal/server"
	"github.com/smallbiznis/sparks/internal/worker"
	"github.com/smallbiznis/sparks/pkg/db"
	"github.com/smallbiznis/sparks/pkg/rdb"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		clock.Module,
		rdb.Module,
		db.Module,
		migration.Module,

		// Pipeline
		rawstore.Module,
		eventstream.Module,
		ratelimit.Module,
		ingest.Module,
		room.Module,
		worker.Module,

		// Classification
		keyword.Module,
		filesource.Module,
		funnel.Module,
		metricspush.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}
