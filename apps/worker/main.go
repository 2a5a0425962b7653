package main

import (
	"github.com/smallbiznis/sparks/internal/clock"
	"github.com/smallbiznis/sparks/internal/config"
	"github.com/smallbiznis/sparks/internal/eventstream"
	"github.com/smallbiznis/sparks/internal/observability"
	"github.com/smallbiznis/sparks/internal/rawstore"
	"github.com/smallbiznis/sparks/internal/room"
	"github.com/smallbiznis/sparks/internal/worker"
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

		rawstore.Module,
		eventstream.Module,
		room.Module,

		// No server module: the worker only consumes the stream.
		worker.Module,
	)
	app.Run()
}
