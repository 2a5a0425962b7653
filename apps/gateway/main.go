package main

import (
	"github.com/smallbiznis/sparks/internal/clock"
	"github.com/smallbiznis/sparks/internal/config"
	"github.com/smallbiznis/sparks/internal/eventstream"
	"github.com/smallbiznis/sparks/internal/funnel"
	"github.com/smallbiznis/sparks/internal/ingest"
	"github.com/smallbiznis/sparks/internal/keyword"
	"github.com/smallbiznis/sparks/internal/observability"
	"github.com/smallbiznis/sparks/internal/ratelimit"
	"github.com/smallbiznis/sparks/internal/rawstore"
	"github.com/smallbiznis/sparks/internal/room"
	"github.com/smallbiznis/sparks/internal/server"
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
		ratelimit.Module,
		ingest.Module,

		// Keyword upload and the read-only funnel report share the gateway port.
		keyword.Module,
		room.Module,
		funnel.Module,

		server.Module,
	)
	app.Run()
}
