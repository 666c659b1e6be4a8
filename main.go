package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rowboatdb/rowboat/agg"
	"github.com/rowboatdb/rowboat/cluster"
	"github.com/rowboatdb/rowboat/crdb"
	"github.com/rowboatdb/rowboat/datastore"
	"github.com/rowboatdb/rowboat/gologger"
	"github.com/rowboatdb/rowboat/http_server"
	"github.com/rowboatdb/rowboat/migrations"
	"github.com/rowboatdb/rowboat/runstore"
	"github.com/rowboatdb/rowboat/utils"
)

var logger = gologger.NewLogger()

func main() {
	logger.Debug().Msg("starting rowboat api")

	var runs runstore.RunStore = runstore.NoopRunStore{}
	if utils.CRDB_DSN != "" {
		if err := crdb.ConnectToDB(); err != nil {
			logger.Error().Err(err).Msg("error connecting to CRDB")
			os.Exit(1)
		}

		if err := migrations.CheckMigrations(utils.CRDB_DSN); err != nil {
			logger.Error().Err(err).Msg("Error checking migrations")
			os.Exit(1)
		}

		var err error
		runs, err = runstore.NewCRDBRunStore(crdb.PGPool)
		if err != nil {
			logger.Error().Err(err).Msg("error creating CRDB run store")
			os.Exit(1)
		}
	} else {
		logger.Warn().Msg("CRDB_DSN not set, run history disabled")
	}

	var store datastore.DataStore
	var err error
	if utils.S3_BUCKET_NAME != "" {
		store, err = datastore.NewS3DataStore(utils.S3_BUCKET_NAME)
	} else {
		store, err = datastore.NewDiskDataStore(utils.DATA_DIR)
	}
	if err != nil {
		logger.Error().Err(err).Msg("error creating datastore")
		os.Exit(1)
	}

	c, err := cluster.Connect(cluster.Options{})
	if err != nil {
		logger.Error().Err(err).Msg("error connecting cluster")
		os.Exit(1)
	}
	if err := agg.RegisterOps(c); err != nil {
		logger.Error().Err(err).Msg("error registering aggregation ops")
		os.Exit(1)
	}

	rb, err := NewRowboat(c, store, runs)
	if err != nil {
		logger.Error().Err(err).Msg("error creating rowboat")
		os.Exit(1)
	}

	httpServer := http_server.StartHTTPServer(http_server.Deps{
		Cluster: rb.Cluster,
		Store:   rb.Store,
		Runs:    rb.Runs,
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	sleepTime := utils.GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))
	time.Sleep(time.Second * time.Duration(sleepTime))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}
	if err := rb.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown rowboat")
	}
}
