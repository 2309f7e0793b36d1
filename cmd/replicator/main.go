// Command replicator runs one heterogeneous replication task: an
// extractor reading from a MySQL or PostgreSQL source, a pipeline
// draining through one or more sinker shards, and a checkpoint log
// recording progress, assembled from a single INI task configuration
// file (spec §6).
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/rdb-replicate/internal/stopper"
	log "github.com/sirupsen/logrus"
)

func main() {
	taskPath := flag.String("config", "", "path to the task INI configuration file")
	logLevel := flag.String("log-level", "info", "logrus level (trace|debug|info|warn|error)")
	flag.Parse()

	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		log.SetLevel(lvl)
	}

	if *taskPath == "" {
		log.Fatal("-config is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	sctx := stopper.WithContext(ctx)

	if err := run(sctx, *taskPath); err != nil {
		log.WithError(err).Fatal("replicator exited with error")
	}
}

// run wires and drives one task end to end. Start's ProvideExtractors
// step runs each source's precheck.Checker before returning, so by the
// time Run begins draining, connectivity and version have already been
// verified.
func run(sctx *stopper.Context, taskPath string) error {
	replicator, cleanup, err := Start(sctx, Config{TaskConfigPath: taskPath})
	if err != nil {
		return err
	}
	defer cleanup()

	sctx.Go(func() error {
		<-sctx.Done()
		sctx.Stop()
		return nil
	})

	return replicator.Run(sctx)
}
