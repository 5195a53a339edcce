// Command migrate-gen generates SQL migration files for event sourcing.
//
// Usage:
//
//	go run github.com/getpup/seqsourcing/cmd/migrate-gen -output migrations -filename init.sql
//
// Or with go generate:
//
//	//go:generate go run github.com/getpup/seqsourcing/cmd/migrate-gen -output migrations
//
// Generate migrations for different database adapters:
//
//	go run github.com/getpup/seqsourcing/cmd/migrate-gen -adapter postgres -output migrations
//	go run github.com/getpup/seqsourcing/cmd/migrate-gen -adapter sqlite -output migrations
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getpup/seqsourcing/es/migrations"
)

func main() {
	var (
		adapter          = flag.String("adapter", "postgres", "Database adapter: postgres or sqlite")
		outputFolder     = flag.String("output", "migrations", "Output folder for migration file")
		outputFilename   = flag.String("filename", "", "Output filename (default: timestamp-based)")
		eventsTable      = flag.String("events-table", "events", "Name of events table")
		streamHeadsTable = flag.String("stream-heads-table", "stream_heads", "Name of stream heads table")
		snapshotsTable   = flag.String("snapshots-table", "snapshots", "Name of snapshots table")
		checkpointsTable = flag.String("checkpoints-table", "projection_checkpoints", "Name of checkpoints table")
		feedsTable       = flag.String("feeds-table", "projection_feeds", "Name of feed positions table")
		dlqTable         = flag.String("dlq-table", "dlq_entries", "Name of quarantine entries table")
	)

	flag.Parse()

	config := migrations.DefaultConfig()
	config.OutputFolder = *outputFolder
	config.EventsTable = *eventsTable
	config.StreamHeadsTable = *streamHeadsTable
	config.SnapshotsTable = *snapshotsTable
	config.CheckpointsTable = *checkpointsTable
	config.FeedsTable = *feedsTable
	config.DLQTable = *dlqTable

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	var err error
	switch *adapter {
	case "postgres":
		err = migrations.GeneratePostgres(&config)
	case "sqlite":
		err = migrations.GenerateSQLite(&config)
	default:
		fmt.Fprintf(os.Stderr, "Error: unsupported adapter '%s'. Supported adapters are: postgres, sqlite\n", *adapter)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s/%s\n", *adapter, config.OutputFolder, config.OutputFilename)
}
