// Package seqsourcing provides sequence-aware event sourcing for Go applications.
//
// This package serves as the main entry point for the seqsourcing library.
// For the core functionality, see the es package and its subpackages:
//
//	es            - Core types and interfaces
//	es/journal    - Append-only event journal with optimistic concurrency
//	es/snapshot   - Snapshot storage and cadence policy
//	es/aggregate  - Rehydration and optimistic command execution
//	es/projection - Ordered, idempotent read-model maintenance
//	es/dlq        - Sequence-aware dead-letter queue with redrive
//	es/adapters/postgres - PostgreSQL implementation
//	es/adapters/sqlite   - SQLite implementation
//	es/adapters/memory   - In-memory implementation
//	es/migrations - Migration generation
//
// Quick Start:
//
//  1. Generate migrations:
//     go run github.com/getpup/seqsourcing/cmd/migrate-gen -output migrations
//
//  2. Append events through a command executor:
//     executor := aggregate.NewExecutor(journal, rehydrator, transactor, aggregate.DefaultExecutorConfig())
//     version, err := executor.Execute(ctx, streamID, decide)
//
//  3. Run projections with quarantine-on-failure:
//     runner := projection.NewRunner(journal, transactor, checkpoints, feeds, queue, projection.DefaultRunnerConfig())
//     runner.Run(ctx, myProjection)
//
// See the examples directory for complete working examples.
package seqsourcing

// Version returns the current version of the library.
func Version() string {
	return "0.1.0-dev"
}
