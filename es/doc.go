// Package es provides core event sourcing infrastructure.
//
// # Overview
//
// This package defines the fundamental types and interfaces for an
// append-only, per-stream-ordered event store with optimistic concurrency,
// snapshot-based rehydration, and sequence-aware dead-lettering:
//   - Event: immutable domain events, ordered per stream by Version
//   - ExpectedVersion: optimistic concurrency expectations for appends
//   - DBTX / Transactor: database transaction abstractions
//   - Logger: optional observability hook
//
// The concern-specific packages build on these:
//   - journal: durable, ordered, append-only event storage
//   - snapshot: checkpointed aggregate state to bound replay cost
//   - aggregate: deterministic rehydration and optimistic command execution
//   - projection: ordered, idempotent read-model maintenance
//   - dlq: sequence-aware dead-letter queue with operator redrive
//   - adapters/postgres, adapters/sqlite, adapters/memory: storage backends
//
// # Design Philosophy
//
// Clean Architecture: Core interfaces are database-agnostic. Infrastructure
// concerns (like PostgreSQL) are isolated in adapter packages.
//
// Transaction Control: The library uses DBTX instead of managing transactions
// in the core types. Where a component must pair writes atomically (a
// projection update with its checkpoint, a redriven event with its entry
// update) it takes a Transactor and owns the transaction boundary explicitly.
//
// Immutability: Events are value objects. They don't have identity until
// persisted and assigned a Version and GlobalPosition by the journal.
//
// Ordering: Version defines a strict total order within one stream. No
// cross-stream ordering is guaranteed or required; GlobalPosition exists
// only as a polling cursor for projection feeds.
//
// # Quick Start
//
// 1. Generate database migrations:
//
//	go run github.com/getpup/seqsourcing/cmd/migrate-gen -output migrations
//
// 2. Apply migrations to your database
//
// 3. Create a journal and append events:
//
//	import (
//	    "github.com/getpup/seqsourcing/es"
//	    "github.com/getpup/seqsourcing/es/adapters/postgres"
//	)
//
//	j := postgres.NewJournal(postgres.DefaultConfig())
//
//	tx, _ := db.BeginTx(ctx, nil)
//	defer tx.Rollback()
//
//	version, err := j.Append(ctx, tx, "acct-42", es.Exact(0), []es.Event{{
//	    EventID:    uuid.New(),
//	    StreamID:   "acct-42",
//	    EventType:  "Deposited",
//	    Payload:    payload,
//	    OccurredAt: time.Now(),
//	}})
//
// 4. Rehydrate state and run projections: see the aggregate and projection
// packages, and the runnable programs under examples/.
package es
