package migrations

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGeneratePostgres(t *testing.T) {
	config := DefaultConfig()
	config.OutputFolder = t.TempDir()
	config.OutputFilename = "init.sql"

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("failed to generate migration: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(config.OutputFolder, "init.sql"))
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	sql := string(content)

	for _, table := range []string{"events", "stream_heads", "snapshots", "projection_checkpoints", "projection_feeds", "dlq_entries"} {
		if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("migration missing table %q", table)
		}
	}

	if !strings.Contains(sql, "UNIQUE (stream_id, version)") {
		t.Error("events table needs the (stream_id, version) unique constraint")
	}
	if !strings.Contains(sql, "BIGSERIAL PRIMARY KEY") {
		t.Error("global_position should be BIGSERIAL")
	}
	if !strings.Contains(sql, "PRIMARY KEY (projection_name, stream_id)") {
		t.Error("checkpoints and quarantine entries are keyed by (projection, stream)")
	}
}

func TestGenerateSQLite(t *testing.T) {
	config := DefaultConfig()
	config.OutputFolder = t.TempDir()
	config.OutputFilename = "init.sql"

	if err := GenerateSQLite(&config); err != nil {
		t.Fatalf("failed to generate migration: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(config.OutputFolder, "init.sql"))
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	sql := string(content)

	if !strings.Contains(sql, "INTEGER PRIMARY KEY AUTOINCREMENT") {
		t.Error("global_position should be AUTOINCREMENT")
	}
	if !strings.Contains(sql, "UNIQUE (stream_id, version)") {
		t.Error("events table needs the (stream_id, version) unique constraint")
	}
	if strings.Contains(sql, "BIGSERIAL") {
		t.Error("SQLite migration must not use PostgreSQL types")
	}
}

func TestGenerate_CustomTableNames(t *testing.T) {
	config := DefaultConfig()
	config.OutputFolder = t.TempDir()
	config.OutputFilename = "init.sql"
	config.EventsTable = "myapp_events"
	config.DLQTable = "myapp_quarantine"

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("failed to generate migration: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(config.OutputFolder, "init.sql"))
	if err != nil {
		t.Fatalf("failed to read migration: %v", err)
	}
	sql := string(content)

	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS myapp_events") {
		t.Error("custom events table name not applied")
	}
	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS myapp_quarantine") {
		t.Error("custom quarantine table name not applied")
	}
	if !strings.Contains(sql, "idx_myapp_events_stream") {
		t.Error("index names should follow the custom table name")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.OutputFolder != "migrations" {
		t.Errorf("expected default output folder 'migrations', got %q", config.OutputFolder)
	}
	if !strings.HasSuffix(config.OutputFilename, "_init_event_sourcing.sql") {
		t.Errorf("unexpected default filename %q", config.OutputFilename)
	}
}
