package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Migration represents a database schema migration.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Migrations is the list of all database migrations in order.
var Migrations = []Migration{
	{
		Version: 1,
		Name:    "core_tables",
		SQL: `
			-- Regulatory rules loaded from rule packs
			CREATE TABLE IF NOT EXISTS rules (
				id TEXT PRIMARY KEY,
				city TEXT NOT NULL,
				rule_type TEXT NOT NULL DEFAULT '',
				conditions TEXT NOT NULL,
				entitlements TEXT,
				notes TEXT,
				authority TEXT,
				clause_no TEXT,
				page TEXT
			);

			CREATE INDEX IF NOT EXISTS idx_rules_city ON rules(city);

			-- Append-only feedback event history
			CREATE TABLE IF NOT EXISTS feedback_events (
				id TEXT PRIMARY KEY,
				case_id TEXT NOT NULL,
				project_id TEXT,
				city TEXT NOT NULL,
				feedback_type TEXT NOT NULL CHECK(feedback_type IN ('up', 'down')),
				action INTEGER NOT NULL,
				created_at TEXT NOT NULL,
				created_at_epoch_ns INTEGER NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_feedback_events_city ON feedback_events(city);
			CREATE INDEX IF NOT EXISTS idx_feedback_events_case ON feedback_events(case_id);
			CREATE INDEX IF NOT EXISTS idx_feedback_events_created ON feedback_events(created_at_epoch_ns);

			-- Per-city adaptive segment weights
			CREATE TABLE IF NOT EXISTS segment_weights (
				city TEXT PRIMARY KEY,
				base_reward REAL NOT NULL,
				action_weights TEXT NOT NULL,
				positive_count INTEGER NOT NULL DEFAULT 0,
				negative_count INTEGER NOT NULL DEFAULT 0,
				total_cases INTEGER NOT NULL DEFAULT 0,
				updated_at TEXT NOT NULL
			);

			-- Case reports shown to users
			CREATE TABLE IF NOT EXISTS case_reports (
				case_id TEXT PRIMARY KEY,
				project_id TEXT NOT NULL,
				city TEXT NOT NULL,
				parameters TEXT NOT NULL,
				rules_applied TEXT,
				reasoning TEXT,
				chosen_action INTEGER NOT NULL,
				action_label TEXT NOT NULL,
				raw_confidence REAL NOT NULL,
				confidence_score REAL NOT NULL,
				confidence_level TEXT NOT NULL,
				confidence_note TEXT,
				degraded INTEGER NOT NULL DEFAULT 0,
				audit_trail TEXT,
				generated_at TEXT NOT NULL,
				generated_at_epoch_ns INTEGER NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_case_reports_project ON case_reports(project_id);
			CREATE INDEX IF NOT EXISTS idx_case_reports_city ON case_reports(city);
			CREATE INDEX IF NOT EXISTS idx_case_reports_generated ON case_reports(generated_at_epoch_ns DESC);
		`,
	},
}

// MigrationManager applies schema migrations in order.
type MigrationManager struct {
	db *sql.DB
}

// NewMigrationManager creates a migration manager.
func NewMigrationManager(db *sql.DB) *MigrationManager {
	return &MigrationManager{db: db}
}

// EnsureSchemaVersionsTable creates the schema_versions table if it doesn't exist.
func (m *MigrationManager) EnsureSchemaVersionsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY,
			version INTEGER UNIQUE NOT NULL,
			applied_at TEXT NOT NULL
		)
	`)
	return err
}

// GetAppliedVersions returns all applied migration versions.
func (m *MigrationManager) GetAppliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_versions ORDER BY version")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions[version] = true
	}
	return versions, rows.Err()
}

// ApplyMigration applies a single migration inside a transaction.
func (m *MigrationManager) ApplyMigration(migration Migration) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return fmt.Errorf("execute migration %d (%s): %w", migration.Version, migration.Name, err)
	}

	_, err = tx.Exec(
		"INSERT INTO schema_versions (version, applied_at) VALUES (?, ?)",
		migration.Version, time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("record migration %d: %w", migration.Version, err)
	}

	return tx.Commit()
}

// RunMigrations applies all pending migrations.
func (m *MigrationManager) RunMigrations() error {
	if err := m.EnsureSchemaVersionsTable(); err != nil {
		return fmt.Errorf("ensure schema_versions table: %w", err)
	}

	applied, err := m.GetAppliedVersions()
	if err != nil {
		return fmt.Errorf("get applied versions: %w", err)
	}

	for _, migration := range Migrations {
		if applied[migration.Version] {
			continue
		}
		if err := m.ApplyMigration(migration); err != nil {
			return err
		}
		log.Debug().
			Int("version", migration.Version).
			Str("name", migration.Name).
			Msg("Applied migration")
	}
	return nil
}
