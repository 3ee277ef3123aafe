package store

import (
	"database/sql"
	"fmt"

	"primekit/internal/logging"
)

// Schema versions:
// v1: snapshot(value) and log(id, value)
// v2: log.appended_at (unix seconds of the flush that wrote the row)
const CurrentSchemaVersion = 2

// migration upgrades the schema from version-1 to version.
type migration struct {
	version     int
	description string
	apply       func(db *sql.DB) error
}

var migrations = []migration{
	{1, "create snapshot and log tables", migrateV0ToV1},
	{2, "add log.appended_at", migrateV1ToV2},
}

// RunMigrations brings db up to CurrentSchemaVersion. Each step is recorded
// in schema_versions, so reopening a current database is a no-op.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStore, "RunMigrations")
	defer timer.Stop()

	if err := ensureVersionTable(db); err != nil {
		return err
	}
	current, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}
	if current > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", current, CurrentSchemaVersion)
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		logging.StoreDebug("migrating v%d -> v%d: %s", m.version-1, m.version, m.description)
		if err := m.apply(db); err != nil {
			return fmt.Errorf("migration to v%d failed: %w", m.version, err)
		}
		if err := setSchemaVersion(db, m.version, m.description); err != nil {
			return err
		}
		applied++
	}
	if applied > 0 {
		logging.Store("schema migrated from v%d to v%d", current, CurrentSchemaVersion)
	}
	return nil
}

func ensureVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)`)
	if err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the highest recorded schema version, 0 for a
// fresh database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRow("SELECT MAX(version) FROM schema_versions").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return int(version.Int64), nil
}

func setSchemaVersion(db *sql.DB, version int, description string) error {
	_, err := db.Exec("INSERT INTO schema_versions (version, description) VALUES (?, ?)", version, description)
	if err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", version, err)
	}
	return nil
}

func migrateV0ToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS snapshot (
			value INTEGER PRIMARY KEY
		);
		CREATE TABLE IF NOT EXISTS log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			value INTEGER NOT NULL
		);`)
	return err
}

func migrateV1ToV2(db *sql.DB) error {
	if columnExists(db, "log", "appended_at") {
		return nil
	}
	_, err := db.Exec("ALTER TABLE log ADD COLUMN appended_at INTEGER NOT NULL DEFAULT 0")
	return err
}

// columnExists checks for a column using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		logging.StoreDebug("PRAGMA table_info(%s) failed: %v", table, err)
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			name, kind string
			notnull    int
			dflt       interface{}
			pk         int
		)
		if err := rows.Scan(&cid, &name, &kind, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
