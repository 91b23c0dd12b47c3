package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/warden/pkg/kernel"
	"mercator-hq/warden/pkg/policy"
)

// SchemaVersion is the current database schema version.
const SchemaVersion = 2

// Schema creates the policy tables.
const Schema = `
CREATE TABLE IF NOT EXISTS policies (
    id INTEGER PRIMARY KEY,
    node_id INTEGER NOT NULL,
    subject_path TEXT NOT NULL DEFAULT '',
    intent TEXT NOT NULL,
    rules TEXT NOT NULL,
    driver_ids TEXT NOT NULL,
    active BOOLEAN NOT NULL,
    simulated BOOLEAN NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policies_node ON policies(node_id);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const insertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?)`

// Version 2 added subject_path. Rows written by version 1 load detached and
// stay so until re-applied.
const (
	hasSubjectPath = `SELECT COUNT(*) FROM pragma_table_info('policies') WHERE name = 'subject_path'`
	addSubjectPath = `ALTER TABLE policies ADD COLUMN subject_path TEXT NOT NULL DEFAULT ''`
)

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 4
	MaxOpenConns int

	// DisableWAL turns off write-ahead logging.
	DisableWAL bool

	// BusyTimeout is how long to wait on a locked database.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteBackend persists policies in SQLite.
type SQLiteBackend struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger

	saveStmt   *sql.Stmt
	deleteStmt *sql.Stmt
}

// NewSQLiteBackend opens or creates the database at cfg.Path.
func NewSQLiteBackend(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, NewStorageError("sqlite", "open", fmt.Errorf("path cannot be empty"))
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)

	b := &SQLiteBackend{
		db:     db,
		config: cfg,
		logger: logger.With("component", "policy.store.sqlite"),
	}
	if err := b.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	b.logger.Info("SQLite policy storage initialized",
		"path", cfg.Path,
		"wal_mode", !cfg.DisableWAL,
	)
	return b, nil
}

func (b *SQLiteBackend) initialize() error {
	if !b.config.DisableWAL {
		if _, err := b.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
	}
	if _, err := b.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", b.config.BusyTimeout.Milliseconds())); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := b.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	var cols int
	if err := b.db.QueryRow(hasSubjectPath).Scan(&cols); err != nil {
		return NewStorageError("sqlite", "migrate", err)
	}
	if cols == 0 {
		if _, err := b.db.Exec(addSubjectPath); err != nil {
			return NewStorageError("sqlite", "migrate", err)
		}
		b.logger.Info("policy schema migrated", "version", SchemaVersion)
	}
	if _, err := b.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}

	var err error
	b.saveStmt, err = b.db.Prepare(`
		INSERT INTO policies (id, node_id, subject_path, intent, rules, driver_ids, active, simulated, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			node_id = excluded.node_id,
			subject_path = excluded.subject_path,
			intent = excluded.intent,
			rules = excluded.rules,
			driver_ids = excluded.driver_ids,
			active = excluded.active,
			simulated = excluded.simulated,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return NewStorageError("sqlite", "prepare", err)
	}
	b.deleteStmt, err = b.db.Prepare(`DELETE FROM policies WHERE id = ?`)
	if err != nil {
		return NewStorageError("sqlite", "prepare", err)
	}
	return nil
}

// Name implements Backend.
func (b *SQLiteBackend) Name() string { return "sqlite" }

// Load implements Backend.
func (b *SQLiteBackend) Load(ctx context.Context) ([]ActivePolicy, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT id, subject_path, intent, rules, driver_ids, active, simulated, created_at, updated_at
		FROM policies ORDER BY id
	`)
	if err != nil {
		return nil, NewStorageError("sqlite", "load", err)
	}
	defer rows.Close()

	var out []ActivePolicy
	for rows.Next() {
		var (
			p                        ActivePolicy
			id                       int64
			intentJSON, rulesJSON    string
			driverJSON               string
			createdNano, updatedNano int64
		)
		if err := rows.Scan(&id, &p.SubjectPath, &intentJSON, &rulesJSON, &driverJSON, &p.Active, &p.Simulated, &createdNano, &updatedNano); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		p.ID = policy.ID(id)
		if err := json.Unmarshal([]byte(intentJSON), &p.Intent); err != nil {
			return nil, NewStorageError("sqlite", "decode_intent", fmt.Errorf("policy %d: %w", id, err))
		}
		if err := json.Unmarshal([]byte(rulesJSON), &p.Rules); err != nil {
			return nil, NewStorageError("sqlite", "decode_rules", fmt.Errorf("policy %d: %w", id, err))
		}
		if err := json.Unmarshal([]byte(driverJSON), &p.DriverIDs); err != nil {
			return nil, NewStorageError("sqlite", "decode_driver_ids", fmt.Errorf("policy %d: %w", id, err))
		}
		p.CreatedAt = time.Unix(0, createdNano).UTC()
		p.UpdatedAt = time.Unix(0, updatedNano).UTC()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "load", err)
	}
	return out, nil
}

// Save implements Backend.
func (b *SQLiteBackend) Save(ctx context.Context, p ActivePolicy) error {
	intentJSON, err := json.Marshal(p.Intent)
	if err != nil {
		return NewStorageError("sqlite", "encode_intent", err)
	}
	rules := p.Rules
	if rules == nil {
		rules = []kernel.Rule{}
	}
	rulesJSON, err := json.Marshal(rules)
	if err != nil {
		return NewStorageError("sqlite", "encode_rules", err)
	}
	ids := p.DriverIDs
	if ids == nil {
		ids = []policy.DriverID{}
	}
	driverJSON, err := json.Marshal(ids)
	if err != nil {
		return NewStorageError("sqlite", "encode_driver_ids", err)
	}

	_, err = b.saveStmt.ExecContext(ctx,
		int64(p.ID),
		int64(p.Intent.NodeID),
		p.SubjectPath,
		string(intentJSON),
		string(rulesJSON),
		string(driverJSON),
		p.Active,
		p.Simulated,
		p.CreatedAt.UnixNano(),
		p.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return NewStorageError("sqlite", "save", err)
	}
	return nil
}

// Delete implements Backend.
func (b *SQLiteBackend) Delete(ctx context.Context, id policy.ID) error {
	if _, err := b.deleteStmt.ExecContext(ctx, int64(id)); err != nil {
		return NewStorageError("sqlite", "delete", err)
	}
	return nil
}

// Ping checks the database connection.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	if b.saveStmt != nil {
		b.saveStmt.Close()
	}
	if b.deleteStmt != nil {
		b.deleteStmt.Close()
	}
	if err := b.db.Close(); err != nil {
		return NewStorageError("sqlite", "close", err)
	}
	return nil
}
