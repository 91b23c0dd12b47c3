// Package journal persists enforcement events to a local SQLite database so
// they survive agent restarts and can be reviewed after the fact.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/warden/pkg/events"
)

// Config configures the journal.
type Config struct {
	// Path is the database file.
	Path string

	// RetentionDays is how long events are kept. Zero keeps them forever.
	RetentionDays int

	// PruneSchedule is a cron expression for retention pruning.
	// Default: "0 3 * * *"
	PruneSchedule string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal is closed")

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	source TEXT,
	node_id INTEGER NOT NULL DEFAULT 0,
	policy_id INTEGER NOT NULL DEFAULT 0,
	operation TEXT,
	process_name TEXT,
	pid INTEGER NOT NULL DEFAULT 0,
	decision TEXT,
	message TEXT,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_policy ON events(policy_id);
`

// Journal is an append-mostly event log.
type Journal struct {
	db     *sql.DB
	config Config
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool

	insertStmt *sql.Stmt
	recentStmt *sql.Stmt
	pruneStmt  *sql.Stmt
}

// Open opens or creates the journal at cfg.Path.
func Open(cfg Config, logger *slog.Logger) (*Journal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("journal path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	j := &Journal{
		db:     db,
		config: cfg,
		logger: logger.With("component", "events.journal"),
	}
	if err := j.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	j.logger.Info("event journal opened",
		"path", cfg.Path,
		"retention_days", cfg.RetentionDays,
	)
	return j, nil
}

func (j *Journal) prepareStatements() error {
	var err error

	j.insertStmt, err = j.db.Prepare(`
		INSERT OR IGNORE INTO events
			(id, type, source, node_id, policy_id, operation, process_name, pid, decision, message, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	j.recentStmt, err = j.db.Prepare(`
		SELECT id, type, source, node_id, policy_id, operation, process_name, pid, decision, message, timestamp
		FROM events
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ?
	`)
	if err != nil {
		return err
	}

	j.pruneStmt, err = j.db.Prepare(`DELETE FROM events WHERE timestamp < ?`)
	return err
}

// Record writes one event.
func (j *Journal) Record(ctx context.Context, e events.Event) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}

	e.Stamp()
	_, err := j.insertStmt.ExecContext(ctx,
		e.ID,
		string(e.Type),
		e.Source,
		int64(e.NodeID),
		int64(e.PolicyID),
		e.Operation.String(),
		e.ProcessName,
		int64(e.PID),
		e.Decision.String(),
		e.Message,
		e.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record event %s: %w", e.ID, err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]events.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := j.recentStmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			e                     events.Event
			typ, op, dec          string
			source, proc, message sql.NullString
			nodeID, policyID, pid int64
			ts                    int64
		)
		if err := rows.Scan(&e.ID, &typ, &source, &nodeID, &policyID, &op, &proc, &pid, &dec, &message, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = events.Type(typ)
		e.Source = source.String
		e.NodeID = uint64(nodeID)
		e.PolicyID = uint64(policyID)
		_ = e.Operation.UnmarshalText([]byte(op))
		_ = e.Decision.UnmarshalText([]byte(dec))
		e.ProcessName = proc.String
		e.PID = uint32(pid)
		e.Message = message.String
		e.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of stored events.
func (j *Journal) Count(ctx context.Context) (int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return 0, ErrClosed
	}

	var n int64
	if err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// PruneBefore deletes events older than cutoff and returns how many went.
func (j *Journal) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return 0, ErrClosed
	}

	res, err := j.pruneStmt.ExecContext(ctx, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune events: %w", err)
	}
	return res.RowsAffected()
}

// Prune applies the configured retention period.
func (j *Journal) Prune(ctx context.Context) (int64, error) {
	if j.config.RetentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -j.config.RetentionDays)
	return j.PruneBefore(ctx, cutoff)
}

// Run records events from ch until ch is closed or ctx is done.
func (j *Journal) Run(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			if err := j.Record(ctx, e); err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				j.logger.Error("failed to journal event",
					"event_id", e.ID,
					"event_type", e.Type,
					"error", err,
				)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Ping checks the database connection.
func (j *Journal) Ping(ctx context.Context) error {
	j.mu.RLock()
	closed := j.closed
	j.mu.RUnlock()
	if closed {
		return ErrClosed
	}
	return j.db.PingContext(ctx)
}

// Close releases the database.
func (j *Journal) Close() error {
	var err error
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		j.mu.Unlock()

		for _, stmt := range []*sql.Stmt{j.insertStmt, j.recentStmt, j.pruneStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		err = j.db.Close()
	})
	return err
}
