// Package activity keeps a SQLite journal of operator notices so recent
// activity survives restarts.
package activity

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/five82/courier/internal/instance"
)

// FileName is the journal database created inside the data directory.
const FileName = "activity.db"

// DefaultRetention is how many notices Prune keeps per instance.
const DefaultRetention = 500

const writeTimeout = 2 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS notices (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	at_ms    INTEGER NOT NULL,
	instance TEXT    NOT NULL,
	level    TEXT    NOT NULL,
	topic    TEXT    NOT NULL,
	title    TEXT    NOT NULL,
	detail   TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS notices_instance_id ON notices(instance, id DESC);
`

// Journal stores notices. It implements instance.Notifier.
type Journal struct {
	db  *sql.DB
	log *zap.Logger
}

var _ instance.Notifier = (*Journal)(nil)

// Open opens (or creates) the journal at path. Use ":memory:" for an
// ephemeral journal.
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One connection keeps :memory: databases and PRAGMAs consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return &Journal{db: db, log: logger}, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Notify records n. Failures are logged, never returned, so a broken journal
// cannot stall the reconciler.
func (j *Journal) Notify(n instance.Notice) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.Record(ctx, n); err != nil {
		j.log.Warn("journal write failed", zap.String("title", n.Title), zap.Error(err))
	}
}

// Record inserts n.
func (j *Journal) Record(ctx context.Context, n instance.Notice) error {
	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO notices (at_ms, instance, level, topic, title, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		at.UnixMilli(), n.Instance, n.Level.String(), string(n.Topic), n.Title, n.Detail)
	if err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}
	return nil
}

// Recent returns up to limit notices for name, newest first.
func (j *Journal) Recent(ctx context.Context, name string, limit int) ([]instance.Notice, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT at_ms, instance, level, topic, title, detail
		   FROM notices WHERE instance = ? ORDER BY id DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query notices: %w", err)
	}
	defer rows.Close()

	var out []instance.Notice
	for rows.Next() {
		var (
			atMs  int64
			n     instance.Notice
			level string
			topic string
		)
		if err := rows.Scan(&atMs, &n.Instance, &level, &topic, &n.Title, &n.Detail); err != nil {
			return nil, fmt.Errorf("scan notice: %w", err)
		}
		n.At = time.UnixMilli(atMs)
		n.Level = parseLevel(level)
		n.Topic = instance.Topic(topic)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notices: %w", err)
	}
	return out, nil
}

// Prune deletes all but the newest keep notices for name and reports how many
// rows were removed.
func (j *Journal) Prune(ctx context.Context, name string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := j.db.ExecContext(ctx,
		`DELETE FROM notices WHERE instance = ? AND id NOT IN (
			SELECT id FROM notices WHERE instance = ? ORDER BY id DESC LIMIT ?)`,
		name, name, keep)
	if err != nil {
		return 0, fmt.Errorf("prune notices: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune notices: %w", err)
	}
	return n, nil
}

func parseLevel(s string) instance.Level {
	switch s {
	case "warning":
		return instance.LevelWarning
	case "error":
		return instance.LevelError
	default:
		return instance.LevelInfo
	}
}
