package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/crestline-eng/intaked/internal/extract"
)

const outcomeSchema = `
CREATE TABLE IF NOT EXISTS outcomes (
	message_id  TEXT PRIMARY KEY,
	outcome     TEXT NOT NULL,
	strategy    TEXT NOT NULL DEFAULT '',
	degraded    INTEGER NOT NULL DEFAULT 0,
	confidence  REAL NOT NULL DEFAULT 0,
	fields      TEXT NOT NULL DEFAULT '{}',
	verdicts    TEXT NOT NULL DEFAULT '[]',
	reason      TEXT NOT NULL DEFAULT '',
	decided_at  TEXT NOT NULL,
	reviewer    TEXT NOT NULL DEFAULT '',
	resolved_at TEXT NOT NULL DEFAULT ''
);
`

// SQLiteStore is the durable OutcomeStore. The message_id primary key makes
// duplicate outcome writes fail at the database, so exactly-once holds even
// across process restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the outcome database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open outcome database: %w", err)
	}
	// The store is hit from multiple workers; the driver serializes access
	// per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(outcomeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize outcome schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements OutcomeStore.
func (s *SQLiteStore) Get(ctx context.Context, messageID string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT message_id, outcome, strategy, degraded, confidence,
		       fields, verdicts, reason, decided_at, reviewer, resolved_at
		FROM outcomes WHERE message_id = ?`, messageID)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Put implements OutcomeStore.
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	verdicts, err := json.Marshal(rec.Verdicts)
	if err != nil {
		return fmt.Errorf("failed to encode verdicts: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO outcomes
			(message_id, outcome, strategy, degraded, confidence,
			 fields, verdicts, reason, decided_at, reviewer, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MessageID, string(rec.Outcome), string(rec.Strategy), boolInt(rec.Degraded),
		rec.Confidence, string(fields), string(verdicts), rec.Reason,
		rec.DecidedAt.UTC().Format(time.RFC3339Nano), rec.Reviewer, formatTime(rec.ResolvedAt))
	if err != nil {
		if exists, gerr := s.exists(ctx, rec.MessageID); gerr == nil && exists {
			return ErrAlreadyDecided
		}
		return fmt.Errorf("failed to store outcome: %w", err)
	}
	return nil
}

// Resolve implements OutcomeStore. The conditional UPDATE is the
// exactly-once guard: only a quarantined row can transition, and two
// concurrent decisions race for a single row change.
func (s *SQLiteStore) Resolve(ctx context.Context, messageID string, final Outcome, reviewer string) (Record, error) {
	if !final.Terminal() {
		return Record{}, errors.New("review decision must be accepted or rejected")
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE outcomes SET outcome = ?, reviewer = ?, resolved_at = ?
		WHERE message_id = ? AND outcome = ?`,
		string(final), reviewer, time.Now().UTC().Format(time.RFC3339Nano),
		messageID, string(OutcomeQuarantined))
	if err != nil {
		return Record{}, fmt.Errorf("failed to resolve outcome: %w", err)
	}

	changed, err := res.RowsAffected()
	if err != nil {
		return Record{}, err
	}
	if changed == 0 {
		if exists, gerr := s.exists(ctx, messageID); gerr == nil && !exists {
			return Record{}, ErrNotFound
		}
		return Record{}, ErrNotQuarantined
	}

	rec, _, err := s.Get(ctx, messageID)
	return rec, err
}

// Quarantined implements OutcomeStore.
func (s *SQLiteStore) Quarantined(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, outcome, strategy, degraded, confidence,
		       fields, verdicts, reason, decided_at, reviewer, resolved_at
		FROM outcomes WHERE outcome = ? ORDER BY decided_at`,
		string(OutcomeQuarantined))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pending []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		pending = append(pending, rec)
	}
	return pending, rows.Err()
}

// Close implements OutcomeStore.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) exists(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM outcomes WHERE message_id = ?`, messageID).Scan(&n)
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec                   Record
		outcome, strategy     string
		degraded              int
		fields, verdicts      string
		decidedAt, resolvedAt string
	)
	err := row.Scan(&rec.MessageID, &outcome, &strategy, &degraded, &rec.Confidence,
		&fields, &verdicts, &rec.Reason, &decidedAt, &rec.Reviewer, &resolvedAt)
	if err != nil {
		return Record{}, err
	}

	rec.Outcome = Outcome(outcome)
	rec.Strategy = extract.ID(strategy)
	rec.Degraded = degraded != 0

	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return Record{}, fmt.Errorf("corrupt fields for %s: %w", rec.MessageID, err)
	}
	if err := json.Unmarshal([]byte(verdicts), &rec.Verdicts); err != nil {
		return Record{}, fmt.Errorf("corrupt verdicts for %s: %w", rec.MessageID, err)
	}

	if rec.DecidedAt, err = time.Parse(time.RFC3339Nano, decidedAt); err != nil {
		return Record{}, fmt.Errorf("corrupt decided_at for %s: %w", rec.MessageID, err)
	}
	if resolvedAt != "" {
		if rec.ResolvedAt, err = time.Parse(time.RFC3339Nano, resolvedAt); err != nil {
			return Record{}, fmt.Errorf("corrupt resolved_at for %s: %w", rec.MessageID, err)
		}
	}
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
