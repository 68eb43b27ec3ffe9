package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	timestampLayout = "2006-01-02T15:04:05Z"
)

// ErrAccessoryIDRequired is returned when an entry or query has no accessory.
var ErrAccessoryIDRequired = errors.New("history: accessory id is required")

// SQLiteRepository implements Repository on the outlet_state_history table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository wraps an open, migrated connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts one entry. A zero RecordedAt is replaced with now.
func (r *SQLiteRepository) Record(ctx context.Context, entry Entry) error {
	if entry.AccessoryID == "" {
		return ErrAccessoryIDRequired
	}
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO outlet_state_history (accessory_id, on_state, source, recorded_at)
		 VALUES (?, ?, ?, ?)`,
		entry.AccessoryID,
		boolToInt(entry.On),
		entry.Source,
		entry.RecordedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting state history: %w", err)
	}
	return nil
}

// List returns up to limit entries for the accessory, newest first.
// limit <= 0 selects the default of 50; values above 500 are clamped.
func (r *SQLiteRepository) List(ctx context.Context, accessoryID string, limit int) ([]Entry, error) {
	if accessoryID == "" {
		return nil, ErrAccessoryIDRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, accessory_id, on_state, source, recorded_at
		 FROM outlet_state_history
		 WHERE accessory_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		accessoryID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying state history: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			entry      Entry
			onState    int
			recordedAt string
		)
		if err := rows.Scan(&entry.ID, &entry.AccessoryID, &onState, &entry.Source, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning state history: %w", err)
		}
		entry.On = onState == 1

		entry.RecordedAt, err = parseTimestamp(recordedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating state history: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than now-olderThan and returns the count.
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("history: retention must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timestampLayout)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM outlet_state_history WHERE recorded_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting state history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("recorded_at is empty")
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing recorded_at: %w", err)
	}
	return ts.UTC(), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
