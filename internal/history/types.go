package history

import (
	"context"
	"time"
)

// Source values identify which surface observed or caused a change.
const (
	SourceHomeKit = "homekit"
	SourceMQTT    = "mqtt"
	SourceAPI     = "api"
)

// Entry is one persisted power state change.
type Entry struct {
	ID          int64     `json:"id"`
	AccessoryID string    `json:"accessory_id"`
	On          bool      `json:"on"`
	Source      string    `json:"source"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// Repository stores and retrieves state changes. Timestamps are UTC.
type Repository interface {
	Record(ctx context.Context, entry Entry) error
	List(ctx context.Context, accessoryID string, limit int) ([]Entry, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
