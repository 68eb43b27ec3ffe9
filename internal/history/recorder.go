package history

import (
	"context"
	"sync"
	"time"
)

// StateSink receives every recorded change in addition to SQLite.
// *influxdb.Client satisfies it.
type StateSink interface {
	WriteOutletState(accessoryID string, on bool, source string, at time.Time)
}

// Logger is the logging capability used by the recorder.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Listener is notified after a change has been recorded.
type Listener func(entry Entry)

// Recorder turns state observations into history entries.
//
// Observe is safe for concurrent use. Only transitions are recorded: the
// first observation and any observation that differs from the last one.
// Transitions reach the repository, sinks and listeners in the order they
// were detected, so the last listener call always matches Last.
type Recorder struct {
	accessoryID string
	repo        Repository
	log         Logger

	// serialises Observe from the transition check through fan-out.
	// Listeners must not call Observe.
	observeMu sync.Mutex

	mu        sync.Mutex
	last      *bool
	sinks     []StateSink
	listeners []Listener

	now func() time.Time
}

// NewRecorder creates a recorder for one accessory.
func NewRecorder(accessoryID string, repo Repository, log Logger) *Recorder {
	return &Recorder{
		accessoryID: accessoryID,
		repo:        repo,
		log:         log,
		now:         time.Now,
	}
}

// AddSink registers a secondary store.
func (r *Recorder) AddSink(sink StateSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink)
}

// Subscribe registers a listener.
func (r *Recorder) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Last returns the last observed state, if any.
func (r *Recorder) Last() (on bool, known bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return false, false
	}
	return *r.last, true
}

// Observe reports the current power state as seen by source. It returns
// true when the observation was a transition and has been recorded.
// Persistence failures are logged, not returned.
func (r *Recorder) Observe(ctx context.Context, on bool, source string) bool {
	r.observeMu.Lock()
	defer r.observeMu.Unlock()

	r.mu.Lock()
	if r.last != nil && *r.last == on {
		r.mu.Unlock()
		return false
	}
	state := on
	r.last = &state
	sinks := append([]StateSink(nil), r.sinks...)
	listeners := append([]Listener(nil), r.listeners...)
	r.mu.Unlock()

	entry := Entry{
		AccessoryID: r.accessoryID,
		On:          on,
		Source:      source,
		RecordedAt:  r.now().UTC(),
	}

	if err := r.repo.Record(ctx, entry); err != nil {
		r.log.Warn("failed to record state change", "error", err, "on", on, "source", source)
	}
	for _, s := range sinks {
		s.WriteOutletState(entry.AccessoryID, entry.On, entry.Source, entry.RecordedAt)
	}
	for _, l := range listeners {
		l(entry)
	}
	return true
}

// List returns recent entries for the recorder's accessory.
func (r *Recorder) List(ctx context.Context, limit int) ([]Entry, error) {
	return r.repo.List(ctx, r.accessoryID, limit)
}

// RunPruner deletes entries older than retention every interval until ctx is
// cancelled. A non-positive retention or interval disables pruning.
func (r *Recorder) RunPruner(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 || retention <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.prune(ctx, retention)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.prune(ctx, retention)
		}
	}
}

func (r *Recorder) prune(ctx context.Context, retention time.Duration) {
	n, err := r.repo.Prune(ctx, retention)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Warn("state history pruning failed", "error", err)
		}
		return
	}
	if n > 0 {
		r.log.Info("pruned state history", "deleted", n, "retention", retention.String())
	}
}
