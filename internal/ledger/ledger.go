// package ledger records which videos have been fully downloaded.
//
// A [Ledger] is consulted before each download and updated after each success.
// Every successful [Ledger.Record] is persisted before it returns, so a crash loses
// at most the downloads still in flight.
package ledger

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Record maps a video to the file that holds it.
type Record struct {
	VideoID    string    `json:"video_id"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store is the durable backing for a [Ledger].
type Store interface {
	// Load returns every persisted record. A store that has never been written returns no records and no error.
	Load() ([]Record, error)
	// Persist durably adds rec. all holds every record including rec, for stores that rewrite in full.
	Persist(rec Record, all []Record) error
	// String describes the store for log output.
	String() string
}

// Ledger is the set of completed video identifiers. Safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	records map[string]Record
	store   Store
	logger  *log.Logger
	now     func() time.Time
}

// New creates an empty ledger backed by store. Call [Ledger.Load] before use.
func New(store Store, logger *log.Logger) *Ledger {
	return &Ledger{
		records: make(map[string]Record),
		store:   store,
		logger:  logger,
		now:     time.Now,
	}
}

// Load reads the backing store and returns the number of records.
//
// An unreadable store is not fatal: the ledger starts empty and a warning is logged.
func (l *Ledger) Load() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[string]Record)

	records, err := l.store.Load()
	if err != nil {
		l.logger.Warn("ledger unreadable, starting empty", "store", l.store.String(), "error", err)
		return 0
	}

	for _, r := range records {
		if r.VideoID == "" {
			continue
		}
		if _, ok := l.records[r.VideoID]; ok {
			continue
		}
		l.records[r.VideoID] = r
	}

	l.logger.Debug("ledger loaded", "store", l.store.String(), "records", len(l.records))
	return len(l.records)
}

// Contains reports whether id is recorded as complete.
func (l *Ledger) Contains(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[id]
	return ok
}

// Lookup returns the record for id.
func (l *Ledger) Lookup(id string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[id]
	return r, ok
}

// Record adds id -> path and persists it before returning.
//
// If id is already present the existing path is kept, a warning is logged and added is false.
// If persisting fails the record is not kept in memory either.
func (l *Ledger) Record(id, path string, size int64) (added bool, err error) {
	if id == "" {
		return false, fmt.Errorf("ledger: empty video id")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.records[id]; ok {
		l.logger.Warn("video already recorded, keeping first path",
			"video", id, "kept", existing.Path, "ignored", path)
		return false, nil
	}

	rec := Record{VideoID: id, Path: path, Size: size, RecordedAt: l.now().UTC()}
	l.records[id] = rec

	if err := l.store.Persist(rec, l.sortedLocked()); err != nil {
		delete(l.records, id)
		return false, fmt.Errorf("failed to persist ledger record for %s: %w", id, err)
	}
	return true, nil
}

// Records returns a copy of every record ordered by time recorded.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sortedLocked()
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Verify returns records whose file is missing from disk.
func (l *Ledger) Verify() []Record {
	var missing []Record
	for _, r := range l.Records() {
		if _, err := os.Stat(r.Path); err != nil {
			missing = append(missing, r)
		}
	}
	return missing
}

func (l *Ledger) sortedLocked() []Record {
	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].VideoID < out[j].VideoID
	})
	return out
}
