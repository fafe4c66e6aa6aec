package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/desertthunder/ytpull/internal/shared"
)

const fileVersion = 1

// FileStore keeps the ledger in a JSON file that is rewritten atomically on every change.
type FileStore struct {
	path string
}

type fileEntry struct {
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	RecordedAt time.Time `json:"recorded_at"`
}

type fileDoc struct {
	Version   int                  `json:"version"`
	UpdatedAt time.Time            `json:"updated_at"`
	Videos    map[string]fileEntry `json:"videos"`
}

// NewFileStore returns a store for the JSON file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) String() string { return s.path }

// Load implements [Store]. A missing file is an empty ledger.
func (s *FileStore) Load() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var doc fileDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}
	if doc.Version > fileVersion {
		return nil, fmt.Errorf("ledger version %d is newer than supported version %d", doc.Version, fileVersion)
	}

	records := make([]Record, 0, len(doc.Videos))
	for id, e := range doc.Videos {
		records = append(records, Record{VideoID: id, Path: e.Path, Size: e.Size, RecordedAt: e.RecordedAt})
	}
	sort.Slice(records, func(i, j int) bool { return records[i].VideoID < records[j].VideoID })
	return records, nil
}

// Persist implements [Store] by rewriting the whole file.
func (s *FileStore) Persist(_ Record, all []Record) error {
	doc := fileDoc{
		Version:   fileVersion,
		UpdatedAt: time.Now().UTC(),
		Videos:    make(map[string]fileEntry, len(all)),
	}
	for _, r := range all {
		doc.Videos[r.VideoID] = fileEntry{Path: r.Path, Size: r.Size, RecordedAt: r.RecordedAt}
	}

	data, err := shared.MarshalJSON(doc, true)
	if err != nil {
		return fmt.Errorf("failed to encode ledger: %w", err)
	}
	return shared.WriteFileAtomic(s.path, data, 0644)
}
