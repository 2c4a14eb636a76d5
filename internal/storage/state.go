package storage

import (
	"context"
	"errors"
	"io/fs"
	"sort"
	"time"

	"github.com/chrisilt/course-watcher/internal/logger"
)

// SeenState is the monotonic set of notified event IDs
type SeenState struct {
	SeenIDs     []string `json:"seen_ids"`
	LastChecked *int64   `json:"last_checked"` // Unix seconds of the last completed run

	index map[string]struct{}
}

// NewSeenState creates an empty state
func NewSeenState() *SeenState {
	return &SeenState{
		SeenIDs: make([]string, 0),
		index:   make(map[string]struct{}),
	}
}

func (s *SeenState) ensureIndex() {
	if s.index != nil {
		return
	}
	s.index = make(map[string]struct{}, len(s.SeenIDs))
	for _, id := range s.SeenIDs {
		s.index[id] = struct{}{}
	}
}

// Has reports whether id was already notified
func (s *SeenState) Has(id string) bool {
	s.ensureIndex()
	_, ok := s.index[id]
	return ok
}

// Add records id as notified. IDs are never removed.
func (s *SeenState) Add(id string) {
	s.ensureIndex()
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = struct{}{}
	s.SeenIDs = append(s.SeenIDs, id)
}

// Len returns the number of seen IDs
func (s *SeenState) Len() int {
	s.ensureIndex()
	return len(s.index)
}

// Touch sets LastChecked to now
func (s *SeenState) Touch(now time.Time) {
	ts := now.Unix()
	s.LastChecked = &ts
}

// sorted returns a copy with IDs in lexical order, for stable files
func (s *SeenState) sorted() *SeenState {
	ids := make([]string, len(s.SeenIDs))
	copy(ids, s.SeenIDs)
	sort.Strings(ids)
	return &SeenState{SeenIDs: ids, LastChecked: s.LastChecked}
}

// LoadState reads the seen state from path. A missing or unreadable file yields an
// empty state; the problem is logged, never returned.
func LoadState(path string, log *logger.Logger) *SeenState {
	var st SeenState
	if err := readJSON(path, &st); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn("Failed to load state, starting empty", logger.Fields{"path": path, "error": err.Error()})
		}
		return NewSeenState()
	}

	if st.SeenIDs == nil {
		st.SeenIDs = make([]string, 0)
	}
	st.index = nil
	st.ensureIndex()
	return &st
}

// SaveState writes the seen state atomically
func SaveState(path string, st *SeenState) error {
	return WriteJSONAtomic(path, st.sorted())
}

// SeenStore loads and saves the seen state
type SeenStore interface {
	Load(ctx context.Context) (*SeenState, error)
	Save(ctx context.Context, st *SeenState) error
}

// FileSeenStore keeps the seen state in a JSON file
type FileSeenStore struct {
	Path string
	log  *logger.Logger
}

// NewFileSeenStore creates a file-backed store
func NewFileSeenStore(path string, log *logger.Logger) *FileSeenStore {
	if log == nil {
		log = logger.Default()
	}
	return &FileSeenStore{Path: path, log: log}
}

// Load never fails; see LoadState
func (f *FileSeenStore) Load(ctx context.Context) (*SeenState, error) {
	return LoadState(f.Path, f.log), nil
}

// Save writes the state atomically
func (f *FileSeenStore) Save(ctx context.Context, st *SeenState) error {
	return SaveState(f.Path, st)
}
