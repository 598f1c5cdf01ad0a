// Package filestore keeps every student record in a single JSON document.
// Each write rewrites the whole document through a temp file and an atomic
// rename, so a crash leaves either the old or the new document on disk.
// Processes sharing the document serialise through students.json.lock.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rmkec/leetcode-leaderboard/internal/domain/shared"
	"github.com/rmkec/leetcode-leaderboard/internal/domain/student"
)

const documentVersion = 1

// document is the on-disk layout.
type document struct {
	Version  int          `json:"version"`
	Students []fileRecord `json:"students"`
}

type fileRecord struct {
	RegNo       string    `json:"regNo"`
	Name        string    `json:"name"`
	Department  string    `json:"department"`
	Year        string    `json:"year"`
	LeetcodeURL string    `json:"leetcodeUrl"`
	TotalSolved int       `json:"totalSolved"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toFileRecord(r student.Record) fileRecord {
	return fileRecord{
		RegNo:       r.RegNo,
		Name:        r.Name,
		Department:  string(r.Department),
		Year:        string(r.Year),
		LeetcodeURL: r.ProfileURL,
		TotalSolved: r.SolvedCount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (f fileRecord) toRecord() student.Record {
	return student.Record{
		RegNo:       f.RegNo,
		Name:        f.Name,
		Department:  student.Department(f.Department),
		Year:        student.Year(f.Year),
		ProfileURL:  f.LeetcodeURL,
		SolvedCount: f.TotalSolved,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Store is a student.Store backed by one JSON file. Several processes may
// share the file: every operation holds an OS lock on a sidecar lock file and
// reloads the document when another writer replaced it.
type Store struct {
	path string
	now  func() time.Time

	mu      sync.Mutex
	records map[string]student.Record
	loaded  os.FileInfo // document the cache was read from
	closed  bool
}

var _ student.Store = (*Store)(nil)

// Open loads the document at path, creating an empty one if it does not exist.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	s := &Store{
		path:    filepath.Clean(path),
		now:     time.Now,
		records: make(map[string]student.Record),
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return nil, storeError("Open", "create data directory", err)
	}

	err := s.locked("Open", true, func() error {
		if s.loaded != nil {
			return nil
		}
		return s.persistLocked(s.records)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Create adds a record and rewrites the document.
func (s *Store) Create(ctx context.Context, r student.Record) (student.Record, error) {
	if err := ctx.Err(); err != nil {
		return student.Record{}, err
	}

	err := s.locked("Create", true, func() error {
		if _, exists := s.records[r.RegNo]; exists {
			return shared.ErrStudentAlreadyExists
		}

		now := s.now().UTC()
		r.CreatedAt = now
		r.UpdatedAt = now

		next := s.cloneLocked()
		next[r.RegNo] = r
		return s.persistLocked(next)
	})
	if err != nil {
		return student.Record{}, err
	}
	return r, nil
}

// Get returns one record.
func (s *Store) Get(ctx context.Context, regNo string) (student.Record, error) {
	if err := ctx.Err(); err != nil {
		return student.Record{}, err
	}

	var r student.Record
	err := s.locked("Get", false, func() error {
		var ok bool
		if r, ok = s.records[regNo]; !ok {
			return shared.ErrStudentNotFound
		}
		return nil
	})
	if err != nil {
		return student.Record{}, err
	}
	return r, nil
}

// ListAll returns a snapshot of every record.
func (s *Store) ListAll(ctx context.Context) ([]student.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []student.Record
	err := s.locked("ListAll", false, func() error {
		out = make([]student.Record, 0, len(s.records))
		for _, r := range s.records {
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites the solved count of one record and rewrites the document.
// The cached state only changes once the new document is on disk.
func (s *Store) Update(ctx context.Context, regNo string, solvedCount int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if solvedCount < 0 {
		return shared.ErrNegativeSolvedCount
	}

	return s.locked("Update", true, func() error {
		r, ok := s.records[regNo]
		if !ok {
			return shared.ErrStudentNotFound
		}

		r.SolvedCount = solvedCount
		r.UpdatedAt = s.now().UTC()

		next := s.cloneLocked()
		next[regNo] = r
		return s.persistLocked(next)
	})
}

// Ping verifies the document is still readable.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed("Ping")
	}
	if _, err := os.Stat(s.path); err != nil {
		return storeError("Ping", "stat document", err)
	}
	return nil
}

// Close marks the store closed. The document needs no flushing.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Locking
// ─────────────────────────────────────────────────────────────────────────────

// locked runs fn under the in-process mutex and the OS lock, with the cache
// refreshed from disk. Writers take the lock exclusively.
func (s *Store) locked(op string, exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed(op)
	}

	unlock, err := lockFile(s.path+".lock", exclusive)
	if err != nil {
		return storeError(op, "lock document", err)
	}
	defer unlock()

	if err := s.refreshLocked(op); err != nil {
		return err
	}
	return fn()
}

// refreshLocked rereads the document if it is not the one the cache came
// from. Every write replaces the file, so a new inode means a new writer.
func (s *Store) refreshLocked(op string) error {
	info, err := os.Stat(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && s.loaded == nil:
		return nil
	case err != nil:
		return storeError(op, "stat document", err)
	}
	if s.loaded != nil && os.SameFile(info, s.loaded) &&
		info.Size() == s.loaded.Size() && info.ModTime().Equal(s.loaded.ModTime()) {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return storeError(op, "read document", err)
	}
	records := make(map[string]student.Record)
	if len(strings.TrimSpace(string(data))) > 0 {
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return storeError(op, "decode document", err)
		}
		for _, fr := range doc.Students {
			records[fr.RegNo] = fr.toRecord()
		}
	}

	s.records = records
	s.loaded = info
	return nil
}

func (s *Store) cloneLocked() map[string]student.Record {
	next := make(map[string]student.Record, len(s.records)+1)
	for k, v := range s.records {
		next[k] = v
	}
	return next
}

// persistLocked writes records to disk and makes them the cached state.
func (s *Store) persistLocked(records map[string]student.Record) error {
	if err := s.persist(records); err != nil {
		return err
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return storeError("persist", "stat document", err)
	}
	s.records = records
	s.loaded = info
	return nil
}

// persist writes records to a temp file in the same directory, syncs it and
// renames it over the document.
func (s *Store) persist(records map[string]student.Record) error {
	doc := document{Version: documentVersion, Students: make([]fileRecord, 0, len(records))}
	for _, r := range records {
		doc.Students = append(doc.Students, toFileRecord(r))
	}
	sort.Slice(doc.Students, func(i, j int) bool {
		return doc.Students[i].RegNo < doc.Students[j].RegNo
	})

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return storeError("persist", "encode document", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return storeError("persist", "create temp file", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return storeError("persist", "write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return storeError("persist", "sync temp file", err)
	}
	if err := tmp.Close(); err != nil {
		return storeError("persist", "close temp file", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return storeError("persist", "rename document", err)
	}
	return nil
}

func errClosed(op string) error {
	return shared.NewDomainError("filestore", op, shared.ErrStoreUnavailable, "store is closed")
}

func storeError(op, message string, err error) error {
	return shared.WrapError("filestore", op, shared.ErrStoreUnavailable, message, err)
}
