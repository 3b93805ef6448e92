// Package store persists last-known task state as a flat JSON document
// {"tasks": [...]}. The file is shared with external tooling: reads degrade
// to an empty store only when the file does not exist, and writes always
// rewrite the whole document.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/julestools/julesmcp/internal/jules"
	"github.com/julestools/julesmcp/internal/logging"
)

type document struct {
	Tasks []jules.Task `json:"tasks"`
}

// Store reads and writes the task document. With a watcher attached the
// parsed document is cached until the file changes on disk; without one,
// every read reloads.
type Store struct {
	path     string
	mu       sync.Mutex
	cache    *document
	watching bool
	watcher  *fsnotify.Watcher
}

// New opens a store over the given file. The file need not exist yet.
func New(path string) *Store {
	return &Store{path: path}
}

// NewWatched opens a store that caches the document and invalidates the
// cache when the file changes on disk (external writers included). If the
// watcher cannot be created the store silently degrades to load-per-read.
func NewWatched(path string) *Store {
	s := New(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warnf("store: watcher unavailable, reloading per read: %v", err)
		return s
	}
	// Watch the directory: the file may not exist yet, and renames would
	// drop a direct file watch.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil || watcher.Add(dir) != nil {
		logging.Warnf("store: cannot watch %s, reloading per read", dir)
		_ = watcher.Close()
		return s
	}

	s.watching = true
	s.watcher = watcher
	go s.watch()
	return s
}

func (s *Store) watch() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.mu.Lock()
				s.cache = nil
				s.mu.Unlock()
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.Warnf("store: watcher: %v", err)
		}
	}
}

// Close releases the watcher, if any.
func (s *Store) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// load returns the current document. Caller holds s.mu.
func (s *Store) load() (*document, error) {
	if s.cache != nil {
		return s.cache, nil
	}

	doc := &document{Tasks: []jules.Task{}}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// No data yet is not an error; broken storage is.
			return doc, nil
		}
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("store: parse %s: %w", s.path, err)
	}
	if doc.Tasks == nil {
		doc.Tasks = []jules.Task{}
	}

	if s.watching {
		s.cache = doc
	}
	return doc, nil
}

// save rewrites the whole document atomically. Caller holds s.mu. The cache
// is dropped up front so a failed write cannot leave it ahead of the file.
func (s *Store) save(doc *document) error {
	s.cache = nil
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("store: create dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".tasks-*.json")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("store: replace %s: %w", s.path, err)
	}

	if s.watching {
		s.cache = doc
	}
	return nil
}

// Upsert inserts or replaces the task with the same id.
func (s *Store) Upsert(task jules.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range doc.Tasks {
		if doc.Tasks[i].ID == task.ID {
			doc.Tasks[i] = task
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Tasks = append(doc.Tasks, task)
	}
	return s.save(doc)
}

// Get returns the stored task with the given id.
func (s *Store) Get(id string) (*jules.Task, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, false, err
	}
	for i := range doc.Tasks {
		if doc.Tasks[i].ID == id {
			task := doc.Tasks[i]
			return &task, true, nil
		}
	}
	return nil, false, nil
}

// List returns tasks most recently updated first, optionally filtered by
// status, truncated to limit when limit > 0.
func (s *Store) List(status string, limit int) ([]jules.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	tasks := make([]jules.Task, len(doc.Tasks))
	copy(tasks, doc.Tasks)
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
	})

	if status != "" {
		filtered := tasks[:0]
		for _, t := range tasks {
			if string(t.Status) == status {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	return tasks, nil
}

// Delete removes the task with the given id and reports whether it existed.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return false, err
	}
	for i := range doc.Tasks {
		if doc.Tasks[i].ID == id {
			doc.Tasks = append(doc.Tasks[:i], doc.Tasks[i+1:]...)
			return true, s.save(doc)
		}
	}
	return false, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}
