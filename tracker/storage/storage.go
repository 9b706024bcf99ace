// Package storage provides the durable local store backing visitor identity
// and the offline event queue.
package storage

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
)

// Storage keys shared with the browser snippet.
const (
	VisitorIDKey  = "ea_visitor_id"
	EventQueueKey = "ea_event_queue"
)

// Store is a minimal durable key-value store. Every implementation must fail
// silently: a storage problem degrades the tracker, never breaks the host.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Remove(key string)
}

// MemoryStore is the in-memory fallback used when durable storage is
// unavailable (the private-browsing analog).
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *MemoryStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// FileStore persists keys to a single JSON file. Write failures are logged
// and otherwise ignored; reads fall back to the in-memory copy, so a
// read-only or missing file behaves like MemoryStore for the page load.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]string
	debug  bool
}

// NewFileStore opens (or creates) the store file at path. It never returns
// an error: on any failure it starts from an empty in-memory state.
func NewFileStore(path string, debug bool) *FileStore {
	s := &FileStore{
		path:   path,
		values: make(map[string]string),
		debug:  debug,
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, &s.values); err != nil {
			if debug {
				log.Printf("DEBUG: FileStore - ignoring corrupt store file %s: %v", path, err)
			}
			s.values = make(map[string]string)
		}
	}

	return s
}

func (s *FileStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.values[key]
	return val, ok
}

func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.persistLocked()
}

func (s *FileStore) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.persistLocked()
}

// persistLocked writes the store file synchronously so a queue write lands
// before any later suspension point can be interrupted.
func (s *FileStore) persistLocked() {
	data, err := json.Marshal(s.values)
	if err != nil {
		if s.debug {
			log.Printf("DEBUG: FileStore - marshal failed: %v", err)
		}
		return
	}

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			if s.debug {
				log.Printf("DEBUG: FileStore - mkdir failed for %s: %v", dir, err)
			}
			return
		}
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		if s.debug {
			log.Printf("DEBUG: FileStore - write failed for %s: %v", s.path, err)
		}
	}
}
