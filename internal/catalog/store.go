package catalog

import (
	"sync"
	"sync/atomic"
	"time"
)

// Catalog is an immutable snapshot of loaded targets.
type Catalog struct {
	Source   string
	LoadedAt time.Time
	Targets  []Target
}

// ByID returns the target with the given id, or nil.
func (c *Catalog) ByID(id string) *Target {
	for i := range c.Targets {
		if c.Targets[i].ID == id {
			return &c.Targets[i]
		}
	}
	return nil
}

// Store provides thread-safe access to the current catalog snapshot.
// Readers get a consistent immutable snapshot; loads swap atomically.
type Store struct {
	catalog atomic.Pointer[Catalog]
	mu      sync.Mutex // serializes load operations
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current catalog, or nil if none has been loaded.
func (s *Store) Get() *Catalog {
	return s.catalog.Load()
}

// Set atomically replaces the current catalog.
func (s *Store) Set(c *Catalog) {
	s.catalog.Store(c)
}

// AgeSeconds returns the age of the current catalog in seconds, or -1
// if none is loaded.
func (s *Store) AgeSeconds() float64 {
	c := s.catalog.Load()
	if c == nil {
		return -1
	}
	return time.Since(c.LoadedAt).Seconds()
}

// Lock acquires the load mutex for serializing load operations.
func (s *Store) Lock() {
	s.mu.Lock()
}

// Unlock releases the load mutex.
func (s *Store) Unlock() {
	s.mu.Unlock()
}
