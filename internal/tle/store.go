package tle

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Store provides thread-safe access to the current TLE dataset.
type Store struct {
	dataset atomic.Pointer[TLEDataset]
}

// NewStore creates a new empty Store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the current dataset, or nil if none has been loaded.
func (s *Store) Get() *TLEDataset {
	return s.dataset.Load()
}

// Set atomically replaces the current dataset.
func (s *Store) Set(ds *TLEDataset) {
	s.dataset.Store(ds)
}

// AgeSeconds returns the age of the current dataset in seconds.
// Returns -1 if no dataset is loaded.
func (s *Store) AgeSeconds() float64 {
	ds := s.dataset.Load()
	if ds == nil {
		return -1
	}
	return time.Since(ds.FetchedAt).Seconds()
}

// Find looks up a body in ds by name (case-insensitive, surrounding space
// ignored) or, when body is numeric, by NORAD catalog number.
func (ds *TLEDataset) Find(body string) (TLEEntry, bool) {
	body = strings.TrimSpace(body)
	if body == "" {
		return TLEEntry{}, false
	}

	if id, err := strconv.Atoi(body); err == nil {
		for _, e := range ds.Satellites {
			if e.NORADID == id {
				return e, true
			}
		}
		return TLEEntry{}, false
	}

	for _, e := range ds.Satellites {
		if strings.EqualFold(e.Name, body) {
			return e, true
		}
	}
	return TLEEntry{}, false
}
