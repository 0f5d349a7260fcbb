package report

import (
	"container/list"
	"fmt"
	"sync"
)

// Store persists and retrieves run reports.
type Store interface {
	Save(report *RunReport) error
	Load(runID string) (*RunReport, error)
}

// LRUStore keeps the most recent run reports in memory. Reports are never
// written to disk; the store lives as long as the process.
type LRUStore struct {
	mu    sync.Mutex
	cap   int
	order *list.List // most recent at front; values are *RunReport
	items map[string]*list.Element
}

// NewLRUStore creates a store holding at most cap reports. Capacity below 1
// is raised to 1.
func NewLRUStore(cap int) *LRUStore {
	if cap < 1 {
		cap = 1
	}
	return &LRUStore{
		cap:   cap,
		order: list.New(),
		items: make(map[string]*list.Element, cap),
	}
}

// Save inserts or replaces a report, evicting the least recently used one
// when full.
func (s *LRUStore) Save(r *RunReport) error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("saving report: missing run id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.items[r.ID]; ok {
		e.Value = r
		s.order.MoveToFront(e)
		return nil
	}
	s.items[r.ID] = s.order.PushFront(r)
	for s.order.Len() > s.cap {
		oldest := s.order.Back()
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*RunReport).ID)
	}
	return nil
}

// Load returns the report with the given id and marks it recently used.
func (s *LRUStore) Load(runID string) (*RunReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[runID]
	if !ok {
		return nil, fmt.Errorf("run %s not found (only the %d most recent runs are kept)", runID, s.cap)
	}
	s.order.MoveToFront(e)
	return e.Value.(*RunReport), nil
}

// Len returns the number of stored reports.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
