package feed

import (
	"context"
	"sync"

	"github.com/pulsenote/pulsenote/internal/event"
)

// captureSink is a test Sink that records everything persisted to it.
type captureSink struct {
	mu      sync.Mutex
	records []event.Record
}

func (s *captureSink) Persist(_ context.Context, rec event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *captureSink) Name() string { return "capture" }

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
