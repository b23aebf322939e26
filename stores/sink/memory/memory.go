// Package memory is an in-process sink keyed by record ID.
package memory

import (
	"context"
	"sync"

	"github.com/bsv-blockchain/utxodump/errors"
	"github.com/bsv-blockchain/utxodump/model"
)

const batchSize = 1000

type Sink struct {
	mu      sync.Mutex
	records map[string]model.Record
	flushes int
	closed  bool
}

func New() *Sink {
	return &Sink{
		records: make(map[string]model.Record),
	}
}

func (s *Sink) BatchSize() int {
	return batchSize
}

func (s *Sink) Write(_ context.Context, records []*model.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.NewStorageNotStartedError("memory sink is closed")
	}

	for _, record := range records {
		s.records[record.ID()] = *record
	}

	return nil
}

func (s *Sink) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.flushes++

	return nil
}

func (s *Sink) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

func (s *Sink) Upsert() bool {
	return true
}

// Records returns a copy of the stored records keyed by ID.
func (s *Sink) Records() map[string]model.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[string]model.Record, len(s.records))
	for id, r := range s.records {
		records[id] = r
	}

	return records
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.records)
}

func (s *Sink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.flushes
}
