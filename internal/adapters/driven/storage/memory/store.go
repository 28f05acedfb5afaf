// Package memory provides in-memory ledger stores for tests and for
// single-shot CLI runs that do not need persistence.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/buildlens/buildlens/internal/core/domain"
	"github.com/buildlens/buildlens/internal/core/ports/driven"
)

// UsageStore is an in-memory driven.UsageStore. Safe for concurrent use.
type UsageStore struct {
	mu      sync.Mutex
	records []domain.UsageRecord
}

var _ driven.UsageStore = (*UsageStore)(nil)

// NewUsageStore creates an empty in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{}
}

func (s *UsageStore) Append(_ context.Context, rec domain.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *UsageStore) List(_ context.Context, since time.Time) ([]domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UsageRecord, 0, len(s.records))
	for _, rec := range s.records {
		if !rec.Timestamp.Before(since) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *UsageStore) Close() error {
	return nil
}

// DeliveryStore is an in-memory driven.DeliveryStore. Safe for concurrent use.
type DeliveryStore struct {
	mu        sync.Mutex
	delivered map[string]struct{}
}

var _ driven.DeliveryStore = (*DeliveryStore)(nil)

// NewDeliveryStore creates an empty in-memory delivery store.
func NewDeliveryStore() *DeliveryStore {
	return &DeliveryStore{delivered: make(map[string]struct{})}
}

func (s *DeliveryStore) MarkDelivered(_ context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("%w: empty event id", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.delivered[eventID]; seen {
		return false, nil
	}
	s.delivered[eventID] = struct{}{}
	return true, nil
}

func (s *DeliveryStore) ClearDelivered(_ context.Context, eventID string) error {
	if eventID == "" {
		return fmt.Errorf("%w: empty event id", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.delivered, eventID)
	return nil
}

func (s *DeliveryStore) Close() error {
	return nil
}
