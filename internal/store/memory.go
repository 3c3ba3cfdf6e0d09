package store

import (
	"context"
	"sync"
	"time"

	"salesplan-dashboard/internal/models"
)

type Op string

const (
	OpFetchTargets    Op = "fetch_targets"
	OpFetchOffers     Op = "fetch_offers"
	OpInsertOffer     Op = "insert_offer"
	OpUpdateOffer     Op = "update_offer"
	OpDeactivateOffer Op = "deactivate_offer"
	OpFetchSummaries  Op = "fetch_summaries"
	OpUpsertSummary   Op = "upsert_summary"
)

type memoryOffer struct {
	row    offerRow
	active bool
}

// MemoryStore keeps rows in process. Failures can be injected per operation.
type MemoryStore struct {
	mu        sync.RWMutex
	targets   map[int]map[string]targetRow
	offers    map[string]*memoryOffer
	order     []string
	summaries map[int]map[string]summaryRow
	failures  map[Op]error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		targets:   make(map[int]map[string]targetRow),
		offers:    make(map[string]*memoryOffer),
		summaries: make(map[int]map[string]summaryRow),
		failures:  make(map[Op]error),
	}
}

// FailOn makes op return err until cleared with a nil err.
func (s *MemoryStore) FailOn(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

func (s *MemoryStore) failure(op Op) error {
	return s.failures[op]
}

func (s *MemoryStore) UpsertTargets(ctx context.Context, targets []models.MonthlyTarget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range targets {
		row, err := targetFromModel(t)
		if err != nil {
			return err
		}
		if s.targets[t.Year] == nil {
			s.targets[t.Year] = make(map[string]targetRow)
		}
		s.targets[t.Year][row.Month] = row
	}
	return nil
}

func (s *MemoryStore) FetchTargets(ctx context.Context, year int) ([]models.MonthlyTarget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpFetchTargets); err != nil {
		return nil, err
	}
	out := make([]models.MonthlyTarget, 0, len(s.targets[year]))
	for _, row := range s.targets[year] {
		t, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sortTargets(out)
	return out, nil
}

func (s *MemoryStore) FetchOffers(ctx context.Context, year int) ([]models.Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpFetchOffers); err != nil {
		return nil, err
	}
	var out []models.Offer
	for _, id := range s.order {
		rec := s.offers[id]
		if !rec.active || rec.row.Year != year {
			continue
		}
		o, err := rec.row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *MemoryStore) InsertOffer(ctx context.Context, offer models.Offer) error {
	if err := validateOffer(offer); err != nil {
		return err
	}
	row, err := offerFromModel(offer)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpInsertOffer); err != nil {
		return err
	}
	if _, exists := s.offers[offer.ID]; !exists {
		s.order = append(s.order, offer.ID)
	}
	s.offers[offer.ID] = &memoryOffer{row: row, active: true}
	return nil
}

func (s *MemoryStore) UpdateOffer(ctx context.Context, offer models.Offer) error {
	if err := validateOffer(offer); err != nil {
		return err
	}
	row, err := offerFromModel(offer)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpUpdateOffer); err != nil {
		return err
	}
	rec, ok := s.offers[offer.ID]
	if !ok || !rec.active {
		return ErrNotFound
	}
	rec.row = row
	return nil
}

func (s *MemoryStore) DeactivateOffer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpDeactivateOffer); err != nil {
		return err
	}
	rec, ok := s.offers[id]
	if !ok || !rec.active {
		return ErrNotFound
	}
	rec.active = false
	return nil
}

func (s *MemoryStore) FetchSummaries(ctx context.Context, year int) ([]models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.failure(OpFetchSummaries); err != nil {
		return nil, err
	}
	out := make([]models.Summary, 0, len(s.summaries[year]))
	for _, row := range s.summaries[year] {
		sum, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s *MemoryStore) UpsertSummary(ctx context.Context, summary models.Summary) error {
	if err := validateSummary(summary); err != nil {
		return err
	}
	if summary.UpdatedAt.IsZero() {
		summary.UpdatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure(OpUpsertSummary); err != nil {
		return err
	}
	if s.summaries[summary.Year] == nil {
		s.summaries[summary.Year] = make(map[string]summaryRow)
	}
	row := summaryFromModel(summary)
	s.summaries[summary.Year][row.Month] = row
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
