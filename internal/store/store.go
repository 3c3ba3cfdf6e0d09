// Package store is the record store client for monthly targets, offers and
// cached month summaries.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salesplan-dashboard/internal/models"
)

var ErrNotFound = errors.New("record not found")

type RecordStore interface {
	FetchTargets(ctx context.Context, year int) ([]models.MonthlyTarget, error)
	FetchOffers(ctx context.Context, year int) ([]models.Offer, error)
	InsertOffer(ctx context.Context, offer models.Offer) error
	UpdateOffer(ctx context.Context, offer models.Offer) error
	DeactivateOffer(ctx context.Context, id string) error
	FetchSummaries(ctx context.Context, year int) ([]models.Summary, error)
	UpsertSummary(ctx context.Context, summary models.Summary) error
	Close() error
}

// Seeder is implemented by stores that can be primed with the reference targets.
type Seeder interface {
	UpsertTargets(ctx context.Context, targets []models.MonthlyTarget) error
}

type Config struct {
	Driver      string
	DatabaseURL string
	SQLitePath  string
	SchemaPath  string
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg Config) (RecordStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case "postgres", "postgresql":
		pool, err := NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := EnsureSchema(ctx, pool, cfg.SchemaPath); err != nil {
			pool.Close()
			return nil, err
		}
		return NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func validateOffer(o models.Offer) error {
	if strings.TrimSpace(o.ID) == "" {
		return errors.New("offer id is required")
	}
	if !o.Month.Valid() {
		return fmt.Errorf("offer %s: invalid month %d", o.ID, int(o.Month))
	}
	return nil
}

func validateSummary(s models.Summary) error {
	if !s.Month.Valid() {
		return fmt.Errorf("summary: invalid month %d", int(s.Month))
	}
	return nil
}
