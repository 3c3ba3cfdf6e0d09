package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"salesplan-dashboard/internal/models"
)

//go:embed schema.sql
var defaultSchema string

// NewPool connects and keeps pinging until the database answers or 30s pass.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("postgres store requires DATABASE_URL")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database pool init failed: %w", err)
	}

	deadline := time.Now().Add(30 * time.Second)
	for {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return pool, nil
		}
		if time.Now().After(deadline) {
			pool.Close()
			return nil, fmt.Errorf("database ping failed after retries: %w", err)
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(1500 * time.Millisecond):
		}
	}
}

// EnsureSchema runs each statement of the schema file, or of the embedded
// schema when schemaPath is empty.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, schemaPath string) error {
	schema := defaultSchema
	if strings.TrimSpace(schemaPath) != "" {
		data, err := os.ReadFile(filepath.Clean(schemaPath))
		if err != nil {
			return fmt.Errorf("read schema file failed (%s): %w", schemaPath, err)
		}
		schema = string(data)
	}

	for _, stmt := range strings.Split(schema, ";") {
		query := strings.TrimSpace(stmt)
		if query == "" {
			continue
		}
		if _, err := pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const targetColumns = `month, year, target, baseline, prior_year_revenue, location_targets, location_prior,
	theme, context, focus, pricing_note, hero_offer, is_anniversary`

const offerColumns = `id, month, year, offer_type, offer_name, audience, mechanics, pricing_breakdown,
	why_it_works, notes, is_cancelled, is_confirmed, location_units, location_revenue`

func (s *PostgresStore) FetchTargets(ctx context.Context, year int) ([]models.MonthlyTarget, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+targetColumns+` FROM monthly_targets WHERE year = $1`, year)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var out []models.MonthlyTarget
	for rows.Next() {
		var r targetRow
		if err := rows.Scan(&r.Month, &r.Year, &r.Target, &r.Baseline, &r.PriorYearRevenue,
			&r.LocationTargets, &r.LocationPrior, &r.Theme, &r.Context, &r.Focus,
			&r.PricingNote, &r.HeroOffer, &r.IsAnniversary); err != nil {
			return nil, err
		}
		t, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortTargets(out)
	return out, nil
}

func (s *PostgresStore) UpsertTargets(ctx context.Context, targets []models.MonthlyTarget) error {
	for _, t := range targets {
		r, err := targetFromModel(t)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO monthly_targets (`+targetColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			 ON CONFLICT (month, year) DO UPDATE SET
			   target = EXCLUDED.target, baseline = EXCLUDED.baseline,
			   prior_year_revenue = EXCLUDED.prior_year_revenue,
			   location_targets = EXCLUDED.location_targets, location_prior = EXCLUDED.location_prior,
			   theme = EXCLUDED.theme, context = EXCLUDED.context, focus = EXCLUDED.focus,
			   pricing_note = EXCLUDED.pricing_note, hero_offer = EXCLUDED.hero_offer,
			   is_anniversary = EXCLUDED.is_anniversary`,
			r.Month, r.Year, r.Target, r.Baseline, r.PriorYearRevenue, r.LocationTargets, r.LocationPrior,
			r.Theme, r.Context, r.Focus, r.PricingNote, r.HeroOffer, r.IsAnniversary,
		); err != nil {
			return fmt.Errorf("upsert target %s: %w", r.Month, err)
		}
	}
	return nil
}

func (s *PostgresStore) FetchOffers(ctx context.Context, year int) ([]models.Offer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE year = $1 AND is_active ORDER BY created_at, id`, year)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	var out []models.Offer
	for rows.Next() {
		var r offerRow
		if err := rows.Scan(&r.ID, &r.Month, &r.Year, &r.OfferType, &r.OfferName, &r.Audience,
			&r.Mechanics, &r.PricingBreakdown, &r.WhyItWorks, &r.Notes, &r.IsCancelled,
			&r.IsConfirmed, &r.LocationUnits, &r.LocationRevenue); err != nil {
			return nil, err
		}
		o, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertOffer(ctx context.Context, offer models.Offer) error {
	if err := validateOffer(offer); err != nil {
		return err
	}
	r, err := offerFromModel(offer)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO offers (`+offerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.Month, r.Year, r.OfferType, r.OfferName, r.Audience, r.Mechanics, r.PricingBreakdown,
		r.WhyItWorks, r.Notes, r.IsCancelled, r.IsConfirmed, r.LocationUnits, r.LocationRevenue,
	)
	if err != nil {
		return fmt.Errorf("insert offer %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateOffer(ctx context.Context, offer models.Offer) error {
	if err := validateOffer(offer); err != nil {
		return err
	}
	r, err := offerFromModel(offer)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE offers SET month=$2, year=$3, offer_type=$4, offer_name=$5, audience=$6, mechanics=$7,
		   pricing_breakdown=$8, why_it_works=$9, notes=$10, is_cancelled=$11, is_confirmed=$12,
		   location_units=$13, location_revenue=$14, updated_at=NOW()
		 WHERE id=$1 AND is_active`,
		r.ID, r.Month, r.Year, r.OfferType, r.OfferName, r.Audience, r.Mechanics, r.PricingBreakdown,
		r.WhyItWorks, r.Notes, r.IsCancelled, r.IsConfirmed, r.LocationUnits, r.LocationRevenue,
	)
	if err != nil {
		return fmt.Errorf("update offer %s: %w", r.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeactivateOffer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE offers SET is_active=FALSE, updated_at=NOW() WHERE id=$1 AND is_active`, id)
	if err != nil {
		return fmt.Errorf("deactivate offer %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FetchSummaries(ctx context.Context, year int) ([]models.Summary, error) {
	rows, err := s.pool.Query(ctx, `SELECT month, year, summary, updated_at FROM month_summaries WHERE year = $1`, year)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var r summaryRow
		if err := rows.Scan(&r.Month, &r.Year, &r.Summary, &r.UpdatedAt); err != nil {
			return nil, err
		}
		sum, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertSummary(ctx context.Context, summary models.Summary) error {
	if err := validateSummary(summary); err != nil {
		return err
	}
	r := summaryFromModel(summary)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO month_summaries (month, year, summary, updated_at) VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (month, year) DO UPDATE SET summary = EXCLUDED.summary, updated_at = NOW()`,
		r.Month, r.Year, r.Summary,
	)
	if err != nil {
		return fmt.Errorf("upsert summary %s: %w", r.Month, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
