package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"salesplan-dashboard/internal/models"
)

// SQLiteStore is the single-file record store used for local runs.
type SQLiteStore struct {
	DBPath string
	db     *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "data/salesplan.db"
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve sqlite path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer keeps SQLite from reporting SQLITE_BUSY under concurrent requests.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{DBPath: absPath, db: db}
	if err := s.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) ensureSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS monthly_targets (
	month TEXT NOT NULL,
	year INTEGER NOT NULL,
	target INTEGER NOT NULL DEFAULT 0,
	baseline INTEGER NOT NULL DEFAULT 0,
	prior_year_revenue INTEGER NOT NULL DEFAULT 0,
	location_targets TEXT NOT NULL DEFAULT '{}',
	location_prior TEXT NOT NULL DEFAULT '{}',
	theme TEXT NOT NULL DEFAULT '',
	context TEXT NOT NULL DEFAULT '',
	focus TEXT NOT NULL DEFAULT '',
	pricing_note TEXT NOT NULL DEFAULT '',
	hero_offer TEXT NOT NULL DEFAULT '',
	is_anniversary INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (month, year)
);
CREATE TABLE IF NOT EXISTS offers (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	id TEXT NOT NULL UNIQUE,
	month TEXT NOT NULL,
	year INTEGER NOT NULL,
	offer_type TEXT NOT NULL DEFAULT '',
	offer_name TEXT NOT NULL,
	audience TEXT NOT NULL DEFAULT '',
	mechanics TEXT NOT NULL DEFAULT '',
	pricing_breakdown TEXT NOT NULL DEFAULT '',
	why_it_works TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	is_cancelled INTEGER NOT NULL DEFAULT 0,
	is_confirmed INTEGER NOT NULL DEFAULT 0,
	location_units TEXT NOT NULL DEFAULT '{}',
	location_revenue TEXT NOT NULL DEFAULT '{}',
	is_active INTEGER NOT NULL DEFAULT 1,
	updated_at TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS month_summaries (
	month TEXT NOT NULL,
	year INTEGER NOT NULL,
	summary TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (month, year)
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) FetchTargets(ctx context.Context, year int) ([]models.MonthlyTarget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+targetColumns+` FROM monthly_targets WHERE year = ?`, year)
	if err != nil {
		return nil, fmt.Errorf("query targets: %w", err)
	}
	defer rows.Close()

	var out []models.MonthlyTarget
	for rows.Next() {
		var r targetRow
		var locTargets, locPrior string
		if err := rows.Scan(&r.Month, &r.Year, &r.Target, &r.Baseline, &r.PriorYearRevenue,
			&locTargets, &locPrior, &r.Theme, &r.Context, &r.Focus,
			&r.PricingNote, &r.HeroOffer, &r.IsAnniversary); err != nil {
			return nil, err
		}
		r.LocationTargets, r.LocationPrior = []byte(locTargets), []byte(locPrior)
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

func (s *SQLiteStore) UpsertTargets(ctx context.Context, targets []models.MonthlyTarget) error {
	for _, t := range targets {
		r, err := targetFromModel(t)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO monthly_targets (`+targetColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (month, year) DO UPDATE SET
			   target = excluded.target, baseline = excluded.baseline,
			   prior_year_revenue = excluded.prior_year_revenue,
			   location_targets = excluded.location_targets, location_prior = excluded.location_prior,
			   theme = excluded.theme, context = excluded.context, focus = excluded.focus,
			   pricing_note = excluded.pricing_note, hero_offer = excluded.hero_offer,
			   is_anniversary = excluded.is_anniversary`,
			r.Month, r.Year, r.Target, r.Baseline, r.PriorYearRevenue,
			string(r.LocationTargets), string(r.LocationPrior),
			r.Theme, r.Context, r.Focus, r.PricingNote, r.HeroOffer, r.IsAnniversary,
		); err != nil {
			return fmt.Errorf("upsert target %s: %w", r.Month, err)
		}
	}
	return nil
}

func (s *SQLiteStore) FetchOffers(ctx context.Context, year int) ([]models.Offer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE year = ? AND is_active = 1 ORDER BY seq`, year)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	var out []models.Offer
	for rows.Next() {
		var r offerRow
		var units, revenue string
		if err := rows.Scan(&r.ID, &r.Month, &r.Year, &r.OfferType, &r.OfferName, &r.Audience,
			&r.Mechanics, &r.PricingBreakdown, &r.WhyItWorks, &r.Notes, &r.IsCancelled,
			&r.IsConfirmed, &units, &revenue); err != nil {
			return nil, err
		}
		r.LocationUnits, r.LocationRevenue = []byte(units), []byte(revenue)
		o, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) InsertOffer(ctx context.Context, offer models.Offer) error {
	if err := validateOffer(offer); err != nil {
		return err
	}
	r, err := offerFromModel(offer)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO offers (`+offerColumns+`, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Month, r.Year, r.OfferType, r.OfferName, r.Audience, r.Mechanics, r.PricingBreakdown,
		r.WhyItWorks, r.Notes, r.IsCancelled, r.IsConfirmed, string(r.LocationUnits), string(r.LocationRevenue),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert offer %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateOffer(ctx context.Context, offer models.Offer) error {
	if err := validateOffer(offer); err != nil {
		return err
	}
	r, err := offerFromModel(offer)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE offers SET month=?, year=?, offer_type=?, offer_name=?, audience=?, mechanics=?,
		   pricing_breakdown=?, why_it_works=?, notes=?, is_cancelled=?, is_confirmed=?,
		   location_units=?, location_revenue=?, updated_at=?
		 WHERE id=? AND is_active = 1`,
		r.Month, r.Year, r.OfferType, r.OfferName, r.Audience, r.Mechanics, r.PricingBreakdown,
		r.WhyItWorks, r.Notes, r.IsCancelled, r.IsConfirmed, string(r.LocationUnits), string(r.LocationRevenue),
		time.Now().UTC().Format(time.RFC3339Nano), r.ID,
	)
	if err != nil {
		return fmt.Errorf("update offer %s: %w", r.ID, err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) DeactivateOffer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE offers SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("deactivate offer %s: %w", id, err)
	}
	return requireAffected(res)
}

func (s *SQLiteStore) FetchSummaries(ctx context.Context, year int) ([]models.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT month, year, summary, updated_at FROM month_summaries WHERE year = ?`, year)
	if err != nil {
		return nil, fmt.Errorf("query summaries: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var r summaryRow
		var updated string
		if err := rows.Scan(&r.Month, &r.Year, &r.Summary, &updated); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			r.UpdatedAt = ts
		}
		sum, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertSummary(ctx context.Context, summary models.Summary) error {
	if err := validateSummary(summary); err != nil {
		return err
	}
	r := summaryFromModel(summary)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO month_summaries (month, year, summary, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (month, year) DO UPDATE SET summary = excluded.summary, updated_at = excluded.updated_at`,
		r.Month, r.Year, r.Summary, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert summary %s: %w", r.Month, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
