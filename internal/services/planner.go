package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	apperrors "salesplan-dashboard/internal/errors"
	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/report"
	"salesplan-dashboard/internal/seed"
	"salesplan-dashboard/internal/store"
)

var (
	ErrOfferNotFound  = errors.New("offer not found")
	ErrOfferConfirmed = errors.New("offer is confirmed and can no longer be changed")
)

type DataSource string

const (
	SourceStore DataSource = "store"
	SourceSeed  DataSource = "seed"
)

// OfferDraft is the raw add/edit form. Numeric fields are parsed leniently and
// fall back to 0.
type OfferDraft struct {
	Month           string            `json:"month"`
	Category        string            `json:"category"`
	Name            string            `json:"name"`
	Audience        string            `json:"audience"`
	Mechanics       string            `json:"mechanics"`
	Pricing         string            `json:"pricing"`
	WhyItWorks      string            `json:"why_it_works"`
	Notes           string            `json:"notes"`
	LocationUnits   map[string]string `json:"location_units"`
	LocationRevenue map[string]string `json:"location_revenue"`
}

// Missing lists the required fields left blank; the form cannot be submitted
// while any are missing.
func (d OfferDraft) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"month", d.Month},
		{"name", d.Name},
		{"audience", d.Audience},
		{"mechanics", d.Mechanics},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func (d OfferDraft) validate() (models.Month, error) {
	if missing := d.Missing(); len(missing) > 0 {
		return 0, apperrors.Validation("missing required fields: " + strings.Join(missing, ", "))
	}
	month, err := models.ParseMonth(d.Month)
	if err != nil {
		return 0, apperrors.ValidationWrap(err, "invalid month")
	}
	return month, nil
}

func (d OfferDraft) apply(o *models.Offer, month models.Month) {
	o.Month = month
	o.Category = models.OfferCategory(strings.TrimSpace(d.Category))
	o.Name = strings.TrimSpace(d.Name)
	o.Audience = strings.TrimSpace(d.Audience)
	o.Mechanics = strings.TrimSpace(d.Mechanics)
	o.Pricing = strings.TrimSpace(d.Pricing)
	o.WhyItWorks = strings.TrimSpace(d.WhyItWorks)
	o.Notes = strings.TrimSpace(d.Notes)
	o.LocationUnits = parseNumbers(d.LocationUnits)
	o.LocationRevenue = parseNumbers(d.LocationRevenue)
}

// DraftFrom pre-fills an edit form from an existing offer.
func DraftFrom(o models.Offer) OfferDraft {
	return OfferDraft{
		Month:           o.Month.Name(),
		Category:        string(o.Category),
		Name:            o.Name,
		Audience:        o.Audience,
		Mechanics:       o.Mechanics,
		Pricing:         o.Pricing,
		WhyItWorks:      o.WhyItWorks,
		Notes:           o.Notes,
		LocationUnits:   formatNumbers(o.LocationUnits),
		LocationRevenue: formatNumbers(o.LocationRevenue),
	}
}

// ParseNumber accepts grouped numbers like "1,20,000"; anything else is 0.
func ParseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseNumbers(in map[string]string) map[string]float64 {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = ParseNumber(v)
	}
	return out
}

func formatNumbers(in map[string]float64) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// Planner owns the in-memory plan. Writes are applied locally first and then
// sent to the record store; a failed write leaves the local change in place
// and marks the offer dirty until a refresh or resync reconciles it. A failed
// delete is rolled back instead.
type Planner struct {
	mu      sync.RWMutex
	store   store.RecordStore
	dataset *seed.Dataset
	logger  *slog.Logger
	newID   func() string

	year    int
	source  DataSource
	loaded  time.Time
	targets []models.MonthlyTarget
	offers  map[models.Month][]models.Offer
	// revs counts local edits per offer. A store write only settles the
	// offer if no edit landed while it was in flight.
	revs map[string]uint64
}

func NewPlanner(st store.RecordStore, ds *seed.Dataset, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		store:   st,
		dataset: ds,
		logger:  logger,
		newID:   uuid.NewString,
		year:    ds.Year,
		source:  SourceSeed,
		targets: ds.TargetsForYear(ds.Year),
		offers:  groupOffers(ds.OffersForYear(ds.Year)),
		revs:    make(map[string]uint64),
	}
}

func groupOffers(offers []models.Offer) map[models.Month][]models.Offer {
	out := make(map[models.Month][]models.Offer)
	for _, o := range offers {
		if o.SyncState == "" {
			o.SyncState = models.SyncSynced
		}
		out[o.Month] = append(out[o.Month], o)
	}
	return out
}

// Load fetches targets and offers for year. Fetch failures fall back to the
// seed dataset; an empty store is primed with the seed.
func (p *Planner) Load(ctx context.Context, year int) error {
	var (
		targets               []models.MonthlyTarget
		offers                []models.Offer
		targetsErr, offersErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		targets, targetsErr = p.store.FetchTargets(gctx, year)
		return nil
	})
	g.Go(func() error {
		offers, offersErr = p.store.FetchOffers(gctx, year)
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	source := SourceStore
	switch {
	case targetsErr != nil:
		p.logger.Warn("fetch targets failed, using seed dataset", "year", year, "error", targetsErr)
		targets, source = p.dataset.TargetsForYear(year), SourceSeed
	case len(targets) == 0:
		targets, source = p.dataset.TargetsForYear(year), SourceSeed
		if offersErr == nil && len(offers) == 0 {
			offers = p.dataset.OffersForYear(year)
			p.prime(ctx, targets, offers)
		}
	default:
		if err := seed.ValidateTargets(targets); err != nil {
			p.logger.Warn("stored targets rejected, using seed dataset", "year", year, "error", err)
			targets, source = p.dataset.TargetsForYear(year), SourceSeed
		}
	}
	if offersErr != nil {
		p.logger.Warn("fetch offers failed, using seed dataset", "year", year, "error", offersErr)
		offers = p.dataset.OffersForYear(year)
		source = SourceSeed
	}
	for i := range offers {
		offers[i].SyncState = models.SyncSynced
		offers[i].SyncError = ""
	}

	p.mu.Lock()
	p.year = year
	p.source = source
	p.loaded = time.Now()
	p.targets = targets
	p.offers = groupOffers(offers)
	p.mu.Unlock()

	p.logger.Info("plan loaded", "year", year, "source", source, "targets", len(targets), "offers", len(offers))
	return nil
}

// prime writes the seed into an empty store. Failures are logged only.
func (p *Planner) prime(ctx context.Context, targets []models.MonthlyTarget, offers []models.Offer) {
	if seeder, ok := p.store.(store.Seeder); ok {
		if err := seeder.UpsertTargets(ctx, targets); err != nil {
			p.logger.Error("prime store targets", "error", err)
			return
		}
	}
	for _, o := range offers {
		if err := p.store.InsertOffer(ctx, o); err != nil {
			p.logger.Error("prime store offer", "offer_id", o.ID, "error", err)
		}
	}
	p.logger.Info("primed empty store from seed", "targets", len(targets), "offers", len(offers))
}

func (p *Planner) Refresh(ctx context.Context) error {
	return p.Load(ctx, p.Year())
}

func (p *Planner) Year() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.year
}

func (p *Planner) Source() DataSource {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.source
}

func (p *Planner) Locations() []string {
	return slices.Clone(p.dataset.Locations)
}

func (p *Planner) Risks(period models.Period) []models.RiskItem {
	return p.dataset.RisksFor(period.Halves()...)
}

func (p *Planner) Dataset() *seed.Dataset {
	return p.dataset
}

// Months returns the targets inside period in calendar order.
func (p *Planner) Months(period models.Period) []models.MonthlyTarget {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return report.FilterMonths(p.targets, period)
}

func (p *Planner) Target(month models.Month) (models.MonthlyTarget, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.targets {
		if t.Month == month {
			return t, true
		}
	}
	return models.MonthlyTarget{}, false
}

func (p *Planner) AggregateTarget(period models.Period) int64 {
	return report.AggregateTarget(p.Months(period))
}

// Offers returns the month's offers in insertion order, without cancelled ones
// unless showCancelled is set.
func (p *Planner) Offers(month models.Month, showCancelled bool) []models.Offer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return report.VisibleOffers(p.offers[month], showCancelled)
}

// OffersByMonth copies every month's offers, cancelled ones included.
func (p *Planner) OffersByMonth() map[models.Month][]models.Offer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[models.Month][]models.Offer, len(p.offers))
	for m, list := range p.offers {
		out[m] = slices.Clone(list)
	}
	return out
}

func (p *Planner) Offer(id string) (models.Offer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, i := p.locate(id)
	if i < 0 {
		return models.Offer{}, false
	}
	return p.offers[m][i], true
}

// Unsynced lists offers whose last write did not reach the store.
func (p *Planner) Unsynced() []models.Offer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []models.Offer
	for _, m := range models.AllMonths() {
		for _, o := range p.offers[m] {
			if o.SyncState == models.SyncDirty {
				out = append(out, o)
			}
		}
	}
	return out
}

// locate must be called with p.mu held.
func (p *Planner) locate(id string) (models.Month, int) {
	for m, list := range p.offers {
		for i, o := range list {
			if o.ID == id {
				return m, i
			}
		}
	}
	return 0, -1
}

func (p *Planner) AddOffer(ctx context.Context, draft OfferDraft) (models.Offer, error) {
	month, err := draft.validate()
	if err != nil {
		return models.Offer{}, err
	}
	offer := models.Offer{ID: p.newID(), SyncState: models.SyncPending}
	draft.apply(&offer, month)

	p.mu.Lock()
	offer.Year = p.year
	p.offers[month] = append(p.offers[month], offer)
	rev := p.bump(offer.ID)
	p.mu.Unlock()

	err = p.store.InsertOffer(ctx, offer)
	return p.settle(offer.ID, "insert", rev, err), nil
}

// UpdateOffer replaces an unconfirmed offer's fields from draft. Confirmed
// offers are left untouched.
func (p *Planner) UpdateOffer(ctx context.Context, id string, draft OfferDraft) (models.Offer, error) {
	month, err := draft.validate()
	if err != nil {
		return models.Offer{}, err
	}

	p.mu.Lock()
	m, i := p.locate(id)
	if i < 0 {
		p.mu.Unlock()
		return models.Offer{}, ErrOfferNotFound
	}
	before := p.offers[m][i]
	if before.Confirmed {
		p.mu.Unlock()
		return before, ErrOfferConfirmed
	}
	after := before
	draft.apply(&after, month)
	after.SyncState = models.SyncPending
	after.SyncError = ""
	if month == m {
		p.offers[m][i] = after
	} else {
		p.offers[m] = slices.Delete(p.offers[m], i, i+1)
		p.offers[month] = append(p.offers[month], after)
	}
	rev := p.bump(id)
	p.mu.Unlock()

	p.logChange(before, after)
	err = p.store.UpdateOffer(ctx, after)
	return p.settle(id, "update", rev, err), nil
}

func (p *Planner) SetCancelled(ctx context.Context, id string, cancelled bool) (models.Offer, error) {
	return p.mutate(ctx, id, "cancel", func(o *models.Offer) error {
		if o.Confirmed {
			return ErrOfferConfirmed
		}
		o.Cancelled = cancelled
		return nil
	})
}

// Confirm locks the offer against further edits. Confirming twice is a no-op.
func (p *Planner) Confirm(ctx context.Context, id string) (models.Offer, error) {
	return p.mutate(ctx, id, "confirm", func(o *models.Offer) error {
		if o.Confirmed {
			return errNoChange
		}
		o.Confirmed = true
		return nil
	})
}

var errNoChange = errors.New("no change")

func (p *Planner) mutate(ctx context.Context, id, op string, fn func(*models.Offer) error) (models.Offer, error) {
	p.mu.Lock()
	m, i := p.locate(id)
	if i < 0 {
		p.mu.Unlock()
		return models.Offer{}, ErrOfferNotFound
	}
	before := p.offers[m][i]
	after := before
	if err := fn(&after); err != nil {
		p.mu.Unlock()
		if errors.Is(err, errNoChange) {
			return before, nil
		}
		return before, err
	}
	after.SyncState = models.SyncPending
	after.SyncError = ""
	p.offers[m][i] = after
	rev := p.bump(id)
	p.mu.Unlock()

	p.logChange(before, after)
	err := p.store.UpdateOffer(ctx, after)
	return p.settle(id, op, rev, err), nil
}

// DeleteOffer deactivates the offer in the store. If the store refuses, the
// offer is put back where it was and marked dirty.
func (p *Planner) DeleteOffer(ctx context.Context, id string) error {
	p.mu.Lock()
	m, i := p.locate(id)
	if i < 0 {
		p.mu.Unlock()
		return ErrOfferNotFound
	}
	removed := p.offers[m][i]
	p.offers[m] = slices.Delete(p.offers[m], i, i+1)
	p.bump(id)
	p.mu.Unlock()

	err := p.store.DeactivateOffer(ctx, id)
	if err == nil || errors.Is(err, store.ErrNotFound) {
		p.logger.Info("offer deleted", "offer_id", id, "month", m)
		return nil
	}

	p.logger.Error("delete offer failed, restoring", "offer_id", id, "error", err)
	removed.SyncState = models.SyncDirty
	removed.SyncError = "delete failed: " + err.Error()
	p.mu.Lock()
	list := p.offers[m]
	if i > len(list) {
		i = len(list)
	}
	p.offers[m] = slices.Insert(list, i, removed)
	p.bump(id)
	p.mu.Unlock()
	return fmt.Errorf("delete offer %s: %w", id, err)
}

// bump records a local edit of id and returns its revision. It must be
// called with p.mu held.
func (p *Planner) bump(id string) uint64 {
	p.revs[id]++
	return p.revs[id]
}

// settle records the outcome of a store write of revision rev against the
// local copy. A failed write always marks the offer dirty. A successful write
// of an older revision leaves a pending edit to settle itself, and marks an
// already settled offer dirty since the store may now hold the older copy.
func (p *Planner) settle(id, op string, rev uint64, err error) models.Offer {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, i := p.locate(id)
	if i < 0 {
		return models.Offer{}
	}
	o := &p.offers[m][i]
	switch {
	case err != nil:
		o.SyncState = models.SyncDirty
		o.SyncError = fmt.Sprintf("%s failed: %v", op, err)
		p.logger.Error("offer write failed, keeping local change", "op", op, "offer_id", id, "error", err)
	case p.revs[id] != rev:
		if o.SyncState == models.SyncSynced {
			o.SyncState = models.SyncDirty
			o.SyncError = op + " overtaken by a newer edit"
		}
		p.logger.Debug("stale offer write settled", "op", op, "offer_id", id, "rev", rev, "current", p.revs[id])
	default:
		o.SyncState = models.SyncSynced
		o.SyncError = ""
	}
	return *o
}

type revisioned struct {
	offer models.Offer
	rev   uint64
}

// Resync pushes every dirty offer to the store again, inserting those the
// store has never seen. It returns how many are still dirty.
func (p *Planner) Resync(ctx context.Context) int {
	p.mu.RLock()
	var dirty []revisioned
	for _, m := range models.AllMonths() {
		for _, o := range p.offers[m] {
			if o.SyncState == models.SyncDirty {
				dirty = append(dirty, revisioned{offer: o, rev: p.revs[o.ID]})
			}
		}
	}
	p.mu.RUnlock()

	remaining := 0
	for _, d := range dirty {
		err := p.store.UpdateOffer(ctx, d.offer)
		if errors.Is(err, store.ErrNotFound) {
			err = p.store.InsertOffer(ctx, d.offer)
		}
		if p.settle(d.offer.ID, "resync", d.rev, err).SyncState == models.SyncDirty {
			remaining++
		}
	}
	return remaining
}

func (p *Planner) logChange(before, after models.Offer) {
	if !p.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	a, errA := yaml.Marshal(before)
	b, errB := yaml.Marshal(after)
	if errA != nil || errB != nil {
		return
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(a)),
		B:        difflib.SplitLines(string(b)),
		FromFile: "offer/" + before.ID,
		ToFile:   "offer/" + after.ID,
		Context:  1,
	})
	if err != nil || diff == "" {
		return
	}
	p.logger.Debug("offer changed", "offer_id", after.ID, "diff", diff)
}
