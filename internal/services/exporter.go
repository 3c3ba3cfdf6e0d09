package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"salesplan-dashboard/internal/document"
	apperrors "salesplan-dashboard/internal/errors"
	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/narrative"
	"salesplan-dashboard/internal/observability"
	"salesplan-dashboard/internal/pagination"
	"salesplan-dashboard/internal/report"
	"salesplan-dashboard/internal/store"
)

const (
	defaultNarrativeWorkers = 4
	defaultPreviewTTL       = 15 * time.Minute
	defaultExportTimeout    = 60 * time.Second
)

var (
	ErrExportInProgress = errors.New("an export is already in progress")
	ErrSessionNotFound  = errors.New("preview session not found")
	ErrPreviewReleased  = errors.New("preview is no longer available")
)

type PreviewState string

const (
	PreviewIdle       PreviewState = "idle"
	PreviewGenerating PreviewState = "generating"
	PreviewShowing    PreviewState = "previewing"
	PreviewDownloaded PreviewState = "downloaded"
	PreviewCancelled  PreviewState = "cancelled"
)

// PreviewSession tracks one generated document between preview and download.
type PreviewSession struct {
	ID        string                     `json:"id"`
	State     PreviewState               `json:"state"`
	Config    models.ExportConfiguration `json:"config"`
	Filename  string                     `json:"filename,omitempty"`
	Pages     int                        `json:"pages,omitempty"`
	Size      int                        `json:"size,omitempty"`
	URL       string                     `json:"url,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`

	blob *document.Blob
}

type ExporterOptions struct {
	NarrativeWorkers int
	PreviewTTL       time.Duration
	FilenamePrefix   string
	Timeout          time.Duration
	Author           string
}

// Exporter turns the current plan into a PDF. Only one export runs at a time.
type Exporter struct {
	planner  *Planner
	store    store.RecordStore
	narrator narrative.Source
	logger   *slog.Logger
	opts     ExporterOptions
	now      func() time.Time

	sem      *semaphore.Weighted
	mu       sync.Mutex
	sessions map[string]*PreviewSession
}

func NewExporter(planner *Planner, st store.RecordStore, narrator narrative.Source, logger *slog.Logger, opts ExporterOptions) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NarrativeWorkers <= 0 {
		opts.NarrativeWorkers = defaultNarrativeWorkers
	}
	if opts.PreviewTTL <= 0 {
		opts.PreviewTTL = defaultPreviewTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultExportTimeout
	}
	if opts.FilenamePrefix == "" {
		opts.FilenamePrefix = document.DefaultPrefix
	}
	return &Exporter{
		planner:  planner,
		store:    st,
		narrator: narrator,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
		sem:      semaphore.NewWeighted(1),
		sessions: make(map[string]*PreviewSession),
	}
}

// Busy reports whether an export is running.
func (e *Exporter) Busy() bool {
	if e.sem.TryAcquire(1) {
		e.sem.Release(1)
		return false
	}
	return true
}

// Generate renders cfg and emits it. With cfg.Preview the blob is returned;
// otherwise it is written to sink and the returned blob is nil.
func (e *Exporter) Generate(ctx context.Context, cfg models.ExportConfiguration, sink document.DownloadSink) (*document.Blob, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ValidationWrap(err, "invalid export configuration")
	}
	if !cfg.Preview && sink == nil {
		return nil, document.ErrNoSink
	}
	if !e.sem.TryAcquire(1) {
		return nil, ErrExportInProgress
	}
	defer e.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()
	ctx, span := observability.StartSpan(ctx, "export.generate")
	span.SetTag("mode", string(cfg.Mode))
	span.SetTag("period", string(cfg.Period))
	logger := observability.Logger(ctx, e.logger)
	defer span.End(logger)

	doc, layout, err := e.render(ctx, cfg)
	if err != nil {
		span.SetError(err)
		logger.Error("export failed", "mode", cfg.Mode, "error", err)
		return nil, err
	}

	blob, err := document.Emit(doc, document.EmitOptions{
		Preview: cfg.Preview,
		Sink:    sink,
		Prefix:  e.opts.FilenamePrefix,
		Now:     e.now(),
	})
	if err != nil {
		span.SetError(err)
		logger.Error("emit failed", "error", err)
		return nil, err
	}
	logger.Info("export finished",
		"mode", cfg.Mode,
		"preview", cfg.Preview,
		"pages", layout.Pages,
		"blocks", layout.Blocks(),
	)
	return blob, nil
}

func (e *Exporter) render(ctx context.Context, cfg models.ExportConfiguration) (*document.Document, pagination.Layout, error) {
	year := e.planner.Year()
	targets := e.planner.Months(models.PeriodAll)
	offers := e.planner.OffersByMonth()

	var narratives map[models.Month]string
	if cfg.Sections.Narratives {
		nctx, span := observability.StartSpan(ctx, "export.narratives")
		narratives = e.narratives(nctx, year, report.FilterMonths(targets, cfg.Period), offers)
		span.SetTag("count", strconv.Itoa(len(narratives)))
		span.End(observability.Logger(nctx, e.logger))
	}

	content := report.Build(report.Input{
		Year:        year,
		Targets:     targets,
		Offers:      offers,
		Period:      cfg.Period,
		Narratives:  narratives,
		Risks:       e.planner.Risks(cfg.Period),
		Locations:   e.planner.Locations(),
		Sections:    cfg.Sections,
		GeneratedAt: e.now(),
	})

	geometry, err := pagination.Preset(cfg.PageSize, cfg.Orientation)
	if err != nil {
		return nil, pagination.Layout{}, &pagination.GenerationError{Stage: "geometry", Err: err}
	}
	engine := pagination.NewEngine(geometry)
	engine.Palette = pagination.PaletteFor(cfg.ColorScheme)
	engine.PageNumbers = cfg.Sections.PageNumbers

	doc, err := document.New(document.Options{
		Geometry:   geometry,
		Typography: cfg.Typography,
		Title:      content.Title,
		Author:     e.opts.Author,
		CreatedAt:  content.GeneratedAt,
	})
	if err != nil {
		return nil, pagination.Layout{}, &pagination.GenerationError{Stage: "document", Err: err}
	}

	var strategy pagination.Strategy
	if cfg.Mode == models.RenderRaster {
		strategy = pagination.NewRasterStrategy(cfg.Scale)
	} else {
		strategy = pagination.NewVectorStrategy()
	}
	pctx, span := observability.StartSpan(ctx, "export.paginate")
	defer span.End(observability.Logger(pctx, e.logger))
	layout, err := engine.Render(pctx, content, strategy, doc)
	if err != nil {
		span.SetError(err)
		return nil, pagination.Layout{}, err
	}
	span.SetTag("pages", strconv.Itoa(layout.Pages))
	return doc, layout, nil
}

// narratives returns cached summaries and generates the missing ones. A month
// whose narrative cannot be produced is left out of the map.
func (e *Exporter) narratives(ctx context.Context, year int, months []models.MonthlyTarget, offers map[models.Month][]models.Offer) map[models.Month]string {
	out := make(map[models.Month]string, len(months))
	cached, err := e.store.FetchSummaries(ctx, year)
	if err != nil {
		e.logger.Warn("fetch cached narratives failed", "year", year, "error", err)
	}
	for _, s := range cached {
		if s.Text != "" {
			out[s.Month] = s.Text
		}
	}
	if e.narrator == nil {
		return out
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.opts.NarrativeWorkers)
	var missing []models.MonthlyTarget
	for _, t := range months {
		if _, ok := out[t.Month]; !ok {
			missing = append(missing, t)
		}
	}
	for _, t := range missing {
		g.Go(func() error {
			text, err := e.narrator.Narrate(ctx, narrative.FactsFor(t, offers[t.Month]))
			if err != nil {
				e.logger.Warn("narrative unavailable", "month", t.Month, "error", err)
				return nil
			}
			mu.Lock()
			out[t.Month] = text
			mu.Unlock()
			summary := models.Summary{Month: t.Month, Year: year, Text: text, UpdatedAt: e.now()}
			if err := e.store.UpsertSummary(ctx, summary); err != nil {
				e.logger.Warn("cache narrative failed", "month", t.Month, "error", err)
			}
			return nil
		})
	}
	g.Wait()
	return out
}

// StartPreview generates a document for on-screen preview. The session exists
// in the generating state while the document renders; on failure it is
// discarded and the error returned.
func (e *Exporter) StartPreview(ctx context.Context, cfg models.ExportConfiguration) (PreviewSession, error) {
	e.prune()
	cfg.Preview = true
	now := e.now()
	session := &PreviewSession{
		ID:        uuid.NewString(),
		State:     PreviewGenerating,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.mu.Lock()
	e.sessions[session.ID] = session
	e.mu.Unlock()

	blob, err := e.Generate(context.WithoutCancel(ctx), cfg, nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		delete(e.sessions, session.ID)
		return PreviewSession{ID: session.ID, State: PreviewIdle, Config: cfg}, err
	}
	if session.State == PreviewCancelled {
		return *session, nil
	}
	session.blob = blob
	session.State = PreviewShowing
	session.Filename = blob.Filename
	session.Pages = blob.Pages
	session.Size = blob.Size()
	session.URL = "/export/preview/" + session.ID
	session.UpdatedAt = e.now()
	return *session, nil
}

func (e *Exporter) Session(id string) (PreviewSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return PreviewSession{}, ErrSessionNotFound
	}
	return *s, nil
}

// Preview returns the document behind a live preview URL.
func (e *Exporter) Preview(id string) (*document.Blob, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.blob == nil {
		return nil, ErrPreviewReleased
	}
	return s.blob, nil
}

// Download hands the previewed document to sink without regenerating it.
func (e *Exporter) Download(id string, sink document.DownloadSink) (PreviewSession, error) {
	blob, err := e.Preview(id)
	if err != nil {
		return PreviewSession{}, err
	}
	if err := blob.Save(sink); err != nil {
		return PreviewSession{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return PreviewSession{}, ErrSessionNotFound
	}
	s.State = PreviewDownloaded
	s.UpdatedAt = e.now()
	e.logger.Info("preview downloaded", "session_id", id, "filename", blob.Filename)
	return *s, nil
}

// Cancel closes the preview and releases its document. The session id keeps
// resolving to the cancelled state until it expires.
func (e *Exporter) Cancel(id string) (PreviewSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return PreviewSession{}, ErrSessionNotFound
	}
	s.State = PreviewCancelled
	s.blob = nil
	s.URL = ""
	s.UpdatedAt = e.now()
	return *s, nil
}

// Sessions lists live sessions, newest first.
func (e *Exporter) Sessions() []PreviewSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PreviewSession, 0, len(e.sessions))
	for _, s := range e.sessions {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b PreviewSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// prune drops sessions idle for longer than the preview TTL.
func (e *Exporter) prune() {
	cutoff := e.now().Add(-e.opts.PreviewTTL)
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, s := range e.sessions {
		if s.State != PreviewGenerating && s.UpdatedAt.Before(cutoff) {
			delete(e.sessions, id)
		}
	}
}

// ExportError maps exporter and planner errors onto application errors.
func ExportError(err error) error {
	var appErr *apperrors.AppError
	var genErr *pagination.GenerationError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ErrExportInProgress):
		return apperrors.ConflictWrap(err, err.Error())
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrPreviewReleased):
		return apperrors.NotFoundWrap(err, err.Error())
	case errors.Is(err, document.ErrNoSink):
		return apperrors.BadRequestWrap(err, err.Error())
	case errors.As(err, &genErr):
		return apperrors.GenerationWrap(err, fmt.Sprintf("document generation failed at %s", genErr.Stage))
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.GenerationWrap(err, "document generation timed out")
	default:
		return apperrors.InternalWrap(err, "export failed")
	}
}

// PlanError maps planner errors onto application errors.
func PlanError(err error) error {
	var appErr *apperrors.AppError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, ErrOfferNotFound):
		return apperrors.NotFoundWrap(err, err.Error())
	case errors.Is(err, ErrOfferConfirmed):
		return apperrors.ConflictWrap(err, err.Error())
	default:
		return apperrors.InternalWrap(err, "plan update failed")
	}
}
