package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"salesplan-dashboard/internal/document"
	apperrors "salesplan-dashboard/internal/errors"
	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/narrative"
	"salesplan-dashboard/internal/pagination"
)

type fakeNarrator struct {
	calls     atomic.Int32
	narrateFn func(ctx context.Context, f narrative.Facts) (string, error)
}

func (f *fakeNarrator) Narrate(ctx context.Context, facts narrative.Facts) (string, error) {
	f.calls.Add(1)
	if f.narrateFn != nil {
		return f.narrateFn(ctx, facts)
	}
	return fmt.Sprintf("%s is about %s.\n\nSecond paragraph.", facts.Month, facts.Theme), nil
}

type bufferSink struct {
	filename string
	data     bytes.Buffer
}

func (s *bufferSink) Download(filename, contentType string, r io.Reader) error {
	s.filename = filename
	_, err := io.Copy(&s.data, r)
	return err
}

func newTestExporter(t *testing.T, narrator narrative.Source) (*Exporter, *Planner) {
	t.Helper()
	p, st := newTestPlanner(t)
	e := NewExporter(p, st, narrator, discardLogger(), ExporterOptions{PreviewTTL: time.Minute})
	return e, p
}

func quarterConfig() models.ExportConfiguration {
	cfg := models.DefaultExportConfiguration()
	cfg.Period = models.Period(models.Q1)
	return cfg
}

func TestExporter_GeneratePreview(t *testing.T) {
	narrator := &fakeNarrator{}
	e, _ := newTestExporter(t, narrator)

	blob, err := e.Generate(context.Background(), quarterConfig(), nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.HasPrefix(blob.Data, []byte("%PDF-")) {
		t.Error("preview blob is not a PDF")
	}
	if blob.Pages < 1 {
		t.Errorf("pages = %d", blob.Pages)
	}
	if got := narrator.calls.Load(); got != 3 {
		t.Errorf("narrator calls = %d, want 3 (one per Q1 month)", got)
	}
}

func TestExporter_NarrativesAreCached(t *testing.T) {
	narrator := &fakeNarrator{}
	e, _ := newTestExporter(t, narrator)
	ctx := context.Background()

	if _, err := e.Generate(ctx, quarterConfig(), nil); err != nil {
		t.Fatal(err)
	}
	summaries, err := e.store.FetchSummaries(ctx, e.planner.Year())
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 3 {
		t.Errorf("cached summaries = %d, want 3", len(summaries))
	}

	if _, err := e.Generate(ctx, quarterConfig(), nil); err != nil {
		t.Fatal(err)
	}
	if got := narrator.calls.Load(); got != 3 {
		t.Errorf("narrator calls after second export = %d, want 3", got)
	}
}

func TestExporter_NarrativeFailureOmitsBlock(t *testing.T) {
	narrator := &fakeNarrator{narrateFn: func(ctx context.Context, f narrative.Facts) (string, error) {
		return "", errors.New("model offline")
	}}
	e, _ := newTestExporter(t, narrator)

	if _, err := e.Generate(context.Background(), quarterConfig(), nil); err != nil {
		t.Fatalf("narrative failure should not fail the export: %v", err)
	}
}

func TestExporter_GenerateDownload(t *testing.T) {
	e, _ := newTestExporter(t, &fakeNarrator{})
	cfg := quarterConfig()
	cfg.Preview = false
	cfg.Mode = models.RenderRaster
	cfg.PageSize = models.PageLetter
	cfg.Orientation = models.Landscape

	sink := &bufferSink{}
	blob, err := e.Generate(context.Background(), cfg, sink)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if blob != nil {
		t.Error("direct download should not return a blob")
	}
	if !bytes.HasPrefix(sink.data.Bytes(), []byte("%PDF-")) {
		t.Error("sink did not receive a PDF")
	}
}

func TestExporter_GenerateErrors(t *testing.T) {
	e, _ := newTestExporter(t, nil)
	ctx := context.Background()

	bad := quarterConfig()
	bad.Scale = 4
	_, err := e.Generate(ctx, bad, nil)
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != apperrors.CodeValidation {
		t.Errorf("error = %v, want validation error", err)
	}

	download := quarterConfig()
	download.Preview = false
	if _, err := e.Generate(ctx, download, nil); !errors.Is(err, document.ErrNoSink) {
		t.Errorf("error = %v, want ErrNoSink", err)
	}
}

func TestExporter_OneExportAtATime(t *testing.T) {
	entered := make(chan struct{}, 3)
	release := make(chan struct{})
	narrator := &fakeNarrator{narrateFn: func(ctx context.Context, f narrative.Facts) (string, error) {
		entered <- struct{}{}
		<-release
		return "text", nil
	}}
	e, _ := newTestExporter(t, narrator)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := e.Generate(ctx, quarterConfig(), nil)
		done <- err
	}()
	<-entered

	if !e.Busy() {
		t.Error("Busy() = false during export")
	}
	if _, err := e.Generate(ctx, quarterConfig(), nil); !errors.Is(err, ErrExportInProgress) {
		t.Errorf("concurrent export error = %v, want ErrExportInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first export failed: %v", err)
	}
	if e.Busy() {
		t.Error("Busy() = true after export finished")
	}
}

func TestExporter_PreviewLifecycle(t *testing.T) {
	e, _ := newTestExporter(t, &fakeNarrator{})

	s, err := e.StartPreview(context.Background(), quarterConfig())
	if err != nil {
		t.Fatalf("StartPreview() error = %v", err)
	}
	if s.State != PreviewShowing || s.URL != "/export/preview/"+s.ID || s.Pages == 0 {
		t.Fatalf("session = %+v", s)
	}

	blob, err := e.Preview(s.ID)
	if err != nil {
		t.Fatal(err)
	}

	sink := &bufferSink{}
	downloaded, err := e.Download(s.ID, sink)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if downloaded.State != PreviewDownloaded {
		t.Errorf("state = %s, want %s", downloaded.State, PreviewDownloaded)
	}
	if !bytes.Equal(sink.data.Bytes(), blob.Data) {
		t.Error("download should reuse the previewed document")
	}
	if sink.filename != blob.Filename {
		t.Errorf("filename = %q, want %q", sink.filename, blob.Filename)
	}

	cancelled, err := e.Cancel(s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if cancelled.State != PreviewCancelled || cancelled.URL != "" {
		t.Errorf("cancelled session = %+v", cancelled)
	}
	if _, err := e.Preview(s.ID); !errors.Is(err, ErrPreviewReleased) {
		t.Errorf("Preview after cancel = %v, want ErrPreviewReleased", err)
	}
	if _, err := e.Download(s.ID, sink); !errors.Is(err, ErrPreviewReleased) {
		t.Errorf("Download after cancel = %v, want ErrPreviewReleased", err)
	}
}

func TestExporter_PreviewFailureDiscardsSession(t *testing.T) {
	e, _ := newTestExporter(t, nil)
	cfg := quarterConfig()
	cfg.PageSize = "tabloid"

	s, err := e.StartPreview(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if s.State != PreviewIdle {
		t.Errorf("state = %s, want %s", s.State, PreviewIdle)
	}
	if _, err := e.Session(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Session() = %v, want ErrSessionNotFound", err)
	}
	if len(e.Sessions()) != 0 {
		t.Error("failed preview left a session behind")
	}
}

func TestExporter_PreviewSurvivesCallerCancel(t *testing.T) {
	e, _ := newTestExporter(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := e.StartPreview(ctx, quarterConfig())
	if err != nil {
		t.Fatalf("StartPreview() error = %v", err)
	}
	if s.State != PreviewShowing {
		t.Errorf("state = %s", s.State)
	}
}

func TestExporter_PrunesExpiredSessions(t *testing.T) {
	e, _ := newTestExporter(t, nil)
	clock := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return clock }

	old, err := e.StartPreview(context.Background(), quarterConfig())
	if err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(2 * time.Minute)
	fresh, err := e.StartPreview(context.Background(), quarterConfig())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.Session(old.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("expired session should be pruned")
	}
	sessions := e.Sessions()
	if len(sessions) != 1 || sessions[0].ID != fresh.ID {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestExportError(t *testing.T) {
	tests := []struct {
		err  error
		code apperrors.ErrorCode
	}{
		{ErrExportInProgress, apperrors.CodeConflict},
		{ErrSessionNotFound, apperrors.CodeNotFound},
		{ErrPreviewReleased, apperrors.CodeNotFound},
		{document.ErrNoSink, apperrors.CodeBadRequest},
		{&pagination.GenerationError{Stage: "surface", Err: pagination.ErrNoSurface}, apperrors.CodeGeneration},
		{fmt.Errorf("render: %w", context.DeadlineExceeded), apperrors.CodeGeneration},
		{apperrors.Validation("bad scale"), apperrors.CodeValidation},
		{errors.New("boom"), apperrors.CodeInternal},
	}
	for _, tt := range tests {
		var appErr *apperrors.AppError
		if !errors.As(ExportError(tt.err), &appErr) || appErr.Code != tt.code {
			t.Errorf("ExportError(%v) = %v, want code %s", tt.err, appErr, tt.code)
		}
	}
}
