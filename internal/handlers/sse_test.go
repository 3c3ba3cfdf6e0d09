package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/settings"
)

func TestSSEHandlers_HandleOffers(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewSSEHandlers(deps)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantBody   []string
	}{
		{"full name", "?month=January", http.StatusOK, []string{`id="offers-jan"`, `id="sync-badge"`}},
		{"short name", "?month=mar", http.StatusOK, []string{`id="offers-mar"`}},
		{"invalid", "?month=Smarch", http.StatusBadRequest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.HandleOffers(w, httptest.NewRequest(http.MethodGet, "/sse/offers"+tt.query, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
				t.Errorf("Content-Type = %q", ct)
			}
			body := w.Body.String()
			if !strings.Contains(body, "datastar-patch-elements") {
				t.Error("missing patch-elements event")
			}
			for _, want := range tt.wantBody {
				if !strings.Contains(body, want) {
					t.Errorf("body missing %q", want)
				}
			}
		})
	}
}

func TestSSEHandlers_HandleExportModal(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewSSEHandlers(deps)

	w := httptest.NewRecorder()
	h.HandleExportModal(w, httptest.NewRequest(http.MethodGet, "/sse/export-modal", nil))
	if !strings.Contains(w.Body.String(), `<div id="export-modal"></div>`) {
		t.Errorf("closed modal not rendered: %s", w.Body.String())
	}

	cfg := models.DefaultExportConfiguration()
	cfg.Period = models.Period(models.Q1)
	session, err := deps.Exporter.StartPreview(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	h.HandleExportModal(w, httptest.NewRequest(http.MethodGet, "/sse/export-modal?session="+session.ID, nil))
	body := w.Body.String()
	for _, want := range []string{`class="modal"`, "<iframe", session.URL} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	w = httptest.NewRecorder()
	h.HandleExportModal(w, httptest.NewRequest(http.MethodGet, "/sse/export-modal?session=missing", nil))
	if !strings.Contains(w.Body.String(), "session not found") {
		t.Errorf("unknown session error not shown: %s", w.Body.String())
	}
}

func TestSSEHandlers_HandleSettingsStreamsUntilClosed(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewSSEHandlers(deps)

	w := httptest.NewRecorder()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.HandleSettings(w, httptest.NewRequest(http.MethodGet, "/sse/settings", nil))
	}()

	deadline := time.Now().Add(2 * time.Second)
	for deps.Settings.Subscribers() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
	if _, err := deps.Settings.Set(func(s *settings.Settings) { s.Theme = settings.ThemeDark }); err != nil {
		t.Fatal(err)
	}
	deps.Settings.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after settings closed")
	}

	body := w.Body.String()
	for _, want := range []string{"datastar-patch-signals", `"theme":"dark"`, `id="settings-panel"`} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if deps.Settings.Subscribers() != 0 {
		t.Error("subscription leaked")
	}
}

func TestSSEHandlers_HandleSettingsStopsOnDisconnect(t *testing.T) {
	deps, _ := newTestDeps(t)
	h := NewSSEHandlers(deps)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/sse/settings", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.HandleSettings(httptest.NewRecorder(), req)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not end after client disconnect")
	}
	if deps.Settings.Subscribers() != 0 {
		t.Error("subscription leaked")
	}
}
