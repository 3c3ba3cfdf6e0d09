package server

import (
	"log/slog"
	"net/http"

	"salesplan-dashboard/internal/handlers"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(deps handlers.Deps, templateHandlers *TemplateHandlers) *Server {
	if templateHandlers == nil {
		templateHandlers = &TemplateHandlers{Dashboard: handlers.Dashboard(deps)}
	}
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      deps.Logger,
		apiHandlers: handlers.NewAPIHandlers(deps),
		sseHandlers: handlers.NewSSEHandlers(deps),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)

	// Plan API
	s.mux.HandleFunc("GET /api/months", s.apiHandlers.HandleMonths)
	s.mux.HandleFunc("GET /api/offers", s.apiHandlers.HandleOffers)
	s.mux.HandleFunc("POST /api/offers", s.apiHandlers.HandleCreateOffer)
	s.mux.HandleFunc("PUT /api/offers/{id}", s.apiHandlers.HandleUpdateOffer)
	s.mux.HandleFunc("DELETE /api/offers/{id}", s.apiHandlers.HandleDeleteOffer)
	s.mux.HandleFunc("POST /api/offers/{id}/cancel", s.apiHandlers.HandleCancelOffer)
	s.mux.HandleFunc("POST /api/offers/{id}/restore", s.apiHandlers.HandleRestoreOffer)
	s.mux.HandleFunc("POST /api/offers/{id}/confirm", s.apiHandlers.HandleConfirmOffer)
	s.mux.HandleFunc("POST /api/pricing/quote", s.apiHandlers.HandleQuote)
	s.mux.HandleFunc("POST /api/refresh", s.apiHandlers.HandleRefresh)
	s.mux.HandleFunc("GET /api/settings", s.apiHandlers.HandleGetSettings)
	s.mux.HandleFunc("PUT /api/settings", s.apiHandlers.HandlePutSettings)

	// Export
	s.mux.HandleFunc("POST /api/export", s.apiHandlers.HandleExport)
	s.mux.HandleFunc("GET /export/preview/{id}", s.apiHandlers.HandlePreview)
	s.mux.HandleFunc("POST /export/preview/{id}/download", s.apiHandlers.HandlePreviewDownload)
	s.mux.HandleFunc("POST /export/preview/{id}/cancel", s.apiHandlers.HandlePreviewCancel)

	// Datastar SSE endpoints
	s.mux.HandleFunc("GET /sse/offers", s.sseHandlers.HandleOffers)
	s.mux.HandleFunc("GET /sse/export-modal", s.sseHandlers.HandleExportModal)
	s.mux.HandleFunc("GET /sse/settings", s.sseHandlers.HandleSettings)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
