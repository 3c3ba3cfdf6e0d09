package handlers

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"salesplan-dashboard/internal/document"
	"salesplan-dashboard/internal/errors"
	"salesplan-dashboard/internal/models"
	"salesplan-dashboard/internal/services"
)

// httpSink writes a finished document to the response as an attachment.
type httpSink struct {
	w           http.ResponseWriter
	disposition string
}

func newDownloadSink(w http.ResponseWriter) *httpSink {
	return &httpSink{w: w, disposition: "attachment"}
}

func (s *httpSink) Download(filename, contentType string, r io.Reader) error {
	s.w.Header().Set("Content-Type", contentType)
	s.w.Header().Set("Content-Disposition", mime.FormatMediaType(s.disposition, map[string]string{"filename": filename}))
	s.w.Header().Set("Cache-Control", "no-store")
	if sized, ok := r.(interface{ Len() int }); ok {
		s.w.Header().Set("Content-Length", strconv.Itoa(sized.Len()))
	}
	s.w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(s.w, r); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

// exportRequest accepts either a bare configuration or datastar signals with
// the configuration under "export".
type exportRequest struct {
	models.ExportConfiguration
	Export *models.ExportConfiguration `json:"export"`
}

func (h *APIHandlers) exportConfig(r *http.Request) (models.ExportConfiguration, error) {
	req := exportRequest{ExportConfiguration: h.Settings.Get().Export}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			return models.ExportConfiguration{}, err
		}
	}
	cfg := req.ExportConfiguration
	if req.Export != nil {
		cfg = *req.Export
	}
	return cfg.Normalize(), nil
}

// HandleExport starts a preview session or, with preview off, streams the
// document straight back as a download.
func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.exportConfig(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if cfg.Preview {
		session, err := h.Exporter.StartPreview(r.Context(), cfg)
		if err != nil {
			h.fail(w, r, services.ExportError(err))
			return
		}
		errors.WriteCreated(w, session)
		return
	}

	if _, err := h.Exporter.Generate(r.Context(), cfg, newDownloadSink(w)); err != nil {
		h.fail(w, r, services.ExportError(err))
	}
}

func (h *APIHandlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	blob, err := h.Exporter.Preview(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, services.ExportError(err))
		return
	}
	sink := &httpSink{w: w, disposition: "inline"}
	if err := blob.Save(sink); err != nil {
		h.Logger.Error("write preview", "error", err)
	}
}

func (h *APIHandlers) HandlePreviewDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Exporter.Preview(id); err != nil {
		h.fail(w, r, services.ExportError(err))
		return
	}
	if _, err := h.Exporter.Download(id, newDownloadSink(w)); err != nil {
		h.Logger.Error("download preview", "session_id", id, "error", err)
	}
}

func (h *APIHandlers) HandlePreviewCancel(w http.ResponseWriter, r *http.Request) {
	session, err := h.Exporter.Cancel(r.PathValue("id"))
	if err != nil {
		h.fail(w, r, services.ExportError(err))
		return
	}
	errors.WriteSuccess(w, session)
}

var _ document.DownloadSink = (*httpSink)(nil)
