package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"sparrowvision/internal/csvimport"
	"sparrowvision/internal/fieldmap"
	"sparrowvision/internal/syncer"
)

// maxUploadBytes bounds CSV uploads.
const maxUploadBytes = 32 << 20

// CSVHandler runs uploaded files through the CSV pipeline and serves the
// downloadable templates.
type CSVHandler struct {
	syncer *syncer.Syncer
}

// NewCSVHandler creates a new CSV handler.
func NewCSVHandler(s *syncer.Syncer) *CSVHandler {
	return &CSVHandler{syncer: s}
}

// Process handles POST /api/v1/csv/process. The file arrives either as the
// "file" part of a multipart form or as the raw request body. The optional
// "template" and "mapping" values tune header resolution.
func (h *CSVHandler) Process(w http.ResponseWriter, r *http.Request) {
	content, opts, err := readUpload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := csvimport.Process(content, opts)

	// Failed uploads land in the history too, like failed connector syncs.
	run, err := h.syncer.Import(r.Context(), result)
	if err != nil {
		log.Printf("failed to persist CSV import: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to persist import")
		return
	}

	code := http.StatusOK
	if !result.Success {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, map[string]any{
		"result": result,
		"run":    run,
	})
}

func readUpload(r *http.Request) ([]byte, csvimport.Options, error) {
	var opts csvimport.Options

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, opts, errors.New("invalid multipart form")
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, opts, errors.New("missing file part")
		}
		defer file.Close()

		content, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			return nil, opts, errors.New("failed to read file")
		}

		opts.TemplateID = r.FormValue("template")
		if raw := r.FormValue("mapping"); raw != "" {
			var mapping fieldmap.Mapping
			if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
				return nil, opts, errors.New("invalid mapping JSON")
			}
			opts.CustomMapping = mapping
		}
		return content, opts, nil
	}

	content, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		return nil, opts, errors.New("failed to read request body")
	}
	opts.TemplateID = r.URL.Query().Get("template")
	return content, opts, nil
}

// ListTemplates handles GET /api/v1/csv/templates
func (h *CSVHandler) ListTemplates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": csvimport.Templates(),
	})
}

// DownloadTemplate handles GET /api/v1/csv/templates/{id}
func (h *CSVHandler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	content, err := csvimport.GenerateTemplate(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown template")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+id+`.csv"`)
	if _, err := w.Write(content); err != nil {
		log.Printf("failed to write template response: %v", err)
	}
}
