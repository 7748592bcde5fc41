package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/llm"
)

const maxImportBytes = 10 << 20

// ModelLister reports the models the gateway can route to.
type ModelLister interface {
	ListModels() []llm.ModelInfo
}

type CollectionHandler struct {
	lib    *library.Library
	models ModelLister
}

func NewCollectionHandler(lib *library.Library, models ModelLister) *CollectionHandler {
	return &CollectionHandler{lib: lib, models: models}
}

func (h *CollectionHandler) Categorize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PromptText string `json:"promptText"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.lib.Categorize(r.Context(), req.PromptText)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CollectionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.lib.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Import accepts a CSV file either as the multipart field "file" or as the
// raw request body.
func (h *CollectionHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var src io.Reader = r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, _, err := r.FormFile("file")
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, err)
			return
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field required"})
			return
		}
		defer file.Close()
		src = file
	}

	report, err := h.lib.Import(r.Context(), src)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report, "skipped": report.Skipped()})
}

func (h *CollectionHandler) Export(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.lib.Export(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *CollectionHandler) Models(w http.ResponseWriter, r *http.Request) {
	if h.models == nil {
		writeJSON(w, http.StatusOK, map[string]any{"models": []llm.ModelInfo{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": h.models.ListModels()})
}
