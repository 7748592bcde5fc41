package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nikhilbhutani/promptlibrary/internal/library"
	"github.com/nikhilbhutani/promptlibrary/internal/models"
	"github.com/nikhilbhutani/promptlibrary/internal/prompt"
)

type PromptHandler struct {
	lib *library.Library
}

func NewPromptHandler(lib *library.Library) *PromptHandler {
	return &PromptHandler{lib: lib}
}

// List returns the collection in stored order, or search results when any of
// q, ai, modality, theme or sort is given.
func (h *PromptHandler) List(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if len(params) == 0 {
		prompts, err := h.lib.List(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts, "count": len(prompts)})
		return
	}

	q, err := parseQuery(params.Get)
	if err != nil {
		writeError(w, r, err)
		return
	}
	prompts, err := h.lib.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prompts": prompts, "count": len(prompts)})
}

func parseQuery(get func(string) string) (library.Query, error) {
	q := library.Query{Text: get("q"), Theme: get("theme")}

	if v := get("ai"); v != "" {
		ai, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("%w: ai must be a boolean", prompt.ErrValidation)
		}
		q.AI = ai
	}
	if v := get("modality"); v != "" {
		m, err := models.ParseModality(v)
		if err != nil {
			return q, fmt.Errorf("%w: %w", prompt.ErrValidation, err)
		}
		q.Modality = m
	}
	if v := get("sort"); v != "" {
		s, err := library.ParseSortOrder(v)
		if err != nil {
			return q, err
		}
		q.Sort = s
	}
	return q, nil
}

func (h *PromptHandler) Create(w http.ResponseWriter, r *http.Request) {
	var d library.Draft
	if !decodeJSON(w, r, &d) {
		return
	}

	p, err := h.lib.Create(r.Context(), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *PromptHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.lib.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Update saves an edit. A changed prompt text becomes a new active version.
func (h *PromptHandler) Update(w http.ResponseWriter, r *http.Request) {
	var d library.Draft
	if !decodeJSON(w, r, &d) {
		return
	}

	p, err := h.lib.Update(r.Context(), chi.URLParam(r, "id"), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PromptHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.lib.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PromptHandler) SetActiveVersion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Version int `json:"version"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.lib.SetActiveVersion(r.Context(), chi.URLParam(r, "id"), req.Version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *PromptHandler) Compare(w http.ResponseWriter, r *http.Request) {
	left, err1 := strconv.Atoi(r.URL.Query().Get("left"))
	right, err2 := strconv.Atoi(r.URL.Query().Get("right"))
	if err1 != nil || err2 != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "left and right version numbers required"})
		return
	}

	cmp, err := h.lib.Compare(r.Context(), chi.URLParam(r, "id"), left, right)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (h *PromptHandler) Share(w http.ResponseWriter, r *http.Request) {
	shared, err := h.lib.Share(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shared)
}

func (h *PromptHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	mode := library.EnhanceMode(req.Mode)
	suggestions, err := h.lib.Enhance(r.Context(), chi.URLParam(r, "id"), mode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"mode": mode, "suggestions": suggestions})
}
