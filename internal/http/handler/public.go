package handler

import (
	"net/http"
	"strings"

	"whisper/internal/auth"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// PublicHandler serves shared entries. Signing in is optional; a viewer id,
// when present, only adds liked/mine flags.
type PublicHandler struct {
	Feed     entryReader
	Log      *zap.Logger
	TagBatch int
	TagTopN  int
}

func (h *PublicHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}

	rows, err := h.Feed.ListPublic(r.Context(), f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	liked, err := h.Feed.LikedBy(r.Context(), viewer, entryIDs(rows))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(rows, viewer, liked))
}

func (h *PublicHandler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Feed.PublicTagCloud(r.Context(), h.TagBatch, h.TagTopN)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *PublicHandler) Shared(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))
	if slug == "" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	e, err := h.Feed.BySlug(r.Context(), slug)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	liked, err := h.Feed.LikedBy(r.Context(), viewer, []uint64{e.ID})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e, viewer, liked[e.ID]))
}

func (h *PublicHandler) Entry(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	getEntry(w, r, h.Feed, h.Log, id, viewer)
}

func (h *PublicHandler) Comments(w http.ResponseWriter, r *http.Request) {
	viewer, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	listComments(w, r, h.Feed, h.Log, id, viewer)
}
