package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"whisper/internal/auth"
	"whisper/internal/diary"
	"whisper/internal/hashtag"

	"go.uber.org/zap"
)

type entryReader interface {
	ListOwn(ctx context.Context, userID uint64, f diary.Filter) ([]diary.Entry, error)
	ListPublic(ctx context.Context, f diary.Filter) ([]diary.Entry, error)
	Get(ctx context.Context, id, viewer uint64) (diary.Entry, error)
	BySlug(ctx context.Context, slug string) (diary.Entry, error)
	Comments(ctx context.Context, entryID, viewer uint64) ([]diary.Comment, error)
	Timeline(ctx context.Context, entryID, userID uint64) ([]diary.EntryEvent, error)
	LikedBy(ctx context.Context, viewer uint64, ids []uint64) (map[uint64]bool, error)
	PublicTagCloud(ctx context.Context, batch, topN int) ([]hashtag.Tag, error)
	OwnTagCloud(ctx context.Context, userID uint64, batch, topN int) ([]hashtag.Tag, error)
}

// parseFilter reads ?tag=&q=&limit=&before=. An unparsable limit falls back
// to the default; a malformed tag or cursor is a 400.
func parseFilter(w http.ResponseWriter, r *http.Request) (diary.Filter, bool) {
	qs := r.URL.Query()
	var f diary.Filter

	if tag := strings.TrimSpace(qs.Get("tag")); tag != "" {
		if !hashtag.Valid(tag) {
			http.Error(w, "invalid tag", http.StatusBadRequest)
			return f, false
		}
		f.Tag = hashtag.Normalize(tag)
	}

	f.Query = strings.TrimSpace(qs.Get("q"))

	if v := strings.TrimSpace(qs.Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}

	if v := strings.TrimSpace(qs.Get("before")); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid before", http.StatusBadRequest)
			return f, false
		}
		f.Before = n
	}
	return f, true
}

func entryIDs(rows []diary.Entry) []uint64 {
	ids := make([]uint64, 0, len(rows))
	for _, e := range rows {
		ids = append(ids, e.ID)
	}
	return ids
}

// EntryReadHandler serves the signed-in user's own diary.
type EntryReadHandler struct {
	Feed     entryReader
	Log      *zap.Logger
	TagBatch int
	TagTopN  int
}

func (h *EntryReadHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}

	rows, err := h.Feed.ListOwn(r.Context(), uid, f)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	liked, err := h.Feed.LikedBy(r.Context(), uid, entryIDs(rows))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(rows, uid, liked))
}

func (h *EntryReadHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	getEntry(w, r, h.Feed, h.Log, id, uid)
}

func (h *EntryReadHandler) Tags(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	tags, err := h.Feed.OwnTagCloud(r.Context(), uid, h.TagBatch, h.TagTopN)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (h *EntryReadHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	evs, err := h.Feed.Timeline(r.Context(), id, uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}

	out := make([]entryEventDTO, 0, len(evs))
	for _, e := range evs {
		out = append(out, entryEventDTO{
			ID:             e.ID,
			EntryID:        e.EntryID,
			Type:           e.Type,
			Payload:        e.Payload,
			IdempotencyKey: e.IdempotencyKey,
			CreatedAt:      e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EntryReadHandler) Comments(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	listComments(w, r, h.Feed, h.Log, id, uid)
}

func getEntry(w http.ResponseWriter, r *http.Request, feed entryReader, log *zap.Logger, id, viewer uint64) {
	e, err := feed.Get(r.Context(), id, viewer)
	if err != nil {
		writeError(w, r, log, err)
		return
	}
	liked, err := feed.LikedBy(r.Context(), viewer, []uint64{e.ID})
	if err != nil {
		writeError(w, r, log, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e, viewer, liked[e.ID]))
}

func listComments(w http.ResponseWriter, r *http.Request, feed entryReader, log *zap.Logger, entryID, viewer uint64) {
	cs, err := feed.Comments(r.Context(), entryID, viewer)
	if err != nil {
		writeError(w, r, log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCommentDTOs(cs, viewer))
}
