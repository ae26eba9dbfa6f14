package handler

import (
	"context"
	"net/http"
	"strings"

	"whisper/internal/auth"
	"whisper/internal/diary"

	"go.uber.org/zap"
)

type entryWriter interface {
	CreateEntry(ctx context.Context, userID uint64, in diary.CreateEntryInput) (uint64, error)
	AppendEvent(ctx context.Context, in diary.AppendEventInput) error
	Like(ctx context.Context, entryID, userID uint64) error
	Unlike(ctx context.Context, entryID, userID uint64) error
	AddComment(ctx context.Context, in diary.AddCommentInput) (diary.Comment, error)
	DeleteComment(ctx context.Context, commentID, userID uint64) error
}

type EntryHandler struct {
	Svc entryWriter
	Log *zap.Logger
}

func idempotencyKey(r *http.Request) *string {
	if k := strings.TrimSpace(r.Header.Get("Idempotency-Key")); k != "" {
		return &k
	}
	return nil
}

type createEntryReq struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Mood      string `json:"mood"`
	Public    bool   `json:"public"`
	Anonymous bool   `json:"anonymous"`
}

func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())

	var req createEntryReq
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "content required", http.StatusBadRequest)
		return
	}

	id, err := h.Svc.CreateEntry(r.Context(), uid, diary.CreateEntryInput{
		Title:     req.Title,
		Content:   req.Content,
		Mood:      req.Mood,
		Public:    req.Public,
		Anonymous: req.Anonymous,
		IdemKey:   idempotencyKey(r),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type appendEventReq struct {
	Type      string  `json:"type"`
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Mood      *string `json:"mood"`
	Anonymous *bool   `json:"anonymous"`
}

func (h *EntryHandler) AppendEvent(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}

	var req appendEventReq
	if !decode(w, r, &req) {
		return
	}

	err := h.Svc.AppendEvent(r.Context(), diary.AppendEventInput{
		EntryID:   id,
		UserID:    uid,
		Type:      strings.TrimSpace(strings.ToUpper(req.Type)),
		Title:     req.Title,
		Content:   req.Content,
		Mood:      req.Mood,
		Anonymous: req.Anonymous,
		IdemKey:   idempotencyKey(r),
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EntryHandler) Like(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.Like(r.Context(), id, uid); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *EntryHandler) Unlike(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Svc.Unlike(r.Context(), id, uid); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addCommentReq struct {
	Content   string `json:"content"`
	Anonymous bool   `json:"anonymous"`
}

func (h *EntryHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "id")
	if !ok {
		return
	}
	var req addCommentReq
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Svc.AddComment(r.Context(), diary.AddCommentInput{
		EntryID:   id,
		UserID:    uid,
		Content:   req.Content,
		Anonymous: req.Anonymous,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCommentDTO(c, uid))
}

func (h *EntryHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	id, ok := urlID(w, r, "commentID")
	if !ok {
		return
	}
	if err := h.Svc.DeleteComment(r.Context(), id, uid); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
