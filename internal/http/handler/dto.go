package handler

import (
	"encoding/json"
	"time"

	"whisper/internal/auth"
	"whisper/internal/diary"
	"whisper/internal/hashtag"
)

type userDTO struct {
	ID          uint64    `json:"id"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func toUserDTO(u auth.User) userDTO {
	return userDTO{
		ID:          u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

type entryDTO struct {
	ID           uint64            `json:"id"`
	UserID       *uint64           `json:"user_id,omitempty"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	Mood         string            `json:"mood"`
	Public       bool              `json:"public"`
	Anonymous    bool              `json:"anonymous"`
	ShareSlug    *string           `json:"share_slug,omitempty"`
	Tags         []string          `json:"tags"`
	Segments     []hashtag.Segment `json:"segments"`
	LikeCount    int64             `json:"like_count"`
	CommentCount int64             `json:"comment_count"`
	Liked        bool              `json:"liked"`
	Mine         bool              `json:"mine"`
	Version      uint64            `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// toEntryDTO hides the author of an anonymous entry from everyone but the author.
func toEntryDTO(e diary.Entry, viewer uint64, liked bool) entryDTO {
	mine := viewer != 0 && e.UserID == viewer
	d := entryDTO{
		ID:           e.ID,
		Title:        e.Title,
		Content:      e.Content,
		Mood:         e.Mood,
		Public:       e.IsPublic,
		Anonymous:    e.IsAnonymous,
		Tags:         []string(e.Tags),
		Segments:     hashtag.Segments(e.Content),
		LikeCount:    e.LikeCount,
		CommentCount: e.CommentCount,
		Liked:        liked,
		Mine:         mine,
		Version:      e.Version,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if !e.IsAnonymous || mine {
		uid := e.UserID
		d.UserID = &uid
	}
	if e.IsPublic || mine {
		d.ShareSlug = e.ShareSlug
	}
	return d
}

func toEntryDTOs(rows []diary.Entry, viewer uint64, liked map[uint64]bool) []entryDTO {
	out := make([]entryDTO, 0, len(rows))
	for _, e := range rows {
		out = append(out, toEntryDTO(e, viewer, liked[e.ID]))
	}
	return out
}

type commentDTO struct {
	ID        uint64            `json:"id"`
	EntryID   uint64            `json:"entry_id"`
	UserID    *uint64           `json:"user_id,omitempty"`
	Content   string            `json:"content"`
	Anonymous bool              `json:"anonymous"`
	Tags      []string          `json:"tags"`
	Segments  []hashtag.Segment `json:"segments"`
	Mine      bool              `json:"mine"`
	CreatedAt time.Time         `json:"created_at"`
}

func toCommentDTO(c diary.Comment, viewer uint64) commentDTO {
	mine := viewer != 0 && c.UserID == viewer
	d := commentDTO{
		ID:        c.ID,
		EntryID:   c.EntryID,
		Content:   c.Content,
		Anonymous: c.IsAnonymous,
		Tags:      hashtag.Unique(c.Content, 0),
		Segments:  hashtag.Segments(c.Content),
		Mine:      mine,
		CreatedAt: c.CreatedAt,
	}
	if !c.IsAnonymous || mine {
		uid := c.UserID
		d.UserID = &uid
	}
	return d
}

func toCommentDTOs(rows []diary.Comment, viewer uint64) []commentDTO {
	out := make([]commentDTO, 0, len(rows))
	for _, c := range rows {
		out = append(out, toCommentDTO(c, viewer))
	}
	return out
}

type entryEventDTO struct {
	ID             uint64          `json:"id"`
	EntryID        uint64          `json:"entry_id"`
	Type           string          `json:"type"`
	Payload        json.RawMessage `json:"payload"`
	IdempotencyKey *string         `json:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"`
}
