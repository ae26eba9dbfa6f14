package diary

import (
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// Entry is the current state of a diary entry. Every change is also recorded
// as an EntryEvent; Version is the id of the latest one.
type Entry struct {
	ID      uint64 `gorm:"primaryKey"`
	UserID  uint64 `gorm:"index;not null"`
	Title   string `gorm:"type:text;not null;default:''"`
	Content string `gorm:"type:text;not null;default:''"`
	Mood    string `gorm:"type:text;not null;default:''"`

	IsPublic    bool    `gorm:"index;not null;default:false"`
	IsAnonymous bool    `gorm:"not null;default:false"`
	ShareSlug   *string `gorm:"type:text;uniqueIndex"`

	// Tags is derived from Content: normalized, de-duplicated, capped.
	Tags pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	LikeCount    int64 `gorm:"not null;default:0"`
	CommentCount int64 `gorm:"not null;default:0"`

	Version   uint64    `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"index;not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// Visible reports whether viewer (0 for signed-out) may read the entry.
func (e Entry) Visible(viewer uint64) bool {
	return e.IsPublic || (viewer != 0 && e.UserID == viewer)
}

// EntryEvent is append-only.
// IdempotencyKey prevents duplicates per user (optional header).
type EntryEvent struct {
	ID             uint64          `gorm:"primaryKey"`
	EntryID        uint64          `gorm:"index;not null"`
	UserID         uint64          `gorm:"index;not null"`
	Type           string          `gorm:"not null"`
	Payload        json.RawMessage `gorm:"type:jsonb;not null;default:'{}'::jsonb"`
	IdempotencyKey *string         `gorm:"index"`
	CreatedAt      time.Time       `gorm:"not null;default:now()"`
}

type Like struct {
	ID        uint64    `gorm:"primaryKey"`
	EntryID   uint64    `gorm:"not null"`
	UserID    uint64    `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"not null;default:now()"`
}

type Comment struct {
	ID          uint64    `gorm:"primaryKey"`
	EntryID     uint64    `gorm:"index;not null"`
	UserID      uint64    `gorm:"index;not null"`
	Content     string    `gorm:"type:text;not null"`
	IsAnonymous bool      `gorm:"not null;default:false"`
	CreatedAt   time.Time `gorm:"not null;default:now()"`
}

const (
	EventCreated     = "CREATED"
	EventUpdated     = "UPDATED"
	EventPublished   = "PUBLISHED"
	EventUnpublished = "UNPUBLISHED"
	EventDeleted     = "DELETED"
)
