package diary

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"whisper/internal/hashtag"
	"whisper/internal/jobs"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxTitleLen   = 200
	MaxContentLen = 20000
	MaxMoodLen    = 32
	MaxCommentLen = 2000
)

type Service struct {
	DB *gorm.DB
}

type CreateEntryInput struct {
	Title     string
	Content   string
	Mood      string
	Public    bool
	Anonymous bool
	IdemKey   *string
}

type AppendEventInput struct {
	EntryID   uint64
	UserID    uint64
	Type      string
	Title     *string
	Content   *string
	Mood      *string
	Anonymous *bool
	IdemKey   *string
}

type AddCommentInput struct {
	EntryID   uint64
	UserID    uint64
	Content   string
	Anonymous bool
}

func tooLong(s string, max int) bool {
	return utf8.RuneCountInString(s) > max
}

func validContent(s string) bool {
	return strings.TrimSpace(s) != "" && !tooLong(s, MaxContentLen)
}

func newSlug() *string {
	s := uuid.NewString()
	return &s
}

func (s *Service) CreateEntry(ctx context.Context, userID uint64, in CreateEntryInput) (uint64, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Mood = strings.TrimSpace(in.Mood)
	if !validContent(in.Content) || tooLong(in.Title, MaxTitleLen) || tooLong(in.Mood, MaxMoodLen) {
		return 0, ErrInvalidInput
	}

	db := s.DB.WithContext(ctx)
	if ev, err := storedEvent(db, userID, in.IdemKey); err != nil || ev != nil {
		if err != nil {
			return 0, wrap("create", "entry", 0, err)
		}
		return replayCreate(*ev)
	}

	var entryID uint64
	err := db.Transaction(func(tx *gorm.DB) error {
		e := Entry{
			UserID:      userID,
			Title:       in.Title,
			Content:     in.Content,
			Mood:        in.Mood,
			IsPublic:    in.Public,
			IsAnonymous: in.Anonymous,
			Tags:        pq.StringArray(hashtag.Unique(in.Content, hashtag.MaxStoredTags)),
		}
		if in.Public {
			e.ShareSlug = newSlug()
		}
		if err := tx.Create(&e).Error; err != nil {
			return err
		}
		entryID = e.ID

		if err := s.insertEvent(tx, e.ID, userID, EventCreated, map[string]any{
			"title":   e.Title,
			"content": e.Content,
			"mood":    e.Mood,
		}, in.IdemKey); err != nil {
			return err
		}

		if in.Public {
			if err := s.insertEvent(tx, e.ID, userID, EventPublished, map[string]any{
				"anonymous":  e.IsAnonymous,
				"share_slug": *e.ShareSlug,
			}, nil); err != nil {
				return err
			}
		}

		version, err := lastEventID(tx, e.ID)
		if err != nil {
			return err
		}
		return tx.Model(&Entry{}).Where("id = ?", e.ID).Update("version", version).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// a concurrent request with the same key won the insert
		ev, lerr := storedEvent(db, userID, in.IdemKey)
		if lerr != nil || ev == nil {
			return 0, ErrDuplicate
		}
		return replayCreate(*ev)
	}
	return entryID, wrap("create", "entry", 0, err)
}

func (s *Service) AppendEvent(ctx context.Context, in AppendEventInput) error {
	db := s.DB.WithContext(ctx)
	if ev, err := storedEvent(db, in.UserID, in.IdemKey); err != nil || ev != nil {
		if err != nil {
			return wrap("append", "entry", in.EntryID, err)
		}
		return replay(*ev, in.EntryID, in.Type)
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		// ensure entry belongs to user
		var e Entry
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", in.EntryID, in.UserID).
			First(&e).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		payload, err := applyEvent(&e, in)
		if err != nil {
			return err
		}

		if err := s.insertEvent(tx, e.ID, in.UserID, in.Type, payload, in.IdemKey); err != nil {
			return err
		}

		if in.Type == EventDeleted {
			if err := tx.Where("entry_id = ?", e.ID).Delete(&Like{}).Error; err != nil {
				return err
			}
			if err := tx.Where("entry_id = ?", e.ID).Delete(&Comment{}).Error; err != nil {
				return err
			}
			return tx.Delete(&e).Error
		}

		version, err := lastEventID(tx, e.ID)
		if err != nil {
			return err
		}
		e.Version = version
		e.UpdatedAt = time.Now()
		return tx.Save(&e).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		ev, lerr := storedEvent(db, in.UserID, in.IdemKey)
		if lerr != nil || ev == nil {
			return ErrDuplicate
		}
		return replay(*ev, in.EntryID, in.Type)
	}
	return wrap("append "+strings.ToLower(in.Type), "entry", in.EntryID, err)
}

// applyEvent moves e to the state after in and returns the event payload.
// DELETED leaves e untouched; the caller removes the row.
func applyEvent(e *Entry, in AppendEventInput) (map[string]any, error) {
	payload := map[string]any{}
	switch in.Type {
	case EventUpdated:
		if in.Title == nil && in.Content == nil && in.Mood == nil {
			return nil, ErrInvalidEvent
		}
		if in.Title != nil {
			t := strings.TrimSpace(*in.Title)
			if tooLong(t, MaxTitleLen) {
				return nil, ErrInvalidInput
			}
			e.Title = t
			payload["title"] = t
		}
		if in.Content != nil {
			if !validContent(*in.Content) {
				return nil, ErrInvalidInput
			}
			e.Content = *in.Content
			e.Tags = pq.StringArray(hashtag.Unique(e.Content, hashtag.MaxStoredTags))
			payload["content"] = e.Content
		}
		if in.Mood != nil {
			m := strings.TrimSpace(*in.Mood)
			if tooLong(m, MaxMoodLen) {
				return nil, ErrInvalidInput
			}
			e.Mood = m
			payload["mood"] = m
		}
	case EventPublished:
		e.IsPublic = true
		if in.Anonymous != nil {
			e.IsAnonymous = *in.Anonymous
		}
		// an unpublished entry keeps its slug, so old links work again
		if e.ShareSlug == nil {
			e.ShareSlug = newSlug()
		}
		payload["anonymous"] = e.IsAnonymous
		payload["share_slug"] = *e.ShareSlug
	case EventUnpublished:
		e.IsPublic = false
	case EventDeleted:
	default:
		return nil, ErrInvalidEvent
	}
	return payload, nil
}

// storedEvent returns the event already recorded under the user's
// idempotency key, or nil when key is nil or unused.
func storedEvent(db *gorm.DB, userID uint64, key *string) (*EntryEvent, error) {
	if key == nil {
		return nil, nil
	}
	var ev EntryEvent
	err := eventByKey(db, userID, *key).First(&ev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func eventByKey(db *gorm.DB, userID uint64, key string) *gorm.DB {
	return db.Model(&EntryEvent{}).Where("user_id = ? AND idempotency_key = ?", userID, key)
}

// replay decides a retried request whose key is already stored. Repeating
// the same operation succeeds; reusing the key for anything else is
// ErrDuplicate. entryID 0 matches any entry.
func replay(ev EntryEvent, entryID uint64, typ string) error {
	if ev.Type == typ && (entryID == 0 || ev.EntryID == entryID) {
		return nil
	}
	return ErrDuplicate
}

func replayCreate(ev EntryEvent) (uint64, error) {
	if err := replay(ev, 0, EventCreated); err != nil {
		return 0, err
	}
	return ev.EntryID, nil
}

func (s *Service) Like(ctx context.Context, entryID, userID uint64) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := visibleEntry(tx, entryID, userID); err != nil {
			return err
		}
		if err := tx.Create(&Like{EntryID: entryID, UserID: userID}).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrAlreadyLiked
			}
			return err
		}
		return tx.Model(&Entry{}).Where("id = ?", entryID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	return wrap("like", "entry", entryID, err)
}

func (s *Service) Unlike(ctx context.Context, entryID, userID uint64) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("entry_id = ? AND user_id = ?", entryID, userID).Delete(&Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&Entry{}).Where("id = ? AND like_count > 0", entryID).
			UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
	})
	return wrap("unlike", "entry", entryID, err)
}

// AddComment stores a comment on a visible entry and, when the commenter is
// not the author, queues a notification for the author.
func (s *Service) AddComment(ctx context.Context, in AddCommentInput) (Comment, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" || tooLong(content, MaxCommentLen) {
		return Comment{}, ErrInvalidInput
	}

	c := Comment{EntryID: in.EntryID, UserID: in.UserID, Content: content, IsAnonymous: in.Anonymous}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := visibleEntry(tx, in.EntryID, in.UserID)
		if err != nil {
			return err
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		if err := tx.Model(&Entry{}).Where("id = ?", e.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error; err != nil {
			return err
		}
		to, ok := notifyRecipient(e, in.UserID)
		if !ok {
			return nil
		}
		q := &jobs.Repo{DB: tx}
		return q.Enqueue(ctx, to, jobs.TypeEntryNotify, jobs.EntryNotify{
			EntryID:   e.ID,
			CommentID: c.ID,
			ActorID:   in.UserID,
			Anonymous: in.Anonymous,
		}, time.Now())
	})
	if err != nil {
		return Comment{}, wrap("comment", "entry", in.EntryID, err)
	}
	return c, nil
}

// DeleteComment is allowed for the comment author and the entry author.
func (s *Service) DeleteComment(ctx context.Context, commentID, userID uint64) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c Comment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, commentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var e Entry
		if err := tx.First(&e, c.EntryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if c.UserID != userID && e.UserID != userID {
			return ErrForbidden
		}
		if err := tx.Delete(&c).Error; err != nil {
			return err
		}
		return tx.Model(&Entry{}).Where("id = ? AND comment_count > 0", e.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count - 1")).Error
	})
	return wrap("delete", "comment", commentID, err)
}

// notifyRecipient is the entry author, unless the author is the commenter.
func notifyRecipient(e Entry, commenter uint64) (uint64, bool) {
	if e.UserID == commenter {
		return 0, false
	}
	return e.UserID, true
}

func visibleEntry(tx *gorm.DB, id, viewer uint64) (Entry, error) {
	var e Entry
	if err := tx.First(&e, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	if !e.Visible(viewer) {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func lastEventID(tx *gorm.DB, entryID uint64) (uint64, error) {
	var last EntryEvent
	if err := tx.Where("entry_id = ?", entryID).Order("id desc").First(&last).Error; err != nil {
		return 0, err
	}
	return last.ID, nil
}

func (s *Service) insertEvent(tx *gorm.DB, entryID, userID uint64, typ string, payload map[string]any, idem *string) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	ev := EntryEvent{
		EntryID:        entryID,
		UserID:         userID,
		Type:           typ,
		Payload:        json.RawMessage(b),
		IdempotencyKey: idem,
		CreatedAt:      time.Now(),
	}
	return tx.Create(&ev).Error
}
