package diary

import (
	"context"
	"errors"
	"strings"

	"whisper/internal/hashtag"

	"gorm.io/gorm"
)

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

// Filter narrows an entry listing. Tag and Query are substring matches run by
// the database (ILIKE); Before pages by entry id.
type Filter struct {
	Tag    string
	Query  string
	Limit  int
	Before uint64
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultLimit
	}
	if f.Limit > MaxLimit {
		return MaxLimit
	}
	return f.Limit
}

func (f Filter) apply(q *gorm.DB) *gorm.DB {
	if f.Tag != "" {
		q = q.Where("content ILIKE ?", hashtag.LikePattern(f.Tag))
	}
	if qText := strings.TrimSpace(f.Query); qText != "" {
		q = q.Where("content ILIKE ?", "%"+hashtag.EscapeLike(qText)+"%")
	}
	if f.Before > 0 {
		q = q.Where("id < ?", f.Before)
	}
	return q.Order("id desc").Limit(f.limit())
}

// Feed is the read side: listings, single entries, comments, timelines and
// tag clouds.
type Feed struct {
	DB *gorm.DB
}

func (f *Feed) ListOwn(ctx context.Context, userID uint64, flt Filter) ([]Entry, error) {
	var rows []Entry
	q := f.DB.WithContext(ctx).Model(&Entry{}).Where("user_id = ?", userID)
	if err := flt.apply(q).Find(&rows).Error; err != nil {
		return nil, wrap("list", "entries", 0, err)
	}
	return rows, nil
}

func (f *Feed) ListPublic(ctx context.Context, flt Filter) ([]Entry, error) {
	var rows []Entry
	q := f.DB.WithContext(ctx).Model(&Entry{}).Where("is_public = true")
	if err := flt.apply(q).Find(&rows).Error; err != nil {
		return nil, wrap("list", "public entries", 0, err)
	}
	return rows, nil
}

// Get returns the entry if viewer may see it. Hidden entries are ErrNotFound.
func (f *Feed) Get(ctx context.Context, id, viewer uint64) (Entry, error) {
	e, err := visibleEntry(f.DB.WithContext(ctx), id, viewer)
	return e, wrap("get", "entry", id, err)
}

func (f *Feed) BySlug(ctx context.Context, slug string) (Entry, error) {
	var e Entry
	if err := f.DB.WithContext(ctx).Where("share_slug = ? AND is_public = true", slug).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, wrap("get", "shared entry", 0, err)
	}
	return e, nil
}

func (f *Feed) Comments(ctx context.Context, entryID, viewer uint64) ([]Comment, error) {
	db := f.DB.WithContext(ctx)
	if _, err := visibleEntry(db, entryID, viewer); err != nil {
		return nil, wrap("comments", "entry", entryID, err)
	}
	var out []Comment
	if err := db.Where("entry_id = ?", entryID).Order("id asc").Find(&out).Error; err != nil {
		return nil, wrap("comments", "entry", entryID, err)
	}
	return out, nil
}

// Timeline is the owner's event history for an entry.
func (f *Feed) Timeline(ctx context.Context, entryID, userID uint64) ([]EntryEvent, error) {
	db := f.DB.WithContext(ctx)

	// verify ownership
	var e Entry
	if err := db.Where("id = ? AND user_id = ?", entryID, userID).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrap("timeline", "entry", entryID, err)
	}

	var evs []EntryEvent
	if err := db.Where("entry_id = ? AND user_id = ?", entryID, userID).Order("id asc").Find(&evs).Error; err != nil {
		return nil, wrap("timeline", "entry", entryID, err)
	}
	return evs, nil
}

// LikedBy reports which of ids viewer has liked.
func (f *Feed) LikedBy(ctx context.Context, viewer uint64, ids []uint64) (map[uint64]bool, error) {
	out := map[uint64]bool{}
	if viewer == 0 || len(ids) == 0 {
		return out, nil
	}
	var liked []uint64
	if err := f.DB.WithContext(ctx).Model(&Like{}).
		Where("user_id = ? AND entry_id IN ?", viewer, ids).
		Pluck("entry_id", &liked).Error; err != nil {
		return nil, wrap("liked", "entries", 0, err)
	}
	for _, id := range liked {
		out[id] = true
	}
	return out, nil
}

// PublicTagCloud ranks tags over the newest batch public entries only.
func (f *Feed) PublicTagCloud(ctx context.Context, batch, topN int) ([]hashtag.Tag, error) {
	return tagCloud(f.DB.WithContext(ctx).Model(&Entry{}).Where("is_public = true"), batch, topN)
}

func (f *Feed) OwnTagCloud(ctx context.Context, userID uint64, batch, topN int) ([]hashtag.Tag, error) {
	return tagCloud(f.DB.WithContext(ctx).Model(&Entry{}).Where("user_id = ?", userID), batch, topN)
}

func tagCloud(q *gorm.DB, batch, topN int) ([]hashtag.Tag, error) {
	var docs []string
	if err := q.Order("id desc").Limit(batch).Pluck("content", &docs).Error; err != nil {
		return nil, wrap("tags", "entries", 0, err)
	}
	return hashtag.Aggregate(docs, topN), nil
}
