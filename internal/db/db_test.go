package db

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"whisper/internal/auth"
	"whisper/internal/diary"
	"whisper/internal/jobs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// testDB connects to WHISPER_TEST_DATABASE_URL and migrates it. Tests use
// fresh user ids and phones so they can share one database.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("WHISPER_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("WHISPER_TEST_DATABASE_URL not set")
	}
	gdb, err := Connect(dsn, nil)
	require.NoError(t, err)
	require.NoError(t, AutoMigrateAndIndexes(gdb))
	return gdb
}

func freshUser() uint64 {
	return uint64(time.Now().UnixNano()%1_000_000_000)*100 + 1_000_000
}

func freshPhone() string {
	return fmt.Sprintf("+1555%08d", time.Now().UnixNano()%100_000_000)
}

func TestCreateEntryReplaysIdempotencyKey(t *testing.T) {
	gdb := testDB(t)
	svc := &diary.Service{DB: gdb}
	ctx := context.Background()
	user := freshUser()
	key := uuid.NewString()

	in := diary.CreateEntryInput{Content: "first #Rain #rain", IdemKey: &key}
	id, err := svc.CreateEntry(ctx, user, in)
	require.NoError(t, err)

	again, err := svc.CreateEntry(ctx, user, in)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	var n int64
	require.NoError(t, gdb.Model(&diary.Entry{}).Where("user_id = ?", user).Count(&n).Error)
	assert.EqualValues(t, 1, n)

	err = svc.AppendEvent(ctx, diary.AppendEventInput{EntryID: id, UserID: user, Type: diary.EventPublished, IdemKey: &key})
	assert.ErrorIs(t, err, diary.ErrDuplicate)
}

func TestAppendEventWritePath(t *testing.T) {
	gdb := testDB(t)
	svc := &diary.Service{DB: gdb}
	ctx := context.Background()
	author, reader := freshUser(), freshUser()+1

	id, err := svc.CreateEntry(ctx, author, diary.CreateEntryInput{Content: "draft #one"})
	require.NoError(t, err)

	// private entries are invisible to other users
	assert.ErrorIs(t, svc.Like(ctx, id, reader), diary.ErrNotFound)
	_, err = svc.AddComment(ctx, diary.AddCommentInput{EntryID: id, UserID: reader, Content: "hi"})
	assert.ErrorIs(t, err, diary.ErrNotFound)

	content := "now #Two and #two"
	require.NoError(t, svc.AppendEvent(ctx, diary.AppendEventInput{EntryID: id, UserID: author, Type: diary.EventUpdated, Content: &content}))
	require.NoError(t, svc.AppendEvent(ctx, diary.AppendEventInput{EntryID: id, UserID: author, Type: diary.EventPublished}))

	var e diary.Entry
	require.NoError(t, gdb.First(&e, id).Error)
	assert.Equal(t, []string{"two"}, []string(e.Tags))
	require.NotNil(t, e.ShareSlug)
	slug := *e.ShareSlug

	require.NoError(t, svc.AppendEvent(ctx, diary.AppendEventInput{EntryID: id, UserID: author, Type: diary.EventUnpublished}))
	require.NoError(t, svc.AppendEvent(ctx, diary.AppendEventInput{EntryID: id, UserID: author, Type: diary.EventPublished}))
	require.NoError(t, gdb.First(&e, id).Error)
	require.NotNil(t, e.ShareSlug)
	assert.Equal(t, slug, *e.ShareSlug)

	require.NoError(t, svc.Like(ctx, id, reader))
	_, err = svc.AddComment(ctx, diary.AddCommentInput{EntryID: id, UserID: reader, Content: "nice"})
	require.NoError(t, err)
	_, err = svc.AddComment(ctx, diary.AddCommentInput{EntryID: id, UserID: author, Content: "thanks"})
	require.NoError(t, err)

	// only the reader's comment notifies the author
	var notes []jobs.Job
	require.NoError(t, gdb.Where("user_id = ? AND type = ?", author, jobs.TypeEntryNotify).Find(&notes).Error)
	assert.Len(t, notes, 1)

	require.NoError(t, svc.AppendEvent(ctx, diary.AppendEventInput{EntryID: id, UserID: author, Type: diary.EventDeleted}))

	var likes, comments int64
	require.NoError(t, gdb.Model(&diary.Like{}).Where("entry_id = ?", id).Count(&likes).Error)
	require.NoError(t, gdb.Model(&diary.Comment{}).Where("entry_id = ?", id).Count(&comments).Error)
	assert.Zero(t, likes)
	assert.Zero(t, comments)
	assert.ErrorIs(t, gdb.First(&diary.Entry{}, id).Error, gorm.ErrRecordNotFound)
}

func seedOTP(t *testing.T, gdb *gorm.DB, phone, code string, attempts int, expires time.Time) {
	t.Helper()
	hash, err := auth.HashPassword(code)
	require.NoError(t, err)
	require.NoError(t, gdb.Create(&auth.OTPCode{
		RequestID: uuid.NewString(),
		Phone:     phone,
		CodeHash:  hash,
		Attempts:  attempts,
		ExpiresAt: expires,
	}).Error)
}

func TestOTPVerify(t *testing.T) {
	gdb := testDB(t)
	svc := &auth.OTPService{DB: gdb, TTL: 5 * time.Minute}
	ctx := context.Background()

	t.Run("find or create and single use", func(t *testing.T) {
		phone := freshPhone()
		seedOTP(t, gdb, phone, "123456", 0, time.Now().Add(time.Minute))

		u, err := svc.Verify(ctx, phone, "123456")
		require.NoError(t, err)
		require.NotNil(t, u.Phone)
		assert.Equal(t, phone, *u.Phone)

		_, err = svc.Verify(ctx, phone, "123456")
		assert.ErrorIs(t, err, auth.ErrOTPInvalid)

		seedOTP(t, gdb, phone, "654321", 0, time.Now().Add(time.Minute))
		again, err := svc.Verify(ctx, phone, "654321")
		require.NoError(t, err)
		assert.Equal(t, u.ID, again.ID)
	})

	t.Run("wrong code counts until the cap", func(t *testing.T) {
		phone := freshPhone()
		seedOTP(t, gdb, phone, "123456", auth.MaxOTPAttempts-1, time.Now().Add(time.Minute))

		_, err := svc.Verify(ctx, phone, "000000")
		assert.ErrorIs(t, err, auth.ErrOTPInvalid)

		// the right code no longer works once attempts are used up
		_, err = svc.Verify(ctx, phone, "123456")
		assert.ErrorIs(t, err, auth.ErrOTPInvalid)
	})

	t.Run("expired", func(t *testing.T) {
		phone := freshPhone()
		seedOTP(t, gdb, phone, "123456", 0, time.Now().Add(-time.Second))

		_, err := svc.Verify(ctx, phone, "123456")
		assert.ErrorIs(t, err, auth.ErrOTPExpired)
	})

	t.Run("request cooldown", func(t *testing.T) {
		phone := freshPhone()
		_, err := svc.Request(ctx, phone)
		require.NoError(t, err)

		_, err = svc.Request(ctx, phone)
		assert.ErrorIs(t, err, auth.ErrOTPThrottled)
	})
}
