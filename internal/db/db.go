package db

import (
	"fmt"
	"time"

	"whisper/internal/auth"
	"whisper/internal/diary"
	"whisper/internal/jobs"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens postgres with driver errors translated to gorm sentinels
// (gorm.ErrDuplicatedKey is what the services match on).
func Connect(dsn string, log *zap.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(log),
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return gdb, nil
}

func newGormLogger(log *zap.Logger) logger.Interface {
	if log == nil {
		return logger.Default.LogMode(logger.Silent)
	}
	return logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	if err := gdb.AutoMigrate(
		&auth.User{},
		&auth.OTPCode{},
		&diary.Entry{},
		&diary.EntryEvent{},
		&diary.Like{},
		&diary.Comment{},
		&jobs.Job{},
	); err != nil {
		return err
	}

	stmts := []string{
		// one like per user per entry
		`create unique index if not exists uq_likes_entry_user on likes(entry_id, user_id);`,

		// event idempotency: unique per user + idempotency_key where not null
		`create unique index if not exists uq_entry_events_user_idem
		 on entry_events(user_id, idempotency_key)
		 where idempotency_key is not null;`,

		`create index if not exists idx_entry_events_entry on entry_events(entry_id, id);`,
		`create index if not exists idx_entries_tags on entries using gin (tags);`,
		`create index if not exists idx_entries_public on entries(is_public, id desc);`,
		`create index if not exists idx_entries_user on entries(user_id, id desc);`,
		`create index if not exists idx_comments_entry on comments(entry_id, id);`,
		`create index if not exists idx_otp_phone_open on otp_codes(phone, id desc) where consumed_at is null;`,
		`create index if not exists idx_jobs_due on jobs(status, run_at);`,
		`create index if not exists idx_jobs_lock on jobs(status, locked_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
