package jobs

import "time"

const (
	TypeOTPDelivery = "OTP_DELIVERY"
	TypeEntryNotify = "ENTRY_NOTIFY"
)

const (
	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

type Job struct {
	ID     uint64 `gorm:"primaryKey"`
	UserID uint64 `gorm:"index;not null"`

	Type    string `gorm:"type:text;not null"`
	Payload []byte `gorm:"type:jsonb;not null;default:'{}'::jsonb"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"` // PENDING/RUNNING/DONE/FAILED

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string    `gorm:"type:text"`
	LockedAt *time.Time `gorm:"type:timestamptz"`

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// OTPDelivery is the payload of an OTP_DELIVERY job.
type OTPDelivery struct {
	RequestID string `json:"request_id"`
	Phone     string `json:"phone"`
	Code      string `json:"code"`
}

// EntryNotify is the payload of an ENTRY_NOTIFY job. UserID on the job is the
// recipient (entry author).
type EntryNotify struct {
	EntryID   uint64 `json:"entry_id"`
	CommentID uint64 `json:"comment_id"`
	ActorID   uint64 `json:"actor_id"`
	Anonymous bool   `json:"anonymous"`
}
