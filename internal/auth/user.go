package auth

import "time"

// User signs in with email+password, phone OTP, or both. Email and Phone are
// nullable so either may be absent; each is unique when present.
type User struct {
	ID           uint64    `gorm:"primaryKey"`
	Email        *string   `gorm:"type:text;uniqueIndex"`
	Phone        *string   `gorm:"type:text;uniqueIndex"`
	PasswordHash string    `gorm:"type:text;not null;default:''"`
	DisplayName  string    `gorm:"type:text;not null;default:''"`
	CreatedAt    time.Time `gorm:"not null;default:now()"`
}

// OTPCode is one issued phone code. Only the bcrypt hash is stored.
type OTPCode struct {
	ID         uint64     `gorm:"primaryKey"`
	RequestID  string     `gorm:"type:text;uniqueIndex;not null"`
	Phone      string     `gorm:"type:text;index;not null"`
	CodeHash   string     `gorm:"type:text;not null"`
	Attempts   int        `gorm:"not null;default:0"`
	ExpiresAt  time.Time  `gorm:"not null"`
	ConsumedAt *time.Time `gorm:"type:timestamptz"`
	CreatedAt  time.Time  `gorm:"not null;default:now()"`
}
