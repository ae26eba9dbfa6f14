package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"whisper/internal/jobs"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrOTPInvalid   = errors.New("invalid code")
	ErrOTPExpired   = errors.New("code expired")
	ErrOTPThrottled = errors.New("too many code requests")

	errWrongCode = fmt.Errorf("%w: wrong code", ErrOTPInvalid)
)

const (
	OTPDigits      = 6
	MaxOTPAttempts = 5

	// OTPCooldown is the minimum gap between codes for one phone.
	OTPCooldown = time.Minute
	// MaxOTPPerHour caps codes issued per phone in a rolling hour, which also
	// caps guesses at MaxOTPPerHour*MaxOTPAttempts per hour.
	MaxOTPPerHour = 5
)

// NormalizePhone strips spaces, dashes, dots and parentheses and requires an
// E.164 number: '+' followed by 8 to 15 digits.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		switch {
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			return "", ErrInvalidPhone
		}
	}
	out := b.String()
	if !strings.HasPrefix(out, "+") || len(out) < 9 || len(out) > 16 {
		return "", ErrInvalidPhone
	}
	return out, nil
}

// throttleOTP decides whether another code may be issued given the issue
// times of the phone's codes from the last hour.
func throttleOTP(issued []time.Time, now time.Time) error {
	n := 0
	for _, t := range issued {
		age := now.Sub(t)
		if age < OTPCooldown {
			return ErrOTPThrottled
		}
		if age < time.Hour {
			n++
		}
	}
	if n >= MaxOTPPerHour {
		return ErrOTPThrottled
	}
	return nil
}

// checkOTP decides one verify attempt against a stored code. A wrong code
// is reported as errWrongCode, which counts against MaxOTPAttempts.
func checkOTP(otp OTPCode, code string, now time.Time) error {
	switch {
	case otp.ConsumedAt != nil:
		return ErrOTPInvalid
	case now.After(otp.ExpiresAt):
		return ErrOTPExpired
	case otp.Attempts >= MaxOTPAttempts:
		return ErrOTPInvalid
	case !ComparePassword(otp.CodeHash, code):
		return errWrongCode
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPDigits, n.Int64()), nil
}

type OTPService struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Request issues a fresh code for phone, revoking earlier unused ones, and
// queues it for SMS delivery in the same transaction. It returns the request id.
func (s *OTPService) Request(ctx context.Context, phone string) (string, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return "", err
	}
	code, err := generateCode()
	if err != nil {
		return "", err
	}
	hash, err := HashPassword(code)
	if err != nil {
		return "", err
	}

	now := time.Now()
	reqID := uuid.NewString()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var issued []time.Time
		if err := tx.Model(&OTPCode{}).
			Where("phone = ? AND created_at > ?", phone, now.Add(-time.Hour)).
			Pluck("created_at", &issued).Error; err != nil {
			return err
		}
		if err := throttleOTP(issued, now); err != nil {
			return err
		}

		if err := tx.Model(&OTPCode{}).
			Where("phone = ? AND consumed_at IS NULL", phone).
			Update("consumed_at", now).Error; err != nil {
			return err
		}
		if err := tx.Create(&OTPCode{
			RequestID: reqID,
			Phone:     phone,
			CodeHash:  hash,
			ExpiresAt: now.Add(s.TTL),
			CreatedAt: now,
		}).Error; err != nil {
			return err
		}
		q := &jobs.Repo{DB: tx}
		return q.Enqueue(ctx, 0, jobs.TypeOTPDelivery, jobs.OTPDelivery{
			RequestID: reqID,
			Phone:     phone,
			Code:      code,
		}, now)
	})
	if err != nil {
		return "", err
	}
	return reqID, nil
}

// Verify consumes a matching code and returns the user for phone, creating
// one on first sign-in. Wrong codes count against MaxOTPAttempts.
func (s *OTPService) Verify(ctx context.Context, phone, code string) (User, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return User{}, err
	}
	code = strings.TrimSpace(code)
	if len(code) != OTPDigits {
		return User{}, ErrOTPInvalid
	}

	var (
		user   User
		result error
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var otp OTPCode
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("phone = ? AND consumed_at IS NULL", phone).
			Order("id desc").
			First(&otp).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				result = ErrOTPInvalid
				return nil
			}
			return err
		}

		now := time.Now()
		switch err := checkOTP(otp, code, now); {
		case errors.Is(err, errWrongCode):
			// committed, so the counter survives the failed verify
			result = ErrOTPInvalid
			return tx.Model(&otp).Update("attempts", otp.Attempts+1).Error
		case err != nil:
			result = err
			return nil
		}

		if err := tx.Model(&otp).Update("consumed_at", now).Error; err != nil {
			return err
		}

		return tx.Where(User{Phone: &phone}).FirstOrCreate(&user).Error
	})
	if err != nil {
		return User{}, err
	}
	if result != nil {
		return User{}, result
	}
	return user, nil
}
