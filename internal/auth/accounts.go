package auth

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already used")
	ErrUserNotFound       = errors.New("user not found")
)

const MaxDisplayNameLen = 64

type Accounts struct {
	DB *gorm.DB
}

func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t\r\n")
}

func cleanDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxDisplayNameLen {
		return "", ErrInvalidInput
	}
	return name, nil
}

func (a *Accounts) Register(ctx context.Context, email, password, displayName string) (User, error) {
	email = NormalizeEmail(email)
	if !validEmail(email) || !ValidPassword(password) {
		return User{}, ErrInvalidInput
	}
	name, err := cleanDisplayName(displayName)
	if err != nil {
		return User{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return User{}, err
	}

	u := User{Email: &email, PasswordHash: hash, DisplayName: name}
	if err := a.DB.WithContext(ctx).Create(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

func (a *Accounts) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return User{}, ErrInvalidInput
	}

	var u User
	if err := a.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}
	if !ComparePassword(u.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func (a *Accounts) Get(ctx context.Context, id uint64) (User, error) {
	var u User
	if err := a.DB.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (a *Accounts) UpdateProfile(ctx context.Context, id uint64, displayName string) (User, error) {
	name, err := cleanDisplayName(displayName)
	if err != nil {
		return User{}, err
	}
	res := a.DB.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("display_name", name)
	if res.Error != nil {
		return User{}, res.Error
	}
	if res.RowsAffected == 0 {
		return User{}, ErrUserNotFound
	}
	return a.Get(ctx, id)
}

// ChangePassword requires the current password unless the account has none
// yet (phone sign-up).
func (a *Accounts) ChangePassword(ctx context.Context, id uint64, current, next string) error {
	if !ValidPassword(next) {
		return ErrInvalidInput
	}
	u, err := a.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.PasswordHash != "" && !ComparePassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return a.DB.WithContext(ctx).Model(&User{}).Where("id = ?", id).Update("password_hash", hash).Error
}
