package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	tok, err := j.Sign(42)
	require.NoError(t, err)

	uid, err := j.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), uid)
}

func TestJWTRejects(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	tok, err := j.Sign(1)
	require.NoError(t, err)

	_, err = NewJWT("other", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Verify(tok + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := NewJWT("secret", -time.Hour).Sign(1)
	require.NoError(t, err)
	_, err = j.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = j.Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, ComparePassword(hash, "correct horse"))
	assert.False(t, ComparePassword(hash, "wrong horse"))
	assert.False(t, ComparePassword("", "anything"))
}

func TestNormalizePhone(t *testing.T) {
	got, err := NormalizePhone(" +1 (555) 010-0199 ")
	require.NoError(t, err)
	assert.Equal(t, "+15550100199", got)

	for _, bad := range []string{"", "5550100199", "+1", "+1555abc0199", "++15550100199", "+1234567890123456"} {
		_, err := NormalizePhone(bad)
		assert.ErrorIs(t, err, ErrInvalidPhone, bad)
	}
}

func TestGenerateCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		c, err := generateCode()
		require.NoError(t, err)
		require.Len(t, c, OTPDigits)
		assert.Equal(t, "", strings.Trim(c, "0123456789"))
	}
}

func TestEmailAndDisplayName(t *testing.T) {
	assert.Equal(t, "me@example.com", NormalizeEmail("  Me@Example.COM "))
	assert.True(t, validEmail("me@example.com"))
	assert.False(t, validEmail("@example.com"))
	assert.False(t, validEmail("me@"))
	assert.False(t, validEmail("me example@x.com"))

	name, err := cleanDisplayName("  Night Owl ")
	require.NoError(t, err)
	assert.Equal(t, "Night Owl", name)
	_, err = cleanDisplayName(strings.Repeat("ß", MaxDisplayNameLen+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMiddleware(t *testing.T) {
	j := NewJWT("secret", time.Hour)
	tok, err := j.Sign(7)
	require.NoError(t, err)

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := UserIDFromContext(r.Context()); ok {
			w.Header().Set("X-User", "yes")
			assert.Equal(t, uint64(7), uid)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	do := func(h http.Handler, header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	required := RequireAuth(j)(echo)
	assert.Equal(t, http.StatusUnauthorized, do(required, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(required, "Bearer junk").Code)
	assert.Equal(t, http.StatusUnauthorized, do(required, "Basic abc").Code)
	rec := do(required, "Bearer "+tok)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "yes", rec.Header().Get("X-User"))

	optional := OptionalAuth(j)(echo)
	rec = do(optional, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("X-User"))
	assert.Equal(t, http.StatusUnauthorized, do(optional, "Bearer junk").Code)
	assert.Equal(t, "yes", do(optional, "Bearer "+tok).Header().Get("X-User"))
}

func TestPasswordLengthLimits(t *testing.T) {
	assert.False(t, ValidPassword("short"))
	assert.True(t, ValidPassword(strings.Repeat("a", MaxPasswordLen)))
	assert.False(t, ValidPassword(strings.Repeat("a", MaxPasswordLen+1)))

	_, err := HashPassword(strings.Repeat("a", MaxPasswordLen+1))
	assert.ErrorIs(t, err, ErrInvalidInput)

	// rejected before any storage access
	a := &Accounts{}
	_, err = a.Register(context.Background(), "me@example.com", strings.Repeat("a", MaxPasswordLen+1), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	err = a.ChangePassword(context.Background(), 1, "current", strings.Repeat("a", MaxPasswordLen+1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestThrottleOTP(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.NoError(t, throttleOTP(nil, now))
	assert.NoError(t, throttleOTP([]time.Time{now.Add(-2 * time.Minute)}, now))
	assert.ErrorIs(t, throttleOTP([]time.Time{now.Add(-30 * time.Second)}, now), ErrOTPThrottled)

	var issued []time.Time
	for i := 1; i <= MaxOTPPerHour; i++ {
		issued = append(issued, now.Add(-time.Duration(i*10)*time.Minute))
	}
	assert.ErrorIs(t, throttleOTP(issued, now), ErrOTPThrottled)
	// the oldest code ages out of the window
	assert.NoError(t, throttleOTP(issued, now.Add(10*time.Minute+time.Second)))
}

func TestCheckOTP(t *testing.T) {
	hash, err := HashPassword("123456")
	require.NoError(t, err)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	open := OTPCode{CodeHash: hash, ExpiresAt: now.Add(time.Minute)}

	assert.NoError(t, checkOTP(open, "123456", now))

	err = checkOTP(open, "654321", now)
	assert.ErrorIs(t, err, errWrongCode)
	assert.ErrorIs(t, err, ErrOTPInvalid)

	expired := open
	expired.ExpiresAt = now.Add(-time.Second)
	assert.ErrorIs(t, checkOTP(expired, "123456", now), ErrOTPExpired)

	exhausted := open
	exhausted.Attempts = MaxOTPAttempts
	err = checkOTP(exhausted, "123456", now)
	assert.ErrorIs(t, err, ErrOTPInvalid)
	assert.NotErrorIs(t, err, errWrongCode)

	used := open
	used.ConsumedAt = &now
	err = checkOTP(used, "123456", now)
	assert.ErrorIs(t, err, ErrOTPInvalid)
	assert.NotErrorIs(t, err, errWrongCode)
}
