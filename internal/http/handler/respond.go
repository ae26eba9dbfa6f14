package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"whisper/internal/auth"
	"whisper/internal/diary"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return false
	}
	return true
}

func urlID(w http.ResponseWriter, r *http.Request, key string) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, key), 10, 64)
	if err != nil || id == 0 {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeError maps domain errors to status codes. Anything unrecognized is
// logged and reported as a plain 500.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, diary.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, diary.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, diary.ErrInvalidEvent),
		errors.Is(err, diary.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidPhone):
		status = http.StatusBadRequest
	case errors.Is(err, diary.ErrAlreadyLiked),
		errors.Is(err, diary.ErrDuplicate),
		errors.Is(err, auth.ErrEmailTaken):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrOTPInvalid),
		errors.Is(err, auth.ErrOTPExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, auth.ErrOTPThrottled):
		status = http.StatusTooManyRequests
	}

	if status == http.StatusInternalServerError {
		if log != nil {
			log.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", chimw.GetReqID(r.Context())),
				zap.Error(err))
		}
		http.Error(w, "server error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
