package handler

import (
	"context"
	"net/http"

	"whisper/internal/auth"

	"go.uber.org/zap"
)

type accountStore interface {
	Register(ctx context.Context, email, password, displayName string) (auth.User, error)
	Authenticate(ctx context.Context, email, password string) (auth.User, error)
	Get(ctx context.Context, id uint64) (auth.User, error)
	UpdateProfile(ctx context.Context, id uint64, displayName string) (auth.User, error)
	ChangePassword(ctx context.Context, id uint64, current, next string) error
}

type otpIssuer interface {
	Request(ctx context.Context, phone string) (string, error)
	Verify(ctx context.Context, phone, code string) (auth.User, error)
}

type AuthHandler struct {
	Accounts accountStore
	OTP      otpIssuer
	JWT      *auth.JWT
	Log      *zap.Logger
}

type registerReq struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, u auth.User) {
	token, err := h.JWT.Sign(u.ID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, status, map[string]any{
		"token": token,
		"user":  toUserDTO(u),
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusCreated, u)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusOK, u)
}

type otpReq struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpReq
	if !decode(w, r, &req) {
		return
	}
	id, err := h.OTP.Request(r.Context(), req.Phone)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"request_id": id})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpReq
	if !decode(w, r, &req) {
		return
	}
	u, err := h.OTP.Verify(r.Context(), req.Phone, req.Code)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	h.issue(w, r, http.StatusOK, u)
}
