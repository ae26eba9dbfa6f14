package handler

import (
	"net/http"

	"whisper/internal/auth"

	"go.uber.org/zap"
)

type MeHandler struct {
	Accounts accountStore
	Log      *zap.Logger
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	u, err := h.Accounts.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

type updateMeReq struct {
	DisplayName string `json:"display_name"`
}

func (h *MeHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	var req updateMeReq
	if !decode(w, r, &req) {
		return
	}
	u, err := h.Accounts.UpdateProfile(r.Context(), uid, req.DisplayName)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *MeHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	uid, _ := auth.UserIDFromContext(r.Context())
	var req changePasswordReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.Accounts.ChangePassword(r.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
