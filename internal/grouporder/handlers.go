package grouporder

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-partyshop/internal/common"
	"github.com/noah-isme/backend-partyshop/internal/session"
)

// Handler exposes group-order endpoints.
type Handler struct {
	Svc      *Service
	Sessions session.Store
}

type joinRequest struct {
	Token string `json:"token"`
}

// Get returns the public group order for a share token.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.Svc.Lookup(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": info})
}

// Join attaches the session to a group order.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "token is required", nil)
		return
	}
	info, err := h.Svc.Join(r.Context(), sess, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": info})
}

// Decline records a "no" and clears any group slots.
func (h *Handler) Decline(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := h.Svc.OptOut(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Leave detaches the session from its group order.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Leave(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Share marks an order shareable and returns its token.
func (h *Handler) Share(w http.ResponseWriter, r *http.Request) {
	token, err := h.Svc.Share(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]string{"share_token": token}})
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := session.Open(r.Context(), h.Sessions, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return sess, true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "group order not found", nil)
	case errors.Is(err, session.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	case errors.Is(err, ErrExpired):
		common.JSONError(w, http.StatusConflict, "GROUP_ORDER_EXPIRED", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "group order request failed", nil)
	}
}
