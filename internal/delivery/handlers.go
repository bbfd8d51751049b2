package delivery

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-partyshop/internal/common"
)

// Handler exposes stateless delivery helpers.
type Handler struct {
	Reconciler *Reconciler
}

// Expired reports whether ?date=&slot= has already started.
func (h *Handler) Expired(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	slot := strings.TrimSpace(r.URL.Query().Get("slot"))
	if date == "" || slot == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "date and slot are required", nil)
		return
	}
	rec := h.Reconciler
	if rec == nil {
		rec = &Reconciler{}
	}
	resp := map[string]any{"date": date, "slot": slot, "expired": rec.Expired(date, slot)}
	if start, end, err := ParseSlot(slot); err == nil {
		resp["start"] = start.String()
		resp["end"] = end.String()
	}
	common.JSON(w, http.StatusOK, resp)
}
