package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-partyshop/internal/common"
	"github.com/noah-isme/backend-partyshop/internal/delivery"
	"github.com/noah-isme/backend-partyshop/internal/pricing"
	"github.com/noah-isme/backend-partyshop/internal/session"
	"github.com/noah-isme/backend-partyshop/internal/voucher"
)

// Handler exposes the checkout session endpoints.
type Handler struct {
	Svc       *Service
	Sessions  session.Store
	Validator *validator.Validate
}

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

type itemRequest struct {
	ID       string        `json:"id" validate:"required,max=128"`
	Title    string        `json:"title" validate:"max=300"`
	Price    pricing.Money `json:"price" validate:"min=0"`
	Quantity int           `json:"quantity" validate:"required,min=1,max=999"`
	Variant  string        `json:"variant" validate:"max=128"`
}

type quantityRequest struct {
	Quantity int `json:"quantity" validate:"min=0,max=999"`
}

type quoteRequest struct {
	Items            []pricing.Item      `json:"items" validate:"dive"`
	Discount         *pricing.Descriptor `json:"discount"`
	Tip              pricing.Money       `json:"tip"`
	WaiveDeliveryFee bool                `json:"waive_delivery_fee"`
}

type discountRequest struct {
	Code          string `json:"code" validate:"required,max=64"`
	CustomerEmail string `json:"customer_email" validate:"omitempty,email"`
}

type deliveryRequest struct {
	Date         string           `json:"date" validate:"required"`
	TimeSlot     string           `json:"time_slot" validate:"required"`
	Address      delivery.Address `json:"address"`
	Instructions string           `json:"instructions" validate:"max=500"`
}

type sessionView struct {
	ID              string               `json:"id"`
	Items           []pricing.Item       `json:"items"`
	AppliedDiscount *pricing.Descriptor  `json:"applied_discount,omitempty"`
	Delivery        delivery.Active      `json:"delivery"`
	JoinDecision    session.JoinDecision `json:"join_decision,omitempty"`
	LastOrder       *session.LastOrder   `json:"last_order,omitempty"`
}

// CreateSession starts a new checkout session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := session.Start(r.Context(), h.Sessions)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]string{"id": sess.ID}})
}

// GetSession returns the cart and the reconciled delivery state.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	view := sessionView{ID: sess.ID}
	var err error
	if view.Items, err = sess.Items(ctx); err != nil {
		h.writeError(w, err)
		return
	}
	if view.Items == nil {
		view.Items = []pricing.Item{}
	}
	if view.AppliedDiscount, err = sess.AppliedDiscount(ctx); err != nil {
		h.writeError(w, err)
		return
	}
	if view.Delivery, err = h.reconciler().Active(ctx, sess); err != nil {
		h.writeError(w, err)
		return
	}
	if view.JoinDecision, err = sess.JoinDecision(ctx); err != nil {
		h.writeError(w, err)
		return
	}
	if view.LastOrder, err = sess.LastOrder(ctx); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": view})
}

// AddItem puts a product into the cart.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var req itemRequest
	if !h.decode(w, r, &req) {
		return
	}
	items, err := sess.AddItem(r.Context(), pricing.Item{
		ID:       req.ID,
		Title:    req.Title,
		Price:    req.Price,
		Quantity: req.Quantity,
		Variant:  req.Variant,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// UpdateItem changes a line quantity.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var req quantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	items, err := sess.UpdateQuantity(r.Context(), chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// RemoveItem drops a line from the cart.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	items, err := sess.RemoveItem(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": items})
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := sess.ClearCart(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// QuoteItems prices an arbitrary item list without touching a session.
func (h *Handler) QuoteItems(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	in := pricing.Input{Items: req.Items, Tip: req.Tip, WaiveDeliveryFee: req.WaiveDeliveryFee}
	if req.Discount != nil {
		d, err := req.Discount.Discount()
		if err != nil {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
			return
		}
		in.Discount = d
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.Svc.policy().Quote(in)})
}

// Quote prices the session cart.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	q, err := h.Svc.Quote(r.Context(), sess, pricing.ParseAmount(r.URL.Query().Get("tip")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// ApplyDiscount validates a code against the cart and stores it.
func (h *Handler) ApplyDiscount(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var req discountRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Svc.ApplyDiscount(r.Context(), sess, req.Code, req.CustomerEmail)
	if errors.Is(err, ErrDiscountInvalid) {
		common.JSON(w, http.StatusUnprocessableEntity, voucher.NewValidateResponse(res))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, voucher.NewValidateResponse(res))
}

// RemoveDiscount clears the applied code.
func (h *Handler) RemoveDiscount(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	if err := h.Svc.RemoveDiscount(r.Context(), sess); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDelivery returns the delivery info that currently applies to the session.
func (h *Handler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	active, err := h.reconciler().Active(r.Context(), sess)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, active)
}

// PutDelivery stores the customer-entered delivery slot.
func (h *Handler) PutDelivery(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var req deliveryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, _, err := delivery.ParseSlot(req.TimeSlot); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "time_slot must look like \"2:00 PM - 4:00 PM\"", nil)
		return
	}
	if h.reconciler().Expired(req.Date, req.TimeSlot) {
		common.JSONError(w, http.StatusConflict, "SLOT_EXPIRED", ErrSlotExpired.Error(), nil)
		return
	}
	info := delivery.Info{
		Date:         req.Date,
		TimeSlot:     req.TimeSlot,
		Address:      req.Address,
		Instructions: req.Instructions,
	}
	if err := sess.SetDeliveryInfo(r.Context(), info); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": info})
}

// Checkout places the order.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	sess, ok := h.open(w, r)
	if !ok {
		return
	}
	var in PlaceInput
	if !h.decode(w, r, &in) {
		return
	}
	out, err := h.Svc.Place(r.Context(), sess, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := session.Open(r.Context(), h.Sessions, chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if err := h.validate().Struct(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return false
	}
	return true
}

func (h *Handler) validate() *validator.Validate {
	if h.Validator != nil {
		return h.Validator
	}
	return defaultValidator
}

func (h *Handler) reconciler() *delivery.Reconciler {
	if h.Svc != nil {
		return h.Svc.reconciler()
	}
	return &delivery.Reconciler{}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	switch {
	case errors.Is(err, session.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "session not found", nil)
	case errors.Is(err, session.ErrItemNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart item not found", nil)
	case errors.Is(err, session.ErrInvalidItem):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", err.Error(), nil)
	case errors.Is(err, ErrDeliveryRequired):
		common.JSONError(w, http.StatusUnprocessableEntity, "DELIVERY_REQUIRED", err.Error(), nil)
	case errors.Is(err, ErrSlotExpired):
		common.JSONError(w, http.StatusConflict, "SLOT_EXPIRED", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout request failed", nil)
	}
}
