package voucher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-partyshop/internal/common"
	"github.com/noah-isme/backend-partyshop/internal/pricing"
)

// ErrDuplicateCode is returned by AdminStore.Create when the code already exists.
var ErrDuplicateCode = errors.New("voucher code already exists")

// CommissionSummary aggregates an affiliate's ledger.
type CommissionSummary struct {
	AffiliateID string        `json:"affiliate_id"`
	Redemptions int64         `json:"redemptions"`
	Discounted  pricing.Money `json:"discount_total"`
	Commission  pricing.Money `json:"commission_total"`
}

// AdminStore captures voucher management persistence.
type AdminStore interface {
	Create(ctx context.Context, v Voucher) (Voucher, error)
	Update(ctx context.Context, code string, v Voucher) (Voucher, error)
	AffiliateCommissions(ctx context.Context, affiliateID string) (CommissionSummary, error)
}

// Handler exposes voucher validation and administrative endpoints.
type Handler struct {
	Svc       *Service
	Admin     AdminStore
	Validator *validator.Validate
	Logger    zerolog.Logger
}

type validateRequest struct {
	VoucherCode   string        `json:"voucher_code" validate:"required,max=64"`
	CartSubtotal  pricing.Money `json:"cart_subtotal"`
	CustomerEmail string        `json:"customer_email" validate:"omitempty,email"`
}

type validateResponse struct {
	Valid          bool           `json:"valid"`
	Voucher        *voucherView   `json:"voucher,omitempty"`
	DiscountAmount *pricing.Money `json:"discount_amount,omitempty"`
	Error          string         `json:"error,omitempty"`
	MinimumSpend   *pricing.Money `json:"minimum_spend,omitempty"`
}

type voucherView struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Type          Kind            `json:"type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	PrepaidAmount pricing.Money   `json:"prepaid_amount,omitempty"`
	MinimumSpend  pricing.Money   `json:"minimum_spend"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

type voucherPayload struct {
	Code           string          `json:"code" validate:"required,max=64"`
	Name           string          `json:"name" validate:"max=200"`
	Type           string          `json:"type" validate:"required,oneof=percentage fixed_amount free_shipping prepaid_credit"`
	DiscountValue  decimal.Decimal `json:"discount_value"`
	PrepaidAmount  pricing.Money   `json:"prepaid_amount"`
	MinimumSpend   pricing.Money   `json:"minimum_spend"`
	MaxUses        *int32          `json:"max_uses" validate:"omitempty,min=0"`
	ExpiresAt      *time.Time      `json:"expires_at"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	AffiliateID    *string         `json:"affiliate_id"`
	Active         *bool           `json:"active"`
}

// Validate checks a code against a cart subtotal and reports eligibility.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher service not configured", nil)
		return
	}
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate().Struct(req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	res, err := h.Svc.Validate(r.Context(), Request{
		Code:          req.VoucherCode,
		CartSubtotal:  req.CartSubtotal,
		CustomerEmail: req.CustomerEmail,
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to validate voucher", nil)
		return
	}
	common.JSON(w, http.StatusOK, NewValidateResponse(res))
}

// NewValidateResponse renders a Result in the public wire shape.
func NewValidateResponse(res Result) any {
	out := validateResponse{Valid: res.Valid}
	if !res.Valid {
		out.Error = ReasonMessage(res)
		out.MinimumSpend = res.MinimumSpend
		return out
	}
	amount := res.DiscountAmount
	out.DiscountAmount = &amount
	if v := res.Voucher; v != nil {
		out.Voucher = &voucherView{
			Code:          v.Code,
			Name:          v.Name,
			Type:          v.Kind,
			DiscountValue: v.DiscountValue,
			PrepaidAmount: v.PrepaidAmount,
			MinimumSpend:  v.MinimumSpend,
			ExpiresAt:     v.ExpiresAt,
		}
	}
	return out
}

// ReasonMessage returns the customer-facing rejection text.
func ReasonMessage(res Result) string {
	switch {
	case res.Reason == nil:
		return ""
	case errors.Is(res.Reason, ErrMinimumSpendUnmet) && res.MinimumSpend != nil:
		return fmt.Sprintf("minimum spend not met: spend at least $%s to use this code", res.MinimumSpend.String())
	default:
		return res.Reason.Error()
	}
}

// Create inserts a new voucher.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Admin == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher store not configured", nil)
		return
	}
	v, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	created, err := h.Admin.Create(r.Context(), v)
	if err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "voucher code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to create voucher", nil)
		return
	}
	h.audit(r, "voucher.created", created.Code)
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update mutates an existing voucher identified by code.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	if h.Admin == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher store not configured", nil)
		return
	}
	code := NormalizeCode(chi.URLParam(r, "code"))
	if code == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	v, ok := h.decodePayload(w, r)
	if !ok {
		return
	}
	updated, err := h.Admin.Update(r.Context(), code, v)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "voucher not found", nil)
			return
		}
		if errors.Is(err, ErrDuplicateCode) {
			common.JSONError(w, http.StatusConflict, "CONFLICT", "voucher code already exists", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update voucher", nil)
		return
	}
	h.audit(r, "voucher.updated", updated.Code)
	common.JSON(w, http.StatusOK, map[string]any{"data": updated})
}

func (h *Handler) audit(r *http.Request, action, code string) {
	actor, _ := common.Actor(r.Context())
	h.Logger.Info().Str("action", action).Str("voucher_code", code).Str("actor", actor).Msg("admin change")
}

// Commissions returns the ledger totals for an affiliate.
func (h *Handler) Commissions(w http.ResponseWriter, r *http.Request) {
	if h.Admin == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "voucher store not configured", nil)
		return
	}
	affiliateID := strings.TrimSpace(chi.URLParam(r, "id"))
	if affiliateID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "affiliate id is required", nil)
		return
	}
	summary, err := h.Admin.AffiliateCommissions(r.Context(), affiliateID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load commissions", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": summary})
}

func (h *Handler) decodePayload(w http.ResponseWriter, r *http.Request) (Voucher, bool) {
	var payload voucherPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Voucher{}, false
	}
	if err := h.validate().Struct(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return Voucher{}, false
	}
	v, err := payload.toVoucher()
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return Voucher{}, false
	}
	return v, true
}

func (p voucherPayload) toVoucher() (Voucher, error) {
	kind, err := ParseKind(p.Type)
	if err != nil {
		return Voucher{}, err
	}
	if p.DiscountValue.IsNegative() || p.CommissionRate.IsNegative() {
		return Voucher{}, errors.New("values must not be negative")
	}
	if kind == KindPercentage && p.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return Voucher{}, errors.New("percentage must be between 0 and 100")
	}
	if kind == KindPrepaidCredit && p.PrepaidAmount <= 0 {
		return Voucher{}, errors.New("prepaid_amount is required for prepaid_credit vouchers")
	}
	if p.MinimumSpend < 0 {
		return Voucher{}, errors.New("minimum_spend must not be negative")
	}
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	v := Voucher{
		Code:           NormalizeCode(p.Code),
		Name:           strings.TrimSpace(p.Name),
		Kind:           kind,
		DiscountValue:  p.DiscountValue,
		PrepaidAmount:  p.PrepaidAmount,
		MinimumSpend:   p.MinimumSpend,
		MaxUses:        p.MaxUses,
		ExpiresAt:      p.ExpiresAt,
		CommissionRate: p.CommissionRate,
		AffiliateID:    p.AffiliateID,
		Active:         active,
	}
	if v.AffiliateID != nil && strings.TrimSpace(*v.AffiliateID) == "" {
		v.AffiliateID = nil
	}
	return v, nil
}

func (h *Handler) validate() *validator.Validate {
	if h.Validator != nil {
		return h.Validator
	}
	return defaultValidator
}

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())
