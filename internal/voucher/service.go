package voucher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-partyshop/internal/obs"
	"github.com/noah-isme/backend-partyshop/internal/pricing"
)

// Store captures the persistence methods required by the voucher service.
type Store interface {
	// GetActiveByCode returns ErrNotFound when the code is unknown or inactive.
	GetActiveByCode(ctx context.Context, code string) (Voucher, error)
	// PrepaidSpent sums prior redemptions of a prepaid voucher by the customer.
	// found is false when the customer never redeemed it.
	PrepaidSpent(ctx context.Context, voucherID, email string) (spent pricing.Money, found bool, err error)
	// RecordRedemption inserts the ledger row and bumps current_uses atomically.
	// It reports false when the order was already settled and returns
	// ErrUsageLimitReached, recording nothing, when max_uses is exhausted.
	RecordRedemption(ctx context.Context, r Redemption) (bool, error)
}

// Locker serialises settlement per voucher so a prepaid balance is read and
// spent without interleaving.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Request is a validation request.
type Request struct {
	Code          string
	CartSubtotal  pricing.Money
	CustomerEmail string
}

// Result describes the outcome of evaluating a voucher without mutating state.
type Result struct {
	Valid          bool
	Voucher        *Voucher
	DiscountAmount pricing.Money
	Discount       pricing.Discount
	// Reason is one of the package sentinel errors when Valid is false.
	Reason error
	// MinimumSpend is set when Reason is ErrMinimumSpendUnmet.
	MinimumSpend *pricing.Money
}

// Redemption is a settled voucher use.
type Redemption struct {
	VoucherID     string
	OrderID       string
	CustomerEmail string
	Amount        pricing.Money
	AffiliateID   *string
	Commission    pricing.Money
}

// Settlement is the input to Settle, produced at order finalisation.
type Settlement struct {
	Code               string        `json:"code"`
	OrderID            string        `json:"order_id"`
	CustomerEmail      string        `json:"customer_email"`
	DiscountAmount     pricing.Money `json:"discount_amount"`
	DiscountedSubtotal pricing.Money `json:"discounted_subtotal"`
}

// Service encapsulates voucher rules evaluation and settlement behaviour.
type Service struct {
	Store   Store
	Locker  Locker
	LockTTL time.Duration
	Now     func() time.Time
	Logger  zerolog.Logger
}

// Validate evaluates a voucher code against a cart subtotal. Business rejections
// are reported through Result; the error is reserved for store failures.
func (s *Service) Validate(ctx context.Context, req Request) (Result, error) {
	if s == nil || s.Store == nil {
		return Result{}, errors.New("voucher service not configured")
	}
	res, err := s.validate(ctx, req)
	switch {
	case err != nil:
		obs.ObserveVoucherValidation("error")
	case res.Valid:
		obs.ObserveVoucherValidation("valid")
	default:
		obs.ObserveVoucherValidation(reasonLabel(res.Reason))
	}
	return res, err
}

func (s *Service) validate(ctx context.Context, req Request) (Result, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return Result{Reason: ErrNotFound}, nil
	}
	v, err := s.Store.GetActiveByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{Reason: ErrNotFound}, nil
		}
		return Result{}, fmt.Errorf("load voucher: %w", err)
	}
	subtotal := req.CartSubtotal
	if subtotal < 0 {
		subtotal = 0
	}
	if err := v.Check(s.now(), subtotal); err != nil {
		res := Result{Reason: err}
		if errors.Is(err, ErrMinimumSpendUnmet) {
			minimum := v.MinimumSpend
			res.MinimumSpend = &minimum
		}
		return res, nil
	}

	email := NormalizeEmail(req.CustomerEmail)
	var balance pricing.Money
	if v.Kind == KindPrepaidCredit {
		if email == "" {
			return Result{Reason: ErrEmailRequired}, nil
		}
		balance, err = s.remainingBalance(ctx, v, email)
		if err != nil {
			return Result{}, err
		}
	}
	discount, err := v.Discount(balance, email)
	if err != nil {
		return Result{Reason: err}, nil
	}
	return Result{
		Valid:          true,
		Voucher:        &v,
		Discount:       discount,
		DiscountAmount: pricing.DiscountAmount(discount, subtotal),
	}, nil
}

func (s *Service) remainingBalance(ctx context.Context, v Voucher, email string) (pricing.Money, error) {
	spent, found, err := s.Store.PrepaidSpent(ctx, v.ID, email)
	if err != nil {
		return 0, fmt.Errorf("load prepaid balance: %w", err)
	}
	if !found {
		return v.PrepaidAmount, nil
	}
	remaining := v.PrepaidAmount - spent
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Settle records voucher usage at order finalisation ensuring idempotency per order.
func (s *Service) Settle(ctx context.Context, in Settlement) error {
	if s == nil || s.Store == nil {
		return errors.New("voucher service not configured")
	}
	code := NormalizeCode(in.Code)
	if code == "" || in.OrderID == "" || in.DiscountAmount < 0 {
		return nil
	}
	run := func(ctx context.Context) error {
		v, err := s.Store.GetActiveByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				s.Logger.Warn().Str("code", code).Str("order_id", in.OrderID).Msg("settle skipped, voucher gone")
				return nil
			}
			return err
		}
		email := NormalizeEmail(in.CustomerEmail)
		amount := in.DiscountAmount
		if v.Kind == KindPrepaidCredit {
			remaining, err := s.remainingBalance(ctx, v, email)
			if err != nil {
				obs.ObserveVoucherSettlement("error")
				return err
			}
			if amount > remaining {
				s.Logger.Warn().Str("code", code).Str("order_id", in.OrderID).
					Int64("requested", int64(amount)).Int64("remaining", int64(remaining)).
					Msg("prepaid redemption clamped to remaining balance")
				amount = remaining
			}
		}
		inserted, err := s.Store.RecordRedemption(ctx, Redemption{
			VoucherID:     v.ID,
			OrderID:       in.OrderID,
			CustomerEmail: email,
			Amount:        amount,
			AffiliateID:   v.AffiliateID,
			Commission:    Commission(v, in.DiscountedSubtotal),
		})
		if errors.Is(err, ErrUsageLimitReached) {
			s.Logger.Warn().Str("code", code).Str("order_id", in.OrderID).Msg("settle rejected, usage limit reached")
			obs.ObserveVoucherSettlement("over_cap")
			return nil
		}
		if err != nil {
			obs.ObserveVoucherSettlement("error")
			return err
		}
		if !inserted {
			obs.ObserveVoucherSettlement("duplicate")
			return nil
		}
		obs.ObserveVoucherSettlement("recorded")
		return nil
	}
	if s.Locker == nil {
		return run(ctx)
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return s.Locker.WithLock(ctx, "lock:voucher:"+code, ttl, run)
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrUsageLimitReached):
		return "usage_limit"
	case errors.Is(err, ErrMinimumSpendUnmet):
		return "minimum_spend"
	case errors.Is(err, ErrEmailRequired):
		return "email_required"
	default:
		return "invalid"
	}
}
