package voucher

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-partyshop/internal/pricing"
)

var (
	// ErrNotFound is returned when no active voucher matches the code.
	ErrNotFound = errors.New("voucher not found or inactive")
	// ErrExpired is returned when the voucher has already expired.
	ErrExpired = errors.New("voucher expired")
	// ErrUsageLimitReached indicates the voucher has exhausted its usage quota.
	ErrUsageLimitReached = errors.New("voucher usage limit reached")
	// ErrMinimumSpendUnmet indicates the cart subtotal did not meet the voucher requirement.
	ErrMinimumSpendUnmet = errors.New("minimum spend not met")
	// ErrEmailRequired is returned for prepaid credit when no customer email is given.
	ErrEmailRequired = errors.New("customer email required for prepaid credit")
	// ErrInvalidKind is returned for vouchers carrying an unknown type tag.
	ErrInvalidKind = errors.New("voucher type not supported")
)

// Kind is the voucher type tag as stored.
type Kind string

const (
	KindPercentage    Kind = "percentage"
	KindFixedAmount   Kind = "fixed_amount"
	KindFreeShipping  Kind = "free_shipping"
	KindPrepaidCredit Kind = "prepaid_credit"
)

// ParseKind normalises a type tag.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(raw))); k {
	case KindPercentage, KindFixedAmount, KindFreeShipping, KindPrepaidCredit:
		return k, nil
	default:
		return "", ErrInvalidKind
	}
}

// Voucher is a persisted promotional code.
type Voucher struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Kind          Kind            `json:"type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	PrepaidAmount pricing.Money   `json:"prepaid_amount"`
	MinimumSpend  pricing.Money   `json:"minimum_spend"`
	MaxUses       *int32          `json:"max_uses,omitempty"`
	CurrentUses   int32           `json:"current_uses"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
	// CommissionRate is the affiliate's cut, in percent of the discounted subtotal.
	CommissionRate decimal.Decimal `json:"commission_rate"`
	AffiliateID    *string         `json:"affiliate_id,omitempty"`
	Active         bool            `json:"active"`
}

// Check applies the eligibility rules in order: expiry, usage cap, minimum spend.
func (v Voucher) Check(now time.Time, subtotal pricing.Money) error {
	if v.ExpiresAt != nil && now.After(*v.ExpiresAt) {
		return ErrExpired
	}
	if v.MaxUses != nil && v.CurrentUses >= *v.MaxUses {
		return ErrUsageLimitReached
	}
	if subtotal < v.MinimumSpend {
		return ErrMinimumSpendUnmet
	}
	return nil
}

// Discount builds the pricing variant for this voucher. balance is the prepaid
// credit remaining for the customer and is ignored by other kinds.
func (v Voucher) Discount(balance pricing.Money, ledgerKey string) (pricing.Discount, error) {
	switch v.Kind {
	case KindPercentage:
		return pricing.Percentage{Rate: v.DiscountValue}, nil
	case KindFixedAmount:
		return pricing.FixedAmount{Amount: pricing.FromDecimal(v.DiscountValue)}, nil
	case KindFreeShipping:
		return pricing.FreeShipping{}, nil
	case KindPrepaidCredit:
		if balance < 0 {
			balance = 0
		}
		return pricing.PrepaidCredit{Balance: balance, LedgerKey: ledgerKey}, nil
	default:
		return nil, ErrInvalidKind
	}
}

// Commission returns the affiliate commission earned on the given discounted subtotal.
func Commission(v Voucher, base pricing.Money) pricing.Money {
	if v.AffiliateID == nil || base <= 0 || !v.CommissionRate.IsPositive() {
		return 0
	}
	amount := decimal.NewFromInt(int64(base)).Mul(v.CommissionRate).Div(decimal.NewFromInt(100))
	return pricing.Money(amount.Round(0).IntPart())
}

// NormalizeCode trims and upper-cases a voucher code for lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeEmail lower-cases the ledger key.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
