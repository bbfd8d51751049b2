package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DiscountKind is the wire tag of a discount variant.
type DiscountKind string

const (
	KindPercentage    DiscountKind = "percentage"
	KindFixedAmount   DiscountKind = "fixed_amount"
	KindFreeShipping  DiscountKind = "free_shipping"
	KindPrepaidCredit DiscountKind = "prepaid_credit"
)

// Discount is a closed set of discount variants. A nil Discount means no discount.
type Discount interface {
	Kind() DiscountKind
	discount()
}

// Percentage reduces the subtotal by Rate percent (15 means 15%).
type Percentage struct {
	Rate decimal.Decimal
}

// FixedAmount reduces the subtotal by Amount, never below zero.
type FixedAmount struct {
	Amount Money
}

// FreeShipping zeroes the delivery fee and leaves the subtotal untouched.
type FreeShipping struct{}

// PrepaidCredit spends a running balance tracked per customer.
// LedgerKey identifies whose balance was looked up (the customer email).
type PrepaidCredit struct {
	Balance   Money
	LedgerKey string
}

func (Percentage) Kind() DiscountKind    { return KindPercentage }
func (FixedAmount) Kind() DiscountKind   { return KindFixedAmount }
func (FreeShipping) Kind() DiscountKind  { return KindFreeShipping }
func (PrepaidCredit) Kind() DiscountKind { return KindPrepaidCredit }

func (Percentage) discount()    {}
func (FixedAmount) discount()   {}
func (FreeShipping) discount()  {}
func (PrepaidCredit) discount() {}

// DiscountAmount returns how much the discount takes off the given subtotal.
func DiscountAmount(d Discount, subtotal Money) Money {
	if subtotal <= 0 || d == nil {
		return 0
	}
	var amount Money
	switch v := d.(type) {
	case Percentage:
		amount = applyPercent(subtotal, v.Rate)
	case FixedAmount:
		amount = v.Amount
	case PrepaidCredit:
		amount = v.Balance
	case FreeShipping:
		return 0
	default:
		return 0
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		return 0
	}
	return amount
}

func waivesDelivery(d Discount) bool {
	_, ok := d.(FreeShipping)
	return ok
}

// Descriptor is the serialisable form of a Discount, persisted in the applied-discount session slot.
type Descriptor struct {
	Code      string       `json:"code"`
	Type      DiscountKind `json:"type"`
	Value     string       `json:"value,omitempty"`
	LedgerKey string       `json:"ledger_key,omitempty"`
}

// Describe converts a discount into its descriptor.
func Describe(code string, d Discount) (Descriptor, error) {
	out := Descriptor{Code: code}
	switch v := d.(type) {
	case Percentage:
		out.Type, out.Value = KindPercentage, v.Rate.String()
	case FixedAmount:
		out.Type, out.Value = KindFixedAmount, v.Amount.String()
	case FreeShipping:
		out.Type = KindFreeShipping
	case PrepaidCredit:
		out.Type, out.Value, out.LedgerKey = KindPrepaidCredit, v.Balance.String(), v.LedgerKey
	case nil:
		return Descriptor{}, errors.New("pricing: nil discount")
	default:
		return Descriptor{}, fmt.Errorf("pricing: unsupported discount %T", d)
	}
	return out, nil
}

// Discount converts a descriptor back into its variant. Unknown tags yield an error.
func (d Descriptor) Discount() (Discount, error) {
	switch d.Type {
	case KindPercentage:
		rate, err := decimal.NewFromString(d.Value)
		if err != nil {
			rate = decimal.Zero
		}
		return Percentage{Rate: rate}, nil
	case KindFixedAmount:
		return FixedAmount{Amount: ParseAmount(d.Value)}, nil
	case KindFreeShipping:
		return FreeShipping{}, nil
	case KindPrepaidCredit:
		return PrepaidCredit{Balance: ParseAmount(d.Value), LedgerKey: d.LedgerKey}, nil
	default:
		return nil, fmt.Errorf("pricing: unknown discount type %q", d.Type)
	}
}
