package voucher

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-partyshop/internal/pricing"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Prepaid_Credit ")
	require.NoError(t, err)
	require.Equal(t, KindPrepaidCredit, k)

	_, err = ParseKind("bogo")
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestCheckBoundaries(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	exact := now
	v := Voucher{ExpiresAt: &exact, MinimumSpend: 5000}

	require.NoError(t, v.Check(now, 5000), "expiry instant itself is still valid")
	require.ErrorIs(t, v.Check(now.Add(time.Nanosecond), 5000), ErrExpired)
	require.ErrorIs(t, v.Check(now, 4999), ErrMinimumSpendUnmet)

	zero := int32(0)
	capped := Voucher{MaxUses: &zero}
	require.ErrorIs(t, capped.Check(now, 0), ErrUsageLimitReached)
}

func TestDiscountVariants(t *testing.T) {
	pct, err := Voucher{Kind: KindPercentage, DiscountValue: decimal.RequireFromString("12.5")}.Discount(0, "")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(1250), pricing.DiscountAmount(pct, 10_000))

	fixed, err := Voucher{Kind: KindFixedAmount, DiscountValue: decimal.RequireFromString("7.25")}.Discount(0, "")
	require.NoError(t, err)
	require.Equal(t, pricing.Money(725), pricing.DiscountAmount(fixed, 10_000))

	prepaid, err := Voucher{Kind: KindPrepaidCredit}.Discount(-50, "a@b.c")
	require.NoError(t, err)
	require.Zero(t, pricing.DiscountAmount(prepaid, 10_000))

	_, err = Voucher{Kind: "mystery"}.Discount(0, "")
	require.ErrorIs(t, err, ErrInvalidKind)
}

func TestCommission(t *testing.T) {
	affiliate := "aff"
	v := Voucher{CommissionRate: decimal.RequireFromString("12.5"), AffiliateID: &affiliate}
	require.Equal(t, pricing.Money(1250), Commission(v, 10_000))
	require.Equal(t, pricing.Money(13), Commission(v, 101), "rounds half away from zero")

	v.AffiliateID = nil
	require.Zero(t, Commission(v, 10_000))
}
