package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestComputeSmallOrderFlatFee(t *testing.T) {
	items := []Item{{ID: "a", Title: "Party Ice 10lb", Price: Dollars(49.99), Quantity: 1}}
	summary := Compute(items, nil, Dollars(5))

	require.Equal(t, Money(4999), summary.Subtotal)
	require.Equal(t, Money(2000), summary.DeliveryFee)
	require.Equal(t, Money(412), summary.Tax)
	require.Equal(t, Money(500), summary.Tip)
	require.Equal(t, Money(7911), summary.Total)
	require.Equal(t, "79.11", summary.Total.String())
}

func TestComputeFreeShippingLargeOrder(t *testing.T) {
	items := []Item{{ID: "keg", Price: Dollars(125), Quantity: 2}}
	summary := Compute(items, FreeShipping{}, 0)

	require.Equal(t, Money(25000), summary.Subtotal)
	require.Zero(t, summary.DeliveryFee)
	require.Equal(t, Money(2063), summary.Tax)
	require.Zero(t, summary.Discount)
	require.Equal(t, Money(27063), summary.Total)

	withTip := Compute(items, FreeShipping{}, Dollars(10))
	require.Equal(t, Money(28063), withTip.Total)
}

func TestDeliveryFeeThreshold(t *testing.T) {
	cases := []struct {
		name     string
		subtotal Money
		want     Money
	}{
		{name: "empty cart still pays flat fee", subtotal: 0, want: 2000},
		{name: "tiny order", subtotal: 100, want: 2000},
		{name: "just below threshold", subtotal: 19_999, want: 2000},
		{name: "boundary takes percentage branch", subtotal: 20_000, want: 2000},
		{name: "above threshold", subtotal: 35_050, want: 3505},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DefaultPolicy.DeliveryFee(tc.subtotal))
		})
	}
}

func TestFreeShippingAlwaysZeroesFee(t *testing.T) {
	for _, subtotal := range []Money{0, 1, 19_999, 20_000, 1_000_000} {
		items := []Item{{Price: subtotal, Quantity: 1}}
		require.Zero(t, Compute(items, FreeShipping{}, 0).DeliveryFee, "subtotal %d", subtotal)
	}
}

func TestTaxIgnoresDiscount(t *testing.T) {
	items := []Item{{Price: Dollars(80), Quantity: 1}}
	plain := Compute(items, nil, 0)
	pct := Compute(items, Percentage{Rate: decimal.NewFromInt(25)}, 0)
	fixed := Compute(items, FixedAmount{Amount: Dollars(30)}, 0)

	require.Equal(t, Money(660), plain.Tax)
	require.Equal(t, plain.Tax, pct.Tax)
	require.Equal(t, plain.Tax, fixed.Tax)
	require.Equal(t, Money(2000), pct.Discount)
	require.Equal(t, Money(6000), pct.DiscountedSubtotal)
	require.Equal(t, Money(6000+2000+660), pct.Total)
}

func TestTaxAfterDiscountPolicy(t *testing.T) {
	policy := DefaultPolicy
	policy.TaxAfterDiscount = true
	items := []Item{{Price: Dollars(100), Quantity: 1}}
	summary := policy.Compute(items, Percentage{Rate: decimal.NewFromInt(50)}, 0)
	require.Equal(t, Money(413), summary.Tax)
}

func TestFixedAmountNeverBelowZero(t *testing.T) {
	items := []Item{{Price: Dollars(12.5), Quantity: 2}}
	summary := Compute(items, FixedAmount{Amount: Dollars(40)}, 0)
	require.Equal(t, Money(2500), summary.Discount)
	require.Zero(t, summary.DiscountedSubtotal)
	require.Equal(t, summary.DeliveryFee+summary.Tax, summary.Total)
}

func TestPrepaidCreditCappedAtSubtotal(t *testing.T) {
	items := []Item{{Price: Dollars(30), Quantity: 1}}
	require.Equal(t, Money(3000), Compute(items, PrepaidCredit{Balance: Dollars(75)}, 0).Discount)
	require.Equal(t, Money(1000), Compute(items, PrepaidCredit{Balance: Dollars(10)}, 0).Discount)
}

func TestQuoteWaivesDeliveryForGroupJoiners(t *testing.T) {
	items := []Item{{Price: Dollars(20), Quantity: 1}}
	summary := DefaultPolicy.Quote(Input{Items: items, WaiveDeliveryFee: true})
	require.Zero(t, summary.DeliveryFee)
	require.Equal(t, Money(2000+165), summary.Total)
}

func TestComputeCoercesBadInput(t *testing.T) {
	items := []Item{
		{Price: Dollars(10), Quantity: 0},
		{Price: Dollars(-4), Quantity: 3},
		{Price: ParseAmount("abc"), Quantity: 2},
		{Price: ParseAmount("$5.005"), Quantity: 1},
	}
	summary := Compute(items, nil, Dollars(-3))
	require.Equal(t, Money(501), summary.Subtotal)
	require.Zero(t, summary.Tip)
}

func TestDescriptorRoundTrip(t *testing.T) {
	variants := []Discount{
		Percentage{Rate: decimal.RequireFromString("12.5")},
		FixedAmount{Amount: Dollars(15)},
		FreeShipping{},
		PrepaidCredit{Balance: Dollars(42.1), LedgerKey: "sam@example.com"},
	}
	for _, d := range variants {
		desc, err := Describe("CODE", d)
		require.NoError(t, err)
		require.Equal(t, d.Kind(), desc.Type)
		back, err := desc.Discount()
		require.NoError(t, err)
		require.Equal(t, DiscountAmount(d, 10_000), DiscountAmount(back, 10_000))
	}

	_, err := Descriptor{Type: "bogus"}.Discount()
	require.Error(t, err)
}
