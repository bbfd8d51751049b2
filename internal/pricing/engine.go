package pricing

// Item describes a cart line item used for pricing calculation.
type Item struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Price    Money  `json:"price"`
	Quantity int    `json:"quantity"`
	Variant  string `json:"variant,omitempty"`
}

// Summary aggregates computed pricing components.
type Summary struct {
	Subtotal           Money `json:"subtotal"`
	Discount           Money `json:"discount"`
	DiscountedSubtotal Money `json:"discounted_subtotal"`
	DeliveryFee        Money `json:"delivery_fee"`
	Tax                Money `json:"tax"`
	Tip                Money `json:"tip"`
	Total              Money `json:"total"`
}

// Policy holds the store's delivery and tax rules.
type Policy struct {
	// PercentThreshold is the subtotal at which the percentage delivery fee replaces the flat fee.
	PercentThreshold Money
	FlatFee          Money
	DeliveryBps      int
	TaxBps           int
	// TaxAfterDiscount computes tax on the discounted subtotal instead of the gross one.
	TaxAfterDiscount bool
}

// DefaultPolicy is the storefront's standing delivery and tax policy.
var DefaultPolicy = Policy{
	PercentThreshold: 20_000,
	FlatFee:          2_000,
	DeliveryBps:      1_000,
	TaxBps:           825,
}

// Input carries everything Quote needs.
type Input struct {
	Items    []Item
	Discount Discount
	Tip      Money
	// WaiveDeliveryFee is set for group-order joiners riding on the host's delivery.
	WaiveDeliveryFee bool
}

// Compute calculates totals using DefaultPolicy.
func Compute(items []Item, discount Discount, tip Money) Summary {
	return DefaultPolicy.Compute(items, discount, tip)
}

// Compute calculates cart totals given the provided inputs.
func (p Policy) Compute(items []Item, discount Discount, tip Money) Summary {
	return p.Quote(Input{Items: items, Discount: discount, Tip: tip})
}

// Quote calculates cart totals.
func (p Policy) Quote(in Input) Summary {
	subtotal := Subtotal(in.Items)
	discount := DiscountAmount(in.Discount, subtotal)
	discounted := subtotal - discount

	fee := p.DeliveryFee(subtotal)
	if in.WaiveDeliveryFee || waivesDelivery(in.Discount) {
		fee = 0
	}
	taxable := subtotal
	if p.TaxAfterDiscount {
		taxable = discounted
	}
	tax := applyBps(taxable, p.TaxBps)
	tip := in.Tip
	if tip < 0 {
		tip = 0
	}
	return Summary{
		Subtotal:           subtotal,
		Discount:           discount,
		DiscountedSubtotal: discounted,
		DeliveryFee:        fee,
		Tax:                tax,
		Tip:                tip,
		Total:              discounted + fee + tax + tip,
	}
}

// DeliveryFee returns the fee for a gross subtotal. At or above PercentThreshold the
// fee is a percentage of the subtotal, below it the flat fee applies.
func (p Policy) DeliveryFee(subtotal Money) Money {
	if subtotal >= p.PercentThreshold {
		return applyBps(subtotal, p.DeliveryBps)
	}
	return p.FlatFee
}

// Subtotal sums price × quantity, ignoring non-positive quantities and prices.
func Subtotal(items []Item) Money {
	var subtotal Money
	for _, it := range items {
		if it.Quantity <= 0 || it.Price <= 0 {
			continue
		}
		subtotal += Money(it.Quantity) * it.Price
	}
	return subtotal
}
