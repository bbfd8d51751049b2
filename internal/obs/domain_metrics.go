package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// VoucherValidationsTotal counts voucher validation outcomes.
	VoucherValidationsTotal *prometheus.CounterVec
	// VoucherSettlementsTotal counts settlement attempts by outcome.
	VoucherSettlementsTotal *prometheus.CounterVec
	// CheckoutQuotesTotal counts computed price quotes.
	CheckoutQuotesTotal prometheus.Counter
	// OrdersPlacedTotal counts finalised orders split by delivery source.
	OrdersPlacedTotal *prometheus.CounterVec
	// GroupOrderJoinsTotal counts group order join attempts.
	GroupOrderJoinsTotal *prometheus.CounterVec
	// OrderTotalCents records order grand totals in cents.
	OrderTotalCents prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		VoucherValidationsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voucher_validations_total",
			Help:      "Voucher validation outcomes.",
		}, []string{"result"}))
		VoucherSettlementsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voucher_settlements_total",
			Help:      "Voucher settlement outcomes.",
		}, []string{"result"}))
		CheckoutQuotesTotal = registerOrReuse(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_quotes_total",
			Help:      "Price quotes computed.",
		}))
		OrdersPlacedTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Placed orders by delivery source.",
		}, []string{"source"}))
		GroupOrderJoinsTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "group_order_joins_total",
			Help:      "Group order join attempts by outcome.",
		}, []string{"result"}))
		OrderTotalCents = registerOrReuse(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_total_cents",
			Help:      "Order grand totals in cents.",
			Buckets:   []float64{2500, 5000, 10000, 20000, 40000, 80000, 160000},
		}))
	})
}

// ObserveVoucherValidation increments the validation counter when registered.
func ObserveVoucherValidation(result string) {
	if VoucherValidationsTotal != nil {
		VoucherValidationsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveVoucherSettlement increments the settlement counter when registered.
func ObserveVoucherSettlement(result string) {
	if VoucherSettlementsTotal != nil {
		VoucherSettlementsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveQuote increments the quote counter when registered.
func ObserveQuote() {
	if CheckoutQuotesTotal != nil {
		CheckoutQuotesTotal.Inc()
	}
}

// ObserveOrderPlaced records a placed order and its total.
func ObserveOrderPlaced(source string, totalCents int64) {
	if OrdersPlacedTotal != nil {
		OrdersPlacedTotal.WithLabelValues(source).Inc()
	}
	if OrderTotalCents != nil {
		OrderTotalCents.Observe(float64(totalCents))
	}
}

// ObserveGroupJoin increments the group join counter when registered.
func ObserveGroupJoin(result string) {
	if GroupOrderJoinsTotal != nil {
		GroupOrderJoinsTotal.WithLabelValues(result).Inc()
	}
}
