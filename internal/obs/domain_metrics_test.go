package obs_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-partyshop/internal/obs"
)

func TestDomainMetricsHelpers(t *testing.T) {
	registry := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("partyshop", registry)

	obs.ObserveVoucherValidation("valid")
	obs.ObserveVoucherValidation("valid")
	obs.ObserveVoucherValidation("expired")
	obs.ObserveVoucherSettlement("recorded")
	obs.ObserveQuote()
	obs.ObserveOrderPlaced("group_order", 7911)
	obs.ObserveGroupJoin("joined")

	require.Equal(t, float64(2), testutil.ToFloat64(obs.VoucherValidationsTotal.WithLabelValues("valid")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.VoucherValidationsTotal.WithLabelValues("expired")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.VoucherSettlementsTotal.WithLabelValues("recorded")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.CheckoutQuotesTotal))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.OrdersPlacedTotal.WithLabelValues("group_order")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.GroupOrderJoinsTotal.WithLabelValues("joined")))
	require.Equal(t, 1, testutil.CollectAndCount(obs.OrderTotalCents))
}
