//go:build integration

package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/noah-isme/backend-partyshop/internal/catalog"
	"github.com/noah-isme/backend-partyshop/internal/checkout"
	"github.com/noah-isme/backend-partyshop/internal/delivery"
	"github.com/noah-isme/backend-partyshop/internal/events"
	"github.com/noah-isme/backend-partyshop/internal/grouporder"
	"github.com/noah-isme/backend-partyshop/internal/pricing"
	"github.com/noah-isme/backend-partyshop/internal/tenant"
	"github.com/noah-isme/backend-partyshop/internal/voucher"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("partyshop"),
		postgres.WithUsername("partyshop"),
		postgres.WithPassword("partyshop"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, Migrate(dsn))
	require.NoError(t, Migrate(dsn), "migrations are re-runnable")

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestVoucherLedger(t *testing.T) {
	pool := setupTestDB(t)
	ctx := tenant.With(context.Background(), uuid.NewString())
	store := Vouchers{DB: pool}

	affiliate := "aff-1"
	maxUses := int32(2)
	created, err := store.Create(ctx, voucher.Voucher{
		Code:           "PARTY15",
		Name:           "Summer party",
		Kind:           voucher.KindPercentage,
		DiscountValue:  decimal.NewFromInt(15),
		MinimumSpend:   4000,
		MaxUses:        &maxUses,
		CommissionRate: decimal.RequireFromString("12.5"),
		AffiliateID:    &affiliate,
		Active:         true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	_, err = store.Create(ctx, voucher.Voucher{Code: "party15", Kind: voucher.KindFreeShipping, Active: true})
	require.ErrorIs(t, err, voucher.ErrDuplicateCode)

	got, err := store.GetActiveByCode(ctx, "party15")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.True(t, decimal.NewFromInt(15).Equal(got.DiscountValue))
	assert.True(t, decimal.RequireFromString("12.5").Equal(got.CommissionRate))

	_, err = store.GetActiveByCode(tenant.With(context.Background(), uuid.NewString()), "PARTY15")
	require.ErrorIs(t, err, voucher.ErrNotFound, "other tenants cannot see it")

	orderID := uuid.NewString()
	red := voucher.Redemption{VoucherID: got.ID, OrderID: orderID, CustomerEmail: "sam@example.com", Amount: 900, AffiliateID: &affiliate, Commission: 675}
	inserted, err := store.RecordRedemption(ctx, red)
	require.NoError(t, err)
	require.True(t, inserted)
	inserted, err = store.RecordRedemption(ctx, red)
	require.NoError(t, err)
	require.False(t, inserted, "replayed settlement is a no-op")

	got, err = store.GetActiveByCode(ctx, "PARTY15")
	require.NoError(t, err)
	assert.Equal(t, int32(1), got.CurrentUses)

	spent, found, err := store.PrepaidSpent(ctx, got.ID, "sam@example.com")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, pricing.Money(900), spent)

	summary, err := store.AffiliateCommissions(ctx, affiliate)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.Redemptions)
	assert.Equal(t, pricing.Money(675), summary.Commission)

	_, err = store.RecordRedemption(ctx, voucher.Redemption{VoucherID: got.ID, OrderID: uuid.NewString(), CustomerEmail: "alex@example.com", Amount: 500})
	require.NoError(t, err)
	capped := uuid.NewString()
	_, err = store.RecordRedemption(ctx, voucher.Redemption{VoucherID: got.ID, OrderID: capped, CustomerEmail: "kim@example.com", Amount: 500})
	require.ErrorIs(t, err, voucher.ErrUsageLimitReached, "max_uses is 2")
	var ledgerRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM voucher_redemptions WHERE order_id = $1`, capped).Scan(&ledgerRows))
	assert.Zero(t, ledgerRows, "rejected redemption leaves no ledger row")

	got.Active = false
	_, err = store.Update(ctx, "PARTY15", got)
	require.NoError(t, err)
	_, err = store.GetActiveByCode(ctx, "PARTY15")
	require.ErrorIs(t, err, voucher.ErrNotFound)

	_, err = store.Update(ctx, "MISSING", got)
	require.ErrorIs(t, err, voucher.ErrNotFound)
}

func TestOrdersAndSharing(t *testing.T) {
	pool := setupTestDB(t)
	ctx := tenant.With(context.Background(), uuid.NewString())
	orders := Orders{DB: pool}

	info := delivery.Info{
		Date:     "2025-08-15",
		TimeSlot: "6:00 PM - 7:00 PM",
		Address:  delivery.Address{Line1: "12 Elm St", City: "Austin", State: "TX", Zip: "78701"},
	}
	order := checkout.Order{
		ID:            uuid.NewString(),
		Number:        "PS-250815-ABC123",
		SessionID:     "s1",
		CustomerName:  "Sam",
		CustomerEmail: "sam@example.com",
		Items:         []pricing.Item{{ID: "balloons", Title: "Balloons", Price: 2500, Quantity: 2}, {ID: "cups", Price: 500, Quantity: 1, Variant: "red"}},
		Summary:       pricing.Compute([]pricing.Item{{ID: "balloons", Price: 2500, Quantity: 2}, {ID: "cups", Price: 500, Quantity: 1}}, nil, 0),
		Delivery:      info,
		PlacedAt:      time.Now().UTC(),
	}
	_, err := orders.PlaceOrder(ctx, order)
	require.NoError(t, err)

	var items int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID).Scan(&items))
	assert.Equal(t, 2, items)

	token, err := orders.ShareOrder(ctx, order.ID, "tok-1")
	require.NoError(t, err)
	again, err := orders.ShareOrder(ctx, order.ID, "tok-2")
	require.NoError(t, err)
	assert.Equal(t, token, again)

	got, err := orders.GetByToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.OrderID)
	assert.Equal(t, info.TimeSlot, got.DeliveryTime)
	assert.Equal(t, info.Address, got.DeliveryAddress)

	_, err = orders.GetByToken(ctx, "nope")
	require.ErrorIs(t, err, grouporder.ErrNotFound)
	_, err = orders.ShareOrder(ctx, uuid.NewString(), "tok-3")
	require.ErrorIs(t, err, grouporder.ErrNotFound)
}

func TestProductsAndEvents(t *testing.T) {
	pool := setupTestDB(t)
	tenantID := uuid.NewString()
	ctx := tenant.With(context.Background(), tenantID)

	for _, p := range []catalog.Product{
		{Title: "Tito's Handmade Vodka 750ml", Category: "spirits", Price: 2499, InStock: true},
		{Title: "Balloon Arch Kit", Category: "decor", Price: 4500},
	} {
		created, err := Products{DB: pool}.Create(ctx, p)
		require.NoError(t, err)
		require.NotEmpty(t, created.ID)
	}

	all, err := Products{DB: pool}.ListProducts(ctx, catalog.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	inStock := true
	filtered, err := Products{DB: pool}.ListProducts(ctx, catalog.Filter{Query: "vodka", InStock: &inStock})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, pricing.Money(2499), filtered[0].Price)

	ev, err := Events{DB: pool}.InsertDomainEvent(ctx, events.Event{Topic: events.TopicOrderPlaced, AggregateID: "o1", Payload: []byte(`{"total":1}`)})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, tenantID, ev.TenantID)
	assert.False(t, ev.OccurredAt.IsZero())
}
