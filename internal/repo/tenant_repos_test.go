package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-partyshop/internal/catalog"
	"github.com/noah-isme/backend-partyshop/internal/checkout"
	"github.com/noah-isme/backend-partyshop/internal/events"
	"github.com/noah-isme/backend-partyshop/internal/tenant"
	"github.com/noah-isme/backend-partyshop/internal/voucher"
)

func TestReposRequireTenant(t *testing.T) {
	ctx := context.Background()

	_, err := Vouchers{}.GetActiveByCode(ctx, "PARTY10")
	require.ErrorIs(t, err, ErrTenantMissing)
	_, _, err = Vouchers{}.PrepaidSpent(ctx, "v", "e")
	require.ErrorIs(t, err, ErrTenantMissing)
	_, err = Vouchers{}.RecordRedemption(ctx, voucher.Redemption{})
	require.ErrorIs(t, err, ErrTenantMissing)
	_, err = Vouchers{}.AffiliateCommissions(ctx, "aff")
	require.ErrorIs(t, err, ErrTenantMissing)

	_, err = Orders{}.PlaceOrder(ctx, checkout.Order{})
	require.ErrorIs(t, err, ErrTenantMissing)
	_, err = Orders{}.GetByToken(ctx, "tok")
	require.ErrorIs(t, err, ErrTenantMissing)

	_, err = Products{}.ListProducts(ctx, catalog.Filter{})
	require.ErrorIs(t, err, ErrTenantMissing)
}

func TestReposRejectMalformedTenant(t *testing.T) {
	ctx := tenant.With(context.Background(), "acme")
	_, err := Vouchers{}.GetActiveByCode(ctx, "PARTY10")
	require.ErrorIs(t, err, ErrTenantInvalid)
	_, err = Events{}.InsertDomainEvent(ctx, events.Event{Topic: events.TopicOrderPlaced})
	require.ErrorIs(t, err, ErrTenantInvalid)
}

func TestPgx5URL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@db:5432/shop?sslmode=disable", pgx5URL("postgres://u:p@db:5432/shop?sslmode=disable"))
	require.Equal(t, "pgx5://db/shop", pgx5URL("postgresql://db/shop"))
	require.Equal(t, "pgx5://db/shop", pgx5URL("pgx5://db/shop"))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(errors.New("boom")))
}
