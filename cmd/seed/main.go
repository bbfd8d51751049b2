// Command seed loads a demo catalog and vouchers for one tenant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-partyshop/internal/app"
	"github.com/noah-isme/backend-partyshop/internal/catalog"
	"github.com/noah-isme/backend-partyshop/internal/config"
	"github.com/noah-isme/backend-partyshop/internal/obs"
	"github.com/noah-isme/backend-partyshop/internal/repo"
	"github.com/noah-isme/backend-partyshop/internal/tenant"
	"github.com/noah-isme/backend-partyshop/internal/voucher"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "seed").Logger()

	tenantID := flag.String("tenant", cfg.DefaultTenant, "tenant UUID to seed")
	withProducts := flag.Bool("products", true, "seed the demo catalog")
	flag.Parse()

	if err := run(cfg, logger, *tenantID, *withProducts); err != nil {
		logger.Fatal().Err(err).Str("tenant", *tenantID).Msg("seed failed")
	}
}

func run(cfg *config.Config, logger zerolog.Logger, tenantID string, withProducts bool) error {
	if _, err := uuid.Parse(tenantID); err != nil {
		return fmt.Errorf("a tenant UUID is required (-tenant or DEFAULT_TENANT): %w", err)
	}
	if err := repo.Migrate(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	pool, err := app.OpenPostgres(ctx, cfg, "partyshop-seed")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer pool.Close()

	ctx = tenant.With(ctx, tenantID)

	if withProducts {
		products := repo.Products{DB: pool}
		for _, p := range demoProducts() {
			if _, err := products.Create(ctx, p); err != nil {
				return fmt.Errorf("seed product %q: %w", p.Title, err)
			}
		}
		logger.Info().Int("count", len(demoProducts())).Msg("products seeded")
	}

	vouchers := repo.Vouchers{DB: pool}
	created := 0
	for _, v := range demoVouchers() {
		if _, err := vouchers.Create(ctx, v); err != nil {
			if errors.Is(err, voucher.ErrDuplicateCode) {
				logger.Info().Str("code", v.Code).Msg("voucher exists, skipping")
				continue
			}
			return fmt.Errorf("seed voucher %s: %w", v.Code, err)
		}
		created++
	}
	logger.Info().Int("count", created).Str("tenant", tenantID).Msg("seeding completed")
	return nil
}

func demoProducts() []catalog.Product {
	return []catalog.Product{
		{Title: "Tito's Handmade Vodka 750ml", Category: "spirits", Price: 2499, InStock: true},
		{Title: "Tito's Handmade Vodka 1.75L", Category: "spirits", Price: 4299, InStock: true},
		{Title: "Tito's Handmade Vodka 1.75L", Category: "spirits", Price: 3999, InStock: false},
		{Title: "Veuve Clicquot Brut 750ml", Category: "wine", Price: 6999, InStock: true},
		{Title: "Modelo Especial 12pk", Category: "beer", Price: 1899, InStock: true},
		{Title: "Topo Chico 12pk", Category: "mixers", Price: 1499, InStock: true},
		{Title: "Bagged Ice 10lb", Category: "party", Price: 499, InStock: true},
		{Title: "Red Party Cups 50ct", Category: "party", Price: 799, InStock: true},
		{Title: "Balloon Arch Kit", Category: "decor", Price: 4500, InStock: false},
	}
}

func demoVouchers() []voucher.Voucher {
	affiliate := "influencer-austin"
	maxUses := int32(500)
	return []voucher.Voucher{
		{Code: "PARTY15", Name: "15% off", Kind: voucher.KindPercentage, DiscountValue: decimal.NewFromInt(15), MinimumSpend: 5000, Active: true},
		{Code: "TAKE10", Name: "$10 off", Kind: voucher.KindFixedAmount, DiscountValue: decimal.NewFromInt(10), MinimumSpend: 4000, MaxUses: &maxUses, Active: true},
		{Code: "FREESHIP", Name: "Free delivery", Kind: voucher.KindFreeShipping, Active: true},
		{Code: "GIFT50", Name: "$50 gift card", Kind: voucher.KindPrepaidCredit, PrepaidAmount: 5000, Active: true},
		{Code: "AUSTIN20", Name: "Affiliate 20%", Kind: voucher.KindPercentage, DiscountValue: decimal.NewFromInt(20), CommissionRate: decimal.NewFromInt(10), AffiliateID: &affiliate, Active: true},
	}
}
