package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-partyshop/internal/pricing"
	"github.com/noah-isme/backend-partyshop/internal/voucher"
)

const voucherColumns = `id, code, name, kind, discount_value::text, prepaid_amount, minimum_spend,
max_uses, current_uses, expires_at, commission_rate::text, affiliate_id, active`

// Vouchers is the tenant-scoped voucher and redemption ledger store.
type Vouchers struct {
	DB Pool
}

// GetActiveByCode implements voucher.Store.
func (r Vouchers) GetActiveByCode(ctx context.Context, code string) (voucher.Voucher, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return voucher.Voucher{}, err
	}
	row := r.DB.QueryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers
WHERE tenant_id = $1 AND upper(code) = upper($2) AND active`, tid, strings.TrimSpace(code))
	v, err := scanVoucher(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return voucher.Voucher{}, voucher.ErrNotFound
	}
	return v, err
}

// PrepaidSpent implements voucher.Store.
func (r Vouchers) PrepaidSpent(ctx context.Context, voucherID, email string) (pricing.Money, bool, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return 0, false, err
	}
	vid, err := uuidValue(voucherID)
	if err != nil {
		return 0, false, fmt.Errorf("voucher id: %w", err)
	}
	var (
		spent int64
		count int64
	)
	err = r.DB.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM voucher_redemptions
WHERE tenant_id = $1 AND voucher_id = $2 AND customer_email = $3`, tid, vid, email).Scan(&spent, &count)
	if err != nil {
		return 0, false, err
	}
	return pricing.Money(spent), count > 0, nil
}

// RecordRedemption implements voucher.Store. The (voucher, order) pair is
// unique so a replayed settlement inserts nothing and leaves the usage count alone.
// When the usage cap is already reached the ledger row is rolled back and
// voucher.ErrUsageLimitReached is returned.
func (r Vouchers) RecordRedemption(ctx context.Context, red voucher.Redemption) (bool, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return false, err
	}
	vid, err := uuidValue(red.VoucherID)
	if err != nil {
		return false, fmt.Errorf("voucher id: %w", err)
	}
	oid, err := uuidValue(red.OrderID)
	if err != nil {
		return false, fmt.Errorf("order id: %w", err)
	}
	inserted := false
	err = inTx(ctx, r.DB, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `INSERT INTO voucher_redemptions
(tenant_id, voucher_id, order_id, customer_email, amount, affiliate_id, commission)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (voucher_id, order_id) DO NOTHING`,
			tid, vid, oid, red.CustomerEmail, int64(red.Amount), red.AffiliateID, int64(red.Commission))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		tag, err = tx.Exec(ctx, `UPDATE vouchers SET current_uses = current_uses + 1, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND (max_uses IS NULL OR current_uses < max_uses)`, tid, vid)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return voucher.ErrUsageLimitReached
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// Create implements voucher.AdminStore.
func (r Vouchers) Create(ctx context.Context, v voucher.Voucher) (voucher.Voucher, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return voucher.Voucher{}, err
	}
	row := r.DB.QueryRow(ctx, `INSERT INTO vouchers
(tenant_id, code, name, kind, discount_value, prepaid_amount, minimum_spend, max_uses, expires_at, commission_rate, affiliate_id, active)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10::numeric, $11, $12)
RETURNING `+voucherColumns, append([]any{tid}, voucherArgs(v)...)...)
	out, err := scanVoucher(row)
	if isUniqueViolation(err) {
		return voucher.Voucher{}, voucher.ErrDuplicateCode
	}
	return out, err
}

// Update implements voucher.AdminStore. The usage counter is left untouched.
func (r Vouchers) Update(ctx context.Context, code string, v voucher.Voucher) (voucher.Voucher, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return voucher.Voucher{}, err
	}
	args := append([]any{tid, strings.TrimSpace(code)}, voucherArgs(v)...)
	row := r.DB.QueryRow(ctx, `UPDATE vouchers SET
code = $3, name = $4, kind = $5, discount_value = $6::numeric, prepaid_amount = $7, minimum_spend = $8,
max_uses = $9, expires_at = $10, commission_rate = $11::numeric, affiliate_id = $12, active = $13, updated_at = NOW()
WHERE tenant_id = $1 AND upper(code) = upper($2)
RETURNING `+voucherColumns, args...)
	out, err := scanVoucher(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return voucher.Voucher{}, voucher.ErrNotFound
	case isUniqueViolation(err):
		return voucher.Voucher{}, voucher.ErrDuplicateCode
	}
	return out, err
}

// AffiliateCommissions implements voucher.AdminStore.
func (r Vouchers) AffiliateCommissions(ctx context.Context, affiliateID string) (voucher.CommissionSummary, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return voucher.CommissionSummary{}, err
	}
	var discounted, commission int64
	out := voucher.CommissionSummary{AffiliateID: affiliateID}
	err = r.DB.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(amount), 0), COALESCE(SUM(commission), 0)
FROM voucher_redemptions WHERE tenant_id = $1 AND affiliate_id = $2`, tid, affiliateID).
		Scan(&out.Redemptions, &discounted, &commission)
	if err != nil {
		return voucher.CommissionSummary{}, err
	}
	out.Discounted = pricing.Money(discounted)
	out.Commission = pricing.Money(commission)
	return out, nil
}

func voucherArgs(v voucher.Voucher) []any {
	return []any{
		strings.TrimSpace(v.Code),
		v.Name,
		string(v.Kind),
		v.DiscountValue.String(),
		int64(v.PrepaidAmount),
		int64(v.MinimumSpend),
		v.MaxUses,
		v.ExpiresAt,
		v.CommissionRate.String(),
		v.AffiliateID,
		v.Active,
	}
}

func scanVoucher(row pgx.Row) (voucher.Voucher, error) {
	var (
		id         pgtype.UUID
		kind       string
		value      string
		prepaid    int64
		minimum    int64
		commission string
		expires    *time.Time
		v          voucher.Voucher
	)
	err := row.Scan(&id, &v.Code, &v.Name, &kind, &value, &prepaid, &minimum,
		&v.MaxUses, &v.CurrentUses, &expires, &commission, &v.AffiliateID, &v.Active)
	if err != nil {
		return voucher.Voucher{}, err
	}
	v.ID = uuidString(id)
	v.Kind = voucher.Kind(kind)
	v.DiscountValue = decimalOrZero(value)
	v.PrepaidAmount = pricing.Money(prepaid)
	v.MinimumSpend = pricing.Money(minimum)
	v.CommissionRate = decimalOrZero(commission)
	v.ExpiresAt = expires
	return v, nil
}

func decimalOrZero(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d
}
