package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-partyshop/internal/checkout"
	"github.com/noah-isme/backend-partyshop/internal/delivery"
	"github.com/noah-isme/backend-partyshop/internal/grouporder"
)

// Orders persists placed orders and their share tokens.
type Orders struct {
	DB Pool
}

// PlaceOrder implements checkout.OrderStore. The order row and its items are
// written in one transaction.
func (r Orders) PlaceOrder(ctx context.Context, o checkout.Order) (checkout.Order, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return checkout.Order{}, err
	}
	oid, err := uuidValue(o.ID)
	if err != nil {
		return checkout.Order{}, fmt.Errorf("order id: %w", err)
	}
	deliveryJSON, err := json.Marshal(o.Delivery)
	if err != nil {
		return checkout.Order{}, fmt.Errorf("encode delivery: %w", err)
	}
	s := o.Summary
	err = inTx(ctx, r.DB, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO orders
(id, tenant_id, number, session_id, customer_name, customer_email, customer_phone,
 subtotal, discount, discounted_subtotal, delivery_fee, tax, tip, total,
 voucher_code, delivery, group_token, placed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
			oid, tid, o.Number, o.SessionID, o.CustomerName, o.CustomerEmail, o.CustomerPhone,
			int64(s.Subtotal), int64(s.Discount), int64(s.DiscountedSubtotal), int64(s.DeliveryFee),
			int64(s.Tax), int64(s.Tip), int64(s.Total),
			nullable(o.VoucherCode), deliveryJSON, nullable(o.GroupToken), o.PlacedAt)
		if err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(`INSERT INTO order_items (order_id, position, product_id, title, variant, unit_price, quantity)
VALUES ($1, $2, $3, $4, $5, $6, $7)`, oid, i, it.ID, it.Title, it.Variant, int64(it.Price), it.Quantity)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return checkout.Order{}, err
	}
	return o, nil
}

// ShareOrder implements grouporder.Store. An order keeps the first token it is given.
func (r Orders) ShareOrder(ctx context.Context, orderID, token string) (string, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return "", err
	}
	oid, err := uuidValue(orderID)
	if err != nil {
		return "", grouporder.ErrNotFound
	}
	var out string
	err = r.DB.QueryRow(ctx, `UPDATE orders SET share_token = COALESCE(share_token, $3)
WHERE tenant_id = $1 AND id = $2 RETURNING share_token`, tid, oid, token).Scan(&out)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", grouporder.ErrNotFound
	}
	return out, err
}

// GetByToken implements grouporder.Store.
func (r Orders) GetByToken(ctx context.Context, token string) (grouporder.Info, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil {
		return grouporder.Info{}, err
	}
	var (
		info    = grouporder.Info{ShareToken: token}
		rawInfo []byte
		orderID pgtype.UUID
	)
	err = r.DB.QueryRow(ctx, `SELECT id, number, customer_name, delivery FROM orders
WHERE tenant_id = $1 AND share_token = $2`, tid, token).Scan(&orderID, &info.OrderNumber, &info.CustomerName, &rawInfo)
	if errors.Is(err, pgx.ErrNoRows) {
		return grouporder.Info{}, grouporder.ErrNotFound
	}
	if err != nil {
		return grouporder.Info{}, err
	}
	var d delivery.Info
	if err := json.Unmarshal(rawInfo, &d); err != nil {
		return grouporder.Info{}, fmt.Errorf("decode delivery: %w", err)
	}
	info.OrderID = uuidString(orderID)
	info.DeliveryDate = d.Date
	info.DeliveryTime = d.TimeSlot
	info.DeliveryAddress = d.Address
	return info, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
