package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-partyshop/internal/tenant"
	"github.com/noah-isme/backend-partyshop/internal/voucher"
)

// TypeVoucherSettle is the asynq task type for voucher settlement.
const TypeVoucherSettle = "voucher:settle"

type settlePayload struct {
	TenantID string `json:"tenant_id,omitempty"`
	voucher.Settlement
}

// NewSettleTask encodes a settlement, carrying the tenant from ctx.
func NewSettleTask(ctx context.Context, s voucher.Settlement) (*asynq.Task, error) {
	if s.OrderID == "" {
		return nil, errors.New("jobs: settlement without order id")
	}
	tenantID, _ := tenant.From(ctx)
	raw, err := json.Marshal(settlePayload{TenantID: tenantID, Settlement: s})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeVoucherSettle, raw), nil
}

// Client enqueues background tasks.
type Client struct {
	C        *asynq.Client
	Queue    string
	MaxRetry int
}

// EnqueueSettlement schedules settlement once per order; the task id is the
// order id so duplicate enqueues collapse.
func (c Client) EnqueueSettlement(ctx context.Context, s voucher.Settlement) error {
	if c.C == nil {
		return errors.New("jobs: client not configured")
	}
	task, err := NewSettleTask(ctx, s)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID(settleTaskID(s.OrderID))}
	if c.Queue != "" {
		opts = append(opts, asynq.Queue(c.Queue))
	}
	if c.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(c.MaxRetry))
	}
	if _, err := c.C.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return nil
		}
		return fmt.Errorf("jobs: enqueue settlement: %w", err)
	}
	return nil
}

func settleTaskID(orderID string) string {
	return "settle:" + orderID
}

// Settler is satisfied by *voucher.Service.
type Settler interface {
	Settle(ctx context.Context, in voucher.Settlement) error
}

// SettleHandler processes voucher settlement tasks.
type SettleHandler struct {
	Settler Settler
	Logger  zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h SettleHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p settlePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode settlement: %v: %w", err, asynq.SkipRetry)
	}
	if p.TenantID != "" {
		ctx = tenant.With(ctx, p.TenantID)
	}
	if err := h.Settler.Settle(ctx, p.Settlement); err != nil {
		h.Logger.Error().Err(err).Str("order_id", p.OrderID).Str("code", p.Code).Msg("voucher settlement failed")
		return err
	}
	h.Logger.Debug().Str("order_id", p.OrderID).Str("code", p.Code).Msg("voucher settled")
	return nil
}

// NewMux routes task types to handlers.
func NewMux(settle SettleHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeVoucherSettle, settle)
	return mux
}
