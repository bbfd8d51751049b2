package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-partyshop/internal/delivery"
	"github.com/noah-isme/backend-partyshop/internal/events"
	"github.com/noah-isme/backend-partyshop/internal/obs"
	"github.com/noah-isme/backend-partyshop/internal/pricing"
	"github.com/noah-isme/backend-partyshop/internal/session"
	"github.com/noah-isme/backend-partyshop/internal/voucher"
)

var (
	// ErrEmptyCart is returned when placing an order with no items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrDeliveryRequired is returned when no delivery info can be resolved.
	ErrDeliveryRequired = errors.New("delivery info is required")
	// ErrSlotExpired is returned when the chosen delivery slot already started.
	ErrSlotExpired = errors.New("delivery slot has passed")
	// ErrDiscountInvalid wraps the voucher rejection reason on apply.
	ErrDiscountInvalid = errors.New("discount code is not valid")
)

// Order is a placed order as persisted.
type Order struct {
	ID            string          `json:"id"`
	Number        string          `json:"order_number"`
	SessionID     string          `json:"session_id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	Items         []pricing.Item  `json:"items"`
	Summary       pricing.Summary `json:"summary"`
	VoucherCode   string          `json:"voucher_code,omitempty"`
	Delivery      delivery.Info   `json:"delivery"`
	// GroupToken references the host order when this order joined a group order.
	GroupToken string    `json:"group_token,omitempty"`
	PlacedAt   time.Time `json:"placed_at"`
}

// OrderStore persists an order and its items atomically.
type OrderStore interface {
	PlaceOrder(ctx context.Context, o Order) (Order, error)
}

// VoucherValidator is satisfied by *voucher.Service.
type VoucherValidator interface {
	Validate(ctx context.Context, req voucher.Request) (voucher.Result, error)
}

// SettlementQueue defers voucher settlement to a background worker.
type SettlementQueue interface {
	EnqueueSettlement(ctx context.Context, s voucher.Settlement) error
}

// EventEmitter publishes domain events.
type EventEmitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Sharer marks orders shareable.
type Sharer interface {
	Share(ctx context.Context, orderID string) (string, error)
}

// Service orchestrates discount application, quoting and order placement.
type Service struct {
	Orders      OrderStore
	Vouchers    VoucherValidator
	Settlements SettlementQueue
	Events      EventEmitter
	Groups      Sharer
	Reconciler  *delivery.Reconciler
	Policy      *pricing.Policy
	Now         func() time.Time
	Logger      zerolog.Logger
}

// Quote is a priced session.
type Quote struct {
	Items          []pricing.Item      `json:"items"`
	Summary        pricing.Summary     `json:"summary"`
	Discount       *pricing.Descriptor `json:"discount,omitempty"`
	DeliveryWaived bool                `json:"delivery_waived"`
	// DiscountDropped holds the rejection reason when a stored discount stopped applying.
	DiscountDropped string `json:"discount_dropped,omitempty"`
}

// PlaceInput carries the customer details supplied at checkout.
type PlaceInput struct {
	CustomerName  string         `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string         `json:"customer_email" validate:"required,email"`
	CustomerPhone string         `json:"customer_phone" validate:"max=40"`
	Tip           pricing.Money  `json:"tip"`
	Delivery      *delivery.Info `json:"delivery"`
	Share         bool           `json:"share"`
}

// Placed is the result of a successful checkout.
type Placed struct {
	Order      Order  `json:"order"`
	ShareToken string `json:"share_token,omitempty"`
}

// ApplyDiscount validates code against the session cart and stores it when valid.
// A rejected code yields the voucher result together with ErrDiscountInvalid.
func (s *Service) ApplyDiscount(ctx context.Context, sess *session.Session, code, email string) (voucher.Result, error) {
	if s == nil || s.Vouchers == nil {
		return voucher.Result{}, errors.New("checkout service not configured")
	}
	items, err := sess.Items(ctx)
	if err != nil {
		return voucher.Result{}, err
	}
	res, err := s.Vouchers.Validate(ctx, voucher.Request{
		Code:          code,
		CartSubtotal:  pricing.Subtotal(items),
		CustomerEmail: email,
	})
	if err != nil {
		return voucher.Result{}, err
	}
	if !res.Valid {
		return res, fmt.Errorf("%w: %w", ErrDiscountInvalid, res.Reason)
	}
	desc, err := pricing.Describe(res.Voucher.Code, res.Discount)
	if err != nil {
		return voucher.Result{}, err
	}
	if err := sess.SetAppliedDiscount(ctx, desc); err != nil {
		return voucher.Result{}, err
	}
	return res, nil
}

// RemoveDiscount clears the applied discount.
func (s *Service) RemoveDiscount(ctx context.Context, sess *session.Session) error {
	return sess.Clear(ctx, session.SlotAppliedDiscount)
}

// Quote prices the session cart. The stored discount is revalidated against
// the current subtotal and dropped when it no longer applies.
func (s *Service) Quote(ctx context.Context, sess *session.Session, tip pricing.Money) (Quote, error) {
	q, _, err := s.quote(ctx, sess, tip, "")
	if err != nil {
		return Quote{}, err
	}
	obs.ObserveQuote()
	return q, nil
}

func (s *Service) quote(ctx context.Context, sess *session.Session, tip pricing.Money, email string) (Quote, pricing.Discount, error) {
	items, err := sess.Items(ctx)
	if err != nil {
		return Quote{}, nil, err
	}
	subtotal := pricing.Subtotal(items)
	q := Quote{Items: items}

	var discount pricing.Discount
	desc, err := sess.AppliedDiscount(ctx)
	if err != nil {
		return Quote{}, nil, err
	}
	if desc != nil {
		discount, q.DiscountDropped, err = s.revalidate(ctx, *desc, subtotal, email)
		if err != nil {
			return Quote{}, nil, err
		}
		if discount == nil {
			if err := sess.Clear(ctx, session.SlotAppliedDiscount); err != nil {
				return Quote{}, nil, err
			}
		} else if fresh, err := pricing.Describe(desc.Code, discount); err == nil {
			q.Discount = &fresh
		}
	}

	q.DeliveryWaived, err = joinedGroupOrder(ctx, sess)
	if err != nil {
		return Quote{}, nil, err
	}
	q.Summary = s.policy().Quote(pricing.Input{
		Items:            items,
		Discount:         discount,
		Tip:              tip,
		WaiveDeliveryFee: q.DeliveryWaived,
	})
	return q, discount, nil
}

func (s *Service) revalidate(ctx context.Context, desc pricing.Descriptor, subtotal pricing.Money, email string) (pricing.Discount, string, error) {
	if s.Vouchers == nil {
		d, err := desc.Discount()
		if err != nil {
			return nil, err.Error(), nil
		}
		return d, "", nil
	}
	if email == "" {
		email = desc.LedgerKey
	}
	res, err := s.Vouchers.Validate(ctx, voucher.Request{Code: desc.Code, CartSubtotal: subtotal, CustomerEmail: email})
	if err != nil {
		return nil, "", err
	}
	if !res.Valid {
		return nil, voucher.ReasonMessage(res), nil
	}
	return res.Discount, "", nil
}

func joinedGroupOrder(ctx context.Context, sess *session.Session) (bool, error) {
	add, err := sess.AddToOrder(ctx)
	if err != nil || !add {
		return false, err
	}
	token, err := sess.GroupOrderToken(ctx)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// Place finalises the session into an order.
func (s *Service) Place(ctx context.Context, sess *session.Session, in PlaceInput) (Placed, error) {
	if s == nil || s.Orders == nil {
		return Placed{}, errors.New("checkout service not configured")
	}
	email := voucher.NormalizeEmail(in.CustomerEmail)
	q, _, err := s.quote(ctx, sess, in.Tip, email)
	if err != nil {
		return Placed{}, err
	}
	if len(q.Items) == 0 || q.Summary.Subtotal <= 0 {
		return Placed{}, ErrEmptyCart
	}
	info, source, err := s.resolveDelivery(ctx, sess, in.Delivery)
	if err != nil {
		return Placed{}, err
	}
	if s.reconciler().Expired(info.Date, info.TimeSlot) {
		return Placed{}, ErrSlotExpired
	}

	now := s.now()
	order := Order{
		ID:            uuid.NewString(),
		Number:        orderNumber(now),
		SessionID:     sess.ID,
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: email,
		CustomerPhone: strings.TrimSpace(in.CustomerPhone),
		Items:         q.Items,
		Summary:       q.Summary,
		Delivery:      info,
		PlacedAt:      now,
	}
	if q.Discount != nil {
		order.VoucherCode = q.Discount.Code
	}
	if q.DeliveryWaived {
		if order.GroupToken, err = sess.GroupOrderToken(ctx); err != nil {
			return Placed{}, err
		}
	}
	order, err = s.Orders.PlaceOrder(ctx, order)
	if err != nil {
		return Placed{}, fmt.Errorf("persist order: %w", err)
	}
	log := s.Logger.With().Str("order_id", order.ID).Str("session_id", sess.ID).Logger()

	s.emit(ctx, log, order)
	s.enqueueSettlement(ctx, log, order)

	if err := sess.SetLastOrder(ctx, session.LastOrder{
		OrderID:     order.ID,
		OrderNumber: order.Number,
		Delivery:    stripPriority(order.Delivery),
		Total:       order.Summary.Total,
		PlacedAt:    order.PlacedAt,
	}); err != nil {
		log.Warn().Err(err).Msg("record last order")
	}
	if err := sess.Clear(ctx, session.SlotCart, session.SlotAppliedDiscount); err != nil {
		log.Warn().Err(err).Msg("clear cart after checkout")
	}

	out := Placed{Order: order}
	if in.Share && s.Groups != nil {
		token, err := s.Groups.Share(ctx, order.ID)
		if err != nil {
			log.Warn().Err(err).Msg("share order")
		} else {
			out.ShareToken = token
			if s.Events != nil {
				if _, err := s.Events.Emit(ctx, events.TopicOrderShared, order.ID, map[string]any{"order_id": order.ID, "share_token": token}); err != nil {
					log.Warn().Err(err).Msg("emit share event")
				}
			}
		}
	}
	obs.ObserveOrderPlaced(string(source), int64(order.Summary.Total))
	log.Info().Int64("total", int64(order.Summary.Total)).Str("source", string(source)).Msg("order placed")
	return out, nil
}

// resolveDelivery prefers explicit input, then the reconciled source, then
// the customer-entered slot.
func (s *Service) resolveDelivery(ctx context.Context, sess *session.Session, explicit *delivery.Info) (delivery.Info, delivery.Source, error) {
	active, err := s.reconciler().Active(ctx, sess)
	if err != nil {
		return delivery.Info{}, "", err
	}
	// A joined group order pins the host's slot.
	if active.Source == delivery.SourceGroupOrder && active.Info != nil {
		return *active.Info, active.Source, nil
	}
	if explicit != nil && strings.TrimSpace(explicit.Date) != "" && strings.TrimSpace(explicit.TimeSlot) != "" {
		info := *explicit
		info.Priority = ""
		return info, "input", nil
	}
	entered, err := sess.DeliveryInfo(ctx)
	if err != nil {
		return delivery.Info{}, "", err
	}
	if entered != nil && entered.Date != "" && entered.TimeSlot != "" {
		return *entered, "input", nil
	}
	if active.Source == delivery.SourceLastOrder && active.Info != nil {
		return *active.Info, active.Source, nil
	}
	return delivery.Info{}, "", ErrDeliveryRequired
}

func (s *Service) emit(ctx context.Context, log zerolog.Logger, o Order) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"order_id":     o.ID,
		"order_number": o.Number,
		"email":        o.CustomerEmail,
		"total":        o.Summary.Total,
		"delivery":     o.Delivery,
	}
	if o.VoucherCode != "" {
		payload["voucher_code"] = o.VoucherCode
	}
	if o.GroupToken != "" {
		payload["group_token"] = o.GroupToken
	}
	if _, err := s.Events.Emit(ctx, events.TopicOrderPlaced, o.ID, payload); err != nil {
		log.Warn().Err(err).Msg("emit order event")
	}
}

func (s *Service) enqueueSettlement(ctx context.Context, log zerolog.Logger, o Order) {
	if o.VoucherCode == "" || s.Settlements == nil {
		return
	}
	err := s.Settlements.EnqueueSettlement(ctx, voucher.Settlement{
		Code:               o.VoucherCode,
		OrderID:            o.ID,
		CustomerEmail:      o.CustomerEmail,
		DiscountAmount:     o.Summary.Discount,
		DiscountedSubtotal: o.Summary.DiscountedSubtotal,
	})
	if err != nil {
		log.Error().Err(err).Str("code", o.VoucherCode).Msg("enqueue voucher settlement")
	}
}

func stripPriority(info delivery.Info) delivery.Info {
	info.Priority = ""
	return info
}

func orderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "PS-" + now.UTC().Format("060102") + "-" + suffix
}

func (s *Service) policy() pricing.Policy {
	if s != nil && s.Policy != nil {
		return *s.Policy
	}
	return pricing.DefaultPolicy
}

func (s *Service) reconciler() *delivery.Reconciler {
	if s != nil && s.Reconciler != nil {
		return s.Reconciler
	}
	return &delivery.Reconciler{}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
