package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-partyshop/internal/delivery"
	"github.com/noah-isme/backend-partyshop/internal/pricing"
)

var (
	// ErrItemNotFound is returned when a cart line does not exist.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidItem is returned for items without an id or with a non-positive quantity.
	ErrInvalidItem = errors.New("invalid cart item")
)

// JoinDecision records the customer's answer to a group-order invitation.
type JoinDecision string

const (
	JoinYes JoinDecision = "yes"
	JoinNo  JoinDecision = "no"
)

// LastOrder is the summary kept after checkout so the next order can reuse its slot.
type LastOrder struct {
	OrderID     string        `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	Delivery    delivery.Info `json:"delivery"`
	Total       pricing.Money `json:"total"`
	PlacedAt    time.Time     `json:"placed_at"`
}

// Session is a handle on one customer's checkout state.
type Session struct {
	ID    string
	store Store
}

// New returns a handle without touching the store.
func New(store Store, id string) *Session {
	return &Session{ID: id, store: store}
}

// Start creates a fresh session with a random id.
func Start(ctx context.Context, store Store) (*Session, error) {
	id := uuid.NewString()
	if err := store.Create(ctx, id); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return New(store, id), nil
}

// Open returns a handle for an existing session or ErrNotFound.
func Open(ctx context.Context, store Store, id string) (*Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	ok, err := store.Exists(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !ok {
		return nil, ErrNotFound
	}
	return New(store, id), nil
}

// Load decodes slot into a T. ok is false when the slot is unset.
func Load[T any](ctx context.Context, s *Session, slot Slot) (value T, ok bool, err error) {
	raw, err := s.store.Get(ctx, s.ID, slot)
	if errors.Is(err, ErrEmpty) {
		return value, false, nil
	}
	if err != nil {
		return value, false, fmt.Errorf("read %s: %w", slot, err)
	}
	if err := json.Unmarshal(raw, &value); err != nil {
		return value, false, fmt.Errorf("decode %s: %w", slot, err)
	}
	return value, true, nil
}

// Save encodes v into slot.
func Save(ctx context.Context, s *Session, slot Slot, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", slot, err)
	}
	if err := s.store.Set(ctx, s.ID, slot, raw); err != nil {
		return fmt.Errorf("write %s: %w", slot, err)
	}
	return nil
}

// Clear empties the given slots.
func (s *Session) Clear(ctx context.Context, slots ...Slot) error {
	return s.store.Clear(ctx, s.ID, slots...)
}

func loadPtr[T any](ctx context.Context, s *Session, slot Slot) (*T, error) {
	v, ok, err := Load[T](ctx, s, slot)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// DeliveryInfo returns the customer-entered delivery info, nil when unset.
func (s *Session) DeliveryInfo(ctx context.Context) (*delivery.Info, error) {
	return loadPtr[delivery.Info](ctx, s, SlotDeliveryInfo)
}

// SetDeliveryInfo stores customer-entered delivery info.
func (s *Session) SetDeliveryInfo(ctx context.Context, info delivery.Info) error {
	return Save(ctx, s, SlotDeliveryInfo, info)
}

// LastOrder returns the previous completed order, nil when unset.
func (s *Session) LastOrder(ctx context.Context) (*LastOrder, error) {
	return loadPtr[LastOrder](ctx, s, SlotLastOrder)
}

// SetLastOrder records the order just placed.
func (s *Session) SetLastOrder(ctx context.Context, lo LastOrder) error {
	return Save(ctx, s, SlotLastOrder, lo)
}

// LastOrderDelivery implements delivery.Slots.
func (s *Session) LastOrderDelivery(ctx context.Context) (*delivery.Info, error) {
	lo, err := s.LastOrder(ctx)
	if err != nil || lo == nil {
		return nil, err
	}
	info := lo.Delivery
	return &info, nil
}

// GroupOrderDelivery implements delivery.Slots.
func (s *Session) GroupOrderDelivery(ctx context.Context) (*delivery.Info, error) {
	return loadPtr[delivery.Info](ctx, s, SlotGroupOrderDelivery)
}

// GroupOrderToken returns the joined share token, or "".
func (s *Session) GroupOrderToken(ctx context.Context) (string, error) {
	token, _, err := Load[string](ctx, s, SlotGroupOrderToken)
	return token, err
}

// AddToOrder reports whether the customer is adding to a group order.
func (s *Session) AddToOrder(ctx context.Context) (bool, error) {
	v, _, err := Load[bool](ctx, s, SlotAddToOrder)
	return v, err
}

// JoinDecision returns the recorded decision, or "" when none was made.
func (s *Session) JoinDecision(ctx context.Context) (JoinDecision, error) {
	v, _, err := Load[JoinDecision](ctx, s, SlotJoinDecision)
	return v, err
}

// SetJoinDecision records the decision.
func (s *Session) SetJoinDecision(ctx context.Context, d JoinDecision) error {
	if d != JoinYes && d != JoinNo {
		return fmt.Errorf("join decision %q: %w", d, ErrInvalidItem)
	}
	return Save(ctx, s, SlotJoinDecision, d)
}

// AppliedDiscount returns the stored discount descriptor, nil when none.
func (s *Session) AppliedDiscount(ctx context.Context) (*pricing.Descriptor, error) {
	return loadPtr[pricing.Descriptor](ctx, s, SlotAppliedDiscount)
}

// SetAppliedDiscount stores the descriptor.
func (s *Session) SetAppliedDiscount(ctx context.Context, d pricing.Descriptor) error {
	return Save(ctx, s, SlotAppliedDiscount, d)
}

// Items returns the cart lines in insertion order.
func (s *Session) Items(ctx context.Context) ([]pricing.Item, error) {
	items, _, err := Load[[]pricing.Item](ctx, s, SlotCart)
	return items, err
}

// AddItem appends a line or, when the same product and variant is already in
// the cart, increases its quantity.
func (s *Session) AddItem(ctx context.Context, item pricing.Item) ([]pricing.Item, error) {
	item.ID = strings.TrimSpace(item.ID)
	if item.ID == "" || item.Quantity <= 0 || item.Price < 0 {
		return nil, ErrInvalidItem
	}
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	merged := false
	for i := range items {
		if items[i].ID == item.ID && items[i].Variant == item.Variant {
			items[i].Quantity += item.Quantity
			items[i].Price = item.Price
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, item)
	}
	return items, Save(ctx, s, SlotCart, items)
}

// UpdateQuantity sets a line's quantity; zero or less removes it.
func (s *Session) UpdateQuantity(ctx context.Context, itemID string, qty int) ([]pricing.Item, error) {
	if qty <= 0 {
		return s.RemoveItem(ctx, itemID)
	}
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(items, itemID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	items[idx].Quantity = qty
	return items, Save(ctx, s, SlotCart, items)
}

// RemoveItem drops a line.
func (s *Session) RemoveItem(ctx context.Context, itemID string) ([]pricing.Item, error) {
	items, err := s.Items(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(items, itemID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	items = append(items[:idx], items[idx+1:]...)
	if len(items) == 0 {
		return []pricing.Item{}, s.Clear(ctx, SlotCart)
	}
	return items, Save(ctx, s, SlotCart, items)
}

// ClearCart empties the cart.
func (s *Session) ClearCart(ctx context.Context) error {
	return s.Clear(ctx, SlotCart)
}

// indexOf matches on the line key "id" or "id:variant".
func indexOf(items []pricing.Item, lineID string) int {
	for i, it := range items {
		if LineID(it) == lineID || (it.Variant == "" && it.ID == lineID) {
			return i
		}
	}
	return -1
}

// LineID is the addressable key of a cart line.
func LineID(it pricing.Item) string {
	if it.Variant == "" {
		return it.ID
	}
	return it.ID + ":" + it.Variant
}
