package grouporder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/backend-partyshop/internal/cache"
	"github.com/noah-isme/backend-partyshop/internal/delivery"
	"github.com/noah-isme/backend-partyshop/internal/obs"
	"github.com/noah-isme/backend-partyshop/internal/session"
)

var (
	// ErrNotFound is returned for unknown share tokens or orders.
	ErrNotFound = errors.New("group order not found")
	// ErrExpired is returned when joining a group order whose slot already started.
	ErrExpired = errors.New("group order delivery slot has passed")
)

// Info is the public view of a shareable order.
type Info struct {
	ShareToken      string           `json:"share_token"`
	OrderID         string           `json:"order_id"`
	OrderNumber     string           `json:"order_number"`
	CustomerName    string           `json:"customer_name"`
	DeliveryDate    string           `json:"delivery_date"`
	DeliveryTime    string           `json:"delivery_time"`
	DeliveryAddress delivery.Address `json:"delivery_address"`
}

// Delivery converts the host's slot into a joiner's group-order delivery record.
func (i Info) Delivery() delivery.Info {
	return delivery.Info{
		Date:     i.DeliveryDate,
		TimeSlot: i.DeliveryTime,
		Address:  i.DeliveryAddress,
		Priority: delivery.PriorityGroupOrder,
	}
}

// Store persists share tokens on orders.
type Store interface {
	// ShareOrder sets the order's token unless it already has one and returns
	// the token in effect. It returns ErrNotFound for unknown orders.
	ShareOrder(ctx context.Context, orderID, token string) (string, error)
	// GetByToken returns ErrNotFound for unknown tokens.
	GetByToken(ctx context.Context, token string) (Info, error)
}

// Service shares orders and manages joins.
type Service struct {
	Store      Store
	Cache      *cache.JSON
	Reconciler *delivery.Reconciler
	Logger     zerolog.Logger

	group singleflight.Group
}

// NewToken returns an opaque URL-safe share token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Share marks orderID shareable and returns its token. Repeated calls return the same token.
func (s *Service) Share(ctx context.Context, orderID string) (string, error) {
	if s == nil || s.Store == nil {
		return "", errors.New("group order service not configured")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return "", ErrNotFound
	}
	token, err := s.Store.ShareOrder(ctx, orderID, NewToken())
	if err != nil {
		return "", err
	}
	s.invalidate(ctx, token)
	return token, nil
}

// Lookup resolves a share token through the cache. Concurrent misses for the
// same token share one store read.
func (s *Service) Lookup(ctx context.Context, token string) (Info, error) {
	if s == nil || s.Store == nil {
		return Info{}, errors.New("group order service not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Info{}, ErrNotFound
	}
	key := cacheKey(ctx, token)
	if info, ok := s.cached(ctx, key); ok {
		return info, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		info, err := s.Store.GetByToken(ctx, token)
		if err != nil {
			return Info{}, err
		}
		s.fill(ctx, key, info)
		return info, nil
	})
	if err != nil {
		return Info{}, err
	}
	return v.(Info), nil
}

// Join attaches the session to the group order identified by token.
func (s *Service) Join(ctx context.Context, sess *session.Session, token string) (Info, error) {
	info, err := s.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.ObserveGroupJoin("not_found")
		}
		return Info{}, err
	}
	if s.reconciler().Expired(info.DeliveryDate, info.DeliveryTime) {
		obs.ObserveGroupJoin("expired")
		return Info{}, ErrExpired
	}
	writes := []struct {
		slot  session.Slot
		value any
	}{
		{session.SlotGroupOrderDelivery, info.Delivery()},
		{session.SlotGroupOrderOriginal, info},
		{session.SlotGroupOrderToken, info.ShareToken},
		{session.SlotAddToOrder, true},
		{session.SlotJoinDecision, session.JoinYes},
	}
	for _, w := range writes {
		if err := session.Save(ctx, sess, w.slot, w.value); err != nil {
			return Info{}, fmt.Errorf("join group order: %w", err)
		}
	}
	obs.ObserveGroupJoin("joined")
	s.Logger.Info().Str("session_id", sess.ID).Str("order_id", info.OrderID).Msg("group order joined")
	return info, nil
}

// OptOut detaches the session from any group order and records the refusal.
func (s *Service) OptOut(ctx context.Context, sess *session.Session) error {
	if err := sess.Clear(ctx, session.GroupSlots...); err != nil {
		return fmt.Errorf("clear group order: %w", err)
	}
	return sess.SetJoinDecision(ctx, session.JoinNo)
}

// Leave detaches the session from any group order and forgets the join
// decision, so the session can be offered a group order again.
func (s *Service) Leave(ctx context.Context, sess *session.Session) error {
	slots := append([]session.Slot{session.SlotJoinDecision}, session.GroupSlots...)
	if err := sess.Clear(ctx, slots...); err != nil {
		return fmt.Errorf("leave group order: %w", err)
	}
	return nil
}

// Current returns the group order the session joined, nil when none.
func Current(ctx context.Context, sess *session.Session) (*Info, error) {
	info, ok, err := session.Load[Info](ctx, sess, session.SlotGroupOrderOriginal)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

func (s *Service) reconciler() *delivery.Reconciler {
	if s.Reconciler != nil {
		return s.Reconciler
	}
	return &delivery.Reconciler{}
}

func cacheKey(ctx context.Context, token string) string {
	return cache.KeyGroupOrder(ctx, token)
}

func (s *Service) cached(ctx context.Context, key string) (Info, bool) {
	var info Info
	ok, err := s.Cache.Get(ctx, key, &info)
	if err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("group order cache read failed")
		return Info{}, false
	}
	return info, ok
}

func (s *Service) fill(ctx context.Context, key string, info Info) {
	if err := s.Cache.Set(ctx, key, info); err != nil {
		s.Logger.Warn().Err(err).Str("key", key).Msg("group order cache write failed")
	}
}

func (s *Service) invalidate(ctx context.Context, token string) {
	_ = s.Cache.Delete(ctx, cacheKey(ctx, token))
}
