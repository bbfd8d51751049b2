package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// PriorityGroupOrder is the flag a joined group-order record carries.
const PriorityGroupOrder = "group_order"

// Address is the delivery destination.
type Address struct {
	Line1 string `json:"line1" validate:"required,max=200"`
	Line2 string `json:"line2,omitempty" validate:"max=200"`
	City  string `json:"city" validate:"required,max=100"`
	State string `json:"state" validate:"required,max=50"`
	Zip   string `json:"zip" validate:"required,max=20"`
}

// Empty reports whether no address line was captured.
func (a Address) Empty() bool {
	return strings.TrimSpace(a.Line1) == "" && strings.TrimSpace(a.City) == "" && strings.TrimSpace(a.Zip) == ""
}

// Info is a delivery slot and destination.
type Info struct {
	Date         string  `json:"date" validate:"required"`
	TimeSlot     string  `json:"time_slot" validate:"required"`
	Address      Address `json:"address"`
	Instructions string  `json:"instructions,omitempty" validate:"max=500"`
	// Priority is PriorityGroupOrder on records written by a group-order join.
	Priority string `json:"priority,omitempty"`
}

// Source names where the active delivery info came from.
type Source string

const (
	SourceGroupOrder Source = "group_order"
	SourceLastOrder  Source = "last_order"
	SourceNone       Source = "none"
)

// Active is the reconciled delivery info.
type Active struct {
	Source  Source   `json:"source"`
	Info    *Info    `json:"data,omitempty"`
	Address *Address `json:"address_info,omitempty"`
	Expired bool     `json:"expired"`
}

// Slots exposes the persisted delivery candidates. Both return nil when empty.
type Slots interface {
	GroupOrderDelivery(ctx context.Context) (*Info, error)
	LastOrderDelivery(ctx context.Context) (*Info, error)
}

// Provider yields a candidate. ok is false when it has nothing to offer.
type Provider func(ctx context.Context) (active Active, ok bool, err error)

// FirstOf returns a provider yielding the first candidate any of providers offers.
func FirstOf(providers ...Provider) Provider {
	return func(ctx context.Context) (Active, bool, error) {
		for _, p := range providers {
			if p == nil {
				continue
			}
			active, ok, err := p(ctx)
			if err != nil {
				return Active{}, false, err
			}
			if ok {
				return active, true, nil
			}
		}
		return Active{Source: SourceNone}, false, nil
	}
}

// Reconciler picks the active delivery info for a session.
type Reconciler struct {
	Location *time.Location
	Now      func() time.Time
	Logger   zerolog.Logger
}

// Active returns the group-order record when present, else the last order's
// slot, else SourceNone.
func (r *Reconciler) Active(ctx context.Context, slots Slots) (Active, error) {
	if slots == nil {
		return Active{}, errors.New("delivery: slots not provided")
	}
	active, ok, err := FirstOf(r.GroupOrder(slots), r.LastOrder(slots))(ctx)
	if err != nil {
		return Active{}, err
	}
	if !ok {
		return Active{Source: SourceNone}, nil
	}
	return active, nil
}

// GroupOrder provides the joined group order's delivery, if flagged.
func (r *Reconciler) GroupOrder(slots Slots) Provider {
	return func(ctx context.Context) (Active, bool, error) {
		info, err := slots.GroupOrderDelivery(ctx)
		if err != nil || info == nil || info.Priority != PriorityGroupOrder {
			return Active{}, false, err
		}
		out := *info
		loc := r.location()
		day, err := ParseDate(out.Date, loc)
		if err != nil {
			r.Logger.Warn().Str("date", out.Date).Msg("group order date unparseable, using today")
			day = r.now().In(loc)
		}
		out.Date = FormatDate(day, loc)
		return r.activeFrom(SourceGroupOrder, out), true, nil
	}
}

// LastOrder provides the last completed order's delivery when it carries both
// a date and a time slot.
func (r *Reconciler) LastOrder(slots Slots) Provider {
	return func(ctx context.Context) (Active, bool, error) {
		info, err := slots.LastOrderDelivery(ctx)
		if err != nil || info == nil {
			return Active{}, false, err
		}
		if strings.TrimSpace(info.Date) == "" || strings.TrimSpace(info.TimeSlot) == "" {
			return Active{}, false, nil
		}
		return r.activeFrom(SourceLastOrder, *info), true, nil
	}
}

// Expired reports whether the slot has already started.
func (r *Reconciler) Expired(date, slot string) bool {
	return IsExpired(date, slot, r.now(), r.location())
}

func (r *Reconciler) activeFrom(src Source, info Info) Active {
	out := Active{Source: src, Info: &info, Expired: r.Expired(info.Date, info.TimeSlot)}
	if !info.Address.Empty() {
		addr := info.Address
		out.Address = &addr
	}
	return out
}

func (r *Reconciler) location() *time.Location {
	if r != nil && r.Location != nil {
		return r.Location
	}
	return LoadLocation("")
}

func (r *Reconciler) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
