package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-partyshop/internal/events"
)

// Events is the domain event outbox table.
type Events struct {
	DB DBTX
}

// InsertDomainEvent implements events.EventStore. Events emitted outside a
// tenant context are stored with a NULL tenant.
func (r Events) InsertDomainEvent(ctx context.Context, ev events.Event) (events.Event, error) {
	tid, err := tenantUUIDFromContext(ctx)
	if err != nil && !errors.Is(err, ErrTenantMissing) {
		return events.Event{}, err
	}
	payload := []byte(ev.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	var id pgtype.UUID
	err = r.DB.QueryRow(ctx, `INSERT INTO domain_events (tenant_id, topic, aggregate_id, payload)
VALUES ($1, $2, $3, $4) RETURNING id, occurred_at`, tid, ev.Topic, ev.AggregateID, payload).Scan(&id, &ev.OccurredAt)
	if err != nil {
		return events.Event{}, err
	}
	ev.ID = uuidString(id)
	ev.TenantID = uuidString(tid)
	return ev, nil
}
