package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestParseDateKeepsCalendarDay(t *testing.T) {
	for _, zone := range []string{"America/Los_Angeles", "America/Chicago", "Pacific/Honolulu", "UTC", "Asia/Tokyo", "Pacific/Kiritimati"} {
		t.Run(zone, func(t *testing.T) {
			loc := mustLoad(t, zone)
			got, err := ParseDate("2025-08-15", loc)
			require.NoError(t, err)
			local := got.In(loc)
			require.Equal(t, 2025, local.Year())
			require.Equal(t, time.August, local.Month())
			require.Equal(t, 15, local.Day())
			require.Equal(t, 12, local.Hour())
			require.Equal(t, "2025-08-15", FormatDate(got, loc))
		})
	}
}

func TestParseDateWithTimeComponentUnmodified(t *testing.T) {
	got, err := ParseDate("2025-08-15T03:30:00Z", mustLoad(t, "America/Los_Angeles"))
	require.NoError(t, err)
	require.True(t, got.Equal(time.Date(2025, 8, 15, 3, 30, 0, 0, time.UTC)))

	loc := mustLoad(t, "America/Chicago")
	got, err = ParseDate("2025-08-15T09:15:00", loc)
	require.NoError(t, err)
	require.Equal(t, 9, got.In(loc).Hour())
}

func TestParseDateRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "tomorrow", "2025-13-45", "15/08/2025"} {
		_, err := ParseDate(raw, time.UTC)
		require.ErrorIs(t, err, ErrParse, raw)
	}
}

func TestParseSlot(t *testing.T) {
	start, end, err := ParseSlot("2:00 PM - 3:00 PM")
	require.NoError(t, err)
	require.Equal(t, Clock{Hour: 14}, start)
	require.Equal(t, Clock{Hour: 15}, end)

	start, _, err = ParseSlot("12:30 am – 1:00 am")
	require.NoError(t, err)
	require.Equal(t, Clock{Hour: 0, Minute: 30}, start)

	start, _, err = ParseSlot("12:00 PM - 1:00 PM")
	require.NoError(t, err)
	require.Equal(t, "12:00", start.String())

	for _, raw := range []string{"", "2 PM", "14:00 - 15:00", "2:00 PM to 3:00 PM", "13:00 PM - 2:00 PM"} {
		_, _, err := ParseSlot(raw)
		require.ErrorIs(t, err, ErrParse, raw)
	}
}

func TestIsExpired(t *testing.T) {
	loc := mustLoad(t, "America/Chicago")
	slotStart := time.Date(2025, 8, 15, 14, 0, 0, 0, loc)

	require.False(t, IsExpired("2025-08-15", "2:00 PM - 3:00 PM", slotStart.Add(-time.Minute), loc))
	require.False(t, IsExpired("2025-08-15", "2:00 PM - 3:00 PM", slotStart, loc))
	require.True(t, IsExpired("2025-08-15", "2:00 PM - 3:00 PM", slotStart.Add(time.Second), loc))
	require.False(t, IsExpired("2025-08-16", "9:00 AM - 10:00 AM", slotStart, loc))

	require.True(t, IsExpired("not-a-date", "2:00 PM - 3:00 PM", slotStart.Add(-48*time.Hour), loc))
	require.True(t, IsExpired("2025-08-15", "soon", slotStart.Add(-48*time.Hour), loc))
}

type fakeSlots struct {
	group *Info
	last  *Info
	err   error
}

func (f fakeSlots) GroupOrderDelivery(context.Context) (*Info, error) { return f.group, f.err }
func (f fakeSlots) LastOrderDelivery(context.Context) (*Info, error)  { return f.last, f.err }

func newReconciler(t *testing.T, now time.Time) *Reconciler {
	return &Reconciler{
		Location: mustLoad(t, "America/Los_Angeles"),
		Now:      func() time.Time { return now },
		Logger:   zerolog.Nop(),
	}
}

func TestActivePrefersGroupOrder(t *testing.T) {
	now := time.Date(2025, 8, 14, 12, 0, 0, 0, time.UTC)
	r := newReconciler(t, now)
	slots := fakeSlots{
		group: &Info{Date: "2025-08-15", TimeSlot: "2:00 PM - 3:00 PM", Priority: PriorityGroupOrder, Address: Address{Line1: "1 Main", City: "Austin", State: "TX", Zip: "78701"}},
		last:  &Info{Date: "2025-08-01", TimeSlot: "1:00 PM - 2:00 PM"},
	}
	active, err := r.Active(context.Background(), slots)
	require.NoError(t, err)
	require.Equal(t, SourceGroupOrder, active.Source)
	require.Equal(t, "2025-08-15", active.Info.Date)
	require.NotNil(t, active.Address)
	require.Equal(t, "Austin", active.Address.City)
	require.False(t, active.Expired)
}

func TestActiveIgnoresUnflaggedGroupRecord(t *testing.T) {
	r := newReconciler(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC))
	slots := fakeSlots{
		group: &Info{Date: "2025-08-15", TimeSlot: "2:00 PM - 3:00 PM"},
		last:  &Info{Date: "2025-08-02", TimeSlot: "1:00 PM - 2:00 PM"},
	}
	active, err := r.Active(context.Background(), slots)
	require.NoError(t, err)
	require.Equal(t, SourceLastOrder, active.Source)
	require.Nil(t, active.Address)
}

func TestActiveLastOrderNeedsDateAndSlot(t *testing.T) {
	r := newReconciler(t, time.Now())
	active, err := r.Active(context.Background(), fakeSlots{last: &Info{Date: "2025-08-02"}})
	require.NoError(t, err)
	require.Equal(t, SourceNone, active.Source)
	require.Nil(t, active.Info)
}

func TestActiveCoercesMalformedGroupDateToToday(t *testing.T) {
	now := time.Date(2025, 8, 15, 3, 0, 0, 0, time.UTC) // Aug 14 in Los Angeles
	r := newReconciler(t, now)
	active, err := r.Active(context.Background(), fakeSlots{group: &Info{Date: "whenever", TimeSlot: "9:00 PM - 10:00 PM", Priority: PriorityGroupOrder}})
	require.NoError(t, err)
	require.Equal(t, SourceGroupOrder, active.Source)
	require.Equal(t, "2025-08-14", active.Info.Date)
	require.False(t, active.Expired)
}

func TestActivePropagatesStoreErrors(t *testing.T) {
	r := newReconciler(t, time.Now())
	_, err := r.Active(context.Background(), fakeSlots{err: errors.New("redis down")})
	require.Error(t, err)
}

func TestFirstOfSkipsEmptyProviders(t *testing.T) {
	calls := 0
	empty := func(context.Context) (Active, bool, error) { calls++; return Active{}, false, nil }
	hit := func(context.Context) (Active, bool, error) { calls++; return Active{Source: SourceLastOrder}, true, nil }
	never := func(context.Context) (Active, bool, error) { t.Fatal("should not be consulted"); return Active{}, false, nil }

	active, ok, err := FirstOf(empty, nil, hit, never)(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, SourceLastOrder, active.Source)
	require.Equal(t, 2, calls)

	active, ok, err = FirstOf()(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, SourceNone, active.Source)
}

func TestExpiredHandler(t *testing.T) {
	loc := mustLoad(t, "America/Chicago")
	h := &Handler{Reconciler: &Reconciler{Location: loc, Now: func() time.Time { return time.Date(2025, 8, 15, 15, 0, 0, 0, loc) }}}

	rr := httptest.NewRecorder()
	h.Expired(rr, httptest.NewRequest(http.MethodGet, "/delivery/expired?date=2025-08-15&slot=2:00+PM+-+3:00+PM", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"expired":true`)
	require.Contains(t, rr.Body.String(), `"start":"14:00"`)

	rr = httptest.NewRecorder()
	h.Expired(rr, httptest.NewRequest(http.MethodGet, "/delivery/expired?date=2025-08-15", nil))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
