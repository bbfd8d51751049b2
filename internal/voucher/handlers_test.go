package voucher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-partyshop/internal/common"
	"github.com/noah-isme/backend-partyshop/internal/pricing"
)

type memAdmin struct {
	created []Voucher
	updated map[string]Voucher
}

func (m *memAdmin) Create(_ context.Context, v Voucher) (Voucher, error) {
	for _, existing := range m.created {
		if existing.Code == v.Code {
			return Voucher{}, ErrDuplicateCode
		}
	}
	v.ID = "new-id"
	m.created = append(m.created, v)
	return v, nil
}

func (m *memAdmin) Update(_ context.Context, code string, v Voucher) (Voucher, error) {
	if code != "KNOWN" {
		return Voucher{}, ErrNotFound
	}
	if m.updated == nil {
		m.updated = map[string]Voucher{}
	}
	m.updated[code] = v
	return v, nil
}

func (m *memAdmin) AffiliateCommissions(_ context.Context, id string) (CommissionSummary, error) {
	return CommissionSummary{AffiliateID: id, Redemptions: 2, Commission: 1234}, nil
}

func TestValidateHandlerMinimumSpend(t *testing.T) {
	h := &Handler{Svc: newService(newMemStore(Voucher{
		Code: "PARTY10", Kind: KindPercentage, DiscountValue: decimal.NewFromInt(10),
		MinimumSpend: pricing.Dollars(50), Active: true,
	}))}

	body := `{"voucher_code":"PARTY10","cart_subtotal":40}`
	rr := httptest.NewRecorder()
	h.Validate(rr, httptest.NewRequest(http.MethodPost, "/vouchers/validate", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Equal(t, false, out["valid"])
	require.Contains(t, out["error"], "minimum spend")
	require.Equal(t, float64(50), out["minimum_spend"])
	require.NotContains(t, out, "discount_amount")
}

func TestValidateHandlerSuccess(t *testing.T) {
	h := &Handler{Svc: newService(newMemStore(Voucher{
		Code: "PARTY10", Name: "Ten off", Kind: KindPercentage, DiscountValue: decimal.NewFromInt(10), Active: true,
	}))}

	body := `{"voucher_code":"party10","cart_subtotal":"$80.00","customer_email":"sam@example.com"}`
	rr := httptest.NewRecorder()
	h.Validate(rr, httptest.NewRequest(http.MethodPost, "/vouchers/validate", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		Valid          bool    `json:"valid"`
		DiscountAmount float64 `json:"discount_amount"`
		Voucher        struct {
			Code string `json:"code"`
			Type string `json:"type"`
		} `json:"voucher"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.True(t, out.Valid)
	require.Equal(t, 8.0, out.DiscountAmount)
	require.Equal(t, "PARTY10", out.Voucher.Code)
	require.Equal(t, "percentage", out.Voucher.Type)
}

func TestValidateHandlerRejectsMissingCode(t *testing.T) {
	h := &Handler{Svc: newService(newMemStore())}
	rr := httptest.NewRecorder()
	h.Validate(rr, httptest.NewRequest(http.MethodPost, "/vouchers/validate", strings.NewReader(`{"cart_subtotal":10}`)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAdminCreateAndUpdate(t *testing.T) {
	admin := &memAdmin{}
	h := &Handler{Admin: admin}

	payload := `{"code":"dj-sam","name":"DJ Sam","type":"percentage","discount_value":"15","commission_rate":"10","affiliate_id":"aff-1"}`
	rr := httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/admin/vouchers", strings.NewReader(payload)))
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Len(t, admin.created, 1)
	require.Equal(t, "DJ-SAM", admin.created[0].Code)
	require.True(t, admin.created[0].Active)

	rr = httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/admin/vouchers", strings.NewReader(payload)))
	require.Equal(t, http.StatusConflict, rr.Code)

	bad := `{"code":"X","type":"prepaid_credit"}`
	rr = httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/admin/vouchers", strings.NewReader(bad)))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	router := chi.NewRouter()
	router.Put("/admin/vouchers/{code}", h.Update)
	router.Get("/admin/affiliates/{id}/commissions", h.Commissions)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/vouchers/missing", strings.NewReader(payload)))
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/admin/vouchers/known", strings.NewReader(`{"code":"KNOWN","type":"free_shipping","active":false}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.False(t, admin.updated["KNOWN"].Active)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/affiliates/aff-1/commissions", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"commission_total":12.34`)
}

func TestAdminChangesAreAuditLogged(t *testing.T) {
	var buf bytes.Buffer
	h := &Handler{Admin: &memAdmin{}, Logger: zerolog.New(&buf)}

	req := httptest.NewRequest(http.MethodPost, "/admin/vouchers", strings.NewReader(`{"code":"bday","type":"free_shipping"}`))
	req = req.WithContext(common.WithActor(req.Context(), "ops@partyshop"))
	rr := httptest.NewRecorder()
	h.Create(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "voucher.created", line["action"])
	require.Equal(t, "BDAY", line["voucher_code"])
	require.Equal(t, "ops@partyshop", line["actor"])
}
