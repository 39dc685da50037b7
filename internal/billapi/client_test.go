package billapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/billdesk/internal/platform/httpx"
	"github.com/odyssey-erp/billdesk/internal/purchasebills"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api/v1/", "secret-token", time.Second)
}

func TestResolveActivePrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/supplier-prices/active-price", r.URL.Path)
		require.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		q := r.URL.Query()
		require.Equal(t, "5", q.Get("supplierId"))
		require.Equal(t, "9", q.Get("masterMaterialId"))
		require.Equal(t, "kg", q.Get("unit"))
		require.Equal(t, "2024-01-10", q.Get("date"))
		_, _ = w.Write([]byte(`{"id":77,"price":12.5}`))
	})

	quote, err := client.ResolveActivePrice(context.Background(), purchasebills.PriceQuery{
		SupplierID: 5, MasterMaterialID: 9, Unit: "kg", Date: "2024-01-10",
	})
	require.NoError(t, err)
	require.Equal(t, int64(77), quote.ID)
	require.True(t, quote.Price.Equal(decimal.RequireFromString("12.5")))
	require.Equal(t, "kg", quote.Unit)
}

func TestResolveActivePriceNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"No active price"}`))
	})

	_, err := client.ResolveActivePrice(context.Background(), purchasebills.PriceQuery{SupplierID: 1, MasterMaterialID: 1, Unit: "kg", Date: "2024-01-10"})
	require.ErrorIs(t, err, ErrPriceNotFound)
	require.ErrorIs(t, err, purchasebills.ErrNoActivePrice)
}

func TestCreatePurchaseBillSendsIdempotencyKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/purchase-bills", r.URL.Path)
		require.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "B-1", body["billNumber"])
		items := body["items"].([]any)
		require.Len(t, items, 1)
		require.Equal(t, 2.5, items[0].(map[string]any)["quantity"])
		require.Equal(t, float64(10), items[0].(map[string]any)["unitPrice"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":10,"billNumber":"B-1","totalAmount":25,"updatedAt":"2024-01-10T09:00:00"}`))
	})

	bill, err := client.CreatePurchaseBill(context.Background(), purchasebills.NewPurchaseBill{
		BillNumber: "B-1",
		BillDate:   "2024-01-10",
		SupplierID: 5,
		SiteID:     2,
		Items: []purchasebills.NewBillItem{{
			MasterMaterialID: 9,
			Quantity:         decimal.RequireFromString("2.5"),
			Unit:             "kg",
			UnitPrice:        decimal.NewFromInt(10),
		}},
	}, "key-1")
	require.NoError(t, err)
	require.Equal(t, int64(10), bill.ID)
	require.Equal(t, "25", bill.TotalAmount.String())
	require.False(t, bill.UpdatedAt.IsZero())
	require.False(t, decimal.MarshalJSONWithoutQuotes)
}

func TestListPurchaseBillsEmpty(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})

	bills, err := client.ListPurchaseBills(context.Background())
	require.NoError(t, err)
	require.NotNil(t, bills)
	require.Empty(t, bills)
}

func TestReceiptUpdatesUseQueryParameters(t *testing.T) {
	var got []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		got = append(got, r.URL.Path+"?"+r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"id":1,"overallGrnStatus":"PARTIAL"}`))
	})
	remarks := "box damaged"

	bill, err := client.UpdateLineReceipt(context.Background(), 101, true, &remarks)
	require.NoError(t, err)
	require.Equal(t, "PARTIAL", bill.OverallGRNStatus)

	_, err = client.UpdateLineReceipt(context.Background(), 102, false, nil)
	require.NoError(t, err)

	_, err = client.UpdateHardcopy(context.Background(), 1, true, false)
	require.NoError(t, err)

	require.Equal(t, []string{
		"/api/v1/purchase-bills/items/101/grn?received=true&remarks=box+damaged",
		"/api/v1/purchase-bills/items/102/grn?received=false",
		"/api/v1/purchase-bills/1/grn-hardcopy?handedToAccountant=false&receivedByPurchaser=true",
	}, got)
}

func TestAPIErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		status   int
		body     string
		sentinel error
		message  string
		fields   map[string]string
	}{
		{
			name:     "not found",
			status:   http.StatusNotFound,
			body:     `{"message":"Purchase bill not found"}`,
			sentinel: httpx.ErrNotFound,
			message:  "Purchase bill not found",
		},
		{
			name:     "validation list",
			status:   http.StatusBadRequest,
			body:     `{"message":"Validation failed","validationErrors":["billNumber: must not be blank","items must not be empty"]}`,
			sentinel: httpx.ErrValidation,
			message:  "Validation failed",
			fields:   map[string]string{"billNumber": "must not be blank", "general": "items must not be empty"},
		},
		{
			name:     "validation map",
			status:   http.StatusUnprocessableEntity,
			body:     `{"validationErrors":{"siteId":"is required"}}`,
			sentinel: httpx.ErrValidation,
			message:  "siteId: is required",
			fields:   map[string]string{"siteId": "is required"},
		},
		{
			name:     "conflict",
			status:   http.StatusConflict,
			body:     `{"error":"Bill number already exists"}`,
			sentinel: httpx.ErrDuplicate,
			message:  "Bill number already exists",
		},
		{
			name:     "server error without body",
			status:   http.StatusInternalServerError,
			sentinel: httpx.ErrUpstream,
		},
		{
			name:     "html error page",
			status:   http.StatusBadGateway,
			body:     `<html>bad gateway</html>`,
			sentinel: httpx.ErrUpstream,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := client.GetPurchaseBill(context.Background(), 1)
			require.ErrorIs(t, err, tc.sentinel)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tc.status, apiErr.Status)
			require.Equal(t, tc.message, apiErr.UserMessage())
			require.Equal(t, tc.fields, apiErr.FieldErrors())
			require.Equal(t, tc.message, purchasebills.UserMessage(err, ""))
		})
	}
}

func TestTransportFailureIsUpstream(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()
	client := NewClient(server.URL, "", time.Second)

	_, err := client.GetPurchaseBill(context.Background(), 1)
	require.ErrorIs(t, err, httpx.ErrUpstream)
	require.Equal(t, "fallback", purchasebills.UserMessage(err, "fallback"))
	require.Error(t, client.Ping(context.Background()))
}

func TestPing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	require.NoError(t, client.Ping(context.Background()))

	failing := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	require.Error(t, failing.Ping(context.Background()))
}
