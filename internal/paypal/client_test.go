package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unlockstudio/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestCreateOrder(t *testing.T) {
	var got createOrderBody
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, createOrderPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"orderID":"ORD-1","approvalURL":"https://www.paypal.com/checkoutnow?token=ORD-1"}`))
	})

	order, err := c.CreateOrder(context.Background(), OrderRequest{Index: 2, Batch: "b1", ReturnURL: "https://app/return"})
	require.NoError(t, err)
	assert.Equal(t, "ORD-1", order.ID)
	assert.Equal(t, "https://www.paypal.com/checkoutnow?token=ORD-1", order.ApprovalURL)

	assert.Equal(t, 2, got.ImageIndex)
	assert.Equal(t, "0.80", got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, "b1", got.Reference)
}

func TestCreateOrderFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"paypal down"}`},
		{"missing approval url", http.StatusOK, `{"id":"ORD-2"}`},
		{"relative approval url", http.StatusOK, `{"approvalURL":"/checkout"}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.CreateOrder(context.Background(), OrderRequest{Index: 0})
			require.Error(t, err)
			assert.True(t, domain.IsKind(err, domain.KindPaymentInitiation), "got %v", err)
		})
	}
}

func TestCreateOrderUnreachable(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)
	_, err = c.CreateOrder(context.Background(), OrderRequest{Index: 0})
	assert.True(t, domain.IsKind(err, domain.KindPaymentInitiation))
}
