package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaypalAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/oauth2/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "grant_type=client_credentials", string(body))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		json.NewEncoder(w).Encode(map[string]string{"access_token": "pp-token"})
	}))
	defer srv.Close()

	c := NewPaypalClient("client-id", "client-secret", srv.URL, "https://shop/return", "https://shop/cancel")

	token, err := c.AccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "pp-token", token)
}

func TestPaypalCreateOrder(t *testing.T) {
	var orderBody map[string]interface{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "pp-token"})
		case "/v2/checkout/orders":
			assert.Equal(t, "Bearer pp-token", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&orderBody))
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "PP-ORDER-1",
				"status": "CREATED",
				"links": []map[string]string{
					{"href": "https://api.example.com/self", "rel": "self"},
					{"href": "https://www.example.com/approve?token=PP-ORDER-1", "rel": "approve"},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewPaypalClient("client-id", "client-secret", srv.URL, "https://shop/return", "https://shop/cancel")

	orderID, approvalURL, err := c.CreateOrder(context.Background(), 1300)
	require.NoError(t, err)
	assert.Equal(t, "PP-ORDER-1", orderID)
	assert.Equal(t, "https://www.example.com/approve?token=PP-ORDER-1", approvalURL)

	assert.Equal(t, "CAPTURE", orderBody["intent"])
	units := orderBody["purchase_units"].([]interface{})
	amount := units[0].(map[string]interface{})["amount"].(map[string]interface{})
	assert.Equal(t, "USD", amount["currency_code"])
	assert.Equal(t, "1300.00", amount["value"])

	appCtx := orderBody["application_context"].(map[string]interface{})
	assert.Equal(t, "https://shop/return", appCtx["return_url"])
	assert.Equal(t, "https://shop/cancel", appCtx["cancel_url"])
}

func TestPaypalCreateOrderWithoutApprovalLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "pp-token"})
		default:
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":    "PP-ORDER-2",
				"links": []map[string]string{{"href": "https://api.example.com/self", "rel": "self"}},
			})
		}
	}))
	defer srv.Close()

	c := NewPaypalClient("client-id", "client-secret", srv.URL, "", "")

	_, _, err := c.CreateOrder(context.Background(), 50)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no approval link")
}

func TestPaypalCaptureOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "pp-token"})
		case "/v2/checkout/orders/PP-ORDER-1/capture":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer pp-token", r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "PP-ORDER-1",
				"status": "COMPLETED",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewPaypalClient("client-id", "client-secret", srv.URL, "", "")

	capture, err := c.CaptureOrder(context.Background(), "PP-ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", capture["status"])
}
