// Package gateway holds the HTTP clients for the external payment
// providers. Each client is a thin wrapper over the provider's REST API;
// retries and reconciliation stay with the caller.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"
)

// MpesaClient talks to the Safaricom Daraja API: a credentials-grant token
// exchange followed by an STK push to the customer's phone. The final
// outcome arrives asynchronously on the configured callback URL.
type MpesaClient struct {
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	BaseURL        string
	CallbackURL    string
	HTTPClient     *http.Client
}

func NewMpesaClient(consumerKey, consumerSecret, shortcode, passkey, baseURL, callbackURL string) *MpesaClient {
	return &MpesaClient{
		ConsumerKey:    consumerKey,
		ConsumerSecret: consumerSecret,
		Shortcode:      shortcode,
		Passkey:        passkey,
		BaseURL:        baseURL,
		CallbackURL:    callbackURL,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Timestamp renders t in the 14-digit format Daraja expects.
func Timestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// Password builds the push-request password: base64 of
// shortcode+passkey+timestamp.
func (c *MpesaClient) Password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.Shortcode + c.Passkey + timestamp))
}

// AccessToken performs the client-credentials grant and returns a
// short-lived bearer token.
func (c *MpesaClient) AccessToken(ctx context.Context) (string, error) {
	url := c.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ConsumerKey, c.ConsumerSecret)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get M-Pesa token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get M-Pesa token: status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode M-Pesa token response: %w", err)
	}
	return payload.AccessToken, nil
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush issues a payment prompt for the given amount to the customer's
// phone. The amount is rounded to a whole unit, which is what the API
// accepts.
func (c *MpesaClient) STKPush(ctx context.Context, phone string, amount float64) (*STKPushResponse, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(time.Now())
	body := map[string]interface{}{
		"BusinessShortCode": c.Shortcode,
		"Password":          c.Password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            int64(math.Round(amount)),
		"PartyA":            phone,
		"PartyB":            c.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.CallbackURL,
		"AccountReference":  "FOOD_ORDER",
		"TransactionDesc":   "Food Payment",
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("STK push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("STK push failed: status %d", resp.StatusCode)
	}

	var pushResp STKPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&pushResp); err != nil {
		return nil, fmt.Errorf("failed to decode STK push response: %w", err)
	}
	return &pushResp, nil
}

// STKCallback is the result envelope Daraja posts to the callback URL.
type STKCallback struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// Receipt returns the MpesaReceiptNumber from the callback metadata, or an
// empty string when the callback carries none (failed pushes don't).
func (c *STKCallback) Receipt() string {
	for _, item := range c.Body.StkCallback.CallbackMetadata.Item {
		if item.Name == "MpesaReceiptNumber" {
			if s, ok := item.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
