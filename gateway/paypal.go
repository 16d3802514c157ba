package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PaypalClient drives the redirect-based capture flow: create a remote order,
// send the customer to the approval URL, then capture once approved.
type PaypalClient struct {
	ClientID   string
	Secret     string
	BaseURL    string
	ReturnURL  string
	CancelURL  string
	HTTPClient *http.Client
}

func NewPaypalClient(clientID, secret, baseURL, returnURL, cancelURL string) *PaypalClient {
	return &PaypalClient{
		ClientID:   clientID,
		Secret:     secret,
		BaseURL:    baseURL,
		ReturnURL:  returnURL,
		CancelURL:  cancelURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AccessToken performs the client-credentials grant.
func (c *PaypalClient) AccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v1/oauth2/token", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to get PayPal token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to get PayPal token: status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode PayPal token response: %w", err)
	}
	return payload.AccessToken, nil
}

// CreateOrder registers a CAPTURE-intent order for the given USD amount and
// returns the remote order id plus the approval URL the customer must visit.
func (c *PaypalClient) CreateOrder(ctx context.Context, amount float64) (orderID, approvalURL string, err error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return "", "", err
	}

	body := map[string]interface{}{
		"intent": "CAPTURE",
		"purchase_units": []map[string]interface{}{
			{
				"amount": map[string]string{
					"currency_code": "USD",
					"value":         fmt.Sprintf("%.2f", amount),
				},
			},
		},
		"application_context": map[string]string{
			"brand_name":   "Food Ordering App",
			"landing_page": "LOGIN",
			"user_action":  "PAY_NOW",
			"return_url":   c.ReturnURL,
			"cancel_url":   c.CancelURL,
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v2/checkout/orders", bytes.NewReader(raw))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("PayPal order creation failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", "", fmt.Errorf("PayPal order creation failed: status %d", resp.StatusCode)
	}

	var created struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", "", fmt.Errorf("failed to decode PayPal order response: %w", err)
	}

	for _, link := range created.Links {
		if link.Rel == "approve" {
			approvalURL = link.Href
			break
		}
	}
	if approvalURL == "" {
		return "", "", fmt.Errorf("PayPal order %s has no approval link", created.ID)
	}
	return created.ID, approvalURL, nil
}

// CaptureOrder exchanges an approved PayPal order for a captured charge and
// returns the provider's capture document as-is.
func (c *PaypalClient) CaptureOrder(ctx context.Context, paypalOrderID string) (map[string]interface{}, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/v2/checkout/orders/"+paypalOrderID+"/capture", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("PayPal capture failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("PayPal capture failed: status %d", resp.StatusCode)
	}

	var capture map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&capture); err != nil {
		return nil, fmt.Errorf("failed to decode PayPal capture response: %w", err)
	}
	return capture, nil
}
