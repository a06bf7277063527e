package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PayU is a thin REST client for the PayU order API. An access token is
// cached until shortly before expiry. When the client is not configured
// (missing credentials) CreateOrder returns a sandbox-style placeholder
// order so local development works without the gateway.
type PayU struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewPayU(baseURL, clientID, clientSecret string) *PayU {
	return &PayU{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PayU) Configured() bool {
	return p.clientID != "" && p.clientSecret != ""
}

// Order is the subset of the PayU order response the app needs.
type Order struct {
	OrderID     string
	RedirectURI string
}

func (p *PayU) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/pl/standard/user/oauth/authorize",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("payu auth: status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}

	p.token = out.AccessToken
	p.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn-60) * time.Second)
	return p.token, nil
}

// CreateOrder registers a payment with PayU and returns the hosted
// checkout redirect. Amount is in PLN; PayU wants grosze.
func (p *PayU) CreateOrder(ctx context.Context, paymentID uuid.UUID, amount float64, currency, description, buyerEmail, notifyURL string) (*Order, error) {
	if !p.Configured() {
		// Local/dev placeholder; webhook simulation completes the flow.
		id := "sandbox_" + uuid.NewString()
		return &Order{
			OrderID:     id,
			RedirectURI: p.baseURL + "/sandbox/checkout?order=" + id,
		}, nil
	}

	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	grosze := int64(amount*100 + 0.5)
	payload := map[string]any{
		"extOrderId":    paymentID.String(),
		"notifyUrl":     notifyURL,
		"customerIp":    "127.0.0.1",
		"merchantPosId": p.clientID,
		"description":   description,
		"currencyCode":  currency,
		"totalAmount":   strconv.FormatInt(grosze, 10),
		"products": []map[string]any{
			{"name": description, "unitPrice": strconv.FormatInt(grosze, 10), "quantity": "1"},
		},
	}
	if buyerEmail != "" {
		payload["buyer"] = map[string]any{"email": buyerEmail}
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/api/v2_1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	// PayU answers the order create with a 302 to the checkout page;
	// the JSON body carries the same redirectUri.
	client := *p.http
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusFound {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payu order: status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		RedirectURI string `json:"redirectUri"`
		OrderID     string `json:"orderId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if out.OrderID == "" {
		return nil, fmt.Errorf("payu order: empty orderId")
	}
	return &Order{OrderID: out.OrderID, RedirectURI: out.RedirectURI}, nil
}
