package invoice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

// Fakturownia issues VAT invoices through the fakturownia.pl REST API.
// Invoicing is best effort: a failure here never blocks the payment
// flow, the caller only logs it.
type Fakturownia struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Fakturownia {
	return &Fakturownia{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (f *Fakturownia) Configured() bool {
	return f.baseURL != "" && f.token != ""
}

// Issued carries the identifiers the payment row keeps.
type Issued struct {
	ID     int64
	Number string
}

// CreateForPayment issues a gross-priced invoice for a completed
// payment. Buyer data comes from the account profile.
func (f *Fakturownia) CreateForPayment(ctx context.Context, pay *models.Payment, buyer *models.User) (*Issued, error) {
	if !f.Configured() {
		return nil, fmt.Errorf("fakturownia: not configured")
	}

	buyerName := buyer.FullName()
	if buyer.CompanyName != "" {
		buyerName = buyer.CompanyName
	}
	email := ""
	if buyer.Email != nil {
		email = *buyer.Email
	}

	payload := map[string]any{
		"api_token": f.token,
		"invoice": map[string]any{
			"kind":        "vat",
			"sell_date":   time.Now().Format("2006-01-02"),
			"issue_date":  time.Now().Format("2006-01-02"),
			"buyer_name":  buyerName,
			"buyer_email": email,
			"positions": []map[string]any{
				{
					"name":              pay.Description,
					"quantity":          1,
					"total_price_gross": pay.Amount,
					"tax":               23,
				},
			},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.baseURL+"/invoices.json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fakturownia: status %d: %s", resp.StatusCode, string(b))
	}

	var out struct {
		ID     int64  `json:"id"`
		Number string `json:"number"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &Issued{ID: out.ID, Number: out.Number}, nil
}
