package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

/*
TwilioSMS wraps the minimal Twilio Messages REST call. Credentials come
from configuration; when they are missing every send fails with a clear
error which the dispatch layer records on the Notification row instead
of propagating.
*/

type TwilioSMS struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	client     *http.Client
}

func NewTwilioSMS(accountSID, authToken, from string) *TwilioSMS {
	return &TwilioSMS{
		baseURL:    "https://api.twilio.com",
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether all Twilio credentials are present.
func (t *TwilioSMS) Configured() bool {
	return t.accountSID != "" && t.authToken != "" && t.from != ""
}

// Send delivers one SMS and returns the provider message SID.
func (t *TwilioSMS) Send(toPhone, body string) (string, error) {
	if !t.Configured() {
		return "", fmt.Errorf("sms: Twilio credentials not configured")
	}

	// Assume a Polish number when the country code is missing.
	if !strings.HasPrefix(toPhone, "+") {
		toPhone = "+48" + strings.TrimLeft(toPhone, "0")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	form := url.Values{}
	form.Set("To", toPhone)
	form.Set("From", t.from)
	form.Set("Body", body)

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("sms error: %s | %s", res.Status, string(b))
	}

	var out struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.SID, nil
}
