package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

/*
Gemini wraps minimal calls to the Google Generative Language REST API.

Two operations are used: plain text generation for the legal analysis
(with a JSON response schema so the output does not have to be reparsed
from free text), and vision-based OCR for scanned documents. No OCR
engine ships with the app; scans go through this API.
*/

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Client is the subset of the Gemini API the analysis pipeline needs.
// It is an interface so the pipeline can be tested with a stub.
type Client interface {
	Configured() bool
	GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error)
	OCR(ctx context.Context, data []byte, mimeType, hint string) (string, error)
}

type Gemini struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewGemini(apiKey, model string) *Gemini {
	return &Gemini{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (g *Gemini) Configured() bool { return g.apiKey != "" }

/* ============================ Wire types ============================== */

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type content struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"response_mime_type,omitempty"`
	ResponseSchema   map[string]any `json:"response_schema,omitempty"`
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

/* ============================= Operations ============================= */

// GenerateJSON submits a prompt with a response schema and returns the
// model's (ideally JSON) text output.
func (g *Gemini) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	}
	if schema != nil {
		req.GenerationConfig = &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   schema,
		}
	}
	return g.generate(ctx, req)
}

// OCR asks the vision model to transcribe a document image or PDF.
// hint steers the prompt (e.g. towards single-column layouts).
func (g *Gemini) OCR(ctx context.Context, data []byte, mimeType, hint string) (string, error) {
	prompt := "Przepisz dokładnie cały tekst widoczny w tym dokumencie, zachowując układ akapitów. " +
		"Nie tłumacz, nie streszczaj, nie dodawaj komentarzy."
	if hint != "" {
		prompt += " " + hint
	}

	req := generateRequest{
		Contents: []content{{Parts: []part{
			{Text: prompt},
			{InlineData: &inlineData{
				MimeType: mimeType,
				Data:     base64.StdEncoding.EncodeToString(data),
			}},
		}}},
	}
	return g.generate(ctx, req)
}

func (g *Gemini) generate(ctx context.Context, payload generateRequest) (string, error) {
	if !g.Configured() {
		return "", fmt.Errorf("gemini: API key not configured")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("gemini error: %s | %s", res.Status, string(b))
	}

	var out generateResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}

	text := ""
	for _, p := range out.Candidates[0].Content.Parts {
		text += p.Text
	}
	return text, nil
}
