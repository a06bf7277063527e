package analysis

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/mkowalczyk/prawnik-backend/internal/ai"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

// A text layer shorter than this is treated as a scan without
// embedded text and goes through OCR instead.
const minEmbeddedTextLen = 100

var polishRunes = map[rune]bool{
	'ą': true, 'ć': true, 'ę': true, 'ł': true, 'ń': true,
	'ó': true, 'ś': true, 'ź': true, 'ż': true,
}

// TextConfidence scores extracted text between 0 and 1. The score is a
// readability heuristic: the share of letters/digits/spaces, with a
// small bonus when Polish diacritics are present (their absence in a
// Polish legal document usually means a bad OCR pass).
func TextConfidence(s string) float64 {
	s = strings.TrimSpace(s)
	if len(s) == 0 {
		return 0
	}

	var total, good int
	hasPolish := false
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) ||
			strings.ContainsRune(".,;:!?()-\"'", r) {
			good++
		}
		if polishRunes[unicode.ToLower(r)] {
			hasPolish = true
		}
	}

	score := float64(good) / float64(total)
	if hasPolish {
		score += 0.05
	}
	if score > 1 {
		score = 1
	}
	return score
}

// pdfTextLayer pulls the embedded text layer out of a PDF. Returns an
// empty string (no error) for PDFs that are pure scans.
func pdfTextLayer(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func mimeFor(fileType, filename string) string {
	switch fileType {
	case "pdf":
		return "application/pdf"
	case "image":
		if strings.HasSuffix(strings.ToLower(filename), ".png") {
			return "image/png"
		}
		return "image/jpeg"
	}
	return "application/octet-stream"
}

// ExtractText returns the best text for a document. PDFs try the
// embedded text layer first and fall back to OCR when it is missing or
// too short; images always go through OCR. Word documents are not
// parsed locally and come back empty.
func ExtractText(ctx context.Context, client ai.Client, doc *models.Document) (string, float64, error) {
	switch doc.FileType {
	case "pdf":
		text, err := pdfTextLayer(doc.FilePath)
		if err == nil && len(text) >= minEmbeddedTextLen {
			return text, TextConfidence(text), nil
		}
		return ocrFile(ctx, client, doc)
	case "image":
		return ocrFile(ctx, client, doc)
	default:
		return "", 0, nil
	}
}

// ocrFile runs the document bytes through the vision model. Two passes
// are taken when the first result scores poorly; the better one wins.
func ocrFile(ctx context.Context, client ai.Client, doc *models.Document) (string, float64, error) {
	if client == nil || !client.Configured() {
		return "", 0, fmt.Errorf("ocr: ai client not configured")
	}

	data, err := os.ReadFile(doc.FilePath)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", doc.FilePath, err)
	}
	mimeType := mimeFor(doc.FileType, doc.OriginalFilename)

	text, err := client.OCR(ctx, data, mimeType, doc.OriginalFilename)
	if err != nil {
		return "", 0, err
	}
	best := strings.TrimSpace(text)
	bestScore := TextConfidence(best)

	if bestScore < 0.6 {
		if retry, err := client.OCR(ctx, data, mimeType, doc.OriginalFilename); err == nil {
			retry = strings.TrimSpace(retry)
			if s := TextConfidence(retry); s > bestScore {
				best, bestScore = retry, s
			}
		}
	}
	return best, bestScore, nil
}
