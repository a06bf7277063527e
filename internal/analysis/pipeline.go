package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mkowalczyk/prawnik-backend/internal/ai"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
	"github.com/mkowalczyk/prawnik-backend/pkg/utils"
)

var (
	// ErrInProgress is returned when another run already holds the
	// per-case lock.
	ErrInProgress = errors.New("analysis already in progress for this case")
	// ErrNoDocuments is returned when the case has nothing to analyze.
	ErrNoDocuments = errors.New("case has no documents")
)

// How long a single pipeline run may hold the case lock before it is
// considered dead and the lock expires on its own.
const lockTTL = 10 * time.Minute

// Score below which the client is told their scans were unreadable.
const unclearThreshold = 0.4

// Notifier is the slice of the notification service the pipeline uses.
type Notifier interface {
	AnalysisReady(db *gorm.DB, cs *models.Case)
	UnclearScans(db *gorm.DB, cs *models.Case)
}

// Service runs the document analysis pipeline: text extraction and OCR
// per document, one model call over the combined text, and an upsert of
// the single Analysis row the case owns.
type Service struct {
	ai       ai.Client
	rdb      *redis.Client
	notifier Notifier
}

func NewService(client ai.Client, rdb *redis.Client, notifier Notifier) *Service {
	return &Service{ai: client, rdb: rdb, notifier: notifier}
}

func lockKey(caseID uuid.UUID) string { return "analysis:case:" + caseID.String() }

// acquireLock takes the per-case redis lock. Without redis configured
// the pipeline runs unguarded, which is acceptable for single-instance
// development setups.
func (s *Service) acquireLock(ctx context.Context, caseID uuid.UUID) (func(), error) {
	if s.rdb == nil {
		return func() {}, nil
	}
	ok, err := s.rdb.SetNX(ctx, lockKey(caseID), "1", lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("analysis lock: %w", err)
	}
	if !ok {
		return nil, ErrInProgress
	}
	return func() { s.rdb.Del(context.Background(), lockKey(caseID)) }, nil
}

// Run executes the full pipeline for one case. Safe to call repeatedly:
// concurrent runs are rejected with ErrInProgress and a rerun simply
// replaces the previous analysis.
func (s *Service) Run(ctx context.Context, db *gorm.DB, caseID, actorID uuid.UUID) error {
	release, err := s.acquireLock(ctx, caseID)
	if err != nil {
		return err
	}
	defer release()

	var cs models.Case
	if err := db.Preload("Documents").First(&cs, "id = ?", caseID).Error; err != nil {
		return err
	}
	if len(cs.Documents) == 0 {
		return ErrNoDocuments
	}

	combined, worstScore := s.extractAll(ctx, db, &cs)

	if worstScore < unclearThreshold && s.notifier != nil {
		s.notifier.UnclearScans(db, &cs)
	}

	result, confidence := s.analyze(ctx, &cs, combined)

	if err := s.upsert(db, &cs, result, confidence, actorID); err != nil {
		return err
	}

	s.advanceCase(ctx, db, &cs, actorID)

	if s.notifier != nil && confidence > 0 {
		s.notifier.AnalysisReady(db, &cs)
	}
	return nil
}

// extractAll OCRs every document that still needs it and returns the
// combined tagged text plus the worst per-document confidence.
func (s *Service) extractAll(ctx context.Context, db *gorm.DB, cs *models.Case) (string, float64) {
	var sb strings.Builder
	worst := 1.0

	for i := range cs.Documents {
		doc := &cs.Documents[i]

		text := ""
		score := 1.0
		if doc.IsProcessed && doc.OCRText != nil {
			text = *doc.OCRText
			score = TextConfidence(text)
		} else {
			var err error
			text, score, err = ExtractText(ctx, s.ai, doc)
			if err != nil {
				score = 0
			}
			updates := map[string]any{"is_processed": true}
			if text != "" {
				updates["ocr_text"] = text
			}
			_ = db.Model(doc).Updates(updates).Error
		}

		if score < worst {
			worst = score
		}
		if text == "" {
			continue
		}
		fmt.Fprintf(&sb, "=== DOKUMENT: %s ===\n%s\n\n", doc.OriginalFilename, text)
	}
	return sb.String(), worst
}

// analyze asks the model for the structured assessment. Any failure
// degrades to a placeholder with zero confidence so the operator can
// spot and rerun it.
func (s *Service) analyze(ctx context.Context, cs *models.Case, combined string) (*Result, float64) {
	placeholder := &Result{
		Summary:  "Analiza automatyczna nie powiodła się.",
		Analysis: "Analiza automatyczna nie powiodła się. Sprawa wymaga ręcznej weryfikacji przez operatora.",
	}

	if s.ai == nil || !s.ai.Configured() || strings.TrimSpace(combined) == "" {
		return placeholder, 0
	}

	prompt := buildPrompt(cs, combined)
	raw, err := s.ai.GenerateJSON(ctx, prompt, resultSchema())
	if err != nil {
		return placeholder, 0
	}
	result, ok := ParseResult(raw)
	if !ok {
		return placeholder, 0
	}
	return result, 0.85
}

func buildPrompt(cs *models.Case, combined string) string {
	var sb strings.Builder
	sb.WriteString("Jesteś doświadczonym polskim prawnikiem. Przeanalizuj poniższe dokumenty klienta i przygotuj profesjonalną analizę prawną w języku polskim.\n\n")
	fmt.Fprintf(&sb, "Tytuł sprawy: %s\n", cs.Title)
	if cs.Description != "" {
		fmt.Fprintf(&sb, "Opis klienta: %s\n", cs.Description)
	}
	if cs.ClientContext != "" {
		fmt.Fprintf(&sb, "Dodatkowy kontekst: %s\n", cs.ClientContext)
	}
	sb.WriteString("\nDokumenty:\n\n")
	sb.WriteString(combined)
	sb.WriteString("\nOdpowiedz wyłącznie poprawnym JSON z polami: summary (krótkie streszczenie), analysis (pełna analiza prawna), recommendations (rekomendacje), possible_actions (możliwe dalsze kroki).")
	return sb.String()
}

// upsert writes the one-per-case analysis row, replacing any previous
// content on rerun.
func (s *Service) upsert(db *gorm.DB, cs *models.Case, r *Result, confidence float64, actorID uuid.UUID) error {
	row := models.Analysis{
		CaseID:          cs.ID,
		Content:         r.Analysis,
		Summary:         r.Summary,
		Recommendations: r.Recommendations,
		PossibleActions: r.PossibleActions,
		ConfidenceScore: confidence,
	}
	if actorID != uuid.Nil {
		row.OperatorID = &actorID
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "case_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"content", "summary", "recommendations", "possible_actions",
			"confidence_score", "operator_id", "updated_at",
		}),
	}).Create(&row).Error
}

func (s *Service) advanceCase(ctx context.Context, db *gorm.DB, cs *models.Case, actorID uuid.UUID) {
	switch cs.Status {
	case models.CaseNew, models.CasePaid, models.CaseProcessing:
		old := cs.Status
		if err := db.Model(&models.Case{}).Where("id = ?", cs.ID).
			Update("status", models.CaseAnalysisReady).Error; err != nil {
			return
		}
		cs.Status = models.CaseAnalysisReady
		utils.LogCaseEvent(ctx, db, cs.ID, actorID, "analysis_generated",
			old, models.CaseAnalysisReady, "")
	}
}
