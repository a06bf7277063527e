package operator

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/internal/analysis"
	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/internal/docgen"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
	"github.com/mkowalczyk/prawnik-backend/pkg/utils"
	"github.com/mkowalczyk/prawnik-backend/pkg/validation"
)

// Notifier is the slice of the notification service the panel uses.
type Notifier interface {
	DocumentsReady(db *gorm.DB, cs *models.Case)
}

type Handler struct {
	db       *gorm.DB
	pipeline *analysis.Service
	notifier Notifier
}

func NewHandler(db *gorm.DB, pipeline *analysis.Service, notifier Notifier) *Handler {
	return &Handler{db: db, pipeline: pipeline, notifier: notifier}
}

// ===== DTOs =====

type QueueItem struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Status      models.CaseStatus  `json:"status"`
	PackageType models.PackageType `json:"package_type"`
	CreatedAt   time.Time          `json:"created_at"`
	ClientName  string             `json:"client_name"`
	ClientEmail *string            `json:"client_email"`
	ClientPhone *string            `json:"client_phone"`
	Documents   int64              `json:"documents"`
	HasAnalysis bool               `json:"has_analysis"`
	OperatorID  *uuid.UUID         `json:"operator_id"`
	LegalDocs   int64              `json:"legal_documents"`
}

type PageQueue struct {
	Page     int         `json:"page"`
	PageSize int         `json:"pageSize"`
	Total    int64       `json:"total"`
	Pages    int         `json:"pages"`
	Items    []QueueItem `json:"items"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=new awaiting_payment paid processing analysis_ready documents_ready completed cancelled"`
	Reason string `json:"reason" validate:"max=500"`
}

type CreateAnalysisRequest struct {
	Content         string  `json:"content" validate:"required"`
	Summary         string  `json:"summary" validate:"max=5000"`
	Recommendations string  `json:"recommendations" validate:"max=10000"`
	PossibleActions string  `json:"possible_actions" validate:"max=10000"`
	ConfidenceScore float64 `json:"confidence_score" validate:"gte=0,lte=1"`
}

type CreateLegalDocRequest struct {
	DocumentName string  `json:"document_name" validate:"required,max=200"`
	DocumentType string  `json:"document_type" validate:"required,max=40"`
	Content      string  `json:"content" validate:"required"`
	Price        float64 `json:"price" validate:"gte=0"`
	Instructions string  `json:"instructions" validate:"max=10000"`
}

type DraftDocRequest struct {
	DocumentType string `json:"document_type" validate:"required"`
}

// ===== Queue =====

// @Summary      Case queue
// @Description  Operator lists cases, optionally filtered by status; paid cases first
// @Tags         operator
// @Security     BearerAuth
// @Produce      json
// @Param        page     query int    false "page"
// @Param        pageSize query int    false "pageSize"
// @Param        status   query string false "filter by status"
// @Param        mine     query bool   false "only cases assigned to me"
// @Success      200  {object}  PageQueue
// @Failure      403  {object}  models.ErrorResponse
// @Router       /operator/cases [get]
func (h *Handler) Queue(c *fiber.Ctx) error {
	page, size := parsePage(c)
	status := strings.TrimSpace(c.Query("status"))

	dbq := h.db.Model(&models.Case{})
	if status != "" {
		dbq = dbq.Where("cases.status = ?", status)
	}
	if c.QueryBool("mine") {
		dbq = dbq.Where("cases.operator_id = ?", auth.MustUserID(c))
	}

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	type row struct {
		QueueItem
		FirstName string
		LastName  string
	}
	rows := make([]row, 0, size)
	if err := dbq.
		Select(`cases.id, cases.title, cases.status, cases.package_type, cases.created_at,
          cases.operator_id,
          users.first_name, users.last_name, users.email AS client_email, users.phone AS client_phone,
          COUNT(DISTINCT documents.id) AS documents,
          COUNT(DISTINCT analyses.id) > 0 AS has_analysis,
          COUNT(DISTINCT legal_documents.id) AS legal_docs`).
		Joins("JOIN users ON users.id = cases.user_id").
		Joins("LEFT JOIN documents ON documents.case_id = cases.id").
		Joins("LEFT JOIN analyses ON analyses.case_id = cases.id").
		Joins("LEFT JOIN legal_documents ON legal_documents.case_id = cases.id").
		Group("cases.id, users.first_name, users.last_name, users.email, users.phone").
		Order("cases.status = 'paid' DESC, cases.created_at ASC").
		Offset((page - 1) * size).Limit(size).
		Scan(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	items := make([]QueueItem, 0, len(rows))
	for _, r := range rows {
		item := r.QueueItem
		item.ClientName = strings.TrimSpace(r.FirstName + " " + r.LastName)
		items = append(items, item)
	}

	return c.JSON(PageQueue{
		Page: page, PageSize: size, Total: total,
		Pages: int(math.Ceil(float64(total) / float64(size))),
		Items: items,
	})
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page = c.QueryInt("page", 1)
	size = c.QueryInt("pageSize", 20)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return
}

// ===== Detail =====

// @Summary      Case detail (staff)
// @Tags         operator
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "case id (uuid)"
// @Success      200  {object}  models.Case
// @Failure      404  {object}  models.ErrorResponse
// @Router       /operator/cases/{id} [get]
func (h *Handler) CaseDetail(c *fiber.Ctx) error {
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var cs models.Case
	err = h.db.
		Preload("User").
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at ASC") }).
		Preload("Analysis").
		Preload("LegalDocuments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(&cs, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"case": cs,
		"client": fiber.Map{
			"id":           cs.User.ID,
			"name":         cs.User.FullName(),
			"email":        cs.User.Email,
			"phone":        cs.User.Phone,
			"company_name": cs.User.CompanyName,
		},
		"payments": cs.Payments,
	})
}

// ===== Assignment and status =====

// @Summary      Assign case to me
// @Description  Operator takes the case; a paid case moves to processing
// @Tags         operator
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "case id (uuid)"
// @Success      200  {object}  models.Case
// @Failure      404  {object}  models.ErrorResponse
// @Router       /operator/cases/{id}/assign [post]
func (h *Handler) Assign(c *fiber.Ctx) error {
	operatorUUID := auth.MustUserUUID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var cs models.Case
	if err := h.db.First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	updates := map[string]any{"operator_id": operatorUUID}
	old := cs.Status
	if cs.Status == models.CasePaid {
		updates["status"] = models.CaseProcessing
	}
	if err := h.db.Model(&cs).Updates(updates).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if old != cs.Status {
		utils.LogCaseEvent(c.Context(), h.db, cs.ID, operatorUUID, "assigned", old, cs.Status, "")
	}

	return c.JSON(cs)
}

// @Summary      Update case status
// @Tags         operator
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string               true "case id (uuid)"
// @Param        payload  body UpdateStatusRequest  true "new status"
// @Success      200  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /operator/cases/{id}/status [patch]
func (h *Handler) UpdateStatus(c *fiber.Ctx) error {
	operatorUUID := auth.MustUserUUID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var in UpdateStatusRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var cs models.Case
	if err := h.db.First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	old := cs.Status
	newStatus := models.CaseStatus(in.Status)
	if old == newStatus {
		return c.JSON(cs)
	}
	if err := h.db.Model(&cs).Update("status", newStatus).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	cs.Status = newStatus
	utils.LogCaseEvent(c.Context(), h.db, cs.ID, operatorUUID, "status_changed", old, newStatus, in.Reason)

	return c.JSON(cs)
}

// ===== Analysis =====

// @Summary      Run AI analysis
// @Description  Triggers the extraction + analysis pipeline for the case
// @Tags         operator
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "case id (uuid)"
// @Success      200  {object}  models.Analysis
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "analysis already running"
// @Router       /operator/cases/{id}/analyze [post]
func (h *Handler) RunAnalysis(c *fiber.Ctx) error {
	operatorUUID := auth.MustUserUUID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	err = h.pipeline.Run(c.Context(), h.db, id, operatorUUID)
	switch {
	case errors.Is(err, analysis.ErrInProgress):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, analysis.ErrNoDocuments):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.ErrNotFound
	case err != nil:
		return fiber.ErrInternalServerError
	}

	var an models.Analysis
	if err := h.db.Where("case_id = ?", id).First(&an).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(an)
}

// @Summary      Create manual analysis
// @Description  Operator writes the analysis by hand; rejected when one already exists
// @Tags         operator
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string                 true "case id (uuid)"
// @Param        payload  body CreateAnalysisRequest  true "analysis payload"
// @Success      201  {object}  models.Analysis
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "analysis already exists"
// @Router       /operator/cases/{id}/analysis [post]
func (h *Handler) CreateAnalysis(c *fiber.Ctx) error {
	operatorUUID := auth.MustUserUUID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var in CreateAnalysisRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var cs models.Case
	if err := h.db.First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	var existing int64
	if err := h.db.Model(&models.Analysis{}).Where("case_id = ?", cs.ID).Count(&existing).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if existing > 0 {
		return fiber.NewError(fiber.StatusConflict, "analysis already exists for this case")
	}

	an := models.Analysis{
		CaseID:          cs.ID,
		Content:         in.Content,
		Summary:         in.Summary,
		Recommendations: in.Recommendations,
		PossibleActions: in.PossibleActions,
		ConfidenceScore: in.ConfidenceScore,
		OperatorID:      &operatorUUID,
	}
	if err := h.db.Create(&an).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	if cs.Status != models.CaseAnalysisReady {
		old := cs.Status
		updates := map[string]any{"status": models.CaseAnalysisReady, "operator_id": operatorUUID}
		if err := h.db.Model(&cs).Updates(updates).Error; err == nil {
			utils.LogCaseEvent(c.Context(), h.db, cs.ID, operatorUUID, "analysis_created",
				old, models.CaseAnalysisReady, "")
		}
	}

	return c.Status(fiber.StatusCreated).JSON(an)
}

// ===== Legal documents =====

// @Summary      Draft a legal document
// @Description  Renders a draft from the case and analysis; the operator edits it before publishing
// @Tags         operator
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string           true "case id (uuid)"
// @Param        payload  body DraftDocRequest  true "document type"
// @Success      200  {object}  map[string]string
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /operator/cases/{id}/draft-document [post]
func (h *Handler) DraftDocument(c *fiber.Ctx) error {
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var in DraftDocRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var cs models.Case
	if err := h.db.Preload("User").Preload("Analysis").First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	content, err := docgen.Render(in.DocumentType, &cs, cs.Analysis)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"document_type": in.DocumentType, "content": content})
}

// @Summary      Publish a legal document
// @Description  Attaches a finished legal document to the case and notifies the client
// @Tags         operator
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string                 true "case id (uuid)"
// @Param        payload  body CreateLegalDocRequest  true "document payload"
// @Success      201  {object}  models.LegalDocument
// @Failure      404  {object}  models.ErrorResponse
// @Router       /operator/cases/{id}/legal-documents [post]
func (h *Handler) CreateLegalDocument(c *fiber.Ctx) error {
	operatorUUID := auth.MustUserUUID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var in CreateLegalDocRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var cs models.Case
	if err := h.db.First(&cs, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	doc := models.LegalDocument{
		CaseID:       cs.ID,
		DocumentName: strings.TrimSpace(in.DocumentName),
		DocumentType: in.DocumentType,
		Content:      in.Content,
		Price:        in.Price,
		Instructions: in.Instructions,
		OperatorID:   &operatorUUID,
	}
	if err := h.db.Create(&doc).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	if cs.Status != models.CaseDocumentsReady {
		old := cs.Status
		updates := map[string]any{"status": models.CaseDocumentsReady, "operator_id": operatorUUID}
		if err := h.db.Model(&cs).Updates(updates).Error; err == nil {
			utils.LogCaseEvent(c.Context(), h.db, cs.ID, operatorUUID, "documents_ready",
				old, models.CaseDocumentsReady, "")
		}
	}

	if h.notifier != nil {
		h.notifier.DocumentsReady(h.db, &cs)
	}

	return c.Status(fiber.StatusCreated).JSON(doc)
}

// ===== Documents =====

// @Summary      Document processing summary
// @Description  Counts of uploaded vs text-extracted documents for the case
// @Tags         operator
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "case id (uuid)"
// @Success      200  {object}  map[string]int64
// @Failure      404  {object}  models.ErrorResponse
// @Router       /operator/cases/{id}/documents/summary [get]
func (h *Handler) DocumentsSummary(c *fiber.Ctx) error {
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var total, processed, withText int64
	base := h.db.Model(&models.Document{}).Where("case_id = ?", id)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if total == 0 {
		var exists int64
		if err := h.db.Model(&models.Case{}).Where("id = ?", id).Count(&exists).Error; err != nil || exists == 0 {
			return fiber.ErrNotFound
		}
	}
	if err := base.Session(&gorm.Session{}).Where("is_processed = ?", true).Count(&processed).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if err := base.Session(&gorm.Session{}).
		Where("ocr_text IS NOT NULL AND ocr_text <> ''").Count(&withText).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"total":         total,
		"processed":     processed,
		"with_ocr_text": withText,
	})
}
