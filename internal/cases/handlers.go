package cases

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/internal/storage"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
	"github.com/mkowalczyk/prawnik-backend/pkg/pricing"
	"github.com/mkowalczyk/prawnik-backend/pkg/utils"
	"github.com/mkowalczyk/prawnik-backend/pkg/validation"
)

// ===== DTOs =====

// Create comes in as multipart/form-data so documents can be attached
// in the same request. Field validation still goes through the shared
// validator.
type CreateCaseRequest struct {
	Title         string `form:"title" validate:"required,max=200"`
	Description   string `form:"description" validate:"max=5000"`
	PackageType   string `form:"package_type" validate:"required,oneof=basic standard premium express"`
	ClientNotes   string `form:"client_notes" validate:"max=5000"`
	ClientContext string `form:"client_context" validate:"max=5000"`
}

type UpdateCaseRequest struct {
	Title         *string `json:"title" validate:"omitempty,max=200"`
	Description   *string `json:"description" validate:"omitempty,max=5000"`
	ClientNotes   *string `json:"client_notes" validate:"omitempty,max=5000"`
	ClientContext *string `json:"client_context" validate:"omitempty,max=5000"`
}

type CaseListItem struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Status      models.CaseStatus  `json:"status"`
	PackageType models.PackageType `json:"package_type"`
	CreatedAt   time.Time          `json:"created_at"`
	Documents   int64              `json:"documents"`
	HasAnalysis bool               `json:"has_analysis"`
}

type PageCases struct {
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int64          `json:"total"`
	Pages    int            `json:"pages"`
	Items    []CaseListItem `json:"items"`
}

type Handler struct {
	db       *gorm.DB
	store    *storage.Local
	maxFiles int
	maxSize  int64 // bytes
}

func NewHandler(db *gorm.DB, store *storage.Local, maxFiles, maxSizeMB int) *Handler {
	return &Handler{
		db:       db,
		store:    store,
		maxFiles: maxFiles,
		maxSize:  int64(maxSizeMB) * 1024 * 1024,
	}
}

// Create Case godoc
// @Summary      Create case
// @Description  Client creates a new case with optional documents attached; the upload is all-or-nothing
// @Tags         cases
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        title          formData  string  true   "case title"
// @Param        description    formData  string  false  "description"
// @Param        package_type   formData  string  true   "basic|standard|premium|express"
// @Param        client_notes   formData  string  false  "notes for the operator"
// @Param        client_context formData  string  false  "background context"
// @Param        files          formData  []file  false  "PDF/JPG/PNG/DOC/DOCX"
// @Success      201  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	files, err := formFiles(c)
	if err != nil {
		return err
	}
	if err := h.validateBatch(files); err != nil {
		return err
	}

	clientUUID := auth.MustUserUUID(c)
	pkg := models.PackageType(in.PackageType)
	price, err := pricing.PackagePrice(pkg)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "unknown package type")
	}
	cs := models.Case{
		UserID:        clientUUID,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		ClientNotes:   strings.TrimSpace(in.ClientNotes),
		ClientContext: strings.TrimSpace(in.ClientContext),
		Status:        models.CaseNew,
		PackageType:   pkg,
		PackagePrice:  price,
	}

	// Case row, document rows and files on disk succeed or fail as one
	// unit. Saved files are removed when any later step fails so no
	// orphans remain.
	saved := make([]string, 0, len(files))
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&cs).Error; err != nil {
			return err
		}
		for _, fh := range files {
			doc, path, err := h.saveOne(tx, cs.ID, fh)
			if err != nil {
				return err
			}
			saved = append(saved, path)
			cs.Documents = append(cs.Documents, *doc)
		}
		return nil
	})
	if err != nil {
		_ = h.store.BulkDelete(saved)
		if fe, ok := err.(*fiber.Error); ok {
			return fe
		}
		return fiber.ErrInternalServerError
	}

	utils.LogCaseEvent(c.Context(), h.db, cs.ID, clientUUID, "created", "", models.CaseNew, "")

	if cs.Documents == nil {
		cs.Documents = []models.Document{}
	}
	return c.Status(fiber.StatusCreated).JSON(cs)
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 50 {
		size = 10
	}
	return
}

// List My Cases godoc
// @Summary      List my cases
// @Description  Client lists their own cases (paginated, optional status filter)
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        status    query string false "filter by status"
// @Success      200  {object}  PageCases
// @Failure      401  {object}  models.ErrorResponse
// @Router       /cases/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	page, size := parsePage(c)
	status := strings.TrimSpace(c.Query("status"))

	dbq := h.db.Model(&models.Case{}).Where("cases.user_id = ?", clientID)
	if status != "" {
		dbq = dbq.Where("cases.status = ?", status)
	}

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	rows := make([]CaseListItem, 0, size)
	if err := dbq.
		Select(`cases.id, cases.title, cases.status, cases.package_type, cases.created_at,
          COUNT(documents.id) AS documents,
          COUNT(analyses.id) > 0 AS has_analysis`).
		Joins("LEFT JOIN documents ON documents.case_id = cases.id").
		Joins("LEFT JOIN analyses ON analyses.case_id = cases.id").
		Group("cases.id").
		Order("cases.created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Scan(&rows).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	if rows == nil {
		rows = []CaseListItem{}
	}

	return c.JSON(PageCases{
		Page: page, PageSize: size, Total: total,
		Pages: int(math.Ceil(float64(total) / float64(size))),
		Items: rows,
	})
}

// Get case detail for owner
// @Summary      Case detail (owner)
// @Description  Client gets their case detail with documents, analysis and legal documents
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  models.Case
// @Failure      401  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [get]
func (h *Handler) GetDetailOwner(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var cs models.Case
	err = h.db.
		Where("id = ? AND user_id = ?", id, clientID).
		Preload("Documents", func(db *gorm.DB) *gorm.DB { return db.Order("uploaded_at ASC") }).
		Preload("Analysis").
		Preload("LegalDocuments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at DESC") }).
		First(&cs).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if cs.Documents == nil {
		cs.Documents = []models.Document{}
	}
	if cs.LegalDocuments == nil {
		cs.LegalDocuments = []models.LegalDocument{}
	}

	return c.JSON(cs)
}

// Update Case godoc
// @Summary      Update case
// @Description  Client edits title/description/notes before the case enters processing
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string            true "case id (uuid)"
// @Param        payload  body UpdateCaseRequest true "fields to change"
// @Success      200  {object}  models.Case
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "case already in processing"
// @Router       /cases/{id} [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var in UpdateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var cs models.Case
	if err := h.db.Where("id = ? AND user_id = ?", id, clientID).First(&cs).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if !editable(cs.Status) {
		return fiber.NewError(fiber.StatusConflict, "case can no longer be edited")
	}

	updates := map[string]any{}
	if in.Title != nil {
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.ClientNotes != nil {
		updates["client_notes"] = strings.TrimSpace(*in.ClientNotes)
	}
	if in.ClientContext != nil {
		updates["client_context"] = strings.TrimSpace(*in.ClientContext)
	}
	if len(updates) > 0 {
		if err := h.db.Model(&cs).Updates(updates).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	}

	return c.JSON(cs)
}

// Delete Case godoc
// @Summary      Delete case
// @Description  Client deletes an unpaid case; documents and stored files go with it
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "case id (uuid)"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "paid cases cannot be deleted"
// @Router       /cases/{id} [delete]
func (h *Handler) Delete(c *fiber.Ctx) error {
	clientUUID := auth.MustUserUUID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var cs models.Case
	if err := h.db.Where("id = ? AND user_id = ?", id, clientUUID).First(&cs).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if !editable(cs.Status) {
		return fiber.NewError(fiber.StatusConflict, "paid cases cannot be deleted")
	}

	var paths []string
	if err := h.db.Model(&models.Document{}).
		Where("case_id = ?", cs.ID).
		Pluck("file_path", &paths).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("case_id = ?", cs.ID).Delete(&models.Document{}).Error; err != nil {
			return err
		}
		if err := tx.Where("case_id = ?", cs.ID).Delete(&models.Analysis{}).Error; err != nil {
			return err
		}
		if err := tx.Where("case_id = ?", cs.ID).Delete(&models.LegalDocument{}).Error; err != nil {
			return err
		}
		// An awaiting_payment case carries a pending payment. The payment
		// row is a financial record and stays; it is cancelled and
		// detached so the case row can go.
		if err := tx.Model(&models.Payment{}).
			Where("case_id = ? AND status = ?", cs.ID, models.PayPending).
			Update("status", models.PayCancelled).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Payment{}).
			Where("case_id = ?", cs.ID).
			Update("case_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&cs).Error
	})
	if err != nil {
		return fiber.ErrInternalServerError
	}

	// Rows are gone; leftover files are only a disk leak, not a
	// consistency problem.
	_ = h.store.BulkDelete(paths)

	return c.JSON(fiber.Map{"message": "case deleted"})
}

// editable reports whether the client may still modify or delete the case.
func editable(s models.CaseStatus) bool {
	switch s {
	case models.CaseNew, models.CaseAwaitingPayment, models.CaseCancelled:
		return true
	}
	return false
}
