package cases

import (
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

// Extension allow-list; the mapped value lands in Document.FileType.
var allowedExtensions = map[string]string{
	".pdf":  "pdf",
	".jpg":  "image",
	".jpeg": "image",
	".png":  "image",
	".doc":  "doc",
	".docx": "doc",
}

var allowedContentTypes = map[string]bool{
	"application/pdf":    true,
	"image/jpeg":         true,
	"image/png":          true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// formFiles pulls the uploaded files out of the multipart form,
// accepting both "files" and "files[]" keys. Empty file parts are
// dropped silently.
func formFiles(c *fiber.Ctx) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		// No files attached at all is fine for case creation.
		return nil, nil
	}
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}

	kept := files[:0]
	for _, fh := range files {
		if fh.Size > 0 {
			kept = append(kept, fh)
		}
	}
	return kept, nil
}

// validateBatch checks count, size and type of every file before any
// byte is written. A single bad file rejects the whole batch.
func (h *Handler) validateBatch(files []*multipart.FileHeader) error {
	if len(files) > h.maxFiles {
		return fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("max %d files allowed", h.maxFiles))
	}
	for _, fh := range files {
		if fh.Size > h.maxSize {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("%s: max %dMB per file", fh.Filename, h.maxSize/(1024*1024)))
		}
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if _, ok := allowedExtensions[ext]; !ok {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("%s: only PDF, JPG, PNG, DOC and DOCX are allowed", fh.Filename))
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = mime.TypeByExtension(ext)
		}
		if ct != "" && !allowedContentTypes[strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))] {
			return fiber.NewError(fiber.StatusBadRequest,
				fmt.Sprintf("%s: unsupported content type %s", fh.Filename, ct))
		}
	}
	return nil
}

// saveOne stores one file on disk and inserts its Document row inside
// the caller's transaction. Returns the created row and the stored
// path so the caller can clean up on rollback.
func (h *Handler) saveOne(tx *gorm.DB, caseID uuid.UUID, fh *multipart.FileHeader) (*models.Document, string, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	name := h.store.MakeObjectName(fh.Filename)
	path, err := h.store.Save(name, f)
	if err != nil {
		return nil, "", err
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	doc := models.Document{
		CaseID:           caseID,
		Filename:         name,
		OriginalFilename: fh.Filename,
		FileType:         allowedExtensions[ext],
		FileSize:         fh.Size,
		FilePath:         path,
	}
	if err := tx.Create(&doc).Error; err != nil {
		return nil, path, err
	}
	return &doc, path, nil
}

// Upload Case Files godoc
// @Summary      Upload case files
// @Description  Client (owner) attaches more documents to an existing case; the batch is all-or-nothing
// @Tags         files
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id     path      string  true  "case id (uuid)"
// @Param        files  formData  []file  true  "PDF/JPG/PNG/DOC/DOCX"
// @Success      201    {array}   models.Document
// @Failure      400    {object}  models.ErrorResponse
// @Failure      403    {object}  models.ErrorResponse
// @Router       /cases/{id}/documents [post]
func (h *Handler) UploadFiles(c *fiber.Ctx) error {
	clientID := auth.MustUserID(c)
	caseID, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var cs models.Case
	if err := h.db.Where("id = ? AND user_id = ?", caseID, clientID).First(&cs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrForbidden
		}
		return fiber.ErrInternalServerError
	}

	files, err := formFiles(c)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "files are required (use key: files)")
	}

	var existing int64
	if err := h.db.Model(&models.Document{}).Where("case_id = ?", cs.ID).Count(&existing).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if int(existing)+len(files) > h.maxFiles {
		return fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("max %d files per case", h.maxFiles))
	}
	if err := h.validateBatch(files); err != nil {
		return err
	}

	docs := make([]models.Document, 0, len(files))
	saved := make([]string, 0, len(files))
	err = h.db.Transaction(func(tx *gorm.DB) error {
		for _, fh := range files {
			doc, path, err := h.saveOne(tx, cs.ID, fh)
			if err != nil {
				return err
			}
			saved = append(saved, path)
			docs = append(docs, *doc)
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

	return c.Status(fiber.StatusCreated).JSON(docs)
}

// Download Document godoc
// @Summary      Download a document
// @Description  Case owner or staff downloads the original file
// @Tags         files
// @Security     BearerAuth
// @Produce      application/octet-stream
// @Param        documentID  path string true "document id (uuid)"
// @Success      200
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{documentID}/download [get]
func (h *Handler) Download(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	role := auth.MustRole(c)
	docID, err := auth.ParseUUIDParam(c, "documentID")
	if err != nil {
		return err
	}

	var doc models.Document
	if err := h.db.Preload("Case").First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	staff := role == string(models.RoleOperator) || role == string(models.RoleAdmin)
	if !staff && doc.Case.UserID.String() != userID {
		return fiber.ErrForbidden
	}

	return c.Download(doc.FilePath, doc.OriginalFilename)
}

// Delete Document godoc
// @Summary      Delete a document
// @Description  Case owner removes a document before the case is paid
// @Tags         files
// @Security     BearerAuth
// @Produce      json
// @Param        documentID  path string true "document id (uuid)"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /documents/{documentID} [delete]
func (h *Handler) DeleteDocument(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	docID, err := auth.ParseUUIDParam(c, "documentID")
	if err != nil {
		return err
	}

	var doc models.Document
	if err := h.db.Preload("Case").First(&doc, "id = ?", docID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if doc.Case.UserID.String() != userID {
		return fiber.ErrNotFound
	}
	if !editable(doc.Case.Status) {
		return fiber.NewError(fiber.StatusConflict, "documents of a paid case cannot be removed")
	}

	if err := h.db.Delete(&doc).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	_ = h.store.Delete(doc.FilePath)

	return c.JSON(fiber.Map{"message": "document deleted"})
}
