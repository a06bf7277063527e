package analysis

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

// Get Analysis godoc
// @Summary      Case analysis
// @Description  Case owner or staff reads the generated analysis
// @Tags         analysis
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "case id (uuid)"
// @Success      200  {object}  models.Analysis
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id}/analysis [get]
func (h *Handler) GetForCase(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	role := auth.MustRole(c)
	caseID, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var cs models.Case
	if err := h.db.First(&cs, "id = ?", caseID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	staff := role == string(models.RoleOperator) || role == string(models.RoleAdmin)
	if !staff && cs.UserID.String() != userID {
		return fiber.ErrForbidden
	}

	var an models.Analysis
	if err := h.db.Where("case_id = ?", caseID).First(&an).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "analysis not ready yet")
		}
		return fiber.ErrInternalServerError
	}

	return c.JSON(an)
}
