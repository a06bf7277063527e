package notify

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

type Handler struct {
	db  *gorm.DB
	svc *Service
}

func NewHandler(db *gorm.DB, svc *Service) *Handler { return &Handler{db: db, svc: svc} }

// @Summary      List my notifications
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        unread_only  query bool false "only entries without read_at"
// @Success      200  {array}   models.Notification
// @Failure      401  {object}  models.ErrorResponse
// @Router       /notifications [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	q := h.db.Where("user_id = ?", userID)
	if c.QueryBool("unread_only") {
		q = q.Where("read_at IS NULL")
	}

	list := []models.Notification{}
	if err := q.Order("created_at DESC").Limit(50).Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(list)
}

// @Summary      Unread notification count
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]int64
// @Router       /notifications/unread-count [get]
func (h *Handler) UnreadCount(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	var count int64
	if err := h.db.Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"unread": count})
}

// @Summary      Mark notification as read
// @Tags         notifications
// @Security     BearerAuth
// @Param        id  path string true "notification id (uuid)"
// @Success      200  {object}  map[string]bool
// @Failure      404  {object}  models.ErrorResponse
// @Router       /notifications/{id}/read [post]
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	id := c.Params("id")

	var n models.Notification
	if err := h.db.First(&n, "id = ? AND user_id = ?", id, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if n.ReadAt == nil {
		now := time.Now()
		n.ReadAt = &now
		if err := h.db.Save(&n).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Failed notifications stay failed until this endpoint re-triggers them.
//
// @Summary      Re-send a failed notification
// @Tags         notifications
// @Security     BearerAuth
// @Param        id  path string true "notification id (uuid)"
// @Success      200  {object}  models.Notification
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Router       /notifications/{id}/resend [post]
func (h *Handler) Resend(c *fiber.Ctx) error {
	userID := auth.MustUserUUID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid notification id")
	}

	n, err := h.svc.Resend(h.db, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		if n == nil {
			return fiber.NewError(fiber.StatusConflict, "notification is not in failed state")
		}
		// Provider failed again; the row already records the error.
	}
	return c.JSON(n)
}
