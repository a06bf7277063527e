package messaging

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
	"github.com/mkowalczyk/prawnik-backend/pkg/sanitize"
	"github.com/mkowalczyk/prawnik-backend/pkg/validation"
)

// Notifier is the slice of the notification service used when a new
// message arrives.
type Notifier interface {
	NewMessage(db *gorm.DB, recipient *models.User, cs *models.Case, subject string)
}

type Handler struct {
	db       *gorm.DB
	notifier Notifier
}

func NewHandler(db *gorm.DB, notifier Notifier) *Handler {
	return &Handler{db: db, notifier: notifier}
}

// ===== DTOs =====

type SendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"omitempty,uuid4"`
	CaseID      string `json:"case_id" validate:"omitempty,uuid4"`
	Subject     string `json:"subject" validate:"max=200"`
	Content     string `json:"content" validate:"required,max=10000"`
	Priority    string `json:"priority" validate:"omitempty,oneof=low normal high"`
}

type ConversationItem struct {
	UserID      uuid.UUID `json:"user_id"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	LastMessage string    `json:"last_message"`
	LastAt      time.Time `json:"last_at"`
	Unread      int64     `json:"unread"`
}

// ===== Send =====

// @Summary      Send message
// @Description  Clients can only write to staff; staff can write to anyone with access to the case
// @Tags         messages
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  SendMessageRequest  true  "Message payload"
// @Success      201  {object}  models.Message
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Router       /messages [post]
func (h *Handler) Send(c *fiber.Ctx) error {
	var in SendMessageRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	senderUUID := auth.MustUserUUID(c)
	var sender models.User
	if err := h.db.First(&sender, "id = ?", senderUUID).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	var cs *models.Case
	if in.CaseID != "" {
		var loaded models.Case
		if err := h.db.First(&loaded, "id = ?", in.CaseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.ErrNotFound
			}
			return fiber.ErrInternalServerError
		}
		if !sender.IsStaff() && loaded.UserID != sender.ID {
			return fiber.ErrForbidden
		}
		cs = &loaded
	}

	recipient, err := h.resolveRecipient(&sender, cs, in.RecipientID)
	if err != nil {
		return err
	}
	if !sender.IsStaff() && !recipient.IsStaff() {
		return fiber.NewError(fiber.StatusForbidden, "clients can only message the support team")
	}

	priority := in.Priority
	if priority == "" {
		priority = "normal"
	}
	msg := models.Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Subject:     strings.TrimSpace(in.Subject),
		Content:     strings.TrimSpace(in.Content),
		Priority:    priority,
	}
	if cs != nil {
		msg.CaseID = &cs.ID
	}
	if err := h.db.Create(&msg).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	if h.notifier != nil {
		h.notifier.NewMessage(h.db, recipient, cs, msg.Subject)
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// resolveRecipient picks the target user. Clients without an explicit
// recipient reach the operator assigned to the case, falling back to
// any operator.
func (h *Handler) resolveRecipient(sender *models.User, cs *models.Case, recipientID string) (*models.User, error) {
	if recipientID != "" {
		var u models.User
		if err := h.db.First(&u, "id = ?", recipientID).Error; err != nil {
			return nil, fiber.NewError(fiber.StatusNotFound, "recipient not found")
		}
		return &u, nil
	}
	if sender.IsStaff() {
		if cs == nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, "recipient_id is required")
		}
		var u models.User
		if err := h.db.First(&u, "id = ?", cs.UserID).Error; err != nil {
			return nil, fiber.ErrInternalServerError
		}
		return &u, nil
	}

	if cs != nil && cs.OperatorID != nil {
		var u models.User
		if err := h.db.First(&u, "id = ?", *cs.OperatorID).Error; err == nil {
			return &u, nil
		}
	}
	var u models.User
	err := h.db.Where("role = ? AND is_active = ?", models.RoleOperator, true).
		Order("created_at ASC").First(&u).Error
	if err != nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "no operator available")
	}
	return &u, nil
}

// ===== Conversations =====

// @Summary      List conversations
// @Description  Conversations grouped by counterpart with last message preview and unread count
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  ConversationItem
// @Failure      401  {object}  models.ErrorResponse
// @Router       /messages/conversations [get]
func (h *Handler) Conversations(c *fiber.Ctx) error {
	me := auth.MustUserUUID(c)

	var msgs []models.Message
	if err := h.db.
		Where("sender_id = ? OR recipient_id = ?", me, me).
		Order("created_at DESC").
		Find(&msgs).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	type agg struct {
		last   *models.Message
		unread int64
	}
	byUser := map[uuid.UUID]*agg{}
	order := []uuid.UUID{}
	for i := range msgs {
		m := &msgs[i]
		other := m.SenderID
		if other == me {
			other = m.RecipientID
		}
		a, ok := byUser[other]
		if !ok {
			a = &agg{last: m}
			byUser[other] = a
			order = append(order, other)
		}
		if m.RecipientID == me && m.ReadAt == nil {
			a.unread++
		}
	}

	items := make([]ConversationItem, 0, len(order))
	for _, id := range order {
		a := byUser[id]
		var u models.User
		if err := h.db.First(&u, "id = ?", id).Error; err != nil {
			continue
		}
		items = append(items, ConversationItem{
			UserID:      id,
			Name:        u.FullName(),
			Role:        string(u.Role),
			LastMessage: sanitize.Summary(a.last.Content, 120),
			LastAt:      a.last.CreatedAt,
			Unread:      a.unread,
		})
	}

	return c.JSON(items)
}

// @Summary      Conversation thread
// @Description  All messages between the caller and a counterpart, oldest first; optional case filter
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        userID  path  string true  "counterpart user id (uuid)"
// @Param        case_id query string false "filter by case"
// @Success      200  {array}  models.Message
// @Failure      401  {object}  models.ErrorResponse
// @Router       /messages/with/{userID} [get]
func (h *Handler) Thread(c *fiber.Ctx) error {
	me := auth.MustUserUUID(c)
	other, err := auth.ParseUUIDParam(c, "userID")
	if err != nil {
		return err
	}

	dbq := h.db.Where(
		"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		me, other, other, me)
	if caseID := c.Query("case_id"); caseID != "" {
		dbq = dbq.Where("case_id = ?", caseID)
	}

	var msgs []models.Message
	if err := dbq.Order("created_at ASC").Find(&msgs).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return c.JSON(msgs)
}

// @Summary      Mark conversation read
// @Description  Marks every message from the counterpart to the caller as read
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Param        userID  path string true "counterpart user id (uuid)"
// @Success      200  {object}  map[string]int64
// @Failure      401  {object}  models.ErrorResponse
// @Router       /messages/with/{userID}/read [post]
func (h *Handler) MarkRead(c *fiber.Ctx) error {
	me := auth.MustUserUUID(c)
	other, err := auth.ParseUUIDParam(c, "userID")
	if err != nil {
		return err
	}

	now := time.Now()
	res := h.db.Model(&models.Message{}).
		Where("sender_id = ? AND recipient_id = ? AND read_at IS NULL", other, me).
		Update("read_at", now)
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"marked": res.RowsAffected})
}

// @Summary      Unread message count
// @Tags         messages
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]int64
// @Failure      401  {object}  models.ErrorResponse
// @Router       /messages/unread-count [get]
func (h *Handler) UnreadCount(c *fiber.Ctx) error {
	me := auth.MustUserUUID(c)

	var count int64
	if err := h.db.Model(&models.Message{}).
		Where("recipient_id = ? AND read_at IS NULL", me).
		Count(&count).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"unread": count})
}
