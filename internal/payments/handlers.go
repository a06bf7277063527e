package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/internal/invoice"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
	"github.com/mkowalczyk/prawnik-backend/pkg/pricing"
	"github.com/mkowalczyk/prawnik-backend/pkg/utils"
	"github.com/mkowalczyk/prawnik-backend/pkg/validation"
)

// Notifier is the slice of the notification service the payment flow
// needs; kept as an interface so tests can stub delivery.
type Notifier interface {
	PaymentConfirmed(db *gorm.DB, cs *models.Case, amount float64)
}

type Handler struct {
	db            *gorm.DB
	payu          *PayU
	inv           *invoice.Fakturownia
	notifier      Notifier
	notifyURL     string
	allowSimulate bool
}

func NewHandler(db *gorm.DB, payu *PayU, inv *invoice.Fakturownia, notifier Notifier, notifyURL string, allowSimulate bool) *Handler {
	return &Handler{
		db:            db,
		payu:          payu,
		inv:           inv,
		notifier:      notifier,
		notifyURL:     notifyURL,
		allowSimulate: allowSimulate,
	}
}

// ===== DTOs =====

type CreatePaymentRequest struct {
	CaseID    string  `json:"case_id" validate:"required,uuid4"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	PromoCode string  `json:"promo_code" validate:"omitempty,promocode"`
}

type PaymentResponse struct {
	ID          uuid.UUID        `json:"id"`
	CaseID      *uuid.UUID       `json:"case_id"`
	Amount      float64          `json:"amount"`
	Currency    string           `json:"currency"`
	Status      models.PayStatus `json:"status"`
	PaymentURL  string           `json:"payment_url"`
	PromoCode   string           `json:"promo_code,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	PaidAt      *time.Time       `json:"paid_at"`
	Description string           `json:"description"`
}

func toResponse(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID: p.ID, CaseID: p.CaseID, Amount: p.Amount, Currency: p.Currency,
		Status: p.Status, PaymentURL: p.PaymentURL, PromoCode: p.PromoCode,
		CreatedAt: p.CreatedAt, PaidAt: p.PaidAt, Description: p.Description,
	}
}

// ===== Create =====

// @Summary      Create payment
// @Description  Client starts the checkout for a case; the amount is recomputed server-side
// @Tags         payments
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreatePaymentRequest  true  "Payment payload"
// @Success      201  {object}  PaymentResponse
// @Failure      400  {object}  models.ErrorResponse  "amount mismatch or bad promo"
// @Failure      404  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "a payment already exists for this case"
// @Router       /payments [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreatePaymentRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	clientUUID := auth.MustUserUUID(c)

	var cs models.Case
	if err := h.db.Preload("User").
		Where("id = ? AND user_id = ?", in.CaseID, clientUUID).
		First(&cs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	if cs.Status != models.CaseNew && cs.Status != models.CaseAwaitingPayment {
		return fiber.NewError(fiber.StatusConflict, "case is not payable in its current status")
	}

	// One active payment per case.
	var active int64
	if err := h.db.Model(&models.Payment{}).
		Where("case_id = ? AND status IN ?", cs.ID, []models.PayStatus{models.PayPending, models.PayPaid}).
		Count(&active).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if active > 0 {
		return fiber.NewError(fiber.StatusConflict, "a payment already exists for this case")
	}

	// Never trust the client's amount; recompute from the package price
	// and the promo code.
	var promo *models.PromoCode
	code := strings.ToUpper(strings.TrimSpace(in.PromoCode))
	if code != "" {
		var pc models.PromoCode
		if err := h.db.Where("code = ?", code).First(&pc).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unknown promo code")
		}
		promo = &pc
	}
	computed, err := pricing.ComputeAmount(cs.PackageType, promo, time.Now())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if !pricing.AmountMatches(in.Amount, computed) {
		return fiber.NewError(fiber.StatusBadRequest,
			fmt.Sprintf("amount mismatch: expected %.2f", computed))
	}

	pay := models.Payment{
		UserID:      clientUUID,
		CaseID:      &cs.ID,
		Amount:      computed,
		Currency:    "PLN",
		PaymentType: models.PayForAnalysis,
		Description: fmt.Sprintf("Analiza prawna: %s", cs.Title),
		Provider:    models.ProviderPayU,
		Status:      models.PayPending,
		PromoCode:   code,
	}
	if err := h.db.Create(&pay).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	buyerEmail := ""
	if cs.User.Email != nil {
		buyerEmail = *cs.User.Email
	}
	order, err := h.payu.CreateOrder(c.Context(), pay.ID, pay.Amount, pay.Currency,
		pay.Description, buyerEmail, h.notifyURL)
	if err != nil {
		_ = h.db.Model(&pay).Update("status", models.PayFailed).Error
		return fiber.NewError(fiber.StatusBadGateway, "payment gateway unavailable")
	}

	if err := h.db.Model(&pay).Updates(map[string]any{
		"external_payment_id": order.OrderID,
		"payment_url":         order.RedirectURI,
	}).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	pay.ExternalPaymentID = &order.OrderID
	pay.PaymentURL = order.RedirectURI

	if cs.Status == models.CaseNew {
		if err := h.db.Model(&cs).Update("status", models.CaseAwaitingPayment).Error; err != nil {
			return fiber.ErrInternalServerError
		}
		utils.LogCaseEvent(c.Context(), h.db, cs.ID, clientUUID, "payment_created",
			models.CaseNew, models.CaseAwaitingPayment, "")
	}

	return c.Status(fiber.StatusCreated).JSON(toResponse(&pay))
}

// ===== Read =====

// @Summary      List my payments
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  PaymentResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /payments/mine [get]
func (h *Handler) ListMine(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)

	var list []models.Payment
	if err := h.db.Where("user_id = ?", userID).
		Order("created_at DESC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	out := make([]PaymentResponse, 0, len(list))
	for i := range list {
		out = append(out, toResponse(&list[i]))
	}
	return c.JSON(out)
}

// @Summary      Payment detail
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "payment id (uuid)"
// @Success      200  {object}  PaymentResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /payments/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	userID := auth.MustUserID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var pay models.Payment
	if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&pay).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}
	return c.JSON(toResponse(&pay))
}

// ===== Webhook =====

type payuNotification struct {
	Order struct {
		OrderID    string `json:"orderId"`
		ExtOrderID string `json:"extOrderId"`
		Status     string `json:"status"`
	} `json:"order"`
}

// @Summary      PayU notification webhook
// @Description  PayU calls this endpoint on order status changes; unauthenticated
// @Tags         payments
// @Accept       json
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /payments/webhook/payu [post]
func (h *Handler) PayUWebhook(c *fiber.Ctx) error {
	var in payuNotification
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if in.Order.OrderID == "" {
		return fiber.ErrBadRequest
	}

	var pay models.Payment
	if err := h.db.Where("external_payment_id = ?", in.Order.OrderID).First(&pay).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Ack unknown orders so PayU stops retrying.
			return c.JSON(fiber.Map{"status": "ignored"})
		}
		return fiber.ErrInternalServerError
	}

	switch in.Order.Status {
	case "COMPLETED":
		if err := h.completePayment(c.Context(), pay.ID); err != nil {
			return fiber.ErrInternalServerError
		}
	case "CANCELED":
		if pay.Status == models.PayPending {
			if err := h.db.Model(&pay).Update("status", models.PayCancelled).Error; err != nil {
				return fiber.ErrInternalServerError
			}
		}
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

// ===== Dev simulation =====

// @Summary      Simulate a successful payment (non-production only)
// @Tags         payments
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "payment id (uuid)"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  models.ErrorResponse
// @Router       /payments/{id}/simulate-success [post]
func (h *Handler) SimulateSuccess(c *fiber.Ctx) error {
	if !h.allowSimulate {
		return fiber.ErrNotFound
	}
	userID := auth.MustUserID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var pay models.Payment
	if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&pay).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	if err := h.completePayment(c.Context(), pay.ID); err != nil {
		return fiber.ErrInternalServerError
	}
	return c.JSON(fiber.Map{"status": "paid"})
}

// completePayment is the single place a payment turns PAID. Row locks
// keep concurrent webhook retries idempotent: the second caller sees
// the payment already paid and exits without side effects.
func (h *Handler) completePayment(ctx context.Context, paymentID uuid.UUID) error {
	var (
		pay models.Payment
		cs  models.Case
	)

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&pay, "id = ?", paymentID).Error; err != nil {
			return err
		}
		if pay.Status == models.PayPaid {
			return nil
		}

		now := time.Now()
		if err := tx.Model(&models.Payment{}).Where("id = ?", pay.ID).
			Updates(map[string]any{
				"status":  models.PayPaid,
				"paid_at": now,
			}).Error; err != nil {
			return err
		}
		pay.Status = models.PayPaid
		pay.PaidAt = &now

		if pay.PromoCode != "" {
			if err := tx.Model(&models.PromoCode{}).
				Where("code = ?", pay.PromoCode).
				UpdateColumn("current_uses", gorm.Expr("current_uses + 1")).Error; err != nil {
				return err
			}
		}

		if pay.CaseID == nil {
			return nil
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&cs, "id = ?", *pay.CaseID).Error; err != nil {
			return err
		}
		if cs.Status == models.CaseNew || cs.Status == models.CaseAwaitingPayment {
			if err := tx.Model(&models.Case{}).Where("id = ?", cs.ID).
				Update("status", models.CasePaid).Error; err != nil {
				return err
			}
			utils.LogCaseEvent(ctx, tx, cs.ID, pay.UserID, "paid",
				cs.Status, models.CasePaid, "")
			cs.Status = models.CasePaid
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Post-commit side effects are best effort.
	if cs.ID != uuid.Nil {
		h.issueInvoice(ctx, &pay)
		if h.notifier != nil {
			h.notifier.PaymentConfirmed(h.db, &cs, pay.Amount)
		}
	}
	return nil
}

func (h *Handler) issueInvoice(ctx context.Context, pay *models.Payment) {
	if h.inv == nil || !h.inv.Configured() || pay.InvoiceNumber != "" {
		return
	}
	var buyer models.User
	if err := h.db.First(&buyer, "id = ?", pay.UserID).Error; err != nil {
		return
	}
	issued, err := h.inv.CreateForPayment(ctx, pay, &buyer)
	if err != nil {
		return
	}
	_ = h.db.Model(&models.Payment{}).Where("id = ?", pay.ID).
		Updates(map[string]any{
			"invoice_number":      issued.Number,
			"invoice_external_id": issued.ID,
		}).Error
}
