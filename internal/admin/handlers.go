package admin

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
	"github.com/mkowalczyk/prawnik-backend/pkg/validation"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

// ===== DTOs =====

type UpdateUserRequest struct {
	Role     *string `json:"role" validate:"omitempty,oneof=client operator admin"`
	IsActive *bool   `json:"is_active"`
}

type PromoRequest struct {
	Code            string  `json:"code" validate:"required,promocode"`
	Description     string  `json:"description" validate:"max=500"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	DiscountAmount  float64 `json:"discount_amount" validate:"gte=0"`
	PackageType     string  `json:"package_type" validate:"omitempty,oneof=basic standard premium express"`
	ValidFrom       string  `json:"valid_from" validate:"required"`
	ValidTo         string  `json:"valid_to" validate:"required"`
	MaxUses         int     `json:"max_uses" validate:"gte=0"`
	IsActive        *bool   `json:"is_active"`
}

type StatsResponse struct {
	Users         int64            `json:"users"`
	ActiveUsers   int64            `json:"active_users"`
	Cases         int64            `json:"cases"`
	CasesByStatus map[string]int64 `json:"cases_by_status"`
	Revenue       float64          `json:"revenue"`
	PaymentsPaid  int64            `json:"payments_paid"`
	NewCases30d   int64            `json:"new_cases_30d"`
}

// ===== Users =====

// @Summary      List users
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        page     query int    false "page"
// @Param        pageSize query int    false "pageSize"
// @Param        role     query string false "filter by role"
// @Param        q        query string false "search in name/email"
// @Success      200  {object}  map[string]any
// @Failure      403  {object}  models.ErrorResponse
// @Router       /admin/users [get]
func (h *Handler) ListUsers(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	size := c.QueryInt("pageSize", 20)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	dbq := h.db.Model(&models.User{})
	if role := c.Query("role"); role != "" {
		dbq = dbq.Where("role = ?", role)
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		dbq = dbq.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like)
	}

	var total int64
	if err := dbq.Count(&total).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	var users []models.User
	if err := dbq.Order("created_at DESC").
		Offset((page - 1) * size).Limit(size).
		Find(&users).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(fiber.Map{
		"page": page, "pageSize": size, "total": total,
		"pages": int(math.Ceil(float64(total) / float64(size))),
		"items": users,
	})
}

// @Summary      Update a user
// @Description  Change role or (de)activate an account; admins cannot deactivate themselves
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string             true "user id (uuid)"
// @Param        payload  body UpdateUserRequest  true "fields to change"
// @Success      200  {object}  models.User
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/users/{id} [patch]
func (h *Handler) UpdateUser(c *fiber.Ctx) error {
	adminID := auth.MustUserID(c)
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var in UpdateUserRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	updates := map[string]any{}
	if in.Role != nil {
		updates["role"] = *in.Role
	}
	if in.IsActive != nil {
		if u.ID.String() == adminID && !*in.IsActive {
			return fiber.NewError(fiber.StatusBadRequest, "cannot deactivate your own account")
		}
		updates["is_active"] = *in.IsActive
	}
	if len(updates) > 0 {
		if err := h.db.Model(&u).Updates(updates).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	}

	return c.JSON(u)
}

// ===== Promo codes =====

func (in *PromoRequest) toModel() (*models.PromoCode, error) {
	from, err := time.Parse("2006-01-02", in.ValidFrom)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "valid_from must be YYYY-MM-DD")
	}
	to, err := time.Parse("2006-01-02", in.ValidTo)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "valid_to must be YYYY-MM-DD")
	}
	if !to.After(from) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "valid_to must be after valid_from")
	}
	if (in.DiscountPercent > 0) == (in.DiscountAmount > 0) {
		return nil, fiber.NewError(fiber.StatusBadRequest,
			"set exactly one of discount_percent or discount_amount")
	}

	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	return &models.PromoCode{
		Code:            strings.ToUpper(strings.TrimSpace(in.Code)),
		Description:     in.Description,
		DiscountPercent: in.DiscountPercent,
		DiscountAmount:  in.DiscountAmount,
		PackageType:     models.PackageType(in.PackageType),
		ValidFrom:       from,
		ValidTo:         to.Add(24*time.Hour - time.Second), // inclusive end date
		MaxUses:         in.MaxUses,
		IsActive:        active,
	}, nil
}

// @Summary      List promo codes
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}  models.PromoCode
// @Failure      403  {object}  models.ErrorResponse
// @Router       /admin/promo-codes [get]
func (h *Handler) ListPromos(c *fiber.Ctx) error {
	var list []models.PromoCode
	if err := h.db.Order("created_at DESC").Find(&list).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if list == nil {
		list = []models.PromoCode{}
	}
	return c.JSON(list)
}

// @Summary      Create promo code
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body PromoRequest true "promo payload"
// @Success      201  {object}  models.PromoCode
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      409  {object}  models.ErrorResponse  "code already exists"
// @Router       /admin/promo-codes [post]
func (h *Handler) CreatePromo(c *fiber.Ctx) error {
	var in PromoRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	promo, err := in.toModel()
	if err != nil {
		return err
	}
	if err := h.db.Create(promo).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "promo code already exists")
	}
	return c.Status(fiber.StatusCreated).JSON(promo)
}

// @Summary      Update promo code
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path string       true "promo id (uuid)"
// @Param        payload  body PromoRequest true "promo payload"
// @Success      200  {object}  models.PromoCode
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/promo-codes/{id} [put]
func (h *Handler) UpdatePromo(c *fiber.Ctx) error {
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	var in PromoRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var existing models.PromoCode
	if err := h.db.First(&existing, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.ErrNotFound
		}
		return fiber.ErrInternalServerError
	}

	promo, err := in.toModel()
	if err != nil {
		return err
	}
	promo.ID = existing.ID
	promo.CurrentUses = existing.CurrentUses
	promo.CreatedAt = existing.CreatedAt
	if err := h.db.Save(promo).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "promo code already exists")
	}
	return c.JSON(promo)
}

// @Summary      Delete promo code
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        id  path string true "promo id (uuid)"
// @Success      200  {object}  map[string]string
// @Failure      404  {object}  models.ErrorResponse
// @Router       /admin/promo-codes/{id} [delete]
func (h *Handler) DeletePromo(c *fiber.Ctx) error {
	id, err := auth.ParseUUIDParam(c, "id")
	if err != nil {
		return err
	}

	res := h.db.Delete(&models.PromoCode{}, "id = ?", id)
	if res.Error != nil {
		return fiber.ErrInternalServerError
	}
	if res.RowsAffected == 0 {
		return fiber.ErrNotFound
	}
	return c.JSON(fiber.Map{"message": "promo code deleted"})
}

// ===== Stats =====

// @Summary      Platform statistics
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  StatsResponse
// @Failure      403  {object}  models.ErrorResponse
// @Router       /admin/stats [get]
func (h *Handler) Stats(c *fiber.Ctx) error {
	var out StatsResponse

	if err := h.db.Model(&models.User{}).Count(&out.Users).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if err := h.db.Model(&models.User{}).Where("is_active = ?", true).
		Count(&out.ActiveUsers).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if err := h.db.Model(&models.Case{}).Count(&out.Cases).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	type statusCount struct {
		Status string
		N      int64
	}
	var byStatus []statusCount
	if err := h.db.Model(&models.Case{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	out.CasesByStatus = map[string]int64{}
	for _, s := range byStatus {
		out.CasesByStatus[s.Status] = s.N
	}

	if err := h.db.Model(&models.Payment{}).
		Where("status = ?", models.PayPaid).
		Count(&out.PaymentsPaid).Error; err != nil {
		return fiber.ErrInternalServerError
	}
	if err := h.db.Model(&models.Payment{}).
		Where("status = ?", models.PayPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&out.Revenue).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	since := time.Now().AddDate(0, 0, -30)
	if err := h.db.Model(&models.Case{}).
		Where("created_at >= ?", since).
		Count(&out.NewCases30d).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return c.JSON(out)
}
