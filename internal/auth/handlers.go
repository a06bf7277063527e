package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
	"github.com/mkowalczyk/prawnik-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /auth/register
type RegisterRequest struct {
	Email       string `json:"email" validate:"required_without=Phone,omitempty,email,max=120"`
	Phone       string `json:"phone" validate:"required_without=Email,omitempty,phone"`
	Password    string `json:"password" validate:"omitempty,min=8,max=72"`
	FirstName   string `json:"first_name" validate:"omitempty,max=80"`
	LastName    string `json:"last_name" validate:"omitempty,max=80"`
	CompanyName string `json:"company_name" validate:"omitempty,max=120"`
}

// Request body for /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required"`
}

// Request body for /auth/phone/request-code
type RequestCodeRequest struct {
	Phone string `json:"phone" validate:"required,phone"`
}

// Request body for /auth/verify
type VerifyRequest struct {
	Email string `json:"email" validate:"required_without=Phone,omitempty,email"`
	Phone string `json:"phone" validate:"required_without=Email,omitempty,phone"`
	Code  string `json:"code" validate:"required,len=6"`
}

// Request body for /auth/google
type GoogleRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// Standard auth response
type AuthResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Profile response for /auth/me
type UserProfileResponse struct {
	ID          uuid.UUID           `json:"id"`
	Email       *string             `json:"email"`
	Phone       *string             `json:"phone"`
	FirstName   string              `json:"first_name"`
	LastName    string              `json:"last_name"`
	CompanyName string              `json:"company_name"`
	Role        models.Role         `json:"role"`
	Provider    models.AuthProvider `json:"auth_provider"`
	IsVerified  bool                `json:"is_verified"`
	CreatedAt   time.Time           `json:"created_at"`
}

/* ============================== Handler ================================= */

// CodeSender delivers a verification code to the user. Implemented by
// the notification service; declared here to avoid an import cycle.
type CodeSender interface {
	VerificationCode(db *gorm.DB, user *models.User, code string)
}

type Handler struct {
	db     *gorm.DB
	jwt    *JWT
	codes  *Codes
	google *GoogleVerifier
	sender CodeSender
}

func NewHandler(db *gorm.DB, jwt *JWT, codes *Codes, google *GoogleVerifier, sender CodeSender) *Handler {
	return &Handler{db: db, jwt: jwt, codes: codes, google: google, sender: sender}
}

func strptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (h *Handler) issue(c *fiber.Ctx, u *models.User, status int) error {
	token, err := h.jwt.IssueToken(u.ID.String(), string(u.Role))
	if err != nil {
		return fiber.ErrInternalServerError
	}
	return c.Status(status).JSON(AuthResponse{Token: token, Role: string(u.Role)})
}

/* =============================== Register =============================== */

// @Summary      Register
// @Description  Register with email+password or with a phone number
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  RegisterRequest  true  "Registration payload"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "account already exists"
// @Router       /auth/register [post]
func (h *Handler) Register(c *fiber.Ctx) error {
	var in RegisterRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}
	// Email accounts authenticate with a password; phone accounts with codes.
	if in.Email != "" && in.Password == "" {
		return validation.Respond(c, map[string][]string{
			"password": {"This field is required"},
		})
	}

	u := models.User{
		Email:       strptr(in.Email),
		Phone:       strptr(in.Phone),
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		CompanyName: in.CompanyName,
		Role:        models.RoleClient,
		Provider:    models.ProviderEmail,
	}
	if in.Email == "" {
		u.Provider = models.ProviderPhone
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.ErrInternalServerError
		}
		u.PasswordHash = string(hash)
	}

	if err := h.db.Create(&u).Error; err != nil {
		return fiber.NewError(fiber.StatusConflict, "account already exists with this email/phone")
	}

	// Best effort; a failed code delivery is recorded on the notification
	// row and must not fail registration.
	h.sendVerification(c, &u)

	return h.issue(c, &u, fiber.StatusCreated)
}

func (h *Handler) sendVerification(c *fiber.Ctx, u *models.User) {
	identity := ""
	if u.Phone != nil {
		identity = *u.Phone
	} else if u.Email != nil {
		identity = *u.Email
	}
	if identity == "" || h.codes == nil {
		return
	}
	code, err := h.codes.Issue(c.Context(), identity)
	if err != nil {
		return
	}
	if h.sender != nil {
		h.sender.VerificationCode(h.db, u, code)
	}
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate with email and password, receive a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /auth/login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	if err := h.db.Where("email = ?", in.Email).First(&u).Error; err != nil {
		return fiber.ErrUnauthorized
	}
	if !u.IsActive {
		return fiber.ErrUnauthorized
	}
	if u.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return fiber.ErrUnauthorized
	}

	now := time.Now()
	_ = h.db.Model(&u).Update("last_login", now).Error

	return h.issue(c, &u, fiber.StatusOK)
}

/* ============================ Phone code flow =========================== */

// @Summary      Request login code
// @Description  Send a one-time SMS code to the given phone; creates the account on first use
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  RequestCodeRequest  true  "Phone payload"
// @Success      200      {object}  map[string]string
// @Failure      400      {object}  models.ValidationErrorResponse
// @Router       /auth/phone/request-code [post]
func (h *Handler) RequestCode(c *fiber.Ctx) error {
	var in RequestCodeRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	var u models.User
	err := h.db.Where("phone = ?", in.Phone).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		u = models.User{Phone: &in.Phone, Role: models.RoleClient, Provider: models.ProviderPhone}
		if err := h.db.Create(&u).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	} else if err != nil {
		return fiber.ErrInternalServerError
	}
	if !u.IsActive {
		return fiber.ErrUnauthorized
	}

	code, err := h.codes.Issue(c.Context(), in.Phone)
	if err != nil {
		return fiber.ErrInternalServerError
	}
	if h.sender != nil {
		h.sender.VerificationCode(h.db, &u, code)
	}

	return c.JSON(fiber.Map{"message": "verification code sent"})
}

// @Summary      Verify code
// @Description  Exchange a one-time code for a JWT and mark the account verified
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  VerifyRequest  true  "Verification payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /auth/verify [post]
func (h *Handler) VerifyCode(c *fiber.Ctx) error {
	var in VerifyRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.ReplaceAll(strings.TrimSpace(in.Phone), " ", "")
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	identity := in.Phone
	q := h.db.Where("phone = ?", in.Phone)
	if in.Email != "" {
		identity = in.Email
		q = h.db.Where("email = ?", in.Email)
	}

	var u models.User
	if err := q.First(&u).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	if err := h.codes.Check(c.Context(), identity, in.Code); err != nil {
		if errors.Is(err, ErrCodeMismatch) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired code")
		}
		return fiber.ErrInternalServerError
	}

	now := time.Now()
	if err := h.db.Model(&u).Updates(map[string]any{
		"is_verified": true,
		"last_login":  now,
	}).Error; err != nil {
		return fiber.ErrInternalServerError
	}

	return h.issue(c, &u, fiber.StatusOK)
}

/* ============================= Google OAuth ============================= */

// @Summary      Google sign-in
// @Description  Exchange a Google ID token for a JWT (account created on first use)
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  GoogleRequest  true  "Google payload"
// @Success      200      {object}  AuthResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /auth/google [post]
func (h *Handler) GoogleCallback(c *fiber.Ctx) error {
	var in GoogleRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	profile, err := h.google.Verify(c.Context(), in.IDToken)
	if err != nil {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid Google token")
	}

	email := strings.ToLower(profile.Email)

	var u models.User
	err = h.db.Where("google_id = ?", profile.Sub).
		Or("email = ?", email).
		First(&u).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		u = models.User{
			Email:      strptr(email),
			FirstName:  profile.GivenName,
			LastName:   profile.FamilyName,
			Role:       models.RoleClient,
			Provider:   models.ProviderGoogle,
			GoogleID:   &profile.Sub,
			IsVerified: profile.EmailVerified == "true",
		}
		if err := h.db.Create(&u).Error; err != nil {
			return fiber.ErrInternalServerError
		}
	case err != nil:
		return fiber.ErrInternalServerError
	default:
		// Link the Google identity to an existing email account.
		if u.GoogleID == nil {
			_ = h.db.Model(&u).Update("google_id", profile.Sub).Error
		}
	}

	if !u.IsActive {
		return fiber.ErrUnauthorized
	}

	now := time.Now()
	_ = h.db.Model(&u).Update("last_login", now).Error

	return h.issue(c, &u, fiber.StatusOK)
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  UserProfileResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /auth/me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	userID := MustUserID(c)

	var u models.User
	if err := h.db.First(&u, "id = ?", userID).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	resp := UserProfileResponse{
		ID:          u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		CompanyName: u.CompanyName,
		Role:        u.Role,
		Provider:    u.Provider,
		IsVerified:  u.IsVerified,
		CreatedAt:   u.CreatedAt,
	}
	return c.JSON(resp)
}
