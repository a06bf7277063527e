package models

import (
	"time"

	"github.com/google/uuid"
)

/* =============================== Enums ================================== */

// Role defines the type of user in the system.
type Role string

const (
	RoleClient   Role = "client"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

// AuthProvider records how the account was created.
type AuthProvider string

const (
	ProviderEmail  AuthProvider = "email"
	ProviderPhone  AuthProvider = "phone"
	ProviderGoogle AuthProvider = "google"
)

// CaseStatus defines lifecycle states for a case.
type CaseStatus string

const (
	CaseNew             CaseStatus = "new"
	CaseAwaitingPayment CaseStatus = "awaiting_payment"
	CasePaid            CaseStatus = "paid"
	CaseProcessing      CaseStatus = "processing"
	CaseAnalysisReady   CaseStatus = "analysis_ready"
	CaseDocumentsReady  CaseStatus = "documents_ready"
	CaseCompleted       CaseStatus = "completed"
	CaseCancelled       CaseStatus = "cancelled"
)

// PackageType maps to a fixed price table in pkg/pricing.
type PackageType string

const (
	PackageBasic    PackageType = "basic"
	PackageStandard PackageType = "standard"
	PackagePremium  PackageType = "premium"
	PackageExpress  PackageType = "express"
)

// PayStatus defines lifecycle states for a payment.
type PayStatus string

const (
	PayPending   PayStatus = "pending"
	PayPaid      PayStatus = "paid"
	PayFailed    PayStatus = "failed"
	PayRefunded  PayStatus = "refunded"
	PayCancelled PayStatus = "cancelled"
)

// PayProvider identifies the external payment gateway.
type PayProvider string

const (
	ProviderPayU   PayProvider = "payu"
	ProviderStripe PayProvider = "stripe"
)

// PayType describes what the payment buys.
type PayType string

const (
	PayForAnalysis      PayType = "analysis"
	PayForLegalDocument PayType = "legal_document"
	PayForPackage       PayType = "package"
)

// Channel is the delivery channel of a notification.
type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

// Template identifies a notification template (see internal/notify).
type Template string

const (
	TplPaymentReceived  Template = "payment_received"
	TplAnalysisStarted  Template = "analysis_started"
	TplAnalysisReady    Template = "analysis_ready"
	TplDocumentsReady   Template = "documents_ready"
	TplUnclearScans     Template = "unclear_scans"
	TplCaseCompleted    Template = "case_completed"
	TplVerificationCode Template = "verification_code"
	TplNewMessage       Template = "new_message"
)

// NotifyStatus defines delivery states of a notification.
type NotifyStatus string

const (
	NotifyPending NotifyStatus = "pending"
	NotifySent    NotifyStatus = "sent"
	NotifyFailed  NotifyStatus = "failed"
)

/* =============================== Entities =============================== */

// User represents a client, operator or admin account. Either email or
// phone (or both) must be set; the password hash is empty for social
// logins.
type User struct {
	ID           uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email        *string      `gorm:"uniqueIndex" json:"email"`
	Phone        *string      `gorm:"uniqueIndex" json:"phone"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	CompanyName  string       `json:"company_name"`
	PasswordHash string       `gorm:"column:password_hash" json:"-"`
	Role         Role         `gorm:"type:varchar(20);default:'client'" json:"role"`
	Provider     AuthProvider `gorm:"type:varchar(20);default:'email'" json:"auth_provider"`
	GoogleID     *string      `gorm:"uniqueIndex" json:"-"`
	IsActive     bool         `gorm:"default:true" json:"is_active"`
	IsVerified   bool         `gorm:"default:false" json:"is_verified"`
	CreatedAt    time.Time    `json:"created_at"`
	LastLogin    *time.Time   `json:"last_login"`

	Cases         []Case         `gorm:"foreignKey:UserID" json:"-"`
	Payments      []Payment      `gorm:"foreignKey:UserID" json:"-"`
	Notifications []Notification `gorm:"foreignKey:UserID" json:"-"`
}

// FullName returns "First Last" falling back to the email address.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" && u.Email != nil {
		return *u.Email
	}
	return name
}

// IsStaff reports whether the user holds an operator or admin role.
func (u *User) IsStaff() bool {
	return u.Role == RoleOperator || u.Role == RoleAdmin
}

// Case represents a client matter tracked from intake to completion.
type Case struct {
	ID              uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID          uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	OperatorID      *uuid.UUID  `gorm:"type:uuid;index" json:"operator_id"`
	Title           string      `gorm:"not null" json:"title"`
	Description     string      `json:"description"`
	ClientNotes     string      `json:"client_notes"`
	ClientContext   string      `json:"client_context"`
	ClientAgreement string      `json:"client_agreement"`
	Status          CaseStatus  `gorm:"type:varchar(20);default:'new';index" json:"status"`
	PackageType     PackageType `gorm:"type:varchar(20)" json:"package_type"`
	PackagePrice    float64     `json:"package_price"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	User           User            `gorm:"foreignKey:UserID" json:"-"`
	Documents      []Document      `gorm:"constraint:OnDelete:CASCADE" json:"documents,omitempty"`
	Analysis       *Analysis       `gorm:"constraint:OnDelete:CASCADE" json:"analysis,omitempty"`
	LegalDocuments []LegalDocument `gorm:"constraint:OnDelete:CASCADE" json:"legal_documents,omitempty"`
	Payments       []Payment       `json:"-"`
}

// Document represents an uploaded file attached to a case. The stored
// filename is a generated unique name; the original is metadata only.
type Document struct {
	ID               uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID           uuid.UUID `gorm:"type:uuid;not null;index" json:"case_id"`
	Filename         string    `gorm:"not null" json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	FileType         string    `gorm:"type:varchar(10)" json:"file_type"` // pdf, image, doc
	FileSize         int64     `json:"file_size"`
	FilePath         string    `gorm:"not null" json:"-"`
	OCRText          *string   `gorm:"column:ocr_text" json:"-"`
	IsProcessed      bool      `gorm:"default:false" json:"is_processed"`
	UploadedAt       time.Time `gorm:"autoCreateTime" json:"uploaded_at"`

	Case Case `gorm:"foreignKey:CaseID;references:ID" json:"-"`
}

// Analysis is the AI-generated legal assessment, at most one per case.
type Analysis struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID          uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex" json:"case_id"`
	Content         string     `gorm:"type:text;not null" json:"content"`
	Summary         string     `gorm:"type:text" json:"summary"`
	Recommendations string     `gorm:"type:text" json:"recommendations"`
	PossibleActions string     `gorm:"type:text" json:"possible_actions"`
	ConfidenceScore float64    `json:"confidence_score"`
	IsPreview       bool       `gorm:"default:true" json:"is_preview"`
	OperatorID      *uuid.UUID `gorm:"type:uuid" json:"operator_id"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LegalDocument is a generated, purchasable legal document tied to a case.
type LegalDocument struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CaseID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"case_id"`
	DocumentName string     `gorm:"not null" json:"document_name"`
	DocumentType string     `gorm:"type:varchar(40)" json:"document_type"`
	Content      string     `gorm:"type:text" json:"content"`
	Price        float64    `json:"price"`
	IsPurchased  bool       `gorm:"default:false" json:"is_purchased"`
	IsPreview    bool       `gorm:"default:true" json:"is_preview"`
	Instructions string     `gorm:"type:text" json:"instructions"`
	OperatorID   *uuid.UUID `gorm:"type:uuid" json:"operator_id"`
	CreatedAt    time.Time  `json:"created_at"`
	PurchasedAt  *time.Time `json:"purchased_at"`
}

// Payment tracks a monetary transaction tied to a case.
type Payment struct {
	ID                uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID            uuid.UUID   `gorm:"type:uuid;not null;index" json:"user_id"`
	CaseID            *uuid.UUID  `gorm:"type:uuid;index" json:"case_id"`
	Amount            float64     `gorm:"not null" json:"amount"`
	Currency          string      `gorm:"type:varchar(3);default:'PLN'" json:"currency"`
	PaymentType       PayType     `gorm:"type:varchar(20);default:'analysis'" json:"payment_type"`
	Description       string      `json:"description"`
	Provider          PayProvider `gorm:"type:varchar(20);default:'payu'" json:"provider"`
	ExternalPaymentID *string     `gorm:"uniqueIndex" json:"external_payment_id"`
	PaymentURL        string      `json:"payment_url"`
	Status            PayStatus   `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PromoCode         string      `gorm:"index" json:"promo_code"`
	InvoiceNumber     string      `json:"invoice_number"`
	InvoiceExternalID *int64      `json:"-"`
	CreatedAt         time.Time   `json:"created_at"`
	PaidAt            *time.Time  `json:"paid_at"`
}

// PromoCode adjusts a payment's computed amount. Exactly one of
// DiscountPercent / DiscountAmount is expected to be non-zero.
type PromoCode struct {
	ID              uuid.UUID   `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code            string      `gorm:"uniqueIndex;not null" json:"code"`
	Description     string      `json:"description"`
	DiscountPercent float64     `json:"discount_percent"`
	DiscountAmount  float64     `json:"discount_amount"`
	PackageType     PackageType `gorm:"type:varchar(20)" json:"package_type"` // empty = any package
	ValidFrom       time.Time   `json:"valid_from"`
	ValidTo         time.Time   `json:"valid_to"`
	MaxUses         int         `json:"max_uses"` // 0 = unlimited
	CurrentUses     int         `gorm:"default:0" json:"current_uses"`
	IsActive        bool        `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Notification is a per-user delivery log entry for SMS/email/in-app
// messages. The row is written before the provider call so its id can
// be correlated with the provider response.
type Notification struct {
	ID             uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID         uuid.UUID    `gorm:"type:uuid;not null;index" json:"user_id"`
	CaseID         *uuid.UUID   `gorm:"type:uuid;index" json:"case_id"`
	Channel        Channel      `gorm:"type:varchar(10);not null" json:"channel"`
	Template       Template     `gorm:"type:varchar(30)" json:"template"`
	Subject        string       `json:"subject"`
	Content        string       `gorm:"type:text" json:"content"`
	RecipientPhone string       `json:"recipient_phone,omitempty"`
	RecipientEmail string       `json:"recipient_email,omitempty"`
	Status         NotifyStatus `gorm:"type:varchar(10);default:'pending'" json:"status"`
	ExternalID     *string      `json:"external_id"`
	ErrorMessage   string       `json:"error_message,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	SentAt         *time.Time   `json:"sent_at"`
	ReadAt         *time.Time   `json:"read_at"`
}

// Message is a direct message between two users, optionally tied to a
// case. Sender and recipient are proper foreign key columns.
type Message struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SenderID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"sender_id"`
	RecipientID uuid.UUID  `gorm:"type:uuid;not null;index" json:"recipient_id"`
	CaseID      *uuid.UUID `gorm:"type:uuid;index" json:"case_id"`
	Subject     string     `json:"subject"`
	Content     string     `gorm:"type:text;not null" json:"content"`
	Priority    string     `gorm:"type:varchar(10);default:'normal'" json:"priority"`
	CreatedAt   time.Time  `json:"created_at"`
	ReadAt      *time.Time `json:"read_at"`

	Sender    User `gorm:"foreignKey:SenderID" json:"-"`
	Recipient User `gorm:"foreignKey:RecipientID" json:"-"`
}

// CaseEvent is an audit log entry for important case changes.
type CaseEvent struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	CaseID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	ActorID   uuid.UUID  `gorm:"type:uuid;not null;index"`  // who performed the action (client/operator/system)
	Action    string     `gorm:"type:varchar(50);not null"` // e.g. created, payment_created, paid, analysis_generated
	OldStatus CaseStatus `gorm:"type:varchar(20)"`
	NewStatus CaseStatus `gorm:"type:varchar(20)"`
	Reason    string     `gorm:"type:text"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

// All lists every entity for AutoMigrate.
func All() []any {
	return []any{
		&User{}, &Case{}, &Document{}, &Analysis{}, &LegalDocument{},
		&Payment{}, &PromoCode{}, &Notification{}, &Message{}, &CaseEvent{},
	}
}
