package notify

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

// Service renders notification templates and dispatches them through
// the configured channel providers. The Notification row is persisted
// before the provider call so its id exists for correlation; the row is
// then updated to SENT or FAILED. Send failures are recorded, never
// propagated; a failed SMS must not fail the operation that caused it.
type Service struct {
	sms    *TwilioSMS
	mailer *Mailer

	panelURL     string
	supportEmail string
	supportPhone string
}

func NewService(sms *TwilioSMS, mailer *Mailer, panelURL, supportEmail, supportPhone string) *Service {
	return &Service{
		sms:          sms,
		mailer:       mailer,
		panelURL:     panelURL,
		supportEmail: supportEmail,
		supportPhone: supportPhone,
	}
}

// Send renders and dispatches a single notification to user over ch.
func (s *Service) Send(
	db *gorm.DB,
	user *models.User,
	cs *models.Case,
	ch models.Channel,
	template models.Template,
	vars map[string]string,
) (*models.Notification, error) {
	merged := map[string]string{
		"user_name":     user.FullName(),
		"panel_url":     s.panelURL,
		"support_email": s.supportEmail,
		"support_phone": s.supportPhone,
		"case_title":    "Twoja sprawa",
	}
	if cs != nil {
		merged["case_title"] = cs.Title
		merged["case_id"] = cs.ID.String()
	}
	for k, v := range vars {
		merged[k] = v
	}

	subject, body := Render(template, ch, merged)

	n := models.Notification{
		UserID:   user.ID,
		Channel:  ch,
		Template: template,
		Subject:  subject,
		Content:  body,
		Status:   models.NotifyPending,
	}
	if cs != nil {
		n.CaseID = &cs.ID
	}

	switch ch {
	case models.ChannelSMS:
		if user.Phone == nil || *user.Phone == "" {
			n.Status = models.NotifyFailed
			n.ErrorMessage = "user has no phone number"
			return &n, db.Create(&n).Error
		}
		n.RecipientPhone = *user.Phone
	case models.ChannelEmail:
		if user.Email == nil || *user.Email == "" {
			n.Status = models.NotifyFailed
			n.ErrorMessage = "user has no email address"
			return &n, db.Create(&n).Error
		}
		n.RecipientEmail = *user.Email
	}

	// Persist first so the row id exists before the provider call.
	if err := db.Create(&n).Error; err != nil {
		return nil, err
	}

	var externalID string
	var sendErr error
	switch ch {
	case models.ChannelSMS:
		externalID, sendErr = s.sms.Send(n.RecipientPhone, body)
	case models.ChannelEmail:
		sendErr = s.mailer.Send(n.RecipientEmail, subject, body)
		if sendErr == nil {
			externalID = fmt.Sprintf("smtp-%s", n.ID)
		}
	case models.ChannelInApp:
		// In-app notifications are delivered by being listed; nothing to call.
	}

	now := time.Now()
	if sendErr != nil {
		n.Status = models.NotifyFailed
		n.ErrorMessage = sendErr.Error()
		log.Printf("notification %s failed: %v", n.ID, sendErr)
	} else {
		n.Status = models.NotifySent
		n.SentAt = &now
		if externalID != "" {
			n.ExternalID = &externalID
		}
	}
	if err := db.Save(&n).Error; err != nil {
		return nil, err
	}
	return &n, nil
}

// sendToCaseOwner dispatches SMS (when a phone exists), email (when an
// email exists) and an in-app entry for the case owner.
func (s *Service) sendToCaseOwner(db *gorm.DB, cs *models.Case, template models.Template, vars map[string]string) {
	var user models.User
	if err := db.First(&user, "id = ?", cs.UserID).Error; err != nil {
		log.Printf("notify: case %s owner not found: %v", cs.ID, err)
		return
	}

	if user.Phone != nil && *user.Phone != "" {
		_, _ = s.Send(db, &user, cs, models.ChannelSMS, template, vars)
	}
	if user.Email != nil && *user.Email != "" {
		_, _ = s.Send(db, &user, cs, models.ChannelEmail, template, vars)
	}
	_, _ = s.Send(db, &user, cs, models.ChannelInApp, template, vars)
}

// PaymentConfirmed notifies the case owner that the payment went through.
func (s *Service) PaymentConfirmed(db *gorm.DB, cs *models.Case, amount float64) {
	s.sendToCaseOwner(db, cs, models.TplPaymentReceived, map[string]string{
		"amount": fmt.Sprintf("%.2f", amount),
	})
}

// AnalysisReady notifies the case owner that the analysis is available.
func (s *Service) AnalysisReady(db *gorm.DB, cs *models.Case) {
	s.sendToCaseOwner(db, cs, models.TplAnalysisReady, nil)
}

// DocumentsReady notifies the case owner about purchasable documents.
func (s *Service) DocumentsReady(db *gorm.DB, cs *models.Case) {
	s.sendToCaseOwner(db, cs, models.TplDocumentsReady, nil)
}

// UnclearScans tells the case owner some documents were unreadable.
func (s *Service) UnclearScans(db *gorm.DB, cs *models.Case) {
	s.sendToCaseOwner(db, cs, models.TplUnclearScans, nil)
}

// VerificationCode sends a login/verification code over the channel
// matching the user's contact data (SMS preferred).
func (s *Service) VerificationCode(db *gorm.DB, user *models.User, code string) {
	vars := map[string]string{"code": code}
	if user.Phone != nil && *user.Phone != "" {
		_, _ = s.Send(db, user, nil, models.ChannelSMS, models.TplVerificationCode, vars)
		return
	}
	_, _ = s.Send(db, user, nil, models.ChannelEmail, models.TplVerificationCode, vars)
}

// NewMessage notifies the recipient of a direct message (in-app always,
// email best effort).
func (s *Service) NewMessage(db *gorm.DB, recipient *models.User, cs *models.Case, subject string) {
	vars := map[string]string{"message_subject": subject}
	_, _ = s.Send(db, recipient, cs, models.ChannelInApp, models.TplNewMessage, vars)
	if recipient.Email != nil && *recipient.Email != "" {
		_, _ = s.Send(db, recipient, cs, models.ChannelEmail, models.TplNewMessage, vars)
	}
}

// Resend re-dispatches a previously failed notification. Used by the
// manual re-trigger endpoint; there is no automatic retry.
func (s *Service) Resend(db *gorm.DB, notificationID, userID uuid.UUID) (*models.Notification, error) {
	var n models.Notification
	if err := db.First(&n, "id = ? AND user_id = ?", notificationID, userID).Error; err != nil {
		return nil, err
	}
	if n.Status != models.NotifyFailed {
		return nil, fmt.Errorf("notification %s is not in failed state", n.ID)
	}

	var externalID string
	var sendErr error
	switch n.Channel {
	case models.ChannelSMS:
		externalID, sendErr = s.sms.Send(n.RecipientPhone, n.Content)
	case models.ChannelEmail:
		sendErr = s.mailer.Send(n.RecipientEmail, n.Subject, n.Content)
	default:
		return &n, nil
	}

	now := time.Now()
	if sendErr != nil {
		n.ErrorMessage = sendErr.Error()
	} else {
		n.Status = models.NotifySent
		n.SentAt = &now
		n.ErrorMessage = ""
		if externalID != "" {
			n.ExternalID = &externalID
		}
	}
	if err := db.Save(&n).Error; err != nil {
		return nil, err
	}
	return &n, sendErr
}
