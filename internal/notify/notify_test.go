package notify

import (
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

/* ============================================================================
   Helpers
   ============================================================================ */

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		sql := `TRUNCATE TABLE notifications, users RESTART IDENTITY CASCADE`
		if err := db.Exec(sql).Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})

	return db
}

func injectAuth(userID uuid.UUID, role string) fiber.Handler {
	id := userID.String()
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		c.Locals("role", role)
		return c.Next()
	}
}

// newTestApp guards the resend route exactly like the server wiring, so
// the test proves a client passes the permission gate for its own rows.
func newTestApp(h *Handler, userID uuid.UUID, role string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(injectAuth(userID, role))

	app.Post("/api/notifications/:id/resend",
		auth.RequirePermission(auth.ResNotifications, auth.ActWrite), h.Resend)

	return app
}

func newTestHandler(db *gorm.DB) *Handler {
	svc := NewService(
		NewTwilioSMS("", "", ""),
		NewMailer("", "587", "", "", "no-reply@x.com"),
		"https://example.com/panel", "pomoc@x.com", "+48 123 456 789",
	)
	return NewHandler(db, svc)
}

func seedClient(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	email := "c_" + id.String()[:8] + "@x.com"
	if err := db.Create(&models.User{
		ID: id, Email: &email, Role: models.RoleClient, IsActive: true,
	}).Error; err != nil {
		t.Fatal(err)
	}
	return id
}

func seedNotification(t *testing.T, db *gorm.DB, userID uuid.UUID, status models.NotifyStatus) uuid.UUID {
	t.Helper()
	n := models.Notification{
		ID:             uuid.New(),
		UserID:         userID,
		Channel:        models.ChannelSMS,
		Template:       models.TplPaymentReceived,
		Content:        "Otrzymaliśmy płatność.",
		RecipientPhone: "+48500100200",
		Status:         status,
	}
	if status == models.NotifyFailed {
		n.ErrorMessage = "sms request: timeout"
	}
	if err := db.Create(&n).Error; err != nil {
		t.Fatal(err)
	}
	return n.ID
}

/* ============================================================================
   Tests: manual re-trigger of failed notifications
   ============================================================================ */

func Test_Resend_OwnFailedNotification_Reachable(t *testing.T) {
	db := openTestDB(t)
	clientID := seedClient(t, db)
	ntfID := seedNotification(t, db, clientID, models.NotifyFailed)

	h := newTestHandler(db)
	app := newTestApp(h, clientID, string(models.RoleClient))

	req := httptest.NewRequest("POST", "/api/notifications/"+ntfID.String()+"/resend", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("owner resend must be reachable, got %d", resp.StatusCode)
	}

	// Twilio is unconfigured here, so the row stays failed with the
	// fresh provider error recorded on it.
	var n models.Notification
	if err := db.First(&n, "id = ?", ntfID).Error; err != nil {
		t.Fatal(err)
	}
	if n.Status != models.NotifyFailed {
		t.Fatalf("want failed, got %s", n.Status)
	}
	if n.ErrorMessage == "" || n.ErrorMessage == "sms request: timeout" {
		t.Fatalf("resend should overwrite the recorded error, got %q", n.ErrorMessage)
	}
}

func Test_Resend_ForeignNotification_NotFound(t *testing.T) {
	db := openTestDB(t)
	owner := seedClient(t, db)
	stranger := seedClient(t, db)
	ntfID := seedNotification(t, db, owner, models.NotifyFailed)

	h := newTestHandler(db)
	app := newTestApp(h, stranger, string(models.RoleClient))

	req := httptest.NewRequest("POST", "/api/notifications/"+ntfID.String()+"/resend", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != 404 {
		t.Fatalf("want 404, got %d", resp.StatusCode)
	}
}

func Test_Resend_SentNotification_Conflict(t *testing.T) {
	db := openTestDB(t)
	clientID := seedClient(t, db)
	ntfID := seedNotification(t, db, clientID, models.NotifySent)

	h := newTestHandler(db)
	app := newTestApp(h, clientID, string(models.RoleClient))

	req := httptest.NewRequest("POST", "/api/notifications/"+ntfID.String()+"/resend", nil)
	resp, _ := app.Test(req)
	if resp.StatusCode != 409 {
		t.Fatalf("want 409, got %d", resp.StatusCode)
	}
}
