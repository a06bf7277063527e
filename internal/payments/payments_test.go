package payments

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

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
		sql := `
TRUNCATE TABLE
	case_events,
	messages,
	notifications,
	payments,
	promo_codes,
	legal_documents,
	analyses,
	documents,
	cases,
	users
RESTART IDENTITY CASCADE`
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

// recordingNotifier counts confirmations instead of sending anything.
type recordingNotifier struct {
	mu        sync.Mutex
	confirmed int
}

func (r *recordingNotifier) PaymentConfirmed(_ *gorm.DB, _ *models.Case, _ float64) {
	r.mu.Lock()
	r.confirmed++
	r.mu.Unlock()
}

// newTestHandler builds the handler with an unconfigured PayU client so
// CreateOrder produces sandbox placeholders, and no invoicing.
func newTestHandler(db *gorm.DB, n Notifier) *Handler {
	payu := NewPayU("https://sandbox.invalid", "", "")
	return NewHandler(db, payu, nil, n, "https://test.invalid/webhook", true)
}

func newTestApp(h *Handler, userID uuid.UUID, role string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(injectAuth(userID, role))

	app.Get("/api/payments/mine", h.ListMine)
	app.Post("/api/payments/webhook/payu", h.PayUWebhook)
	app.Post("/api/payments/:id/simulate-success", h.SimulateSuccess)
	app.Get("/api/payments/:id", h.Get)
	app.Post("/api/payments", h.Create)

	return app
}

func seedClientAndCase(t *testing.T, db *gorm.DB, status models.CaseStatus, pkg models.PackageType) (uuid.UUID, uuid.UUID) {
	t.Helper()
	clientID := uuid.New()
	email := "c_" + clientID.String()[:8] + "@x.com"
	if err := db.Create(&models.User{
		ID: clientID, Email: &email, Role: models.RoleClient, IsActive: true,
	}).Error; err != nil {
		t.Fatal(err)
	}
	cs := models.Case{
		ID: uuid.New(), UserID: clientID, Title: "Test Case",
		Status: status, PackageType: pkg, CreatedAt: time.Now(),
	}
	if err := db.Create(&cs).Error; err != nil {
		t.Fatal(err)
	}
	return clientID, cs.ID
}

func postJSON(t *testing.T, app *fiber.App, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	rec.Code = resp.StatusCode
	_, _ = rec.Body.ReadFrom(resp.Body)
	return rec
}

/* ============================================================================
   Tests: creating payments
   ============================================================================ */

func Test_CreatePayment_HappyPath(t *testing.T) {
	db := openTestDB(t)
	clientID, caseID := seedClientAndCase(t, db, models.CaseNew, models.PackageStandard)

	h := newTestHandler(db, nil)
	app := newTestApp(h, clientID, string(models.RoleClient))

	rec := postJSON(t, app, "/api/payments", map[string]any{
		"case_id": caseID.String(),
		"amount":  199.00,
	})
	if rec.Code != 201 {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var out PaymentResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Status != models.PayPending {
		t.Fatalf("want pending, got %s", out.Status)
	}
	if out.PaymentURL == "" {
		t.Fatalf("missing redirect url")
	}

	// Case moved to awaiting_payment.
	var cs models.Case
	_ = db.First(&cs, "id = ?", caseID).Error
	if cs.Status != models.CaseAwaitingPayment {
		t.Fatalf("want awaiting_payment, got %s", cs.Status)
	}
}

func Test_CreatePayment_AmountMismatch_Rejected(t *testing.T) {
	db := openTestDB(t)
	clientID, caseID := seedClientAndCase(t, db, models.CaseNew, models.PackageStandard)

	h := newTestHandler(db, nil)
	app := newTestApp(h, clientID, string(models.RoleClient))

	rec := postJSON(t, app, "/api/payments", map[string]any{
		"case_id": caseID.String(),
		"amount":  1.00,
	})
	if rec.Code != 400 {
		t.Fatalf("want 400, got %d", rec.Code)
	}

	var cnt int64
	_ = db.Model(&models.Payment{}).Count(&cnt).Error
	if cnt != 0 {
		t.Fatalf("no payment row should exist, got %d", cnt)
	}
}

func Test_CreatePayment_WithinTolerance_Accepted(t *testing.T) {
	db := openTestDB(t)
	clientID, caseID := seedClientAndCase(t, db, models.CaseNew, models.PackageBasic)

	h := newTestHandler(db, nil)
	app := newTestApp(h, clientID, string(models.RoleClient))

	rec := postJSON(t, app, "/api/payments", map[string]any{
		"case_id": caseID.String(),
		"amount":  99.004,
	})
	if rec.Code != 201 {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func Test_CreatePayment_Duplicate_Conflict(t *testing.T) {
	db := openTestDB(t)
	clientID, caseID := seedClientAndCase(t, db, models.CaseNew, models.PackageStandard)

	h := newTestHandler(db, nil)
	app := newTestApp(h, clientID, string(models.RoleClient))

	first := postJSON(t, app, "/api/payments", map[string]any{
		"case_id": caseID.String(), "amount": 199.00,
	})
	if first.Code != 201 {
		t.Fatalf("first payment want 201, got %d", first.Code)
	}

	second := postJSON(t, app, "/api/payments", map[string]any{
		"case_id": caseID.String(), "amount": 199.00,
	})
	if second.Code != 409 {
		t.Fatalf("second payment want 409, got %d", second.Code)
	}
}

func Test_CreatePayment_WithPromo_Recomputed(t *testing.T) {
	db := openTestDB(t)
	clientID, caseID := seedClientAndCase(t, db, models.CaseNew, models.PackageStandard)

	if err := db.Create(&models.PromoCode{
		Code: "RABAT-10", IsActive: true, DiscountPercent: 10,
		ValidFrom: time.Now().Add(-time.Hour), ValidTo: time.Now().Add(time.Hour),
	}).Error; err != nil {
		t.Fatal(err)
	}

	h := newTestHandler(db, nil)
	app := newTestApp(h, clientID, string(models.RoleClient))

	// Client claims the discounted amount; the server agrees.
	rec := postJSON(t, app, "/api/payments", map[string]any{
		"case_id": caseID.String(), "amount": 179.10, "promo_code": "RABAT-10",
	})
	if rec.Code != 201 {
		t.Fatalf("want 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Claiming the full price while sending the promo must fail.
	client2, case2 := seedClientAndCase(t, db, models.CaseNew, models.PackageStandard)
	app2 := newTestApp(h, client2, string(models.RoleClient))
	rec2 := postJSON(t, app2, "/api/payments", map[string]any{
		"case_id": case2.String(), "amount": 199.00, "promo_code": "RABAT-10",
	})
	if rec2.Code != 400 {
		t.Fatalf("want 400 for mismatched promo amount, got %d", rec2.Code)
	}
}

/* ============================================================================
   Tests: completing payments
   ============================================================================ */

func Test_SimulateSuccess_MarksPaid_AdvancesCase(t *testing.T) {
	db := openTestDB(t)
	clientID, caseID := seedClientAndCase(t, db, models.CaseNew, models.PackageStandard)

	ntf := &recordingNotifier{}
	h := newTestHandler(db, ntf)
	app := newTestApp(h, clientID, string(models.RoleClient))

	rec := postJSON(t, app, "/api/payments", map[string]any{
		"case_id": caseID.String(), "amount": 199.00,
	})
	var created PaymentResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	done := postJSON(t, app, "/api/payments/"+created.ID.String()+"/simulate-success", nil)
	if done.Code != 200 {
		t.Fatalf("want 200, got %d: %s", done.Code, done.Body.String())
	}

	var pay models.Payment
	_ = db.First(&pay, "id = ?", created.ID).Error
	if pay.Status != models.PayPaid || pay.PaidAt == nil {
		t.Fatalf("payment should be paid with paid_at set, got %s", pay.Status)
	}

	var cs models.Case
	_ = db.First(&cs, "id = ?", caseID).Error
	if cs.Status != models.CasePaid {
		t.Fatalf("case should be paid, got %s", cs.Status)
	}
	if ntf.confirmed != 1 {
		t.Fatalf("want 1 confirmation notification, got %d", ntf.confirmed)
	}

	// Second completion is a no-op (idempotent).
	again := postJSON(t, app, "/api/payments/"+created.ID.String()+"/simulate-success", nil)
	if again.Code != 200 {
		t.Fatalf("want 200 on repeat, got %d", again.Code)
	}
	if ntf.confirmed != 1 {
		t.Fatalf("repeat completion must not notify again, got %d", ntf.confirmed)
	}
}

func Test_Webhook_Completed_ByExternalID(t *testing.T) {
	db := openTestDB(t)
	clientID, caseID := seedClientAndCase(t, db, models.CaseNew, models.PackageStandard)

	h := newTestHandler(db, nil)
	app := newTestApp(h, clientID, string(models.RoleClient))

	rec := postJSON(t, app, "/api/payments", map[string]any{
		"case_id": caseID.String(), "amount": 199.00,
	})
	var created PaymentResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &created)

	var pay models.Payment
	_ = db.First(&pay, "id = ?", created.ID).Error
	if pay.ExternalPaymentID == nil {
		t.Fatal("payment should carry an external order id")
	}

	done := postJSON(t, app, "/api/payments/webhook/payu", map[string]any{
		"order": map[string]any{
			"orderId": *pay.ExternalPaymentID,
			"status":  "COMPLETED",
		},
	})
	if done.Code != 200 {
		t.Fatalf("want 200, got %d", done.Code)
	}

	_ = db.First(&pay, "id = ?", created.ID).Error
	if pay.Status != models.PayPaid {
		t.Fatalf("payment should be paid, got %s", pay.Status)
	}
}

func Test_Webhook_UnknownOrder_Acked(t *testing.T) {
	db := openTestDB(t)
	clientID, _ := seedClientAndCase(t, db, models.CaseNew, models.PackageStandard)

	h := newTestHandler(db, nil)
	app := newTestApp(h, clientID, string(models.RoleClient))

	rec := postJSON(t, app, "/api/payments/webhook/payu", map[string]any{
		"order": map[string]any{"orderId": "no-such-order", "status": "COMPLETED"},
	})
	if rec.Code != 200 {
		t.Fatalf("unknown orders are acked with 200, got %d", rec.Code)
	}
}
