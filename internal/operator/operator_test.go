package operator

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
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

type stubNotifier struct{ documentsReady int }

func (s *stubNotifier) DocumentsReady(_ *gorm.DB, _ *models.Case) { s.documentsReady++ }

func newTestApp(h *Handler, operatorID uuid.UUID) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(injectAuth(operatorID, string(models.RoleOperator)))

	app.Get("/api/operator/cases", h.Queue)
	app.Post("/api/operator/cases/:id/assign", h.Assign)
	app.Patch("/api/operator/cases/:id/status", h.UpdateStatus)
	app.Post("/api/operator/cases/:id/analysis", h.CreateAnalysis)
	app.Post("/api/operator/cases/:id/legal-documents", h.CreateLegalDocument)
	app.Get("/api/operator/cases/:id", h.CaseDetail)

	return app
}

func seedOperator(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	id := uuid.New()
	email := "op_" + id.String()[:8] + "@x.com"
	if err := db.Create(&models.User{
		ID: id, Email: &email, Role: models.RoleOperator, IsActive: true,
	}).Error; err != nil {
		t.Fatal(err)
	}
	return id
}

func seedCase(t *testing.T, db *gorm.DB, status models.CaseStatus) uuid.UUID {
	t.Helper()
	clientID := uuid.New()
	email := "c_" + clientID.String()[:8] + "@x.com"
	if err := db.Create(&models.User{
		ID: clientID, Email: &email, Role: models.RoleClient, IsActive: true,
	}).Error; err != nil {
		t.Fatal(err)
	}
	cs := models.Case{
		ID: uuid.New(), UserID: clientID, Title: "Sprawa testowa",
		Status: status, PackageType: models.PackageStandard, CreatedAt: time.Now(),
	}
	if err := db.Create(&cs).Error; err != nil {
		t.Fatal(err)
	}
	return cs.ID
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload any) (int, []byte) {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp.StatusCode, buf.Bytes()
}

/* ============================================================================
   Tests
   ============================================================================ */

func Test_Assign_PaidCase_MovesToProcessing(t *testing.T) {
	db := openTestDB(t)
	operatorID := seedOperator(t, db)
	caseID := seedCase(t, db, models.CasePaid)

	h := NewHandler(db, nil, nil)
	app := newTestApp(h, operatorID)

	code, _ := doJSON(t, app, "POST", "/api/operator/cases/"+caseID.String()+"/assign", nil)
	if code != 200 {
		t.Fatalf("want 200, got %d", code)
	}

	var cs models.Case
	_ = db.First(&cs, "id = ?", caseID).Error
	if cs.Status != models.CaseProcessing {
		t.Fatalf("want processing, got %s", cs.Status)
	}
	if cs.OperatorID == nil || *cs.OperatorID != operatorID {
		t.Fatalf("case should be assigned to the operator")
	}
}

func Test_CreateAnalysis_SecondAttempt_Conflict(t *testing.T) {
	db := openTestDB(t)
	operatorID := seedOperator(t, db)
	caseID := seedCase(t, db, models.CaseProcessing)

	h := NewHandler(db, nil, nil)
	app := newTestApp(h, operatorID)

	payload := map[string]any{
		"content": "Ręczna analiza prawna.",
		"summary": "Streszczenie.",
	}
	code, _ := doJSON(t, app, "POST", "/api/operator/cases/"+caseID.String()+"/analysis", payload)
	if code != 201 {
		t.Fatalf("first analysis want 201, got %d", code)
	}

	code, _ = doJSON(t, app, "POST", "/api/operator/cases/"+caseID.String()+"/analysis", payload)
	if code != 409 {
		t.Fatalf("second analysis want 409, got %d", code)
	}

	var cs models.Case
	_ = db.First(&cs, "id = ?", caseID).Error
	if cs.Status != models.CaseAnalysisReady {
		t.Fatalf("want analysis_ready, got %s", cs.Status)
	}
}

func Test_CreateLegalDocument_AdvancesAndNotifies(t *testing.T) {
	db := openTestDB(t)
	operatorID := seedOperator(t, db)
	caseID := seedCase(t, db, models.CaseAnalysisReady)

	ntf := &stubNotifier{}
	h := NewHandler(db, nil, ntf)
	app := newTestApp(h, operatorID)

	code, _ := doJSON(t, app, "POST", "/api/operator/cases/"+caseID.String()+"/legal-documents", map[string]any{
		"document_name": "Wezwanie do zapłaty",
		"document_type": "wezwanie_do_zaplaty",
		"content":       "Treść dokumentu.",
		"price":         49.00,
	})
	if code != 201 {
		t.Fatalf("want 201, got %d", code)
	}

	var cs models.Case
	_ = db.First(&cs, "id = ?", caseID).Error
	if cs.Status != models.CaseDocumentsReady {
		t.Fatalf("want documents_ready, got %s", cs.Status)
	}
	if ntf.documentsReady != 1 {
		t.Fatalf("client should be notified once, got %d", ntf.documentsReady)
	}
}

func Test_UpdateStatus_InvalidValue_Rejected(t *testing.T) {
	db := openTestDB(t)
	operatorID := seedOperator(t, db)
	caseID := seedCase(t, db, models.CaseNew)

	h := NewHandler(db, nil, nil)
	app := newTestApp(h, operatorID)

	code, _ := doJSON(t, app, "PATCH", "/api/operator/cases/"+caseID.String()+"/status", map[string]any{
		"status": "closed_forever",
	})
	if code != 400 {
		t.Fatalf("want 400, got %d", code)
	}
}

func Test_Queue_StatusFilter(t *testing.T) {
	db := openTestDB(t)
	operatorID := seedOperator(t, db)
	seedCase(t, db, models.CaseNew)
	seedCase(t, db, models.CasePaid)
	seedCase(t, db, models.CasePaid)

	h := NewHandler(db, nil, nil)
	app := newTestApp(h, operatorID)

	code, body := doJSON(t, app, "GET", "/api/operator/cases?status=paid", nil)
	if code != 200 {
		t.Fatalf("want 200, got %d", code)
	}
	var out PageQueue
	_ = json.Unmarshal(body, &out)
	if out.Total != 2 {
		t.Fatalf("want 2 paid cases, got %d", out.Total)
	}
	for _, it := range out.Items {
		if it.Status != models.CasePaid {
			t.Fatalf("filter leak: %s", it.Status)
		}
	}
}
