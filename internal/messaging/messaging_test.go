package messaging

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
	messages,
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

func newTestApp(h *Handler, userID uuid.UUID, role string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(injectAuth(userID, role))

	app.Get("/api/messages/conversations", h.Conversations)
	app.Get("/api/messages/unread-count", h.UnreadCount)
	app.Get("/api/messages/with/:userID", h.Thread)
	app.Post("/api/messages/with/:userID/read", h.MarkRead)
	app.Post("/api/messages", h.Send)

	return app
}

func seedUser(t *testing.T, db *gorm.DB, role models.Role) uuid.UUID {
	t.Helper()
	id := uuid.New()
	email := "u_" + id.String()[:8] + "@x.com"
	if err := db.Create(&models.User{
		ID: id, Email: &email, Role: role, IsActive: true,
		FirstName: "Jan", LastName: "Testowy",
	}).Error; err != nil {
		t.Fatal(err)
	}
	return id
}

func send(t *testing.T, app *fiber.App, payload map[string]any) (int, models.Message) {
	t.Helper()
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/api/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	var msg models.Message
	_ = json.NewDecoder(resp.Body).Decode(&msg)
	return resp.StatusCode, msg
}

/* ============================================================================
   Tests
   ============================================================================ */

func Test_Send_ClientToOperator_OK(t *testing.T) {
	db := openTestDB(t)
	client := seedUser(t, db, models.RoleClient)
	operator := seedUser(t, db, models.RoleOperator)

	h := NewHandler(db, nil)
	app := newTestApp(h, client, string(models.RoleClient))

	code, msg := send(t, app, map[string]any{
		"recipient_id": operator.String(),
		"content":      "Dzień dobry, mam pytanie o sprawę.",
	})
	if code != 201 {
		t.Fatalf("want 201, got %d", code)
	}
	if msg.RecipientID != operator {
		t.Fatalf("wrong recipient: %s", msg.RecipientID)
	}
}

func Test_Send_ClientToClient_Forbidden(t *testing.T) {
	db := openTestDB(t)
	client := seedUser(t, db, models.RoleClient)
	otherClient := seedUser(t, db, models.RoleClient)

	h := NewHandler(db, nil)
	app := newTestApp(h, client, string(models.RoleClient))

	code, _ := send(t, app, map[string]any{
		"recipient_id": otherClient.String(),
		"content":      "hej",
	})
	if code != 403 {
		t.Fatalf("want 403, got %d", code)
	}
}

func Test_Send_NoRecipient_RoutesToCaseOperator(t *testing.T) {
	db := openTestDB(t)
	client := seedUser(t, db, models.RoleClient)
	assigned := seedUser(t, db, models.RoleOperator)

	cs := models.Case{
		ID: uuid.New(), UserID: client, OperatorID: &assigned,
		Title: "Sprawa", Status: models.CaseProcessing,
		PackageType: models.PackageBasic, CreatedAt: time.Now(),
	}
	if err := db.Create(&cs).Error; err != nil {
		t.Fatal(err)
	}

	h := NewHandler(db, nil)
	app := newTestApp(h, client, string(models.RoleClient))

	code, msg := send(t, app, map[string]any{
		"case_id": cs.ID.String(),
		"content": "Kiedy analiza będzie gotowa?",
	})
	if code != 201 {
		t.Fatalf("want 201, got %d", code)
	}
	if msg.RecipientID != assigned {
		t.Fatalf("message should route to the assigned operator")
	}
}

func Test_Send_ForeignCase_Forbidden(t *testing.T) {
	db := openTestDB(t)
	owner := seedUser(t, db, models.RoleClient)
	stranger := seedUser(t, db, models.RoleClient)
	seedUser(t, db, models.RoleOperator)

	cs := models.Case{
		ID: uuid.New(), UserID: owner, Title: "Sprawa",
		Status: models.CaseNew, PackageType: models.PackageBasic,
	}
	if err := db.Create(&cs).Error; err != nil {
		t.Fatal(err)
	}

	h := NewHandler(db, nil)
	app := newTestApp(h, stranger, string(models.RoleClient))

	code, _ := send(t, app, map[string]any{
		"case_id": cs.ID.String(),
		"content": "to nie moja sprawa",
	})
	if code != 403 {
		t.Fatalf("want 403, got %d", code)
	}
}

func Test_Conversations_UnreadAndMarkRead(t *testing.T) {
	db := openTestDB(t)
	client := seedUser(t, db, models.RoleClient)
	operator := seedUser(t, db, models.RoleOperator)

	h := NewHandler(db, nil)
	opApp := newTestApp(h, operator, string(models.RoleOperator))
	clApp := newTestApp(h, client, string(models.RoleClient))

	for i := 0; i < 3; i++ {
		code, _ := send(t, opApp, map[string]any{
			"recipient_id": client.String(),
			"content":      "wiadomość od operatora",
		})
		if code != 201 {
			t.Fatalf("send want 201, got %d", code)
		}
	}

	// Client sees one conversation with three unread messages.
	req := httptest.NewRequest("GET", "/api/messages/conversations", nil)
	resp, _ := clApp.Test(req)
	var convs []ConversationItem
	_ = json.NewDecoder(resp.Body).Decode(&convs)
	if len(convs) != 1 || convs[0].Unread != 3 {
		t.Fatalf("want 1 conversation with 3 unread, got %#v", convs)
	}

	// Marking the thread read clears the counter.
	reqRead := httptest.NewRequest("POST", "/api/messages/with/"+operator.String()+"/read", nil)
	respRead, _ := clApp.Test(reqRead)
	if respRead.StatusCode != 200 {
		t.Fatalf("mark read got %d", respRead.StatusCode)
	}

	reqCount := httptest.NewRequest("GET", "/api/messages/unread-count", nil)
	respCount, _ := clApp.Test(reqCount)
	var out struct {
		Unread int64 `json:"unread"`
	}
	_ = json.NewDecoder(respCount.Body).Decode(&out)
	if out.Unread != 0 {
		t.Fatalf("want 0 unread after mark read, got %d", out.Unread)
	}
}
