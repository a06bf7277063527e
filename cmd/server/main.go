// @title           Prawnik.ai API
// @version         1.0
// @description     Backend for an online legal services platform: clients submit cases with documents, pay for a package, and receive an AI-assisted legal analysis reviewed by operators.
// @BasePath        /api/v1
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mkowalczyk/prawnik-backend/pkg/config"
	"github.com/mkowalczyk/prawnik-backend/pkg/database"
	"github.com/mkowalczyk/prawnik-backend/pkg/models"

	"github.com/mkowalczyk/prawnik-backend/internal/admin"
	"github.com/mkowalczyk/prawnik-backend/internal/ai"
	"github.com/mkowalczyk/prawnik-backend/internal/analysis"
	"github.com/mkowalczyk/prawnik-backend/internal/auth"
	"github.com/mkowalczyk/prawnik-backend/internal/cases"
	"github.com/mkowalczyk/prawnik-backend/internal/invoice"
	"github.com/mkowalczyk/prawnik-backend/internal/messaging"
	"github.com/mkowalczyk/prawnik-backend/internal/notify"
	"github.com/mkowalczyk/prawnik-backend/internal/operator"
	"github.com/mkowalczyk/prawnik-backend/internal/payments"
	"github.com/mkowalczyk/prawnik-backend/internal/storage"
)

func main() {
	cfg := config.Load()

	db := database.Init(cfg.DatabaseURL)
	if err := db.AutoMigrate(models.All()...); err != nil {
		log.Fatal("migration failed:", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal("bad REDIS_URL:", err)
		}
		rdb = redis.NewClient(opts)
	}

	store, err := storage.NewLocal(cfg.UploadDir)
	if err != nil {
		log.Fatal(err)
	}

	// Services
	jwt := auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL)
	codes := auth.NewCodes(rdb)
	google := auth.NewGoogleVerifier(cfg.GoogleClientID)

	sms := notify.NewTwilioSMS(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	mailer := notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	notifier := notify.NewService(sms, mailer, cfg.PanelURL, cfg.SupportEmail, cfg.SupportPhone)

	gemini := ai.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
	pipeline := analysis.NewService(gemini, rdb, notifier)

	payu := payments.NewPayU(cfg.PayUBaseURL, cfg.PayUClientID, cfg.PayUClientSecret)
	fakturownia := invoice.New(cfg.FakturowniaBaseURL, cfg.FakturowniaToken)

	// Handlers
	authH := auth.NewHandler(db, jwt, codes, google, notifier)
	caseH := cases.NewHandler(db, store, cfg.MaxFilesPerCase, cfg.MaxFileSizeMB)
	payH := payments.NewHandler(db, payu, fakturownia, notifier,
		cfg.PublicBaseURL+"/api/v1/payments/webhook/payu", !cfg.IsProduction())
	analysisH := analysis.NewHandler(db)
	notifyH := notify.NewHandler(db, notifier)
	msgH := messaging.NewHandler(db, notifier)
	opH := operator.NewHandler(db, pipeline, notifier)
	adminH := admin.NewHandler(db)

	app := fiber.New(fiber.Config{
		ErrorHandler: auth.ErrorHandler,
		BodyLimit:    (cfg.MaxFileSizeMB + 5) * 1024 * 1024,
	})

	app.Get("/health", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })

	api := app.Group("/api/v1")
	authed := jwt.RequireAuth()

	// Auth
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/phone/request-code", authH.RequestCode)
	api.Post("/auth/verify", authH.VerifyCode)
	api.Post("/auth/google", authH.GoogleCallback)
	api.Get("/auth/me", authed, authH.Me)

	// Cases (client)
	casesWrite := auth.RequirePermission(auth.ResCases, auth.ActWrite)
	casesRead := auth.RequirePermission(auth.ResCases, auth.ActRead)
	api.Post("/cases", authed, casesWrite, caseH.Create)
	api.Get("/cases/mine", authed, casesRead, caseH.ListMine)
	api.Get("/cases/:id", authed, casesRead, caseH.GetDetailOwner)
	api.Patch("/cases/:id", authed, casesWrite, caseH.Update)
	api.Delete("/cases/:id", authed, casesWrite, caseH.Delete)
	api.Post("/cases/:id/documents", authed, auth.RequirePermission(auth.ResDocuments, auth.ActWrite), caseH.UploadFiles)
	api.Get("/cases/:id/analysis", authed, auth.RequirePermission(auth.ResAnalyses, auth.ActRead), analysisH.GetForCase)

	// Documents
	docsRead := auth.RequirePermission(auth.ResDocuments, auth.ActRead)
	api.Get("/documents/:documentID/download", authed, docsRead, caseH.Download)
	api.Delete("/documents/:documentID", authed, auth.RequirePermission(auth.ResDocuments, auth.ActWrite), caseH.DeleteDocument)

	// Payments
	payWrite := auth.RequirePermission(auth.ResPayments, auth.ActWrite)
	payRead := auth.RequirePermission(auth.ResPayments, auth.ActRead)
	api.Post("/payments", authed, payWrite, payH.Create)
	api.Get("/payments/mine", authed, payRead, payH.ListMine)
	api.Get("/payments/:id", authed, payRead, payH.Get)
	// Gateway callback, no auth.
	api.Post("/payments/webhook/payu", payH.PayUWebhook)
	if !cfg.IsProduction() {
		api.Post("/payments/:id/simulate-success", authed, payWrite, payH.SimulateSuccess)
	}

	// Notifications
	ntfRead := auth.RequirePermission(auth.ResNotifications, auth.ActRead)
	api.Get("/notifications", authed, ntfRead, notifyH.ListMine)
	api.Get("/notifications/unread-count", authed, ntfRead, notifyH.UnreadCount)
	api.Post("/notifications/:id/read", authed, ntfRead, notifyH.MarkRead)
	api.Post("/notifications/:id/resend", authed, auth.RequirePermission(auth.ResNotifications, auth.ActWrite), notifyH.Resend)

	// Messages
	msgRead := auth.RequirePermission(auth.ResMessages, auth.ActRead)
	msgWrite := auth.RequirePermission(auth.ResMessages, auth.ActWrite)
	api.Post("/messages", authed, msgWrite, msgH.Send)
	api.Get("/messages/conversations", authed, msgRead, msgH.Conversations)
	api.Get("/messages/unread-count", authed, msgRead, msgH.UnreadCount)
	api.Get("/messages/with/:userID", authed, msgRead, msgH.Thread)
	api.Post("/messages/with/:userID/read", authed, msgRead, msgH.MarkRead)

	// Operator panel
	op := api.Group("/operator", authed, auth.RequirePermission(auth.ResOperatorPanel, auth.ActManage))
	op.Get("/cases", opH.Queue)
	op.Get("/cases/:id", opH.CaseDetail)
	op.Post("/cases/:id/assign", opH.Assign)
	op.Patch("/cases/:id/status", opH.UpdateStatus)
	op.Post("/cases/:id/analyze", opH.RunAnalysis)
	op.Post("/cases/:id/analysis", opH.CreateAnalysis)
	op.Post("/cases/:id/draft-document", opH.DraftDocument)
	op.Post("/cases/:id/legal-documents", opH.CreateLegalDocument)
	op.Get("/cases/:id/documents/summary", opH.DocumentsSummary)

	// Admin panel
	ad := api.Group("/admin", authed, auth.RequirePermission(auth.ResAdminPanel, auth.ActManage))
	ad.Get("/users", adminH.ListUsers)
	ad.Patch("/users/:id", adminH.UpdateUser)
	ad.Get("/promo-codes", adminH.ListPromos)
	ad.Post("/promo-codes", adminH.CreatePromo)
	ad.Put("/promo-codes/:id", adminH.UpdatePromo)
	ad.Delete("/promo-codes/:id", adminH.DeletePromo)
	ad.Get("/stats", adminH.Stats)

	log.Println("Server running on :" + cfg.Port)
	log.Fatal(app.Listen(":" + cfg.Port))
}
