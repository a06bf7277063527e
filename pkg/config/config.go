package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config collects every environment-driven setting in one place so that
// services receive their configuration at construction time instead of
// reading os.Getenv scattered across the codebase.
type Config struct {
	AppEnv string // "dev", "staging", "production"
	Port   string

	DatabaseURL string
	RedisURL    string

	JWTSecret string
	JWTTTL    time.Duration

	UploadDir       string
	MaxFilesPerCase int
	MaxFileSizeMB   int

	PublicBaseURL string
	PanelURL      string
	SupportEmail  string
	SupportPhone  string

	GoogleClientID string

	GeminiAPIKey string
	GeminiModel  string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string

	PayUBaseURL      string
	PayUClientID     string
	PayUClientSecret string

	FakturowniaBaseURL string
	FakturowniaToken   string
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppEnv: getenv("APP_ENV", "dev"),
		Port:   getenv("PORT", "3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    getenv("REDIS_URL", "redis://localhost:6379/0"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    7 * 24 * time.Hour,

		UploadDir:       getenv("UPLOAD_DIR", "uploads"),
		MaxFilesPerCase: getint("MAX_FILES_PER_CASE", 10),
		MaxFileSizeMB:   getint("MAX_FILE_SIZE_MB", 50),

		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:3000"),
		PanelURL:      getenv("PANEL_URL", "https://prawnik.ai/panel-klienta"),
		SupportEmail:  getenv("SUPPORT_EMAIL", "pomoc@prawnik.ai"),
		SupportPhone:  getenv("SUPPORT_PHONE", "+48 123 456 789"),

		GoogleClientID: os.Getenv("GOOGLE_CLIENT_ID"),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  getenv("GEMINI_MODEL", "gemini-2.5-flash"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: getenv("SMTP_PORT", "587"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		MailFrom: getenv("EMAIL_FROM", "no-reply@prawnik.ai"),

		PayUBaseURL:      getenv("PAYU_BASE_URL", "https://secure.snd.payu.com"),
		PayUClientID:     os.Getenv("PAYU_CLIENT_ID"),
		PayUClientSecret: os.Getenv("PAYU_CLIENT_SECRET"),

		FakturowniaBaseURL: os.Getenv("FAKTUROWNIA_BASE_URL"),
		FakturowniaToken:   os.Getenv("FAKTUROWNIA_TOKEN"),
	}
}

// IsProduction gates the dev-only endpoints (payment simulation).
func (c *Config) IsProduction() bool { return c.AppEnv == "production" }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
