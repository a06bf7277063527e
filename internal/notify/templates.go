package notify

import (
	"strings"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

// tpl holds the per-channel format strings of one template. Placeholders
// use {name} syntax; unknown placeholders are left untouched.
type tpl struct {
	SMS          string
	EmailSubject string
	EmailBody    string
}

// templates is the fixed (template -> channel format strings) table.
var templates = map[models.Template]tpl{
	models.TplPaymentReceived: {
		SMS:          "Prawnik AI: Płatność {amount} zł potwierdzona. Analiza dokumentów w trakcie realizacji. Status: {panel_url}",
		EmailSubject: "Płatność potwierdzona - AI Prawnik PL",
		EmailBody:    "Dziękujemy za płatność za analizę w sprawie '{case_title}'. Płatność w wysokości {amount} zł została potwierdzona. Prawnik przystąpi do analizy dokumentów.",
	},
	models.TplAnalysisStarted: {
		SMS:          "Prawnik AI: Rozpoczęto analizę dokumentów w sprawie '{case_title}'. Powiadomimy Cię gdy analiza będzie gotowa.",
		EmailSubject: "Rozpoczęto analizę dokumentów",
		EmailBody:    "Prawnik rozpoczął analizę dokumentów w sprawie '{case_title}'. Otrzymasz powiadomienie gdy analiza będzie gotowa.",
	},
	models.TplAnalysisReady: {
		SMS:          "Prawnik AI: Analiza dokumentów gotowa! Sprawdź szczegóły w panelu: {panel_url}",
		EmailSubject: "Analiza dokumentów gotowa - AI Prawnik PL",
		EmailBody:    "Analiza dokumentów w sprawie '{case_title}' została ukończona. Zaloguj się do panelu aby przeczytać szczegółowe rekomendacje.",
	},
	models.TplDocumentsReady: {
		SMS:          "Prawnik AI: Przygotowano dokumenty prawne do zakupu. Sprawdź szczegóły: {panel_url}",
		EmailSubject: "Dokumenty prawne gotowe do zakupu",
		EmailBody:    "W ramach analizy sprawy '{case_title}' przygotowano dokumenty prawne które możesz zakupić w panelu klienta.",
	},
	models.TplUnclearScans: {
		SMS:          "Prawnik AI: Niektóre dokumenty są nieczytelne. Prawnik skontaktuje się w sprawie dodatkowych informacji.",
		EmailSubject: "Potrzebne dodatkowe informacje",
		EmailBody:    "W sprawie '{case_title}' niektóre dokumenty wymagają doprecyzowania. Prawnik skontaktuje się z Tobą w celu wyjaśnienia szczegółów.",
	},
	models.TplCaseCompleted: {
		SMS:          "Prawnik AI: Sprawa '{case_title}' zakończona. Dziękujemy za skorzystanie z usług!",
		EmailSubject: "Sprawa zakończona - AI Prawnik PL",
		EmailBody:    "Sprawa '{case_title}' została zakończona. Wszystkie analizy i dokumenty pozostają dostępne w Twoim panelu klienta.",
	},
	models.TplVerificationCode: {
		SMS:          "Prawnik AI: Twój kod weryfikacyjny to {code}. Kod wygasa za 10 minut.",
		EmailSubject: "Kod weryfikacyjny - AI Prawnik PL",
		EmailBody:    "Twój kod weryfikacyjny to {code}. Kod wygasa za 10 minut.",
	},
	models.TplNewMessage: {
		SMS:          "Prawnik AI: Masz nową wiadomość w sprawie '{case_title}'. Sprawdź panel: {panel_url}",
		EmailSubject: "Nowa wiadomość - AI Prawnik PL",
		EmailBody:    "Otrzymałeś nową wiadomość: '{message_subject}'. Zaloguj się do panelu aby odpowiedzieć: {panel_url}",
	},
}

// Render substitutes {name} placeholders in the template's format
// string for the given channel. Missing templates render empty.
func Render(template models.Template, ch models.Channel, vars map[string]string) (subject, body string) {
	t, ok := templates[template]
	if !ok {
		return "", ""
	}
	switch ch {
	case models.ChannelSMS, models.ChannelInApp:
		return "", interpolate(t.SMS, vars)
	case models.ChannelEmail:
		return interpolate(t.EmailSubject, vars), interpolate(t.EmailBody, vars)
	}
	return "", ""
}

func interpolate(format string, vars map[string]string) string {
	out := format
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}
