package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mkowalczyk/prawnik-backend/pkg/models"
)

func TestRenderSMS(t *testing.T) {
	_, body := Render(models.TplPaymentReceived, models.ChannelSMS, map[string]string{
		"amount":    "199.00",
		"panel_url": "https://example.com/panel",
	})
	assert.Contains(t, body, "199.00 zł")
	assert.Contains(t, body, "https://example.com/panel")
	assert.NotContains(t, body, "{amount}")
}

func TestRenderEmail(t *testing.T) {
	subject, body := Render(models.TplAnalysisReady, models.ChannelEmail, map[string]string{
		"case_title": "Spór z deweloperem",
	})
	assert.NotEmpty(t, subject)
	assert.Contains(t, body, "Spór z deweloperem")
}

func TestRenderInAppUsesSMSText(t *testing.T) {
	_, sms := Render(models.TplVerificationCode, models.ChannelSMS, map[string]string{"code": "123456"})
	_, inApp := Render(models.TplVerificationCode, models.ChannelInApp, map[string]string{"code": "123456"})
	assert.Equal(t, sms, inApp)
	assert.Contains(t, inApp, "123456")
}

func TestRenderUnknownTemplate(t *testing.T) {
	subject, body := Render(models.Template("nope"), models.ChannelEmail, nil)
	assert.Empty(t, subject)
	assert.Empty(t, body)
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	_, body := Render(models.TplNewMessage, models.ChannelEmail, map[string]string{
		"panel_url": "https://example.com",
	})
	// message_subject was not supplied; the placeholder stays visible
	// instead of silently rendering an empty quote pair.
	assert.True(t, strings.Contains(body, "{message_subject}"))
}

func TestEveryTemplateHasAllChannels(t *testing.T) {
	for name, def := range templates {
		assert.NotEmpty(t, def.SMS, "template %s missing SMS text", name)
		assert.NotEmpty(t, def.EmailSubject, "template %s missing email subject", name)
		assert.NotEmpty(t, def.EmailBody, "template %s missing email body", name)
	}
}
