package notify

import (
	"fmt"
	"net/smtp"
)

// Mailer sends transactional email over SMTP.
type Mailer struct {
	host string
	port string
	user string
	pass string
	from string
}

func NewMailer(host, port, user, pass, from string) *Mailer {
	return &Mailer{host: host, port: port, user: user, pass: pass, from: from}
}

// Configured reports whether SMTP credentials are present.
func (m *Mailer) Configured() bool {
	return m.host != "" && m.port != "" && m.user != "" && m.pass != ""
}

// Send delivers one plain-text email.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.Configured() {
		return fmt.Errorf("email: SMTP credentials not fully configured")
	}

	auth := smtp.PlainAuth("", m.user, m.pass, m.host)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		m.from, to, subject, body))

	addr := m.host + ":" + m.port
	if err := smtp.SendMail(addr, auth, m.from, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
