// Package mailer delivers transactional mail over SMTP.
//
// Without SMTP_HOST configured it degrades to logging the rendered mail,
// which is the intended development mode: the reset flow keeps working and
// the token is visible in the logs.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/diread/diread/internal/logger"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string

	From     string
	FromName string

	// Deep link the reset token is appended to, e.g. diread://reset-password
	FrontendURL string
}

type Mailer struct {
	cfg    Config
	logger logger.Logger

	// send is swappable in tests, defaults to smtp.SendMail
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg Config, l logger.Logger) *Mailer {
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Mailer{
		cfg:    cfg,
		logger: l,
		send:   smtp.SendMail,
	}
}

// SendPasswordReset mails the reset deep link to the user
func (m *Mailer) SendPasswordReset(ctx context.Context, toEmail string, plaintextToken string, displayName string) error {
	if displayName == "" {
		displayName = "there"
	}
	resetLink := fmt.Sprintf("%s?token=%s", m.cfg.FrontendURL, plaintextToken)

	subject := "Reset your diRead password"
	body := strings.Join([]string{
		fmt.Sprintf("Hi %s,", displayName),
		"",
		"We received a request to reset your password.",
		"",
		"Open this link to choose a new one:",
		resetLink,
		"",
		"If you didn't request this, you can safely ignore this email.",
		"",
		"- diRead",
	}, "\r\n")

	if m.cfg.Host == "" || m.cfg.From == "" {
		// Development mode: no SMTP configured, log instead of sending.
		// The token itself stays out of the structured fields on purpose
		m.logger.Info("smtp not configured, logging mail instead",
			"to", toEmail,
			"subject", subject,
		)
		m.logger.Debug("mail body", "body", body)
		return nil
	}

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", m.cfg.FromName, m.cfg.From),
		fmt.Sprintf("To: %s", toEmail),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="utf-8"`,
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(addr, auth, m.cfg.From, []string{toEmail}, []byte(msg)); err != nil {
		return fmt.Errorf("error while sending mail. Err: %w", err)
	}

	m.logger.Info("password reset mail sent", "to", toEmail)
	return nil
}
