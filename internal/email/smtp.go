package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/smtp"
	"strings"
	"time"
)

// SMTPEmailService sends emails via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Any standard SMTP server with username/password authentication
//
// Email templates are compiled in and rendered with html/template.
type SMTPEmailService struct {
	config    SMTPConfig
	baseURL   string
	templates *template.Template
	logger    *slog.Logger
}

// NewSMTPEmailService creates a new SMTP-based email service.
//
// The baseURL is the application's public URL, used for constructing
// links in emails (e.g., "http://localhost:8080").
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) (*SMTPEmailService, error) {
	// Set defaults
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	templates, err := template.New("email").Parse(emailTemplates)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &SMTPEmailService{
		config:    config,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		templates: templates,
		logger:    logger,
	}, nil
}

// SendVerificationEmail sends an email verification link to a new user.
func (s *SMTPEmailService) SendVerificationEmail(ctx context.Context, to, name, token string) error {
	verifyURL := fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token)

	data := map[string]interface{}{
		"Name":      name,
		"VerifyURL": verifyURL,
		"Year":      time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("verification", data)
	if err != nil {
		return fmt.Errorf("failed to render verification email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Welcome to HabitFlow! Please verify your email address by clicking the link below:

%s

This link will expire in 24 hours.

If you didn't create an account with HabitFlow, you can safely ignore this email.

Thanks,
The HabitFlow Team
`, name, verifyURL)

	email := Email{
		To:       to,
		Subject:  "Verify your HabitFlow account",
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	return s.send(ctx, email)
}

// SendPremiumWelcomeEmail confirms a premium subscription.
func (s *SMTPEmailService) SendPremiumWelcomeEmail(ctx context.Context, to, name string) error {
	data := map[string]interface{}{
		"Name": name,
		"Year": time.Now().Year(),
	}

	htmlBody, err := s.renderTemplate("premium_welcome", data)
	if err != nil {
		return fmt.Errorf("failed to render premium welcome email template: %w", err)
	}

	textBody := fmt.Sprintf(`Hi %s,

Thanks for upgrading to HabitFlow Premium! You now have unlimited daily motivational quotes.

Thanks,
The HabitFlow Team
`, name)

	email := Email{
		To:       to,
		Subject:  "Welcome to HabitFlow Premium",
		HTMLBody: htmlBody,
		TextBody: textBody,
	}

	return s.send(ctx, email)
}

// send sends an email via SMTP.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	msg := s.buildMessage(email)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Auth only when credentials are provided (not needed for Mailhog)
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg)
	if err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	boundary := "===============HABITFLOW_BOUNDARY==============="
	buf.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary))
	buf.WriteString("\r\n")

	// Plain text part
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	// HTML part
	buf.WriteString(fmt.Sprintf("--%s\r\n", boundary))
	buf.WriteString("Content-Type: text/html; charset=utf-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: quoted-printable\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.HTMLBody)
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("--%s--\r\n", boundary))

	return buf.Bytes()
}

// renderTemplate renders an email template with the given data.
func (s *SMTPEmailService) renderTemplate(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// emailTemplates holds the compiled-in HTML email templates.
const emailTemplates = `
{{define "verification"}}
<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333; max-width: 560px; margin: 0 auto;">
  <h2>Welcome to HabitFlow, {{.Name}}!</h2>
  <p>Please verify your email address to activate your account:</p>
  <p><a href="{{.VerifyURL}}" style="display: inline-block; padding: 10px 20px; background: #4f46e5; color: #fff; text-decoration: none; border-radius: 6px;">Verify Email</a></p>
  <p>Or paste this link into your browser:</p>
  <p><a href="{{.VerifyURL}}">{{.VerifyURL}}</a></p>
  <p>This link will expire in 24 hours. If you didn't create an account, you can safely ignore this email.</p>
  <p style="color: #888; font-size: 12px;">&copy; {{.Year}} HabitFlow</p>
</body>
</html>
{{end}}

{{define "premium_welcome"}}
<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333; max-width: 560px; margin: 0 auto;">
  <h2>You're premium now, {{.Name}}!</h2>
  <p>Thanks for upgrading to HabitFlow Premium. Daily quote limits no longer apply to your account.</p>
  <p style="color: #888; font-size: 12px;">&copy; {{.Year}} HabitFlow</p>
</body>
</html>
{{end}}
`

// Compile-time interface check
var _ EmailService = (*SMTPEmailService)(nil)
