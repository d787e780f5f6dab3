package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"fleet-alerts/internal/config"

	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var alertTemplate = template.Must(template.ParseFS(templateFS, "templates/alert.html"))

// Mailer delivers alert notifications over SMTP. Send never returns an error;
// failures are logged and reported as false.
type Mailer struct {
	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromEmail    string
	fromName     string
	appURL       string
	logger       *zap.Logger
	now          func() time.Time
}

type alertEmailData struct {
	Subject  string
	Lines    []string
	AppURL   string
	FromName string
}

func NewMailer(cfg config.SMTPConfig, logger *zap.Logger) *Mailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailer{
		smtpHost:     cfg.Host,
		smtpPort:     cfg.Port,
		smtpUsername: cfg.Username,
		smtpPassword: cfg.Password,
		fromEmail:    cfg.FromEmail,
		fromName:     cfg.FromName,
		appURL:       strings.TrimRight(cfg.AppURL, "/"),
		logger:       logger.Named("mailer"),
		now:          time.Now,
	}
}

// IsConfigured reports whether a relay and sender address are set.
func (s *Mailer) IsConfigured() bool {
	return s.smtpHost != "" && s.smtpPort != "" && s.fromEmail != ""
}

// Send renders body into the alert template and delivers it to every recipient
// in a single SMTP transaction.
func (s *Mailer) Send(ctx context.Context, recipients []string, subject, body string) bool {
	if !s.IsConfigured() {
		s.logger.Warn("smtp not configured, message dropped", zap.String("subject", subject))
		return false
	}
	if len(recipients) == 0 {
		return false
	}

	html, err := s.render(subject, body)
	if err != nil {
		s.logger.Error("failed to render email", zap.String("subject", subject), zap.Error(err))
		return false
	}

	message := s.buildEmailMessage(recipients, subject, html)
	if err := s.sendEmail(ctx, recipients, message); err != nil {
		s.logger.Error("failed to send email",
			zap.String("subject", subject),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		return false
	}

	s.logger.Info("email sent", zap.String("subject", subject), zap.Int("recipients", len(recipients)))
	return true
}

func (s *Mailer) render(subject, body string) (string, error) {
	data := alertEmailData{
		Subject:  subject,
		Lines:    strings.Split(body, "\n"),
		AppURL:   s.appURL,
		FromName: s.fromName,
	}

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute email template: %w", err)
	}
	return buf.String(), nil
}

func (s *Mailer) buildEmailMessage(recipients []string, subject, htmlBody string) []byte {
	from := s.fromEmail
	if s.fromName != "" {
		from = fmt.Sprintf("%s <%s>", mime.QEncoding.Encode("utf-8", s.fromName), s.fromEmail)
	}

	headers := [][2]string{
		{"From", from},
		{"To", strings.Join(recipients, ", ")},
		{"Subject", mime.QEncoding.Encode("utf-8", subject)},
		{"Date", s.now().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.WriteString(htmlBody)

	return []byte(b.String())
}

func (s *Mailer) sendEmail(ctx context.Context, recipients []string, message []byte) error {
	addr := net.JoinHostPort(s.smtpHost, s.smtpPort)

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.smtpHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: s.smtpHost}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if s.smtpUsername != "" {
		auth := smtp.PlainAuth("", s.smtpUsername, s.smtpPassword, s.smtpHost)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := client.Mail(s.fromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err := w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	return client.Quit()
}
