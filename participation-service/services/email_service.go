package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	pconfig "transparencia-backend/participation-service/config"
	"transparencia-backend/shared/config"
	"transparencia-backend/shared/database/models/participation"
	"transparencia-backend/shared/logger"
)

// Email is one outgoing message. When TemplateID is set the body is rendered
// from the template and sent as HTML.
type Email struct {
	To           []string               `json:"to" binding:"required"`
	CC           []string               `json:"cc,omitempty"`
	BCC          []string               `json:"bcc,omitempty"`
	Subject      string                 `json:"subject" binding:"required"`
	Body         string                 `json:"body"`
	IsHTML       bool                   `json:"is_html"`
	TemplateID   string                 `json:"template_id,omitempty"`
	TemplateVars map[string]interface{} `json:"template_vars,omitempty"`
}

// Sender delivers a fully rendered email
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// SMTPSender sends through the configured SMTP server
type SMTPSender struct {
	config *config.Config
}

func NewSMTPSender(cfg *config.Config) *SMTPSender {
	return &SMTPSender{config: cfg}
}

// Send sends email via SMTP
func (s *SMTPSender) Send(ctx context.Context, email Email) error {
	host := s.config.SMTPHost
	port := s.config.SMTPPort
	username := s.config.SMTPUsername
	password := s.config.SMTPPassword
	if host == "" || username == "" || password == "" {
		return errors.New("SMTP configuration is incomplete")
	}

	auth := smtp.PlainAuth("", username, password, host)
	addr := net.JoinHostPort(host, port)

	recipients := make([]string, 0, len(email.To)+len(email.CC)+len(email.BCC))
	recipients = append(recipients, email.To...)
	recipients = append(recipients, email.CC...)
	recipients = append(recipients, email.BCC...)

	message := []byte(s.buildMessage(email))

	// Port 465 uses implicit TLS, other ports may negotiate STARTTLS
	if port == "465" || s.config.SMTPUseTLS {
		return s.sendWithTLS(ctx, addr, host, auth, recipients, message)
	}
	return smtp.SendMail(addr, auth, s.config.EmailFrom, recipients, message)
}

func (s *SMTPSender) sendWithTLS(ctx context.Context, addr, host string, auth smtp.Auth, to []string, msg []byte) error {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if err = client.Auth(auth); err != nil {
		return err
	}
	if err = client.Mail(s.config.EmailFrom); err != nil {
		return err
	}
	for _, recipient := range to {
		if err = client.Rcpt(recipient); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *SMTPSender) buildMessage(email Email) string {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", mime.QEncoding.Encode("UTF-8", s.config.EmailFromName), s.config.EmailFrom))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(email.To, ", ")))
	if len(email.CC) > 0 {
		msg.WriteString(fmt.Sprintf("Cc: %s\r\n", strings.Join(email.CC, ", ")))
	}
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", email.Subject)))
	msg.WriteString(fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	if email.IsHTML {
		msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	} else {
		msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	}
	msg.WriteString("\r\n")
	msg.WriteString(email.Body)

	return msg.String()
}

// EmailService renders and delivers mail, either immediately or through a
// bounded queue drained by Start
type EmailService struct {
	sender    Sender
	templates *TemplateService
	mail      pconfig.MailConfig
	queue     chan Email
}

// NewEmailService creates the service. A disabled mail config turns Enqueue
// into a no-op.
func NewEmailService(sender Sender, templates *TemplateService, mail pconfig.MailConfig) *EmailService {
	size := mail.QueueSize
	if size < 1 {
		size = 1
	}
	return &EmailService{
		sender:    sender,
		templates: templates,
		mail:      mail,
		queue:     make(chan Email, size),
	}
}

// Send renders email and delivers it synchronously
func (es *EmailService) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return errors.New("recipient list cannot be empty")
	}
	if email.Subject == "" {
		return errors.New("subject cannot be empty")
	}

	if email.TemplateID != "" {
		body, err := es.templates.RenderTemplate(email.TemplateID, email.TemplateVars)
		if err != nil {
			return err
		}
		email.Body = body
		email.IsHTML = true
	}
	if email.Body == "" {
		return errors.New("body cannot be empty")
	}

	if err := es.sender.Send(ctx, email); err != nil {
		return fmt.Errorf("send email to %v: %w", email.To, err)
	}
	logger.L().Info("email sent", "to", email.To, "subject", email.Subject)
	return nil
}

// Enqueue schedules email for delivery without blocking. It reports false
// when mail is disabled or the queue is full.
func (es *EmailService) Enqueue(email Email) bool {
	if !es.mail.Enabled {
		return false
	}
	select {
	case es.queue <- email:
		return true
	default:
		logger.L().Warn("email queue full, dropping message", "to", email.To, "subject", email.Subject)
		return false
	}
}

// Start drains the queue until ctx is cancelled, retrying failed deliveries
func (es *EmailService) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case email := <-es.queue:
			es.deliver(ctx, email)
		}
	}
}

func (es *EmailService) deliver(ctx context.Context, email Email) {
	attempts := es.mail.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = es.Send(ctx, email); err == nil {
			return
		}
		logger.L().Warn("email delivery failed", "to", email.To, "attempt", i, "error", err)
		if i == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(es.mail.RetryDelay):
		}
	}
	logger.L().Error("email dropped after retries", "to", email.To, "subject", email.Subject, "error", err)
}

// Helper methods for the portal's mail templates

// QueueConfirmation acknowledges a citizen message to its sender
func (es *EmailService) QueueConfirmation(m *participation.Message, area string) {
	es.Enqueue(Email{
		To:         []string{m.Email},
		Subject:    "Confirmación de recepción - Folio " + m.Folio,
		TemplateID: TemplateConfirmation,
		TemplateVars: map[string]interface{}{
			"Name":    m.FullName,
			"Folio":   m.Folio,
			"Subject": m.Subject,
			"Area":    area,
		},
	})
}

// QueueInternalNotification tells the staff a citizen message arrived
func (es *EmailService) QueueInternalNotification(m *participation.Message, area string) {
	if len(es.mail.InternalRecipients) == 0 {
		return
	}
	es.Enqueue(Email{
		To:         es.mail.InternalRecipients,
		Subject:    "Nuevo mensaje de participación ciudadana - " + m.Folio,
		TemplateID: TemplateInternal,
		TemplateVars: map[string]interface{}{
			"Name":    m.FullName,
			"Email":   m.Email,
			"Folio":   m.Folio,
			"Subject": m.Subject,
			"Body":    m.Body,
			"Area":    area,
			"Channel": m.Channel,
		},
	})
}

// QueueResponse mails the staff answer to the citizen
func (es *EmailService) QueueResponse(m *participation.Message, area string) {
	es.Enqueue(Email{
		To:         []string{m.Email},
		Subject:    "Respuesta a su mensaje - Folio " + m.Folio,
		TemplateID: TemplateResponse,
		TemplateVars: map[string]interface{}{
			"Name":     m.FullName,
			"Folio":    m.Folio,
			"Subject":  m.Subject,
			"Area":     area,
			"Response": m.Response,
		},
	})
}

// QueuePasswordReset sends a temporary password to a portal user
func (es *EmailService) QueuePasswordReset(to, name, temporaryPassword string) bool {
	return es.Enqueue(Email{
		To:         []string{to},
		Subject:    "Restablecimiento de contraseña - Portal de Transparencia",
		TemplateID: TemplatePasswordReset,
		TemplateVars: map[string]interface{}{
			"Name":              name,
			"TemporaryPassword": temporaryPassword,
		},
	})
}
