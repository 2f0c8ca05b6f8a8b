package services

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"studio_app_echo/internal/config"
)

// ErrMailerNotConfigured is returned when SMTP credentials are missing
var ErrMailerNotConfigured = errors.New("SMTP credentials not fully configured")

// Mailer sends plain-text email
type Mailer interface {
	SendEmail(to []string, subject, body string) error
}

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewEmailService(cfg config.SMTPConfig) *EmailService {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &EmailService{
		host:     cfg.Host,
		port:     cfg.Port,
		user:     cfg.User,
		password: cfg.Password,
		from:     from,
		send:     smtp.SendMail,
	}
}

func (s *EmailService) SendEmail(to []string, subject, body string) error {
	if s.host == "" || s.port == "" || s.user == "" || s.password == "" {
		return ErrMailerNotConfigured
	}
	if len(to) == 0 {
		return fmt.Errorf("email has no recipients")
	}

	auth := smtp.PlainAuth("", s.user, s.password, s.host)

	message := []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/plain; charset=\"UTF-8\"\r\n"+
		"\r\n"+
		"%s\r\n", s.from, strings.Join(to, ", "), subject, body))

	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := s.send(addr, auth, s.from, to, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}
