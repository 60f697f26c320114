package services

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/homeswift/homeswift-api/config"
	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"
)

// EmailMessage is one outgoing HTML email
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
}

// EmailResult reports delivery. Senders never panic or return an error to the caller.
type EmailResult struct {
	Sent  bool
	Error string
}

// EmailSender delivers transactional email
type EmailSender interface {
	SendEmail(msg EmailMessage) EmailResult
}

// emailErr turns a failed EmailResult into an error for side-effect bookkeeping
func emailErr(res EmailResult) error {
	if res.Sent {
		return nil
	}
	if res.Error == "" {
		return fmt.Errorf("email not sent")
	}
	return fmt.Errorf("email not sent: %s", res.Error)
}

// SMTPEmailService sends mail through an SMTP relay
type SMTPEmailService struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPEmailService creates an SMTP sender from the SMTP_* settings
func NewSMTPEmailService(cfg *config.Config) (*SMTPEmailService, error) {
	port, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT is not a number: %w", err)
	}

	return &SMTPEmailService{
		dialer: gomail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUsername, cfg.SMTPPassword),
		from:   cfg.SMTPFrom,
	}, nil
}

// SendEmail delivers msg, reporting failure in the result
func (s *SMTPEmailService) SendEmail(msg EmailMessage) EmailResult {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		log.Error().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("failed to send email")
		return EmailResult{Error: err.Error()}
	}
	return EmailResult{Sent: true}
}

// LogEmailService only logs messages. Used when SMTP is not configured.
type LogEmailService struct{}

// SendEmail logs msg and reports it as sent
func (LogEmailService) SendEmail(msg EmailMessage) EmailResult {
	log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email delivery disabled, message logged")
	return EmailResult{Sent: true}
}

// MockEmailService records messages for testing
type MockEmailService struct {
	sent    []EmailMessage
	failFor map[string]bool
	mu      sync.RWMutex
}

// NewMockEmailService creates a new mock email service
func NewMockEmailService() *MockEmailService {
	return &MockEmailService{failFor: make(map[string]bool)}
}

// SendEmail records msg, or fails it if the recipient was marked failing
func (m *MockEmailService) SendEmail(msg EmailMessage) EmailResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFor[msg.To] {
		return EmailResult{Error: "mock delivery failure"}
	}
	m.sent = append(m.sent, msg)
	return EmailResult{Sent: true}
}

// FailFor makes every message to address fail
func (m *MockEmailService) FailFor(address string) {
	m.mu.Lock()
	m.failFor[address] = true
	m.mu.Unlock()
}

// Sent returns a copy of the delivered messages
func (m *MockEmailService) Sent() []EmailMessage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]EmailMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the messages delivered to address
func (m *MockEmailService) SentTo(address string) []EmailMessage {
	var out []EmailMessage
	for _, msg := range m.Sent() {
		if msg.To == address {
			out = append(out, msg)
		}
	}
	return out
}

// Clear forgets all delivered messages and failures
func (m *MockEmailService) Clear() {
	m.mu.Lock()
	m.sent = nil
	m.failFor = make(map[string]bool)
	m.mu.Unlock()
}
