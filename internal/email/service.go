// Package email sends the storefront's transactional mail.
package email

import (
	"sync"

	"github.com/kuitang/stylehaven/internal/obs"
)

// EmailService sends templated emails.
type EmailService interface {
	// Send sends templateName rendered with data to one recipient.
	Send(to, templateName string, data any) error
}

// SentEmail represents a captured email for testing.
type SentEmail struct {
	To       string
	Template string
	Data     any
}

// MockEmailService captures emails instead of sending them. It is the
// backend for --no-email and for tests.
type MockEmailService struct {
	mu     sync.Mutex
	Emails []SentEmail
}

// NewMockEmailService creates a new mock email service.
func NewMockEmailService() *MockEmailService {
	return &MockEmailService{Emails: make([]SentEmail, 0)}
}

// Send records the email and logs it.
func (m *MockEmailService) Send(to, templateName string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = append(m.Emails, SentEmail{To: to, Template: templateName, Data: data})

	attrs := []any{"to", to, "template", templateName}
	if d, ok := data.(WelcomeData); ok {
		attrs = append(attrs, "name", d.Name)
	}
	obs.Pkg("email").Info("mock email captured", attrs...)
	return nil
}

// LastEmail returns the most recently sent email, or the zero value.
func (m *MockEmailService) LastEmail() SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Emails) == 0 {
		return SentEmail{}
	}
	return m.Emails[len(m.Emails)-1]
}

// Clear removes all captured emails.
func (m *MockEmailService) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Emails = make([]SentEmail, 0)
}

// Count returns the number of captured emails.
func (m *MockEmailService) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Emails)
}
