// Package memory records notifications instead of delivering them, for tests
// and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/finclose/finclose/service/notify"
)

// Notification is one recorded send.
type Notification struct {
	Recipient string
	Subject   string
	Body      string
}

// Service records every Send call; set Err to simulate delivery failures.
type Service struct {
	mu   sync.Mutex
	Sent []Notification
	Err  error
}

var _ notify.Service = (*Service)(nil)

// New creates a recording notifier.
func New() *Service {
	return &Service{}
}

func (s *Service) Send(_ context.Context, recipient, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Sent = append(s.Sent, Notification{Recipient: recipient, Subject: subject, Body: body})
	return nil
}
