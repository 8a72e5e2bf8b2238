package mailer

import (
	"context"
	"sync"
)

type sentMail struct {
	From, To, Subject, Body string
}

type MockEmailClient struct {
	mu    sync.Mutex
	Sent  []sentMail
	Err   error
	Calls int
}

func (m *MockEmailClient) Send(_ context.Context, from, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, sentMail{from, to, subject, body})
	return nil
}
