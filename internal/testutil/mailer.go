package testutil

import (
	"sync"
)

// SentMail StubMailer 记录的一封邮件
type SentMail struct {
	Recipient string
	Template  string
	Data      any
}

// StubMailer 只记录邮件不发送，Err 非空时每次 Send 都返回它
type StubMailer struct {
	mu   sync.Mutex
	sent []SentMail
	Err  error
}

func NewStubMailer() *StubMailer {
	return &StubMailer{}
}

func (m *StubMailer) Send(recipient, templateFile string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMail{Recipient: recipient, Template: templateFile, Data: data})
	return nil
}

// Sent 返回已记录邮件的副本
func (m *StubMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMail, len(m.sent))
	copy(out, m.sent)
	return out
}
