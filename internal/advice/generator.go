package advice

import (
	"context"
	"errors"
	"sync"
)

// Generator is the text-generation capability. One call is one attempt.
type Generator interface {
	Generate(ctx context.Context, systemInstruction, userPayload string) (string, error)
}

// MockGenerator returns scripted replies and records every call.
type MockGenerator struct {
	mu      sync.Mutex
	Reply   string
	Err     error
	Calls   []MockCall
	OnCall  func(MockCall)
	replies []string
}

type MockCall struct {
	System  string
	Payload string
}

func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply}
}

// Queue makes the next calls return the given replies in order before falling back to Reply.
func (m *MockGenerator) Queue(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

func (m *MockGenerator) Generate(ctx context.Context, systemInstruction, userPayload string) (string, error) {
	call := MockCall{System: systemInstruction, Payload: userPayload}
	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	hook := m.OnCall
	reply, err := m.Reply, m.Err
	if len(m.replies) > 0 {
		reply, m.replies = m.replies[0], m.replies[1:]
	}
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", errors.New("mock: empty reply")
	}
	return reply, nil
}

func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockGenerator) LastCall() MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return MockCall{}
	}
	return m.Calls[len(m.Calls)-1]
}
