package testutil

import (
	"context"
	"sync"

	"github.com/vizora/entitlements/internal/audit"
)

// AuditSpy collects dispatched audit entries in memory.
type AuditSpy struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (s *AuditSpy) Dispatch(_ context.Context, e audit.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

func (s *AuditSpy) Entries() []audit.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Entry(nil), s.entries...)
}

// Actions lists the action names in dispatch order.
func (s *AuditSpy) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	actions := make([]string, len(s.entries))
	for i, e := range s.entries {
		actions[i] = e.Action
	}
	return actions
}
