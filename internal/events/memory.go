package events

import (
	"context"
	"sync"
)

// MemoryPublisher collects events in memory. Used in tests and when no
// broker is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []CompanyDataChanged
}

func NewMemory() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, event CompanyDataChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *MemoryPublisher) Close() {}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []CompanyDataChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompanyDataChanged, len(p.events))
	copy(out, p.events)
	return out
}
