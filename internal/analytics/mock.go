package analytics

import "context"

var _ Service = (*MockAnalytics)(nil)

// MockAnalytics is a no-op Service implementation for testing. It remembers
// the events it was given so handler tests can assert on them.
type MockAnalytics struct {
	Events []DecisionEvent
}

// NewMockAnalytics creates a new mock analytics instance.
func NewMockAnalytics() *MockAnalytics {
	return &MockAnalytics{}
}

// RecordDecision records the event in memory.
func (m *MockAnalytics) RecordDecision(_ context.Context, ev DecisionEvent) error {
	m.Events = append(m.Events, ev)
	return nil
}
