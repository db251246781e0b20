package collector

import (
	"context"
	"fmt"
	"sync"
)

// MockSource returns controllable fixed quotes for development and testing.
// Quotes take precedence; otherwise a quote is generated around Price.
type MockSource struct {
	SourceName string
	Price      float64
	Quotes     map[string]RawQuote
	Err        error

	mu    sync.Mutex
	calls []string
}

func (m *MockSource) Name() string {
	if m.SourceName == "" {
		return "mock"
	}
	return m.SourceName
}

func (m *MockSource) FetchQuote(_ context.Context, symbol string) (RawQuote, error) {
	m.mu.Lock()
	m.calls = append(m.calls, symbol)
	m.mu.Unlock()

	if m.Err != nil {
		return RawQuote{}, m.Err
	}
	if q, ok := m.Quotes[symbol]; ok {
		return q, nil
	}
	if m.Price > 0 {
		return generateMockQuote(m.Price), nil
	}
	return RawQuote{}, fmt.Errorf("%s: unknown symbol %s", m.Name(), symbol)
}

// Calls returns the symbols requested so far.
func (m *MockSource) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func generateMockQuote(p float64) RawQuote {
	prev := p * 0.99
	return RawQuote{
		Price:         p,
		Change:        p - prev,
		ChangePercent: (p - prev) / prev * 100,
		Volume:        1000000,
		Open:          p * 0.999,
		High:          p * 1.005,
		Low:           p * 0.995,
		PreviousClose: prev,
	}
}
