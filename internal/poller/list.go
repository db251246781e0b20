package poller

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"StockPulse/internal/collector"
	"StockPulse/internal/model"
)

// QuoteFetcher fetches one converted quote.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol, country string) (*collector.Result, error)
}

// ListSnapshot is the merged state after a tick. Quotes follow the tracked
// symbol order; Stale names symbols whose quote was carried over from an
// earlier tick.
type ListSnapshot struct {
	Quotes    []model.Quote `json:"quotes"`
	Stale     []string      `json:"stale,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// ListPoller refreshes a set of symbols every 30 seconds.
type ListPoller struct {
	fetcher QuoteFetcher
	country string
	logger  arbor.ILogger
	now     func() time.Time
	hub     *hub[ListSnapshot]
	run     runner

	// tickMu keeps a manual Tick from interleaving with the scheduled one.
	tickMu sync.Mutex

	mu      sync.Mutex
	symbols []string
	state   map[string]model.Quote
	last    ListSnapshot
}

func NewListPoller(f QuoteFetcher, symbols []string, country string, opts ...Option) *ListPoller {
	o := buildOptions(opts)
	return &ListPoller{
		fetcher: f,
		country: country,
		logger:  o.logger,
		now:     o.now,
		hub:     newHub[ListSnapshot](),
		run:     runner{interval: listInterval, logger: o.logger},
		symbols: normalize(symbols),
		state:   make(map[string]model.Quote),
	}
}

func normalize(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// Start runs one tick right away and then every 30 seconds until Stop or
// ctx is cancelled.
func (p *ListPoller) Start(ctx context.Context) error {
	return p.run.start(ctx, func(ctx context.Context) { p.Tick(ctx) })
}

// Stop cancels the running tick and waits for it. It is idempotent.
func (p *ListPoller) Stop() { p.run.stop() }

// Subscribe returns a channel of snapshots and its cancel function.
func (p *ListPoller) Subscribe() (<-chan ListSnapshot, func()) {
	return p.hub.subscribe()
}

// SetSymbols replaces the tracked set. Quotes of removed symbols are dropped.
func (p *ListPoller) SetSymbols(symbols []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.symbols = normalize(symbols)
	for sym := range p.state {
		if !slices.Contains(p.symbols, sym) {
			delete(p.state, sym)
		}
	}
}

func (p *ListPoller) Symbols() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.symbols)
}

// Snapshot returns the latest published state.
func (p *ListPoller) Snapshot() ListSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Tick fetches every tracked symbol once, merges the results with the
// previous state and publishes the snapshot. Concurrent calls run one after
// the other.
func (p *ListPoller) Tick(ctx context.Context) ListSnapshot {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	symbols := p.Symbols()

	fresh := make(map[string]model.Quote, len(symbols))
	for _, sym := range symbols {
		if ctx.Err() != nil {
			break
		}
		res, err := p.fetcher.FetchQuote(ctx, sym, p.country)
		if err != nil {
			p.logger.Debug().Str("symbol", sym).Err(err).Msg("Poll failed, keeping previous quote")
			continue
		}
		fresh[sym] = res.Quote
	}

	p.mu.Lock()
	for sym, q := range fresh {
		// SetSymbols may have dropped it mid-tick.
		if slices.Contains(p.symbols, sym) {
			p.state[sym] = q
		}
	}
	snap := ListSnapshot{UpdatedAt: p.now()}
	for _, sym := range p.symbols {
		q, ok := p.state[sym]
		if !ok {
			continue
		}
		snap.Quotes = append(snap.Quotes, q)
		if _, got := fresh[sym]; !got {
			snap.Stale = append(snap.Stale, sym)
		}
	}
	p.last = snap
	p.mu.Unlock()

	p.hub.publish(snap)
	return snap
}
