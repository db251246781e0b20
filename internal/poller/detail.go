package poller

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"StockPulse/internal/model"
)

// DetailFetcher fetches a full quote detail.
type DetailFetcher interface {
	FetchDetail(ctx context.Context, symbol string) (*model.QuoteDetail, error)
}

// DetailSnapshot carries the latest detail. Stale is set when the last tick
// failed and Detail is from an earlier one.
type DetailSnapshot struct {
	Detail    *model.QuoteDetail `json:"detail,omitempty"`
	Stale     bool               `json:"stale"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// DetailPoller refreshes one symbol every 15 seconds.
type DetailPoller struct {
	fetcher DetailFetcher
	symbol  string
	logger  arbor.ILogger
	now     func() time.Time
	hub     *hub[DetailSnapshot]
	run     runner

	tickMu sync.Mutex

	mu   sync.Mutex
	last DetailSnapshot
}

func NewDetailPoller(f DetailFetcher, symbol string, opts ...Option) *DetailPoller {
	o := buildOptions(opts)
	return &DetailPoller{
		fetcher: f,
		symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
		logger:  o.logger,
		now:     o.now,
		hub:     newHub[DetailSnapshot](),
		run:     runner{interval: detailInterval, logger: o.logger},
	}
}

func (p *DetailPoller) Start(ctx context.Context) error {
	return p.run.start(ctx, func(ctx context.Context) { p.Tick(ctx) })
}

func (p *DetailPoller) Stop() { p.run.stop() }

func (p *DetailPoller) Subscribe() (<-chan DetailSnapshot, func()) {
	return p.hub.subscribe()
}

func (p *DetailPoller) Snapshot() DetailSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Tick refreshes the detail. On failure the previous detail is republished
// marked stale; nothing is published before the first success.
func (p *DetailPoller) Tick(ctx context.Context) DetailSnapshot {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	d, err := p.fetcher.FetchDetail(ctx, p.symbol)

	p.mu.Lock()
	if err != nil {
		p.logger.Debug().Str("symbol", p.symbol).Err(err).Msg("Detail poll failed, keeping previous detail")
		if p.last.Detail == nil {
			p.mu.Unlock()
			return DetailSnapshot{}
		}
		p.last.Stale = true
	} else {
		p.last = DetailSnapshot{Detail: d, UpdatedAt: p.now()}
	}
	snap := p.last
	p.mu.Unlock()

	p.hub.publish(snap)
	return snap
}
