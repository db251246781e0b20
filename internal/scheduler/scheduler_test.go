package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/analyzer"
	"StockPulse/internal/collector"
	"StockPulse/internal/model"
	"StockPulse/internal/news"
	"StockPulse/internal/recorder"
)

type fakeQuotes struct {
	prices map[string]float64
}

func (f fakeQuotes) FetchDetail(_ context.Context, symbol string) (*model.QuoteDetail, error) {
	p, ok := f.prices[symbol]
	if !ok {
		return nil, collector.ErrNoData
	}
	return &model.QuoteDetail{
		Quote: model.Quote{Symbol: symbol, Name: symbol, Price: p, ChangePercent: 1, Volume: 5000000},
		Open:  p, High: p * 1.01, Low: p * 0.99, PreviousClose: p,
	}, nil
}

type fakeNews struct{}

func (fakeNews) Market(context.Context) ([]model.NewsArticle, news.Origin) {
	return []model.NewsArticle{{Title: "Stocks rally", Source: "Wire"}}, news.OriginLive
}

func (fakeNews) Symbol(_ context.Context, symbol string) ([]model.NewsArticle, news.Origin) {
	return []model.NewsArticle{{Title: symbol + " beats estimates", Source: "Wire"}}, news.OriginFallback
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRefresher) Refresh(_ context.Context, uid string) ([]model.PortfolioPosition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, uid)
	if uid == "broken" {
		return nil, errors.New("store down")
	}
	return []model.PortfolioPosition{{Symbol: "AAPL"}}, nil
}

type fakeSender struct {
	texts   []string
	retries int
	err     error
}

func (f *fakeSender) SendWithRetry(_ context.Context, text string, maxRetries int) error {
	f.texts = append(f.texts, text)
	f.retries = maxRetries
	return f.err
}

var fixed = time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

type memRecorder struct {
	recorder.NoopRecorder
	snaps   []recorder.AnalysisSnapshot
	digests []recorder.DigestEvent
	err     error
}

func (m *memRecorder) RecordAnalysis(_ context.Context, snap *recorder.AnalysisSnapshot) error {
	m.snaps = append(m.snaps, *snap)
	return nil
}

func (m *memRecorder) RecordDigest(_ context.Context, evt *recorder.DigestEvent) error {
	m.digests = append(m.digests, *evt)
	return nil
}

func (m *memRecorder) RecentAnalyses(_ context.Context, symbol string, limit int) ([]recorder.AnalysisSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []recorder.AnalysisSnapshot
	for i := len(m.snaps) - 1; i >= 0 && len(out) < limit; i-- {
		if m.snaps[i].Symbol == symbol {
			out = append(out, m.snaps[i])
		}
	}
	return out, nil
}

func newScheduler(t *testing.T, sender Sender, refresher Refresher, opts ...Option) *Scheduler {
	t.Helper()
	return newSchedulerWithRecorder(t, sender, refresher, nil, opts...)
}

func newSchedulerWithRecorder(t *testing.T, sender Sender, refresher Refresher, rec recorder.Recorder, opts ...Option) *Scheduler {
	t.Helper()
	deps := Deps{
		Recorder:  rec,
		Quotes:    fakeQuotes{prices: map[string]float64{"AAPL": 200, "MSFT": 400}},
		Analyst:   analyzer.New(),
		News:      fakeNews{},
		Portfolio: refresher,
		Sender:    sender,
	}
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	return New(t.Context(), deps, opts...)
}

func TestRegisterAll(t *testing.T) {
	t.Run("both jobs", func(t *testing.T) {
		s := newScheduler(t, nil, &fakeRefresher{}, WithRefreshUsers("u1"))
		require.NoError(t, s.RegisterAll("0 0 8 * * 1-5", "0 */30 * * * *"))
		assert.Equal(t, 2, s.Entries())
	})

	t.Run("refresh skipped without users", func(t *testing.T) {
		s := newScheduler(t, nil, &fakeRefresher{})
		require.NoError(t, s.RegisterAll("0 0 8 * * 1-5", "0 */30 * * * *"))
		assert.Equal(t, 1, s.Entries())
	})

	t.Run("bad cron expression", func(t *testing.T) {
		s := newScheduler(t, nil, nil)
		err := s.RegisterAll("every morning", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "register digest task")
	})
}

func TestRunDigestNow_SendsDigest(t *testing.T) {
	sender := &fakeSender{}
	s := newScheduler(t, sender, nil, WithDigestSymbols("AAPL", "NOPE", "MSFT"))

	s.RunDigestNow()

	require.Len(t, sender.texts, 1)
	assert.Equal(t, sendRetries, sender.retries)
	digest := sender.texts[0]
	assert.Contains(t, digest, "2025-03-14")
	assert.Contains(t, digest, "Stocks rally")
	assert.Contains(t, digest, "<b>AAPL</b> 200.00")
	assert.Contains(t, digest, "<b>MSFT</b> 400.00")
	assert.NotContains(t, digest, "NOPE")
}

func TestRunDigestNow_WithoutSender(t *testing.T) {
	s := newScheduler(t, nil, nil, WithDigestSymbols("AAPL"))
	assert.NotPanics(t, s.RunDigestNow)
}

func TestRunDigestNow_SendFailureIsLogged(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram down")}
	s := newScheduler(t, sender, nil, WithDigestSymbols("AAPL"))
	assert.NotPanics(t, s.RunDigestNow)
	assert.Len(t, sender.texts, 1)
}

func TestRefreshTask_ContinuesPastFailures(t *testing.T) {
	r := &fakeRefresher{}
	s := newScheduler(t, nil, r, WithRefreshUsers("broken", "u2"))

	s.refreshTask()

	assert.Equal(t, []string{"broken", "u2"}, r.calls)
}

func TestHandleCommand(t *testing.T) {
	s := newScheduler(t, nil, nil, WithDigestSymbols("AAPL"))
	ctx := t.Context()

	tests := []struct {
		cmd  string
		want string
	}{
		{"/quote aapl", "<b>AAPL</b>"},
		{"/quote@StockPulseBot MSFT", "Price: 400.00"},
		{"/quote", "Usage: /quote SYMBOL"},
		{"/quote ZZZ", "No quote for ZZZ"},
		{"/analyze AAPL", "AAPL analysis"},
		{"/analyze", "Usage: /analyze SYMBOL"},
		{"/news", "Market news"},
		{"/news tsla", "TSLA beats estimates"},
		{"/digest", "Daily Digest"},
		{"/history", "Usage: /history SYMBOL"},
		{"/history AAPL", "No recorded analyses for AAPL"},
		{"hello", "Available commands"},
		{"", "Available commands"},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			assert.Contains(t, s.HandleCommand(ctx, tt.cmd), tt.want)
		})
	}
}

func TestHandleCommand_AnalysisListsFactors(t *testing.T) {
	s := newScheduler(t, nil, nil)
	out := s.HandleCommand(t.Context(), "/analyze MSFT")

	assert.Contains(t, out, "heuristic")
	assert.Contains(t, out, "Factor scores")
	assert.Contains(t, out, "Composite")
}

func TestStartStop(t *testing.T) {
	s := newScheduler(t, nil, nil)
	require.NoError(t, s.RegisterAll("0 0 8 * * 1-5", ""))
	s.Start()
	s.Stop()
}

func TestRunDigestNow_RecordsHistory(t *testing.T) {
	rec := &memRecorder{}
	sender := &fakeSender{}
	s := newSchedulerWithRecorder(t, sender, nil, rec, WithDigestSymbols("AAPL", "NOPE", "MSFT"))

	s.RunDigestNow()

	require.Len(t, rec.snaps, 2)
	assert.Equal(t, "AAPL", rec.snaps[0].Symbol)
	assert.Len(t, rec.snaps[0].Factors, 5)
	assert.True(t, rec.snaps[0].Time.Equal(fixed))
	assert.Equal(t, "heuristic", rec.snaps[0].Origin)

	require.Len(t, rec.digests, 1)
	d := rec.digests[0]
	assert.Equal(t, 3, d.Symbols)
	assert.Equal(t, 2, d.Analyzed)
	assert.Equal(t, 1, d.Headlines)
	assert.True(t, d.Sent)
	assert.Empty(t, d.Error)
}

func TestRunDigestNow_RecordsSendFailure(t *testing.T) {
	rec := &memRecorder{}
	s := newSchedulerWithRecorder(t, &fakeSender{err: errors.New("telegram down")}, nil, rec, WithDigestSymbols("AAPL"))

	s.RunDigestNow()

	require.Len(t, rec.digests, 1)
	assert.False(t, rec.digests[0].Sent)
	assert.Equal(t, "telegram down", rec.digests[0].Error)
}

func TestHandleCommand_History(t *testing.T) {
	rec := &memRecorder{}
	s := newSchedulerWithRecorder(t, nil, nil, rec, WithDigestSymbols("MSFT"))
	s.RunDigestNow()

	out := s.HandleCommand(t.Context(), "/history msft")
	assert.Contains(t, out, "MSFT history")
	assert.Contains(t, out, "2025-03-14")
	assert.Contains(t, out, "400.00")

	rec.err = errors.New("db locked")
	assert.Contains(t, s.HandleCommand(t.Context(), "/history MSFT"), "History is unavailable")
}
