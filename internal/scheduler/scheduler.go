// Package scheduler runs the periodic digest and portfolio refresh jobs and
// answers chat commands.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"StockPulse/internal/analyzer"
	"StockPulse/internal/logger"
	"StockPulse/internal/model"
	"StockPulse/internal/news"
	"StockPulse/internal/notifier"
	"StockPulse/internal/recorder"
)

const (
	sendRetries   = 3
	commandNews   = 8
	historyLimit  = 5
	digestTimeout = 2 * time.Minute
)

type Quotes interface {
	FetchDetail(ctx context.Context, symbol string) (*model.QuoteDetail, error)
}

type Analyst interface {
	Analyze(ctx context.Context, d *model.QuoteDetail) (model.Analysis, analyzer.Origin)
}

type News interface {
	Market(ctx context.Context) ([]model.NewsArticle, news.Origin)
	Symbol(ctx context.Context, symbol string) ([]model.NewsArticle, news.Origin)
}

type Refresher interface {
	Refresh(ctx context.Context, uid string) ([]model.PortfolioPosition, error)
}

type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Deps wires the scheduler. Sender, Portfolio and Recorder may be nil.
type Deps struct {
	Quotes    Quotes
	Analyst   Analyst
	News      News
	Portfolio Refresher
	Sender    Sender
	Recorder  recorder.Recorder
}

// Scheduler manages all cron tasks.
type Scheduler struct {
	cron    *cron.Cron
	deps    Deps
	symbols []string
	users   []string
	logger  arbor.ILogger
	now     func() time.Time
	ctx     context.Context
}

type Option func(*Scheduler)

func WithLogger(l arbor.ILogger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithDigestSymbols sets the symbols analyzed in each digest.
func WithDigestSymbols(symbols ...string) Option {
	return func(s *Scheduler) { s.symbols = symbols }
}

// WithRefreshUsers sets the user ids whose portfolios are re-priced.
func WithRefreshUsers(uids ...string) Option {
	return func(s *Scheduler) { s.users = uids }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(ctx context.Context, deps Deps, opts ...Option) *Scheduler {
	s := &Scheduler{
		deps:   deps,
		logger: logger.Discard(),
		now:    time.Now,
		ctx:    ctx,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.deps.Recorder == nil {
		s.deps.Recorder = recorder.NewNoopRecorder()
	}
	cl := logger.Cron(s.logger)
	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return s
}

// RegisterAll registers the digest and refresh jobs. An empty schedule skips
// that job.
func (s *Scheduler) RegisterAll(digestCron, refreshCron string) error {
	if digestCron != "" {
		if _, err := s.cron.AddFunc(digestCron, s.digestTask); err != nil {
			return fmt.Errorf("register digest task: %w", err)
		}
	}
	if refreshCron != "" && s.deps.Portfolio != nil && len(s.users) > 0 {
		if _, err := s.cron.AddFunc(refreshCron, s.refreshTask); err != nil {
			return fmt.Errorf("register refresh task: %w", err)
		}
	}
	return nil
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", s.Entries()).Msg("Scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// RunDigestNow builds and sends the digest immediately.
func (s *Scheduler) RunDigestNow() {
	s.digestTask()
}

func (s *Scheduler) digestTask() {
	ctx, cancel := context.WithTimeout(s.ctx, digestTimeout)
	defer cancel()

	s.logger.Info().Int("symbols", len(s.symbols)).Msg("Running digest task")
	now := s.now()
	headlines, entries := s.collectDigest(ctx)
	for _, e := range entries {
		s.record(ctx, now, e)
	}

	evt := &recorder.DigestEvent{
		Time:      now,
		Symbols:   len(s.symbols),
		Analyzed:  len(entries),
		Headlines: len(headlines),
	}
	if err := s.trySend(ctx, notifier.FormatDigest(now, headlines, entries)); err != nil {
		evt.Error = err.Error()
	} else {
		evt.Sent = s.deps.Sender != nil
	}
	if err := s.deps.Recorder.RecordDigest(ctx, evt); err != nil {
		s.logger.Error().Err(err).Msg("Record digest run")
	}
}

// BuildDigest collects headlines and one analysis per digest symbol and
// formats them. Symbols without a quote are left out.
func (s *Scheduler) BuildDigest(ctx context.Context) string {
	headlines, entries := s.collectDigest(ctx)
	return notifier.FormatDigest(s.now(), headlines, entries)
}

func (s *Scheduler) collectDigest(ctx context.Context) ([]model.NewsArticle, []notifier.DigestEntry) {
	headlines, _ := s.deps.News.Market(ctx)

	var entries []notifier.DigestEntry
	for _, sym := range s.symbols {
		d, err := s.deps.Quotes.FetchDetail(ctx, sym)
		if err != nil {
			s.logger.Warn().Str("symbol", sym).Err(err).Msg("Digest quote unavailable")
			continue
		}
		a, origin := s.deps.Analyst.Analyze(ctx, d)
		entries = append(entries, notifier.DigestEntry{Detail: d, Analysis: a, Origin: string(origin)})
	}
	return headlines, entries
}

func (s *Scheduler) record(ctx context.Context, at time.Time, e notifier.DigestEntry) {
	ev := analyzer.Evaluate(e.Detail)
	err := s.deps.Recorder.RecordAnalysis(ctx, &recorder.AnalysisSnapshot{
		Time:           at,
		Symbol:         e.Detail.Symbol,
		Price:          e.Detail.Price,
		ChangePercent:  e.Detail.ChangePercent,
		Factors:        ev.Factors,
		TotalScore:     ev.Score,
		Recommendation: e.Analysis.Recommendation,
		RiskLevel:      e.Analysis.RiskLevel,
		TargetPrice:    e.Analysis.TargetPrice,
		Origin:         e.Origin,
	})
	if err != nil {
		s.logger.Error().Str("symbol", e.Detail.Symbol).Err(err).Msg("Record analysis")
	}
}

func (s *Scheduler) refreshTask() {
	ctx, cancel := context.WithTimeout(s.ctx, digestTimeout)
	defer cancel()

	for _, uid := range s.users {
		positions, err := s.deps.Portfolio.Refresh(ctx, uid)
		if err != nil {
			s.logger.Error().Str("uid", uid).Err(err).Msg("Portfolio refresh failed")
			continue
		}
		s.logger.Info().Str("uid", uid).Int("positions", len(positions)).Msg("Portfolio refreshed")
	}
}

const helpText = "Available commands:\n" +
	"• /quote SYMBOL\n" +
	"• /analyze SYMBOL\n" +
	"• /news [SYMBOL]\n" +
	"• /history SYMBOL\n" +
	"• /digest"

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return helpText
	}
	// Telegram appends @botname in group chats.
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	arg := ""
	if len(fields) > 1 {
		arg = strings.ToUpper(fields[1])
	}

	switch name {
	case "/quote":
		if arg == "" {
			return "Usage: /quote SYMBOL"
		}
		d, err := s.deps.Quotes.FetchDetail(ctx, arg)
		if err != nil {
			return fmt.Sprintf("❌ No quote for %s right now, try again shortly.", arg)
		}
		return notifier.FormatQuote(d)
	case "/analyze":
		if arg == "" {
			return "Usage: /analyze SYMBOL"
		}
		d, err := s.deps.Quotes.FetchDetail(ctx, arg)
		if err != nil {
			return fmt.Sprintf("❌ No quote for %s right now, try again shortly.", arg)
		}
		a, origin := s.deps.Analyst.Analyze(ctx, d)
		return notifier.FormatAnalysis(d, a, analyzer.Evaluate(d).Factors, string(origin))
	case "/news":
		if arg == "" {
			arts, _ := s.deps.News.Market(ctx)
			return notifier.FormatNews("Market news", arts, commandNews)
		}
		arts, _ := s.deps.News.Symbol(ctx, arg)
		return notifier.FormatNews(arg+" news", arts, commandNews)
	case "/history":
		if arg == "" {
			return "Usage: /history SYMBOL"
		}
		snaps, err := s.deps.Recorder.RecentAnalyses(ctx, arg, historyLimit)
		if err != nil {
			s.logger.Error().Str("symbol", arg).Err(err).Msg("Load analysis history")
			return "❌ History is unavailable right now."
		}
		return notifier.FormatHistory(arg, snaps)
	case "/digest":
		return s.BuildDigest(ctx)
	default:
		return helpText
	}
}

func (s *Scheduler) trySend(ctx context.Context, text string) error {
	if s.deps.Sender == nil {
		s.logger.Info().Str("digest", text).Msg("No notifier configured, digest logged only")
		return nil
	}
	if err := s.deps.Sender.SendWithRetry(ctx, text, sendRetries); err != nil {
		s.logger.Error().Err(err).Msg("Failed to send notification")
		return err
	}
	return nil
}
