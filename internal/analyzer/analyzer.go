// Package analyzer turns a quote snapshot into a BUY/HOLD/SELL analysis.
// The heuristic engine is always available; a remote chat-completion model
// is consulted first when one is configured, and any field it gets wrong is
// back-filled from the heuristic.
package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"StockPulse/internal/logger"
	"StockPulse/internal/model"
)

// Origin tells whether an analysis came from the remote model or the
// heuristic engine.
type Origin string

const (
	OriginRemote    Origin = "remote"
	OriginHeuristic Origin = "heuristic"
)

const systemPrompt = "You are a world-class financial analyst with 20+ years of experience in equity research, technical analysis, and market forecasting. Provide detailed, actionable insights based on comprehensive data analysis."

// ChatClient sends one system+user exchange to a chat-completion model.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// HeadlineSource returns recent headlines for a symbol.
type HeadlineSource interface {
	Headlines(ctx context.Context, symbol string) []model.NewsArticle
}

// Analyzer runs the remote path when a ChatClient is set and the heuristic
// otherwise.
type Analyzer struct {
	chat      ChatClient
	headlines HeadlineSource
	logger    arbor.ILogger
	intn      func(n int) int
	now       func() time.Time
}

type Option func(*Analyzer)

func WithChatClient(c ChatClient) Option {
	return func(a *Analyzer) { a.chat = c }
}

func WithHeadlines(h HeadlineSource) Option {
	return func(a *Analyzer) { a.headlines = h }
}

func WithLogger(l arbor.ILogger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithRandom replaces the source used to pick the sentiment label.
func WithRandom(intn func(n int) int) Option {
	return func(a *Analyzer) { a.intn = intn }
}

func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger: logger.Discard(),
		intn:   rand.IntN,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RemoteEnabled reports whether a chat model is configured.
func (a *Analyzer) RemoteEnabled() bool { return a.chat != nil }

// Analyze never fails: remote errors fall back to the heuristic.
func (a *Analyzer) Analyze(ctx context.Context, d *model.QuoteDetail) (model.Analysis, Origin) {
	local := Evaluate(d)
	if a.chat == nil {
		return local.Analysis, OriginHeuristic
	}

	prompt := a.analysisPrompt(d, a.marketContext(ctx, d.Symbol))
	text, err := a.chat.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		a.logger.Warn().Str("symbol", d.Symbol).Err(err).Msg("Remote analysis failed, using heuristic")
		return local.Analysis, OriginHeuristic
	}

	merged, ok := mergeRemote(text, local.Analysis)
	if !ok {
		a.logger.Warn().Str("symbol", d.Symbol).Msg("Remote analysis unparseable, using heuristic")
		return local.Analysis, OriginHeuristic
	}
	return merged, OriginRemote
}

var sentiments = []string{"Bullish", "Bearish", "Neutral", "Mixed"}

var sectorBlurbs = map[string]string{
	"AAPL":        "Technology sector showing strong performance with AI and services growth",
	"GOOGL":       "Technology sector benefiting from cloud computing and AI advancements",
	"MSFT":        "Technology sector leading in cloud services and enterprise solutions",
	"TSLA":        "Automotive sector transitioning to electric vehicles with growth potential",
	"AMZN":        "E-commerce and cloud computing sectors showing resilience",
	"RELIANCE.NS": "Energy and telecommunications sector in India showing mixed performance",
}

const defaultSectorBlurb = "Sector showing mixed performance with various market factors"

// marketContext assembles headlines, a sentiment label and a sector blurb.
// The sentiment label is the only random input and only reaches the prompt.
func (a *Analyzer) marketContext(ctx context.Context, symbol string) string {
	var parts []string

	if a.headlines != nil {
		arts := a.headlines.Headlines(ctx, symbol)
		if len(arts) > 3 {
			arts = arts[:3]
		}
		if len(arts) > 0 {
			lines := make([]string, 0, len(arts))
			for _, art := range arts {
				lines = append(lines, fmt.Sprintf("%s: %s...", art.Title, truncate(art.Summary, 150)))
			}
			parts = append(parts, "Recent News:\n"+strings.Join(lines, "\n"))
		}
	}

	parts = append(parts, fmt.Sprintf("Market Sentiment: %s outlook for %s", sentiments[a.intn(len(sentiments))], symbol))

	blurb, ok := sectorBlurbs[symbol]
	if !ok {
		blurb = defaultSectorBlurb
	}
	parts = append(parts, blurb)
	return strings.Join(parts, "\n")
}

func formatCap(mc *float64) string {
	if mc == nil {
		return "N/A"
	}
	return fmt.Sprintf("$%.1fB", *mc/1e9)
}

func (a *Analyzer) analysisPrompt(d *model.QuoteDetail, marketContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Conduct a comprehensive financial analysis of %s (%s) as of %s.\n\n", d.Symbol, d.Name, a.now().Format("2006-01-02"))
	b.WriteString("CURRENT MARKET DATA:\n")
	fmt.Fprintf(&b, "- Stock Price: %v\n", d.Price)
	fmt.Fprintf(&b, "- Daily Change: %+v (%+v%%)\n", d.Change, d.ChangePercent)
	fmt.Fprintf(&b, "- Trading Range: %v - %v\n", d.Low, d.High)
	fmt.Fprintf(&b, "- Opening Price: %v\n", d.Open)
	fmt.Fprintf(&b, "- Previous Close: %v\n", d.PreviousClose)
	fmt.Fprintf(&b, "- Volume: %d shares\n", d.Volume)
	fmt.Fprintf(&b, "- Market Cap: %s\n", formatCap(d.MarketCap))
	fmt.Fprintf(&b, "- Sector: %s\n\n", d.Sector)
	b.WriteString("MARKET INTELLIGENCE:\n")
	b.WriteString(marketContext)
	b.WriteString(`

ANALYSIS FRAMEWORK:
1. Technical Analysis: Price action, volume patterns, momentum indicators
2. Fundamental Assessment: Valuation metrics, sector positioning, competitive advantages
3. Risk Evaluation: Volatility analysis, downside protection, market correlation
4. Sentiment Analysis: News impact, institutional activity, retail interest
5. Price Forecasting: 12-month target with confidence intervals

Provide your professional analysis in this exact JSON format:
{
  "recommendation": "STRONG_BUY|BUY|HOLD|SELL|STRONG_SELL",
  "riskLevel": "LOW|MEDIUM|HIGH",
  "targetPrice": [realistic 12-month price target],
  "reasoning": "[comprehensive 3-4 sentence analysis explaining your recommendation with specific data points]",
  "estimatedReturn": [percentage return estimate],
  "summary": "[concise 2-sentence investment thesis highlighting key value drivers]",
  "keyRisks": "[main risk factors to monitor]",
  "catalysts": "[potential positive catalysts for price appreciation]",
  "confidenceLevel": [1-10 scale confidence in analysis]
}

Base your analysis on current market conditions, technical indicators, and fundamental factors. Be specific and data-driven.`)
	return b.String()
}

// flexFloat accepts JSON numbers and numeric strings.
type flexFloat struct {
	v     float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	s = strings.TrimSuffix(strings.TrimPrefix(s, "$"), "%")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	f.v, f.valid = v, true
	return nil
}

type remoteAnalysis struct {
	Recommendation  string    `json:"recommendation"`
	RiskLevel       string    `json:"riskLevel"`
	TargetPrice     flexFloat `json:"targetPrice"`
	Reasoning       string    `json:"reasoning"`
	EstimatedReturn flexFloat `json:"estimatedReturn"`
	Summary         string    `json:"summary"`
}

// extractJSON decodes the first JSON object embedded in text.
func extractJSON(text string, out any) bool {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&raw); err == nil && json.Unmarshal(raw, out) == nil {
			return true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return false
}

// mergeRemote overlays the valid fields of the model's answer on fallback.
func mergeRemote(text string, fallback model.Analysis) (model.Analysis, bool) {
	var r remoteAnalysis
	if !extractJSON(text, &r) {
		return fallback, false
	}

	out := fallback
	switch rec := strings.ToUpper(strings.TrimSpace(r.Recommendation)); rec {
	case "STRONG_BUY", "BUY":
		out.Recommendation = model.RecommendBuy
	case "HOLD":
		out.Recommendation = model.RecommendHold
	case "STRONG_SELL", "SELL":
		out.Recommendation = model.RecommendSell
	}
	switch risk := model.RiskLevel(strings.ToUpper(strings.TrimSpace(r.RiskLevel))); risk {
	case model.RiskLow, model.RiskMedium, model.RiskHigh:
		out.RiskLevel = risk
	}
	if r.TargetPrice.valid && r.TargetPrice.v > 0 {
		out.TargetPrice = r.TargetPrice.v
	}
	if r.EstimatedReturn.valid {
		out.EstimatedReturn = r.EstimatedReturn.v
	}
	if s := strings.TrimSpace(r.Reasoning); s != "" {
		out.Reasoning = s
	}
	if s := strings.TrimSpace(r.Summary); s != "" {
		out.Summary = s
	}
	return out, true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
