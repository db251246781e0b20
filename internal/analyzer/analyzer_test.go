package analyzer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/model"
)

type fakeChat struct {
	reply  string
	err    error
	system string
	user   string
	calls  int
}

func (f *fakeChat) Complete(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	return f.reply, f.err
}

type stubHeadlines []model.NewsArticle

func (s stubHeadlines) Headlines(context.Context, string) []model.NewsArticle { return s }

func fixedClock() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }

func TestAnalyze_HeuristicWithoutChat(t *testing.T) {
	a := New()
	assert.False(t, a.RemoteEnabled())

	got, origin := a.Analyze(t.Context(), bullishDetail())
	assert.Equal(t, OriginHeuristic, origin)
	assert.Equal(t, Evaluate(bullishDetail()).Analysis, got)
}

func TestAnalyze_RemoteMerge(t *testing.T) {
	chat := &fakeChat{reply: "Sure, here it is:\n```json\n" +
		`{"recommendation":"STRONG_BUY","riskLevel":"low","targetPrice":"$250.5","estimatedReturn":12.3,"reasoning":"Cloud growth","summary":"","confidenceLevel":8}` +
		"\n```"}
	a := New(WithChatClient(chat), WithClock(fixedClock))

	got, origin := a.Analyze(t.Context(), bullishDetail())
	require.Equal(t, OriginRemote, origin)
	assert.Equal(t, model.RecommendBuy, got.Recommendation)
	assert.Equal(t, model.RiskLow, got.RiskLevel)
	assert.Equal(t, 250.5, got.TargetPrice)
	assert.Equal(t, 12.3, got.EstimatedReturn)
	assert.Equal(t, "Cloud growth", got.Reasoning)
	assert.Equal(t, Evaluate(bullishDetail()).Analysis.Summary, got.Summary)

	assert.Equal(t, systemPrompt, chat.system)
	assert.Contains(t, chat.user, "XYZ (XYZ Corp) as of 2025-03-14")
	assert.Contains(t, chat.user, "- Market Cap: $3000.0B")
}

func TestAnalyze_RemoteInvalidFieldsBackfilled(t *testing.T) {
	chat := &fakeChat{reply: `{"recommendation":"MAYBE","riskLevel":"EXTREME","targetPrice":-4,"estimatedReturn":"n/a"}`}
	a := New(WithChatClient(chat))

	local := Evaluate(bearishDetail()).Analysis
	got, origin := a.Analyze(t.Context(), bearishDetail())
	assert.Equal(t, OriginRemote, origin)
	assert.Equal(t, local, got)
}

func TestAnalyze_RemoteZeroReturnKept(t *testing.T) {
	chat := &fakeChat{reply: `{"recommendation":"STRONG_SELL","estimatedReturn":0}`}
	a := New(WithChatClient(chat))

	got, _ := a.Analyze(t.Context(), bullishDetail())
	assert.Equal(t, model.RecommendSell, got.Recommendation)
	assert.Equal(t, 0.0, got.EstimatedReturn)
}

func TestAnalyze_RemoteFailureFallsBack(t *testing.T) {
	for name, chat := range map[string]*fakeChat{
		"error":       {err: errors.New("503")},
		"no json":     {reply: "I cannot help with that."},
		"broken json": {reply: `{"recommendation": "BUY"`},
	} {
		t.Run(name, func(t *testing.T) {
			a := New(WithChatClient(chat))
			got, origin := a.Analyze(t.Context(), bullishDetail())
			assert.Equal(t, OriginHeuristic, origin)
			assert.Equal(t, Evaluate(bullishDetail()).Analysis, got)
		})
	}
}

func TestMarketContext(t *testing.T) {
	news := stubHeadlines{
		{Title: "One", Summary: "first"},
		{Title: "Two", Summary: "second"},
		{Title: "Three", Summary: "third"},
		{Title: "Four", Summary: "fourth"},
	}
	a := New(WithHeadlines(news), WithRandom(func(int) int { return 1 }))

	got := a.marketContext(t.Context(), "AAPL")
	assert.Contains(t, got, "Recent News:\nOne: first...\nTwo: second...\nThree: third...")
	assert.NotContains(t, got, "Four")
	assert.Contains(t, got, "Market Sentiment: Bearish outlook for AAPL")
	assert.Contains(t, got, sectorBlurbs["AAPL"])

	assert.Contains(t, New().marketContext(t.Context(), "ZZZ"), defaultSectorBlurb)
}

func TestExtractJSON(t *testing.T) {
	var out struct {
		A int `json:"a"`
	}
	assert.True(t, extractJSON(`noise {bad} then {"a": 3} trailing {"a": 4}`, &out))
	assert.Equal(t, 3, out.A)

	assert.False(t, extractJSON("no object here", &out))
	assert.False(t, extractJSON(`{"a": `, &out))
}

func TestFlexFloat(t *testing.T) {
	cases := map[string]struct {
		in    string
		v     float64
		valid bool
	}{
		"number":  {`12.5`, 12.5, true},
		"string":  {`"12.5"`, 12.5, true},
		"dollar":  {`"$99"`, 99, true},
		"percent": {`"7.5%"`, 7.5, true},
		"garbage": {`"high"`, 0, false},
		"null":    {`null`, 0, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var f flexFloat
			require.NoError(t, f.UnmarshalJSON([]byte(tc.in)))
			assert.Equal(t, tc.valid, f.valid)
			assert.Equal(t, tc.v, f.v)
		})
	}
}
