package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"StockPulse/internal/analyzer"
	"StockPulse/internal/brokerage"
	"StockPulse/internal/chart"
	"StockPulse/internal/collector"
	"StockPulse/internal/model"
	"StockPulse/internal/news"
	"StockPulse/internal/portfolio"
	"StockPulse/internal/store/sqlstore"
)

type fakeQuotes struct {
	mu     sync.Mutex
	prices map[string]float64
}

func (f *fakeQuotes) price(symbol string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.prices[collector.CleanSymbol(symbol)]
	return p, ok
}

func (f *fakeQuotes) FetchQuote(_ context.Context, symbol, country string) (*collector.Result, error) {
	p, ok := f.price(symbol)
	if !ok {
		return nil, &collector.ChainError{Symbol: symbol}
	}
	return &collector.Result{
		Quote:  model.Quote{Symbol: symbol, Name: symbol + " Inc", Price: p, Country: country},
		Source: "finnhub",
	}, nil
}

func (f *fakeQuotes) FetchCountry(ctx context.Context, country string) ([]model.Quote, error) {
	var out []model.Quote
	for _, sym := range collector.CountrySymbols(country) {
		if res, err := f.FetchQuote(ctx, sym, country); err == nil {
			out = append(out, res.Quote)
		}
	}
	if len(out) == 0 {
		return nil, collector.ErrNoData
	}
	return out, nil
}

func (f *fakeQuotes) FetchDetail(_ context.Context, symbol string) (*model.QuoteDetail, error) {
	p, ok := f.price(symbol)
	if !ok {
		return nil, &collector.ChainError{Symbol: symbol}
	}
	return &model.QuoteDetail{
		Quote: model.Quote{Symbol: symbol, Name: symbol + " Inc", Price: p, ChangePercent: 1.2, Volume: 5_000_000, Sector: "Technology", Country: "US"},
		Open:  p - 1, High: p + 1, Low: p - 2, PreviousClose: p - 1,
	}, nil
}

func (f *fakeQuotes) Search(ctx context.Context, query, country string) []model.Quote {
	res, err := f.FetchQuote(ctx, strings.ToUpper(query), country)
	if err != nil {
		return []model.Quote{}
	}
	return []model.Quote{res.Quote}
}

type fakeCharts struct {
	periods []chart.Period
}

func (f *fakeCharts) Fetch(_ context.Context, symbol string, period chart.Period) (*chart.Result, error) {
	f.periods = append(f.periods, period)
	if symbol == "NOPE" {
		return nil, chart.ErrNoSeries
	}
	return &chart.Result{
		ChartSeries: model.ChartSeries{Labels: []string{"09:30", "09:45"}, Values: []float64{100, 101}},
		Provider:    "alphavantage",
		Currency:    "USD",
	}, nil
}

type fakeNews struct{}

func (fakeNews) Market(context.Context) ([]model.NewsArticle, news.Origin) {
	return []model.NewsArticle{{Title: "Markets rally", Source: "Reuters"}}, news.OriginLive
}

func (fakeNews) Symbol(_ context.Context, symbol string) ([]model.NewsArticle, news.Origin) {
	return []model.NewsArticle{{Title: symbol + " beats estimates", Source: "Bloomberg"}}, news.OriginFallback
}

type testEnv struct {
	server *Server
	quotes *fakeQuotes
	charts *fakeCharts
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := sqlstore.Open("sqlite", filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	q := &fakeQuotes{prices: map[string]float64{"AAPL": 200, "MSFT": 400, "GOOGL": 150, "TSLA": 250}}
	c := &fakeCharts{}
	s := New(Deps{
		Quotes:    q,
		Charts:    c,
		Analyst:   analyzer.New(),
		News:      fakeNews{},
		Users:     st,
		Portfolio: portfolio.NewService(st, q),
		Brokerage: brokerage.New(q, brokerage.WithDelays(brokerage.Delays{})),
	})
	return &testEnv{server: s, quotes: q, charts: c}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndCountries(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]any](t, rec)["status"])

	rec = e.do(t, http.MethodGet, "/api/countries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Country](t, rec), 7)
}

func TestQuote(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/quotes/aapl?country=gb", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[quoteResponse](t, rec)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, "GB", got.Country)
	assert.Equal(t, "finnhub", got.Provider)
}

func TestQuote_Errors(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/quotes/ZZZZ", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	rec = e.do(t, http.MethodGet, "/api/quotes/AAPL?country=FR", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Retry-After"))

	rec = e.do(t, http.MethodGet, "/api/quotes/AA$PL", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCountryQuotes(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/quotes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Quote](t, rec), 4)

	rec = e.do(t, http.MethodGet, "/api/quotes?country=JP", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDetailAndChart(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/details/MSFT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 400.0, decodeBody[model.QuoteDetail](t, rec).Price)

	rec = e.do(t, http.MethodGet, "/api/charts/MSFT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/charts/MSFT?period=1y", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []chart.Period{chart.Period1D, chart.Period1Y}, e.charts.periods)

	rec = e.do(t, http.MethodGet, "/api/charts/NOPE?period=1W", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestAnalysis(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/analysis/AAPL", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[analysisResponse](t, rec)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, analyzer.OriginHeuristic, got.Origin)
	assert.Len(t, got.Factors, 5)
	assert.NotEmpty(t, got.Analysis.Recommendation)

	rec = e.do(t, http.MethodGet, "/api/analysis/ZZZZ", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestChat(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[chatResponse](t, rec)
	assert.Contains(t, got.Reply, "Pick a stock")

	rec = e.do(t, http.MethodPost, "/api/chat", map[string]any{
		"symbol":  "AAPL",
		"message": "what is the price target?",
		"history": []map[string]string{{"role": "user", "content": "hi"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	got = decodeBody[chatResponse](t, rec)
	assert.Contains(t, got.Reply, "AAPL Price Analysis")
	assert.Equal(t, analyzer.OriginHeuristic, got.Origin)

	rec = e.do(t, http.MethodPost, "/api/chat", map[string]any{"symbol": "AAPL"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/chat", map[string]any{"message": "hi", "bogus": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNewsAndSearch(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/news", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	market := decodeBody[newsResponse](t, rec)
	assert.Equal(t, "live", market.Origin)
	require.Len(t, market.Articles, 1)

	rec = e.do(t, http.MethodGet, "/api/news/tsla", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sym := decodeBody[newsResponse](t, rec)
	assert.Equal(t, "fallback", sym.Origin)
	assert.Equal(t, "TSLA beats estimates", sym.Articles[0].Title)

	rec = e.do(t, http.MethodGet, "/api/search?q=msft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Quote](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/api/search?q=", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsers(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/users/u1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/users/u1", map[string]any{"email": "ada@example.com", "displayName": "Ada"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ada", decodeBody[model.User](t, rec).DisplayName)

	rec = e.do(t, http.MethodPost, "/api/users/u1/onboarding", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodPut, "/api/users/u1/country", map[string]any{"country": "IN"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodPut, "/api/users/u1/country", map[string]any{"country": "FR"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Saving the profile again keeps onboarding state.
	rec = e.do(t, http.MethodPut, "/api/users/u1", map[string]any{"email": "ada@example.com", "displayName": "Ada L", "country": "IN"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/users/u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	u := decodeBody[model.User](t, rec)
	assert.Equal(t, "IN", u.Country)
	assert.Equal(t, "Ada L", u.DisplayName)
	assert.True(t, u.HasCompletedOnboarding)

	rec = e.do(t, http.MethodPut, "/api/users/u1", map[string]any{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPortfolio(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodPost, "/api/users/u1/portfolio", map[string]any{"symbol": "AAPL", "quantity": 10, "price": 180})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[model.PortfolioPosition](t, rec)
	assert.Equal(t, 200.0, p.CurrentPrice)
	assert.Equal(t, 200.0, p.GainLoss)

	rec = e.do(t, http.MethodPost, "/api/users/u1/portfolio", map[string]any{"symbol": "ZZZZ", "quantity": 1})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/users/u1/portfolio", map[string]any{"symbol": "AAPL", "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	e.quotes.mu.Lock()
	e.quotes.prices["AAPL"] = 210
	e.quotes.mu.Unlock()

	rec = e.do(t, http.MethodGet, "/api/users/u1/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 200.0, decodeBody[[]model.PortfolioPosition](t, rec)[0].CurrentPrice)

	rec = e.do(t, http.MethodGet, "/api/users/u1/portfolio?refresh=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 300.0, decodeBody[[]model.PortfolioPosition](t, rec)[0].GainLoss)

	rec = e.do(t, http.MethodDelete, "/api/users/u1/portfolio/"+p.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodDelete, "/api/users/u1/portfolio/"+p.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodDelete, "/api/users/u1/portfolio", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWatchlist(t *testing.T) {
	e := newTestEnv(t)

	for _, sym := range []string{"MSFT", "ZZZZ", "MSFT"} {
		rec := e.do(t, http.MethodPost, "/api/users/u1/watchlist", map[string]any{"symbol": sym})
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	rec := e.do(t, http.MethodGet, "/api/users/u1/watchlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items := decodeBody[[]portfolio.WatchItem](t, rec)
	require.Len(t, items, 2)
	for _, it := range items {
		if it.Symbol == "MSFT" {
			require.NotNil(t, it.Quote)
			assert.Equal(t, 400.0, it.Quote.Price)
		} else {
			assert.Nil(t, it.Quote)
		}
	}

	rec = e.do(t, http.MethodGet, "/api/users/u1/watchlist/msft", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[map[string]bool](t, rec)["watched"])

	rec = e.do(t, http.MethodDelete, "/api/users/u1/watchlist/MSFT", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/users/u1/watchlist/MSFT", nil)
	assert.False(t, decodeBody[map[string]bool](t, rec)["watched"])
}

func TestBrokerage(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, http.MethodGet, "/api/brokerage/providers?country=GB", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]brokerage.Provider](t, rec), 2)

	creds := map[string]any{"provider": "alpaca", "apiKey": "PKTEST_1234567", "secretKey": "secret_1234567"}
	rec = e.do(t, http.MethodPost, "/api/brokerage/validate", creds)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[map[string]bool](t, rec)["valid"])

	rec = e.do(t, http.MethodPost, "/api/brokerage/accounts", map[string]any{"provider": "alpaca", "apiKey": "short", "secretKey": "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/brokerage/accounts", creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	acct := decodeBody[model.BrokerageAccount](t, rec)
	assert.Equal(t, "USD", acct.Currency)
	base := "/api/brokerage/accounts/" + acct.ID

	rec = e.do(t, http.MethodGet, base+"/positions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	positions := decodeBody[[]model.BrokeragePosition](t, rec)
	assert.GreaterOrEqual(t, len(positions), 2)

	rec = e.do(t, http.MethodPost, base+"/orders", map[string]any{"symbol": "MSFT", "side": "BUY", "quantity": 3, "orderType": "MARKET"})
	require.Equal(t, http.StatusCreated, rec.Code)
	o := decodeBody[model.Order](t, rec)
	assert.Equal(t, 400.0, o.Price)
	assert.Equal(t, model.OrderFilled, o.Status)

	rec = e.do(t, http.MethodPost, base+"/orders", map[string]any{"symbol": "MSFT", "side": "HOLD", "quantity": 3, "orderType": "MARKET"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, base+"/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Order](t, rec), 5)

	rec = e.do(t, http.MethodGet, base+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decodeBody[map[string]any](t, rec)
	assert.InDelta(t, acct.Balance, bal["balance"], acct.Balance*0.011)

	rec = e.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := New(Deps{Quotes: &fakeQuotes{}}, WithCORSOrigins("https://app.example.com"))

	req := httptest.NewRequest(http.MethodOptions, "/api/quotes/AAPL", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/quotes/AAPL", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestOptionalRoutesUnmounted(t *testing.T) {
	s := New(Deps{Quotes: &fakeQuotes{}})
	req := httptest.NewRequest(http.MethodGet, "/api/users/u1/portfolio", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func readSnapshot(t *testing.T, conn *websocket.Conn) streamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestStreamQuotes(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.server.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/quotes?symbols=AAPL,msft,ZZZZ"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	msg := readSnapshot(t, conn)
	assert.Equal(t, "quotes", msg.Type)
	require.Len(t, msg.Quotes, 2)
	assert.Equal(t, "AAPL", msg.Quotes[0].Symbol)
	assert.Equal(t, "MSFT", msg.Quotes[1].Symbol)

	require.NoError(t, conn.WriteJSON(streamRequest{Symbols: []string{"tsla"}}))
	msg = readSnapshot(t, conn)
	require.Len(t, msg.Quotes, 1)
	assert.Equal(t, "TSLA", msg.Quotes[0].Symbol)
	assert.Equal(t, 250.0, msg.Quotes[0].Price)
}

func TestStreamQuotes_BadRequest(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.server.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/quotes?country=XX"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStreamDetail(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/details/msft", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg detailMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "detail", msg.Type)
	require.NotNil(t, msg.Detail)
	assert.Equal(t, "MSFT", msg.Detail.Symbol)
	assert.Equal(t, 401.0, msg.Detail.High)
	assert.False(t, msg.Stale)
}

func TestStreamDetail_BadSymbol(t *testing.T) {
	e := newTestEnv(t)
	srv := httptest.NewServer(e.server.Handler())
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/details/bad%20sym", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
