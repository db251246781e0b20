package alphavantage

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"StockPulse/internal/httpx/mocks"
)

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestGlobalQuote_RequestShape(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).DoAndReturn(func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		assert.Equal(t, "/query", req.URL.Path)
		assert.Equal(t, "GLOBAL_QUOTE", q.Get("function"))
		assert.Equal(t, "AAPL", q.Get("symbol"))
		assert.Equal(t, "demo-key", q.Get("apikey"))
		return jsonResponse(http.StatusOK, `{"Global Quote":{
			"01. symbol":"AAPL","02. open":"189.10","03. high":"191.00","04. low":"188.50",
			"05. price":"190.25","06. volume":"51234567","08. previous close":"188.00",
			"09. change":"2.25","10. change percent":"1.1968%"}}`), nil
	})

	c := NewClient("demo-key", WithBaseURL("https://av.example"), WithHTTPClient(doer))
	q, err := c.GlobalQuote(t.Context(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 190.25, q.Price)
	assert.Equal(t, 2.25, q.Change)
	assert.InDelta(t, 1.1968, q.ChangePercent, 1e-9)
	assert.Equal(t, int64(51234567), q.Volume)
	assert.Equal(t, 188.0, q.PreviousClose)
	assert.Equal(t, 191.0, q.High)
}

func TestGlobalQuote_ErrorPayloads(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		rateLimited bool
	}{
		{"error message", `{"Error Message":"Invalid API call."}`, false},
		{"note", `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, true},
		{"information", `{"Information":"The **demo** API key is for demo purposes only."}`, true},
		{"empty quote", `{"Global Quote":{}}`, false},
		{"zero price", `{"Global Quote":{"05. price":"0.0000"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := jsonServer(t, tt.body)
			c := NewClient("k", WithBaseURL(srv.URL), WithRequestsPerMinute(0))
			_, err := c.GlobalQuote(t.Context(), "AAPL")
			require.Error(t, err)
			assert.Equal(t, tt.rateLimited, errors.Is(err, ErrRateLimited))
			if !tt.rateLimited {
				var apiErr *APIError
				assert.ErrorAs(t, err, &apiErr)
			}
		})
	}
}

func TestQuery_HTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.GlobalQuote(t.Context(), "AAPL")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "GLOBAL_QUOTE", apiErr.Endpoint)
}

func TestQuery_MissingKeySkipsNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Times(0)

	c := NewClient("", WithHTTPClient(doer))
	_, err := c.GlobalQuote(t.Context(), "AAPL")
	var apiErr *APIError
	assert.ErrorAs(t, err, &apiErr)
}

func TestQuery_LocalBudgetFailsFast(t *testing.T) {
	ctrl := gomock.NewController(t)
	doer := mocks.NewMockDoer(ctrl)
	doer.EXPECT().Do(gomock.Any()).Times(2).DoAndReturn(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"Global Quote":{"05. price":"10"}}`), nil
	})

	c := NewClient("k", WithHTTPClient(doer), WithRequestsPerMinute(2))
	for i := 0; i < 2; i++ {
		_, err := c.GlobalQuote(t.Context(), "AAPL")
		require.NoError(t, err)
	}
	_, err := c.GlobalQuote(t.Context(), "AAPL")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestOverview(t *testing.T) {
	srv := jsonServer(t, `{"Symbol":"MSFT","Name":"Microsoft Corporation","Description":"Makes software.","Sector":"TECHNOLOGY","MarketCapitalization":"3100000000000"}`)
	c := NewClient("k", WithBaseURL(srv.URL))

	o, err := c.Overview(t.Context(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "Microsoft Corporation", o.Name)
	assert.Equal(t, "Makes software.", o.Description)
	assert.Equal(t, 3.1e12, o.MarketCap)
}

func TestOverview_NoneName(t *testing.T) {
	srv := jsonServer(t, `{"Symbol":"ZZZZ","Name":"None"}`)
	c := NewClient("k", WithBaseURL(srv.URL))

	_, err := c.Overview(t.Context(), "ZZZZ")
	assert.Error(t, err)
}

func TestSeries_IntradayNewestFirst(t *testing.T) {
	var function, interval string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		function = r.URL.Query().Get("function")
		interval = r.URL.Query().Get("interval")
		_, _ = w.Write([]byte(`{"Meta Data":{},"Time Series (5min)":{
			"2024-03-01 15:50:00":{"4. close":"101.0"},
			"2024-03-01 15:55:00":{"4. close":"102.0"},
			"2024-03-01 15:45:00":{"4. close":"100.0"}}}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	pts, err := c.Series(t.Context(), "AAPL", "5min")
	require.NoError(t, err)
	assert.Equal(t, "TIME_SERIES_INTRADAY", function)
	assert.Equal(t, "5min", interval)
	require.Len(t, pts, 3)
	assert.Equal(t, []float64{102, 101, 100}, []float64{pts[0].Close, pts[1].Close, pts[2].Close})
}

func TestSeries_DailyUsesDailyFunction(t *testing.T) {
	var function string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		function = r.URL.Query().Get("function")
		assert.Empty(t, r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"Time Series (Daily)":{"2024-03-01":{"4. close":"50.5"},"2024-02-29":{"4. close":"49.5"}}}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	pts, err := c.Series(t.Context(), "AAPL", "daily")
	require.NoError(t, err)
	assert.Equal(t, "TIME_SERIES_DAILY", function)
	require.Len(t, pts, 2)
	assert.Equal(t, 50.5, pts[0].Close)
}

func TestSeries_MissingKey(t *testing.T) {
	srv := jsonServer(t, `{"Meta Data":{}}`)
	c := NewClient("k", WithBaseURL(srv.URL))
	_, err := c.Series(t.Context(), "AAPL", "15min")
	assert.Error(t, err)
}

func TestSymbolSearch(t *testing.T) {
	srv := jsonServer(t, `{"bestMatches":[
		{"1. symbol":"TSLA","2. name":"Tesla Inc","4. region":"United States","8. currency":"USD"},
		{"1. symbol":"TL0.DEX","2. name":"Tesla Inc","4. region":"XETRA","8. currency":"EUR"}]}`)
	c := NewClient("k", WithBaseURL(srv.URL))

	m, err := c.SymbolSearch(t.Context(), "tesla")
	require.NoError(t, err)
	require.Len(t, m, 2)
	assert.Equal(t, "TSLA", m[0].Symbol)
	assert.Equal(t, "Tesla Inc", m[0].Name)
	assert.Equal(t, "EUR", m[1].Currency)
}

func TestNewsSentiment(t *testing.T) {
	var tickers string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tickers = r.URL.Query().Get("tickers")
		_, _ = w.Write([]byte(`{"items":"1","feed":[{"title":"Apple beats earnings","url":"https://n.example/a",
			"time_published":"20240301T133000","summary":"Revenue rose.","source":"Reuters",
			"overall_sentiment_label":"Bullish"}]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL))
	items, err := c.NewsSentiment(t.Context(), "AAPL", 8)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", tickers)
	require.Len(t, items, 1)
	assert.Equal(t, "Reuters", items[0].Source)
	assert.Equal(t, 2024, items[0].Published.Year())
	assert.Equal(t, 13, items[0].Published.Hour())
}
