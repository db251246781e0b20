package yahoo

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartFixture = `{"chart":{"result":[{
	"meta":{"symbol":"AAPL","currency":"USD","regularMarketPrice":190.5,"previousClose":188.0,
		"regularMarketVolume":48000000,"regularMarketOpen":189.0,"regularMarketDayHigh":191.2,"regularMarketDayLow":187.9},
	"timestamp":[1709301000,1709300100,1709302000],
	"indicators":{"quote":[{
		"open":[190.0,189.0,null],"high":[191.0,190.0,null],"low":[189.5,188.5,null],
		"close":[190.2,189.4,null],"volume":[1000,2000,null]}]}}],"error":null}}`

func TestChart_SkipsNullClosesAndSorts(t *testing.T) {
	var path, interval, rng string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		interval = r.URL.Query().Get("interval")
		rng = r.URL.Query().Get("range")
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	chart, err := c.Chart(t.Context(), "AAPL", "15m", "1d")
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/AAPL", path)
	assert.Equal(t, "15m", interval)
	assert.Equal(t, "1d", rng)

	require.Len(t, chart.Bars, 2)
	assert.Equal(t, 189.4, chart.Bars[0].Close)
	assert.Equal(t, 190.2, chart.Bars[1].Close)
	assert.Equal(t, 190.5, chart.Meta.RegularMarketPrice)
	assert.Equal(t, int64(48000000), chart.Meta.RegularMarketVol)
}

func TestChart_IndexAlias(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.EscapedPath()
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Chart(t.Context(), "spx500", "1d", "1mo")
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/%5EGSPC", path)
}

func TestChart_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Chart(t.Context(), "XXXX", "1d", "1d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delisted")
}

func TestQuote_Meta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chartFixture))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	m, err := c.Quote(t.Context(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 188.0, m.Close())
	assert.Equal(t, 191.2, m.RegularMarketHigh)
}

func TestQuote_NoPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":0}}],"error":null}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, err := c.Quote(t.Context(), "AAPL")
	assert.Error(t, err)
}

func TestMeta_CloseFallsBackToChartPreviousClose(t *testing.T) {
	assert.Equal(t, 10.0, Meta{ChartPreviousClose: 10}.Close())
	assert.Equal(t, 12.0, Meta{PreviousClose: 12, ChartPreviousClose: 10}.Close())
}
