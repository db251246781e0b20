package marketaux

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNews_Market(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/news/all", r.URL.Path)
		assert.Equal(t, "us", q.Get("countries"))
		assert.Equal(t, "true", q.Get("filter_entities"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "tok", q.Get("api_token"))
		_, _ = w.Write([]byte(`{"meta":{"found":1},"data":[{"uuid":"u1","title":"Fed holds rates",
			"description":"","snippet":"The central bank held.","url":"https://m.example/1",
			"source":"reuters.com","published_at":"2024-03-01T12:30:00.000000Z"}]}`))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	arts, err := c.News(t.Context(), "", 10)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "The central bank held.", arts[0].Text())
	assert.Equal(t, 30, arts[0].PublishedAt.Minute())
}

func TestNews_Symbols(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "TSLA", r.URL.Query().Get("symbols"))
		assert.Empty(t, r.URL.Query().Get("countries"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.News(t.Context(), "TSLA", 5)
	require.NoError(t, err)
}

func TestNews_Status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.News(t.Context(), "", 10)
	assert.Error(t, err)
}

func TestNews_NoToken(t *testing.T) {
	_, err := NewClient("").News(t.Context(), "", 10)
	assert.ErrorIs(t, err, ErrNoKey)
}
