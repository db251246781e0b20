package newsapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEverything(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/everything", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		q := r.URL.Query()
		assert.Equal(t, "stock market", q.Get("q"))
		assert.Equal(t, "publishedAt", q.Get("sortBy"))
		assert.Equal(t, "10", q.Get("pageSize"))
		assert.Equal(t, "en", q.Get("language"))
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":1,"articles":[{
			"source":{"id":null,"name":"Bloomberg"},"title":"Stocks rally",
			"description":"Equities climbed.","url":"https://b.example/1","publishedAt":"2024-03-01T14:00:00Z"}]}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	arts, err := c.Everything(t.Context(), "stock market", 10)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "Bloomberg", arts[0].Source.Name)
	assert.Equal(t, 14, arts[0].PublishedAt.Hour())
}

func TestTopHeadlines_Params(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/top-headlines", r.URL.Path)
		assert.Equal(t, "business", r.URL.Query().Get("category"))
		assert.Equal(t, "us", r.URL.Query().Get("country"))
		_, _ = w.Write([]byte(`{"status":"ok","articles":[]}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	arts, err := c.TopHeadlines(t.Context(), "business", 15)
	require.NoError(t, err)
	assert.Empty(t, arts)
}

func TestErrorPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`))
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.Everything(t.Context(), "x", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKeyInvalid")
}

func TestNoKey(t *testing.T) {
	c := NewClient("")
	_, err := c.TopHeadlines(t.Context(), "business", 15)
	assert.ErrorIs(t, err, ErrNoKey)
}
