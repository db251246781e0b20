// Package api exposes the market-data services over HTTP and streams poller
// snapshots over WebSocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/ternarybob/arbor"

	"StockPulse/internal/analyzer"
	"StockPulse/internal/brokerage"
	"StockPulse/internal/chart"
	"StockPulse/internal/collector"
	"StockPulse/internal/logger"
	"StockPulse/internal/model"
	"StockPulse/internal/news"
	"StockPulse/internal/portfolio"
	"StockPulse/internal/store"
)

// retryAfter is sent with 503 responses; it matches the list poll interval.
const retryAfter = "30"

const maxBodyBytes = 1 << 20

var symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.\-^]{1,20}$`)

// Quotes is the quote collector.
type Quotes interface {
	FetchQuote(ctx context.Context, symbol, country string) (*collector.Result, error)
	FetchCountry(ctx context.Context, country string) ([]model.Quote, error)
	FetchDetail(ctx context.Context, symbol string) (*model.QuoteDetail, error)
	Search(ctx context.Context, query, country string) []model.Quote
}

type Charts interface {
	Fetch(ctx context.Context, symbol string, period chart.Period) (*chart.Result, error)
}

type Analyst interface {
	Analyze(ctx context.Context, d *model.QuoteDetail) (model.Analysis, analyzer.Origin)
	Chat(ctx context.Context, message string, d *model.QuoteDetail, history ...analyzer.ChatTurn) (string, analyzer.Origin)
}

type News interface {
	Market(ctx context.Context) ([]model.NewsArticle, news.Origin)
	Symbol(ctx context.Context, symbol string) ([]model.NewsArticle, news.Origin)
}

type Portfolio interface {
	Positions(ctx context.Context, uid string) ([]model.PortfolioPosition, error)
	Refresh(ctx context.Context, uid string) ([]model.PortfolioPosition, error)
	Buy(ctx context.Context, uid, symbol string, quantity, price float64) (*model.PortfolioPosition, error)
	Remove(ctx context.Context, uid, id string) error
	Clear(ctx context.Context, uid string) error
	Watchlist(ctx context.Context, uid string) ([]portfolio.WatchItem, error)
	Watch(ctx context.Context, uid, symbol, name string) error
	Unwatch(ctx context.Context, uid, symbol string) error
	IsWatched(ctx context.Context, uid, symbol string) (bool, error)
}

type Brokerage interface {
	ValidateCredentials(ctx context.Context, provider string, creds brokerage.Credentials) (bool, error)
	Connect(ctx context.Context, provider string, creds brokerage.Credentials) (model.BrokerageAccount, error)
	Account(id string) (model.BrokerageAccount, error)
	Disconnect(ctx context.Context, id string) error
	Positions(ctx context.Context, acct model.BrokerageAccount) ([]model.BrokeragePosition, error)
	PlaceOrder(ctx context.Context, acct model.BrokerageAccount, req brokerage.OrderRequest) (model.Order, error)
	OrderHistory(ctx context.Context, acct model.BrokerageAccount) ([]model.Order, error)
	Balance(ctx context.Context, acct model.BrokerageAccount) (float64, error)
}

// Deps are the services behind the routes. Users, Portfolio and Brokerage
// are optional; their routes are only mounted when set.
type Deps struct {
	Quotes    Quotes
	Charts    Charts
	Analyst   Analyst
	News      News
	Users     store.Store
	Portfolio Portfolio
	Brokerage Brokerage
}

type Server struct {
	deps     Deps
	logger   arbor.ILogger
	origins  []string
	validate *validator.Validate
	router   *mux.Router
	started  time.Time
}

type Option func(*Server)

func WithLogger(l arbor.ILogger) Option {
	return func(s *Server) { s.logger = l }
}

// WithCORSOrigins sets the allowed origins. The default allows any origin.
func WithCORSOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

func New(d Deps, opts ...Option) *Server {
	s := &Server{
		deps:     d,
		logger:   logger.Discard(),
		origins:  []string{"*"},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		router:   mux.NewRouter(),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ws/quotes", s.streamQuotes).Methods(http.MethodGet)
	r.HandleFunc("/ws/details/{symbol}", s.streamDetail).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/countries", s.countries).Methods(http.MethodGet)
	api.HandleFunc("/quotes", s.countryQuotes).Methods(http.MethodGet)
	api.HandleFunc("/quotes/{symbol}", s.quote).Methods(http.MethodGet)
	api.HandleFunc("/details/{symbol}", s.detail).Methods(http.MethodGet)
	api.HandleFunc("/charts/{symbol}", s.chart).Methods(http.MethodGet)
	api.HandleFunc("/analysis/{symbol}", s.analysis).Methods(http.MethodGet)
	api.HandleFunc("/chat", s.chat).Methods(http.MethodPost)
	api.HandleFunc("/news", s.marketNews).Methods(http.MethodGet)
	api.HandleFunc("/news/{symbol}", s.symbolNews).Methods(http.MethodGet)
	api.HandleFunc("/search", s.search).Methods(http.MethodGet)

	if s.deps.Users != nil {
		api.HandleFunc("/users/{uid}", s.getUser).Methods(http.MethodGet)
		api.HandleFunc("/users/{uid}", s.saveUser).Methods(http.MethodPut)
		api.HandleFunc("/users/{uid}/country", s.setCountry).Methods(http.MethodPut)
		api.HandleFunc("/users/{uid}/onboarding", s.completeOnboarding).Methods(http.MethodPost)
	}
	if s.deps.Portfolio != nil {
		api.HandleFunc("/users/{uid}/portfolio", s.listPortfolio).Methods(http.MethodGet)
		api.HandleFunc("/users/{uid}/portfolio", s.buy).Methods(http.MethodPost)
		api.HandleFunc("/users/{uid}/portfolio", s.clearPortfolio).Methods(http.MethodDelete)
		api.HandleFunc("/users/{uid}/portfolio/{id}", s.removePosition).Methods(http.MethodDelete)
		api.HandleFunc("/users/{uid}/watchlist", s.listWatchlist).Methods(http.MethodGet)
		api.HandleFunc("/users/{uid}/watchlist", s.watch).Methods(http.MethodPost)
		api.HandleFunc("/users/{uid}/watchlist/{symbol}", s.isWatched).Methods(http.MethodGet)
		api.HandleFunc("/users/{uid}/watchlist/{symbol}", s.unwatch).Methods(http.MethodDelete)
	}
	if s.deps.Brokerage != nil {
		api.HandleFunc("/brokerage/providers", s.brokerageProviders).Methods(http.MethodGet)
		api.HandleFunc("/brokerage/validate", s.validateCredentials).Methods(http.MethodPost)
		api.HandleFunc("/brokerage/accounts", s.connectAccount).Methods(http.MethodPost)
		api.HandleFunc("/brokerage/accounts/{id}", s.getAccount).Methods(http.MethodGet)
		api.HandleFunc("/brokerage/accounts/{id}", s.disconnectAccount).Methods(http.MethodDelete)
		api.HandleFunc("/brokerage/accounts/{id}/positions", s.accountPositions).Methods(http.MethodGet)
		api.HandleFunc("/brokerage/accounts/{id}/orders", s.orderHistory).Methods(http.MethodGet)
		api.HandleFunc("/brokerage/accounts/{id}/orders", s.placeOrder).Methods(http.MethodPost)
		api.HandleFunc("/brokerage/accounts/{id}/balance", s.accountBalance).Methods(http.MethodGet)
	}
}

// Handler is the router wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info().Msg("Shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": msg})
}

// fail maps a service error onto a response. Only missing market data is
// retryable.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, collector.ErrNoData), errors.Is(err, chart.ErrNoSeries):
		w.Header().Set("Retry-After", retryAfter)
		status = http.StatusServiceUnavailable
	case errors.Is(err, store.ErrNotFound), errors.Is(err, brokerage.ErrUnknownAccount):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, brokerage.ErrInvalidOrder), errors.Is(err, brokerage.ErrInvalidCredentials):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		s.logger.Warn().Str("path", r.URL.Path).Int("status", status).Err(err).Msg("Request failed")
	}
	writeError(w, status, err.Error())
}

// decode reads a JSON body into v and checks its validate tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("invalid %s: failed %q", strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return err
	}
	return nil
}

func pathSymbol(r *http.Request) (string, error) {
	sym := strings.TrimSpace(mux.Vars(r)["symbol"])
	if !symbolPattern.MatchString(sym) {
		return "", fmt.Errorf("invalid symbol %q", sym)
	}
	return strings.ToUpper(sym), nil
}

// queryCountry reads ?country=, defaulting to US.
func queryCountry(r *http.Request) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("country")))
	if c == "" {
		return "US", nil
	}
	if _, ok := model.LookupCountry(c); !ok {
		return "", fmt.Errorf("unsupported country %q", c)
	}
	return c, nil
}
