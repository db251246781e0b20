// Package brokerage simulates connected trading accounts. Account data is
// generated, but positions and fills are priced from live quotes.
package brokerage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"StockPulse/internal/collector"
	"StockPulse/internal/currency"
	"StockPulse/internal/logger"
	"StockPulse/internal/model"
)

var (
	ErrInvalidCredentials = errors.New("brokerage: invalid credentials")
	ErrInvalidOrder       = errors.New("brokerage: invalid order")
	ErrUnknownAccount     = errors.New("brokerage: account not connected")
)

// QuoteFetcher fetches one converted quote.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, symbol, country string) (*collector.Result, error)
}

// Credentials are the API keys a user pastes in to link an account.
type Credentials struct {
	APIKey    string `json:"apiKey" validate:"gt=10,apikey"`
	SecretKey string `json:"secretKey" validate:"gt=10,apikey"`
	AccountID string `json:"accountId,omitempty"`
}

// OrderRequest is an order as submitted by the caller. Price is only read
// for LIMIT orders.
type OrderRequest struct {
	Symbol    string          `json:"symbol" validate:"required"`
	Side      model.OrderSide `json:"side" validate:"oneof=BUY SELL"`
	Quantity  int             `json:"quantity" validate:"gt=0"`
	OrderType model.OrderType `json:"orderType" validate:"oneof=MARKET LIMIT"`
	Price     float64         `json:"price,omitempty" validate:"gte=0"`
}

// Delays are the artificial latencies of each call.
type Delays struct {
	Validate   time.Duration
	Connect    time.Duration
	Positions  time.Duration
	Order      time.Duration
	History    time.Duration
	Balance    time.Duration
	Disconnect time.Duration
}

// DefaultDelays approximate a round trip to a real broker.
var DefaultDelays = Delays{
	Validate:   time.Second,
	Connect:    2 * time.Second,
	Positions:  1500 * time.Millisecond,
	Order:      time.Second,
	History:    time.Second,
	Balance:    500 * time.Millisecond,
	Disconnect: 500 * time.Millisecond,
}

const historySize = 5

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Service struct {
	quotes   QuoteFetcher
	logger   arbor.ILogger
	delays   Delays
	float    func() float64
	now      func() time.Time
	newID    func() string
	validate *validator.Validate

	mu       sync.RWMutex
	accounts map[string]model.BrokerageAccount
}

type Option func(*Service)

func WithLogger(l arbor.ILogger) Option {
	return func(s *Service) { s.logger = l }
}

// WithDelays replaces DefaultDelays. Pass Delays{} to disable them.
func WithDelays(d Delays) Option {
	return func(s *Service) { s.delays = d }
}

// WithRandom sets the source of uniform values in [0, 1).
func WithRandom(f func() float64) Option {
	return func(s *Service) { s.float = f }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDs sets the order id generator.
func WithIDs(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

func New(quotes QuoteFetcher, opts ...Option) *Service {
	s := &Service{
		quotes:   quotes,
		logger:   logger.Discard(),
		delays:   DefaultDelays,
		float:    defaultFloat,
		now:      time.Now,
		newID:    uuid.NewString,
		accounts: make(map[string]model.BrokerageAccount),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.validate = validator.New(validator.WithRequiredStructEnabled())
	// Registration only fails for an empty tag or nil func.
	_ = s.validate.RegisterValidation("apikey", func(fl validator.FieldLevel) bool {
		return keyPattern.MatchString(fl.Field().String())
	})
	return s
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ValidateCredentials reports whether both keys are longer than ten
// characters and use only letters, digits, '_' and '-'.
func (s *Service) ValidateCredentials(ctx context.Context, provider string, creds Credentials) (bool, error) {
	if err := s.sleep(ctx, s.delays.Validate); err != nil {
		return false, err
	}
	ok := s.validate.Struct(creds) == nil
	s.logger.Debug().Str("provider", provider).Str("valid", strconv.FormatBool(ok)).Msg("Validated brokerage credentials")
	return ok, nil
}

// Connect links a simulated account. The balance is drawn from the
// provider's range and the account is held until Disconnect.
func (s *Service) Connect(ctx context.Context, provider string, creds Credentials) (model.BrokerageAccount, error) {
	if err := s.validate.Struct(creds); err != nil {
		return model.BrokerageAccount{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	if err := s.sleep(ctx, s.delays.Connect); err != nil {
		return model.BrokerageAccount{}, err
	}

	p, _ := LookupProvider(provider)
	lo, hi := p.balanceRange()
	acct := model.BrokerageAccount{
		ID:            fmt.Sprintf("%s_%d", provider, s.now().UnixMilli()),
		Provider:      provider,
		AccountNumber: s.accountNumber(),
		Balance:       float64(int64(lo + s.float()*(hi-lo))),
		Currency:      p.currency(),
		IsConnected:   true,
	}

	s.mu.Lock()
	s.accounts[acct.ID] = acct
	s.mu.Unlock()

	s.logger.Info().Str("provider", provider).Str("account", acct.ID).Str("currency", acct.Currency).Msg("Brokerage account connected")
	return acct, nil
}

// Account returns a connected account by id.
func (s *Service) Account(id string) (model.BrokerageAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return model.BrokerageAccount{}, fmt.Errorf("%w: %s", ErrUnknownAccount, id)
	}
	return acct, nil
}

// Accounts lists connected accounts ordered by id.
func (s *Service) Accounts() []model.BrokerageAccount {
	s.mu.RLock()
	out := make([]model.BrokerageAccount, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Disconnect forgets the account. Unknown ids are not an error.
func (s *Service) Disconnect(ctx context.Context, id string) error {
	if err := s.sleep(ctx, s.delays.Disconnect); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.accounts, id)
	s.mu.Unlock()
	s.logger.Info().Str("account", id).Msg("Brokerage account disconnected")
	return nil
}

// price is the live price of symbol in the account's currency.
func (s *Service) price(ctx context.Context, symbol string, acct model.BrokerageAccount) (float64, error) {
	res, err := s.quotes.FetchQuote(ctx, symbol, countryFor(acct.Currency))
	if err != nil {
		return 0, err
	}
	return res.Quote.Price, nil
}

// Positions generates two to four holdings priced at the live quote with a
// cost basis within 15% of it. Symbols without a quote are skipped.
func (s *Service) Positions(ctx context.Context, acct model.BrokerageAccount) ([]model.BrokeragePosition, error) {
	if err := s.sleep(ctx, s.delays.Positions); err != nil {
		return nil, err
	}

	symbols := holdings(acct.Provider)
	n := min(int(s.float()*3)+2, len(symbols))

	positions := make([]model.BrokeragePosition, 0, n)
	for _, sym := range symbols[:n] {
		cur, err := s.price(ctx, sym, acct)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn().Str("symbol", sym).Str("provider", acct.Provider).Err(err).Msg("No price for brokerage position, skipping")
			continue
		}
		qty := int(s.float()*50) + 10
		avg := cur * (0.85 + s.float()*0.3)
		pnl := (cur - avg) * float64(qty)
		positions = append(positions, model.BrokeragePosition{
			Symbol:               sym,
			Quantity:             qty,
			AveragePrice:         currency.RoundPlaces(avg, 2),
			CurrentPrice:         currency.RoundPlaces(cur, 2),
			MarketValue:          currency.RoundPlaces(cur*float64(qty), 2),
			UnrealizedPnL:        currency.RoundPlaces(pnl, 2),
			UnrealizedPnLPercent: currency.RoundPlaces(pnl/(avg*float64(qty))*100, 2),
		})
	}
	return positions, nil
}

// PlaceOrder fills immediately. MARKET orders execute at the live price and
// LIMIT orders at their own price, or the live price when none is given.
func (s *Service) PlaceOrder(ctx context.Context, acct model.BrokerageAccount, req OrderRequest) (model.Order, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := s.validate.Struct(req); err != nil {
		return model.Order{}, fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	if err := s.sleep(ctx, s.delays.Order); err != nil {
		return model.Order{}, err
	}

	market, err := s.price(ctx, req.Symbol, acct)
	if err != nil {
		return model.Order{}, fmt.Errorf("place order %s: %w", req.Symbol, err)
	}
	exec := market
	if req.OrderType == model.OrderLimit && req.Price > 0 {
		exec = req.Price
	}

	o := model.Order{
		ID:        s.newID(),
		Symbol:    req.Symbol,
		Side:      req.Side,
		Quantity:  req.Quantity,
		Price:     currency.RoundPlaces(exec, 2),
		OrderType: req.OrderType,
		Status:    model.OrderFilled,
		Timestamp: s.now(),
	}
	s.logger.Info().Str("account", acct.ID).Str("symbol", o.Symbol).Str("side", string(o.Side)).Int("quantity", o.Quantity).Msg("Order filled")
	return o, nil
}

// OrderHistory generates up to five past fills from the last week, newest
// first. Picks whose price lookup fails are dropped.
func (s *Service) OrderHistory(ctx context.Context, acct model.BrokerageAccount) ([]model.Order, error) {
	if err := s.sleep(ctx, s.delays.History); err != nil {
		return nil, err
	}

	symbols := traded(acct.Provider)
	now := s.now()
	orders := make([]model.Order, 0, historySize)
	for range historySize {
		sym := symbols[min(int(s.float()*float64(len(symbols))), len(symbols)-1)]
		p, err := s.price(ctx, sym, acct)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Debug().Str("symbol", sym).Err(err).Msg("No price for order history entry")
			continue
		}

		side := model.SideSell
		if s.float() > 0.5 {
			side = model.SideBuy
		}
		qty := int(s.float()*50) + 10
		kind := model.OrderLimit
		if s.float() > 0.5 {
			kind = model.OrderMarket
		}
		age := time.Duration(s.float() * float64(7*24*time.Hour))

		orders = append(orders, model.Order{
			ID:        s.newID(),
			Symbol:    sym,
			Side:      side,
			Quantity:  qty,
			Price:     currency.RoundPlaces(p, 2),
			OrderType: kind,
			Status:    model.OrderFilled,
			Timestamp: now.Add(-age),
		})
	}

	sort.SliceStable(orders, func(i, j int) bool { return orders[i].Timestamp.After(orders[j].Timestamp) })
	return orders, nil
}

// Balance is the account balance drifted by up to 1% either way.
func (s *Service) Balance(ctx context.Context, acct model.BrokerageAccount) (float64, error) {
	if err := s.sleep(ctx, s.delays.Balance); err != nil {
		return acct.Balance, err
	}
	drift := (s.float() - 0.5) * 0.02
	return currency.RoundPlaces(acct.Balance*(1+drift), 2), nil
}

const accountAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

func (s *Service) accountNumber() string {
	var b strings.Builder
	for range 13 {
		b.WriteByte(accountAlphabet[min(int(s.float()*36), 35)])
	}
	return b.String()
}

// countryFor maps an account currency to the market whose prices are quoted
// in it. EUR resolves to DE.
func countryFor(cur string) string {
	for _, c := range model.Countries {
		if c.Currency == cur {
			return c.Code
		}
	}
	return "US"
}
