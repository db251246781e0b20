package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"StockPulse/internal/collector"
	"StockPulse/internal/poller"
)

const writeWait = 10 * time.Second

type streamMessage struct {
	Type string `json:"type"`
	poller.ListSnapshot
}

type detailMessage struct {
	Type string `json:"type"`
	poller.DetailSnapshot
}

// streamRequest is what a client may send to change the tracked symbols.
type streamRequest struct {
	Symbols []string `json:"symbols"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(s.origins, "*") || slices.Contains(s.origins, origin)
		},
	}
}

func splitSymbols(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

func checkSymbols(symbols []string) error {
	for _, sym := range symbols {
		if !symbolPattern.MatchString(sym) {
			return fmt.Errorf("invalid symbol %q", sym)
		}
	}
	return nil
}

// streamQuotes runs a list poller for the lifetime of the connection and
// writes every snapshot it publishes. Without ?symbols= the country's browse
// list is tracked.
func (s *Server) streamQuotes(w http.ResponseWriter, r *http.Request) {
	country, err := queryCountry(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		symbols = collector.CountrySymbols(country)
	}
	if err := checkSymbols(symbols); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p := poller.NewListPoller(s.deps.Quotes, symbols, country, poller.WithLogger(s.logger))
	snaps, unsubscribe := p.Subscribe()
	defer unsubscribe()
	if err := p.Start(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to start quote stream")
		return
	}
	defer p.Stop()

	s.logger.Debug().Str("country", country).Int("symbols", len(symbols)).Msg("Quote stream opened")
	go s.readStream(ctx, cancel, conn, p)

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug().Str("country", country).Msg("Quote stream closed")
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(streamMessage{Type: "quotes", ListSnapshot: snap}); err != nil {
				s.logger.Debug().Err(err).Msg("Quote stream write failed")
				return
			}
		}
	}
}

// readStream applies symbol changes sent by the client and cancels the
// stream when the connection goes away.
func (s *Server) readStream(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, p *poller.ListPoller) {
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("Quote stream read failed")
			}
			return
		}

		var req streamRequest
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.Debug().Err(err).Msg("Ignoring malformed stream message")
			continue
		}
		symbols := splitSymbols(strings.Join(req.Symbols, ","))
		if len(symbols) == 0 || checkSymbols(symbols) != nil {
			continue
		}
		p.SetSymbols(symbols)
		p.Tick(ctx)
	}
}

// streamDetail pushes the full detail of one symbol every detail tick until
// the client disconnects.
func (s *Server) streamDetail(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	if !symbolPattern.MatchString(symbol) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid symbol %q", symbol))
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	p := poller.NewDetailPoller(s.deps.Quotes, symbol, poller.WithLogger(s.logger))
	snaps, unsubscribe := p.Subscribe()
	defer unsubscribe()
	if err := p.Start(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to start detail stream")
		return
	}
	defer p.Stop()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(detailMessage{Type: "detail", DetailSnapshot: snap}); err != nil {
				s.logger.Debug().Err(err).Msg("Detail stream write failed")
				return
			}
		}
	}
}
