package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"StockPulse/internal/brokerage"
	"StockPulse/internal/model"
)

func (s *Server) brokerageProviders(w http.ResponseWriter, r *http.Request) {
	country, err := queryCountry(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, brokerage.Providers(country))
}

// connectRequest carries the keys unchecked; the brokerage service owns
// their format rules.
type connectRequest struct {
	Provider  string `json:"provider" validate:"required"`
	APIKey    string `json:"apiKey"`
	SecretKey string `json:"secretKey"`
	AccountID string `json:"accountId"`
}

func (c connectRequest) credentials() brokerage.Credentials {
	return brokerage.Credentials{APIKey: c.APIKey, SecretKey: c.SecretKey, AccountID: c.AccountID}
}

func (s *Server) validateCredentials(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.deps.Brokerage.ValidateCredentials(r.Context(), req.Provider, req.credentials())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid": ok})
}

func (s *Server) connectAccount(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	acct, err := s.deps.Brokerage.Connect(r.Context(), req.Provider, req.credentials())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, acct)
}

// account resolves {id} or writes the failure.
func (s *Server) account(w http.ResponseWriter, r *http.Request) (model.BrokerageAccount, bool) {
	acct, err := s.deps.Brokerage.Account(strings.TrimSpace(mux.Vars(r)["id"]))
	if err != nil {
		s.fail(w, r, err)
		return model.BrokerageAccount{}, false
	}
	return acct, true
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	if acct, ok := s.account(w, r); ok {
		writeJSON(w, http.StatusOK, acct)
	}
}

func (s *Server) disconnectAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Brokerage.Disconnect(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) accountPositions(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.account(w, r)
	if !ok {
		return
	}
	ps, err := s.deps.Brokerage.Positions(r.Context(), acct)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) orderHistory(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.account(w, r)
	if !ok {
		return
	}
	orders, err := s.deps.Brokerage.OrderHistory(r.Context(), acct)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.account(w, r)
	if !ok {
		return
	}
	var req brokerage.OrderRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	o, err := s.deps.Brokerage.PlaceOrder(r.Context(), acct, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.account(w, r)
	if !ok {
		return
	}
	b, err := s.deps.Brokerage.Balance(r.Context(), acct)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"balance": b, "currency": acct.Currency})
}
