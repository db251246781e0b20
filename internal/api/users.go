package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"StockPulse/internal/model"
)

func pathUID(r *http.Request) string {
	return strings.TrimSpace(mux.Vars(r)["uid"])
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Users.GetUser(r.Context(), pathUID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type userRequest struct {
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL" validate:"omitempty,url"`
	Country     string `json:"country" validate:"omitempty,oneof=US IN GB CA AU DE JP"`
}

func (s *Server) saveUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	u := &model.User{
		UID:         pathUID(r),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
		Country:     req.Country,
	}
	if prev, err := s.deps.Users.GetUser(r.Context(), u.UID); err == nil {
		u.CreatedAt = prev.CreatedAt
		u.HasCompletedOnboarding = prev.HasCompletedOnboarding
	}
	if err := s.deps.Users.SaveUser(r.Context(), u); err != nil {
		s.fail(w, r, err)
		return
	}
	saved, err := s.deps.Users.GetUser(r.Context(), u.UID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

type countryRequest struct {
	Country string `json:"country" validate:"required,oneof=US IN GB CA AU DE JP"`
}

func (s *Server) setCountry(w http.ResponseWriter, r *http.Request) {
	var req countryRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Users.UpdateUserCountry(r.Context(), pathUID(r), req.Country); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) completeOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Users.MarkOnboardingComplete(r.Context(), pathUID(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listPortfolio returns stored positions, or re-prices them first when
// ?refresh=true.
func (s *Server) listPortfolio(w http.ResponseWriter, r *http.Request) {
	uid := pathUID(r)
	var (
		positions []model.PortfolioPosition
		err       error
	)
	if r.URL.Query().Get("refresh") == "true" {
		positions, err = s.deps.Portfolio.Refresh(r.Context(), uid)
	} else {
		positions, err = s.deps.Portfolio.Positions(r.Context(), uid)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, positions)
}

type buyRequest struct {
	Symbol   string  `json:"symbol" validate:"required"`
	Quantity float64 `json:"quantity" validate:"gt=0"`
	// Price zero buys at the live price.
	Price float64 `json:"price" validate:"gte=0"`
}

func (s *Server) buy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !symbolPattern.MatchString(req.Symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol "+req.Symbol)
		return
	}
	p, err := s.deps.Portfolio.Buy(r.Context(), pathUID(r), req.Symbol, req.Quantity, req.Price)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) removePosition(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Portfolio.Remove(r.Context(), pathUID(r), mux.Vars(r)["id"]); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearPortfolio(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Portfolio.Clear(r.Context(), pathUID(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listWatchlist(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Portfolio.Watchlist(r.Context(), pathUID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

type watchRequest struct {
	Symbol string `json:"symbol" validate:"required"`
	Name   string `json:"name"`
}

func (s *Server) watch(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !symbolPattern.MatchString(req.Symbol) {
		writeError(w, http.StatusBadRequest, "invalid symbol "+req.Symbol)
		return
	}
	if err := s.deps.Portfolio.Watch(r.Context(), pathUID(r), req.Symbol, req.Name); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) isWatched(w http.ResponseWriter, r *http.Request) {
	sym, err := pathSymbol(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.deps.Portfolio.IsWatched(r.Context(), pathUID(r), sym)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"watched": ok})
}

func (s *Server) unwatch(w http.ResponseWriter, r *http.Request) {
	sym, err := pathSymbol(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.deps.Portfolio.Unwatch(r.Context(), pathUID(r), sym); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
