package api

import (
	"net/http"
	"strings"

	"StockPulse/internal/analyzer"
	"StockPulse/internal/chart"
	"StockPulse/internal/model"
)

func (s *Server) countries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, model.Countries)
}

func (s *Server) countryQuotes(w http.ResponseWriter, r *http.Request) {
	country, err := queryCountry(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quotes, err := s.deps.Quotes.FetchCountry(r.Context(), country)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

type quoteResponse struct {
	model.Quote
	Provider string `json:"provider"`
}

func (s *Server) quote(w http.ResponseWriter, r *http.Request) {
	sym, err := pathSymbol(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	country, err := queryCountry(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.deps.Quotes.FetchQuote(r.Context(), sym, country)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{Quote: res.Quote, Provider: res.Source})
}

func (s *Server) detail(w http.ResponseWriter, r *http.Request) {
	sym, err := pathSymbol(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.deps.Quotes.FetchDetail(r.Context(), sym)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) {
	sym, err := pathSymbol(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Unknown periods fall back to the default window inside the fetcher.
	period := chart.Period(strings.ToUpper(r.URL.Query().Get("period")))
	if period == "" {
		period = chart.Period1D
	}
	res, err := s.deps.Charts.Fetch(r.Context(), sym, period)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type analysisResponse struct {
	Symbol   string              `json:"symbol"`
	Analysis model.Analysis      `json:"analysis"`
	Origin   analyzer.Origin     `json:"origin"`
	Factors  []model.FactorScore `json:"factors"`
}

func (s *Server) analysis(w http.ResponseWriter, r *http.Request) {
	sym, err := pathSymbol(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	d, err := s.deps.Quotes.FetchDetail(r.Context(), sym)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	a, origin := s.deps.Analyst.Analyze(r.Context(), d)
	writeJSON(w, http.StatusOK, analysisResponse{
		Symbol:   d.Symbol,
		Analysis: a,
		Origin:   origin,
		Factors:  analyzer.Evaluate(d).Factors,
	})
}

type chatRequest struct {
	Symbol  string              `json:"symbol"`
	Message string              `json:"message" validate:"required"`
	History []analyzer.ChatTurn `json:"history"`
}

type chatResponse struct {
	Reply  string          `json:"reply"`
	Origin analyzer.Origin `json:"origin"`
}

// chat answers without a stock when none is named. A named stock whose
// detail cannot be fetched is a 503 like any other missing quote.
func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var d *model.QuoteDetail
	if sym := strings.TrimSpace(req.Symbol); sym != "" {
		if !symbolPattern.MatchString(sym) {
			writeError(w, http.StatusBadRequest, "invalid symbol "+sym)
			return
		}
		detail, err := s.deps.Quotes.FetchDetail(r.Context(), sym)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		d = detail
	}

	reply, origin := s.deps.Analyst.Chat(r.Context(), req.Message, d, req.History...)
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, Origin: origin})
}

type newsResponse struct {
	Articles []model.NewsArticle `json:"articles"`
	Origin   string              `json:"origin"`
}

func (s *Server) marketNews(w http.ResponseWriter, r *http.Request) {
	articles, origin := s.deps.News.Market(r.Context())
	writeJSON(w, http.StatusOK, newsResponse{Articles: articles, Origin: string(origin)})
}

func (s *Server) symbolNews(w http.ResponseWriter, r *http.Request) {
	sym, err := pathSymbol(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	articles, origin := s.deps.News.Symbol(r.Context(), sym)
	writeJSON(w, http.StatusOK, newsResponse{Articles: articles, Origin: string(origin)})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing query")
		return
	}
	country, err := queryCountry(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Quotes.Search(r.Context(), q, country))
}
