package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"duit/internal/advisor"
	"duit/internal/core"
	"duit/internal/fx"
	"duit/internal/log"
	"duit/internal/records"
	"duit/internal/session"
)

const historyCacheKey = "history"

type stateResponse struct {
	Draft   core.DraftRecord `json:"draft"`
	Metrics core.Metrics     `json:"metrics"`
}

type periodRequest struct {
	Month string `json:"month"`
	Year  int    `json:"year"`
}

type currencyRequest struct {
	Currency string `json:"currency"`
}

type deleteRequest struct {
	Periods []periodRequest `json:"periods"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleDashboard returns the working draft, its metrics, and the
// projection horizons the UI can ask for.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	draft, metrics := s.manager.State()
	writeJSON(w, http.StatusOK, struct {
		stateResponse
		Currencies []core.Currency `json:"currencies"`
		Horizons   []int           `json:"projection_horizons"`
	}{
		stateResponse: stateResponse{Draft: draft, Metrics: metrics},
		Currencies:    core.Currencies,
		Horizons:      core.ProjectionHorizons,
	})
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}
	var draft core.DraftRecord
	if !decodeJSON(w, r, &draft) {
		return
	}
	updated, metrics, err := s.manager.UpdateDraft(r.Context(), draft)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Draft: updated, Metrics: metrics})
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req periodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	draft, metrics, err := s.manager.SwitchPeriod(r.Context(), core.PeriodKey{Month: req.Month, Year: req.Year})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Draft: draft, Metrics: metrics})
}

func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req currencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	currency, err := core.ParseCurrency(req.Currency)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	draft, metrics, err := s.manager.SwitchCurrency(r.Context(), currency)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Draft: draft, Metrics: metrics})
}

// handleProjection computes the wealth projection for the working
// draft. months picks the horizon; rates is an optional comma list of
// yearly inflation percentages, consumed one per projected year.
func (s *Server) handleProjection(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	months := core.ProjectionHorizons[0]
	if v := strings.TrimSpace(r.URL.Query().Get("months")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "months must be a number")
			return
		}
		months = n
	}

	var rates []float64
	if v := strings.TrimSpace(r.URL.Query().Get("rates")); v != "" {
		for _, part := range strings.Split(v, ",") {
			pct, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				writeError(w, http.StatusUnprocessableEntity, "rates must be comma-separated percentages")
				return
			}
			rates = append(rates, pct/100)
		}
	}

	draft, metrics := s.manager.State()
	points, err := core.Project(draft.CurrentSavings, metrics.MonthlySurplus, months, rates)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Currency core.Currency          `json:"currency"`
		Months   int                    `json:"months"`
		Points   []core.ProjectionPoint `json:"points"`
	}{Currency: draft.Currency, Months: months, Points: points})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRecords(w, r)
	case http.MethodDelete:
		s.deleteRecords(w, r)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	if recs, found := s.historyCache.Get(historyCacheKey); found {
		writeJSON(w, http.StatusOK, struct {
			Records []core.HistoryRecord `json:"records"`
		}{Records: recs})
		return
	}

	recs, err := s.manager.History(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.historyCache.Set(historyCacheKey, recs)
	writeJSON(w, http.StatusOK, struct {
		Records []core.HistoryRecord `json:"records"`
	}{Records: recs})
}

func (s *Server) deleteRecords(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Periods) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no periods given")
		return
	}
	keys := make([]core.PeriodKey, len(req.Periods))
	for i, p := range req.Periods {
		keys[i] = core.PeriodKey{Month: p.Month, Year: p.Year}
	}

	n, err := s.manager.Delete(r.Context(), keys)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.historyCache.Delete(historyCacheKey)

	message := "records deleted"
	if n == 0 {
		message = "no matching record found"
	}
	writeJSON(w, http.StatusOK, struct {
		Deleted int    `json:"deleted"`
		Message string `json:"message"`
	}{Deleted: n, Message: message})
}

func (s *Server) handleLoadRecord(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req periodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	draft, metrics, err := s.manager.LoadRecord(r.Context(), core.PeriodKey{Month: req.Month, Year: req.Year})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stateResponse{Draft: draft, Metrics: metrics})
}

func (s *Server) handleSaveRecord(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	rec, err := s.manager.Save(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.historyCache.Delete(historyCacheKey)
	writeJSON(w, http.StatusOK, struct {
		Record core.HistoryRecord `json:"record"`
	}{Record: rec})
}

// handleReview asks the model for a narrative take on the working
// draft, including its five-year projection.
func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.reviewer == nil {
		writeError(w, http.StatusServiceUnavailable, "narrative review is not configured")
		return
	}

	draft, metrics := s.manager.State()
	points, _ := core.Project(draft.CurrentSavings, metrics.MonthlySurplus, 60, nil)
	review, err := s.reviewer.Review(r.Context(), advisor.Summary{
		Period:     draft.Period,
		Currency:   draft.Currency,
		Draft:      draft,
		Metrics:    metrics,
		Projection: points,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Review string `json:"review"`
	}{Review: review})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.models == nil {
		writeError(w, http.StatusServiceUnavailable, "narrative review is not configured")
		return
	}
	models, err := s.models.Models(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Models []string `json:"models"`
	}{Models: models})
}

// writeDomainError maps domain errors onto HTTP statuses: invalid
// input is 422, a missing record 404, disabled features 503, and
// anything from an upstream dependency 502.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidYear),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrInvalidEPFRate),
		errors.Is(err, core.ErrInvalidHorizon):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrNoRecord):
		status = http.StatusNotFound
	case errors.Is(err, records.ErrStoreUnavailable),
		errors.Is(err, advisor.ErrDisabled):
		status = http.StatusServiceUnavailable
	case errors.Is(err, fx.ErrRateUnavailable):
		status = http.StatusBadGateway
	default:
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
	writeError(w, status, err.Error())
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
