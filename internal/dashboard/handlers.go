package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"trading-dashboard/internal/analytics"
	"trading-dashboard/internal/drawdown"
	"trading-dashboard/internal/provider"
)

const maxDrawdownBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// writeServiceError maps analytics and provider errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analytics.ErrStrategyNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, provider.ErrStatus):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		log.Error().Err(err).Msg("Dashboard request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.telemetry.ObserveRequest(route, rec.code)
		log.Debug().
			Str("route", route).
			Int("code", rec.code).
			Dur("took", time.Since(start)).
			Msg("Served request")
	})
}

func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	f, err := performanceFilter(r.URL.Query(), s.cfg.DefaultTimeframe, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	overview, err := s.service.Overview(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	f, err := strategyFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	strategies, err := s.service.Strategies(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if strategies == nil {
		strategies = []analytics.StrategyMetrics{}
	}
	writeJSON(w, http.StatusOK, strategies)
}

func (s *Server) handleStrategy(w http.ResponseWriter, r *http.Request) {
	f, err := strategyFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := s.service.Strategy(r.Context(), mux.Vars(r)["id"], f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleStrategyTrades(w http.ResponseWriter, r *http.Request) {
	f, err := strategyFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	trades, err := s.service.Trades(r.Context(), mux.Vars(r)["id"], f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleEquityChart(w http.ResponseWriter, r *http.Request) {
	f, err := strategyFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := mux.Vars(r)["id"]
	key := id + "|" + f.Key()

	img, err := s.charts.getOrRender(key, func() ([]byte, error) {
		m, err := s.service.Strategy(r.Context(), id, f)
		if err != nil {
			return nil, err
		}
		return renderEquityChart(m)
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

// handleDrawdown computes the maximum drawdown of a posted series.
func (s *Server) handleDrawdown(w http.ResponseWriter, r *http.Request) {
	var series drawdown.Series
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDrawdownBody))
	if err := dec.Decode(&series); err != nil {
		writeError(w, http.StatusBadRequest, "invalid series: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, drawdown.Max(series))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   s.now().UTC(),
	})
}
