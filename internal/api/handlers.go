package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/store"
	"github.com/JakeFAU/quotes-crawler/internal/worker"
)

const (
	defaultQuoteLimit = 50
	maxQuoteLimit     = 500
	defaultRunLimit   = 20
	maxRunLimit       = 200
	readTimeout       = 3 * time.Second
)

// listQuotes handles GET /v1/quotes?limit=&offset= and returns
// {"quotes": [...]}.
func (s *Server) listQuotes(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "quote storage unavailable")
		return
	}
	limit, offset, err := parseLimitOffset(r, defaultQuoteLimit, maxQuoteLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	quotes, err := s.reader.ListQuotes(ctx, limit, offset)
	if err != nil {
		s.logger.Error("list quotes failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list quotes")
		return
	}
	if quotes == nil {
		quotes = []store.QuoteView{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		writeError(w, http.StatusServiceUnavailable, "quote storage unavailable")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	tags, err := s.reader.ListTags(ctx)
	if err != nil {
		s.logger.Error("list tags failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	if tags == nil {
		tags = []store.StoredTag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
}

// listRuns handles GET /v1/runs?limit= and returns {"runs": [...]}, newest
// first.
func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run storage unavailable")
		return
	}
	limit, _, err := parseLimitOffset(r, defaultRunLimit, maxRunLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	runs, err := s.runs.ListRuns(ctx, limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// getRun handles GET /v1/runs/{run_id}. Unknown ids answer 404.
func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run storage unavailable")
		return
	}
	runID := chi.URLParam(r, "run_id")
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("get run failed", zap.String("run_id", runID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": run})
}

// startRun handles POST /v1/runs. It answers 202 with the new run id, or 409
// while another run is executing.
func (s *Server) startRun(w http.ResponseWriter, _ *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "crawl trigger unavailable")
		return
	}
	runID, err := s.trigger.RunAsync(s.runCtx)
	if err != nil {
		if errors.Is(err, worker.ErrRunInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.logger.Error("start run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
