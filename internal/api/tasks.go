package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"optifolio/internal/db"
	"optifolio/internal/logger"
	"optifolio/internal/task"
)

type refreshRequest struct {
	Tickers []string `json:"tickers"`
}

// refreshResult is the payload persisted with a completed refresh task.
type refreshResult struct {
	Refreshed []string          `json:"refreshed"`
	Failed    map[string]string `json:"failed,omitempty"`
}

// handleRefresh starts a background task that re-fetches price history for
// each ticker. One ticker is one unit of work; cancellation is honored
// between units.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid JSON: "+err.Error())
		return
	}
	cfg := s.configSnapshot()
	tickers := normalizeTickers(req.Tickers)
	if len(tickers) == 0 {
		writeError(w, 400, "no tickers to refresh")
		return
	}
	if len(tickers) > cfg.MaxTickers {
		writeError(w, 400, fmt.Sprintf("too many tickers: %d, max %d", len(tickers), cfg.MaxTickers))
		return
	}

	historySpan := span(cfg.HistoryYears)
	id := s.tasks.Start(fmt.Sprintf("refresh %d tickers", len(tickers)), func(j *task.Job) (any, error) {
		result := refreshResult{Failed: make(map[string]string)}
		for i, ticker := range tickers {
			if j.Cancelled() {
				return nil, j.Context().Err()
			}
			j.Progress(float64(i)/float64(len(tickers)), "fetching "+ticker)
			if _, err := s.market.FetchHistory(j.Context(), ticker, historySpan); err != nil {
				result.Failed[ticker] = err.Error()
				continue
			}
			result.Refreshed = append(result.Refreshed, ticker)
		}
		if len(result.Failed) == 0 {
			result.Failed = nil
		}
		return result, nil
	})

	logger.Info("API", fmt.Sprintf("refresh task %s started (%d tickers)", id, len(tickers)))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(202)
	json.NewEncoder(w).Encode(map[string]string{"taskId": id})
}

// handleTaskList returns recent task records, newest first.
func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			writeError(w, 400, "limit must be in [1, 500]")
			return
		}
		limit = n
	}
	recs, err := s.db.RecentTasks(limit)
	if err != nil {
		logger.Error("API", "list tasks: "+err.Error())
		writeError(w, 500, "failed to load tasks")
		return
	}
	if recs == nil {
		recs = []db.TaskRecord{}
	}
	writeJSON(w, recs)
}

// handleTaskStatus reports a task's current state, falling back to the
// persisted record for tasks from before a restart.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if snap, ok := s.tasks.Get(id); ok {
		writeJSON(w, snap)
		return
	}
	if rec, ok := s.db.GetTask(id); ok {
		writeJSON(w, rec)
		return
	}
	writeError(w, 404, "unknown task")
}

// handleTaskStream streams task events as NDJSON until the task finishes or
// the client goes away.
func (s *Server) handleTaskStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	events, unsubscribe, ok := s.tasks.Subscribe(id)
	if !ok {
		writeError(w, 404, "unknown task")
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, 500, "streaming not supported")
		return
	}

	for {
		select {
		case ev, open := <-events:
			if !open {
				return
			}
			line, _ := json.Marshal(ev)
			fmt.Fprintf(w, "%s\n", line)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleTaskCancel requests cooperative cancellation of a running task.
func (s *Server) handleTaskCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.tasks.Get(id)
	if !ok {
		writeError(w, 404, "unknown task")
		return
	}
	if !s.tasks.Cancel(id) {
		writeError(w, 409, fmt.Sprintf("task is already %s", snap.Status))
		return
	}
	logger.Info("API", "cancel requested for task "+id)
	writeJSON(w, map[string]string{"taskId": id, "status": "cancelling"})
}
