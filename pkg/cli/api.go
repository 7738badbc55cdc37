package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mchmarny/lstvscan/pkg/config"
	"github.com/mchmarny/lstvscan/pkg/data"
)

const queryMaxDefault = 1000

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDataError maps store errors to a status code.
func writeDataError(w http.ResponseWriter, err error) {
	if errors.Is(err, data.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	slog.Error("failed to read data", "error", err)
	writeError(w, http.StatusInternalServerError, "failed to read data")
}

func queryParamInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}

	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Debug("error converting query string to int", "value", v, "error", err)
		return def
	}

	if i < 0 || i > queryMaxDefault {
		return def
	}

	return i
}

func stateAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := getState(db, queryParamInt(r, "runs", runsListDefault))
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func runsAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := data.GetRuns(db, queryParamInt(r, "limit", runsListDefault))
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func runAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := data.GetRun(db, r.PathValue("id"))
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func resultsAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := data.GetResults(db, r.URL.Query().Get("run"))
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func skipsAPIHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := data.GetSkips(db, r.URL.Query().Get("run"))
		if err != nil {
			writeDataError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func candidatesAPIHandler(db *sql.DB, c *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Query()
		q := reviewQuery{
			runID:   p.Get("run"),
			key:     c.RankKey,
			level:   c.RankLevel,
			top:     queryParamInt(r, "top", c.TopN),
			byLabel: queryParamInt(r, "by_label", byLabelDefault),
		}
		if v := p.Get("key"); v != "" {
			q.key = v
		}
		if v := p.Get("level"); v != "" {
			q.level = v
		}

		list, err := buildReviewList(db, c, q)
		if err != nil {
			if errors.Is(err, data.ErrNotFound) {
				writeDataError(w, err)
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
