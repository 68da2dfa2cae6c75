/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Seednode/arcadebox/games/scores"
)

const maxScoreBody = 4096

type scoreRequest struct {
	Email string `json:"email"`
	Score int    `json:"score"`
}

// scoreView is the public form of an entry. The address is masked the same
// way the home page shows it.
type scoreView struct {
	Email     string    `json:"email"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

func newScoreViews(entries []scores.Entry) []scoreView {
	views := make([]scoreView, 0, len(entries))
	for _, e := range entries {
		views = append(views, scoreView{
			Email:     maskEmail(e.Email),
			Score:     e.Score,
			CreatedAt: e.CreatedAt,
		})
	}
	return views
}

type scoreError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(v)
}

// serveTopScores answers GET /scores?n=<count>.
func serveTopScores(cfg *Config, recorder scores.Recorder, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		n := scores.DefaultTop
		if v := r.URL.Query().Get("n"); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil || parsed < 0 || parsed > 100 {
				_ = writeJSON(w, http.StatusBadRequest, scoreError{Error: "n must be between 0 and 100"})

				return
			}
			n = parsed
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		top, err := recorder.Top(ctx, n)
		if err != nil {
			_ = writeJSON(w, http.StatusInternalServerError, scoreError{Error: "unable to load scores"})
			errs <- err

			return
		}

		if err := writeJSON(w, http.StatusOK, newScoreViews(top)); err != nil {
			errs <- err
		}
	}
}

// serveSubmitScore answers POST /scores with {"email": ..., "score": ...}.
func serveSubmitScore(cfg *Config, recorder scores.Recorder, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		securityHeaders(cfg, w)

		var req scoreRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxScoreBody)).Decode(&req); err != nil {
			_ = writeJSON(w, http.StatusBadRequest, scoreError{Error: "malformed request body"})

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		entry, err := recorder.Submit(ctx, req.Email, req.Score)
		switch {
		case errors.Is(err, scores.ErrInvalidEmail), errors.Is(err, scores.ErrNegativeScore):
			_ = writeJSON(w, http.StatusBadRequest, scoreError{Error: err.Error()})

			return
		case err != nil:
			_ = writeJSON(w, http.StatusInternalServerError, scoreError{Error: "unable to record score"})
			errs <- err

			return
		}

		logf(cfg, "SCORE: Recorded %d for %s from %s in %s",
			entry.Score,
			maskEmail(entry.Email),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)

		if err := writeJSON(w, http.StatusCreated, entry); err != nil {
			errs <- err
		}
	}
}
