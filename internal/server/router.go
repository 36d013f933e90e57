package server

import (
	"bytes"
	"context"
	"drivescore/internal/archive"
	"drivescore/internal/export"
	"drivescore/internal/score"
	"drivescore/internal/session"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"
)

// defaultRunsLimit is the number of archived runs listed when no limit is given.
const defaultRunsLimit = 50

// RunArchive stores summaries of exported runs.
type RunArchive interface {
	Save(ctx context.Context, run archive.Run) (int64, error)
	List(ctx context.Context, limit int) ([]archive.Run, error)
}

// ApiV1Router manages routes for API version 1.
// It is the presentation adapter of the scoring page: every handler translates
// one button of the page into one aggregator operation and answers with the
// values to display.
type ApiV1Router struct {
	// sessions — evaluation sessions addressed by token.
	sessions *session.Repository
	// runs — archive of exported runs; nil disables archiving.
	runs RunArchive
	// profile — name of the score profile, stored with archived runs.
	profile string
	// static — path to directory with the scoring page.
	// If empty, static file serving is disabled.
	static string
	// now — clock used for export file names and archive timestamps.
	now func() time.Time
}

// Mux returns a configured *http.ServeMux with registered handlers.
func (ar *ApiV1Router) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/sessions", ar.createSessionHandler)
	mux.HandleFunc("GET /api/v1/sessions/{session}/scores", ar.scoresHandler)
	mux.HandleFunc("POST /api/v1/sessions/{session}/scenarios/{bucket}/ratings", ar.ratingHandler)
	mux.HandleFunc("DELETE /api/v1/sessions/{session}/scenarios/{bucket}/ratings/{record}", ar.removeRatingHandler)
	mux.HandleFunc("POST /api/v1/sessions/{session}/behaviors/{behavior}", ar.behaviorHandler)
	mux.HandleFunc("POST /api/v1/sessions/{session}/bonus/{variant}", ar.bonusHandler)
	mux.HandleFunc("POST /api/v1/sessions/{session}/reset", ar.resetHandler)
	mux.HandleFunc("GET /api/v1/sessions/{session}/export", ar.exportHandler)
	mux.HandleFunc("GET /api/v1/sessions/{session}/history", ar.historyHandler)
	mux.HandleFunc("GET /api/v1/runs", ar.runsHandler)

	if len(ar.static) != 0 {
		fs := http.FileServer(http.Dir(ar.static))
		mux.Handle("GET /static/", http.StripPrefix("/static/", fs))
	}

	return mux
}

type ratingRequest struct {
	Rating int `json:"rating"`
}

type deltaRequest struct {
	Delta int `json:"delta"`
}

type resetRequest struct {
	Confirm bool `json:"confirm"`
}

type sessionResponse struct {
	Session string         `json:"session"`
	Scores  score.Snapshot `json:"scores"`
}

type ratingResponse struct {
	Record score.ScenarioRecord `json:"record"`
	Scores score.Snapshot       `json:"scores"`
}

type adjustResponse struct {
	Actual int            `json:"actual"`
	Scores score.Snapshot `json:"scores"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// createSessionHandler starts a new evaluation session.
func (ar *ApiV1Router) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	s, err := ar.sessions.Create()
	if err != nil {
		slog.Error("Unable to create session", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	slog.Info("Session created", "session", s.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{Session: s.ID, Scores: s.Snapshot()})
}

// scoresHandler returns the current displayed values of a session.
func (ar *ApiV1Router) scoresHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := ar.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.Snapshot())
}

// ratingHandler records a 1..5 rating for a scenario bucket.
// Expects JSON body {"rating": n}.
func (ar *ApiV1Router) ratingHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := ar.session(w, r)
	if !ok {
		return
	}

	var req ratingRequest
	if !readJSON(w, r, &req) {
		return
	}

	bucket := r.PathValue("bucket")
	var record score.ScenarioRecord
	snap, err := s.Do(func(a *score.Aggregator) error {
		var err error
		record, err = a.RecordScenarioRating(bucket, req.Rating)
		return err
	})
	if err != nil {
		writeScoreError(w, s.ID, err)
		return
	}

	writeJSON(w, http.StatusCreated, ratingResponse{Record: record, Scores: snap})
}

// removeRatingHandler deletes a scenario record. Unknown record ids are ignored.
func (ar *ApiV1Router) removeRatingHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := ar.session(w, r)
	if !ok {
		return
	}

	bucket := r.PathValue("bucket")
	record := r.PathValue("record")
	_, err := s.Do(func(a *score.Aggregator) error {
		return a.RemoveScenarioRecord(bucket, record)
	})
	if err != nil {
		writeScoreError(w, s.ID, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// behaviorHandler adjusts a micro-behavior counter by {"delta": n}.
func (ar *ApiV1Router) behaviorHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := ar.session(w, r)
	if !ok {
		return
	}

	var req deltaRequest
	if !readJSON(w, r, &req) {
		return
	}

	behavior := r.PathValue("behavior")
	var actual int
	snap, err := s.Do(func(a *score.Aggregator) error {
		var err error
		actual, err = a.AdjustBehaviorCount(behavior, req.Delta)
		return err
	})
	if err != nil {
		writeScoreError(w, s.ID, err)
		return
	}

	writeJSON(w, http.StatusOK, adjustResponse{Actual: actual, Scores: snap})
}

// bonusHandler adjusts the praise or penalty counter by {"delta": n}.
func (ar *ApiV1Router) bonusHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := ar.session(w, r)
	if !ok {
		return
	}

	var req deltaRequest
	if !readJSON(w, r, &req) {
		return
	}

	variant := score.BonusVariant(r.PathValue("variant"))
	var actual int
	snap, err := s.Do(func(a *score.Aggregator) error {
		var err error
		actual, err = a.AdjustBonusCount(variant, req.Delta)
		return err
	})
	if err != nil {
		writeScoreError(w, s.ID, err)
		return
	}

	writeJSON(w, http.StatusOK, adjustResponse{Actual: actual, Scores: snap})
}

// resetHandler clears a session. The page asks the evaluator first and sends
// {"confirm": true}; anything else leaves the session untouched.
func (ar *ApiV1Router) resetHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := ar.session(w, r)
	if !ok {
		return
	}

	var req resetRequest
	if !readJSON(w, r, &req) {
		return
	}

	if !req.Confirm {
		writeJSON(w, http.StatusPreconditionFailed, messageResponse{Message: "reset requires confirmation"})
		return
	}

	s.Reset()
	slog.Info("Session reset", "session", s.ID)
	w.WriteHeader(http.StatusNoContent)
}

// exportHandler returns the event log as a CSV attachment.
// An empty log is answered with an advisory message instead of a file.
// Successful exports are archived when an archive is configured.
func (ar *ApiV1Router) exportHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := ar.session(w, r)
	if !ok {
		return
	}

	rows, snap, err := s.Export()
	if errors.Is(err, score.ErrEmptyLog) {
		writeJSON(w, http.StatusConflict, messageResponse{Message: score.EmptyLogMessage})
		return
	}
	if err != nil {
		slog.Error("Unable to export log", "session", s.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var body bytes.Buffer
	if err := export.WriteCSV(&body, rows); err != nil {
		slog.Error("Unable to encode export", "session", s.ID, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	now := ar.now()
	if ar.runs != nil {
		run := archive.RunFromSnapshot(s.ID, ar.profile, snap, now)
		if _, err := ar.runs.Save(r.Context(), run); err != nil {
			slog.Warn("Unable to archive run", "session", s.ID, "error", err)
		}
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": export.FileName(now),
	}))
	w.WriteHeader(http.StatusOK)
	w.Write(body.Bytes())
}

// historyHandler returns the snapshots recorded after recent mutations.
func (ar *ApiV1Router) historyHandler(w http.ResponseWriter, r *http.Request) {
	s, ok := ar.session(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.History())
}

// runsHandler lists archived runs, newest first. Accepts ?limit=n.
func (ar *ApiV1Router) runsHandler(w http.ResponseWriter, r *http.Request) {
	if ar.runs == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			slog.Warn("Invalid runs limit", "limit", raw)
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		limit = n
	}

	runs, err := ar.runs.List(r.Context(), limit)
	if err != nil {
		slog.Error("Unable to list runs", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

func (ar *ApiV1Router) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.PathValue("session")
	s, found := ar.sessions.Get(id)
	if !found {
		slog.Warn("Session not found", "session", id)
		w.WriteHeader(http.StatusNotFound)
		return nil, false
	}
	return s, true
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Warn("Unable to read request body", "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		return false
	}

	if err := json.Unmarshal(body, v); err != nil {
		slog.Warn("Unable to unmarshal request body", "error", err)
		w.WriteHeader(http.StatusUnprocessableEntity)
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Warn("Unable to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// writeScoreError maps aggregator errors to HTTP statuses.
// Unknown names are caller bugs and logged at error level.
func writeScoreError(w http.ResponseWriter, session string, err error) {
	switch {
	case errors.Is(err, score.ErrInvalidBucket),
		errors.Is(err, score.ErrInvalidBehavior),
		errors.Is(err, score.ErrInvalidBonusVariant):
		slog.Error("Invalid name", "session", session, "error", err)
		writeJSON(w, http.StatusNotFound, messageResponse{Message: err.Error()})
	case errors.Is(err, score.ErrInvalidRating):
		slog.Warn("Invalid rating", "session", session, "error", err)
		writeJSON(w, http.StatusUnprocessableEntity, messageResponse{Message: err.Error()})
	default:
		slog.Error("Score operation failed", "session", session, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// NewApiV1Router creates a new API v1 router.
// Parameters:
// - static: path to static files (can be empty)
// - profile: score profile name recorded with archived runs
// - sessions: session registry
// - runs: run archive (nil disables archiving)
//
// Returns pointer to configured ApiV1Router.
func NewApiV1Router(
	static string,
	profile string,
	sessions *session.Repository,
	runs RunArchive,
) *ApiV1Router {
	return &ApiV1Router{
		sessions: sessions,
		runs:     runs,
		profile:  profile,
		static:   static,
		now:      time.Now,
	}
}
