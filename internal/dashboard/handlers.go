package dashboard

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chirpbot/internal/action"
	"chirpbot/internal/control"
	"chirpbot/internal/state"
)

const maxBody = 1 << 16

type errorBody struct {
	Error string `json:"error"`
}

type modeBody struct {
	Enabled bool `json:"enabled"`
}

type categoryBody struct {
	Category string `json:"category"`
}

type followersBody struct {
	state.Totals
	Daily      map[string]state.DayStat      `json:"daily_stats"`
	Categories map[string]state.CategoryStat `json:"category_stats"`
}

type postBody struct {
	Success bool               `json:"success"`
	Status  action.Status      `json:"status"`
	Message string             `json:"message,omitempty"`
	Kind    action.Kind        `json:"kind,omitempty"`
	Tweet   *state.TweetRecord `json:"tweet,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads an optional JSON body. An empty body leaves dst untouched.
func decode(r *http.Request, dst any) error {
	b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) tweets(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	out := s.backend.Tweets(r.Context(), limit)
	if out == nil {
		out = []state.TweetRecord{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) followers(w http.ResponseWriter, r *http.Request) {
	b := s.backend.Follows(r.Context())
	writeJSON(w, http.StatusOK, followersBody{Totals: b.Totals(), Daily: b.Daily, Categories: b.Categories})
}

func (s *Server) followersDaily(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Follows(r.Context()).Daily)
}

func (s *Server) followersCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Follows(r.Context()).Categories)
}

func (s *Server) getMode(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, modeBody{Enabled: s.backend.Cricket()})
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	var body modeBody
	if err := decode(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if err := s.backend.SetMode(r.Context(), body.Enabled); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "enabled": body.Enabled})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	var body categoryBody
	if err := decode(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	s.writeResult(w, s.backend.Generate(r.Context(), body.Category))
}

func (s *Server) tweetNow(w http.ResponseWriter, r *http.Request) {
	var body categoryBody
	if err := decode(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	s.writeResult(w, s.backend.PostNow(r.Context(), body.Category))
}

// writeResult reports action outcomes with 200; skips and failures are
// business results, not transport errors.
func (s *Server) writeResult(w http.ResponseWriter, res action.Result) {
	body := postBody{
		Success: res.OK(),
		Status:  res.Status,
		Kind:    res.Kind,
		Tweet:   res.Tweet,
		Message: res.Reason,
	}
	if res.OK() {
		body.Message = "Tweet posted successfully!"
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) nextActions(w http.ResponseWriter, r *http.Request) {
	next := s.backend.NextActions(r.Context())
	writeJSON(w, http.StatusOK, map[string]*int64{
		"next_tweet_seconds":  next[control.FamilyPost],
		"next_follow_seconds": next[control.FamilyFollow],
		"next_engage_seconds": next[control.FamilyEngage],
		"next_sweep_seconds":  next[control.FamilySweep],
	})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Status(r.Context()))
}
