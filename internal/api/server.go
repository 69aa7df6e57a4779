package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"postureguard/internal/config"
	"postureguard/internal/model"
	"postureguard/internal/session"
	"postureguard/internal/snapshot"
)

type Server struct {
	cfg       *config.Manager
	sessions  *session.Manager
	snapshots *snapshot.Store
	logger    *slog.Logger
	version   string
}

type statusResponse struct {
	Status   string       `json:"status"`
	Time     string       `json:"time"`
	Version  string       `json:"version"`
	Started  string       `json:"started"`
	Sessions int          `json:"sessions"`
	Ingest   ingestStatus `json:"ingest"`
	API      apiStatus    `json:"api"`
}

type ingestStatus struct {
	REST      bool `json:"rest"`
	TCPStream bool `json:"tcp_stream"`
	Kafka     bool `json:"kafka"`
	MQTT      bool `json:"mqtt"`
	Replay    bool `json:"replay"`
}

type apiStatus struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

func Start(ctx context.Context, cfg *config.Manager, sessions *session.Manager, snapshots *snapshot.Store, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:       cfg,
		sessions:  sessions,
		snapshots: snapshots,
		logger:    logger,
		version:   version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/sessions", server.handleSessions)
	mux.HandleFunc("/sessions/", server.handleSession)
	mux.HandleFunc("/reminders/active", server.handleActiveReminders)
	mux.HandleFunc("/config/reminders", server.handleReminderConfig)
	mux.HandleFunc("/admin/reset", server.handleReset)

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	resp := statusResponse{
		Status:   "ok",
		Time:     time.Now().UTC().Format(time.RFC3339Nano),
		Version:  s.version,
		Started:  s.sessions.Started().Format(time.RFC3339),
		Sessions: len(s.sessions.List()),
		Ingest: ingestStatus{
			REST:      cfg.Ingest.REST.Enabled,
			TCPStream: cfg.Ingest.TCPStream.Enabled,
			Kafka:     cfg.Ingest.Kafka.Enabled,
			MQTT:      cfg.Ingest.MQTT.Enabled,
			Replay:    cfg.Ingest.Replay.Enabled,
		},
		API: apiStatus{Enabled: cfg.API.Enabled, Addr: cfg.API.Addr},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ids := s.sessions.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": ids,
		"count":    len(ids),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	parts := strings.SplitN(path, "/", 3)
	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	resource := ""
	if len(parts) > 1 {
		resource = parts[1]
	}
	action := ""
	if len(parts) > 2 {
		action = parts[2]
	}

	switch resource {
	case "":
		s.requireGet(w, r, func() {
			writeJSON(w, http.StatusOK, sess.Snapshot())
		})
	case "score":
		s.requireGet(w, r, func() {
			sc, ok := sess.Score()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, sc)
		})
	case "behavior":
		s.requireGet(w, r, func() {
			writeJSON(w, http.StatusOK, sess.Behavior())
		})
	case "stats":
		s.requireGet(w, r, func() {
			writeJSON(w, http.StatusOK, sess.Stats())
		})
	case "history":
		s.requireGet(w, r, func() {
			history := sess.ScoreHistory()
			if limit := queryLimit(r); limit > 0 && limit < len(history) {
				history = history[len(history)-limit:]
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"session_id": id,
				"history":    history,
				"count":      len(history),
			})
		})
	case "report":
		s.requireGet(w, r, func() {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			_, _ = io.WriteString(w, sess.Report())
		})
	case "reminders":
		s.handleSessionReminders(w, r, id, sess, action)
	case "foreground":
		s.requirePost(w, r, func() {
			var req struct {
				Foreground bool `json:"foreground"`
			}
			if !decodeBody(w, r, &req) {
				return
			}
			sess.SetForeground(req.Foreground)
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleSessionReminders(w http.ResponseWriter, r *http.Request, id string, sess *session.Session, action string) {
	switch action {
	case "":
		s.requireGet(w, r, func() {
			list := sess.Reminders(queryLimit(r))
			writeJSON(w, http.StatusOK, map[string]any{
				"session_id": id,
				"reminders":  list,
				"count":      len(list),
				"stats":      sess.ReminderStats(),
			})
		})
	case "active":
		s.requireGet(w, r, func() {
			ev, ok := sess.ActiveReminder()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeJSON(w, http.StatusOK, ev)
		})
	case "respond":
		s.requirePost(w, r, func() {
			var req struct {
				Action    string `json:"action"`
				LatencyMS int64  `json:"latency_ms"`
			}
			if !decodeBody(w, r, &req) {
				return
			}
			act := model.UserAction(strings.ToLower(strings.TrimSpace(req.Action)))
			resp := model.ReminderResponse{
				Action:       act,
				Acknowledged: act == model.ActionCorrectedPosture,
				Ignored:      act == model.ActionDismissed,
				Latency:      time.Duration(req.LatencyMS) * time.Millisecond,
			}
			if !sess.Respond(resp) {
				w.WriteHeader(http.StatusConflict)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		})
	case "trigger":
		s.requirePost(w, r, func() {
			ev, ok := sess.TriggerReminder()
			if !ok {
				w.WriteHeader(http.StatusConflict)
				return
			}
			writeJSON(w, http.StatusOK, ev)
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) handleActiveReminders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	list := s.sessions.ActiveReminders()
	writeJSON(w, http.StatusOK, map[string]any{
		"reminders": list,
		"count":     len(list),
	})
}

func (s *Server) handleReminderConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{
			"reminders": s.cfg.Get().Reminders,
		})
	case http.MethodPost:
		var rc config.ReminderConfig
		if !decodeBody(w, r, &rc) {
			return
		}
		current := s.cfg.Get()
		next := *current
		next.Reminders = rc
		if err := s.cfg.Update(&next); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.sessions.UpdateReminderConfig(rc)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		SessionID string `json:"session_id"`
	}
	_ = json.Unmarshal(body, &req)
	if id := strings.TrimSpace(req.SessionID); id != "" {
		if !s.sessions.Reset(id) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if s.snapshots != nil {
			s.snapshots.Delete(id)
		}
	} else {
		s.sessions.ResetAll()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) requireGet(w http.ResponseWriter, r *http.Request, fn func()) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fn()
}

func (s *Server) requirePost(w http.ResponseWriter, r *http.Request, fn func()) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	fn()
}

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return 0
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, out); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
