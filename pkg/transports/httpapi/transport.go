package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/kirana/pkg/tools"
	"github.com/harunnryd/kirana/pkg/transports"
)

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8000"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// Transport serves the REST and websocket chat API.
type Transport struct {
	cfg      Config
	answerer transports.Answerer
	server   *http.Server
	upgrader websocket.Upgrader

	ready    atomic.Bool
	draining atomic.Bool
}

func New(cfg Config, answerer transports.Answerer) *Transport {
	t := &Transport{
		cfg:      cfg.withDefaults(),
		answerer: answerer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "httpapi" }

func (t *Transport) Ready() bool { return t.ready.Load() && !t.draining.Load() }

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           t.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("httpapi_server_error", "error", err.Error())
		}
	}()
	t.ready.Store(true)
	slog.Info("httpapi_listening", "addr", t.cfg.ServerAddr)
	return nil
}

func (t *Transport) Stop(ctx context.Context) error {
	t.draining.Store(true)
	t.ready.Store(false)
	if t.server == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := t.server.Shutdown(ctx); err != nil {
		return t.server.Close()
	}
	return nil
}

// Handler exposes the route table without starting a listener.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", t.handleQuery)
	mux.HandleFunc("/api/courses", t.handleCourses)
	mux.HandleFunc("/api/sessions/clear", t.handleClearSession)
	mux.HandleFunc("/health", t.handleHealth)
	mux.HandleFunc("/ws/chat", t.handleChat)
	return mux
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

type coursesResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

type clearSessionRequest struct {
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (t *Transport) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "query must not be empty"})
		return
	}
	answer, err := t.answerer.Answer(r.Context(), req.Query, req.SessionID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, toQueryResponse(answer))
}

func (t *Transport) handleCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	stats, err := t.answerer.CourseStats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	titles := stats.CourseTitles
	if titles == nil {
		titles = []string{}
	}
	writeJSON(w, http.StatusOK, coursesResponse{TotalCourses: stats.TotalCourses, CourseTitles: titles})
}

func (t *Transport) handleClearSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req clearSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "invalid request body"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Detail: "session_id must not be empty"})
		return
	}
	t.answerer.ClearSession(req.SessionID)
	w.WriteHeader(http.StatusNoContent)
}

func (t *Transport) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if t.draining.Load() {
		status = "draining"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "ready": t.Ready()})
}

type chatMessage struct {
	Type      string `json:"type"`
	Query     string `json:"query,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type chatAnswer struct {
	Type      string         `json:"type"`
	Answer    string         `json:"answer,omitempty"`
	Sources   []tools.Source `json:"sources,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Detail    string         `json:"detail,omitempty"`
}

// handleChat runs a websocket conversation. The session id sticks to the
// connection once established, so clients may omit it after the first turn.
func (t *Transport) handleChat(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := ""
	for {
		var msg chatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Type != "query" {
			_ = conn.WriteJSON(chatAnswer{Type: "error", Detail: "unsupported message type: " + msg.Type})
			continue
		}
		if strings.TrimSpace(msg.Query) == "" {
			_ = conn.WriteJSON(chatAnswer{Type: "error", Detail: "query must not be empty"})
			continue
		}
		if msg.SessionID != "" {
			sessionID = msg.SessionID
		}
		answer, err := t.answerer.Answer(r.Context(), msg.Query, sessionID)
		if err != nil {
			_ = conn.WriteJSON(chatAnswer{Type: "error", Detail: err.Error()})
			continue
		}
		sessionID = answer.SessionID
		sources := answer.Sources
		if sources == nil {
			sources = []tools.Source{}
		}
		_ = conn.WriteJSON(chatAnswer{
			Type:      "answer",
			Answer:    answer.Answer,
			Sources:   sources,
			SessionID: answer.SessionID,
		})
	}
}

func toQueryResponse(answer transports.Answer) queryResponse {
	sources := answer.Sources
	if sources == nil {
		sources = []tools.Source{}
	}
	return queryResponse{Answer: answer.Answer, Sources: sources, SessionID: answer.SessionID}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimSpace(allowed)
		if a == "" {
			continue
		}
		a = strings.TrimRight(a, "/")
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

var (
	_ transports.Transport     = (*Transport)(nil)
	_ transports.ReadyReporter = (*Transport)(nil)
)
