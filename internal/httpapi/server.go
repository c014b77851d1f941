package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/calendent/calendent/internal/agent"
	"github.com/calendent/calendent/internal/config"
	"github.com/calendent/calendent/internal/observability"
)

const defaultUserID = "default_user"

// ChatAgent processes one conversation turn.
type ChatAgent interface {
	HandleMessage(ctx context.Context, userID, message string) agent.Reply
}

type Server struct {
	cfg      config.Config
	agent    ChatAgent
	metrics  *observability.Metrics
	loc      *time.Location
	upgrader websocket.Upgrader
}

func New(cfg config.Config, chatAgent ChatAgent, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		agent:   chatAgent,
		metrics: metrics,
		loc:     cfg.Location(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same
				// origin unless explicitly opened up. Non-browser clients
				// omit Origin and are allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.handleRoot)
	r.Get("/api/health", s.handleHealth)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/api/chat", s.handleChat)
	r.Get("/api/chat/ws", s.handleChatWS)

	return r
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

type chatResponse struct {
	Response       string `json:"response"`
	BookingSuccess bool   `json:"booking_success"`
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "Calendar Assistant API is running!",
		"status":  "alive",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().In(s.loc).Format(time.RFC3339),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "empty_message", "message is required")
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = defaultUserID
	}

	reply := s.agent.HandleMessage(r.Context(), req.UserID, req.Message)
	respondJSON(w, http.StatusOK, chatResponse{
		Response:       reply.Text,
		BookingSuccess: reply.BookingSucceeded,
	})
}

// handleChatWS serves a persistent chat connection: each inbound
// {message, user_id} is answered with one chat response frame.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	queryUser := strings.TrimSpace(r.URL.Query().Get("user_id"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if s.metrics != nil {
		s.metrics.ActiveWSClients.Inc()
		defer s.metrics.ActiveWSClients.Dec()
	}

	conn.SetReadLimit(1 << 20)
	for {
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("httpapi: ws read ended: %v", err)
			}
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			_ = conn.WriteJSON(errorResponse{Error: "message is required", Code: "empty_message"})
			continue
		}
		userID := strings.TrimSpace(req.UserID)
		if userID == "" {
			userID = queryUser
		}
		if userID == "" {
			userID = defaultUserID
		}

		reply := s.agent.HandleMessage(r.Context(), userID, req.Message)
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(chatResponse{
			Response:       reply.Text,
			BookingSuccess: reply.BookingSucceeded,
		}); err != nil {
			return
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
