// Package server exposes the conversation controller over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-go-golems/careertwin/pkg/conversation"
	"github.com/go-go-golems/careertwin/pkg/conversation/controller"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"golang.org/x/sync/errgroup"
)

const maxRequestBytes = 1 << 20

// TurnRunner runs one conversation turn. *controller.Controller implements it.
type TurnRunner interface {
	Run(ctx context.Context, turn controller.ConversationTurn) (*controller.TurnReport, error)
}

var _ TurnRunner = (*controller.Controller)(nil)

// ChatRequest is the body of POST /api/chat. History holds the prior user and
// assistant messages, oldest first.
type ChatRequest struct {
	Message string                 `json:"message"`
	History []conversation.Message `json:"history,omitempty"`
}

func (r ChatRequest) Validate() error {
	if r.Message == "" {
		return errors.New("message is required")
	}
	for i, m := range r.History {
		if m.Role != conversation.RoleUser && m.Role != conversation.RoleAssistant {
			return errors.Errorf("history[%d]: role %q not allowed", i, m.Role)
		}
		if len(m.ToolCalls) > 0 || m.ToolCallID != "" {
			return errors.Errorf("history[%d]: tool fields not allowed", i)
		}
	}
	return nil
}

type ChatResponse struct {
	Reply     string `json:"reply"`
	ReplyHTML string `json:"reply_html"`
	Attempts  int    `json:"attempts"`
	TurnID    string `json:"turn_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	addr   string
	runner TurnRunner
	md     goldmark.Markdown
	server *http.Server
}

func New(addr string, runner TurnRunner) *Server {
	return &Server{
		addr:   addr,
		runner: runner,
		md:     goldmark.New(),
	}
}

// Handler returns the routed handler, wrapped with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/healthz", s.handleHealth)
	return withLogging(mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// a turn can take several model calls
		WriteTimeout: 5 * time.Minute,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", s.addr).Msg("starting HTTP server")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down HTTP server")
		return s.server.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := s.runner.Run(r.Context(), controller.ConversationTurn{
		History:     conversation.Messages(req.History),
		UserMessage: req.Message,
	})
	if err != nil {
		log.Error().Err(err).Msg("chat turn failed")
		writeJSON(w, http.StatusBadGateway, errorResponse{Error: "the assistant is unavailable, please try again later"})
		return
	}

	html, err := s.RenderHTML(report.Reply)
	if err != nil {
		log.Warn().Err(err).Msg("could not render reply as HTML")
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:     report.Reply,
		ReplyHTML: html,
		Attempts:  report.Attempts,
		TurnID:    report.TurnID.String(),
	})
}

// RenderHTML converts a markdown reply to HTML.
func (s *Server) RenderHTML(reply string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(reply), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write JSON response")
	}
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
