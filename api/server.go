// Package api exposes the conversational agent and the suggestions service
// over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/portsense/portsense/agent/engine"
	"github.com/portsense/portsense/agent/suggest"
)

// TurnHandler runs one conversational turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req engine.TurnRequest) (*engine.TurnResponse, error)
}

// SuggestionSource produces the weekly admin recommendations.
type SuggestionSource interface {
	Generate(ctx context.Context) (*suggest.Report, error)
}

type Config struct {
	Port int    `envconfig:"PORT" split_words:"true" default:"8080"`
	Key  string `envconfig:"KEY" split_words:"true" required:"true"`
}

// ChatRequest is the inbound /chat body.
type ChatRequest struct {
	Message  string `json:"message"`
	UserID   string `json:"user_id"`
	UserRole string `json:"user_role"`
	ThreadID string `json:"thread_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server wires the agent behind an API-key-protected echo instance.
type Server struct {
	echo        *echo.Echo
	port        int
	turns       TurnHandler
	suggestions SuggestionSource
}

func NewServer(cfg Config, turns TurnHandler, suggestions SuggestionSource) (*Server, error) {
	if strings.TrimSpace(cfg.Key) == "" {
		return nil, errors.New("api key is required")
	}
	if turns == nil {
		return nil, errors.New("turn handler is required")
	}
	if suggestions == nil {
		return nil, errors.New("suggestion source is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: "header:X-API-Key",
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Key)) == 1, nil
		},
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
	}))

	s := &Server{
		echo:        e,
		port:        cfg.Port,
		turns:       turns,
		suggestions: suggestions,
	}

	e.GET("/health", s.health)
	e.POST("/chat", s.chat)
	e.GET("/suggestions", s.getSuggestions)

	return s, nil
}

// Start runs the server until an interrupt, then shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}

	resp, err := s.turns.HandleTurn(c.Request().Context(), engine.TurnRequest{
		ThreadID: req.ThreadID,
		UserID:   req.UserID,
		Role:     req.UserRole,
		Message:  req.Message,
	})
	switch {
	case errors.Is(err, engine.ErrEmptyMessage):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "message must not be empty"})
	case err != nil:
		log.Error().Err(err).Str("thread_id", req.ThreadID).Msg("turn failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to process message"})
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) getSuggestions(c echo.Context) error {
	report, err := s.suggestions.Generate(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("suggestion generation failed")
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "failed to generate suggestions"})
	}
	return c.JSON(http.StatusOK, report)
}
