// Package server exposes the turn orchestrator over HTTP.
package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Javier1112/BookGame/pkg/game"
	"github.com/Javier1112/BookGame/pkg/limiter"
)

// TurnPlayer is the orchestrator surface the handlers call.
type TurnPlayer interface {
	PlayTurn(ctx context.Context, req game.TurnRequest, requestID string) (*game.TurnResponse, error)
}

type Server struct {
	Echo         *echo.Echo
	Orchestrator TurnPlayer
	Gate         *limiter.Gate
	Ctx          context.Context
}

type Options struct {
	AllowedOrigins []string
	// GeneratedDir, when set, is served under /generated for the local
	// image backend's artifacts.
	GeneratedDir string
}

func NewServer(ctx context.Context, orchestrator TurnPlayer, gate *limiter.Gate, opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	if len(opts.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: opts.AllowedOrigins}))
	} else {
		e.Use(middleware.CORS())
	}

	s := &Server{
		Echo:         e,
		Orchestrator: orchestrator,
		Gate:         gate,
		Ctx:          ctx,
	}

	api := e.Group("/api")
	api.POST("/play-turn", s.handlePlayTurn)
	api.GET("/health", s.handleHealth)
	e.GET("/health", s.handleHealth)

	if opts.GeneratedDir != "" {
		e.Static("/generated", opts.GeneratedDir)
	}

	return s
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
