package server

import (
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"github.com/Javier1112/BookGame/pkg/game"
)

// fallbackFailureMessage is returned when an upstream failure carries no
// message of its own.
const fallbackFailureMessage = "故事生成失败，请稍后再试。"

// POST /api/play-turn
func (s *Server) handlePlayTurn(c echo.Context) error {
	requestID := ksuid.New().String()
	startedAt := time.Now()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.String(http.StatusBadRequest, "请求体格式不正确。")
	}

	req, err := game.ParseTurnRequest(body)
	if err != nil {
		log.Warn("play turn bad request", "requestID", requestID, "err", err)
		return c.String(http.StatusBadRequest, err.Error())
	}

	// One in-flight turn per client identity; rejected before any upstream
	// work begins.
	identity := c.RealIP()
	if err := s.Gate.Enter(identity); err != nil {
		log.Warn("play turn rejected, client busy", "requestID", requestID, "client", identity)
		return c.String(http.StatusTooManyRequests, err.Error())
	}
	defer s.Gate.Leave(identity)

	log.Info("play turn start",
		"requestID", requestID, "round", req.Round, "historyCount", len(req.History))

	resp, err := s.Orchestrator.PlayTurn(c.Request().Context(), req, requestID)
	if err != nil {
		log.Error("play turn failed",
			"requestID", requestID, "ms", time.Since(startedAt).Milliseconds(), "err", err)
		return c.String(http.StatusInternalServerError, failureMessage(err))
	}

	log.Info("play turn ok", "requestID", requestID, "ms", time.Since(startedAt).Milliseconds())
	return c.JSON(http.StatusOK, resp)
}

// GET /api/health, GET /health
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func failureMessage(err error) string {
	if err == nil || err.Error() == "" {
		return fallbackFailureMessage
	}
	return err.Error()
}
