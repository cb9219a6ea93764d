package relay

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/storage"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RunResponse is a run with its recorded events.
type RunResponse struct {
	Run    *storage.Run             `json:"run"`
	Events []*storage.RecordedEvent `json:"events,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListRuns returns recorded runs, most recent first.
func (s *Server) handleListRuns(c *fiber.Ctx) error {
	if s.driver == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(ErrorResponse{Error: "run history is disabled"})
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a non-negative integer"})
		}
		limit = n
	}

	runs, err := s.driver.ListRuns(c.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list runs"})
	}
	if runs == nil {
		runs = []*storage.Run{}
	}

	return c.JSON(runs)
}

// handleGetRun returns a single run by its ID.
func (s *Server) handleGetRun(c *fiber.Ctx) error {
	if s.driver == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(ErrorResponse{Error: "run history is disabled"})
	}

	run, err := s.driver.GetRun(c.Context(), c.Params("id"))
	if err != nil {
		return s.storageError(c, err)
	}

	return c.JSON(RunResponse{Run: run})
}

// handleRunEvents returns a run together with its transcript.
func (s *Server) handleRunEvents(c *fiber.Ctx) error {
	if s.driver == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(ErrorResponse{Error: "run history is disabled"})
	}

	ctx := c.Context()
	id := c.Params("id")

	run, err := s.driver.GetRun(ctx, id)
	if err != nil {
		return s.storageError(c, err)
	}

	events, err := s.driver.Events(ctx, id)
	if err != nil {
		return s.storageError(c, err)
	}

	return c.JSON(RunResponse{Run: run, Events: events})
}

func (s *Server) storageError(c *fiber.Ctx, err error) error {
	var notFound storage.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "run not found"})
	}

	s.logger.Error("storage request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "storage request failed"})
}
