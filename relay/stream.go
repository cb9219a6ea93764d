package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/orchestrator"
	"github.com/papercomputeco/switchboard/pkg/sse"
	"github.com/papercomputeco/switchboard/pkg/storage"
	"github.com/papercomputeco/switchboard/pkg/workflow"
)

// RunIDHeader carries the ID of the recorded run on stream responses.
const RunIDHeader = "X-Switchboard-Run-Id"

// WorkflowStreamRequest is the body of a workflow stream request. When
// Graph is set its steps replace Steps.
type WorkflowStreamRequest struct {
	Input map[string]any              `json:"input"`
	Steps []orchestrator.WorkflowStep `json:"steps,omitempty"`
	Graph *workflow.Graph             `json:"graph,omitempty"`
}

// handleAgentStream relays the execution of one agent message.
func (s *Server) handleAgentStream(c *fiber.Ctx) error {
	agentID := c.Params("id")

	var req orchestrator.AgentRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message is required"})
	}

	// Use context.Background() instead of c.Context() because fasthttp
	// recycles its RequestCtx after the handler returns, but the stream is
	// pumped asynchronously and needs the backend connection to stay open.
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := s.client.OpenAgent(ctx, agentID, req)
	if err != nil {
		cancel()
		s.recordFailure(storage.RunKindAgent, agentID, req.Message, err)
		return s.openError(c, err)
	}

	return s.relay(c, ctx, cancel, stream, storage.RunKindAgent, agentID, req.Message)
}

// handleWorkflowStream relays the execution of a workflow.
func (s *Server) handleWorkflowStream(c *fiber.Ctx) error {
	workflowID := c.Params("id")

	var body WorkflowStreamRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	req := orchestrator.WorkflowRequest{Input: body.Input, Steps: body.Steps}
	if body.Graph != nil {
		steps, err := workflow.ToSteps(*body.Graph)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		req.Steps = orchestrator.StepsFromWorkflow(steps)
	}

	input, _ := json.Marshal(req.Input)

	ctx, cancel := context.WithCancel(context.Background())

	stream, err := s.client.OpenWorkflow(ctx, workflowID, req)
	if err != nil {
		cancel()
		s.recordFailure(storage.RunKindWorkflow, workflowID, string(input), err)
		return s.openError(c, err)
	}

	return s.relay(c, ctx, cancel, stream, storage.RunKindWorkflow, workflowID, string(input))
}

// relay starts pumping stream into the response body.
//
// Use io.Pipe + SetBodyStream instead of SetBodyStreamWriter: pw.Write
// blocks until fasthttp has flushed the previous chunk to the socket, which
// gives per-event delivery and backpressure onto the backend stream.
func (s *Server) relay(c *fiber.Ctx, ctx context.Context, cancel context.CancelFunc, stream *orchestrator.Stream, kind storage.RunKind, targetID, input string) error {
	var record sse.Handler
	if s.recorder != nil {
		run, err := s.recorder.Begin(ctx, kind, targetID, input)
		if err != nil {
			s.logger.Warn("failed to record run", zap.Error(err))
		} else {
			record = s.recorder.Handler(run)
			c.Set(RunIDHeader, run.ID)
		}
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set("X-Accel-Buffering", "no")

	pr, pw := io.Pipe()
	go s.pump(ctx, cancel, stream, pw, record)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

func (s *Server) pump(ctx context.Context, cancel context.CancelFunc, stream *orchestrator.Stream, pw *io.PipeWriter, record sse.Handler) {
	defer pw.Close()
	defer stream.Close()
	defer cancel()

	forward := func(eventType string, payload sse.Payload) error {
		if err := writeEvent(pw, eventType, payload); err != nil {
			// The browser went away. Stop reading the backend.
			cancel()
			return err
		}
		return nil
	}

	// Record first so history is complete even when the browser leaves
	// mid-stream.
	handler := sse.Fanout(record, forward)

	if err := stream.Dispatch(ctx, handler); err != nil {
		s.logger.Warn("relayed stream interrupted", zap.Error(err))
		_ = handler(sse.ErrorEventType, sse.NewErrorPayload(err.Error()))
	}
}

// writeEvent encodes one normalized event as an SSE frame.
func writeEvent(w io.Writer, eventType string, payload sse.Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, data)
	return err
}

func (s *Server) openError(c *fiber.Ctx, err error) error {
	var statusErr *orchestrator.StatusError
	if errors.As(err, &statusErr) {
		return c.Status(statusErr.StatusCode).JSON(ErrorResponse{Error: statusErr.Message})
	}
	return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: orchestrator.ErrorMessage(err)})
}

// recordFailure stores a run that never opened, with its single error
// event, so failed attempts show up in history.
func (s *Server) recordFailure(kind storage.RunKind, targetID, input string, err error) {
	if s.recorder == nil {
		return
	}

	run, beginErr := s.recorder.Begin(context.Background(), kind, targetID, input)
	if beginErr != nil {
		s.logger.Warn("failed to record run", zap.Error(beginErr))
		return
	}
	_ = s.recorder.Handler(run)(sse.ErrorEventType, sse.NewErrorPayload(orchestrator.ErrorMessage(err)))
}
