// Package orchestrator opens execution streams against the agent
// orchestration backend and feeds them through the SSE normalizer.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/pkg/sse"
)

// Mode selects which backend surface the client talks to.
type Mode string

const (
	// ModeDirect talks to the backend API. Event types arrive on "event:"
	// lines.
	ModeDirect Mode = "direct"

	// ModeGateway talks to the gateway. Event types arrive inside the JSON
	// body.
	ModeGateway Mode = "gateway"
)

// ParseMode validates a mode string. The empty string is direct.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeDirect:
		return ModeDirect, nil
	case ModeGateway:
		return ModeGateway, nil
	default:
		return "", fmt.Errorf("unsupported backend mode %q", s)
	}
}

// Config is the orchestrator client configuration.
type Config struct {
	// BaseURL is the backend API base URL used in direct mode.
	BaseURL string

	// GatewayURL is the base URL used in gateway mode.
	GatewayURL string

	Mode   Mode
	APIKey string

	// Timeout bounds a whole execution stream. Zero means no limit.
	Timeout time.Duration

	Logger *zap.Logger

	// StreamOptions are passed to every sse.Reader the client opens.
	StreamOptions []sse.Option

	// OnOpenFailure, when set, is called with "status" or "transport" each
	// time a stream fails to open.
	OnOpenFailure func(kind string)

	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client opens agent and workflow execution streams.
type Client struct {
	base    string
	mode    Mode
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
	options []sse.Option
	onFail  func(string)
}

// NewClient validates c and returns a Client.
func NewClient(c Config) (*Client, error) {
	if c.Mode == "" {
		c.Mode = ModeDirect
	}

	base := c.BaseURL
	switch c.Mode {
	case ModeDirect:
	case ModeGateway:
		base = c.GatewayURL
	default:
		return nil, fmt.Errorf("unsupported backend mode %q", c.Mode)
	}

	if base == "" {
		return nil, fmt.Errorf("no base URL configured for %s mode", c.Mode)
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}

	logger := c.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		// Streams stay open for as long as the agent runs, so the client
		// itself carries no timeout; Timeout is applied per request.
		httpClient = &http.Client{}
	}

	onFail := c.OnOpenFailure
	if onFail == nil {
		onFail = func(string) {}
	}

	cl := &Client{
		base:   strings.TrimRight(base, "/"),
		mode:   c.Mode,
		apiKey: c.APIKey,
		http:   httpClient,
		logger: logger,
		onFail: onFail,
	}
	cl.options = append([]sse.Option{sse.WithLogger(logger)}, c.StreamOptions...)

	if c.Timeout > 0 {
		cl.http = withTimeout(httpClient, c.Timeout)
	}

	return cl, nil
}

func withTimeout(c *http.Client, d time.Duration) *http.Client {
	clone := *c
	clone.Timeout = d
	return &clone
}

// Mode returns the mode the client was built with.
func (c *Client) Mode() Mode {
	return c.mode
}

// AgentRequest is the body of an agent execution.
type AgentRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// WorkflowRequest is the body of a workflow execution.
type WorkflowRequest struct {
	Input map[string]any `json:"input"`
	Steps []WorkflowStep `json:"steps,omitempty"`
}

// WorkflowStep is one step of an ad hoc workflow built from an editor graph.
type WorkflowStep struct {
	AgentID   string         `json:"agent_id"`
	Name      string         `json:"name,omitempty"`
	DependsOn []int          `json:"depends_on,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

// OpenAgent opens the execution stream of one agent message. On failure
// no event is delivered anywhere; the caller decides how to report it.
func (c *Client) OpenAgent(ctx context.Context, agentID string, req AgentRequest) (*Stream, error) {
	return c.openStream(ctx, c.agentPath(agentID), req)
}

// OpenWorkflow opens the execution stream of a workflow.
func (c *Client) OpenWorkflow(ctx context.Context, workflowID string, req WorkflowRequest) (*Stream, error) {
	if req.Input == nil {
		req.Input = map[string]any{}
	}
	return c.openStream(ctx, c.workflowPath(workflowID), req)
}

// ExecuteAgent streams the execution of one agent message to handler. It
// returns once the stream has closed. If the stream cannot be opened,
// handler receives exactly one "error" event and the error is returned.
func (c *Client) ExecuteAgent(ctx context.Context, agentID string, req AgentRequest, handler sse.Handler) error {
	stream, err := c.OpenAgent(ctx, agentID, req)
	return c.run(ctx, stream, err, handler)
}

// ExecuteWorkflow streams the execution of a workflow to handler, with the
// same failure contract as ExecuteAgent.
func (c *Client) ExecuteWorkflow(ctx context.Context, workflowID string, req WorkflowRequest, handler sse.Handler) error {
	stream, err := c.OpenWorkflow(ctx, workflowID, req)
	return c.run(ctx, stream, err, handler)
}

func (c *Client) agentPath(agentID string) string {
	if c.mode == ModeGateway {
		return "/gateway/agents/" + url.PathEscape(agentID) + "/stream"
	}
	return "/api/v1/agents/" + url.PathEscape(agentID) + "/execute/stream"
}

func (c *Client) workflowPath(workflowID string) string {
	if c.mode == ModeGateway {
		return "/gateway/workflows/" + url.PathEscape(workflowID) + "/stream"
	}
	return "/api/v1/workflows/" + url.PathEscape(workflowID) + "/execute/stream"
}

func (c *Client) run(ctx context.Context, stream *Stream, openErr error, handler sse.Handler) error {
	if openErr != nil {
		c.deliverError(handler, ErrorMessage(openErr))
		return openErr
	}
	defer stream.Close()

	return stream.Dispatch(ctx, handler)
}

func (c *Client) openStream(ctx context.Context, path string, body any) (*Stream, error) {
	resp, err := c.open(ctx, path, body)
	if err != nil {
		kind := "transport"
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			kind = "status"
		}

		c.onFail(kind)
		c.logger.Warn("failed to open event stream",
			zap.String("path", path),
			zap.String("kind", kind),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("event stream open", zap.String("path", path))

	return newStream(resp.Body, c.options...), nil
}

// open sends the request and returns a response already confirmed
// successful.
func (c *Client) open(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.mode == ModeGateway {
		req.Header.Set("X-Switchboard-Mode", string(ModeGateway))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, respBody),
		}
	}

	return resp, nil
}

// deliverError hands the single error event of a failed open to handler.
func (c *Client) deliverError(handler sse.Handler, msg string) {
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Warn("event handler failed", zap.Any("panic", rec))
		}
	}()

	if err := handler(sse.ErrorEventType, sse.NewErrorPayload(msg)); err != nil {
		c.logger.Warn("event handler failed", zap.Error(err))
	}
}
