package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/papercomputeco/switchboard/pkg/sse"
)

var (
	thinkingStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	actionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	observationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("150"))
	answerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// eventLabels are the gutter labels for the event types the backend emits.
var eventLabels = map[string]string{
	"thinking":     "thinking",
	"action":       "action",
	"action_input": "input",
	"observation":  "observation",
	"final_answer": "answer",
	"message":      "message",
	"error":        "error",
}

// EventRenderer writes normalized events to a terminal as they arrive.
type EventRenderer struct {
	mu       sync.Mutex
	w        io.Writer
	markdown bool

	// answer accumulates the final answer of the current run.
	answer strings.Builder
	failed string

	// lastObservation suppresses an observation repeated verbatim.
	lastObservation string
}

// NewEventRenderer returns a renderer writing to w. Final answers are
// rendered as markdown when markdown is true.
func NewEventRenderer(w io.Writer, markdown bool) *EventRenderer {
	return &EventRenderer{w: w, markdown: markdown}
}

// Handle renders one event. It satisfies sse.Handler.
func (r *EventRenderer) Handle(eventType string, payload sse.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	label, ok := eventLabels[eventType]
	if !ok {
		label = eventType
	}

	prefix := ""
	if name := agentName(payload); name != "" {
		prefix = NameStyle.Render(name) + " "
	}

	switch eventType {
	case sse.ErrorEventType, "agent_failed", "workflow_failed":
		msg := payload.String("error")
		if msg == "" {
			msg = payload.Content
		}
		if msg == "" {
			msg = strings.ReplaceAll(eventType, "_", " ")
		}
		r.failed = msg
		_, err := fmt.Fprintf(r.w, "  %s %s%s\n", FailMark, prefix, errorStyle.Render(msg))
		return err

	case "final_answer":
		if r.answer.Len() > 0 {
			r.answer.WriteString("\n")
		}
		r.answer.WriteString(payload.Content)

		body := payload.Content
		if r.markdown {
			if rendered, err := RenderMarkdown(body); err == nil {
				body = strings.TrimRight(rendered, "\n")
			}
		}
		_, err := fmt.Fprintf(r.w, "  %s %s%s\n%s\n", SuccessMark, prefix, answerStyle.Render(label), body)
		return err
	}

	if payload.Content == "" {
		return nil
	}

	if eventType == "observation" {
		if payload.Content == r.lastObservation {
			return nil
		}
		r.lastObservation = payload.Content
	}

	_, err := fmt.Fprintf(r.w, "  %s%s %s\n", prefix, gutter(label), styleFor(eventType).Render(payload.Content))
	return err
}

// Answer returns the final answers rendered so far.
func (r *EventRenderer) Answer() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answer.String()
}

// Failure returns the message of the last error, agent_failed, or
// workflow_failed event, if any.
func (r *EventRenderer) Failure() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed
}

// Reset clears the accumulated answer and failure between runs.
func (r *EventRenderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answer.Reset()
	r.failed = ""
	r.lastObservation = ""
}

func gutter(label string) string {
	return KeyStyle.Render(fmt.Sprintf("%-11s", label+":"))
}

func styleFor(eventType string) lipgloss.Style {
	switch eventType {
	case "thinking":
		return thinkingStyle
	case "action", "action_input":
		return actionStyle
	case "observation":
		return observationStyle
	default:
		return ValueStyle
	}
}

func agentName(p sse.Payload) string {
	if p.AgentName == nil || sse.IsNull(p.AgentName) {
		return ""
	}
	return p.String("agent_name")
}
