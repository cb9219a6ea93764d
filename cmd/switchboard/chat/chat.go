// Package chatcmder provides the chat command for talking to a single agent
// through the orchestration backend.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/cmd/switchboard/stack"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/dotdir"
	"github.com/papercomputeco/switchboard/pkg/logger"
	"github.com/papercomputeco/switchboard/pkg/orchestrator"
	"github.com/papercomputeco/switchboard/pkg/sse"
	"github.com/papercomputeco/switchboard/pkg/storage"
	"github.com/papercomputeco/switchboard/pkg/utils"
)

var userPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")

var flagKeys = stack.Keys(stack.BackendFlags, stack.StorageFlags, stack.PublisherFlags)

type chatCommander struct {
	agentID    string
	message    string
	newSession bool
	plain      bool
	debug      bool
	configDir  string

	in  io.Reader
	out io.Writer

	stack    *stack.Stack
	renderer *cliui.EventRenderer
	session  *dotdir.Session
	logger   *zap.Logger
}

const chatLongDesc string = `Chat with an agent through the orchestration backend.

Each message opens an execution stream; thinking, tool calls, observations
and the final answer are rendered as they arrive. Every exchange is
recorded as a run (see "switchboard history").

The conversation's session ID is kept in the .switchboard/ directory so
the next "switchboard chat" with the same agent resumes it. Use --new to
start over.

With -m the single message is sent and the command exits; otherwise an
interactive loop reads messages from stdin.

Examples:
  switchboard chat researcher
  switchboard chat researcher -m "Summarize today's incidents"
  switchboard chat researcher --mode gateway --gateway http://localhost:8080`

const chatShortDesc string = "Chat with an agent"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat <agent-id>",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cmder.agentID = args[0]
			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx, cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.message, "message", "m", "", "Send a single message and exit")
	cmd.Flags().BoolVar(&cmder.newSession, "new", false, "Start a new session instead of resuming the last one")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Do not render final answers as markdown")
	stack.AddFlags(cmd, flagKeys)

	return cmd
}

func (c *chatCommander) run(ctx context.Context, cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	cfg, err := stack.Load(cmd, flagKeys)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	c.stack, err = stack.New(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer c.stack.Close()

	c.session, err = c.resolveSession()
	if err != nil {
		return err
	}

	c.renderer = cliui.NewEventRenderer(c.out, !c.plain && cliui.IsTerminal(c.out))

	if c.message != "" {
		return c.send(ctx, c.message)
	}

	return c.loop(ctx)
}

// resolveSession loads the saved session for the agent, or starts and saves
// a new one.
func (c *chatCommander) resolveSession() (*dotdir.Session, error) {
	ddm := dotdir.NewManager()

	if !c.newSession {
		session, err := ddm.LoadSession(c.agentID, c.configDir)
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
		if session != nil {
			return session, nil
		}
	}

	session := &dotdir.Session{
		AgentID:   c.agentID,
		SessionID: uuid.NewString(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := ddm.SaveSession(session, c.configDir); err != nil {
		// Chat still works, it just will not resume next time.
		c.logger.Warn("failed to save session", zap.Error(err))
	}
	return session, nil
}

func (c *chatCommander) loop(ctx context.Context) error {
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s %s\n",
		cliui.KeyStyle.Render("Agent:"),
		cliui.NameStyle.Render(c.agentID),
	)
	fmt.Fprintf(c.out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Session:"),
		cliui.HashStyle.Render(utils.Truncate(c.session.SessionID, 8)),
	)
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)

	for ctx.Err() == nil {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			// EOF or error
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "/exit" {
			break
		}

		if err := c.send(ctx, input); err != nil {
			c.logger.Debug("chat message failed", zap.Error(err))
		}
		fmt.Fprintln(c.out)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// send streams one message and records it as a run.
func (c *chatCommander) send(ctx context.Context, message string) error {
	c.renderer.Reset()

	handler := sse.Handler(c.renderer.Handle)
	run, err := c.stack.Recorder.Begin(ctx, storage.RunKindAgent, c.agentID, message)
	if err != nil {
		c.logger.Warn("failed to record run", zap.Error(err))
	} else {
		handler = sse.Fanout(c.renderer.Handle, c.stack.Recorder.Handler(run))
	}

	req := orchestrator.AgentRequest{
		Message:   message,
		SessionID: c.session.SessionID,
	}

	err = c.stack.Client.ExecuteAgent(ctx, c.agentID, req, handler)
	if errors.Is(err, sse.ErrStreamInterrupted) {
		// Open failures were already rendered as error events.
		fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
	}
	if err != nil {
		return err
	}

	if failure := c.renderer.Failure(); failure != "" {
		return errors.New(failure)
	}
	return nil
}
