package workflowcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/switchboard/cmd/switchboard/stack"
	"github.com/papercomputeco/switchboard/pkg/cliui"
	"github.com/papercomputeco/switchboard/pkg/logger"
	"github.com/papercomputeco/switchboard/pkg/orchestrator"
	"github.com/papercomputeco/switchboard/pkg/sse"
	"github.com/papercomputeco/switchboard/pkg/storage"
)

var flagKeys = stack.Keys(stack.BackendFlags, stack.StorageFlags, stack.PublisherFlags)

type runCommander struct {
	workflowID string
	inputs     []string
	graphPath  string
	plain      bool
	debug      bool

	out    io.Writer
	logger *zap.Logger
}

const runLongDesc string = `Run a workflow and stream its execution.

Inputs are given as key=value pairs; a value that parses as JSON is sent
as JSON, anything else as a string. With --graph the steps of an editor
export are sent along with the request.

The run is recorded (see "switchboard history").

Examples:
  switchboard workflow run daily-digest --input topic=kubernetes
  switchboard workflow run pipeline --graph ./pipeline.json --input limit=5`

const runShortDesc string = "Run a workflow"

func newRunCmd() *cobra.Command {
	cmder := &runCommander{}

	cmd := &cobra.Command{
		Use:   "run <workflow-id>",
		Short: runShortDesc,
		Long:  runLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			cmder.workflowID = args[0]
			cmder.out = cmd.OutOrStdout()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx, cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&cmder.inputs, "input", "i", nil, "Workflow input as key=value (repeatable)")
	cmd.Flags().StringVarP(&cmder.graphPath, "graph", "g", "", "Editor graph export whose steps are sent with the request")
	cmd.Flags().BoolVar(&cmder.plain, "plain", false, "Do not render final answers as markdown")
	stack.AddFlags(cmd, flagKeys)

	return cmd
}

func (c *runCommander) run(ctx context.Context, cmd *cobra.Command) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	input, err := ParseInputs(c.inputs)
	if err != nil {
		return err
	}

	req := orchestrator.WorkflowRequest{Input: input}
	if c.graphPath != "" {
		steps, err := loadSteps(c.graphPath)
		if err != nil {
			return err
		}
		req.Steps = orchestrator.StepsFromWorkflow(steps)
	}

	cfg, err := stack.Load(cmd, flagKeys)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	st, err := stack.New(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	renderer := cliui.NewEventRenderer(c.out, !c.plain && cliui.IsTerminal(c.out))
	handler := sse.Handler(renderer.Handle)

	rawInput, _ := json.Marshal(input)
	run, err := st.Recorder.Begin(ctx, storage.RunKindWorkflow, c.workflowID, string(rawInput))
	if err != nil {
		c.logger.Warn("failed to record run", zap.Error(err))
	} else {
		handler = sse.Fanout(renderer.Handle, st.Recorder.Handler(run))
	}

	err = st.Client.ExecuteWorkflow(ctx, c.workflowID, req, handler)
	if errors.Is(err, sse.ErrStreamInterrupted) {
		fmt.Fprintf(c.out, "  %s %v\n", cliui.FailMark, err)
	}
	if err != nil {
		return err
	}

	if failure := renderer.Failure(); failure != "" {
		return errors.New(failure)
	}
	return nil
}

// ParseInputs turns key=value pairs into a workflow input object. Values
// that are valid JSON keep their JSON type.
func ParseInputs(pairs []string) (map[string]any, error) {
	input := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid input %q: expected key=value", pair)
		}

		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			input[key] = decoded
		} else {
			input[key] = value
		}
	}
	return input, nil
}
