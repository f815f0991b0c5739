// tablebot-ctl - companion CLI for a TableBot gadget
// Sends move and deliver directives over the companion WebSocket link or
// the HTTP API and prints the outcome.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-tablebot/pkg/companion"
	"github.com/teslashibe/go-tablebot/pkg/protocol"
)

// Transports accepted by --transport.
const (
	transportWS   = "ws"
	transportHTTP = "http"
)

type options struct {
	server    string
	transport string
	id        string
	timeout   time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "tablebot-ctl",
		Short:        "Control a TableBot gadget",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.transport {
			case transportWS, transportHTTP:
				return nil
			default:
				return fmt.Errorf("unknown transport %q (want ws or http)", opts.transport)
			}
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVarP(&opts.server, "server", "s", "http://localhost:8080", "Gadget server URL.")
	fs.StringVarP(&opts.transport, "transport", "t", transportWS, "Transport: ws or http.")
	fs.StringVar(&opts.id, "id", "tablebot-ctl", "Companion ID used on the WebSocket link.")
	fs.DurationVar(&opts.timeout, "timeout", companion.DirectiveTimeout, "How long to wait for the gadget.")

	cmd.AddCommand(
		newMoveCommand(opts),
		newStopCommand(opts),
		newDeliverCommand(opts),
		newStatusCommand(opts),
	)
	return cmd
}

func newMoveCommand(opts *options) *cobra.Command {
	var duration, speed int

	cmd := &cobra.Command{
		Use:   "move <direction>",
		Short: "Drive the rack (forward, backward, stop, left, right)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendDirective(cmd, opts, movePayload(args[0], duration, speed))
		},
	}
	cmd.Flags().IntVarP(&duration, "duration", "d", 1, "Run time in seconds.")
	cmd.Flags().IntVar(&speed, "speed", 50, "Speed as a percentage.")
	return cmd
}

func newStopCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the drive motor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendDirective(cmd, opts, movePayload("stop", 0, 0))
		},
	}
}

func newDeliverCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver <condiment>",
		Short: "Deliver a condiment (salt, pepper, lemon)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendDirective(cmd, opts, deliverPayload(args[0]))
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the gadget status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			var status *protocol.StatusData
			var err error
			if opts.transport == transportHTTP {
				status, err = companion.NewHTTPClient(opts.server).Status(ctx)
			} else {
				status, err = wsStatus(ctx, opts)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), status)
		},
	}
}

func movePayload(direction string, duration, speed int) map[string]interface{} {
	return map[string]interface{}{
		"type":      "move",
		"direction": direction,
		"duration":  duration,
		"speed":     speed,
	}
}

func deliverPayload(condiment string) map[string]interface{} {
	return map[string]interface{}{
		"type":      "deliver",
		"direction": "forward",
		"duration":  0,
		"speed":     0,
		"spice":     condiment,
	}
}

func sendDirective(cmd *cobra.Command, opts *options, payload map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	if opts.transport == transportHTTP {
		res, err := companion.NewHTTPClient(opts.server).PostDirective(ctx, payload)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}

	c, err := dial(ctx, opts)
	if err != nil {
		return err
	}
	defer c.Close()

	d, err := c.SendDirective(payload)
	if err != nil {
		return err
	}
	ev, err := c.WaitOutcome(ctx, d.Header.MessageID)
	if err != nil {
		return fmt.Errorf("waiting for directive %s: %w", d.Header.MessageID, err)
	}
	if err := printJSON(cmd.OutOrStdout(), ev); err != nil {
		return err
	}
	if ev.Name == protocol.EventDropped {
		return fmt.Errorf("directive dropped: %s", ev.Detail)
	}
	return nil
}

func wsStatus(ctx context.Context, opts *options) (*protocol.StatusData, error) {
	c, err := dial(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	if err := c.RequestStatus(); err != nil {
		return nil, err
	}
	msg, err := c.WaitFor(ctx, func(m *protocol.Message) bool { return m.Type == protocol.TypeStatus })
	if err != nil {
		return nil, err
	}
	return msg.GetStatusData()
}

func dial(ctx context.Context, opts *options) (*companion.Client, error) {
	id := opts.id
	if id == "" {
		id = uuid.NewString()
	}
	wsURL, err := companion.LinkURL(opts.server, id)
	if err != nil {
		return nil, err
	}
	return companion.Dial(ctx, wsURL)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
