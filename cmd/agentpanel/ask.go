package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/agentpanel/core"
	"pkt.systems/pslog"
)

func newAskCmd() *cobra.Command {
	var timeout time.Duration
	var flags *sessionFlags
	cmd := &cobra.Command{
		Use:   "ask [prompt|-]",
		Short: "Send one prompt and print the transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := resolveAskPrompt(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			sess, err := flags.openSession(ctx, cmd, nil, nil)
			if err != nil {
				return err
			}
			defer sess.controller.Destroy(context.WithoutCancel(ctx))
			return runAsk(ctx, sess.controller, prompt, timeout, cmd.OutOrStdout())
		},
	}
	flags = newSessionFlags(cmd)
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "stop the agent after this long (0 waits forever)")
	return cmd
}

// runAsk sends prompt, waits for the exchange to settle and prints the
// rendered transcript. Interrupts and timeouts stop the agent.
func runAsk(ctx context.Context, ctrl *core.Controller, prompt string, timeout time.Duration, out io.Writer) error {
	logger := pslog.Ctx(ctx)
	if err := ctrl.Send(ctx, prompt); err != nil {
		_, _ = fmt.Fprint(out, ctrl.RenderedTranscriptText())
		return err
	}
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := ctrl.WaitIdle(waitCtx); err != nil {
		logger.Warn("ask interrupted, stopping agent", "err", err)
		_ = ctrl.Stop(context.WithoutCancel(ctx))
		_, _ = fmt.Fprint(out, ctrl.RenderedTranscriptText())
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("agent did not finish within %s", timeout)
		}
		return err
	}
	_, err := fmt.Fprint(out, ctrl.RenderedTranscriptText())
	return err
}

func resolveAskPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		prompt := strings.TrimSpace(string(data))
		if prompt == "" {
			return "", errors.New("no prompt provided via stdin")
		}
		return prompt, nil
	}
	return strings.Join(args, " "), nil
}
