package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/matheus3301/microchat/internal/rpc"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream view events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			prefixes, _ := cmd.Flags().GetStringSlice("prefix")
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			sigCtx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
			defer stop()

			stream, err := ctx.Client.WatchView(sigCtx, &rpc.WatchRequest{Prefixes: prefixes})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			out := cmd.OutOrStdout()
			for {
				evt, err := stream.Recv()
				if err != nil {
					if errors.Is(err, io.EOF) || sigCtx.Err() != nil || status.Code(err) == codes.Canceled {
						return nil
					}
					return writeCommandError(cmd, err)
				}
				if ctx.JSONMode {
					if err := printJSON(out, evt); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintln(out, describeEvent(evt))
			}
		},
	}
	cmd.Flags().StringSlice("prefix", nil, "only stream these event namespaces (e.g. view,upload)")
	return cmd
}

// describeEvent renders one event as a log-style line.
func describeEvent(evt *rpc.ViewEvent) string {
	line := fmt.Sprintf("%s %-24s", time.UnixMilli(evt.OccurredAtUnixMs).Format("15:04:05.000"), evt.Kind)
	if evt.Chat != "" {
		line += " chat=" + evt.Chat
	}
	switch {
	case evt.Message != nil:
		line += fmt.Sprintf(" id=%d from=%s %q", evt.Message.ID, senderName(*evt.Message), oneLine(evt.Message.Text))
	case evt.Upload != nil:
		line += fmt.Sprintf(" upload=%s %s %s", evt.Upload.ID, evt.Upload.State, uploadProgress(*evt.Upload))
	case evt.Preview != nil:
		line += fmt.Sprintf(" preview=%s", chatName(evt.Preview.Name, evt.Preview.Chat))
	case evt.Previews != nil:
		line += fmt.Sprintf(" mode=%s n=%d", evt.Previews.Mode, len(evt.Previews.Previews))
	}
	if evt.State != "" {
		line += " state=" + evt.State
	}
	if evt.Fragment != "" {
		line += " fragment=" + evt.Fragment
	}
	if evt.ClientMsgID != "" {
		line += " client_msg_id=" + evt.ClientMsgID
	}
	if evt.Error != "" {
		line += fmt.Sprintf(" error=%q", evt.Error)
	}
	return line
}
