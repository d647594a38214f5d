package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matheus3301/microchat/internal/session"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and connection status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.GetStatus(callCtx)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			out := cmd.OutOrStdout()
			if ctx.JSONMode {
				return printJSON(out, resp)
			}

			tw := newTable(out)
			fmt.Fprintf(tw, "Session:\t%s\n", resp.Session)
			fmt.Fprintf(tw, "Server:\t%s\n", resp.ServerURL)
			self := resp.SelfName
			if self == "" {
				self = "-"
			}
			fmt.Fprintf(tw, "Self:\t%s (%d)\n", self, resp.SelfID)
			state := resp.State
			if resp.Reason != "" {
				state += " (" + resp.Reason + ")"
			}
			fmt.Fprintf(tw, "State:\t%s since %s\n", state, ago(resp.SinceUnixMs))
			fmt.Fprintf(tw, "Uptime:\t%s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
			fmt.Fprintf(tw, "Chats:\t%d\n", resp.Chats)
			fmt.Fprintf(tw, "Archived:\t%s messages\n", humanize.Comma(int64(resp.Archived)))
			fmt.Fprintf(tw, "Events:\t%d received, %d dropped, %d ignored\n", resp.Received, resp.Dropped, resp.Ignored)
			if resp.Lagged > 0 {
				fmt.Fprintf(tw, "Lagged:\t%d deliveries skipped by slow watchers\n", resp.Lagged)
			}
			fmt.Fprintf(tw, "Last event:\t%s\n", ago(resp.LastEventUnixMs))
			return tw.Flush()
		},
	}
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List known sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := session.List()
			if err != nil {
				return writeCommandError(cmd, err)
			}
			jsonMode, _ := cmd.Flags().GetBool("json")
			if jsonMode {
				if names == nil {
					names = []string{}
				}
				return printJSON(cmd.OutOrStdout(), names)
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No sessions.")
				return nil
			}
			current := session.Resolve("")
			for _, n := range names {
				marker := "  "
				if n == current {
					marker = "* "
				}
				fmt.Fprintln(cmd.OutOrStdout(), marker+n)
			}
			return nil
		},
	}
}
