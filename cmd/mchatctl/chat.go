package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/tui/views"
)

func newPreviewsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "previews",
		Aliases: []string{"ls"},
		Short:   "List the preview list (recent chats or peer search results)",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.ListPreviews(callCtx)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			return printPreviews(cmd.OutOrStdout(), resp)
		},
	}
}

func printPreviews(w io.Writer, resp *rpc.ListPreviewsResponse) error {
	if resp.Mode == "search" {
		fmt.Fprintf(w, "Peers matching %q:\n", resp.Query)
	}
	if len(resp.Previews) == 0 {
		fmt.Fprintln(w, "No chats.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "\tCHAT\tNAME\tWHEN\tLAST MESSAGE")
	for _, p := range resp.Previews {
		marker := ""
		if p.Selected {
			marker = "*"
		}
		text := oneLine(p.Text)
		if p.SenderName != "" && text != "" {
			text = p.SenderName + ": " + text
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", marker, p.Chat, chatName(p.Name, p.Chat), ago(p.SentAtUnixMs), text)
	}
	return tw.Flush()
}

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <chat>",
		Short: "Print the loaded messages of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			older, _ := cmd.Flags().GetBool("older")
			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.GetChat(callCtx, &rpc.GetChatRequest{Chat: args[0], Older: older})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), resp)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%d messages)\n", chatName(resp.Name, resp.Chat), len(resp.Messages))
			if err := printMessages(out, resp.Messages); err != nil {
				return err
			}
			if len(resp.Draft) > 0 {
				fmt.Fprintf(out, "Draft: %d file(s) attached\n", len(resp.Draft))
			}
			return nil
		},
	}
	cmd.Flags().Bool("older", false, "load the page of history before the loaded window first")
	return cmd
}

// navigate commits a route change and prints the result.
func navigate(cmd *cobra.Command, req *rpc.NavigateRequest) error {
	ctx, err := getContext(cmd)
	if err != nil {
		return writeCommandError(cmd, err)
	}
	defer ctx.Close()

	callCtx, cancel := ctx.call(cmd)
	defer cancel()
	resp, err := ctx.Client.Navigate(callCtx, req)
	if err != nil {
		return writeCommandError(cmd, err)
	}
	if ctx.JSONMode {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	printRoute(cmd.OutOrStdout(), resp)
	if resp.Error != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", resp.Error)
	}
	return nil
}

func printRoute(w io.Writer, r *rpc.RouteResponse) {
	fragment := r.Fragment
	if fragment == "" {
		fragment = "(empty)"
	}
	fmt.Fprintf(w, "Route: #%s\n", fragment)
	if r.Chat != "" {
		fmt.Fprintf(w, "Chat:  %s\n", r.Chat)
	}
	if r.Search != "" {
		fmt.Fprintf(w, "Peers: %s\n", r.Search)
	}
	for _, t := range r.Transitions {
		fmt.Fprintf(w, "  %s\n", t)
	}
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [chat]",
		Short: "Select a chat in the route (no argument closes it)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chat := ""
			if len(args) == 1 {
				chat = args[0]
			}
			return navigate(cmd, &rpc.NavigateRequest{Params: map[string]string{"c": chat}})
		},
	}
}

func newFindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "find [query]",
		Short: "Search peers; the preview list shows the results (no argument restores it)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			return navigate(cmd, &rpc.NavigateRequest{Params: map[string]string{"s": query}})
		},
	}
}

func newGoCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "go <fragment>",
		Aliases: []string{"navigate"},
		Short:   "Replace the whole route fragment",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return navigate(cmd, &rpc.NavigateRequest{Fragment: args[0]})
		},
	}
}

func newRouteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "route",
		Short: "Show the current route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.GetRoute(callCtx)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			printRoute(cmd.OutOrStdout(), resp)
			return nil
		},
	}
}

func newShareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Print the shareable link of the current route",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.GetRoute(callCtx)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), map[string]string{"url": resp.ShareURL})
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.ShareURL)
			if qr, _ := cmd.Flags().GetBool("qr"); qr && resp.ShareURL != "" {
				fmt.Fprintln(cmd.OutOrStdout(), views.RenderQR(resp.ShareURL))
			}
			return nil
		},
	}
	cmd.Flags().Bool("qr", false, "also print the link as a QR code")
	return cmd
}
