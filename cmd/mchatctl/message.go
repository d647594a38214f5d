package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matheus3301/microchat/internal/rpc"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <chat> <text...>",
		Short: "Send a message with the chat's draft attachments",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			text := strings.Join(args[1:], " ")
			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.SendText(callCtx, &rpc.SendTextRequest{Chat: args[0], Text: text})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Queued %s", resp.ClientMsgID)
			if n := len(resp.Attachments); n > 0 {
				fmt.Fprintf(out, " with %d attachment(s)", n)
			}
			fmt.Fprintln(out)
			if resp.PendingUploads > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %d upload(s) still running; they are not part of this message\n", resp.PendingUploads)
			}
			return nil
		},
	}
}

func parseMessageID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid message id %q", s)
	}
	return id, nil
}

func printMutation(cmd *cobra.Command, jsonMode bool, resp *rpc.MutationResponse, verb string, id int64) error {
	if jsonMode {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	if resp.Result == "not_found" {
		fmt.Fprintf(cmd.OutOrStdout(), "%s message %d (not in the loaded window)\n", verb, id)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s message %d\n", verb, id)
	return nil
}

func newEditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <chat> <id> <text...>",
		Short: "Replace the text of a message",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMessageID(args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.EditText(callCtx, &rpc.EditTextRequest{
				Chat:      args[0],
				MessageID: id,
				Text:      strings.Join(args[2:], " "),
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return printMutation(cmd, ctx.JSONMode, resp, "Edited", id)
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <chat> <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a message",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseMessageID(args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.DeleteMessage(callCtx, &rpc.DeleteMessageRequest{Chat: args[0], MessageID: id})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			return printMutation(cmd, ctx.JSONMode, resp, "Deleted", id)
		},
	}
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Full-text search over the local message archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			chat, _ := cmd.Flags().GetString("chat")
			limit, _ := cmd.Flags().GetInt("limit")
			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.SearchArchive(callCtx, &rpc.SearchArchiveRequest{
				Query: strings.Join(args, " "),
				Chat:  chat,
				Limit: limit,
			})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			if len(resp.Results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matches.")
				return nil
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "CHAT\tID\tFROM\tWHEN\tSNIPPET")
			for _, h := range resp.Results {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n", h.Chat, h.Message.ID, senderName(h.Message), ago(h.Message.SentAtUnixMs), oneLine(h.Snippet))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("chat", "", "only search this chat")
	cmd.Flags().Int("limit", 20, "maximum number of results")
	return cmd
}
