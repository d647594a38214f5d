package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/matheus3301/microchat/internal/rpc"
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <chat> <path>",
		Short: "Upload a file into the chat's draft",
		Long:  "Upload a file into the chat's draft. The next send carries it. The daemon reads the file, so the path must be visible to it.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[1])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			mime, _ := cmd.Flags().GetString("mime")
			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			u, err := ctx.Client.StartUpload(callCtx, &rpc.StartUploadRequest{Chat: args[0], Path: path, MimeType: mime})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), u)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Upload %s started: %s (%s)\n", u.ID, u.Name, humanize.Bytes(uint64(max(u.Total, 0))))
			return nil
		},
	}
	cmd.Flags().String("mime", "", "mime type (default: detected by the daemon)")
	return cmd
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <upload-id>",
		Short: "Cancel an upload and drop it from the draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			u, err := ctx.Client.CancelUpload(callCtx, &rpc.CancelUploadRequest{ID: args[0]})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), u)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancelled upload %s (%s)\n", u.ID, u.Name)
			return nil
		},
	}
}

func newUploadsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uploads <chat>",
		Short: "List the uploads and draft of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := getContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			callCtx, cancel := ctx.call(cmd)
			defer cancel()
			resp, err := ctx.Client.ListUploads(callCtx, &rpc.ListUploadsRequest{Chat: args[0]})
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if ctx.JSONMode {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			if len(resp.Uploads) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No uploads.")
			} else if err := printUploads(cmd.OutOrStdout(), resp.Uploads); err != nil {
				return err
			}
			if len(resp.Draft) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Draft: %v\n", resp.Draft)
			}
			return nil
		},
	}
}
