package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

const appName = "mchatctl"

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Control a running mchatd session",
		Long:          "mchatctl talks to the mchatd daemon of a session over its unix socket.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(appName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("session", "", "session name (overrides config default)")
	cmd.PersistentFlags().String("socket", "", "daemon socket (default: the session's socket)")
	cmd.PersistentFlags().Bool("json", false, "output in JSON format")
	cmd.PersistentFlags().Duration("timeout", 10*time.Second, "per-call timeout")

	cmd.AddCommand(
		newStatusCmd(),
		newSessionsCmd(),
		newPreviewsCmd(),
		newChatCmd(),
		newOpenCmd(),
		newFindCmd(),
		newGoCmd(),
		newRouteCmd(),
		newShareCmd(),
		newSendCmd(),
		newEditCmd(),
		newDeleteCmd(),
		newSearchCmd(),
		newUploadCmd(),
		newCancelCmd(),
		newUploadsCmd(),
		newWatchCmd(),
	)

	return cmd
}
