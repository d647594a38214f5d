package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	msg := err.Error()
	if s, ok := status.FromError(err); ok {
		msg = s.Message()
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", msg)

	if status.Code(err) == codes.Unavailable {
		name, _ := cmd.Flags().GetString("session")
		if name == "" {
			fmt.Fprintln(cmd.ErrOrStderr(), "Hint: is mchatd running? Start it with: mchatd")
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "Hint: is mchatd running for session %q? Start it with: mchatd --session %s\n", name, name)
		}
	}

	return err
}
