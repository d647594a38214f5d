package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/microchat/internal/rpc"
	"github.com/matheus3301/microchat/internal/session"
)

// commandContext holds the daemon connection shared by a command.
type commandContext struct {
	Client   *rpc.Client
	Session  string
	Socket   string
	JSONMode bool
	Timeout  time.Duration
}

// getContext resolves the session and dials its daemon.
func getContext(cmd *cobra.Command) (*commandContext, error) {
	sessionFlag, _ := cmd.Flags().GetString("session")
	socket, _ := cmd.Flags().GetString("socket")
	jsonMode, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	name := session.Resolve(sessionFlag)
	if err := session.ValidateName(name); err != nil {
		return nil, err
	}
	if socket == "" {
		socket = session.SocketPath(name)
	}
	c, err := rpc.Dial(socket)
	if err != nil {
		return nil, err
	}
	return &commandContext{
		Client:   c,
		Session:  name,
		Socket:   socket,
		JSONMode: jsonMode,
		Timeout:  timeout,
	}, nil
}

// call returns a context bounded by --timeout.
func (c *commandContext) call(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}

func (c *commandContext) Close() {
	_ = c.Client.Close()
}
