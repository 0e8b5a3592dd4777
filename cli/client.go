// Package cli implements the petalapp command line client: introspecting and
// invoking a running app over its WebSocket session.
package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/petal-labs/petalapp/transport"
)

const defaultAddr = "ws://127.0.0.1:7703"

// dialApp connects to the app named by the --addr flag.
func dialApp(cmd *cobra.Command) (*transport.Client, error) {
	addr, _ := cmd.Flags().GetString("addr")
	if strings.TrimSpace(addr) == "" {
		addr = defaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}

	client, err := transport.Dial(cmd.Context(), addr)
	if err != nil {
		return nil, exitError(exitRuntime, "connecting to app at %s: %v", addr, err)
	}
	return client, nil
}

// withTimeout derives a bounded context from the command's --timeout flag.
func withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		return context.WithCancel(cmd.Context())
	}
	return context.WithTimeout(cmd.Context(), timeout)
}
