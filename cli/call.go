package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewCallCmd creates the "call" command: invoke a tool on a running app.
func NewCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke a tool on a running app",
		Args:  cobra.ExactArgs(1),
		RunE:  runCall,
	}
	cmd.Flags().String("addr", defaultAddr, "App address (ws://host:port)")
	cmd.Flags().Duration("timeout", 30*time.Second, "Invocation timeout")
	cmd.Flags().StringArray("input", nil, "Input KEY=VALUE pair (repeatable)")
	cmd.Flags().String("input-json", "", "Input object as JSON")
	cmd.Flags().Bool("json", false, "Print the full response envelope as JSON")
	return cmd
}

func runCall(cmd *cobra.Command, args []string) error {
	input, err := parseCallInputs(cmd)
	if err != nil {
		return exitError(exitInputParse, "parsing inputs: %v", err)
	}

	client, err := dialApp(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := withTimeout(cmd)
	defer cancel()

	resp, err := client.Call(ctx, args[0], input)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return exitError(exitTimeout, "invocation timed out")
		}
		return exitError(exitRuntime, "invoking %s: %v", args[0], err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding response: %v", err)
		}
		_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
		if !resp.Ok() {
			return exitError(exitValidation, "%s", resp.Err.Message)
		}
		return nil
	}

	if !resp.Ok() {
		return exitError(exitValidation, "[%s] %s", resp.Err.Code, resp.Err.Message)
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
	return nil
}

func parseCallInputs(cmd *cobra.Command) (map[string]any, error) {
	input := map[string]any{}

	rawJSON, _ := cmd.Flags().GetString("input-json")
	if strings.TrimSpace(rawJSON) != "" {
		if err := json.Unmarshal([]byte(rawJSON), &input); err != nil {
			return nil, err
		}
	}

	pairs, _ := cmd.Flags().GetStringArray("input")
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if key == "" || !found {
			return nil, errors.New("inputs take the form KEY=VALUE")
		}
		input[key] = parsePrimitiveValue(value)
	}
	return input, nil
}

// parsePrimitiveValue interprets a flag value as a boolean, number, or JSON
// literal before falling back to a plain string.
func parsePrimitiveValue(value string) any {
	if value == "true" {
		return true
	}
	if value == "false" {
		return false
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}

	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "\"") {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return parsed
		}
	}
	return value
}
