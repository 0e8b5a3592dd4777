package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// NewToolsCmd creates the "tools" command group.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tools a running app exposes",
	}
	cmd.PersistentFlags().String("addr", defaultAddr, "App address (ws://host:port)")
	cmd.PersistentFlags().Duration("timeout", 30*time.Second, "Request timeout")

	cmd.AddCommand(newToolsListCmd())
	cmd.AddCommand(newToolsSchemaCmd())

	return cmd
}

func newToolsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the app's registered tools",
		RunE:  runToolsList,
	}
}

func runToolsList(cmd *cobra.Command, args []string) error {
	client, err := dialApp(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := withTimeout(cmd)
	defer cancel()

	info, err := client.Describe(ctx)
	if err != nil {
		return exitError(exitRuntime, "describing app: %v", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "App: %s", info.Name)
	if info.Version != "" {
		fmt.Fprintf(cmd.OutOrStdout(), " %s", info.Version)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	writer := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tACTIONS\tDESCRIPTION")
	for _, desc := range info.Tools {
		actions := strings.Join(desc.Schema.Actions(), ",")
		if actions == "" {
			actions = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", desc.Name, actions, desc.Description)
	}
	return writer.Flush()
}

func newToolsSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <name>",
		Short: "Print a tool's input schema as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runToolsSchema,
	}
}

func runToolsSchema(cmd *cobra.Command, args []string) error {
	client, err := dialApp(cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := withTimeout(cmd)
	defer cancel()

	info, err := client.Describe(ctx)
	if err != nil {
		return exitError(exitRuntime, "describing app: %v", err)
	}

	name := args[0]
	for _, desc := range info.Tools {
		if desc.Name != name {
			continue
		}
		data, err := json.MarshalIndent(desc.Schema.Document(), "", "  ")
		if err != nil {
			return exitError(exitRuntime, "encoding schema: %v", err)
		}
		_, _ = cmd.OutOrStdout().Write(append(data, '\n'))
		return nil
	}
	return exitError(exitValidation, "app %q exposes no tool %q", info.Name, name)
}
