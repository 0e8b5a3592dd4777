package cli_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/petal-labs/petalapp/cli"
	"github.com/petal-labs/petalapp/schema"
	"github.com/petal-labs/petalapp/tool"
	"github.com/petal-labs/petalapp/transport"
)

// startApp serves a calculator tool over a WebSocket session on a free port
// and returns its address.
func startApp(t *testing.T) string {
	t.Helper()

	registry := tool.NewRegistry()
	s := schema.NewBuilder("add").
		Number("a", "First operand", true).
		Number("b", "Second operand", true).
		MustBuild()
	err := registry.Register(tool.NewFunc("calculator", "Performs arithmetic", s,
		func(_ context.Context, input map[string]any) (string, error) {
			return fmt.Sprintf("%g", input["a"].(float64)+input["b"].(float64)), nil
		}))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	dispatcher := tool.NewDispatcher(registry, nil)

	ws := transport.NewWS("127.0.0.1:0", nil)
	conn, err := ws.Open(context.Background(), transport.Info{
		Name:    "calc",
		Version: "1.0.0",
		Tools:   registry.List(),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close(context.Background()) })

	go func() {
		for req := range conn.Recv() {
			_ = conn.Send(context.Background(), dispatcher.Dispatch(context.Background(), req))
		}
	}()

	return conn.(interface{ Addr() string }).Addr()
}

func TestToolsList(t *testing.T) {
	addr := startApp(t)

	var out bytes.Buffer
	cmd := cli.NewToolsCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"list", "--addr", addr})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "App: calc 1.0.0") {
		t.Errorf("output missing app header:\n%s", got)
	}
	if !strings.Contains(got, "calculator") || !strings.Contains(got, "add") {
		t.Errorf("output missing tool row:\n%s", got)
	}
}

func TestToolsSchema(t *testing.T) {
	addr := startApp(t)

	var out bytes.Buffer
	cmd := cli.NewToolsCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"schema", "calculator", "--addr", addr})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, `"type": "object"`) || !strings.Contains(got, `"action"`) {
		t.Errorf("schema output:\n%s", got)
	}
}

func TestToolsSchema_UnknownTool(t *testing.T) {
	addr := startApp(t)

	cmd := cli.NewToolsCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"schema", "missing", "--addr", addr})

	err := cmd.Execute()
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Errorf("err = %v, want validation exit", err)
	}
}

func TestCall(t *testing.T) {
	addr := startApp(t)

	var out bytes.Buffer
	cmd := cli.NewCallCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"calculator", "--addr", addr,
		"--input", "action=add", "--input", "a=2", "--input", "b=3"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "5" {
		t.Errorf("output = %q, want 5", got)
	}
}

func TestCall_InputJSON(t *testing.T) {
	addr := startApp(t)

	var out bytes.Buffer
	cmd := cli.NewCallCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"calculator", "--addr", addr,
		"--input-json", `{"action":"add","a":10,"b":32}`})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "42" {
		t.Errorf("output = %q, want 42", got)
	}
}

func TestCall_ValidationFailure(t *testing.T) {
	addr := startApp(t)

	cmd := cli.NewCallCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"calculator", "--addr", addr, "--input", "action=add"})

	err := cmd.Execute()
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("err = %v, want ExitError", err)
	}
	if !strings.Contains(exitErr.Message, "MISSING_FIELD") {
		t.Errorf("message = %q, want MISSING_FIELD code", exitErr.Message)
	}
}
