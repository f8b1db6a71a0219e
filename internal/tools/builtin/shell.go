package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"
	"unicode/utf8"

	"conductor/internal/tools"
)

// CommandOutput is what a command run produced.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs shell commands.
type CommandRunner interface {
	Run(ctx context.Context, command, workDir string) (CommandOutput, error)
}

// LocalRunner runs commands with the host shell. The process is killed when
// ctx ends.
type LocalRunner struct{}

// Run implements CommandRunner.
func (LocalRunner) Run(ctx context.Context, command, workDir string) (CommandOutput, error) {
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = workDir
	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := CommandOutput{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, err
}

// ExecuteCommandArgs are the execute_command parameters.
type ExecuteCommandArgs struct {
	Command string `json:"command" jsonschema:"description=Shell command to run,required"`
	Timeout int    `json:"timeout" jsonschema:"description=Timeout in seconds,minimum=1,maximum=600"`
	WorkDir string `json:"work_dir" jsonschema:"description=Working directory relative to the workspace"`
}

// ExecuteCommandTool runs a shell command inside the workspace.
type ExecuteCommandTool struct {
	tools.BaseTool
	ws             *Workspace
	runner         CommandRunner
	defaultTimeout time.Duration
	maxOutput      int
}

// NewExecuteCommandTool creates execute_command.
func NewExecuteCommandTool(ws *Workspace, runner CommandRunner, timeout time.Duration, maxOutput int) *ExecuteCommandTool {
	if runner == nil {
		runner = LocalRunner{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxOutput <= 0 {
		maxOutput = 1024 * 1024
	}
	return &ExecuteCommandTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameExecuteCommand,
			Description: "Run a shell command in the workspace and return stdout, stderr and the exit code.",
			Kind:        tools.KindExecute,
			Params:      tools.BuildParams(ExecuteCommandArgs{}),
		}},
		ws:             ws,
		runner:         runner,
		defaultTimeout: timeout,
		maxOutput:      maxOutput,
	}
}

// Timeout returns the dispatch budget for one call, used by the executor
// instead of its default.
func (t *ExecuteCommandTool) Timeout(args map[string]any) time.Duration {
	if secs := tools.IntArg(args, "timeout", 0); secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return t.defaultTimeout
}

// Execute implements tools.Tool.
func (t *ExecuteCommandTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	command := tools.StringArg(args, "command")

	workDir := t.ws.Root()
	if wd := tools.StringArg(args, "work_dir"); wd != "" {
		resolved, err := t.ws.Resolve(wd)
		if err != nil {
			return tools.ToolResult{}, err
		}
		workDir = resolved
	}

	timeout := t.Timeout(args)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := t.runner.Run(runCtx, command, workDir)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return tools.ToolResult{}, tools.NewToolTimeoutError(t.Name(), timeout)
		}
		return tools.ToolResult{}, err
	}

	var b strings.Builder
	if out.Stdout != "" {
		b.WriteString(truncate(out.Stdout, t.maxOutput))
	}
	if out.Stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("STDERR:\n")
		b.WriteString(truncate(out.Stderr, t.maxOutput))
	}
	if b.Len() == 0 {
		b.WriteString("(no output)")
	}

	meta := map[string]any{"exit_code": out.ExitCode}
	if out.ExitCode != 0 {
		fmt.Fprintf(&b, "\nExit code: %d", out.ExitCode)
		return tools.ToolResult{Content: b.String(), IsError: true, Metadata: meta}, nil
	}
	return tools.NewResultWithMetadata(b.String(), meta), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "\n... (output truncated)"
}
