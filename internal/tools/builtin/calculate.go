package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dop251/goja"

	"conductor/internal/tools"
)

// CalculateArgs are the calculate parameters.
type CalculateArgs struct {
	Expression string `json:"expression" jsonschema:"description=Arithmetic or JavaScript expression such as (3+4)*2 or Math.sqrt(2),required"`
}

// CalculateTool evaluates an expression in an isolated JavaScript VM.
type CalculateTool struct {
	tools.BaseTool
	timeout time.Duration
}

// NewCalculateTool creates calculate.
func NewCalculateTool() *CalculateTool {
	return &CalculateTool{
		BaseTool: tools.BaseTool{Desc: tools.Descriptor{
			Name:        tools.NameCalculate,
			Description: "Evaluate an arithmetic expression exactly instead of computing it mentally. Math.* functions are available.",
			Kind:        tools.KindRead,
			Params:      tools.BuildParams(CalculateArgs{}),
		}},
		timeout: 2 * time.Second,
	}
}

// Execute implements tools.Tool.
func (t *CalculateTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	expr := tools.StringArg(args, "expression")

	vm := goja.New()
	// No host access: only the ECMAScript builtins are present.
	stop := context.AfterFunc(ctx, func() { vm.Interrupt("cancelled") })
	defer stop()
	timer := time.AfterFunc(t.timeout, func() { vm.Interrupt("timeout") })
	defer timer.Stop()

	v, err := vm.RunString(expr)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if ctx.Err() != nil {
				return tools.ToolResult{}, ctx.Err()
			}
			return tools.ToolResult{}, tools.NewToolTimeoutError(t.Name(), t.timeout)
		}
		return tools.NewErrorResult(fmt.Sprintf("cannot evaluate %q: %v", expr, err)), nil
	}

	return tools.NewSuccessResult(formatValue(v.Export())), nil
}

func formatValue(v any) string {
	switch n := v.(type) {
	case float64:
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return fmt.Sprint(n)
		}
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	case nil:
		return "undefined"
	default:
		return fmt.Sprint(n)
	}
}
