package activation

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"activatable/internal/core/id"
)

// Condition is a compiled CEL predicate over an Event.
//
// Available variables: kind, model, is_active, ids (list of strings), count, actor.
// Example: `model == "Warehouse" && !is_active && count > 0`.
type Condition struct {
	expr string
	prg  cel.Program
}

var celEnvOptions = []cel.EnvOption{
	cel.Variable("kind", cel.StringType),
	cel.Variable("model", cel.StringType),
	cel.Variable("is_active", cel.BoolType),
	cel.Variable("ids", cel.ListType(cel.StringType)),
	cel.Variable("count", cel.IntType),
	cel.Variable("actor", cel.StringType),
}

// CompileCondition parses and type-checks expr. The expression must yield a bool.
func CompileCondition(expr string) (*Condition, error) {
	env, err := cel.NewEnv(celEnvOptions...)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile condition %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition %q must evaluate to bool, got %s", expr, ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build condition program: %w", err)
	}

	return &Condition{expr: expr, prg: prg}, nil
}

// String returns the source expression.
func (c *Condition) String() string {
	return c.expr
}

// Match evaluates the condition against ev.
func (c *Condition) Match(ev Event) (bool, error) {
	out, _, err := c.prg.Eval(map[string]any{
		"kind":      string(ev.Kind),
		"model":     ev.Model,
		"is_active": ev.IsActive,
		"ids":       id.Strings(ev.InstanceIDs),
		"count":     int64(len(ev.InstanceIDs)),
		"actor":     ev.Actor,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate condition %q: %w", c.expr, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q returned %T", c.expr, out.Value())
	}
	return matched, nil
}

// WithCondition wraps r so it only receives events matching expr.
func WithCondition(expr string, r Receiver) (Receiver, error) {
	cond, err := CompileCondition(expr)
	if err != nil {
		return nil, err
	}

	return ReceiverFunc(func(ctx context.Context, ev Event) error {
		ok, err := cond.Match(ev)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		return r.Receive(ctx, ev)
	}), nil
}
