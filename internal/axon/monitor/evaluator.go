// Package monitor evaluates stat widget monitors against the value being published.
package monitor

import (
	"fmt"

	"github.com/expr-lang/expr"
)

// Evaluate reports whether condition holds for value. The condition sees a
// single variable, "value".
func Evaluate(condition string, value any) (bool, error) {
	env := map[string]any{"value": value}

	program, err := expr.Compile(condition, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("invalid condition %q: %w", condition, err)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("execution failed: %w", err)
	}

	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition must return boolean, got %T", output)
	}
	return result, nil
}
