package rules

import (
	"errors"
	"fmt"
)

// EvaluationError captures which rule and expression failed.
type EvaluationError struct {
	Engine string
	Rule   string
	Expr   string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	rule := e.Rule
	if rule == "" {
		rule = "<unnamed>"
	}
	return fmt.Sprintf("rules: %s rule %s %s: %v", e.Engine, rule, describeExpression(e.Expr), e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

// wrapError attaches engine and expression metadata, filling gaps in an
// existing EvaluationError rather than nesting a second one.
func wrapError(engine, rule, expr string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Rule == "" {
			evalErr.Rule = rule
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		return evalErr
	}
	return &EvaluationError{Engine: engine, Rule: rule, Expr: expr, Err: err}
}
