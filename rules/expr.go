package rules

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	cfg evaluatorConfig
}

// NewExprEvaluator constructs an Evaluator backed by expr-lang/expr. Programs
// are type-checked against the rule variables at compile time.
func NewExprEvaluator(opts ...EvaluatorOption) Evaluator {
	return &exprEvaluator{cfg: applyEvaluatorOptions(opts)}
}

func (e *exprEvaluator) Engine() string { return EngineExpr }

func (e *exprEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapError(EngineExpr, "", expression, ErrEmptyExpression)
	}
	if cached, ok := e.cfg.cached(EngineExpr, expression); ok {
		if program, ok := cached.(*exprvm.Program); ok {
			return &exprProgram{evaluator: e, program: program, expression: expression}, nil
		}
	}

	options := []exprlang.Option{exprlang.Env(e.environment(sampleEnv()))}
	for _, name := range e.cfg.registry.Names() {
		options = append(options, exprlang.Function(name, e.bind(name)))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapError(EngineExpr, "", expression, err)
	}
	e.cfg.store(EngineExpr, expression, program)
	return &exprProgram{evaluator: e, program: program, expression: expression}, nil
}

func (e *exprEvaluator) bind(name string) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		return e.cfg.registry.Call(name, args...)
	}
}

func (e *exprEvaluator) environment(env Env) map[string]any {
	out := make(map[string]any, len(env)+1)
	for key, value := range env {
		out[key] = value
	}
	out["call"] = func(name string, args ...any) (any, error) {
		return e.cfg.registry.Call(name, args...)
	}
	return out
}

type exprProgram struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (p *exprProgram) Run(env Env) (any, error) {
	result, err := exprlang.Run(p.program, p.evaluator.environment(normalizeEnv(env)))
	if err != nil {
		return nil, wrapError(EngineExpr, "", p.expression, err)
	}
	return result, nil
}

// sampleEnv carries one zero value per variable so compilers can infer types.
func sampleEnv() Env {
	return Env{
		"builtin":           "",
		"added":             0,
		"removed":           0,
		"changed":           0,
		"count":             0,
		"fields":            []string{},
		"selection_changed": false,
		"layer":             map[string]any{},
		"previous":          map[string]any{},
	}
}

// normalizeEnv fills every declared variable so programs never observe a
// missing binding.
func normalizeEnv(env Env) Env {
	out := sampleEnv()
	for key, value := range env {
		if value != nil {
			out[key] = value
		}
	}
	return out
}
