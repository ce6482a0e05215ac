//go:build js_eval

package rules

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cfg evaluatorConfig
}

// NewJSEvaluator constructs an Evaluator backed by goja.
func NewJSEvaluator(opts ...EvaluatorOption) Evaluator {
	return &jsEvaluator{cfg: applyEvaluatorOptions(opts)}
}

func (e *jsEvaluator) Engine() string { return EngineJS }

func (e *jsEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapError(EngineJS, "", expression, ErrEmptyExpression)
	}
	if cached, ok := e.cfg.cached(EngineJS, expression); ok {
		if program, ok := cached.(*goja.Program); ok {
			return &jsProgram{evaluator: e, program: program, expression: expression}, nil
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), true)
	if err != nil {
		return nil, wrapError(EngineJS, "", expression, err)
	}
	e.cfg.store(EngineJS, expression, program)
	return &jsProgram{evaluator: e, program: program, expression: expression}, nil
}

type jsProgram struct {
	evaluator  *jsEvaluator
	program    *goja.Program
	expression string
}

// Run executes the program in a fresh runtime; goja runtimes are not safe for
// concurrent use.
func (p *jsProgram) Run(env Env) (any, error) {
	vm := goja.New()
	for key, value := range normalizeEnv(env) {
		if err := vm.Set(key, value); err != nil {
			return nil, wrapError(EngineJS, "", p.expression, err)
		}
	}
	if registry := p.evaluator.cfg.registry; registry != nil {
		if err := vm.Set("call", func(name string, args ...any) (any, error) {
			return registry.Call(name, args...)
		}); err != nil {
			return nil, wrapError(EngineJS, "", p.expression, err)
		}
		for _, name := range registry.Names() {
			fn := name
			if err := vm.Set(fn, func(args ...any) (any, error) {
				return registry.Call(fn, args...)
			}); err != nil {
				return nil, wrapError(EngineJS, "", p.expression, err)
			}
		}
	}
	value, err := vm.RunProgram(p.program)
	if err != nil {
		return nil, wrapError(EngineJS, "", p.expression, err)
	}
	return value.Export(), nil
}

// JSAvailable reports whether the goja engine is compiled in.
func JSAvailable() bool { return true }
