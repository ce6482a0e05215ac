package rules

import (
	"fmt"
	"reflect"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

type celEvaluator struct {
	cfg evaluatorConfig
}

// NewCELEvaluator constructs an Evaluator backed by cel-go. Functions from the
// registry are reachable through call(name, [args]).
func NewCELEvaluator(opts ...EvaluatorOption) Evaluator {
	return &celEvaluator{cfg: applyEvaluatorOptions(opts)}
}

func (e *celEvaluator) Engine() string { return EngineCEL }

func (e *celEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapError(EngineCEL, "", expression, ErrEmptyExpression)
	}
	if cached, ok := e.cfg.cached(EngineCEL, expression); ok {
		if program, ok := cached.(celgo.Program); ok {
			return &celProgram{program: program, expression: expression}, nil
		}
	}

	env, err := e.buildEnv()
	if err != nil {
		return nil, wrapError(EngineCEL, "", expression, err)
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, wrapError(EngineCEL, "", expression, issues.Err())
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, wrapError(EngineCEL, "", expression, err)
	}
	e.cfg.store(EngineCEL, expression, program)
	return &celProgram{program: program, expression: expression}, nil
}

func (e *celEvaluator) buildEnv() (*celgo.Env, error) {
	options := []celgo.EnvOption{
		celgo.CrossTypeNumericComparisons(true),
		celgo.Variable("builtin", celgo.StringType),
		celgo.Variable("added", celgo.IntType),
		celgo.Variable("removed", celgo.IntType),
		celgo.Variable("changed", celgo.IntType),
		celgo.Variable("count", celgo.IntType),
		celgo.Variable("fields", celgo.ListType(celgo.StringType)),
		celgo.Variable("selection_changed", celgo.BoolType),
		celgo.Variable("layer", celgo.MapType(celgo.StringType, celgo.DynType)),
		celgo.Variable("previous", celgo.MapType(celgo.StringType, celgo.DynType)),
	}
	if e.cfg.registry != nil {
		options = append(options, celgo.Function("call",
			celgo.Overload("call_string_list",
				[]*celgo.Type{celgo.StringType, celgo.ListType(celgo.DynType)},
				celgo.DynType,
				celgo.BinaryBinding(e.callBinding),
			),
		))
	}
	return celgo.NewEnv(options...)
}

func (e *celEvaluator) callBinding(name, args ref.Val) ref.Val {
	fn, ok := name.Value().(string)
	if !ok {
		return types.NewErr("rules: call name must be a string")
	}
	native, err := args.ConvertToNative(reflect.TypeOf([]any{}))
	if err != nil {
		return types.NewErr("rules: call arguments: %v", err)
	}
	result, err := e.cfg.registry.Call(fn, native.([]any)...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celProgram struct {
	program    celgo.Program
	expression string
}

func (p *celProgram) Run(env Env) (any, error) {
	out, _, err := p.program.Eval(map[string]any(normalizeEnv(env)))
	if err != nil {
		return nil, wrapError(EngineCEL, "", p.expression, err)
	}
	if out == nil {
		return nil, wrapError(EngineCEL, "", p.expression, fmt.Errorf("no result"))
	}
	return out.Value(), nil
}
