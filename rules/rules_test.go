package rules_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/goliatone/go-history/rules"
)

func resizeEnv() rules.Env {
	return rules.Env{
		"builtin":           "resize",
		"added":             0,
		"removed":           0,
		"changed":           1,
		"count":             3,
		"fields":            []string{"width", "height", "x"},
		"selection_changed": false,
		"layer":             map[string]any{"name": "Logo", "kind": "image", "width": 240.0},
		"previous":          map[string]any{"name": "Logo", "kind": "image", "width": 120.0},
	}
}

func TestRuleSetMatchesFirstFiringRule(t *testing.T) {
	for _, engine := range []string{rules.EngineExpr, rules.EngineCEL} {
		t.Run(engine, func(t *testing.T) {
			set, err := rules.Compile([]rules.Rule{
				{Name: "never", Action: "noop", When: `added > 0`, Engine: engine},
				{Name: "grow", Action: "scale-up", When: `builtin == "resize" && layer.width > previous.width`, Engine: engine},
				{Name: "fallback", Action: "other", When: `true`, Engine: engine},
			})
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			if set.Len() != 3 {
				t.Fatalf("expected 3 rules, got %d", set.Len())
			}

			match, ok := set.Match(resizeEnv())
			if !ok || match.Rule != "grow" || match.Action != "scale-up" {
				t.Fatalf("unexpected match %+v ok=%v", match, ok)
			}
		})
	}
}

func TestRuleSetDescribe(t *testing.T) {
	tests := []struct {
		engine   string
		describe string
	}{
		{engine: rules.EngineExpr, describe: `"scaled '" + layer.name + "'"`},
		{engine: rules.EngineCEL, describe: `"scaled '" + string(layer.name) + "'"`},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			set, err := rules.Compile([]rules.Rule{{
				Action:   "scale",
				When:     `"width" in fields`,
				Describe: tt.describe,
				Engine:   tt.engine,
			}})
			if err != nil {
				t.Fatalf("compile: %v", err)
			}
			match, ok := set.Match(resizeEnv())
			if !ok || match.Description != "scaled 'Logo'" {
				t.Fatalf("unexpected match %+v ok=%v", match, ok)
			}
			if match.Rule != "rule-1" {
				t.Fatalf("expected generated rule name, got %q", match.Rule)
			}
		})
	}
}

func TestRuleSetNoMatch(t *testing.T) {
	set, err := rules.Compile([]rules.Rule{{Action: "add", When: `added > 0`}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := set.Match(resizeEnv()); ok {
		t.Fatalf("expected no match")
	}

	var empty *rules.RuleSet
	if _, ok := empty.Match(resizeEnv()); ok || empty.Len() != 0 {
		t.Fatalf("expected nil rule set to never match")
	}
}

func TestRuleSetSkipsNonBoolAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	set, err := rules.Compile([]rules.Rule{
		{Name: "numeric", Action: "x", When: `count`},
		{Name: "ok", Action: "y", When: `count == 3`},
	}, rules.WithLogger(logger))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	match, ok := set.Match(resizeEnv())
	if !ok || match.Rule != "ok" {
		t.Fatalf("expected fallthrough to second rule, got %+v", match)
	}
	if !strings.Contains(buf.String(), "rule=numeric") {
		t.Fatalf("expected failure logged, got %q", buf.String())
	}
}

func TestCompileReportsAllFailures(t *testing.T) {
	_, err := rules.Compile([]rules.Rule{
		{Name: "missing-action", When: `true`},
		{Name: "bad-syntax", Action: "x", When: `added >`},
		{Name: "unknown-var", Action: "x", When: `nope == 1`},
		{Name: "bad-engine", Action: "x", When: `true`, Engine: "lua"},
	})
	if err == nil {
		t.Fatalf("expected compile error")
	}
	for _, name := range []string{"missing-action", "bad-syntax", "unknown-var", "bad-engine"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected error to mention %s, got %v", name, err)
		}
	}
	if !errors.Is(err, rules.ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine in chain, got %v", err)
	}
	var evalErr *rules.EvaluationError
	if !errors.As(err, &evalErr) || evalErr.Engine != rules.EngineExpr {
		t.Fatalf("expected EvaluationError in chain, got %v", err)
	}
}

func TestFunctionRegistryAvailableToEngines(t *testing.T) {
	registry := rules.NewFunctionRegistry()
	if err := registry.Register("Ratio", func(args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("ratio takes 2 args")
		}
		return args[0].(float64) / args[1].(float64), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	set, err := rules.Compile([]rules.Rule{
		{Name: "expr-direct", Action: "double", When: `ratio(layer.width, previous.width) >= 2`},
		{Name: "cel-call", Action: "double", When: `call("ratio", [layer.width, previous.width]) >= 2.0`, Engine: rules.EngineCEL},
	}, rules.WithEvaluatorOptions(rules.WithFunctionRegistry(registry)))
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	match, ok := set.Match(resizeEnv())
	if !ok || match.Rule != "expr-direct" {
		t.Fatalf("unexpected match %+v ok=%v", match, ok)
	}

	celOnly, err := rules.Compile([]rules.Rule{
		{Action: "double", When: `call("ratio", [layer.width, previous.width]) >= 2.0`, Engine: rules.EngineCEL},
	}, rules.WithEvaluatorOptions(rules.WithFunctionRegistry(registry)))
	if err != nil {
		t.Fatalf("compile cel: %v", err)
	}
	if match, ok := celOnly.Match(resizeEnv()); !ok || match.Action != "double" {
		t.Fatalf("expected cel call() to fire, got %+v ok=%v", match, ok)
	}
}

func TestFunctionRegistryRejectsInvalidNames(t *testing.T) {
	registry := rules.NewFunctionRegistry()
	noop := func(...any) (any, error) { return nil, nil }
	for _, name := range []string{"", "call", "fields", "Layer"} {
		if err := registry.Register(name, noop); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
	if err := registry.Register("abs", nil); err == nil {
		t.Fatalf("expected nil function to be rejected")
	}
	if err := registry.Register("abs", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register("ABS", noop); err == nil {
		t.Fatalf("expected duplicate to be rejected")
	}
	if _, err := registry.Call("missing"); err == nil {
		t.Fatalf("expected missing function error")
	}
}

type countingCache struct {
	*rules.MemoryCache
	hits int
}

func (c *countingCache) Get(key string) (any, bool) {
	value, ok := c.MemoryCache.Get(key)
	if ok {
		c.hits++
	}
	return value, ok
}

func TestProgramCacheReused(t *testing.T) {
	cache := &countingCache{MemoryCache: rules.NewMemoryCache()}
	evaluator := rules.NewExprEvaluator(rules.WithProgramCache(cache))

	for i := 0; i < 3; i++ {
		if _, err := evaluator.Compile(`changed == 1`); err != nil {
			t.Fatalf("compile: %v", err)
		}
	}
	if cache.hits != 2 {
		t.Fatalf("expected 2 cache hits, got %d", cache.hits)
	}
}

func TestNewEvaluatorEngines(t *testing.T) {
	if ev, err := rules.NewEvaluator(""); err != nil || ev.Engine() != rules.EngineExpr {
		t.Fatalf("expected expr default, got %v %v", ev, err)
	}
	if ev, err := rules.NewEvaluator("CEL"); err != nil || ev.Engine() != rules.EngineCEL {
		t.Fatalf("expected cel, got %v %v", ev, err)
	}
	_, err := rules.NewEvaluator(rules.EngineJS)
	if rules.JSAvailable() && err != nil {
		t.Fatalf("expected js evaluator, got %v", err)
	}
	if !rules.JSAvailable() && !errors.Is(err, rules.ErrEngineUnavailable) {
		t.Fatalf("expected ErrEngineUnavailable, got %v", err)
	}
}

func TestEmptyExpressionRejected(t *testing.T) {
	_, err := rules.NewExprEvaluator().Compile("")
	if !errors.Is(err, rules.ErrEmptyExpression) {
		t.Fatalf("expected ErrEmptyExpression, got %v", err)
	}
}

func TestEvaluationErrorFormatting(t *testing.T) {
	err := &rules.EvaluationError{Engine: "expr", Rule: "r", Expr: "a", Err: errors.New("boom")}
	if got := err.Error(); got != `rules: expr rule r expr="a": boom` {
		t.Fatalf("unexpected message %q", got)
	}
	var nilErr *rules.EvaluationError
	if nilErr.Error() != "<nil>" || nilErr.Unwrap() != nil {
		t.Fatalf("expected nil-safe methods")
	}
}
