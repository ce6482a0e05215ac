// Package rules evaluates small expressions against a change description so
// each editor can teach the layer classifier its own action labels without
// touching the built-in diff.
//
// Three engines are available: expr-lang/expr (the default), cel-go, and goja
// when built with the js_eval tag. Every engine sees the same variables:
//
//	builtin            string   label chosen by the built-in diff
//	added, removed     int      number of layers that appeared / disappeared
//	changed            int      number of layers whose fields differ
//	count              int      number of layers after the change
//	fields             []string changed fields of the single changed layer
//	selection_changed  bool
//	layer              map      affected layer after the change
//	previous           map      affected layer before the change (may be empty)
package rules

import (
	"errors"
	"strings"
	"sync"
)

const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var (
	ErrUnknownEngine     = errors.New("rules: unknown engine")
	ErrEngineUnavailable = errors.New("rules: engine not compiled in")
	ErrEmptyExpression   = errors.New("rules: expression must not be empty")
)

// Env is the variable binding a rule is evaluated against.
type Env map[string]any

// Variables lists the names bound in every Env, in declaration order.
var Variables = []string{
	"builtin", "added", "removed", "changed", "count",
	"fields", "selection_changed", "layer", "previous",
}

// Evaluator compiles expressions for one engine.
type Evaluator interface {
	Engine() string
	Compile(expression string) (Program, error)
}

// Program is a compiled, reusable expression.
type Program interface {
	Run(env Env) (any, error)
}

// ProgramCache stores compiled programs keyed by engine and expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MemoryCache is a ProgramCache safe for concurrent use.
type MemoryCache struct {
	mu       sync.RWMutex
	programs map[string]any
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{programs: map[string]any{}}
}

func (c *MemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	value, ok := c.programs[key]
	return value, ok
}

func (c *MemoryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.programs == nil {
		c.programs = map[string]any{}
	}
	c.programs[key] = value
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*evaluatorConfig)

type evaluatorConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// WithProgramCache shares compiled programs through cache.
func WithProgramCache(cache ProgramCache) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registry functions to expressions, both by name
// and through call(name, args...).
func WithFunctionRegistry(registry *FunctionRegistry) EvaluatorOption {
	return func(cfg *evaluatorConfig) {
		if registry != nil {
			cfg.registry = registry.Clone()
		}
	}
}

func applyEvaluatorOptions(opts []EvaluatorOption) evaluatorConfig {
	cfg := evaluatorConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (cfg evaluatorConfig) cached(engine, expression string) (any, bool) {
	if cfg.cache == nil {
		return nil, false
	}
	return cfg.cache.Get(engine + ":" + expression)
}

func (cfg evaluatorConfig) store(engine, expression string, program any) {
	if cfg.cache != nil {
		cfg.cache.Set(engine+":"+expression, program)
	}
}

// NewEvaluator returns the evaluator for engine. An empty engine selects expr.
func NewEvaluator(engine string, opts ...EvaluatorOption) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS:
		evaluator := NewJSEvaluator(opts...)
		if evaluator == nil {
			return nil, ErrEngineUnavailable
		}
		return evaluator, nil
	default:
		return nil, ErrUnknownEngine
	}
}
