package rules

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Rule maps a boolean expression over the change Env to an action label.
type Rule struct {
	Name     string `toml:"name" yaml:"name" json:"name"`
	Action   string `toml:"action" yaml:"action" json:"action"`
	When     string `toml:"when" yaml:"when" json:"when"`
	Describe string `toml:"describe" yaml:"describe" json:"describe,omitempty"`
	Engine   string `toml:"engine" yaml:"engine" json:"engine,omitempty"`
}

// Match is the outcome of the first rule that fired.
type Match struct {
	Rule        string
	Action      string
	Description string
}

type compiledRule struct {
	rule     Rule
	engine   string
	when     Program
	describe Program
}

// RuleSet is an ordered list of compiled rules.
type RuleSet struct {
	rules  []compiledRule
	logger *slog.Logger
}

// RuleSetOption configures Compile.
type RuleSetOption func(*ruleSetConfig)

type ruleSetConfig struct {
	logger     *slog.Logger
	evaluators map[string]Evaluator
	evalOpts   []EvaluatorOption
}

// WithLogger receives rule evaluation failures. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) RuleSetOption {
	return func(cfg *ruleSetConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithEvaluator overrides the evaluator used for its engine.
func WithEvaluator(evaluator Evaluator) RuleSetOption {
	return func(cfg *ruleSetConfig) {
		if evaluator != nil {
			cfg.evaluators[evaluator.Engine()] = evaluator
		}
	}
}

// WithEvaluatorOptions applies opts to evaluators created on demand.
func WithEvaluatorOptions(opts ...EvaluatorOption) RuleSetOption {
	return func(cfg *ruleSetConfig) {
		cfg.evalOpts = append(cfg.evalOpts, opts...)
	}
}

// Compile validates and compiles rules in order. All compile failures are
// reported together.
func Compile(rules []Rule, opts ...RuleSetOption) (*RuleSet, error) {
	cfg := ruleSetConfig{logger: slog.Default(), evaluators: map[string]Evaluator{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	set := &RuleSet{logger: cfg.logger}
	var errs []error
	for i, rule := range rules {
		rule.Name = strings.TrimSpace(rule.Name)
		if rule.Name == "" {
			rule.Name = fmt.Sprintf("rule-%d", i+1)
		}
		rule.Action = strings.TrimSpace(rule.Action)
		if rule.Action == "" {
			errs = append(errs, fmt.Errorf("rules: rule %s: action is required", rule.Name))
			continue
		}
		engine := strings.ToLower(strings.TrimSpace(rule.Engine))
		if engine == "" {
			engine = EngineExpr
		}

		evaluator, ok := cfg.evaluators[engine]
		if !ok {
			created, err := NewEvaluator(engine, cfg.evalOpts...)
			if err != nil {
				errs = append(errs, fmt.Errorf("rules: rule %s: engine %q: %w", rule.Name, engine, err))
				continue
			}
			cfg.evaluators[engine] = created
			evaluator = created
		}

		compiled := compiledRule{rule: rule, engine: engine}
		when, err := evaluator.Compile(strings.TrimSpace(rule.When))
		if err != nil {
			errs = append(errs, wrapError(engine, rule.Name, rule.When, err))
			continue
		}
		compiled.when = when
		if describe := strings.TrimSpace(rule.Describe); describe != "" {
			program, err := evaluator.Compile(describe)
			if err != nil {
				errs = append(errs, wrapError(engine, rule.Name, describe, err))
				continue
			}
			compiled.describe = program
		}
		set.rules = append(set.rules, compiled)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

// Len returns the number of compiled rules.
func (s *RuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Match runs the rules in order and returns the first whose When evaluates
// to true. Rules that fail or yield a non-bool are logged and skipped.
func (s *RuleSet) Match(env Env) (Match, bool) {
	if s == nil {
		return Match{}, false
	}
	for _, rule := range s.rules {
		result, err := rule.when.Run(env)
		if err != nil {
			s.logFailure(rule, rule.rule.When, err)
			continue
		}
		fired, ok := result.(bool)
		if !ok {
			s.logFailure(rule, rule.rule.When, fmt.Errorf("expected bool result, got %T", result))
			continue
		}
		if !fired {
			continue
		}

		match := Match{Rule: rule.rule.Name, Action: rule.rule.Action}
		if rule.describe != nil {
			described, err := rule.describe.Run(env)
			switch text, ok := described.(string); {
			case err != nil:
				s.logFailure(rule, rule.rule.Describe, err)
			case !ok:
				s.logFailure(rule, rule.rule.Describe, fmt.Errorf("expected string result, got %T", described))
			default:
				match.Description = text
			}
		}
		return match, true
	}
	return Match{}, false
}

func (s *RuleSet) logFailure(rule compiledRule, expression string, err error) {
	s.logger.LogAttrs(context.Background(), slog.LevelWarn, "rule evaluation failed",
		slog.String("rule", rule.rule.Name),
		slog.String("engine", rule.engine),
		slog.Any("error", wrapError(rule.engine, rule.rule.Name, expression, err)),
	)
}
