package layer

import (
	"fmt"
	"log/slog"
	"reflect"

	history "github.com/goliatone/go-history"
	"github.com/goliatone/go-history/rules"
)

// Field names reported in a change, in the order they are compared.
const (
	FieldWidth    = "width"
	FieldHeight   = "height"
	FieldX        = "x"
	FieldY        = "y"
	FieldRotation = "rotation"
	FieldName     = "name"
	FieldVisible  = "visible"
	FieldLocked   = "locked"
	FieldZIndex   = "z_index"
	FieldKind     = "kind"
	FieldText     = "text"
	FieldImage    = "image"
	FieldShape    = "shape"
)

// Change is the id-based diff between two documents.
type Change struct {
	Added            []Layer
	Removed          []Layer
	Changed          []LayerChange
	SelectionChanged bool
	Count            int
}

// LayerChange pairs both versions of a layer whose fields differ.
type LayerChange struct {
	Before Layer
	After  Layer
	Fields []string
}

// Diff compares prev and next by layer id. Array order is ignored.
func Diff(prev, next Document) Change {
	before := make(map[string]Layer, len(prev.Layers))
	for _, l := range prev.Layers {
		before[l.ID] = l
	}
	after := make(map[string]Layer, len(next.Layers))
	for _, l := range next.Layers {
		after[l.ID] = l
	}

	change := Change{
		SelectionChanged: prev.SelectedID != next.SelectedID,
		Count:            len(next.Layers),
	}
	for _, l := range next.Layers {
		if _, ok := before[l.ID]; !ok {
			change.Added = append(change.Added, l)
		}
	}
	for _, l := range prev.Layers {
		current, ok := after[l.ID]
		if !ok {
			change.Removed = append(change.Removed, l)
			continue
		}
		if fields := changedFields(l, current); len(fields) > 0 {
			change.Changed = append(change.Changed, LayerChange{Before: l, After: current, Fields: fields})
		}
	}
	return change
}

func changedFields(a, b Layer) []string {
	var fields []string
	add := func(changed bool, name string) {
		if changed {
			fields = append(fields, name)
		}
	}
	add(a.Width != b.Width, FieldWidth)
	add(a.Height != b.Height, FieldHeight)
	add(a.X != b.X, FieldX)
	add(a.Y != b.Y, FieldY)
	add(a.Rotation != b.Rotation, FieldRotation)
	add(a.Name != b.Name, FieldName)
	add(a.Visible != b.Visible, FieldVisible)
	add(a.Locked != b.Locked, FieldLocked)
	add(a.ZIndex != b.ZIndex, FieldZIndex)
	add(a.Kind != b.Kind, FieldKind)
	add(!reflect.DeepEqual(a.Text, b.Text), FieldText)
	add(!reflect.DeepEqual(a.Image, b.Image), FieldImage)
	add(!reflect.DeepEqual(a.Shape, b.Shape), FieldShape)
	return fields
}

func (c LayerChange) has(names ...string) bool {
	for _, field := range c.Fields {
		for _, name := range names {
			if field == name {
				return true
			}
		}
	}
	return false
}

// Classify labels the change from prev to next with the built-in rules:
// additions, then deletions, then a single changed layer (size before
// position before rotation before anything else), then several changed layers,
// then selection. Identical documents yield history.ActionNone.
func Classify(prev, next Document) history.Action {
	return classifyChange(Diff(prev, next), next)
}

func classifyChange(change Change, next Document) history.Action {
	switch {
	case len(change.Added) > 0:
		return describe(history.ActionAdd, "added", change.Added[0].Name)
	case len(change.Removed) > 0:
		return describe(history.ActionDelete, "deleted", change.Removed[0].Name)
	case len(change.Changed) == 1:
		c := change.Changed[0]
		switch {
		case c.has(FieldWidth, FieldHeight):
			return describe(history.ActionResize, "resized", c.After.Name)
		case c.has(FieldX, FieldY):
			return describe(history.ActionMove, "moved", c.After.Name)
		case c.has(FieldRotation):
			return describe(history.ActionRotate, "rotated", c.After.Name)
		default:
			return describe(history.ActionEdit, "edited", c.After.Name)
		}
	case len(change.Changed) > 1:
		return history.Action{
			Type:        history.ActionUpdate,
			Description: fmt.Sprintf("updated %d layers", len(change.Changed)),
		}
	case change.SelectionChanged:
		if selected, ok := next.Selected(); ok {
			return describe(history.ActionSelect, "selected", selected.Name)
		}
		return history.Action{Type: history.ActionSelect, Description: "cleared selection"}
	default:
		return history.Action{Type: history.ActionNone}
	}
}

func describe(action history.ActionType, verb, name string) history.Action {
	return history.Action{Type: action, Description: fmt.Sprintf("%s '%s'", verb, name)}
}

// Classifier labels document changes for a History. Configured rules run
// before the built-in classification and the first rule that fires wins.
type Classifier struct {
	rules  *rules.RuleSet
	logger *slog.Logger
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithRules installs compiled expression rules.
func WithRules(set *rules.RuleSet) ClassifierOption {
	return func(c *Classifier) {
		c.rules = set
	}
}

// WithClassifierLogger receives recovered rule panics.
func WithClassifierLogger(logger *slog.Logger) ClassifierOption {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClassifier builds a Classifier.
func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

var _ history.Classifier[Document] = (*Classifier)(nil)

// Classify implements history.Classifier.
func (c *Classifier) Classify(prev, next Document) history.Action {
	change := Diff(prev, next)
	builtin := classifyChange(change, next)
	if builtin.Type == history.ActionNone || c == nil || c.rules.Len() == 0 {
		return builtin
	}
	if match, ok := c.matchRules(change, next, builtin); ok {
		action := history.Action{Type: history.ActionType(match.Action), Description: match.Description}
		if action.Description == "" {
			action.Description = builtin.Description
		}
		return action
	}
	return builtin
}

func (c *Classifier) matchRules(change Change, next Document, builtin history.Action) (match rules.Match, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("classifier rule panicked", slog.Any("panic", r))
			match, ok = rules.Match{}, false
		}
	}()
	return c.rules.Match(ruleEnv(change, next, builtin))
}

func ruleEnv(change Change, next Document, builtin history.Action) rules.Env {
	env := rules.Env{
		"builtin":           string(builtin.Type),
		"added":             len(change.Added),
		"removed":           len(change.Removed),
		"changed":           len(change.Changed),
		"count":             change.Count,
		"fields":            []string{},
		"selection_changed": change.SelectionChanged,
		"layer":             map[string]any{},
		"previous":          map[string]any{},
	}
	switch {
	case len(change.Added) > 0:
		env["layer"] = layerBinding(change.Added[0])
	case len(change.Removed) > 0:
		env["previous"] = layerBinding(change.Removed[0])
	case len(change.Changed) == 1:
		c := change.Changed[0]
		env["fields"] = append([]string{}, c.Fields...)
		env["layer"] = layerBinding(c.After)
		env["previous"] = layerBinding(c.Before)
	case len(change.Changed) == 0:
		if selected, ok := next.Selected(); ok {
			env["layer"] = layerBinding(selected)
		}
	}
	return env
}

func layerBinding(l Layer) map[string]any {
	return map[string]any{
		"id":       l.ID,
		"name":     l.Name,
		"kind":     string(l.Kind),
		"x":        l.X,
		"y":        l.Y,
		"width":    l.Width,
		"height":   l.Height,
		"rotation": l.Rotation,
		"z_index":  l.ZIndex,
		"visible":  l.Visible,
		"locked":   l.Locked,
	}
}
