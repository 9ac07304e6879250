package xltmpl

import (
	"fmt"
	"strings"
)

// Beans holds the data a template is filled with and evaluates expressions
// against it. Loop variables live in a separate layer that shadows the data
// and is restored when the loop moves on.
type Beans struct {
	data          map[string]any
	runVars       map[string]any
	evaluator     ExpressionEvaluator
	notationBegin string
	notationEnd   string

	// merged view for evaluation, nil when stale
	cachedMap map[string]any
}

// BeansOption configures Beans.
type BeansOption func(*Beans)

// WithNotation sets custom expression notation delimiters.
func WithNotation(begin, end string) BeansOption {
	return func(b *Beans) {
		b.notationBegin, b.notationEnd = notationOrDefault(begin, end)
	}
}

// WithEvaluator sets a custom expression evaluator.
func WithEvaluator(ev ExpressionEvaluator) BeansOption {
	return func(b *Beans) { b.evaluator = ev }
}

// NewBeans wraps data for evaluation. The map is used as is, not copied.
func NewBeans(data map[string]any, opts ...BeansOption) *Beans {
	if data == nil {
		data = make(map[string]any)
	}
	b := &Beans{
		data:          data,
		runVars:       make(map[string]any),
		evaluator:     NewExpressionEvaluator(),
		notationBegin: "${",
		notationEnd:   "}",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Get returns a bean value. Loop variables win over data.
func (b *Beans) Get(name string) any {
	if v, ok := b.runVars[name]; ok {
		return v
	}
	return b.data[name]
}

// Put sets a bean in the data map.
func (b *Beans) Put(name string, value any) {
	b.data[name] = value
	b.cachedMap = nil
}

// Contains reports whether name is bound.
func (b *Beans) Contains(name string) bool {
	if _, ok := b.runVars[name]; ok {
		return true
	}
	_, ok := b.data[name]
	return ok
}

// ToMap returns the merged view of data and loop variables plus built-in
// functions. The map is cached until a loop variable changes.
func (b *Beans) ToMap() map[string]any {
	if b.cachedMap != nil {
		return b.cachedMap
	}
	m := make(map[string]any, len(b.data)+len(b.runVars)+1)
	for k, v := range b.data {
		m[k] = v
	}
	for k, v := range b.runVars {
		m[k] = v
	}
	if _, ok := m["hyperlink"]; !ok {
		m["hyperlink"] = Hyperlink
	}
	b.cachedMap = m
	return m
}

// Evaluate evaluates an expression against the beans.
func (b *Beans) Evaluate(expression string) (any, error) {
	return b.evaluator.Evaluate(expression, b.ToMap())
}

// IsConditionTrue evaluates a boolean condition. nil counts as false.
func (b *Beans) IsConditionTrue(condition string) (bool, error) {
	return b.evaluator.IsConditionTrue(condition, b.ToMap())
}

// Notation returns the expression delimiters.
func (b *Beans) Notation() (string, string) {
	return b.notationBegin, b.notationEnd
}

// HasExpression reports whether value embeds an expression.
func (b *Beans) HasExpression(value string) bool {
	return strings.Contains(value, b.notationBegin)
}

// EvaluateCellValue evaluates a cell value string, processing embedded expressions.
// A value holding exactly one expression like "${e.Name}" keeps the result type;
// mixed content like "Name: ${e.Name}" always yields a string.
func (b *Beans) EvaluateCellValue(value string) (any, CellType, error) {
	if exprStr, ok := ExtractSingleExpression(value, b.notationBegin, b.notationEnd); ok {
		result, err := b.Evaluate(exprStr)
		if err != nil {
			return nil, CellBlank, fmt.Errorf("evaluate %q: %w", value, err)
		}
		return result, inferCellType(result), nil
	}

	segments := ParseExpressions(value, b.notationBegin, b.notationEnd)
	var sb strings.Builder
	hasExpr := false
	for _, seg := range segments {
		if !seg.IsExpression {
			sb.WriteString(seg.Text)
			continue
		}
		hasExpr = true
		val, err := b.Evaluate(seg.Text)
		if err != nil {
			return nil, CellBlank, fmt.Errorf("evaluate expression %q in %q: %w", seg.Text, value, err)
		}
		if val != nil {
			fmt.Fprintf(&sb, "%v", val)
		}
	}
	if !hasExpr {
		return value, CellString, nil
	}
	return sb.String(), CellString, nil
}

// inferCellType determines the CellType from a Go value.
func inferCellType(v any) CellType {
	switch v.(type) {
	case nil:
		return CellBlank
	case bool:
		return CellBoolean
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return CellNumber
	default:
		return CellString
	}
}

func (b *Beans) setRunVar(name string, value any) {
	b.runVars[name] = value
	b.cachedMap = nil
}

func (b *Beans) removeRunVar(name string) {
	delete(b.runVars, name)
	b.cachedMap = nil
}

// RunVar binds loop variables and restores the previous bindings on Close.
// Use with defer: rv := NewRunVar(beans, "e", "idx"); defer rv.Close()
type RunVar struct {
	beans *Beans
	saved map[string]savedVar
}

type savedVar struct {
	value any
	had   bool
}

// NewRunVar remembers the current bindings of names. Empty names are ignored.
func NewRunVar(beans *Beans, names ...string) *RunVar {
	rv := &RunVar{beans: beans, saved: make(map[string]savedVar, len(names))}
	for _, n := range names {
		if n == "" {
			continue
		}
		old, had := beans.runVars[n]
		rv.saved[n] = savedVar{value: old, had: had}
	}
	return rv
}

// Set binds one of the managed names. Unmanaged names are ignored.
func (rv *RunVar) Set(name string, value any) {
	if _, ok := rv.saved[name]; ok {
		rv.beans.setRunVar(name, value)
	}
}

// Close restores the previous bindings.
func (rv *RunVar) Close() {
	for name, s := range rv.saved {
		if s.had {
			rv.beans.setRunVar(name, s.value)
		} else {
			rv.beans.removeRunVar(name)
		}
	}
}
