package xltmpl

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExpressionEvaluator evaluates template expressions against a bean map.
type ExpressionEvaluator interface {
	Evaluate(expression string, data map[string]any) (any, error)
	IsConditionTrue(condition string, data map[string]any) (bool, error)
}

// exprEvaluator implements ExpressionEvaluator using expr-lang/expr.
// Compiled programs are shared across runs.
type exprEvaluator struct {
	cache sync.Map // expression string → compiled *vm.Program
}

var defaultEvaluator = &exprEvaluator{}

// NewExpressionEvaluator returns the expr-lang backed evaluator.
func NewExpressionEvaluator() ExpressionEvaluator {
	return defaultEvaluator
}

func (e *exprEvaluator) Evaluate(expression string, data map[string]any) (any, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, nil
	}
	program, err := e.compile(expression)
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expression, err)
	}
	result, err := expr.Run(program, data)
	if err != nil {
		return nil, fmt.Errorf("evaluate expression %q: %w", expression, err)
	}
	return result, nil
}

func (e *exprEvaluator) IsConditionTrue(condition string, data map[string]any) (bool, error) {
	result, err := e.Evaluate(condition, data)
	if err != nil {
		return false, err
	}
	switch b := result.(type) {
	case nil:
		return false, nil
	case bool:
		return b, nil
	default:
		return false, fmt.Errorf("condition %q evaluated to %T, expected bool", condition, result)
	}
}

// compile caches untyped programs so one program serves every bean map.
func (e *exprEvaluator) compile(expression string) (*vm.Program, error) {
	if cached, ok := e.cache.Load(expression); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.cache.Store(expression, program)
	return program, nil
}

// ExpressionSegment is a part of a cell value: literal text or an expression.
type ExpressionSegment struct {
	IsExpression bool
	Text         string // literal text or expression content (without delimiters)
}

// ParseExpressions splits a cell value into segments of literal text and expressions.
// For example, "Name: ${e.Name}" → [{false, "Name: "}, {true, "e.Name"}]
func ParseExpressions(value string, begin, end string) []ExpressionSegment {
	begin, end = notationOrDefault(begin, end)

	var segments []ExpressionSegment
	remaining := value
	for {
		startIdx := strings.Index(remaining, begin)
		if startIdx < 0 {
			break
		}
		searchFrom := startIdx + len(begin)
		endIdx := findMatchingEnd(remaining[searchFrom:], begin, end)
		if endIdx < 0 {
			break
		}
		endIdx += searchFrom

		if startIdx > 0 {
			segments = append(segments, ExpressionSegment{Text: remaining[:startIdx]})
		}
		segments = append(segments, ExpressionSegment{
			IsExpression: true,
			Text:         remaining[searchFrom:endIdx],
		})
		remaining = remaining[endIdx+len(end):]
	}
	if remaining != "" {
		segments = append(segments, ExpressionSegment{Text: remaining})
	}
	return segments
}

// findMatchingEnd finds the position of the matching end delimiter,
// handling nested begin/end pairs and plain braces of map literals.
func findMatchingEnd(s string, begin, end string) int {
	depth := 0
	for i := 0; i <= len(s)-len(end); i++ {
		switch {
		case strings.HasPrefix(s[i:], begin):
			depth++
			i += len(begin) - 1
		case end == "}" && s[i] == '{':
			depth++
		case strings.HasPrefix(s[i:], end):
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return -1
}

// ExtractSingleExpression extracts the expression from a value like "${e.Name}".
// It returns false when the value holds anything besides one expression.
func ExtractSingleExpression(value string, begin, end string) (string, bool) {
	begin, end = notationOrDefault(begin, end)
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, begin) || !strings.HasSuffix(trimmed, end) {
		return "", false
	}
	segments := ParseExpressions(trimmed, begin, end)
	if len(segments) != 1 || !segments[0].IsExpression {
		return "", false
	}
	return segments[0].Text, true
}

func notationOrDefault(begin, end string) (string, string) {
	if begin == "" || end == "" {
		return "${", "}"
	}
	return begin, end
}

// CheckExpressionSyntax compiles every expression embedded in value and
// returns the first syntax error.
func CheckExpressionSyntax(value, begin, end string) error {
	for _, seg := range ParseExpressions(value, begin, end) {
		if !seg.IsExpression {
			continue
		}
		if _, err := expr.Compile(seg.Text, expr.AllowUndefinedVariables()); err != nil {
			return fmt.Errorf("invalid expression %q: %w", seg.Text, err)
		}
	}
	return nil
}
