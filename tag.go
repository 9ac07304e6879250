package xltmpl

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
)

// Tag is a template directive bound to a block of cells.
type Tag interface {
	Name() string
	// Direction is the axis the tag block replicates along.
	Direction() Direction
	// Process transforms the block of tc. The tag block is tc.Block().
	Process(tc *TagContext) error
}

// TagFactory builds a tag from its parsed spec. Factories validate every
// attribute that can be checked without data and return a *TagError.
type TagFactory func(spec *TagSpec) (Tag, error)

// TagRegistry maps tag names to factories.
type TagRegistry struct {
	factories map[string]TagFactory
}

// NewTagRegistry creates a registry holding the built-in tags.
func NewTagRegistry() *TagRegistry {
	r := &TagRegistry{factories: make(map[string]TagFactory)}
	r.Register("area", newAreaTag)
	r.Register("forEach", newForEachTag)
	r.Register("each", newForEachTag)
	r.Register("for", newForTag)
	r.Register("if", newIfTag)
	r.Register("group", newGroupTag)
	r.Register("style", newStyleTag)
	r.Register("merge", newMergeTag)
	r.Register("mergeCells", newMergeTag)
	r.Register("image", newImageTag)
	r.Register("autoRowHeight", newAutoRowHeightTag)
	return r
}

// Register adds or replaces a tag factory.
func (r *TagRegistry) Register(name string, factory TagFactory) {
	r.factories[name] = factory
}

// Names returns the registered tag names.
func (r *TagRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	return names
}

// Create builds the tag for spec.
func (r *TagRegistry) Create(spec *TagSpec) (Tag, error) {
	factory, ok := r.factories[spec.Name]
	if !ok {
		return nil, &TagError{Tag: spec.Name, Cell: spec.Cell, Err: fmt.Errorf("unknown tag")}
	}
	return factory(spec)
}

// TagError reports a malformed tag: a bad attribute value, a missing
// attribute or a structural problem. It is raised before the tag touches
// the sheet.
type TagError struct {
	Tag   string
	Attr  string
	Value string
	Cell  CellRef
	Err   error
}

func (e *TagError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "jx:%s at %s", e.Tag, e.Cell)
	if e.Attr != "" {
		fmt.Fprintf(&b, ": attribute %s=%q", e.Attr, e.Value)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TagError) Unwrap() error { return e.Err }

func attrError(spec *TagSpec, attr string, err error) *TagError {
	return &TagError{Tag: spec.Name, Attr: attr, Value: spec.Attrs[attr], Cell: spec.Cell, Err: err}
}

// requireBody fails for a tag that must declare the block it covers.
func requireBody(spec *TagSpec) error {
	if _, ok := spec.Attrs["lastCell"]; !ok {
		return &TagError{Tag: spec.Name, Cell: spec.Cell, Err: fmt.Errorf("missing lastCell attribute")}
	}
	return nil
}

// requireAttr returns a mandatory attribute.
func requireAttr(spec *TagSpec, name string) (string, error) {
	v, ok := spec.Attrs[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "", attrError(spec, name, fmt.Errorf("required attribute is missing"))
	}
	return v, nil
}

// boolAttr parses a literal boolean attribute.
func boolAttr(spec *TagSpec, name string, def bool) (bool, error) {
	v, ok := spec.Attrs[name]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, attrError(spec, name, fmt.Errorf("expected true or false"))
	}
	return b, nil
}

// enumAttr parses a literal attribute that must be one of allowed (case-insensitive).
func enumAttr(spec *TagSpec, name, def string, allowed ...string) (string, error) {
	v, ok := spec.Attrs[name]
	if !ok || v == "" {
		return def, nil
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(v), a) {
			return a, nil
		}
	}
	return "", attrError(spec, name, fmt.Errorf("expected one of %s", strings.Join(allowed, ", ")))
}

// exprAttr returns an attribute holding an expression, with an optional
// ${...} wrapper removed. The syntax is checked without data.
func exprAttr(spec *TagSpec, name string) (string, error) {
	v, ok := spec.Attrs[name]
	if !ok {
		return "", nil
	}
	e := stripNotation(v)
	if e == "" {
		return "", nil
	}
	if _, err := expr.Compile(e, expr.AllowUndefinedVariables()); err != nil {
		return "", attrError(spec, name, fmt.Errorf("invalid expression: %w", err))
	}
	return e, nil
}

// intExprAttr is exprAttr for integer attributes. Numeric literals must be integers.
func intExprAttr(spec *TagSpec, name string) (string, error) {
	e, err := exprAttr(spec, name)
	if err != nil || e == "" {
		return e, err
	}
	if looksNumeric(e) {
		if _, err := strconv.Atoi(e); err != nil {
			return "", attrError(spec, name, fmt.Errorf("expected an integer"))
		}
	}
	return e, nil
}

func looksNumeric(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	return s != "" && (s[0] >= '0' && s[0] <= '9' || s[0] == '.')
}

// stripNotation removes a "${...}" wrapper around an attribute value.
func stripNotation(v string) string {
	v = strings.TrimSpace(v)
	if inner, ok := ExtractSingleExpression(v, "${", "}"); ok {
		return strings.TrimSpace(inner)
	}
	return v
}

// evalInt evaluates an integer attribute expression.
func evalInt(beans *Beans, spec *TagSpec, name, expression string) (int, error) {
	v, err := beans.Evaluate(expression)
	if err != nil {
		return 0, attrError(spec, name, err)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, attrError(spec, name, fmt.Errorf("evaluated to %v (%T), expected an integer", v, v))
	}
	return n, nil
}

// toInt converts integral values of any numeric kind, or numeric strings.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return int(f), true
	}
	return 0, false
}

// directionOf maps a copyRight flag onto a direction.
func directionOf(right bool) Direction {
	if right {
		return Horizontal
	}
	return Vertical
}
