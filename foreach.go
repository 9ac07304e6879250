package xltmpl

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"
)

// forEachLoop iterates a collection from the beans:
// jx:forEach(items="employees" var="e" lastCell="C2").
type forEachLoop struct {
	spec       *TagSpec
	itemsExpr  string
	varName    string
	indexVar   string
	where      string
	orderBy    string
	groupBy    string
	groupOrder string

	list []any
	rv   *RunVar
}

func newForEachTag(spec *TagSpec) (Tag, error) {
	src := &forEachLoop{
		spec:       spec,
		indexVar:   firstAttr(spec, "indexVar", "varIndex"),
		orderBy:    spec.Attrs["orderBy"],
		groupBy:    spec.Attrs["groupBy"],
		groupOrder: spec.Attrs["groupOrder"],
	}
	var err error
	if _, err = requireAttr(spec, "items"); err != nil {
		return nil, err
	}
	if src.itemsExpr, err = exprAttr(spec, "items"); err != nil {
		return nil, err
	}
	if src.varName, err = requireAttr(spec, "var"); err != nil {
		return nil, err
	}
	whereAttr := "where"
	if _, ok := spec.Attrs["select"]; ok {
		whereAttr = "select"
	}
	if src.where, err = exprAttr(spec, whereAttr); err != nil {
		return nil, err
	}
	if _, err = enumAttr(spec, "groupOrder", "asc", "asc", "desc", "asc_ignorecase", "desc_ignorecase"); err != nil {
		return nil, err
	}
	for _, o := range parseOrderBy(src.orderBy, src.varName) {
		if o.field == "" {
			return nil, attrError(spec, "orderBy", fmt.Errorf("empty sort field"))
		}
	}
	return newLoopTag(spec, src)
}

// firstAttr returns the value of the first present attribute among names.
func firstAttr(spec *TagSpec, names ...string) string {
	for _, n := range names {
		if v, ok := spec.Attrs[n]; ok {
			return v
		}
	}
	return ""
}

func (l *forEachLoop) prepare(tc *TagContext) error {
	v, err := tc.Beans.Evaluate(l.itemsExpr)
	if err != nil {
		return attrError(l.spec, "items", err)
	}
	items, err := toSlice(v)
	if err != nil {
		return attrError(l.spec, "items", err)
	}
	if l.where != "" {
		if items, err = l.filterItems(items, tc.Beans); err != nil {
			return err
		}
	}
	if l.groupBy != "" {
		items = l.groupItems(items)
	}
	if l.orderBy != "" {
		sortByFields(items, parseOrderBy(l.orderBy, l.varName))
	}
	l.list = items
	return nil
}

func (l *forEachLoop) collectionNames() []string { return []string{l.itemsExpr} }

func (l *forEachLoop) numIterations(fixed bool, limit int) int {
	return iterationCount(len(l.list), limit, fixed)
}

func (l *forEachLoop) collectionSize() int { return len(l.list) }

func (l *forEachLoop) items() iter.Seq[any] { return slices.Values(l.list) }

func (l *forEachLoop) beforeItem(beans *Beans, item any, index int) {
	l.rv = NewRunVar(beans, l.varName, l.indexVar)
	l.rv.Set(l.varName, item)
	l.rv.Set(l.indexVar, index)
}

func (l *forEachLoop) afterItem(*Beans, any, int) {
	if l.rv != nil {
		l.rv.Close()
		l.rv = nil
	}
}

// filterItems keeps the items for which the where expression holds.
func (l *forEachLoop) filterItems(items []any, beans *Beans) ([]any, error) {
	var filtered []any
	for _, item := range items {
		rv := NewRunVar(beans, l.varName)
		rv.Set(l.varName, item)
		ok, err := beans.IsConditionTrue(l.where)
		rv.Close()
		if err != nil {
			return nil, fmt.Errorf("where filter %q: %w", l.where, err)
		}
		if ok {
			filtered = append(filtered, item)
		}
	}
	return filtered, nil
}

// GroupData represents a group of items sharing a common key value.
// Used with groupBy: ${g.Item.Department} accesses the key, ${g.Items} iterates group members.
type GroupData struct {
	Item  any   // the first item in the group
	Items []any // all items in this group
}

// groupItems groups items by the groupBy property, keeping first-seen order
// unless groupOrder asks for sorted keys.
func (l *forEachLoop) groupItems(items []any) []any {
	field := strings.TrimPrefix(l.groupBy, l.varName+".")

	type group struct {
		key   any
		items []any
	}
	var groups []group
	index := map[string]int{}
	for _, item := range items {
		val := getField(item, field)
		k := fmt.Sprintf("%v", val)
		if i, ok := index[k]; ok {
			groups[i].items = append(groups[i].items, item)
			continue
		}
		index[k] = len(groups)
		groups = append(groups, group{key: val, items: []any{item}})
	}

	if l.groupOrder != "" {
		order := strings.ToUpper(l.groupOrder)
		desc := strings.HasPrefix(order, "DESC")
		ignoreCase := strings.Contains(order, "IGNORECASE")
		slices.SortStableFunc(groups, func(a, b group) int {
			return compareGroupKeys(a.key, b.key, desc, ignoreCase)
		})
	}

	out := make([]any, len(groups))
	for i, g := range groups {
		out[i] = GroupData{Item: g.items[0], Items: g.items}
	}
	return out
}

func compareGroupKeys(a, b any, desc, ignoreCase bool) int {
	var cmp int
	if ignoreCase {
		cmp = strings.Compare(strings.ToLower(fmt.Sprint(a)), strings.ToLower(fmt.Sprint(b)))
	} else {
		cmp = compareValues(a, b)
	}
	if desc {
		return -cmp
	}
	return cmp
}

type orderBySpec struct {
	field string // field name without the loop variable prefix
	desc  bool
}

// parseOrderBy parses "e.Name ASC, e.Payment DESC".
func parseOrderBy(spec string, varName string) []orderBySpec {
	if strings.TrimSpace(spec) == "" {
		return nil
	}
	var specs []orderBySpec
	for p := range strings.SplitSeq(spec, ",") {
		tokens := strings.Fields(p)
		if len(tokens) == 0 {
			continue
		}
		specs = append(specs, orderBySpec{
			field: strings.TrimPrefix(tokens[0], varName+"."),
			desc:  len(tokens) > 1 && strings.EqualFold(tokens[1], "DESC"),
		})
	}
	return specs
}

// sortByFields sorts items in place, keeping equal items in order.
func sortByFields(items []any, specs []orderBySpec) {
	if len(specs) == 0 {
		return
	}
	slices.SortStableFunc(items, func(a, b any) int {
		for _, s := range specs {
			cmp := compareValues(getField(a, s.field), getField(b, s.field))
			if s.desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp
			}
		}
		return 0
	})
}

// getField extracts a field value from a struct or map by name.
func getField(item any, field string) any {
	if item == nil {
		return nil
	}
	if m, ok := item.(map[string]any); ok {
		return m[field]
	}
	v := reflect.ValueOf(item)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	if v.Kind() == reflect.Struct {
		if f := v.FieldByName(field); f.IsValid() {
			return f.Interface()
		}
	}
	return nil
}

// compareValues orders numbers numerically and everything else by its text.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	fa, aOk := toFloat64(a)
	fb, bOk := toFloat64(b)
	if aOk && bOk {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toFloat64(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// toSlice converts any slice or array to []any. nil is an empty collection.
func toSlice(val any) ([]any, error) {
	if val == nil {
		return nil, nil
	}
	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		result := make([]any, v.Len())
		for i := range v.Len() {
			result[i] = v.Index(i).Interface()
		}
		return result, nil
	default:
		return nil, fmt.Errorf("cannot iterate over %T", val)
	}
}
