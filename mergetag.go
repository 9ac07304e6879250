package xltmpl

import "fmt"

// mergeTag merges cells after its body is transformed. Without cols and rows
// the whole block is merged:
// jx:merge(cols="e.Span" rows="1" minCols="2" lastCell="D2").
type mergeTag struct {
	spec    *TagSpec
	cols    string
	rows    string
	minCols string
	minRows string
}

func newMergeTag(spec *TagSpec) (Tag, error) {
	t := &mergeTag{spec: spec}
	for _, a := range []struct {
		name string
		dst  *string
	}{{"cols", &t.cols}, {"rows", &t.rows}, {"minCols", &t.minCols}, {"minRows", &t.minRows}} {
		v, err := intExprAttr(spec, a.name)
		if err != nil {
			return nil, err
		}
		*a.dst = v
	}
	return t, nil
}

func (t *mergeTag) Name() string         { return t.spec.Name }
func (t *mergeTag) Direction() Direction { return None }

func (t *mergeTag) Process(tc *TagContext) error {
	if err := tc.TransformBody(); err != nil {
		return err
	}
	r := tc.Block().Region
	cols, rows := r.Width(), r.Height()
	var minCols, minRows int
	for _, a := range []struct {
		name, expr string
		dst        *int
	}{{"cols", t.cols, &cols}, {"rows", t.rows, &rows}, {"minCols", t.minCols, &minCols}, {"minRows", t.minRows, &minRows}} {
		if a.expr == "" {
			continue
		}
		v, err := evalInt(tc.Beans, t.spec, a.name, a.expr)
		if err != nil {
			return err
		}
		*a.dst = v
	}
	if cols < 1 || rows < 1 {
		return attrError(t.spec, "cols", fmt.Errorf("merge size %dx%d is empty", cols, rows))
	}
	if cols < minCols || rows < minRows || (cols == 1 && rows == 1) {
		return nil
	}
	tc.Sheet.AddMerge(Region{Top: r.Top, Left: r.Left, Bottom: r.Top + rows - 1, Right: r.Left + cols - 1})
	return nil
}
