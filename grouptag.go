package xltmpl

// groupTag outlines the rows or columns of its block once the body is
// transformed: jx:group(dir="rows" collapse="true" lastCell="C5").
type groupTag struct {
	spec     *TagSpec
	dir      Direction
	collapse bool
}

func newGroupTag(spec *TagSpec) (Tag, error) {
	dir, err := enumAttr(spec, "dir", "rows", "rows", "cols")
	if err != nil {
		return nil, err
	}
	collapse, err := boolAttr(spec, "collapse", false)
	if err != nil {
		return nil, err
	}
	t := &groupTag{spec: spec, dir: Vertical, collapse: collapse}
	if dir == "cols" {
		t.dir = Horizontal
	}
	return t, nil
}

func (t *groupTag) Name() string         { return "group" }
func (t *groupTag) Direction() Direction { return None }

func (t *groupTag) Process(tc *TagContext) error {
	if err := tc.TransformBody(); err != nil {
		return err
	}
	r := tc.Block().Region
	if t.dir == Horizontal {
		tc.run.mutator.Group(tc.Sheet, r.Left, r.Right, Horizontal, t.collapse)
	} else {
		tc.run.mutator.Group(tc.Sheet, r.Top, r.Bottom, Vertical, t.collapse)
	}
	return nil
}
