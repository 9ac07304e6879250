package xltmpl

// autoRowHeightTag drops the custom heights of the rows of its block after
// the body is written, so the spreadsheet application fits them to content.
type autoRowHeightTag struct{}

func newAutoRowHeightTag(*TagSpec) (Tag, error) {
	return autoRowHeightTag{}, nil
}

func (autoRowHeightTag) Name() string         { return "autoRowHeight" }
func (autoRowHeightTag) Direction() Direction { return None }

func (autoRowHeightTag) Process(tc *TagContext) error {
	if err := tc.TransformBody(); err != nil {
		return err
	}
	r := tc.Block().Region
	for row := r.Top; row <= r.Bottom; row++ {
		p := tc.Sheet.RowProps(row)
		p.Size = 0
		tc.Sheet.SetRowProps(row, p)
	}
	return nil
}
