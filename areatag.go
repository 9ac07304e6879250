package xltmpl

// areaTag marks the template area of a sheet: jx:area(lastCell="D10").
// The whole sheet is transformed anyway, so the tag only transforms its body.
type areaTag struct{}

func newAreaTag(*TagSpec) (Tag, error) { return areaTag{}, nil }

func (areaTag) Name() string                 { return "area" }
func (areaTag) Direction() Direction         { return None }
func (areaTag) Process(tc *TagContext) error { return tc.TransformBody() }
