package xltmpl

import (
	"fmt"
	"strconv"
	"strings"
)

// imageTag places picture bytes at its cell:
// jx:image(src="e.Photo" imageType="PNG" scaleX="0.5" scaleY="0.5").
// The picture stays attached to the cell and follows later shifts.
type imageTag struct {
	spec      *TagSpec
	src       string
	extension string
	scaleX    float64
	scaleY    float64
}

var imageExtensions = map[string]string{
	"PNG":  ".png",
	"JPEG": ".jpg",
	"JPG":  ".jpg",
	"GIF":  ".gif",
	"BMP":  ".bmp",
	"TIFF": ".tif",
	"SVG":  ".svg",
	"EMF":  ".emf",
	"WMF":  ".wmf",
}

func newImageTag(spec *TagSpec) (Tag, error) {
	t := &imageTag{spec: spec, scaleX: 1, scaleY: 1}
	if _, err := requireAttr(spec, "src"); err != nil {
		return nil, err
	}
	var err error
	if t.src, err = exprAttr(spec, "src"); err != nil {
		return nil, err
	}
	typ := strings.ToUpper(strings.TrimSpace(spec.Attrs["imageType"]))
	if typ == "" {
		typ = "PNG"
	}
	ext, ok := imageExtensions[typ]
	if !ok {
		return nil, attrError(spec, "imageType", fmt.Errorf("unsupported image type"))
	}
	t.extension = ext
	for _, a := range []struct {
		name string
		dst  *float64
	}{{"scaleX", &t.scaleX}, {"scaleY", &t.scaleY}} {
		v, ok := spec.Attrs[a.name]
		if !ok || v == "" {
			continue
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || f <= 0 {
			return nil, attrError(spec, a.name, fmt.Errorf("expected a positive number"))
		}
		*a.dst = f
	}
	return t, nil
}

func (t *imageTag) Name() string         { return "image" }
func (t *imageTag) Direction() Direction { return None }

func (t *imageTag) Process(tc *TagContext) error {
	v, err := tc.Beans.Evaluate(t.src)
	if err != nil {
		return attrError(t.spec, "src", err)
	}
	r := tc.Block().Region
	switch data := v.(type) {
	case nil:
		// no picture for this item
	case []byte:
		if len(data) > 0 {
			tc.Drawing().Add(tc.Sheet.EnsureCell(r.Top, r.Left), Picture{
				Data:      data,
				Extension: t.extension,
				ScaleX:    t.scaleX,
				ScaleY:    t.scaleY,
			})
		}
	default:
		return attrError(t.spec, "src", fmt.Errorf("image source must be []byte, got %T", v))
	}
	return tc.TransformBody()
}
