package xltmpl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// styleTag restyles the cells of its block after the body is transformed.
// Each cell keeps its own style and gets the requested changes on top:
// jx:style(bold="true" fill="#FFEB9C" condition="e.Overdue" lastCell="C2").
type styleTag struct {
	spec      *TagSpec
	mod       styleMod
	condition string
}

// styleMod is a set of changes applied on top of a base style.
type styleMod struct {
	bold, italic    optBool
	fontColor, fill string
	numFmt          int
	hasNumFmt       bool
}

// optBool is a boolean that may be left unset.
type optBool uint8

const (
	unset optBool = iota
	setFalse
	setTrue
)

func (b optBool) value() bool { return b == setTrue }

var hexColor = regexp.MustCompile(`^#?[0-9A-Fa-f]{6}$`)

func newStyleTag(spec *TagSpec) (Tag, error) {
	t := &styleTag{spec: spec}
	for _, a := range []struct {
		name string
		dst  *optBool
	}{{"bold", &t.mod.bold}, {"italic", &t.mod.italic}} {
		if _, ok := spec.Attrs[a.name]; !ok {
			continue
		}
		b, err := boolAttr(spec, a.name, false)
		if err != nil {
			return nil, err
		}
		*a.dst = setFalse
		if b {
			*a.dst = setTrue
		}
	}
	for _, a := range []struct {
		name string
		dst  *string
	}{{"fontColor", &t.mod.fontColor}, {"fill", &t.mod.fill}} {
		v := strings.TrimSpace(spec.Attrs[a.name])
		if v == "" {
			continue
		}
		if !hexColor.MatchString(v) {
			return nil, attrError(spec, a.name, fmt.Errorf("expected a hex color like #FF0000"))
		}
		*a.dst = "#" + strings.ToUpper(strings.TrimPrefix(v, "#"))
	}
	if v, ok := spec.Attrs["numFmt"]; ok && v != "" {
		n, ok := toInt(v)
		if !ok || n < 0 {
			return nil, attrError(spec, "numFmt", fmt.Errorf("expected a built-in number format id"))
		}
		t.mod.numFmt, t.mod.hasNumFmt = n, true
	}
	var err error
	if t.condition, err = exprAttr(spec, "condition"); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *styleTag) Name() string         { return "style" }
func (t *styleTag) Direction() Direction { return None }

func (t *styleTag) Process(tc *TagContext) error {
	if err := tc.TransformBody(); err != nil {
		return err
	}
	if t.condition != "" {
		ok, err := tc.Beans.IsConditionTrue(t.condition)
		if err != nil {
			return attrError(t.spec, "condition", err)
		}
		if !ok {
			return nil
		}
	}
	r := tc.Block().Region
	wb := tc.Workbook()
	for row := r.Top; row <= r.Bottom; row++ {
		for col := r.Left; col <= r.Right; col++ {
			c := tc.Sheet.EnsureCell(row, col)
			id, err := wb.deriveStyle(c.StyleID, t.mod)
			if err != nil {
				return fmt.Errorf("style %s!%s: %w", tc.Sheet.Name, c.Name(), err)
			}
			c.StyleID = id
		}
	}
	return nil
}

type styleKey struct {
	base int
	mod  styleMod
}

// deriveStyle returns the id of base with mod applied, creating the style
// in the file once per distinct combination.
func (wb *Workbook) deriveStyle(base int, mod styleMod) (int, error) {
	key := styleKey{base: base, mod: mod}
	if id, ok := wb.styles[key]; ok {
		return id, nil
	}
	st, err := wb.file.GetStyle(base)
	if err != nil {
		return 0, fmt.Errorf("read style %d: %w", base, err)
	}
	if mod.bold != unset || mod.italic != unset || mod.fontColor != "" {
		if st.Font == nil {
			st.Font = &excelize.Font{}
		}
		if mod.bold != unset {
			st.Font.Bold = mod.bold.value()
		}
		if mod.italic != unset {
			st.Font.Italic = mod.italic.value()
		}
		if mod.fontColor != "" {
			st.Font.Color = mod.fontColor
		}
	}
	if mod.fill != "" {
		st.Fill = excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{mod.fill}}
	}
	if mod.hasNumFmt {
		st.NumFmt = mod.numFmt
		st.CustomNumFmt = nil
	}
	id, err := wb.file.NewStyle(st)
	if err != nil {
		return 0, fmt.Errorf("create style: %w", err)
	}
	wb.styles[key] = id
	return id, nil
}
