package xltmpl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func ifTemplate(t *testing.T, extra string) *excelize.File {
	t.Helper()
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${x}", "A2": "after"})
	addTag(t, tmpl, sheet1, "A1", `jx:if(condition="show" `+extra+`lastCell="A1")`)
	return tmpl
}

func TestIf(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		show  bool
		want  []string
	}{
		{"true keeps the block", "", true, []string{"shown", "after"}},
		{"false removes the block", "", false, []string{"after", ""}},
		{"false clears the block", `elseAction="clear" `, false, []string{"", "after"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := fillTemplate(t, ifTemplate(t, tt.extra), map[string]any{"x": "shown", "show": tt.show})
			assert.Equal(t, tt.want, values(t, out, sheet1, "A1", "A2"))
		})
	}
}

func TestIf_NonBooleanCondition(t *testing.T) {
	_, err := tryFill(t, ifTemplate(t, ""), map[string]any{"show": "yes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected bool")
}

func TestIf_InsideLoop(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${e.Name}", "A2": "end"})
	addTag(t, tmpl, sheet1, "A1", "jx:forEach(items=\"staff\" var=\"e\" lastCell=\"A1\")\n"+
		`jx:if(condition="e.Name != 'b'" lastCell="A1")`)

	out := fillTemplate(t, tmpl, map[string]any{"staff": people("a", "b", "c")})
	assert.Equal(t, []string{"a", "c", "end", ""}, values(t, out, sheet1, "A1", "A2", "A3", "A4"))
}

func TestGroup(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "x", "A2": "y", "A3": "z"})
	addTag(t, tmpl, sheet1, "A1", `jx:group(lastCell="A2")`)

	out := fillTemplate(t, tmpl, nil)
	for row, want := range map[int]uint8{1: 1, 2: 1, 3: 0} {
		level, err := out.GetRowOutlineLevel(sheet1, row)
		require.NoError(t, err)
		assert.Equal(t, want, level, "row %d", row)
	}
}

func TestGroup_Columns(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "x", "B1": "y"})
	addTag(t, tmpl, sheet1, "A1", `jx:group(dir="cols" collapse="true" lastCell="B1")`)

	out := fillTemplate(t, tmpl, nil)
	level, err := out.GetColOutlineLevel(sheet1, "B")
	require.NoError(t, err)
	assert.Equal(t, uint8(1), level)
	visible, err := out.GetColVisible(sheet1, "A")
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestStyle(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${e.Name}", "B1": "${e.Late}"})
	addTag(t, tmpl, sheet1, "A1", "jx:forEach(items=\"staff\" var=\"e\" lastCell=\"B1\")\n"+
		`jx:style(bold="true" fill="ffeb9c" condition="e.Late" lastCell="B1")`)

	data := map[string]any{"staff": []map[string]any{
		{"Name": "a", "Late": true},
		{"Name": "b", "Late": false},
	}}
	out := fillTemplate(t, tmpl, data)

	styled, err := out.GetCellStyle(sheet1, "B1")
	require.NoError(t, err)
	st, err := out.GetStyle(styled)
	require.NoError(t, err)
	require.NotNil(t, st.Font)
	assert.True(t, st.Font.Bold)
	require.Len(t, st.Fill.Color, 1)
	assert.Contains(t, strings.ToUpper(st.Fill.Color[0]), "FFEB9C")

	plain, err := out.GetCellStyle(sheet1, "A2")
	require.NoError(t, err)
	assert.Zero(t, plain)
}

func TestStyle_BadColor(t *testing.T) {
	specs, _, err := ParseComment(`jx:style(fill="yellow" lastCell="A1")`, NewCellRef(sheet1, 0, 0))
	require.NoError(t, err)
	_, err = newStyleTag(specs[0])
	var te *TagError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "fill", te.Attr)
}

func TestMerge(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${title}"})
	addTag(t, tmpl, sheet1, "A1", `jx:merge(lastCell="C1")`)

	out := fillTemplate(t, tmpl, map[string]any{"title": "Report"})
	merges, err := out.GetMergeCells(sheet1)
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "A1", merges[0].GetStartAxis())
	assert.Equal(t, "C1", merges[0].GetEndAxis())
	assert.Equal(t, []string{"Report"}, values(t, out, sheet1, "A1"))
}

func TestMerge_ColsFromData(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${e.Name}"})
	addTag(t, tmpl, sheet1, "A1", "jx:forEach(items=\"staff\" var=\"e\" lastCell=\"A1\")\n"+
		`jx:merge(cols="e.Span" minCols="2" lastCell="A1")`)

	data := map[string]any{"staff": []map[string]any{
		{"Name": "a", "Span": 3},
		{"Name": "b", "Span": 1},
	}}
	out := fillTemplate(t, tmpl, data)
	merges, err := out.GetMergeCells(sheet1)
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "A1", merges[0].GetStartAxis())
	assert.Equal(t, "C1", merges[0].GetEndAxis())
}

func TestImage_InsideLoop(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${p.Name}"})
	addTag(t, tmpl, sheet1, "A1", `jx:forEach(items="people" var="p" lastCell="B1")`)
	addTag(t, tmpl, sheet1, "B1", `jx:image(src="p.Photo" imageType="PNG" lastCell="B1")`)

	img := testPNG(t)
	data := map[string]any{"people": []map[string]any{
		{"Name": "a", "Photo": img},
		{"Name": "b", "Photo": nil},
		{"Name": "c", "Photo": img},
	}}
	out := fillTemplate(t, tmpl, data)

	for cell, want := range map[string]int{"B1": 1, "B2": 0, "B3": 1} {
		pics, err := out.GetPictures(sheet1, cell)
		require.NoError(t, err)
		assert.Len(t, pics, want, cell)
	}
}

func TestImage_WrongSource(t *testing.T) {
	tmpl := excelize.NewFile()
	addTag(t, tmpl, sheet1, "A1", `jx:image(src="photo")`)

	_, err := tryFill(t, tmpl, map[string]any{"photo": "not bytes"})
	var te *TagError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "src", te.Attr)
}

func TestAutoRowHeight(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "long text", "A2": "fixed"})
	require.NoError(t, tmpl.SetRowHeight(sheet1, 1, 30))
	require.NoError(t, tmpl.SetRowHeight(sheet1, 2, 30))
	addTag(t, tmpl, sheet1, "A1", `jx:autoRowHeight(lastCell="A1")`)

	out := fillTemplate(t, tmpl, nil)
	h, err := out.GetRowHeight(sheet1, 1)
	require.NoError(t, err)
	assert.InDelta(t, defaultRowHeight, h, 0.01)
	h, err = out.GetRowHeight(sheet1, 2)
	require.NoError(t, err)
	assert.InDelta(t, 30, h, 0.01)
}

func TestArea_Passthrough(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${a}", "B2": "${b}"})
	addTag(t, tmpl, sheet1, "A1", `jx:area(lastCell="B2")`)

	out := fillTemplate(t, tmpl, map[string]any{"a": "x", "b": 2})
	assert.Equal(t, []string{"x", "2"}, values(t, out, sheet1, "A1", "B2"))
}

type upperTag struct{}

func (upperTag) Name() string         { return "upper" }
func (upperTag) Direction() Direction { return None }
func (upperTag) Process(tc *TagContext) error {
	if err := tc.TransformBody(); err != nil {
		return err
	}
	for _, c := range tc.Sheet.cellsIn(tc.Block().Region) {
		if s, ok := c.StringValue(); ok {
			c.Value = s + "!"
		}
	}
	return nil
}

func TestCustomTag(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${word}"})
	addTag(t, tmpl, sheet1, "A1", `jx:upper(lastCell="A1")`)

	out := fillTemplate(t, tmpl, map[string]any{"word": "hi"},
		WithTag("upper", func(*TagSpec) (Tag, error) { return upperTag{}, nil }))
	assert.Equal(t, []string{"hi!"}, values(t, out, sheet1, "A1"))
}
