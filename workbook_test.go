package xltmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestOpenWorkbook_Model(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "name", "B1": 42, "C1": true})
	require.NoError(t, tmpl.SetCellFormula(sheet1, "D1", "B1*2"))
	require.NoError(t, tmpl.MergeCell(sheet1, "A2", "C2"))
	addTag(t, tmpl, sheet1, "A3", `jx:if(condition="x" lastCell="B3")`)
	addTag(t, tmpl, sheet1, "A4", "just a note")

	wb := loadTemplate(t, tmpl)
	s := wb.Sheet(sheet1)
	require.NotNil(t, s)

	assert.Equal(t, "name", s.CellByName("A1").Value)
	assert.Equal(t, 42.0, s.CellByName("B1").Value)
	assert.Equal(t, CellNumber, s.CellByName("B1").Type)
	assert.Equal(t, true, s.CellByName("C1").Value)
	assert.Equal(t, "B1*2", s.CellByName("D1").Formula)
	assert.Equal(t, []Region{region(t, "A2:C2")}, s.Merges())

	tagged := s.CellByName("A3")
	require.Len(t, tagged.Tags(), 1)
	assert.Equal(t, "if", tagged.Tags()[0].Name)
	assert.Empty(t, tagged.Comment)

	assert.Equal(t, "just a note", s.CellByName("A4").Comment)
	assert.Empty(t, s.CellByName("A4").Tags())
}

func TestFlush_KeepsPlainComments(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${x}", "A2": "note here"})
	addTag(t, tmpl, sheet1, "A1", `jx:forEach(items="nums" var="x" lastCell="A1")`)
	addTag(t, tmpl, sheet1, "A2", "just a note")

	out := fillTemplate(t, tmpl, map[string]any{"nums": []int{1, 2}})
	comments, err := out.GetComments(sheet1)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "A3", comments[0].Cell)
	assert.Contains(t, comments[0].Text, "just a note")
}

func TestFlush_MergesFollowCopies(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${x}", "A2": "end"})
	require.NoError(t, tmpl.MergeCell(sheet1, "A1", "B1"))
	addTag(t, tmpl, sheet1, "A1", `jx:forEach(items="nums" var="x" lastCell="B1")`)

	out := fillTemplate(t, tmpl, map[string]any{"nums": []int{1, 2, 3}})
	merges, err := out.GetMergeCells(sheet1)
	require.NoError(t, err)
	var got []string
	for _, m := range merges {
		got = append(got, m.GetStartAxis()+":"+m.GetEndAxis())
	}
	assert.ElementsMatch(t, []string{"A1:B1", "A2:B2", "A3:B3"}, got)
	assert.Equal(t, []string{"end"}, values(t, out, sheet1, "A4"))
}

func TestFlush_Hyperlinks(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": `${hyperlink(url, "Site")}`, "A2": "${x}"})

	out := fillTemplate(t, tmpl, map[string]any{"url": "https://example.com", "x": "plain"})
	ok, link, err := out.GetCellHyperLink(sheet1, "A1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com", link)
	assert.Equal(t, []string{"Site", "plain"}, values(t, out, sheet1, "A1", "A2"))

	ok, _, err = out.GetCellHyperLink(sheet1, "A2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlush_TypedValues(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${n}", "B1": "${ok}", "C1": "${none}", "D1": "=${n}"})

	out := fillTemplate(t, tmpl, map[string]any{"n": 2.5, "ok": true, "none": nil})
	typ, err := out.GetCellType(sheet1, "A1")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ)
	typ, err = out.GetCellType(sheet1, "B1")
	require.NoError(t, err)
	assert.Equal(t, excelize.CellTypeBool, typ)
	assert.Equal(t, []string{"2.5", "TRUE", "", "=2.5"}, values(t, out, sheet1, "A1", "B1", "C1", "D1"))
}

func TestFlush_FormulaExpressions(t *testing.T) {
	tmpl := excelize.NewFile()
	require.NoError(t, tmpl.SetCellFormula(sheet1, "A1", `"${label}"&"!"`))
	require.NoError(t, tmpl.SetCellFormula(sheet1, "A2", "SUM(B1:B3)"))

	out := fillTemplate(t, tmpl, map[string]any{"label": "Total"})
	f1, err := out.GetCellFormula(sheet1, "A1")
	require.NoError(t, err)
	assert.Equal(t, `"Total"&"!"`, f1)
	f2, err := out.GetCellFormula(sheet1, "A2")
	require.NoError(t, err)
	assert.Equal(t, "SUM(B1:B3)", f2)
}

// rowStamper writes the row number into cells it skips.
type rowStamper struct {
	skip  string
	after []string
}

func (l *rowStamper) BeforeCell(tc *TagContext, c *Cell) bool {
	return c.Name() != l.skip
}

func (l *rowStamper) AfterCell(tc *TagContext, c *Cell) {
	l.after = append(l.after, c.Name())
}

func TestCellListener(t *testing.T) {
	tmpl := excelize.NewFile()
	setValues(t, tmpl, sheet1, map[string]any{"A1": "${_row}", "B1": "${x}", "A2": "${_row}"})

	l := &rowStamper{skip: "B1"}
	out := fillTemplate(t, tmpl, map[string]any{"x": "never"}, WithCellListener(l))
	assert.Equal(t, []string{"1", "${x}", "2"}, values(t, out, sheet1, "A1", "B1", "A2"))
	assert.Equal(t, []string{"A1", "B1", "A2"}, l.after)
}

func TestTransform_MarkerAcrossSheets(t *testing.T) {
	tmpl := excelize.NewFile()
	_, err := tmpl.NewSheet("Data")
	require.NoError(t, err)
	setValues(t, tmpl, sheet1, map[string]any{"A1": "$[SUM(Data!A1)]"})
	setValues(t, tmpl, "Data", map[string]any{"A1": "${x}"})
	addTag(t, tmpl, "Data", "A1", `jx:forEach(items="nums" var="x" lastCell="A1")`)

	out := fillTemplate(t, tmpl, map[string]any{"nums": []int{1, 2}})
	formula, err := out.GetCellFormula(sheet1, "A1")
	require.NoError(t, err)
	assert.Equal(t, "SUM(Data!A1:A2)", formula)
}
