package xltmpl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormulaMarker(t *testing.T) {
	m, ok := ParseFormulaMarker("$[SUM(A1)]")
	require.True(t, ok)
	assert.Equal(t, "SUM(A1)", m.Text)
	assert.Nil(t, m.Tag)

	m, ok = ParseFormulaMarker("$[SUM(A1)][3,1]")
	require.True(t, ok)
	assert.Equal(t, &LoopTag{Seq: 3, Iter: 1}, m.Tag)
	assert.Equal(t, "$[SUM(A1)][3,1]", m.String())

	m, ok = ParseFormulaMarker("$[INDEX(A1:A3,[1])]")
	require.True(t, ok)
	assert.Equal(t, "INDEX(A1:A3,[1])", m.Text)

	for _, s := range []string{"SUM(A1)", "$[SUM(A1)", "$[SUM(A1)]junk", "$[SUM(A1)][x,1]"} {
		_, ok := ParseFormulaMarker(s)
		assert.False(t, ok, s)
	}
}

func TestFormulaMarker_WithTagReplacesOldTag(t *testing.T) {
	m, _ := ParseFormulaMarker("$[A1*2][1,0]")
	assert.Equal(t, "$[A1*2][4,2]", m.WithTag(LoopTag{Seq: 4, Iter: 2}).String())
	assert.Equal(t, "$[A1*2][1,0]", m.String())
}

func TestFindFormulaRefs(t *testing.T) {
	refs := findFormulaRefs(`SUM(A1:B2)+LOG10(C3)+LEN("D4")+Sheet2!E5+'My Data'!$F$6`, sheet1)

	var got []string
	for _, r := range refs {
		s := r.first.String()
		if r.last != nil {
			s += ":" + r.last.CellName()
		}
		got = append(got, s)
	}
	assert.Equal(t, []string{"Sheet1!A1:B2", "Sheet1!C3", "Sheet2!E5", "My Data!F6"}, got)
	assert.Equal(t, "My Data", refs[3].sheet)
	assert.Empty(t, refs[0].sheet)
}

func TestCellRefMap_Resolve(t *testing.T) {
	refs := CellRefMap{
		"Sheet1!A1":      {{Sheet: sheet1, Row: 0}, {Sheet: sheet1, Row: 1}, {Sheet: sheet1, Row: 2}},
		"Sheet1!A1[1,1]": {{Sheet: sheet1, Row: 1}},
		"Sheet1!B1":      {{Sheet: sheet1, Row: 0, Col: 1}, {Sheet: sheet1, Row: 2, Col: 1}},
		"Sheet1!C1":      {{Sheet: sheet1, Row: 0, Col: 2}, {Sheet: sheet1, Row: 4, Col: 2}},
		"Sheet1!D1":      {},
		"Data!A1":        {{Sheet: "Data", Row: 0}, {Sheet: "Data", Row: 1}},
	}
	at := CellRef{Sheet: sheet1, Row: 5, Col: 3}
	tag := &LoopTag{Seq: 1, Iter: 1}

	tests := []struct {
		name    string
		formula string
		tag     *LoopTag
		params  *ParamsData
		want    string
	}{
		{"contiguous becomes a range", "SUM(A1)", nil, nil, "SUM(A1:A3)"},
		{"tagged key wins", "A1*2", tag, nil, "A2*2"},
		{"range endpoints", "SUM(A1:B1)", nil, nil, "SUM(A1:B3)"},
		{"gaps become a list", "SUM(C1)", nil, nil, "SUM(C1,C5)"},
		{"untracked stays", "E9+1", nil, nil, "E9+1"},
		{"emptied uses default", "SUM(D1)", nil, nil, "SUM(0)"},
		{"custom default", "SUM(D1)", nil, &ParamsData{DefaultValue: "NA()"}, "SUM(NA())"},
		{"by column filters", "SUM(A1)", nil, &ParamsData{FormulaStrategy: FormulaByColumn}, "SUM(0)"},
		{"by row filters", "SUM(C1)", nil, &ParamsData{FormulaStrategy: FormulaByRow}, "SUM(0)"},
		{"other sheet keeps prefix", "SUM(Data!A1)", nil, nil, "SUM(Data!A1:A2)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := refs.resolveMarker(FormulaMarker{Text: tt.formula, Tag: tt.tag}, at, tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCellRefMap_ShiftAndDrop(t *testing.T) {
	refs := CellRefMap{}
	refs.Register(CellRef{Sheet: sheet1, Row: 1, Col: 0})
	refs.Register(CellRef{Sheet: "Other", Row: 1, Col: 0})

	refs.Shift(sheet1, region(t, "A2:A2"), 3, 0)
	got, _ := refs.Targets("Sheet1!A2")
	assert.Equal(t, []CellRef{{Sheet: sheet1, Row: 4, Col: 0}}, got)
	got, _ = refs.Targets("Other!A2")
	assert.Equal(t, []CellRef{{Sheet: "Other", Row: 1, Col: 0}}, got)

	refs.Drop(sheet1, region(t, "A5:A5"))
	got, ok := refs.Targets("Sheet1!A2")
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestBuildReplacement_ManyTargets(t *testing.T) {
	targets := make([]CellRef, 300)
	for i := range targets {
		targets[i] = CellRef{Row: i, Col: i % 2}
	}
	got := buildReplacement(targets, "")
	assert.Equal(t, 299, strings.Count(got, "+"))
	assert.NotContains(t, got, ",")
}

func TestFormatRef_QuotesSheetNames(t *testing.T) {
	assert.Equal(t, "'My Sheet'!B2", formatRef(CellRef{Row: 1, Col: 1}, "My Sheet"))
	assert.Equal(t, "Data!B2", formatRef(CellRef{Row: 1, Col: 1}, "Data"))
	assert.Equal(t, "B2", formatRef(CellRef{Row: 1, Col: 1}, ""))
}
