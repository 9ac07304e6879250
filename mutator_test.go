package xltmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutator_ShiftDown(t *testing.T) {
	s := sheetOf(t, map[string]any{"A1": "h", "A2": "x", "B2": "y", "A3": "z", "A4": "old"})
	s.AddMerge(region(t, "A2:B2"))
	s.AddMerge(region(t, "A3:D3"))
	s.SetRowProps(1, LineProps{Size: 30})
	refs := CellRefMap{}
	refs.Register(CellRef{Sheet: sheet1, Row: 2, Col: 0})
	x := s.Cell(1, 0)

	NewMutator(refs).ShiftDown(s, region(t, "A2:B3"), 2)

	assert.Equal(t, "h", s.Cell(0, 0).Value)
	assert.Nil(t, s.Cell(1, 0))
	assert.Nil(t, s.Cell(2, 0))
	assert.Equal(t, "x", s.Cell(3, 0).Value)
	assert.Equal(t, "y", s.Cell(3, 1).Value)
	assert.Equal(t, "z", s.Cell(4, 0).Value)
	assert.Same(t, x, s.Cell(3, 0))
	assert.Equal(t, 3, x.Row())

	assert.ElementsMatch(t, []Region{region(t, "A4:B4"), region(t, "A3:D3")}, s.Merges())
	assert.Equal(t, LineProps{Size: 30}, s.RowProps(3))
	assert.Equal(t, LineProps{}, s.RowProps(1))

	targets, ok := refs.Targets("Sheet1!A3")
	require.True(t, ok)
	assert.Equal(t, []CellRef{{Sheet: sheet1, Row: 4, Col: 0}}, targets)
}

func TestMutator_ShiftKeepsSharedRowHeight(t *testing.T) {
	s := sheetOf(t, map[string]any{"A2": "moves", "D2": "stays"})
	s.SetRowProps(1, LineProps{Size: 30})

	NewMutator(CellRefMap{}).ShiftDown(s, region(t, "A2:B2"), 1)

	assert.Equal(t, "moves", s.Cell(2, 0).Value)
	assert.Equal(t, "stays", s.Cell(1, 3).Value)
	assert.Equal(t, 30.0, s.RowProps(1).Size)
	assert.Equal(t, 0.0, s.RowProps(2).Size)
}

func TestMutator_ShiftLeftAndUp(t *testing.T) {
	s := sheetOf(t, map[string]any{"C1": "c", "D1": "d", "A5": "a"})
	m := NewMutator(CellRefMap{})

	m.ShiftLeft(s, region(t, "C1:D1"), 2)
	assert.Equal(t, "c", s.Cell(0, 0).Value)
	assert.Equal(t, "d", s.Cell(0, 1).Value)
	assert.Nil(t, s.Cell(0, 2))

	m.ShiftUp(s, region(t, "A5:A5"), 3)
	assert.Equal(t, "a", s.Cell(1, 0).Value)

	m.ShiftRight(s, region(t, "A2:A2"), 1)
	assert.Equal(t, "a", s.Cell(1, 1).Value)
}

func TestMutator_CopyBlock(t *testing.T) {
	s := sheetOf(t, map[string]any{"A1": "${e}", "B1": "$[A1*2]", "A3": "overwritten"})
	s.Cell(0, 0).StyleID = 4
	s.AddMerge(region(t, "A1:B1"))
	s.SetRowProps(0, LineProps{Size: 25})
	refs := CellRefMap{}
	refs.Register(CellRef{Sheet: sheet1, Row: 0, Col: 0})
	m := NewMutator(refs)

	got := m.CopyBlock(s, region(t, "A1:B1"), Vertical, 2, 7)

	assert.Equal(t, region(t, "A3:B3"), got)
	cp := s.Cell(2, 0)
	require.NotNil(t, cp)
	assert.NotSame(t, s.Cell(0, 0), cp)
	assert.Equal(t, "${e}", cp.Value)
	assert.Equal(t, 4, cp.StyleID)
	assert.Equal(t, "$[A1*2][7,2]", s.Cell(2, 1).Value)
	assert.Equal(t, "$[A1*2]", s.Cell(0, 1).Value)
	assert.Contains(t, s.Merges(), region(t, "A3:B3"))
	assert.Equal(t, 25.0, s.RowProps(2).Size)

	targets, _ := refs.Targets("Sheet1!A1[7,2]")
	assert.Equal(t, []CellRef{{Sheet: sheet1, Row: 2, Col: 0}}, targets)
	targets, _ = refs.Targets("Sheet1!A1")
	assert.Len(t, targets, 2)

	same := m.CopyBlock(s, region(t, "A1:B1"), Vertical, 0, 7)
	assert.Equal(t, region(t, "A1:B1"), same)
	assert.Equal(t, "$[A1*2][7,0]", s.Cell(0, 1).Value)
}

func TestMutator_CopyBlockHorizontal(t *testing.T) {
	s := sheetOf(t, map[string]any{"A1": "x", "A2": "y"})
	s.SetColProps(0, LineProps{Size: 20})

	got := NewMutator(CellRefMap{}).CopyBlock(s, region(t, "A1:A2"), Horizontal, 1, 1)

	assert.Equal(t, region(t, "B1:B2"), got)
	assert.Equal(t, "x", s.Cell(0, 1).Value)
	assert.Equal(t, "y", s.Cell(1, 1).Value)
	assert.Equal(t, 20.0, s.ColProps(1).Size)
}

func TestMutator_DeleteAndClear(t *testing.T) {
	s := sheetOf(t, map[string]any{"A1": "a", "B1": "b", "A2": "c"})
	s.Cell(0, 0).StyleID = 3
	s.AddMerge(region(t, "A1:B1"))
	m := NewMutator(CellRefMap{})

	m.ClearBlock(s, region(t, "A1:B1"))
	require.NotNil(t, s.Cell(0, 0))
	assert.Nil(t, s.Cell(0, 0).Value)
	assert.Equal(t, 3, s.Cell(0, 0).StyleID)
	assert.Len(t, s.Merges(), 1)

	m.DeleteBlock(s, region(t, "A1:B1"))
	assert.Nil(t, s.Cell(0, 0))
	assert.Nil(t, s.Cell(0, 1))
	assert.Empty(t, s.Merges())
	assert.Equal(t, "c", s.Cell(1, 0).Value)
}

func TestMutator_CountEmptyTrailing(t *testing.T) {
	s := sheetOf(t, map[string]any{"A1": "x", "B2": ""})
	s.Cell(1, 1).StyleID = 2
	m := NewMutator(CellRefMap{})

	assert.Equal(t, 3, m.CountEmptyTrailing(s, region(t, "A1:B4"), Vertical))
	assert.Equal(t, 2, m.CountEmptyTrailing(s, region(t, "A1:C1"), Horizontal))
	assert.Equal(t, 0, m.CountEmptyTrailing(s, region(t, "A1:A1"), Vertical))
}

func TestMutator_Group(t *testing.T) {
	s := NewSheet(sheet1)
	m := NewMutator(CellRefMap{})

	m.Group(s, 1, 3, Vertical, false)
	m.Group(s, 2, 2, Vertical, true)
	m.Group(s, 0, 1, Horizontal, false)

	assert.Equal(t, LineProps{Outline: 1}, s.RowProps(1))
	assert.Equal(t, LineProps{Outline: 2, Hidden: true}, s.RowProps(2))
	assert.Equal(t, LineProps{}, s.RowProps(4))
	assert.Equal(t, uint8(1), s.ColProps(1).Outline)
}
