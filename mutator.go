package xltmpl

import "slices"

// Mutator moves, copies, clears and deletes rectangular regions of a sheet,
// along with their merged regions and row/column properties, and keeps the
// formula reference map in step with every move.
type Mutator struct {
	refs CellRefMap
}

// NewMutator creates a Mutator that updates refs.
func NewMutator(refs CellRefMap) *Mutator {
	return &Mutator{refs: refs}
}

// ShiftDown moves the cells of r down by n rows.
func (m *Mutator) ShiftDown(s *Sheet, r Region, n int) { m.shift(s, r, n, 0) }

// ShiftUp moves the cells of r up by n rows.
func (m *Mutator) ShiftUp(s *Sheet, r Region, n int) { m.shift(s, r, -n, 0) }

// ShiftRight moves the cells of r right by n columns.
func (m *Mutator) ShiftRight(s *Sheet, r Region, n int) { m.shift(s, r, 0, n) }

// ShiftLeft moves the cells of r left by n columns.
func (m *Mutator) ShiftLeft(s *Sheet, r Region, n int) { m.shift(s, r, 0, -n) }

// Shift moves r by n along dir, negative n moving up or left.
func (m *Mutator) Shift(s *Sheet, r Region, dir Direction, n int) {
	if dir == Horizontal {
		m.shift(s, r, 0, n)
		return
	}
	m.shift(s, r, n, 0)
}

// shift moves the window r by dr rows and dc columns. Cells already at the
// destination are overwritten. Merged regions lying wholly inside the window
// move with it; merges only partly inside stay where they are.
func (m *Mutator) shift(s *Sheet, r Region, dr, dc int) {
	if r.Empty() || (dr == 0 && dc == 0) {
		return
	}
	dst := r.Translate(dr, dc)
	ownedRows, ownedCols := m.ownedLines(s, r)

	moved := s.cellsIn(r)
	for _, c := range moved {
		delete(s.cells, cellPos{c.row, c.col})
	}
	for _, c := range s.cellsIn(dst) {
		s.remove(c.row, c.col)
	}
	for _, c := range moved {
		s.put(c, c.row+dr, c.col+dc)
	}

	merges := s.merges[:0]
	var movedMerges []Region
	for _, mr := range s.merges {
		switch {
		case r.ContainsRegion(mr):
			movedMerges = append(movedMerges, mr.Translate(dr, dc))
		case dst.ContainsRegion(mr):
		default:
			merges = append(merges, mr)
		}
	}
	s.merges = append(merges, movedMerges...)

	if dr != 0 {
		moveLines(s.rows, ownedRows, dr)
	}
	if dc != 0 {
		moveLines(s.cols, ownedCols, dc)
	}
	m.refs.Shift(s.Name, r, dr, dc)
}

// ownedLines returns the rows of r whose cells all lie inside r's columns and
// the columns of r whose cells all lie inside r's rows. Only owned lines
// carry their height or width along when r moves.
func (m *Mutator) ownedLines(s *Sheet, r Region) (rows, cols []int) {
	rowOut := make(map[int]bool)
	colOut := make(map[int]bool)
	for pos := range s.cells {
		if pos.row >= r.Top && pos.row <= r.Bottom && (pos.col < r.Left || pos.col > r.Right) {
			rowOut[pos.row] = true
		}
		if pos.col >= r.Left && pos.col <= r.Right && (pos.row < r.Top || pos.row > r.Bottom) {
			colOut[pos.col] = true
		}
	}
	for row := r.Top; row <= r.Bottom; row++ {
		if !rowOut[row] {
			rows = append(rows, row)
		}
	}
	for col := r.Left; col <= r.Right; col++ {
		if !colOut[col] {
			cols = append(cols, col)
		}
	}
	return rows, cols
}

func moveLines(props map[int]LineProps, lines []int, delta int) {
	if len(lines) == 0 {
		return
	}
	saved := make(map[int]LineProps, len(lines))
	for _, i := range lines {
		if p, ok := props[i]; ok {
			saved[i] = p
			delete(props, i)
		}
	}
	for _, i := range lines {
		delete(props, i+delta)
	}
	for i, p := range saved {
		props[i+delta] = p
	}
}

// CopyBlock copies the block r numBlocksAway block lengths along dir and
// returns the region of the copy. Copy zero is the block itself: its formula
// markers are only tagged with the loop iteration. Copies get fresh cells,
// the merged regions of the block and the row heights or column widths of
// the block, and their formula markers are re-tagged [seq,numBlocksAway].
func (m *Mutator) CopyBlock(s *Sheet, r Region, dir Direction, numBlocksAway, seq int) Region {
	tag := LoopTag{Seq: seq, Iter: numBlocksAway}
	if numBlocksAway == 0 {
		for _, c := range s.cellsIn(r) {
			retagMarker(c, tag)
		}
		m.refs.Copy(s.Name, r, 0, 0, tag)
		return r
	}

	dr, dc := numBlocksAway*r.Height(), 0
	if dir == Horizontal {
		dr, dc = 0, numBlocksAway*r.Width()
	}
	dst := r.Translate(dr, dc)

	src := s.cellsIn(r)
	for _, c := range s.cellsIn(dst) {
		s.remove(c.row, c.col)
	}
	for _, c := range src {
		cp := c.clone()
		retagMarker(cp, tag)
		s.put(cp, c.row+dr, c.col+dc)
	}

	s.merges = slices.DeleteFunc(s.merges, func(mr Region) bool { return dst.ContainsRegion(mr) })
	for _, mr := range slices.Clone(s.merges) {
		if r.ContainsRegion(mr) {
			s.merges = append(s.merges, mr.Translate(dr, dc))
		}
	}

	if dir == Horizontal {
		for col := r.Left; col <= r.Right; col++ {
			if p, ok := s.cols[col]; ok {
				s.cols[col+dc] = p
			}
		}
	} else {
		for row := r.Top; row <= r.Bottom; row++ {
			if p, ok := s.rows[row]; ok {
				s.rows[row+dr] = p
			}
		}
	}

	m.refs.Copy(s.Name, r, dr, dc, tag)
	return dst
}

// retagMarker replaces the loop tag of a formula marker cell.
func retagMarker(c *Cell, tag LoopTag) {
	text, ok := c.StringValue()
	if !ok {
		return
	}
	if marker, ok := ParseFormulaMarker(text); ok {
		c.Value = marker.WithTag(tag).String()
	}
}

// DeleteBlock removes the cells of r and the merged regions inside it.
// Nothing is shifted into the hole.
func (m *Mutator) DeleteBlock(s *Sheet, r Region) {
	for _, c := range s.cellsIn(r) {
		s.remove(c.row, c.col)
	}
	s.merges = slices.DeleteFunc(s.merges, func(mr Region) bool { return r.ContainsRegion(mr) })
	m.refs.Drop(s.Name, r)
}

// ClearBlock blanks the cells of r and keeps their styles and merges.
func (m *Mutator) ClearBlock(s *Sheet, r Region) {
	for _, c := range s.cellsIn(r) {
		s.setTags(c, nil)
		c.clearContent()
	}
	m.refs.Drop(s.Name, r)
}

// CountEmptyTrailing counts the blank rows (Vertical) or columns
// (Horizontal) at the far edge of r.
func (m *Mutator) CountEmptyTrailing(s *Sheet, r Region, dir Direction) int {
	n := 0
	if dir == Horizontal {
		for col := r.Right; col >= r.Left; col-- {
			if !s.blankLine(Region{Top: r.Top, Left: col, Bottom: r.Bottom, Right: col}) {
				break
			}
			n++
		}
		return n
	}
	for row := r.Bottom; row >= r.Top; row-- {
		if !s.blankLine(Region{Top: row, Left: r.Left, Bottom: row, Right: r.Right}) {
			break
		}
		n++
	}
	return n
}

func (s *Sheet) blankLine(r Region) bool {
	for _, c := range s.cellsIn(r) {
		if !c.isBlank() {
			return false
		}
	}
	return true
}

// Group adds an outline level to rows (Vertical) or columns (Horizontal)
// from..to, hiding them when collapse is set.
func (m *Mutator) Group(s *Sheet, from, to int, dir Direction, collapse bool) {
	props := s.lines(dir)
	for i := from; i <= to; i++ {
		p := props[i]
		if p.Outline < 7 {
			p.Outline++
		}
		if collapse {
			p.Hidden = true
		}
		setLine(props, i, p)
	}
}
