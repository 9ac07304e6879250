package xltmpl

import (
	"slices"
)

// CellType represents the type of data in a cell.
type CellType int

const (
	CellBlank CellType = iota
	CellString
	CellNumber
	CellBoolean
	CellFormula
)

// String returns a human-readable name for the CellType.
func (ct CellType) String() string {
	switch ct {
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	case CellBoolean:
		return "boolean"
	case CellFormula:
		return "formula"
	default:
		return "blank"
	}
}

// Cell is one cell of the in-memory sheet. A cell keeps its pointer identity
// while it is shifted around, so anything anchored to it follows the move.
type Cell struct {
	Value     any
	Type      CellType
	Formula   string // native formula text, copied verbatim
	StyleID   int
	Comment   string // plain comment text, template tags removed
	Author    string
	Hyperlink *HyperlinkValue
	Params    *ParamsData

	tags     []*TagSpec // unprocessed tags, outermost first
	row, col int
}

// Row returns the current 0-based row of the cell.
func (c *Cell) Row() int { return c.row }

// Col returns the current 0-based column of the cell.
func (c *Cell) Col() int { return c.col }

// Name returns the current A1 name of the cell.
func (c *Cell) Name() string { return cellName(c.row, c.col) }

// Tags returns the tags still waiting to be processed on this cell.
func (c *Cell) Tags() []*TagSpec { return c.tags }

// StringValue returns the value when it is a string.
func (c *Cell) StringValue() (string, bool) {
	s, ok := c.Value.(string)
	return s, ok
}

// isBlank reports whether the cell carries no content. Style alone does not count.
func (c *Cell) isBlank() bool {
	if c == nil {
		return true
	}
	if c.Formula != "" || len(c.tags) > 0 || c.Hyperlink != nil {
		return false
	}
	switch v := c.Value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}

// clone returns a detached copy of the cell. Tag specs are immutable and shared.
func (c *Cell) clone() *Cell {
	cp := *c
	cp.tags = slices.Clone(c.tags)
	if c.Hyperlink != nil {
		h := *c.Hyperlink
		cp.Hyperlink = &h
	}
	return &cp
}

// clearContent blanks the cell but keeps its style.
func (c *Cell) clearContent() {
	c.Value = nil
	c.Type = CellBlank
	c.Formula = ""
	c.Comment = ""
	c.Hyperlink = nil
	c.tags = nil
}

// LineProps holds the size and outline state of a row or column.
// A zero Size means the sheet default.
type LineProps struct {
	Size    float64
	Outline uint8
	Hidden  bool
}

func (p LineProps) isZero() bool { return p == LineProps{} }

type cellPos struct{ row, col int }

// Sheet is the in-memory model of one worksheet.
type Sheet struct {
	Name string

	cells   map[cellPos]*Cell
	tagged  map[*Cell]struct{}
	rows    map[int]LineProps
	cols    map[int]LineProps
	merges  []Region
	drawing *Drawing

	// state read from the file, used by Flush to clear what moved away
	origCells    map[cellPos]struct{}
	origMerges   []Region
	origComments []string
	origLinks    []string
	origRows     map[int]LineProps
	origCols     map[int]LineProps
}

// NewSheet creates an empty in-memory sheet.
func NewSheet(name string) *Sheet {
	return &Sheet{
		Name:      name,
		cells:     make(map[cellPos]*Cell),
		tagged:    make(map[*Cell]struct{}),
		rows:      make(map[int]LineProps),
		cols:      make(map[int]LineProps),
		origCells: make(map[cellPos]struct{}),
		origRows:  make(map[int]LineProps),
		origCols:  make(map[int]LineProps),
	}
}

// Cell returns the cell at row, col or nil.
func (s *Sheet) Cell(row, col int) *Cell {
	return s.cells[cellPos{row, col}]
}

// CellByName returns the cell at an A1 name or nil.
func (s *Sheet) CellByName(name string) *Cell {
	ref, err := ParseCellRef(name)
	if err != nil {
		return nil
	}
	return s.Cell(ref.Row, ref.Col)
}

// EnsureCell returns the cell at row, col, creating a blank one when missing.
func (s *Sheet) EnsureCell(row, col int) *Cell {
	if c := s.Cell(row, col); c != nil {
		return c
	}
	c := &Cell{}
	s.put(c, row, col)
	return c
}

// put places c at row, col, dropping whatever was there.
func (s *Sheet) put(c *Cell, row, col int) {
	pos := cellPos{row, col}
	if old, ok := s.cells[pos]; ok && old != c {
		delete(s.tagged, old)
	}
	c.row, c.col = row, col
	s.cells[pos] = c
	if len(c.tags) > 0 {
		s.tagged[c] = struct{}{}
	}
}

// remove deletes the cell at row, col.
func (s *Sheet) remove(row, col int) {
	pos := cellPos{row, col}
	if c, ok := s.cells[pos]; ok {
		delete(s.tagged, c)
		delete(s.cells, pos)
	}
}

// alive reports whether c is still placed on the sheet.
func (s *Sheet) alive(c *Cell) bool {
	return s.cells[cellPos{c.row, c.col}] == c
}

// setTags replaces the pending tags of c and keeps the tagged index current.
func (s *Sheet) setTags(c *Cell, tags []*TagSpec) {
	c.tags = tags
	if len(tags) > 0 && s.alive(c) {
		s.tagged[c] = struct{}{}
	} else {
		delete(s.tagged, c)
	}
}

// cellsIn returns the cells inside r in row-major order.
func (s *Sheet) cellsIn(r Region) []*Cell {
	var out []*Cell
	if r.Height()*r.Width() <= len(s.cells) {
		for row := r.Top; row <= r.Bottom; row++ {
			for col := r.Left; col <= r.Right; col++ {
				if c := s.cells[cellPos{row, col}]; c != nil {
					out = append(out, c)
				}
			}
		}
		return out
	}
	for pos, c := range s.cells {
		if r.Contains(pos.row, pos.col) {
			out = append(out, c)
		}
	}
	sortRowMajor(out)
	return out
}

// Cells returns every cell of the sheet in row-major order.
func (s *Sheet) Cells() []*Cell {
	out := make([]*Cell, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, c)
	}
	sortRowMajor(out)
	return out
}

func sortRowMajor(cells []*Cell) {
	slices.SortFunc(cells, func(a, b *Cell) int {
		if a.row != b.row {
			return a.row - b.row
		}
		return a.col - b.col
	})
}

// firstTagged returns the row-major first cell inside r that still has tags.
func (s *Sheet) firstTagged(r Region) *Cell {
	var best *Cell
	for c := range s.tagged {
		if !r.Contains(c.row, c.col) {
			continue
		}
		if best == nil || c.row < best.row || (c.row == best.row && c.col < best.col) {
			best = c
		}
	}
	return best
}

// UsedRegion returns the smallest region holding every cell and merge.
// An empty sheet reports A1.
func (s *Sheet) UsedRegion() Region {
	r := Region{Top: 0, Left: 0, Bottom: -1, Right: -1}
	for pos := range s.cells {
		r.Bottom = max(r.Bottom, pos.row)
		r.Right = max(r.Right, pos.col)
	}
	for _, m := range s.merges {
		r.Bottom = max(r.Bottom, m.Bottom)
		r.Right = max(r.Right, m.Right)
	}
	r.Bottom = max(r.Bottom, 0)
	r.Right = max(r.Right, 0)
	return r
}

// Merges returns the merged regions of the sheet.
func (s *Sheet) Merges() []Region { return slices.Clone(s.merges) }

// AddMerge records a merged region, replacing merges it overlaps.
func (s *Sheet) AddMerge(r Region) {
	s.merges = slices.DeleteFunc(s.merges, func(m Region) bool { return m.Overlaps(r) })
	s.merges = append(s.merges, r)
}

// RowProps returns the size and outline state of a row.
func (s *Sheet) RowProps(row int) LineProps { return s.rows[row] }

// ColProps returns the size and outline state of a column.
func (s *Sheet) ColProps(col int) LineProps { return s.cols[col] }

// SetRowProps replaces the size and outline state of a row.
func (s *Sheet) SetRowProps(row int, p LineProps) { setLine(s.rows, row, p) }

// SetColProps replaces the size and outline state of a column.
func (s *Sheet) SetColProps(col int, p LineProps) { setLine(s.cols, col, p) }

func setLine(m map[int]LineProps, idx int, p LineProps) {
	if p.isZero() {
		delete(m, idx)
		return
	}
	m[idx] = p
}

// lines returns the row or column property map for a direction.
func (s *Sheet) lines(dir Direction) map[int]LineProps {
	if dir == Horizontal {
		return s.cols
	}
	return s.rows
}

// Drawing returns the drawing layer of the sheet, creating it on first use.
func (s *Sheet) Drawing() *Drawing {
	if s.drawing == nil {
		s.drawing = &Drawing{}
	}
	return s.drawing
}

// Drawing holds pictures placed on a sheet. Each picture is anchored to a
// cell and lands wherever that cell ends up.
type Drawing struct {
	pictures []*Picture
}

// Picture is an image anchored at a cell.
type Picture struct {
	Data      []byte
	Extension string
	ScaleX    float64
	ScaleY    float64

	anchor *Cell
}

// Anchor returns the cell the picture is attached to.
func (p *Picture) Anchor() *Cell { return p.anchor }

// Add anchors a picture at cell c.
func (d *Drawing) Add(c *Cell, p Picture) {
	p.anchor = c
	d.pictures = append(d.pictures, &p)
}

// Pictures returns the pictures on the layer.
func (d *Drawing) Pictures() []*Picture { return d.pictures }
