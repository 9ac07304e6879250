package xltmpl

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CellRef represents a single cell reference in a workbook.
type CellRef struct {
	Sheet string // sheet name (empty = current sheet)
	Row   int    // 0-based row index
	Col   int    // 0-based column index
}

// NewCellRef creates a CellRef with explicit sheet, row, col.
func NewCellRef(sheet string, row, col int) CellRef {
	return CellRef{Sheet: sheet, Row: row, Col: col}
}

// ParseCellRef parses a cell reference string like "A1", "Sheet1!B5", or "$A$1".
func ParseCellRef(s string) (CellRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return CellRef{}, fmt.Errorf("empty cell reference")
	}

	var sheet string
	cellPart := s
	if idx := strings.LastIndex(s, "!"); idx >= 0 {
		sheet = strings.Trim(s[:idx], "'")
		cellPart = s[idx+1:]
	}

	cellPart = strings.ReplaceAll(cellPart, "$", "")
	if cellPart == "" {
		return CellRef{}, fmt.Errorf("invalid cell reference: %q", s)
	}

	col, row, err := excelize.CellNameToCoordinates(cellPart)
	if err != nil {
		return CellRef{}, fmt.Errorf("invalid cell reference %q: %w", s, err)
	}
	return CellRef{Sheet: sheet, Row: row - 1, Col: col - 1}, nil
}

// String formats the CellRef as "Sheet1!A1" or "A1" if no sheet.
func (c CellRef) String() string {
	if c.Sheet != "" {
		return c.Sheet + "!" + c.CellName()
	}
	return c.CellName()
}

// CellName returns just the cell part like "A1" without sheet name.
func (c CellRef) CellName() string {
	return cellName(c.Row, c.Col)
}

// cellName converts 0-based coordinates into an A1 name.
func cellName(row, col int) string {
	name, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row+1, col+1)
	}
	return name
}

// ColToName converts a 0-based column index to a column name.
// 0→"A", 25→"Z", 26→"AA"
func ColToName(col int) string {
	name, err := excelize.ColumnNumberToName(col + 1)
	if err != nil {
		return ""
	}
	return name
}

// NameToCol converts a column name to a 0-based column index.
func NameToCol(name string) (int, error) {
	n, err := excelize.ColumnNameToNumber(name)
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

// Region is an inclusive rectangle of 0-based cell coordinates.
type Region struct {
	Top, Left, Bottom, Right int
}

// Height is the number of rows covered by the region.
func (r Region) Height() int { return r.Bottom - r.Top + 1 }

// Width is the number of columns covered by the region.
func (r Region) Width() int { return r.Right - r.Left + 1 }

// Empty reports whether the region covers no cells.
func (r Region) Empty() bool { return r.Bottom < r.Top || r.Right < r.Left }

// Contains reports whether the cell at row, col lies inside the region.
func (r Region) Contains(row, col int) bool {
	return row >= r.Top && row <= r.Bottom && col >= r.Left && col <= r.Right
}

// ContainsRegion reports whether o lies entirely inside r.
func (r Region) ContainsRegion(o Region) bool {
	return o.Top >= r.Top && o.Bottom <= r.Bottom && o.Left >= r.Left && o.Right <= r.Right
}

// Overlaps reports whether r and o share at least one cell.
func (r Region) Overlaps(o Region) bool {
	return r.Top <= o.Bottom && o.Top <= r.Bottom && r.Left <= o.Right && o.Left <= r.Right
}

// Translate returns the region moved by dr rows and dc columns.
func (r Region) Translate(dr, dc int) Region {
	return Region{Top: r.Top + dr, Left: r.Left + dc, Bottom: r.Bottom + dr, Right: r.Right + dc}
}

// String formats the region as "A1:C4".
func (r Region) String() string {
	return cellName(r.Top, r.Left) + ":" + cellName(r.Bottom, r.Right)
}

// ParseRegion parses "A1:C4" (or a single cell name) into a Region.
func ParseRegion(s string) (Region, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	first, err := ParseCellRef(parts[0])
	if err != nil {
		return Region{}, err
	}
	last := first
	if len(parts) == 2 {
		if last, err = ParseCellRef(parts[1]); err != nil {
			return Region{}, err
		}
	}
	return Region{
		Top:    min(first.Row, last.Row),
		Left:   min(first.Col, last.Col),
		Bottom: max(first.Row, last.Row),
		Right:  max(first.Col, last.Col),
	}, nil
}
