package xltmpl

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	defaultRowHeight = 15
	defaultColWidth  = 9.140625
)

// Workbook is the in-memory model of every sheet of an excelize file.
// OpenWorkbook reads the file once; Flush writes the model back.
type Workbook struct {
	file   *excelize.File
	sheets []*Sheet
	byName map[string]*Sheet
	styles map[styleKey]int
}

// OpenWorkbook loads values, types, styles, formulas, comments, merged
// regions, hyperlinks and row/column properties of every sheet of f.
// Template tags found in comments are parsed here; a malformed tag line
// fails the load.
func OpenWorkbook(f *excelize.File) (*Workbook, error) {
	wb := &Workbook{
		file:   f,
		byName: make(map[string]*Sheet),
		styles: make(map[styleKey]int),
	}
	for _, name := range f.GetSheetList() {
		s, err := loadSheet(f, name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		wb.sheets = append(wb.sheets, s)
		wb.byName[name] = s
	}
	return wb, nil
}

// File returns the underlying excelize file.
func (wb *Workbook) File() *excelize.File { return wb.file }

// Sheets returns the sheets in workbook order.
func (wb *Workbook) Sheets() []*Sheet { return wb.sheets }

// Sheet returns the sheet with the given name or nil.
func (wb *Workbook) Sheet(name string) *Sheet { return wb.byName[name] }

// validateTags builds every tag declared in the workbook once, without
// data, and reports all malformed ones together.
func (wb *Workbook) validateTags(reg *TagRegistry) error {
	var errs []error
	for _, s := range wb.sheets {
		for _, c := range s.Cells() {
			for _, spec := range c.tags {
				if _, err := reg.Create(spec); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}

func loadSheet(f *excelize.File, name string) (*Sheet, error) {
	s := NewSheet(name)
	if err := loadCells(f, s); err != nil {
		return nil, err
	}

	merges, err := f.GetMergeCells(name, true)
	if err != nil {
		return nil, fmt.Errorf("read merged cells: %w", err)
	}
	for _, m := range merges {
		r, err := ParseRegion(m.GetStartAxis() + ":" + m.GetEndAxis())
		if err != nil {
			return nil, err
		}
		s.merges = append(s.merges, r)
	}
	s.origMerges = slices.Clone(s.merges)

	if err := loadComments(f, s); err != nil {
		return nil, err
	}
	if err := loadLines(f, s); err != nil {
		return nil, err
	}
	return s, nil
}

// loadCells streams the rows of the sheet. Every cell element is visited,
// including those holding only a style or a formula without a cached value.
func loadCells(f *excelize.File, s *Sheet) error {
	rows, err := f.Rows(s.Name)
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	defer rows.Close()

	for row := 0; rows.Next(); row++ {
		values, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return fmt.Errorf("read row %d: %w", row+1, err)
		}
		for col, raw := range values {
			if err := loadCell(f, s, row, col, raw); err != nil {
				return err
			}
		}
	}
	return rows.Error()
}

func loadCell(f *excelize.File, s *Sheet, row, col int, raw string) error {
	name := cellName(row, col)
	formula, err := f.GetCellFormula(s.Name, name)
	if err != nil {
		return fmt.Errorf("read formula %s: %w", name, err)
	}
	style, err := f.GetCellStyle(s.Name, name)
	if err != nil {
		return fmt.Errorf("read style %s: %w", name, err)
	}
	hasLink, link, err := f.GetCellHyperLink(s.Name, name)
	if err != nil {
		return fmt.Errorf("read hyperlink %s: %w", name, err)
	}
	if raw == "" && formula == "" && style == 0 && !hasLink {
		return nil
	}

	c := &Cell{StyleID: style}
	switch {
	case formula != "":
		c.Formula = formula
		c.Type = CellFormula
	case raw != "":
		typ, err := f.GetCellType(s.Name, name)
		if err != nil {
			return fmt.Errorf("read type %s: %w", name, err)
		}
		c.Value, c.Type = typedValue(raw, typ)
	}
	if hasLink {
		if !strings.Contains(link, "://") && !strings.HasPrefix(link, "mailto:") {
			link = "#" + link
		}
		c.Hyperlink = &HyperlinkValue{URL: link}
		s.origLinks = append(s.origLinks, name)
	}
	s.put(c, row, col)
	s.origCells[cellPos{row, col}] = struct{}{}
	return nil
}

// typedValue converts a raw cell value into a Go value. Cells without an
// explicit type are numbers.
func typedValue(raw string, typ excelize.CellType) (any, CellType) {
	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), CellBoolean
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return v, CellNumber
		}
	}
	return raw, CellString
}

// loadComments attaches comments to cells. Comments carrying template lines
// become tags and parameters; they never reach the output.
func loadComments(f *excelize.File, s *Sheet) error {
	comments, err := f.GetComments(s.Name)
	if err != nil {
		return fmt.Errorf("read comments: %w", err)
	}
	for _, cm := range comments {
		ref, err := ParseCellRef(cm.Cell)
		if err != nil {
			return err
		}
		ref.Sheet = s.Name
		s.origComments = append(s.origComments, cm.Cell)

		var text strings.Builder
		text.WriteString(cm.Text)
		for _, run := range cm.Paragraph {
			text.WriteString(run.Text)
		}
		c := s.EnsureCell(ref.Row, ref.Col)
		if !hasTemplateLines(text.String()) {
			c.Comment, c.Author = text.String(), cm.Author
			continue
		}
		specs, params, err := ParseComment(text.String(), ref)
		if err != nil {
			return err
		}
		s.setTags(c, specs)
		c.Params = params
	}
	return nil
}

// loadLines reads heights, widths, outline levels and visibility of every
// row and column of the used area.
func loadLines(f *excelize.File, s *Sheet) error {
	used := s.UsedRegion()
	for row := 0; row <= used.Bottom; row++ {
		h, err := f.GetRowHeight(s.Name, row+1)
		if err != nil {
			return fmt.Errorf("read row %d height: %w", row+1, err)
		}
		level, err := f.GetRowOutlineLevel(s.Name, row+1)
		if err != nil {
			return fmt.Errorf("read row %d outline: %w", row+1, err)
		}
		visible, err := f.GetRowVisible(s.Name, row+1)
		if err != nil {
			return fmt.Errorf("read row %d visibility: %w", row+1, err)
		}
		p := LineProps{Outline: level, Hidden: !visible}
		if h != defaultRowHeight {
			p.Size = h
		}
		s.SetRowProps(row, p)
	}
	for col := 0; col <= used.Right; col++ {
		colName := ColToName(col)
		w, err := f.GetColWidth(s.Name, colName)
		if err != nil {
			return fmt.Errorf("read column %s width: %w", colName, err)
		}
		level, err := f.GetColOutlineLevel(s.Name, colName)
		if err != nil {
			return fmt.Errorf("read column %s outline: %w", colName, err)
		}
		visible, err := f.GetColVisible(s.Name, colName)
		if err != nil {
			return fmt.Errorf("read column %s visibility: %w", colName, err)
		}
		p := LineProps{Outline: level, Hidden: !visible}
		if w != defaultColWidth {
			p.Size = w
		}
		s.SetColProps(col, p)
	}
	for k, v := range s.rows {
		s.origRows[k] = v
	}
	for k, v := range s.cols {
		s.origCols[k] = v
	}
	return nil
}

// Flush writes every sheet of the model back into the excelize file.
func (wb *Workbook) Flush() error {
	for _, s := range wb.sheets {
		if err := wb.flushSheet(s); err != nil {
			return fmt.Errorf("write sheet %q: %w", s.Name, err)
		}
	}
	return nil
}

func (wb *Workbook) flushSheet(s *Sheet) error {
	f := wb.file
	name := s.Name

	for _, m := range s.origMerges {
		if err := f.UnmergeCell(name, cellName(m.Top, m.Left), cellName(m.Bottom, m.Right)); err != nil {
			return fmt.Errorf("unmerge %s: %w", m, err)
		}
	}
	for _, cell := range s.origComments {
		if err := f.DeleteComment(name, cell); err != nil {
			return fmt.Errorf("delete comment %s: %w", cell, err)
		}
	}

	for _, cell := range s.origLinks {
		if err := f.SetCellHyperLink(name, cell, "", "None"); err != nil {
			return fmt.Errorf("clear hyperlink %s: %w", cell, err)
		}
	}

	// blank every template position first; this also drops formulas
	for pos := range s.origCells {
		cell := cellName(pos.row, pos.col)
		if err := f.SetCellValue(name, cell, nil); err != nil {
			return fmt.Errorf("clear %s: %w", cell, err)
		}
		if s.cells[pos] == nil {
			if err := f.SetCellStyle(name, cell, cell, 0); err != nil {
				return fmt.Errorf("clear style %s: %w", cell, err)
			}
		}
	}

	for _, c := range s.Cells() {
		if err := writeCell(f, s, c); err != nil {
			return fmt.Errorf("write %s: %w", c.Name(), err)
		}
	}

	for _, m := range s.merges {
		if m.Height() == 1 && m.Width() == 1 {
			continue
		}
		if err := f.MergeCell(name, cellName(m.Top, m.Left), cellName(m.Bottom, m.Right)); err != nil {
			return fmt.Errorf("merge %s: %w", m, err)
		}
	}

	if err := wb.flushLines(s); err != nil {
		return err
	}

	if s.drawing != nil {
		for _, p := range s.drawing.Pictures() {
			if !s.alive(p.anchor) {
				continue
			}
			err := f.AddPictureFromBytes(name, p.anchor.Name(), &excelize.Picture{
				Extension: p.Extension,
				File:      p.Data,
				Format:    &excelize.GraphicOptions{ScaleX: p.ScaleX, ScaleY: p.ScaleY},
			})
			if err != nil {
				return fmt.Errorf("add picture at %s: %w", p.anchor.Name(), err)
			}
		}
	}
	return nil
}

func writeCell(f *excelize.File, s *Sheet, c *Cell) error {
	name := c.Name()
	_, wasTemplate := s.origCells[cellPos{c.row, c.col}]
	if c.StyleID != 0 || wasTemplate {
		if err := f.SetCellStyle(s.Name, name, name, c.StyleID); err != nil {
			return err
		}
	}
	switch {
	case c.Formula != "":
		if err := f.SetCellFormula(s.Name, name, c.Formula); err != nil {
			return err
		}
	case c.Value != nil:
		if err := f.SetCellValue(s.Name, name, c.Value); err != nil {
			return err
		}
	}
	if c.Hyperlink != nil && c.Hyperlink.URL != "" {
		if err := writeHyperlink(f, s.Name, name, *c.Hyperlink); err != nil {
			return err
		}
	}
	if c.Comment != "" {
		author := c.Author
		if author == "" {
			author = "xltmpl"
		}
		if err := f.AddComment(s.Name, excelize.Comment{Cell: name, Author: author, Text: c.Comment}); err != nil {
			return err
		}
	}
	return nil
}

// writeHyperlink writes an external link, or an in-workbook location when
// the URL starts with "#".
func writeHyperlink(f *excelize.File, sheet, cell string, h HyperlinkValue) error {
	var opts []excelize.HyperlinkOpts
	if h.Display != "" {
		display := h.Display
		opts = append(opts, excelize.HyperlinkOpts{Display: &display})
	}
	if loc, ok := strings.CutPrefix(h.URL, "#"); ok {
		return f.SetCellHyperLink(sheet, cell, loc, "Location", opts...)
	}
	return f.SetCellHyperLink(sheet, cell, h.URL, "External", opts...)
}

// flushLines writes row and column properties. Lines that lost their custom
// size go back to the default; outline levels can only be raised.
func (wb *Workbook) flushLines(s *Sheet) error {
	f := wb.file
	for _, row := range lineKeys(s.rows, s.origRows) {
		p, orig := s.rows[row], s.origRows[row]
		switch {
		case p.Size > 0:
			if err := f.SetRowHeight(s.Name, row+1, p.Size); err != nil {
				return fmt.Errorf("set row %d height: %w", row+1, err)
			}
		case orig.Size > 0:
			if err := f.SetRowHeight(s.Name, row+1, -1); err != nil {
				return fmt.Errorf("reset row %d height: %w", row+1, err)
			}
		}
		if p.Outline > 0 && p.Outline != orig.Outline {
			if err := f.SetRowOutlineLevel(s.Name, row+1, p.Outline); err != nil {
				return fmt.Errorf("set row %d outline: %w", row+1, err)
			}
		}
		if p.Hidden != orig.Hidden {
			if err := f.SetRowVisible(s.Name, row+1, !p.Hidden); err != nil {
				return fmt.Errorf("set row %d visibility: %w", row+1, err)
			}
		}
	}
	for _, col := range lineKeys(s.cols, s.origCols) {
		p, orig := s.cols[col], s.origCols[col]
		colName := ColToName(col)
		switch {
		case p.Size > 0 && p.Size != orig.Size:
			if err := f.SetColWidth(s.Name, colName, colName, p.Size); err != nil {
				return fmt.Errorf("set column %s width: %w", colName, err)
			}
		case p.Size == 0 && orig.Size > 0:
			if err := f.SetColWidth(s.Name, colName, colName, defaultColWidth); err != nil {
				return fmt.Errorf("reset column %s width: %w", colName, err)
			}
		}
		if p.Outline > 0 && p.Outline != orig.Outline {
			if err := f.SetColOutlineLevel(s.Name, colName, p.Outline); err != nil {
				return fmt.Errorf("set column %s outline: %w", colName, err)
			}
		}
		if p.Hidden != orig.Hidden {
			if err := f.SetColVisible(s.Name, colName, !p.Hidden); err != nil {
				return fmt.Errorf("set column %s visibility: %w", colName, err)
			}
		}
	}
	return nil
}

// lineKeys returns the sorted union of the keys of a and b.
func lineKeys(a, b map[int]LineProps) []int {
	keys := make([]int, 0, len(a)+len(b))
	for k := range a {
		keys = append(keys, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
