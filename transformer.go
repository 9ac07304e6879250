package xltmpl

import (
	"fmt"
	"log/slog"
	"strings"
)

// Run holds the mutable state of one transformation of one workbook.
// Nothing in it is shared between runs.
type Run struct {
	wb            *Workbook
	blocks        Blocks
	refs          CellRefMap
	mutator       *Mutator
	fixed         map[string]struct{}
	seq           int
	registry      *TagRegistry
	loopListeners []LoopListener
	cellListeners []CellListener
	logger        *slog.Logger
}

func newRun(wb *Workbook, o *Options, reg *TagRegistry) *Run {
	refs := make(CellRefMap)
	r := &Run{
		wb:            wb,
		refs:          refs,
		mutator:       NewMutator(refs),
		fixed:         make(map[string]struct{}, len(o.fixedCollections)),
		registry:      reg,
		loopListeners: o.loopListeners,
		cellListeners: o.cellListeners,
		logger:        o.logger,
	}
	for _, name := range o.fixedCollections {
		r.fixed[name] = struct{}{}
	}
	return r
}

// nextSeq returns a sequence number unique to one loop execution.
func (r *Run) nextSeq() int {
	r.seq++
	return r.seq
}

// isFixed reports whether any of names was declared a fixed-size collection.
func (r *Run) isFixed(names []string) bool {
	for _, n := range names {
		if _, ok := r.fixed[n]; ok {
			return true
		}
	}
	return false
}

// transform processes every sheet of the workbook and then resolves the
// formula markers, so a marker may reference content of any sheet.
func (r *Run) transform(beans *Beans) error {
	for _, s := range r.wb.Sheets() {
		r.registerMarkers(s)
	}
	for _, s := range r.wb.Sheets() {
		root := r.blocks.New(Block{Region: rootRegion(s), Direction: None, Parent: NoBlock})
		tc := &TagContext{
			Sheet:     s,
			Beans:     beans,
			run:       r,
			block:     root,
			processed: make(map[*Cell]struct{}),
		}
		r.logger.Debug("transforming sheet", "sheet", s.Name, "region", tc.Block().String())
		if err := TransformBlock(tc); err != nil {
			return fmt.Errorf("sheet %q: %w", s.Name, err)
		}
	}
	return resolveFormulas(r.wb, r.refs)
}

// registerMarkers tracks the references of every formula marker on s.
func (r *Run) registerMarkers(s *Sheet) {
	for _, c := range s.Cells() {
		text, ok := c.StringValue()
		if !ok {
			continue
		}
		if marker, ok := ParseFormulaMarker(text); ok {
			r.refs.registerMarkerRefs(marker, s.Name)
		}
	}
}

// rootRegion covers the used area of s and every tag block declared on it.
func rootRegion(s *Sheet) Region {
	root := s.UsedRegion()
	for c := range s.tagged {
		for _, spec := range c.tags {
			tr := spec.RegionAt(c.row, c.col)
			root.Bottom = max(root.Bottom, tr.Bottom)
			root.Right = max(root.Right, tr.Right)
		}
	}
	return root
}

// TagContext is what a tag sees while it is processed: the sheet, the beans
// and the block the tag owns.
type TagContext struct {
	Sheet *Sheet
	Beans *Beans

	run       *Run
	block     BlockID
	processed map[*Cell]struct{}
}

// Block returns a snapshot of the current block.
func (tc *TagContext) Block() Block { return *tc.run.blocks.Get(tc.block) }

// BlockID returns the arena id of the current block.
func (tc *TagContext) BlockID() BlockID { return tc.block }

// Blocks returns the block arena of the run.
func (tc *TagContext) Blocks() *Blocks { return &tc.run.blocks }

// Mutator returns the mutator of the run.
func (tc *TagContext) Mutator() *Mutator { return tc.run.mutator }

// Workbook returns the workbook being transformed.
func (tc *TagContext) Workbook() *Workbook { return tc.run.wb }

// Drawing returns the drawing layer of the sheet, creating it on first use.
func (tc *TagContext) Drawing() *Drawing { return tc.Sheet.Drawing() }

// Logger returns the run logger.
func (tc *TagContext) Logger() *slog.Logger { return tc.run.logger }

// TransformBody transforms the content of the current block.
func (tc *TagContext) TransformBody() error { return TransformBlock(tc) }

// child returns a context for block id sharing everything else.
func (tc *TagContext) child(id BlockID) *TagContext {
	cp := *tc
	cp.block = id
	return &cp
}

// TransformBlock transforms the block of tc. It repeatedly takes the first
// tagged cell of the block in row-major order, removes that tag from the
// cell, and lets the tag process its own block, which may grow or shrink the
// current one. When no tag is left, expressions are substituted in every
// cell of the block that has not been processed yet.
func TransformBlock(tc *TagContext) error {
	run := tc.run
	for {
		region := tc.Block().Region
		c := tc.Sheet.firstTagged(region)
		if c == nil {
			break
		}
		spec := c.tags[0]
		tc.Sheet.setTags(c, c.tags[1:])

		tag, err := run.registry.Create(spec)
		if err != nil {
			return err
		}
		tagRegion := spec.RegionAt(c.row, c.col)
		if !region.ContainsRegion(tagRegion) {
			return &TagError{Tag: spec.Name, Cell: spec.Cell,
				Err: fmt.Errorf("block %s extends beyond enclosing block %s", tagRegion, region)}
		}
		id := run.blocks.New(Block{Region: tagRegion, Direction: tag.Direction(), Parent: tc.block})
		run.logger.Debug("processing tag",
			"tag", spec.Name, "sheet", tc.Sheet.Name, "cell", c.Name(), "block", tagRegion.String())
		if err := tag.Process(tc.child(id)); err != nil {
			return fmt.Errorf("process jx:%s at %s!%s: %w", spec.Name, tc.Sheet.Name, c.Name(), err)
		}
	}
	return substituteBlock(tc)
}

// substituteBlock evaluates the expressions of every unprocessed cell of the block.
func substituteBlock(tc *TagContext) error {
	for _, c := range tc.Sheet.cellsIn(tc.Block().Region) {
		if _, done := tc.processed[c]; done {
			continue
		}
		tc.processed[c] = struct{}{}
		if err := transformCell(tc, c); err != nil {
			return err
		}
	}
	return nil
}

func transformCell(tc *TagContext, c *Cell) error {
	listeners := tc.run.cellListeners
	if len(listeners) > 0 {
		// position variables for listeners and cell expressions
		rv := NewRunVar(tc.Beans, "_row", "_col")
		defer rv.Close()
		rv.Set("_row", c.row+1)
		rv.Set("_col", c.col)
		for _, l := range listeners {
			if !l.BeforeCell(tc, c) {
				for _, l2 := range listeners {
					l2.AfterCell(tc, c)
				}
				return nil
			}
		}
	}

	if err := substituteCell(tc.Beans, c); err != nil {
		return fmt.Errorf("cell %s!%s: %w", tc.Sheet.Name, c.Name(), err)
	}

	for _, l := range listeners {
		l.AfterCell(tc, c)
	}
	return nil
}

// substituteCell replaces the expressions of one cell by their values.
// Formula markers are left for formula resolution. Native formulas get
// their embedded expressions replaced by text.
func substituteCell(beans *Beans, c *Cell) error {
	if c.Formula != "" && beans.HasExpression(c.Formula) {
		v, _, err := beans.EvaluateCellValue(c.Formula)
		if err != nil {
			return err
		}
		c.Formula = strings.TrimPrefix(fmt.Sprint(v), "=")
		return nil
	}

	text, ok := c.StringValue()
	if !ok || !beans.HasExpression(text) {
		return nil
	}
	if _, isMarker := ParseFormulaMarker(text); isMarker {
		return nil
	}
	v, typ, err := beans.EvaluateCellValue(text)
	if err != nil {
		return err
	}
	if h, ok := v.(HyperlinkValue); ok {
		c.Hyperlink = &h
		c.Value = h.String()
		c.Type = CellString
		return nil
	}
	c.Value = v
	c.Type = typ
	return nil
}
