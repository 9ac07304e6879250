package xltmpl

import (
	"fmt"
	"iter"
)

// PastEndAction says what happens to iteration blocks beyond the end of the
// collection in fixed mode.
type PastEndAction int

const (
	PastEndClear  PastEndAction = iota // blank the cells, keep styles
	PastEndRemove                      // delete the cells, nothing shifts
)

// loopSource is the part of a loop tag that knows its collection.
type loopSource interface {
	// prepare evaluates the collection against the current beans.
	prepare(tc *TagContext) error
	// collectionNames are the names checked against the fixed-size registry.
	collectionNames() []string
	// numIterations is the number of iteration blocks to lay out.
	numIterations(fixed bool, limit int) int
	// collectionSize is the number of real items.
	collectionSize() int
	items() iter.Seq[any]
	beforeItem(beans *Beans, item any, index int)
	afterItem(beans *Beans, item any, index int)
}

// iterationCount applies a limit to a collection size. Without fixed mode
// the limit only caps; in fixed mode it is the exact number of blocks.
func iterationCount(size, limit int, fixed bool) int {
	switch {
	case limit > 0 && fixed:
		return limit
	case limit > 0:
		return min(size, limit)
	default:
		return size
	}
}

// reservedSlots is the number of iteration blocks a template lays out in
// advance for a limit without fixed mode. The loop fills them in place and
// closes the gap left by the unused ones.
func reservedSlots(limit int, fixed bool) int {
	if fixed || limit <= 0 {
		return 0
	}
	return limit
}

type loopState int

const (
	loopStart loopState = iota
	loopDetermineFixed
	loopComputeIterations
	loopZeroIterations
	loopReplicate
	loopDone
)

// loopTag drives a repeating block. The block is laid out once per
// iteration along its direction; each copy is transformed with the
// iteration's variables bound, and the growth of one copy pushes the
// following copies along.
type loopTag struct {
	spec            *TagSpec
	src             loopSource
	fixed           bool
	pastEnd         PastEndAction
	copyRight       bool
	limit           string
	groupDir        Direction
	groupSet        bool
	collapse        bool
	onLoopProcessed string
	varStatus       string
}

// newLoopTag reads the attributes shared by every loop tag.
func newLoopTag(spec *TagSpec, src loopSource) (*loopTag, error) {
	if err := requireBody(spec); err != nil {
		return nil, err
	}
	t := &loopTag{spec: spec, src: src}
	var err error
	if t.fixed, err = boolAttr(spec, "fixed", false); err != nil {
		return nil, err
	}
	if t.copyRight, err = boolAttr(spec, "copyRight", false); err != nil {
		return nil, err
	}
	if t.collapse, err = boolAttr(spec, "collapse", false); err != nil {
		return nil, err
	}
	pastEnd, err := enumAttr(spec, "pastEndAction", "clear", "clear", "remove")
	if err != nil {
		return nil, err
	}
	if pastEnd == "remove" {
		t.pastEnd = PastEndRemove
	}
	groupDir, err := enumAttr(spec, "groupDir", "none", "rows", "cols", "none")
	if err != nil {
		return nil, err
	}
	switch groupDir {
	case "rows":
		t.groupDir, t.groupSet = Vertical, true
	case "cols":
		t.groupDir, t.groupSet = Horizontal, true
	}
	if t.limit, err = intExprAttr(spec, "limit"); err != nil {
		return nil, err
	}
	if t.onLoopProcessed, err = exprAttr(spec, "onLoopProcessed"); err != nil {
		return nil, err
	}
	t.varStatus = spec.Attrs["varStatus"]
	return t, nil
}

func (t *loopTag) Name() string { return t.spec.Name }

func (t *loopTag) Direction() Direction { return directionOf(t.copyRight) }

// Process runs the loop state machine.
func (t *loopTag) Process(tc *TagContext) error {
	var (
		fixed     bool
		limit     int
		reserved  int
		n         int
		listeners []LoopListener
	)
	state := loopStart
	for {
		switch state {
		case loopStart:
			if err := t.src.prepare(tc); err != nil {
				return err
			}
			if t.limit != "" {
				v, err := evalInt(tc.Beans, t.spec, "limit", t.limit)
				if err != nil {
					return err
				}
				limit = v
			}
			var err error
			if listeners, err = t.listeners(tc); err != nil {
				return err
			}
			state = loopDetermineFixed

		case loopDetermineFixed:
			fixed = t.fixed || tc.run.isFixed(t.src.collectionNames())
			reserved = reservedSlots(limit, fixed)
			state = loopComputeIterations

		case loopComputeIterations:
			n = t.src.numIterations(fixed, limit)
			if n == 0 {
				state = loopZeroIterations
			} else {
				state = loopReplicate
			}

		case loopZeroIterations:
			if fixed {
				t.applyPastEnd(tc, tc.Block().Region)
			} else {
				t.removeBlock(tc, reserved)
			}
			state = loopDone

		case loopReplicate:
			if err := t.replicate(tc, n, fixed, reserved, listeners); err != nil {
				return err
			}
			state = loopDone

		case loopDone:
			return nil
		}
	}
}

// listeners returns the run listeners plus the onLoopProcessed bean.
func (t *loopTag) listeners(tc *TagContext) ([]LoopListener, error) {
	out := tc.run.loopListeners
	if t.onLoopProcessed == "" {
		return out, nil
	}
	v, err := tc.Beans.Evaluate(t.onLoopProcessed)
	if err != nil {
		return nil, attrError(t.spec, "onLoopProcessed", err)
	}
	switch l := v.(type) {
	case LoopListener:
		return append(out[:len(out):len(out)], l), nil
	case func(LoopEvent):
		return append(out[:len(out):len(out)], LoopListenerFunc(l)), nil
	}
	return nil, attrError(t.spec, "onLoopProcessed", fmt.Errorf("%T does not implement LoopListener", v))
}

// removeBlock deletes the block, with the slots reserved after it, and
// closes the gap it leaves.
func (t *loopTag) removeBlock(tc *TagContext, reserved int) {
	run := tc.run
	blk := tc.Block()
	if reserved > 1 {
		parent := run.blocks.Get(blk.Parent).Region
		extra := slotsAfter(blk.Region, blk.Region, blk.Direction, reserved-1, parent)
		if !extra.Empty() {
			blk.Right = max(blk.Right, extra.Right)
			blk.Bottom = max(blk.Bottom, extra.Bottom)
		}
	}
	run.mutator.DeleteBlock(tc.Sheet, blk.Region)
	PlanRemoval(&run.blocks, tc.block, blk.Direction).Execute(run.mutator, tc.Sheet)
}

func (t *loopTag) applyPastEnd(tc *TagContext, r Region) {
	if t.pastEnd == PastEndRemove {
		tc.run.mutator.DeleteBlock(tc.Sheet, r)
		return
	}
	tc.run.mutator.ClearBlock(tc.Sheet, r)
}

// replicate lays out n iteration blocks and transforms each one. With
// reserved slots the blocks go into space the template already holds.
func (t *loopTag) replicate(tc *TagContext, n int, fixed bool, reserved int, listeners []LoopListener) error {
	run := tc.run
	s := tc.Sheet
	if !fixed && reserved == 0 {
		PlanShift(&run.blocks, s, run.mutator, tc.block, n).Execute(run.mutator, s)
	}

	blk := tc.Block()
	tmpl, dir, parentID := blk.Region, blk.Direction, blk.Parent
	seq := run.nextSeq()
	ids := make([]BlockID, n)
	for i := range n {
		r := run.mutator.CopyBlock(s, tmpl, dir, i, seq)
		ids[i] = run.blocks.New(Block{Region: r, Direction: dir, Parent: parentID})
	}

	size := t.src.collectionSize()
	last := min(n, size) - 1
	next, stop := iter.Pull(t.src.items())
	defer stop()

	for i, id := range ids {
		before := run.blocks.Get(id).Region
		if i >= size {
			t.applyPastEnd(tc, before)
			continue
		}
		item, ok := next()
		if !ok {
			t.applyPastEnd(tc, before)
			continue
		}

		status := NewRunVar(tc.Beans, t.varStatus)
		status.Set(t.varStatus, LoopStatus{Index: i, First: i == 0, Last: i == last})
		t.src.beforeItem(tc.Beans, item, i)

		err := TransformBlock(tc.child(id))

		after := run.blocks.Get(id).Region
		if dc, dr := after.Right-before.Right, after.Bottom-before.Bottom; dc != 0 || dr != 0 {
			for _, later := range ids[i+1:] {
				run.blocks.Get(later).ReactToGrowth(before, dc, dr)
			}
		}
		if err == nil {
			ev := LoopEvent{Beans: tc.Beans, Sheet: s, Block: *run.blocks.Get(id), Index: i}
			for _, l := range listeners {
				l.OnLoopProcessed(ev)
			}
		}
		t.src.afterItem(tc.Beans, item, i)
		status.Close()
		if err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
	}

	if reserved > n {
		lastR := run.blocks.Get(ids[n-1]).Region
		gap := slotsAfter(lastR, tmpl, dir, reserved-n, run.blocks.Get(parentID).Region)
		if !gap.Empty() {
			gapID := run.blocks.New(Block{Region: gap, Direction: dir, Parent: parentID})
			run.mutator.DeleteBlock(s, gap)
			PlanRemoval(&run.blocks, gapID, dir).Execute(run.mutator, s)
		}
	}

	own := run.blocks.Get(tc.block)
	for _, id := range ids {
		r := run.blocks.Get(id).Region
		own.Right = max(own.Right, r.Right)
		own.Bottom = max(own.Bottom, r.Bottom)
	}

	if t.groupSet {
		first, lastBlk := run.blocks.Get(ids[0]).Region, run.blocks.Get(ids[n-1]).Region
		if t.groupDir == Horizontal {
			run.mutator.Group(s, first.Left, lastBlk.Right, Horizontal, t.collapse)
		} else {
			run.mutator.Group(s, first.Top, lastBlk.Bottom, Vertical, t.collapse)
		}
	}
	return nil
}

// slotsAfter is the region of count template-sized slots starting right after
// r along dir, clipped to the enclosing region.
func slotsAfter(r, tmpl Region, dir Direction, count int, encl Region) Region {
	if dir == Horizontal {
		return Region{Top: tmpl.Top, Left: r.Right + 1, Bottom: tmpl.Bottom, Right: min(r.Right+count*tmpl.Width(), encl.Right)}
	}
	return Region{Top: r.Bottom + 1, Left: tmpl.Left, Bottom: min(r.Bottom+count*tmpl.Height(), encl.Bottom), Right: tmpl.Right}
}
