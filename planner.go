package xltmpl

// ShiftOp is one planned move of a region along an axis. A negative Amount
// moves up or left.
type ShiftOp struct {
	Region    Region
	Direction Direction
	Amount    int
}

// ShiftPlan is an ordered list of moves.
type ShiftPlan struct {
	ops []ShiftOp
}

// Ops returns the moves in execution order.
func (p *ShiftPlan) Ops() []ShiftOp { return p.ops }

// Execute applies the moves to s in order.
func (p *ShiftPlan) Execute(m *Mutator, s *Sheet) {
	for _, op := range p.ops {
		m.Shift(s, op.Region, op.Direction, op.Amount)
	}
}

// PlanShift plans the moves that open room for numIterations copies of the
// block id along its direction. It walks up the shift-ending ancestors; each
// step moves the content between the previous ancestor's far edge and the
// next ancestor's far edge. Only the first step lets trailing blank lines
// absorb part of the growth. Every ancestor passed is grown by the residual.
// The returned plan runs outermost region first, so inner regions always
// land in room that already exists.
func PlanShift(bs *Blocks, s *Sheet, m *Mutator, id BlockID, numIterations int) *ShiftPlan {
	blk := bs.Get(id)
	dir := blk.Direction
	translate := (numIterations - 1) * alongExtent(blk.Region, dir)

	var stack []ShiftOp
	prevID, prevR, prevDir := id, blk.Region, blk.Direction
	first := true
	for translate > 0 && bs.Get(prevID).Parent != NoBlock {
		anc := bs.ShiftEndingAncestor(prevID)
		a := *bs.Get(anc)

		region := regionBetween(prevR, prevDir, a.Region, dir)
		amount := translate
		if first {
			empty := m.CountEmptyTrailing(s, region, dir)
			region = trimFar(region, dir, empty)
			translate = max(0, translate-empty)
			first = false
		}
		if !region.Empty() {
			stack = append(stack, ShiftOp{Region: region, Direction: dir, Amount: amount})
		}
		for _, g := range bs.ancestorsThrough(prevID, anc) {
			growAlong(bs.Get(g), dir, translate)
		}
		prevID, prevR, prevDir = anc, a.Region, a.Direction
	}

	plan := &ShiftPlan{ops: make([]ShiftOp, 0, len(stack))}
	for i := len(stack) - 1; i >= 0; i-- {
		plan.ops = append(plan.ops, stack[i])
	}
	return plan
}

// PlanRemoval plans the moves that close the gap left by deleting block id
// along dir. Content after the block moves back innermost region first.
// Ancestors shrink up to the first shift-ending ancestor that is the root or
// exactly as wide (as tall, for Horizontal) as the removed block; a larger
// ancestor keeps its size and the walk stops there. The walk also stops after
// an ancestor replicated across dir, whose siblings keep the band.
func PlanRemoval(bs *Blocks, id BlockID, dir Direction) *ShiftPlan {
	blk := bs.Get(id)
	amount := alongExtent(blk.Region, dir)
	cross := crossOf(blk.Region, dir)

	plan := &ShiftPlan{}
	prevID, prevR, prevDir := id, blk.Region, blk.Direction
	for bs.Get(prevID).Parent != NoBlock {
		anc := bs.ShiftEndingAncestor(prevID)
		a := *bs.Get(anc)

		region := regionBetween(prevR, prevDir, a.Region, dir)
		if !region.Empty() {
			plan.ops = append(plan.ops, ShiftOp{Region: region, Direction: dir, Amount: -amount})
		}
		shrink := a.Parent == NoBlock || crossOf(a.Region, dir) == cross
		for _, g := range bs.ancestorsThrough(prevID, anc) {
			if g != anc || shrink {
				growAlong(bs.Get(g), dir, -amount)
			}
		}
		if !shrink || crossesAxis(a.Direction, dir) {
			break
		}
		prevID, prevR, prevDir = anc, a.Region, a.Direction
	}
	return plan
}

// regionBetween is the content after prev and up to the far edge of anc.
// Below a block replicating across the axis the move spans the ancestor's
// full width, since that content has not been transformed yet.
// crossesAxis reports whether a block replicated along blockDir shares its
// band with siblings laid out across dir.
func crossesAxis(blockDir, dir Direction) bool {
	return blockDir != None && blockDir != dir
}

func regionBetween(prev Region, prevDir Direction, anc Region, dir Direction) Region {
	if dir == Horizontal {
		r := Region{Top: prev.Top, Left: prev.Right + 1, Bottom: prev.Bottom, Right: anc.Right}
		if prevDir == Vertical {
			r.Top, r.Bottom = anc.Top, anc.Bottom
		}
		return r
	}
	r := Region{Top: prev.Bottom + 1, Left: prev.Left, Bottom: anc.Bottom, Right: prev.Right}
	if prevDir == Horizontal {
		r.Left, r.Right = anc.Left, anc.Right
	}
	return r
}

func trimFar(r Region, dir Direction, n int) Region {
	if dir == Horizontal {
		r.Right -= n
	} else {
		r.Bottom -= n
	}
	return r
}

func growAlong(b *Block, dir Direction, n int) {
	if dir == Horizontal {
		b.Expand(n, 0)
	} else {
		b.Expand(0, n)
	}
}

func alongExtent(r Region, dir Direction) int {
	if dir == Horizontal {
		return r.Width()
	}
	return r.Height()
}

func crossOf(r Region, dir Direction) int {
	if dir == Horizontal {
		return r.Height()
	}
	return r.Width()
}
