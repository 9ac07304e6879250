package xltmpl

import "fmt"

// Direction is the axis along which a block is replicated or shifted.
type Direction int

const (
	Vertical Direction = iota
	Horizontal
	None
)

// String returns the name of the direction.
func (d Direction) String() string {
	switch d {
	case Vertical:
		return "VERTICAL"
	case Horizontal:
		return "HORIZONTAL"
	default:
		return "NONE"
	}
}

// BlockID indexes a block inside a Blocks arena.
type BlockID int

// NoBlock is the parent of a root block.
const NoBlock BlockID = -1

// Block is a rectangular region of a sheet with a replication direction and
// a parent. A block always lies inside its parent.
type Block struct {
	Region
	Direction Direction
	Parent    BlockID
}

// Expand moves the right and bottom edges by the given signed deltas.
// Callers never shrink a block past its top-left corner.
func (b *Block) Expand(deltaCols, deltaRows int) {
	b.Right += deltaCols
	b.Bottom += deltaRows
}

// ReactToGrowth adjusts b after ref grew by colGrowth columns and rowGrowth rows.
// A block enclosing ref expands, a block below ref with overlapping columns moves
// down and a block to the right of ref with overlapping rows moves right.
func (b *Block) ReactToGrowth(ref Region, colGrowth, rowGrowth int) {
	switch {
	case b.ContainsRegion(ref):
		b.Expand(colGrowth, rowGrowth)
	case b.Top > ref.Bottom && b.Left <= ref.Right && ref.Left <= b.Right:
		b.Region = b.Translate(rowGrowth, 0)
	case b.Left > ref.Right && b.Top <= ref.Bottom && ref.Top <= b.Bottom:
		b.Region = b.Translate(0, colGrowth)
		// a sibling sharing the row band gets the rows the grown block opened;
		// removal never closes rows across the band, so shrinking leaves it be
		if b.Top == ref.Top && rowGrowth > 0 {
			b.Bottom += rowGrowth
		}
	}
}

// crossExtent is the size of the block across its replication axis.
func (b *Block) crossExtent(dir Direction) int {
	if dir == Horizontal {
		return b.Height()
	}
	return b.Width()
}

// Blocks is the arena holding every block of a run.
type Blocks struct {
	items []Block
}

// New stores b and returns its id.
func (bs *Blocks) New(b Block) BlockID {
	bs.items = append(bs.items, b)
	return BlockID(len(bs.items) - 1)
}

// Get returns the block stored under id. The pointer stays valid until the
// next call to New.
func (bs *Blocks) Get(id BlockID) *Block {
	if id < 0 || int(id) >= len(bs.items) {
		panic(fmt.Sprintf("xltmpl: block id %d out of range", id))
	}
	return &bs.items[id]
}

// Len returns the number of blocks in the arena.
func (bs *Blocks) Len() int { return len(bs.items) }

// ShiftEndingAncestor walks up from id and returns the first ancestor that is
// the root, runs in a different direction, or is larger than the block across
// its replication axis.
func (bs *Blocks) ShiftEndingAncestor(id BlockID) BlockID {
	start := bs.Get(id)
	dir := start.Direction
	cross := start.crossExtent(dir)
	cur := start.Parent
	for cur != NoBlock {
		anc := bs.Get(cur)
		if anc.Parent == NoBlock || anc.Direction != dir || anc.crossExtent(dir) > cross {
			return cur
		}
		cur = anc.Parent
	}
	return id
}

// ancestorsThrough returns the ids from the parent of id up to and including last.
func (bs *Blocks) ancestorsThrough(id, last BlockID) []BlockID {
	var out []BlockID
	for cur := bs.Get(id).Parent; cur != NoBlock; cur = bs.Get(cur).Parent {
		out = append(out, cur)
		if cur == last {
			break
		}
	}
	return out
}
