package xltmpl

// CellListener is notified before and after each cell's expressions are
// substituted. Implement it to apply conditional styling, logging, or other
// per-cell processing during transformation.
type CellListener interface {
	// BeforeCell is called before the cell is substituted.
	// Return false to skip the default substitution for this cell.
	BeforeCell(tc *TagContext, c *Cell) bool

	// AfterCell is called after the cell has been substituted.
	AfterCell(tc *TagContext, c *Cell)
}

// LoopEvent describes one finished loop iteration.
type LoopEvent struct {
	Beans *Beans
	Sheet *Sheet
	Block Block // region the iteration occupies after its own growth
	Index int
}

// LoopListener receives a notification after every loop iteration.
type LoopListener interface {
	OnLoopProcessed(ev LoopEvent)
}

// LoopListenerFunc adapts a function to LoopListener.
type LoopListenerFunc func(ev LoopEvent)

func (f LoopListenerFunc) OnLoopProcessed(ev LoopEvent) { f(ev) }

// LoopStatus is bound to a loop's varStatus name during each iteration.
type LoopStatus struct {
	Index int
	First bool
	Last  bool
}
