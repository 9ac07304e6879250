package xltmpl

import "fmt"

// ifTag keeps its block when the condition holds:
// jx:if(condition="e.Active" lastCell="C2").
// A false condition removes the block and closes the gap, or with
// elseAction="clear" blanks it in place.
type ifTag struct {
	spec      *TagSpec
	condition string
	clear     bool
}

func newIfTag(spec *TagSpec) (Tag, error) {
	if err := requireBody(spec); err != nil {
		return nil, err
	}
	if _, err := requireAttr(spec, "condition"); err != nil {
		return nil, err
	}
	cond, err := exprAttr(spec, "condition")
	if err != nil {
		return nil, err
	}
	action, err := enumAttr(spec, "elseAction", "remove", "remove", "clear")
	if err != nil {
		return nil, err
	}
	return &ifTag{spec: spec, condition: cond, clear: action == "clear"}, nil
}

func (t *ifTag) Name() string         { return "if" }
func (t *ifTag) Direction() Direction { return None }

func (t *ifTag) Process(tc *TagContext) error {
	ok, err := tc.Beans.IsConditionTrue(t.condition)
	if err != nil {
		return fmt.Errorf("evaluate condition %q: %w", t.condition, err)
	}
	if ok {
		return tc.TransformBody()
	}
	run := tc.run
	r := tc.Block().Region
	if t.clear {
		run.mutator.ClearBlock(tc.Sheet, r)
		return nil
	}
	run.mutator.DeleteBlock(tc.Sheet, r)
	PlanRemoval(&run.blocks, tc.block, Vertical).Execute(run.mutator, tc.Sheet)
	return nil
}
