package xltmpl

import (
	"fmt"
	"iter"
	"strings"
)

// forLoop counts from start to end inclusive:
// jx:for(var="i" start="1" end="5" step="1" lastCell="B1").
type forLoop struct {
	spec    *TagSpec
	varName string
	start   string
	end     string
	step    string

	from, by, count int
	rv              *RunVar
}

func newForTag(spec *TagSpec) (Tag, error) {
	src := &forLoop{spec: spec, step: "1"}
	var err error
	if src.varName, err = requireAttr(spec, "var"); err != nil {
		return nil, err
	}
	for _, a := range []struct {
		name string
		dst  *string
	}{{"start", &src.start}, {"end", &src.end}} {
		if _, err := requireAttr(spec, a.name); err != nil {
			return nil, err
		}
		if *a.dst, err = intExprAttr(spec, a.name); err != nil {
			return nil, err
		}
	}
	if step, err := intExprAttr(spec, "step"); err != nil {
		return nil, err
	} else if step != "" {
		src.step = step
	}
	if strings.TrimLeft(src.step, "+-0") == "" {
		return nil, attrError(spec, "step", fmt.Errorf("step must not be zero"))
	}
	return newLoopTag(spec, src)
}

func (l *forLoop) prepare(tc *TagContext) error {
	var err error
	if l.from, err = evalInt(tc.Beans, l.spec, "start", l.start); err != nil {
		return err
	}
	to, err := evalInt(tc.Beans, l.spec, "end", l.end)
	if err != nil {
		return err
	}
	if l.by, err = evalInt(tc.Beans, l.spec, "step", l.step); err != nil {
		return err
	}
	if l.by == 0 {
		return attrError(l.spec, "step", fmt.Errorf("step evaluated to zero"))
	}
	l.count = forCount(l.from, to, l.by)
	return nil
}

// forCount is the number of values start, start+step, ... that do not pass end.
func forCount(start, end, step int) int {
	if (step > 0 && end < start) || (step < 0 && end > start) {
		return 0
	}
	return (end-start)/step + 1
}

func (l *forLoop) collectionNames() []string { return nil }

func (l *forLoop) numIterations(fixed bool, limit int) int {
	return iterationCount(l.count, limit, fixed)
}

func (l *forLoop) collectionSize() int { return l.count }

func (l *forLoop) items() iter.Seq[any] {
	return func(yield func(any) bool) {
		for i := range l.count {
			if !yield(l.from + i*l.by) {
				return
			}
		}
	}
}

func (l *forLoop) beforeItem(beans *Beans, item any, _ int) {
	l.rv = NewRunVar(beans, l.varName)
	l.rv.Set(l.varName, item)
}

func (l *forLoop) afterItem(*Beans, any, int) {
	if l.rv != nil {
		l.rv.Close()
		l.rv = nil
	}
}
