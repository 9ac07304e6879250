package xltmpl

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// tagNode is one tag of a template sheet with the tags nested inside its block.
type tagNode struct {
	spec     *TagSpec
	cell     *Cell
	region   Region
	parent   *tagNode
	children []*tagNode
}

// tagTree nests the tags of s by block containment. A tag belongs to the
// innermost earlier tag whose block holds its cell; several tags of one
// cell nest in the order they are written.
func tagTree(s *Sheet) []*tagNode {
	var nodes []*tagNode
	for _, c := range s.Cells() {
		for _, spec := range c.tags {
			nodes = append(nodes, &tagNode{spec: spec, cell: c, region: spec.RegionAt(c.row, c.col)})
		}
	}
	var roots []*tagNode
	for i, n := range nodes {
		for j := i - 1; j >= 0; j-- {
			cand := nodes[j]
			if !cand.region.Contains(n.cell.row, n.cell.col) {
				continue
			}
			if n.parent == nil || area(cand.region) < area(n.parent.region) {
				n.parent = cand
			}
		}
		if n.parent == nil {
			roots = append(roots, n)
			continue
		}
		n.parent.children = append(n.parent.children, n)
	}
	return roots
}

func area(r Region) int { return r.Height() * r.Width() }

// Describe parses a template and returns a human-readable tree of the tags
// of every sheet and the expressions found in cells.
func Describe(templatePath string, opts ...Option) (string, error) {
	allOpts := append([]Option{WithTemplate(templatePath)}, opts...)
	return NewFiller(allOpts...).Describe()
}

// Describe opens the template and returns the tag tree of every sheet.
func (f *Filler) Describe() (string, error) {
	file, err := f.openTemplate()
	if err != nil {
		return "", err
	}
	defer file.Close()

	wb, err := OpenWorkbook(file)
	if err != nil {
		return "", fmt.Errorf("load template: %w", err)
	}

	var b strings.Builder
	b.WriteString("Template: ")
	if f.opts.templatePath != "" {
		b.WriteString(f.opts.templatePath)
	} else {
		b.WriteString("<reader>")
	}
	b.WriteByte('\n')

	for _, s := range wb.Sheets() {
		roots := tagTree(s)
		fmt.Fprintf(&b, "%s!%s\n", s.Name, rootRegion(s))
		f.describeExpressions(&b, s, rootRegion(s), roots, 1)
		if len(roots) > 0 {
			b.WriteString("  Tags:\n")
		}
		for _, n := range roots {
			f.describeNode(&b, s, n, 2)
		}
	}
	return b.String(), nil
}

func (f *Filler) describeNode(b *strings.Builder, s *Sheet, n *tagNode, indent int) {
	prefix := strings.Repeat("  ", indent)
	fmt.Fprintf(b, "%s%s jx:%s %s%s\n", prefix, n.cell.Name(), n.spec.Name, n.region, describeAttrs(n.spec))
	f.describeExpressions(b, s, n.region, n.children, indent+1)
	for _, c := range n.children {
		f.describeNode(b, s, c, indent+1)
	}
}

// describeExpressions lists the expressions of r outside the blocks of children.
func (f *Filler) describeExpressions(b *strings.Builder, s *Sheet, r Region, children []*tagNode, indent int) {
	begin := f.opts.notationBegin
	var lines []string
	for _, c := range s.cellsIn(r) {
		if slices.ContainsFunc(children, func(n *tagNode) bool { return n.region.Contains(c.row, c.col) }) {
			continue
		}
		if text, ok := c.StringValue(); ok && (strings.Contains(text, begin) || strings.HasPrefix(text, markerBegin)) {
			lines = append(lines, fmt.Sprintf("%s: %s", c.Name(), text))
		}
		if c.Formula != "" && strings.Contains(c.Formula, begin) {
			lines = append(lines, fmt.Sprintf("%s: =%s", c.Name(), c.Formula))
		}
	}
	if len(lines) == 0 {
		return
	}
	prefix := strings.Repeat("  ", indent)
	fmt.Fprintf(b, "%sExpressions:\n", prefix)
	for _, l := range lines {
		fmt.Fprintf(b, "%s  %s\n", prefix, l)
	}
}

// describeAttrs renders the attributes of a tag in name order, lastCell excluded.
func describeAttrs(spec *TagSpec) string {
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(spec.Attrs)) {
		if k == "lastCell" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, spec.Attrs[k]))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}
