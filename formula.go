package xltmpl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// FormulaStrategy controls how a reference that expanded into several cells
// is narrowed down when the formula is written.
type FormulaStrategy int

const (
	FormulaDefault  FormulaStrategy = iota // references expand to all target cells
	FormulaByColumn                        // only targets in the formula's column
	FormulaByRow                           // only targets in the formula's row
)

// LoopTag identifies one iteration of one loop invocation.
type LoopTag struct {
	Seq  int
	Iter int
}

// String formats the tag as "[seq,iter]".
func (t LoopTag) String() string {
	return "[" + strconv.Itoa(t.Seq) + "," + strconv.Itoa(t.Iter) + "]"
}

const (
	markerBegin = "$["
	markerEnd   = "]"
)

// FormulaMarker is a formula written in a template cell as "$[SUM(C2)]".
// Copies made by loops carry the loop tag of the copy, "$[SUM(C2)][3,1]".
type FormulaMarker struct {
	Text string
	Tag  *LoopTag
}

// ParseFormulaMarker parses cell text into a marker. It returns false when
// the text is not a formula marker.
func ParseFormulaMarker(s string) (FormulaMarker, bool) {
	if !strings.HasPrefix(s, markerBegin) {
		return FormulaMarker{}, false
	}
	depth := 0
	end := -1
	for i := len(markerBegin); i < len(s); i++ {
		switch s[i] {
		case '[':
			depth++
		case ']':
			if depth == 0 {
				end = i
			} else {
				depth--
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return FormulaMarker{}, false
	}
	m := FormulaMarker{Text: s[len(markerBegin):end]}
	rest := s[end+1:]
	if rest == "" {
		return m, true
	}
	tag, ok := parseLoopTag(rest)
	if !ok {
		return FormulaMarker{}, false
	}
	m.Tag = &tag
	return m, true
}

func parseLoopTag(s string) (LoopTag, bool) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return LoopTag{}, false
	}
	seq, iter, ok := strings.Cut(s[1:len(s)-1], ",")
	if !ok {
		return LoopTag{}, false
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(seq))
	b, err2 := strconv.Atoi(strings.TrimSpace(iter))
	if err1 != nil || err2 != nil {
		return LoopTag{}, false
	}
	return LoopTag{Seq: a, Iter: b}, true
}

// String renders the marker back into cell text.
func (m FormulaMarker) String() string {
	s := markerBegin + m.Text + markerEnd
	if m.Tag != nil {
		s += m.Tag.String()
	}
	return s
}

// WithTag returns the marker carrying tag in place of any older one.
func (m FormulaMarker) WithTag(tag LoopTag) FormulaMarker {
	m.Tag = &tag
	return m
}

// cellRefRegex matches cell references and ranges in formulas
// (A1, $A$1, Sheet1!A1, 'My Sheet'!A1:B5).
var cellRefRegex = regexp.MustCompile(`(?:('[^']+'|[A-Za-z_][A-Za-z0-9_.]*)!)?(\$?[A-Z]{1,3}\$?[0-9]+)(?::(\$?[A-Z]{1,3}\$?[0-9]+))?`)

// formulaRef is one reference found in formula text.
type formulaRef struct {
	start, end int // byte offsets of the whole match
	sheet      string
	first      CellRef
	last       *CellRef // set for ranges
}

// findFormulaRefs returns the cell references of a formula, skipping string
// literals and names that only look like references (LOG10, A1B).
func findFormulaRefs(formula, defaultSheet string) []formulaRef {
	var refs []formulaRef
	quoted := stringLiteralSpans(formula)
	for _, m := range cellRefRegex.FindAllStringSubmatchIndex(formula, -1) {
		if insideSpans(m[0], quoted) || !refBoundary(formula, m[0], m[1]) {
			continue
		}
		sheet := defaultSheet
		explicit := ""
		if m[2] >= 0 {
			explicit = strings.Trim(formula[m[2]:m[3]], "'")
			sheet = explicit
		}
		first, err := ParseCellRef(formula[m[4]:m[5]])
		if err != nil {
			continue
		}
		first.Sheet = sheet
		r := formulaRef{start: m[0], end: m[1], sheet: explicit, first: first}
		if m[6] >= 0 {
			last, err := ParseCellRef(formula[m[6]:m[7]])
			if err != nil {
				continue
			}
			last.Sheet = sheet
			r.last = &last
		}
		refs = append(refs, r)
	}
	return refs
}

func refBoundary(s string, start, end int) bool {
	if start > 0 {
		if b := s[start-1]; isWordByte(b) || b == '.' || b == '$' || b == ':' {
			return false
		}
	}
	if end < len(s) {
		if b := s[end]; isWordByte(b) || b == '(' || b == '!' {
			return false
		}
	}
	return true
}

func isWordByte(b byte) bool {
	return b == '_' || (b >= '0' && b <= '9') || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func stringLiteralSpans(s string) [][2]int {
	var spans [][2]int
	open := -1
	for i := 0; i < len(s); i++ {
		if s[i] != '"' {
			continue
		}
		if open < 0 {
			open = i
			continue
		}
		if i+1 < len(s) && s[i+1] == '"' {
			i++
			continue
		}
		spans = append(spans, [2]int{open, i})
		open = -1
	}
	return spans
}

func insideSpans(pos int, spans [][2]int) bool {
	for _, sp := range spans {
		if pos > sp[0] && pos < sp[1] {
			return true
		}
	}
	return false
}

// CellRefMap maps logical reference keys to the current physical cells of
// the referenced content. Keys look like "Sheet1!B3" or, for the copy made by
// one loop iteration, "Sheet1!B3[2,1]".
type CellRefMap map[string][]CellRef

func refKey(ref CellRef) string {
	return ref.Sheet + "!" + ref.CellName()
}

func taggedKey(key string, tag LoopTag) string {
	return key + tag.String()
}

// keyTag returns the loop tag of a tagged key.
func keyTag(key string) (LoopTag, bool) {
	i := strings.LastIndex(key, "[")
	if i < 0 {
		return LoopTag{}, false
	}
	return parseLoopTag(key[i:])
}

// Register tracks ref at its own location unless it is already tracked.
func (m CellRefMap) Register(ref CellRef) {
	key := refKey(ref)
	if _, ok := m[key]; !ok {
		m[key] = []CellRef{ref}
	}
}

// Targets returns the current locations recorded under key.
func (m CellRefMap) Targets(key string) ([]CellRef, bool) {
	locs, ok := m[key]
	return locs, ok
}

// Shift moves every tracked location inside r on sheet by dr rows and dc
// columns. Locations overwritten by the move are dropped.
func (m CellRefMap) Shift(sheet string, r Region, dr, dc int) {
	dst := r.Translate(dr, dc)
	for key, locs := range m {
		out := locs[:0]
		for _, loc := range locs {
			if loc.Sheet == sheet {
				if r.Contains(loc.Row, loc.Col) {
					loc.Row += dr
					loc.Col += dc
				} else if dst.Contains(loc.Row, loc.Col) {
					continue
				}
			}
			out = append(out, loc)
		}
		m[key] = out
	}
}

// Drop forgets every tracked location inside r on sheet.
func (m CellRefMap) Drop(sheet string, r Region) {
	for key, locs := range m {
		out := locs[:0]
		for _, loc := range locs {
			if loc.Sheet == sheet && r.Contains(loc.Row, loc.Col) {
				continue
			}
			out = append(out, loc)
		}
		m[key] = out
	}
}

// Copy records that the content of r was copied dr rows and dc columns away
// by the loop iteration tag. Every key tracking a location inside r gains the
// translated location, and each plain key gets a tagged key that only knows
// the copy. Keys of sibling iterations of the same loop are left alone.
// A zero offset tags the original content in place.
func (m CellRefMap) Copy(sheet string, r Region, dr, dc int, tag LoopTag) {
	inPlace := dr == 0 && dc == 0
	if !inPlace {
		m.Drop(sheet, r.Translate(dr, dc))
	}
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	for _, key := range keys {
		kt, tagged := keyTag(key)
		if tagged && kt.Seq == tag.Seq {
			continue
		}
		var hits []CellRef
		for _, loc := range m[key] {
			if loc.Sheet == sheet && r.Contains(loc.Row, loc.Col) {
				hits = append(hits, CellRef{Sheet: sheet, Row: loc.Row + dr, Col: loc.Col + dc})
			}
		}
		if len(hits) == 0 {
			continue
		}
		if !inPlace {
			m[key] = append(m[key], hits...)
		}
		if !tagged {
			tk := taggedKey(key, tag)
			m[tk] = append(m[tk], hits...)
		}
	}
}

// registerMarkerRefs tracks every reference used by a formula marker.
func (m CellRefMap) registerMarkerRefs(marker FormulaMarker, sheet string) {
	for _, r := range findFormulaRefs(marker.Text, sheet) {
		m.Register(r.first)
		if r.last != nil {
			m.Register(*r.last)
		}
	}
}

// resolveMarker turns a marker found at cell into final formula text.
func (m CellRefMap) resolveMarker(marker FormulaMarker, at CellRef, params *ParamsData) string {
	formula := marker.Text
	refs := findFormulaRefs(formula, at.Sheet)
	strategy := FormulaDefault
	defaultValue := "0"
	if params != nil {
		strategy = params.FormulaStrategy
		if params.DefaultValue != "" {
			defaultValue = params.DefaultValue
		}
	}

	var b strings.Builder
	pos := 0
	for _, r := range refs {
		b.WriteString(formula[pos:r.start])
		pos = r.end
		b.WriteString(m.replacement(r, marker.Tag, at, strategy, defaultValue, formula[r.start:r.end]))
	}
	b.WriteString(formula[pos:])
	return b.String()
}

func (m CellRefMap) lookup(ref CellRef, tag *LoopTag) ([]CellRef, bool) {
	key := refKey(ref)
	if tag != nil {
		// an emptied tagged key means the iteration's copy was removed
		if locs, ok := m[taggedKey(key, *tag)]; ok {
			return locs, true
		}
	}
	locs, ok := m[key]
	return locs, ok
}

func (m CellRefMap) replacement(r formulaRef, tag *LoopTag, at CellRef, strategy FormulaStrategy, defaultValue, original string) string {
	firstLocs, ok := m.lookup(r.first, tag)
	if !ok {
		return original
	}
	targets := firstLocs
	if r.last != nil {
		lastLocs, ok := m.lookup(*r.last, tag)
		if !ok {
			return original
		}
		targets = append(append([]CellRef(nil), firstLocs...), lastLocs...)
	}
	targets = filterByStrategy(targets, at, strategy)
	if len(targets) == 0 {
		return defaultValue
	}
	if r.last != nil {
		box := boundingBox(targets)
		return formatRef(CellRef{Sheet: r.first.Sheet, Row: box.Top, Col: box.Left}, r.sheet) + ":" +
			CellRef{Row: box.Bottom, Col: box.Right}.CellName()
	}
	return buildReplacement(targets, r.sheet)
}

// filterByStrategy filters target refs based on FormulaStrategy.
func filterByStrategy(targets []CellRef, formulaCell CellRef, strategy FormulaStrategy) []CellRef {
	switch strategy {
	case FormulaByColumn:
		var filtered []CellRef
		for _, t := range targets {
			if t.Col == formulaCell.Col {
				filtered = append(filtered, t)
			}
		}
		return filtered
	case FormulaByRow:
		var filtered []CellRef
		for _, t := range targets {
			if t.Row == formulaCell.Row {
				filtered = append(filtered, t)
			}
		}
		return filtered
	default:
		return targets
	}
}

// buildReplacement builds the replacement string for a set of target refs.
func buildReplacement(targets []CellRef, sheet string) string {
	if len(targets) == 1 {
		return formatRef(targets[0], sheet)
	}
	if rangeStr := tryBuildRange(targets, sheet); rangeStr != "" {
		return rangeStr
	}
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = formatRef(t, sheet)
	}
	// Excel functions take at most 255 arguments.
	if len(parts) > 255 {
		return strings.Join(parts, "+")
	}
	return strings.Join(parts, ",")
}

// tryBuildRange returns "A2:A5" when targets fill one column or one row without gaps.
func tryBuildRange(targets []CellRef, sheet string) string {
	box := boundingBox(targets)
	if box.Width() != 1 && box.Height() != 1 {
		return ""
	}
	seen := make(map[cellPos]struct{}, len(targets))
	for _, t := range targets {
		seen[cellPos{t.Row, t.Col}] = struct{}{}
	}
	if len(seen) != box.Width()*box.Height() {
		return ""
	}
	return formatRef(CellRef{Row: box.Top, Col: box.Left}, sheet) + ":" + CellRef{Row: box.Bottom, Col: box.Right}.CellName()
}

func boundingBox(targets []CellRef) Region {
	box := Region{Top: targets[0].Row, Left: targets[0].Col, Bottom: targets[0].Row, Right: targets[0].Col}
	for _, t := range targets[1:] {
		box.Top = min(box.Top, t.Row)
		box.Left = min(box.Left, t.Col)
		box.Bottom = max(box.Bottom, t.Row)
		box.Right = max(box.Right, t.Col)
	}
	return box
}

// formatRef formats a reference, keeping the sheet prefix the formula used.
func formatRef(ref CellRef, sheet string) string {
	if sheet == "" {
		return ref.CellName()
	}
	if strings.ContainsAny(sheet, " -'") {
		return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + ref.CellName()
	}
	return sheet + "!" + ref.CellName()
}

// resolveFormulas replaces every formula marker of the workbook with the
// final formula text.
func resolveFormulas(wb *Workbook, refs CellRefMap) error {
	for _, s := range wb.Sheets() {
		for _, c := range s.Cells() {
			text, ok := c.StringValue()
			if !ok {
				continue
			}
			marker, ok := ParseFormulaMarker(text)
			if !ok {
				continue
			}
			formula := refs.resolveMarker(marker, NewCellRef(s.Name, c.row, c.col), c.Params)
			if formula == "" {
				return fmt.Errorf("empty formula at %s!%s", s.Name, c.Name())
			}
			c.Value = nil
			c.Formula = formula
			c.Type = CellFormula
		}
	}
	return nil
}
