package xltmpl

import (
	"fmt"
	"regexp"
	"strings"
)

const tagPrefix = "jx:"
const paramsPrefix = "jx:params"

// TagSpec is one tag line read from a cell comment, e.g.
// jx:forEach(items="employees" var="e" lastCell="C2").
// The extent is stored relative to the commented cell so a TagSpec stays
// valid when the cell is shifted or copied.
type TagSpec struct {
	Name  string
	Attrs map[string]string
	Rows  int // rows covered below the commented cell
	Cols  int // columns covered right of the commented cell
	Line  string
	Cell  CellRef // where the tag was declared in the template
}

// RegionAt returns the block of the tag when its cell sits at row, col.
func (t *TagSpec) RegionAt(row, col int) Region {
	return Region{Top: row, Left: col, Bottom: row + t.Rows, Right: col + t.Cols}
}

// Attr returns the attribute value and whether it was present.
func (t *TagSpec) Attr(name string) (string, bool) {
	v, ok := t.Attrs[name]
	return v, ok
}

// attrKeyPattern matches the key= part of an attribute to find the start of each attribute.
var attrKeyPattern = regexp.MustCompile(`(\w+)\s*=\s*`)

// ParseComment parses all jx: tags from a cell comment. A comment may hold
// several tags, one per line, outermost first.
func ParseComment(comment string, cell CellRef) ([]*TagSpec, *ParamsData, error) {
	if comment == "" {
		return nil, nil, nil
	}

	var tags []*TagSpec
	var params *ParamsData
	for _, line := range splitCommentLines(comment) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if IsParams(line) {
			p, err := ParseParams(line)
			if err != nil {
				return nil, nil, fmt.Errorf("parse params at %s: %w", cell, err)
			}
			params = p
			continue
		}
		if !IsTag(line) {
			continue
		}
		spec, err := parseTagLine(line, cell)
		if err != nil {
			return nil, nil, err
		}
		tags = append(tags, spec)
	}
	return tags, params, nil
}

// splitCommentLines splits a comment into lines, handling both \n and \r\n.
func splitCommentLines(comment string) []string {
	comment = strings.ReplaceAll(comment, "\r\n", "\n")
	comment = strings.ReplaceAll(comment, "\r", "\n")
	return strings.Split(comment, "\n")
}

// IsTag returns true if the line starts with "jx:" and is not "jx:params".
func IsTag(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, tagPrefix) && !strings.HasPrefix(trimmed, paramsPrefix)
}

// IsParams returns true if the line starts with "jx:params".
func IsParams(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), paramsPrefix)
}

// hasTemplateLines reports whether a comment carries any jx: line.
func hasTemplateLines(comment string) bool {
	for _, line := range splitCommentLines(comment) {
		if strings.HasPrefix(strings.TrimSpace(line), tagPrefix) {
			return true
		}
	}
	return false
}

// parseTagLine parses a single line like jx:forEach(items="employees" var="e" lastCell="C2").
func parseTagLine(line string, cell CellRef) (*TagSpec, error) {
	parenIdx := strings.Index(line, "(")
	if parenIdx < 0 {
		return nil, &TagError{Tag: strings.TrimPrefix(line, tagPrefix), Cell: cell, Err: fmt.Errorf("missing '(' in %q", line)}
	}
	name := strings.TrimSpace(line[len(tagPrefix):parenIdx])
	closeIdx := strings.LastIndex(line, ")")
	if closeIdx < parenIdx {
		return nil, &TagError{Tag: name, Cell: cell, Err: fmt.Errorf("missing ')' in %q", line)}
	}

	spec := &TagSpec{
		Name:  name,
		Attrs: parseAttributes(line[parenIdx+1 : closeIdx]),
		Line:  line,
		Cell:  cell,
	}
	if lastCell, ok := spec.Attrs["lastCell"]; ok {
		last, err := ParseCellRef(lastCell)
		if err != nil {
			return nil, &TagError{Tag: name, Attr: "lastCell", Value: lastCell, Cell: cell, Err: err}
		}
		if last.Sheet != "" && last.Sheet != cell.Sheet {
			return nil, &TagError{Tag: name, Attr: "lastCell", Value: lastCell, Cell: cell, Err: fmt.Errorf("lastCell must be on sheet %q", cell.Sheet)}
		}
		if last.Row < cell.Row || last.Col < cell.Col {
			return nil, &TagError{Tag: name, Attr: "lastCell", Value: lastCell, Cell: cell, Err: fmt.Errorf("lastCell lies before the tag cell")}
		}
		spec.Rows = last.Row - cell.Row
		spec.Cols = last.Col - cell.Col
	}
	return spec, nil
}

// isQuote checks if a rune is a recognized quote character.
func isQuote(r rune) bool {
	return r == '"' || r == '\'' || r == '“' || r == '”' || r == '‘' || r == '’'
}

// matchingCloseQuote returns the closing quote for a given opening quote.
func matchingCloseQuote(open rune) rune {
	switch open {
	case '“':
		return '”'
	case '‘':
		return '’'
	default:
		return open
	}
}

// parseAttributes extracts key="value" pairs from an attribute string.
// The closing quote must match the opening one, which allows single quotes
// inside double-quoted values (where="e.city == 'Geldern'").
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)
	runes := []rune(attrStr)
	i := 0
	for i < len(runes) {
		rest := string(runes[i:])
		m := attrKeyPattern.FindStringSubmatchIndex(rest)
		if m == nil {
			break
		}
		key := rest[m[2]:m[3]]
		i += len([]rune(rest[:m[1]]))

		if i >= len(runes) || !isQuote(runes[i]) {
			continue
		}
		closeQuote := matchingCloseQuote(runes[i])
		i++

		start := i
		for i < len(runes) && runes[i] != closeQuote {
			i++
		}
		value := string(runes[start:i])
		if i < len(runes) {
			i++
		}
		attrs[key] = value
	}
	return attrs
}

// ParamsData holds parsed jx:params attributes of a formula cell.
type ParamsData struct {
	FormulaStrategy FormulaStrategy
	DefaultValue    string
}

// ParseParams parses a jx:params line.
func ParseParams(line string) (*ParamsData, error) {
	parenIdx := strings.Index(line, "(")
	if parenIdx < 0 {
		return &ParamsData{}, nil
	}
	closeIdx := strings.LastIndex(line, ")")
	if closeIdx < parenIdx {
		return nil, fmt.Errorf("missing ')' in params: %q", line)
	}
	attrs := parseAttributes(line[parenIdx+1 : closeIdx])

	pd := &ParamsData{DefaultValue: attrs["defaultValue"]}
	if fs, ok := attrs["formulaStrategy"]; ok {
		switch strings.ToUpper(fs) {
		case "BY_COLUMN":
			pd.FormulaStrategy = FormulaByColumn
		case "BY_ROW":
			pd.FormulaStrategy = FormulaByRow
		case "", "DEFAULT":
			pd.FormulaStrategy = FormulaDefault
		default:
			return nil, fmt.Errorf("unknown formulaStrategy %q", fs)
		}
	}
	return pd, nil
}
