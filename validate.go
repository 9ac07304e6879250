package xltmpl

import (
	"errors"
	"fmt"
	"strings"
)

// Severity indicates the severity of a validation issue.
type Severity int

const (
	SeverityError   Severity = iota // Template will fail at runtime
	SeverityWarning                 // Template may produce unexpected results
)

// ValidationIssue represents a single problem found during template validation.
type ValidationIssue struct {
	Severity Severity
	CellRef  CellRef
	Message  string
}

// String formats the issue as "[ERROR] Sheet1!A2: message" or "[WARN] ...".
func (v ValidationIssue) String() string {
	sev := "ERROR"
	if v.Severity == SeverityWarning {
		sev = "WARN"
	}
	return fmt.Sprintf("[%s] %s: %s", sev, v.CellRef, v.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []ValidationIssue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks a template for structural and expression errors without
// requiring data. A non-nil error means the template could not be opened.
func Validate(templatePath string, opts ...Option) ([]ValidationIssue, error) {
	allOpts := append([]Option{WithTemplate(templatePath)}, opts...)
	return NewFiller(allOpts...).Validate()
}

// Validate opens the template and performs static validation checks.
// A malformed tag line stops the load and is reported as the only issue.
func (f *Filler) Validate() ([]ValidationIssue, error) {
	file, err := f.openTemplate()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	wb, err := OpenWorkbook(file)
	if err != nil {
		var te *TagError
		if errors.As(err, &te) {
			return []ValidationIssue{{Severity: SeverityError, CellRef: te.Cell, Message: te.Error()}}, nil
		}
		return nil, fmt.Errorf("load template: %w", err)
	}

	var issues []ValidationIssue
	for _, s := range wb.Sheets() {
		issues = append(issues, f.validateTags(tagTree(s))...)
		issues = append(issues, f.validateCells(s)...)
	}
	return issues, nil
}

// validateTags builds every tag and checks that each block stays inside
// the block of the tag enclosing it.
func (f *Filler) validateTags(nodes []*tagNode) []ValidationIssue {
	var issues []ValidationIssue
	for _, n := range nodes {
		if _, err := f.registry.Create(n.spec); err != nil {
			issues = append(issues, ValidationIssue{Severity: SeverityError, CellRef: n.spec.Cell, Message: err.Error()})
		}
		if n.parent != nil && !n.parent.region.ContainsRegion(n.region) {
			issues = append(issues, ValidationIssue{
				Severity: SeverityError,
				CellRef:  n.spec.Cell,
				Message: fmt.Sprintf("jx:%s block %s extends beyond enclosing jx:%s block %s",
					n.spec.Name, n.region, n.parent.spec.Name, n.parent.region),
			})
		}
		issues = append(issues, f.validateTags(n.children)...)
	}
	return issues
}

// validateCells checks expression syntax in values and formulas, and
// parameters placed on cells that hold no formula marker.
func (f *Filler) validateCells(s *Sheet) []ValidationIssue {
	begin, end := f.opts.notationBegin, f.opts.notationEnd
	var issues []ValidationIssue
	for _, c := range s.Cells() {
		ref := NewCellRef(s.Name, c.row, c.col)
		text, isText := c.StringValue()
		if isText && strings.Contains(text, begin) {
			if err := CheckExpressionSyntax(text, begin, end); err != nil {
				issues = append(issues, ValidationIssue{Severity: SeverityError, CellRef: ref, Message: err.Error()})
			}
		}
		if c.Formula != "" && strings.Contains(c.Formula, begin) {
			if err := CheckExpressionSyntax(c.Formula, begin, end); err != nil {
				issues = append(issues, ValidationIssue{Severity: SeverityError, CellRef: ref, Message: err.Error()})
			}
		}
		if c.Params != nil {
			if _, ok := ParseFormulaMarker(text); !ok || !isText {
				issues = append(issues, ValidationIssue{
					Severity: SeverityWarning,
					CellRef:  ref,
					Message:  "jx:params has no effect on a cell without a $[...] formula",
				})
			}
		}
	}
	return issues
}
