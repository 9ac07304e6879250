package xltmpl

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sheet1 = "Sheet1"

// addTag attaches a template comment to a cell.
func addTag(t *testing.T, f *excelize.File, sheet, cell, text string) {
	t.Helper()
	require.NoError(t, f.AddComment(sheet, excelize.Comment{Cell: cell, Author: "xltmpl", Text: text}))
}

// setValues writes cell values, keyed by A1 name.
func setValues(t *testing.T, f *excelize.File, sheet string, values map[string]any) {
	t.Helper()
	for cell, v := range values {
		require.NoError(t, f.SetCellValue(sheet, cell, v))
	}
}

// fillTemplate runs the template through FillReader and reopens the output.
func fillTemplate(t *testing.T, tmpl *excelize.File, data map[string]any, opts ...Option) *excelize.File {
	t.Helper()
	out, err := tryFill(t, tmpl, data, opts...)
	require.NoError(t, err)
	return out
}

// tryFill is fillTemplate for runs expected to fail.
func tryFill(t *testing.T, tmpl *excelize.File, data map[string]any, opts ...Option) (*excelize.File, error) {
	t.Helper()
	var in bytes.Buffer
	require.NoError(t, tmpl.Write(&in))
	var out bytes.Buffer
	if err := FillReader(&in, &out, data, opts...); err != nil {
		return nil, err
	}
	res, err := excelize.OpenReader(&out)
	require.NoError(t, err)
	t.Cleanup(func() { res.Close() })
	return res, nil
}

// values reads a list of cells from the sheet.
func values(t *testing.T, f *excelize.File, sheet string, cells ...string) []string {
	t.Helper()
	out := make([]string, len(cells))
	for i, c := range cells {
		v, err := f.GetCellValue(sheet, c)
		require.NoError(t, err)
		out[i] = v
	}
	return out
}

// loadTemplate builds the in-memory model of a template without running it.
func loadTemplate(t *testing.T, tmpl *excelize.File) *Workbook {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tmpl.Write(&buf))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	wb, err := OpenWorkbook(f)
	require.NoError(t, err)
	return wb
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// sheetOf builds a bare sheet from values keyed by A1 name.
func sheetOf(t *testing.T, cells map[string]any) *Sheet {
	t.Helper()
	s := NewSheet(sheet1)
	for name, v := range cells {
		ref, err := ParseCellRef(name)
		require.NoError(t, err)
		s.EnsureCell(ref.Row, ref.Col).Value = v
	}
	return s
}

// region parses an A1 range, failing the test on error.
func region(t *testing.T, s string) Region {
	t.Helper()
	r, err := ParseRegion(s)
	require.NoError(t, err)
	return r
}
