package xltmpl

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/xuri/excelize/v2"
)

// Filler runs templates: it loads the workbook, transforms every sheet
// against the data and writes the result.
type Filler struct {
	opts     *Options
	registry *TagRegistry
}

// NewFiller creates a Filler with the given options.
func NewFiller(opts ...Option) *Filler {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Filler{opts: o, registry: o.registry()}
}

// Fill processes a template file and writes the populated output to outputPath.
func Fill(templatePath, outputPath string, data map[string]any, opts ...Option) error {
	allOpts := append([]Option{WithTemplate(templatePath)}, opts...)
	return NewFiller(allOpts...).Fill(data, outputPath)
}

// FillBytes processes a template file and returns the populated output as bytes.
func FillBytes(templatePath string, data map[string]any, opts ...Option) ([]byte, error) {
	allOpts := append([]Option{WithTemplate(templatePath)}, opts...)
	return NewFiller(allOpts...).FillBytes(data)
}

// FillReader processes a template from an io.Reader and writes to an io.Writer.
func FillReader(template io.Reader, output io.Writer, data map[string]any, opts ...Option) error {
	allOpts := append([]Option{WithTemplateReader(template)}, opts...)
	return NewFiller(allOpts...).FillWriter(data, output)
}

// Fill processes the template with data and writes to outputPath.
// A failed run leaves no output file behind.
func (f *Filler) Fill(data map[string]any, outputPath string) error {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create output file %q: %w", outputPath, err)
	}
	defer out.Close()

	if err := f.FillWriter(data, out); err != nil {
		out.Close()
		os.Remove(outputPath)
		return err
	}
	return out.Close()
}

// FillBytes processes the template with data and returns the output as bytes.
func (f *Filler) FillBytes(data map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.FillWriter(data, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FillWriter processes the template with data and writes to w.
func (f *Filler) FillWriter(data map[string]any, w io.Writer) error {
	file, err := f.openTemplate()
	if err != nil {
		return err
	}
	defer file.Close()

	wb, err := f.FillWorkbook(file, data)
	if err != nil {
		return err
	}
	if f.opts.preWrite != nil {
		if err := f.opts.preWrite(wb); err != nil {
			return fmt.Errorf("pre-write callback: %w", err)
		}
	}
	if f.opts.recalculateOnOpen {
		fullCalc := true
		if err := file.SetCalcProps(&excelize.CalcPropsOptions{FullCalcOnLoad: &fullCalc}); err != nil {
			return fmt.Errorf("set calc props: %w", err)
		}
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// FillWorkbook transforms an already opened file in place and returns the
// model it was filled through. The file is not written anywhere.
func (f *Filler) FillWorkbook(file *excelize.File, data map[string]any) (*Workbook, error) {
	log := f.opts.logger
	start := time.Now()

	wb, err := OpenWorkbook(file)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if err := wb.validateTags(f.registry); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	beans := NewBeans(data, WithNotation(f.opts.notationBegin, f.opts.notationEnd))
	run := newRun(wb, f.opts, f.registry)
	if err := run.transform(beans); err != nil {
		return nil, fmt.Errorf("transform template: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return nil, err
	}
	log.Info("template filled",
		"sheets", len(wb.Sheets()),
		"blocks", run.blocks.Len(),
		"loops", run.seq,
		"elapsed", time.Since(start))
	return wb, nil
}

// openTemplate opens the template from file path or reader.
func (f *Filler) openTemplate() (*excelize.File, error) {
	if f.opts.templateReader != nil {
		file, err := excelize.OpenReader(f.opts.templateReader)
		if err != nil {
			return nil, fmt.Errorf("open template reader: %w", err)
		}
		return file, nil
	}
	if f.opts.templatePath != "" {
		file, err := excelize.OpenFile(f.opts.templatePath)
		if err != nil {
			return nil, fmt.Errorf("open template %q: %w", f.opts.templatePath, err)
		}
		return file, nil
	}
	return nil, fmt.Errorf("no template specified: use WithTemplate or WithTemplateReader")
}
