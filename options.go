package xltmpl

import (
	"io"
	"log/slog"
)

// Options holds configuration for the Filler.
type Options struct {
	templatePath      string
	templateReader    io.Reader
	notationBegin     string
	notationEnd       string
	customTags        map[string]TagFactory
	fixedCollections  []string
	loopListeners     []LoopListener
	cellListeners     []CellListener
	logger            *slog.Logger
	recalculateOnOpen bool
	preWrite          func(*Workbook) error
}

func defaultOptions() *Options {
	return &Options{
		notationBegin: "${",
		notationEnd:   "}",
		logger:        slog.New(slog.DiscardHandler),
	}
}

// registry returns the built-in tags plus the custom ones.
func (o *Options) registry() *TagRegistry {
	reg := NewTagRegistry()
	for name, factory := range o.customTags {
		reg.Register(name, factory)
	}
	return reg
}

// Option configures the Filler.
type Option func(*Options)

// WithTemplate sets the template file path.
func WithTemplate(path string) Option {
	return func(o *Options) { o.templatePath = path }
}

// WithTemplateReader sets the template as an io.Reader.
func WithTemplateReader(r io.Reader) Option {
	return func(o *Options) { o.templateReader = r }
}

// WithExpressionNotation sets the expression delimiters (default: "${", "}").
func WithExpressionNotation(begin, end string) Option {
	return func(o *Options) {
		o.notationBegin, o.notationEnd = notationOrDefault(begin, end)
	}
}

// WithTag registers a custom tag factory under name, replacing a built-in
// tag of the same name.
func WithTag(name string, factory TagFactory) Option {
	return func(o *Options) {
		if o.customTags == nil {
			o.customTags = make(map[string]TagFactory)
		}
		o.customTags[name] = factory
	}
}

// WithFixedSizeCollections declares collections whose loops never insert or
// remove rows. A loop over one of them overwrites the rows laid out in the
// template, as if it had fixed="true".
func WithFixedSizeCollections(names ...string) Option {
	return func(o *Options) { o.fixedCollections = append(o.fixedCollections, names...) }
}

// WithLoopListener adds a listener notified after every loop iteration.
func WithLoopListener(l LoopListener) Option {
	return func(o *Options) { o.loopListeners = append(o.loopListeners, l) }
}

// WithCellListener adds a listener notified before and after each cell's
// expressions are substituted.
func WithCellListener(l CellListener) Option {
	return func(o *Options) { o.cellListeners = append(o.cellListeners, l) }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRecalculateOnOpen tells Excel to recalculate all formulas when the file is opened.
func WithRecalculateOnOpen(recalc bool) Option {
	return func(o *Options) { o.recalculateOnOpen = recalc }
}

// WithPreWrite sets a callback executed after the model is written back to
// the file and before the output is produced.
func WithPreWrite(fn func(*Workbook) error) Option {
	return func(o *Options) { o.preWrite = fn }
}
