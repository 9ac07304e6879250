// Package runconfig loads the run files of the xltmpl command: an HCL file
// naming the template, the output, the data and the engine options of one
// fill run, plus YAML or JSON data files.
package runconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// Config is one fill run.
type Config struct {
	Template         string
	Output           string
	DataFile         string
	LogLevel         string
	LogFormat        string
	FixedCollections []string
	Recalculate      bool
	NotationBegin    string
	NotationEnd      string
	// Beans given inline in the run file. They win over the data file.
	Beans map[string]any
}

// hclRunFile is the decoding schema of a run file.
type hclRunFile struct {
	Template         string         `hcl:"template"`
	Output           string         `hcl:"output,optional"`
	Data             string         `hcl:"data,optional"`
	LogLevel         string         `hcl:"log_level,optional"`
	LogFormat        string         `hcl:"log_format,optional"`
	FixedCollections []string       `hcl:"fixed_collections,optional"`
	Recalculate      bool           `hcl:"recalculate,optional"`
	Notation         *hclNotation   `hcl:"notation,block"`
	Beans            hcl.Expression `hcl:"beans,optional"`
}

type hclNotation struct {
	Begin string `hcl:"begin"`
	End   string `hcl:"end"`
}

// Load reads a run file. Relative template, output and data paths are
// resolved against the directory of the run file.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run file: %w", err)
	}
	cfg, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	for _, p := range []*string{&cfg.Template, &cfg.Output, &cfg.DataFile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	return cfg, nil
}

// Parse decodes run file source. filename is only used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse run file %s: %w", filename, diags)
	}

	var raw hclRunFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode run file %s: %w", filename, diags)
	}

	cfg := &Config{
		Template:         raw.Template,
		Output:           raw.Output,
		DataFile:         raw.Data,
		LogLevel:         raw.LogLevel,
		LogFormat:        raw.LogFormat,
		FixedCollections: raw.FixedCollections,
		Recalculate:      raw.Recalculate,
	}
	if raw.Notation != nil {
		cfg.NotationBegin, cfg.NotationEnd = raw.Notation.Begin, raw.Notation.End
	}

	if raw.Beans != nil {
		val, diags := raw.Beans.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("evaluate beans in %s: %w", filename, diags)
		}
		native, err := ctyToNative(val)
		if err != nil {
			return nil, fmt.Errorf("beans in %s: %w", filename, err)
		}
		switch b := native.(type) {
		case nil:
		case map[string]any:
			cfg.Beans = b
		default:
			return nil, fmt.Errorf("beans in %s: expected an object, got %T", filename, native)
		}
	}
	return cfg, nil
}

// Data loads the data file, if any, and overlays the inline beans.
func (c *Config) Data() (map[string]any, error) {
	data := make(map[string]any)
	if c.DataFile != "" {
		loaded, err := LoadData(c.DataFile)
		if err != nil {
			return nil, err
		}
		data = loaded
	}
	for k, v := range c.Beans {
		data[k] = v
	}
	return data, nil
}

// LoadData reads a YAML or JSON file whose top level is a mapping.
func LoadData(path string) (map[string]any, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read data file: %w", err)
	}
	return ParseData(src)
}

// ParseData decodes YAML or JSON data. An empty document is an empty map.
func ParseData(src []byte) (map[string]any, error) {
	data := make(map[string]any)
	if err := yaml.Unmarshal(src, &data); err != nil {
		return nil, fmt.Errorf("decode data: %w", err)
	}
	return data, nil
}
