package runconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Full(t *testing.T) {
	src := `
template          = "report.xlsx"
output            = "out/report.xlsx"
data              = "data.yaml"
log_level         = "debug"
log_format        = "json"
fixed_collections = ["totals", "summary"]
recalculate       = true

notation {
  begin = "{{"
  end   = "}}"
}

beans = {
  title = "Q3"
  employees = [
    { name = "Elsa", payment = 1500.5, age = 30 },
    { name = "Oleg", payment = 2300, age = 41 },
  ]
  active = true
}
`
	cfg, err := Parse([]byte(src), "run.hcl")
	require.NoError(t, err)

	want := &Config{
		Template:         "report.xlsx",
		Output:           "out/report.xlsx",
		DataFile:         "data.yaml",
		LogLevel:         "debug",
		LogFormat:        "json",
		FixedCollections: []string{"totals", "summary"},
		Recalculate:      true,
		NotationBegin:    "{{",
		NotationEnd:      "}}",
		Beans: map[string]any{
			"title": "Q3",
			"employees": []any{
				map[string]any{"name": "Elsa", "payment": 1500.5, "age": 30},
				map[string]any{"name": "Oleg", "payment": 2300, "age": 41},
			},
			"active": true,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Minimal(t *testing.T) {
	cfg, err := Parse([]byte(`template = "t.xlsx"`), "run.hcl")
	require.NoError(t, err)
	assert.Equal(t, "t.xlsx", cfg.Template)
	assert.Nil(t, cfg.Beans)
	assert.Empty(t, cfg.NotationBegin)
	assert.False(t, cfg.Recalculate)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `template = `},
		{"missing template", `output = "x.xlsx"`},
		{"unknown attribute", "template = \"t.xlsx\"\ncolor = \"red\""},
		{"beans not an object", "template = \"t.xlsx\"\nbeans = [1, 2]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "run.hcl")
			assert.Error(t, err)
		})
	}
}

func TestLoad_ResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.hcl")
	src := "template = \"t.xlsx\"\noutput = \"/abs/out.xlsx\"\ndata = \"d.yaml\"\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "t.xlsx"), cfg.Template)
	assert.Equal(t, "/abs/out.xlsx", cfg.Output)
	assert.Equal(t, filepath.Join(dir, "d.yaml"), cfg.DataFile)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	assert.Error(t, err)
}

func TestParseData(t *testing.T) {
	data, err := ParseData([]byte(`
title: Report
employees:
  - name: Elsa
    payment: 1500
  - name: Oleg
    payment: 2300.5
`))
	require.NoError(t, err)
	want := map[string]any{
		"title": "Report",
		"employees": []any{
			map[string]any{"name": "Elsa", "payment": 1500},
			map[string]any{"name": "Oleg", "payment": 2300.5},
		},
	}
	if diff := cmp.Diff(want, data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestParseData_JSON(t *testing.T) {
	data, err := ParseData([]byte(`{"items": [1, 2, 3], "name": "x"}`))
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, data["items"])
	assert.Equal(t, "x", data["name"])
}

func TestParseData_Empty(t *testing.T) {
	data, err := ParseData(nil)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestParseData_NotAMapping(t *testing.T) {
	_, err := ParseData([]byte("- a\n- b\n"))
	assert.Error(t, err)
}

func TestConfigData_InlineBeansWin(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "d.yaml")
	require.NoError(t, os.WriteFile(dataPath, []byte("title: From file\ncount: 3\n"), 0o644))

	cfg := &Config{DataFile: dataPath, Beans: map[string]any{"title": "Inline"}}
	data, err := cfg.Data()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "Inline", "count": 3}, data)
}

func TestConfigData_NoFile(t *testing.T) {
	cfg := &Config{Beans: map[string]any{"a": 1}}
	data, err := cfg.Data()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1}, data)
}
