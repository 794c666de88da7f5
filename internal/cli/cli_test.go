package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixedSchema = `
schema "fixed" {
  line "Person" {
    cell "name" {
      length = 6
    }
    cell "age" {
      type   = "integer"
      length = 3
      align  = "right"
    }
  }
}
`

const delimitedSchema = `
schema "delimited" {
  line "Person" {
    cell_separator = ";"
    cell "name" {}
    cell "age" {
      type = "integer"
    }
  }
}
`

const people = "Erik   42\nAnna    7\n"

func write(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("FLATCODEC_INPUT_EXT", ".txt")
	t.Setenv("FLATCODEC_ON_NO_MATCH", "warn")
	t.Setenv("FLATCODEC_ON_TRAILING", "warn")
	t.Setenv("FLATCODEC_LOG_LEVEL", "error")
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseThenCompose(t *testing.T) {
	dir := t.TempDir()
	fixed := write(t, dir, "fixed.hcl", fixedSchema)
	write(t, dir, "people.txt", people)
	jsonl := filepath.Join(dir, "people.jsonl")

	_, err := run(t, "", "parse", "--schema", fixed, "-o", jsonl, dir)
	require.NoError(t, err)
	data, err := os.ReadFile(jsonl)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), `"line_type":"Person"`))
	assert.Contains(t, string(data), `{"name":"age","type":"INTEGER","value":"42"}`)

	out, err := run(t, "", "compose", "--schema", fixed, jsonl)
	require.NoError(t, err)
	assert.Equal(t, people, out)

	out, err = run(t, string(data), "compose", "--schema", fixed, "-")
	require.NoError(t, err)
	assert.Equal(t, people, out, "compose reads stdin")
}

func TestParseDump(t *testing.T) {
	dir := t.TempDir()
	fixed := write(t, dir, "fixed.hcl", fixedSchema)
	input := write(t, dir, "people.txt", people)

	out, err := run(t, "", "parse", "--schema", fixed, "--dump", input)
	require.NoError(t, err)
	assert.Contains(t, out, `LineType: (string) (len=6) "Person"`)
}

func TestParseReportsFailedFiles(t *testing.T) {
	dir := t.TempDir()
	flat := write(t, dir, "flat.hcl", `
schema "fixed" {
  line_separator = ""
  line "Row" {
    cell "v" {
      length = 4
    }
  }
}
`)
	write(t, dir, "ok.txt", "abcdefgh")
	write(t, dir, "short.txt", "abcdef")

	out, err := run(t, "", "parse", "--schema", flat, dir)
	assert.ErrorContains(t, err, "1 of 2 files failed")
	assert.Equal(t, 3, strings.Count(out, "\n"), "lines before the failure are still written")
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	fixed := write(t, dir, "fixed.hcl", fixedSchema)
	delimited := write(t, dir, "delimited.hcl", delimitedSchema)
	input := write(t, dir, "people.txt", people)

	out, err := run(t, "", "convert", "--from", fixed, "--to", delimited, input)
	require.NoError(t, err)
	assert.Equal(t, "Erik;42\nAnna;7\n", out)

	target := filepath.Join(dir, "back.txt")
	_, err = run(t, out, "convert", "--from", delimited, "--to", fixed, "-o", target, "-")
	require.NoError(t, err)
	back, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, people, string(back))
}

func TestConvertStopsOnFatalNoMatch(t *testing.T) {
	dir := t.TempDir()
	fixed := write(t, dir, "fixed.hcl", fixedSchema)
	other := write(t, dir, "other.hcl", `
schema "delimited" {
  line "Company" {
    cell "name" {}
  }
}
`)
	input := write(t, dir, "people.txt", people)

	t.Setenv("FLATCODEC_ON_NO_MATCH", "fatal")
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"convert", "--from", fixed, "--to", other, input})
	err := cmd.Execute()
	assert.ErrorContains(t, err, "no matching line type")
}

func TestMissingSchemaFlag(t *testing.T) {
	_, err := run(t, "", "parse", "somewhere")
	assert.Error(t, err)
}
