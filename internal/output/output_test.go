package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_PlainForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	w.Header("Results")
	w.Success("done")
	w.Error("failed")

	out := buf.String()
	assert.Contains(t, out, "Results")
	assert.Contains(t, out, "✓ done")
	assert.Contains(t, out, "✗ failed")
	assert.NotContains(t, out, "\x1b[", "piped output must not carry ANSI escapes")
}

func TestWriter_ResultLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithStyle(&buf, false)

	w.ResultLine(1, "bucket-a/report.csv", 0.876)

	assert.Contains(t, buf.String(), " 1. bucket-a/report.csv (score: 0.88)")
}

func TestWriter_KeyValueAlignment(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithStyle(&buf, false)

	w.KeyValue("classification", "file_search")
	w.KeyValue("keywords", "csv, files")

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], "classification:")
	assert.Contains(t, lines[0], "file_search")
}

func TestWriter_FormattedVariants(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithStyle(&buf, false)

	w.Headerf("Found %d results", 3)
	w.Successf("%s ok", "graphql")
	w.Errorf("%s down", "elasticsearch")
	w.Dimf("took %dms", 42)
	w.Linef("plain %s", "line")

	out := buf.String()
	assert.Contains(t, out, "Found 3 results")
	assert.Contains(t, out, "graphql ok")
	assert.Contains(t, out, "elasticsearch down")
	assert.Contains(t, out, "took 42ms")
	assert.Contains(t, out, "plain line")
}

func TestWriter_Rule(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithStyle(&buf, false)

	w.Rule()

	assert.Contains(t, buf.String(), "────")
}
