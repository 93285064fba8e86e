package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoobzio/optz"
)

func sampleReports() []Report {
	return []Report{
		{
			File: "main.c",
			Result: &optz.Result{
				RunID:    "run-1",
				Language: optz.CPP,
				Code:     "int a = 5;",
				Before:   optz.MemoryUsage{StackBytes: 4},
				After:    optz.MemoryUsage{StackBytes: 4},
				Timings: []optz.TimingEntry{
					{Step: optz.FoldConstantsName, ElapsedMs: 0.25},
					{Step: optz.TotalStep, ElapsedMs: 0.5},
				},
				Insights: []string{"Applied constant folding to simplify arithmetic expressions."},
			},
		},
		{File: "big.c", Error: "optimizer failed after 0s: input exceeds size budget"},
	}
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatText, sampleReports()))

	out := buf.String()
	assert.Contains(t, out, "== main.c ==")
	assert.Contains(t, out, "language: CPP")
	assert.Contains(t, out, "int a = 5;\n")
	assert.Contains(t, out, "  - Applied constant folding")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "== big.c ==\nerror: optimizer failed")
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatJSON, sampleReports()))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)

	result, ok := decoded[0]["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "int a = 5;", result["optimizedCode"])
	assert.Equal(t, "CPP", result["language"])
	assert.NotContains(t, decoded[1], "result")
	assert.Equal(t, "big.c", decoded[1]["file"])
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, FormatYAML, sampleReports()))

	var decoded []Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	require.NotNil(t, decoded[0].Result)
	assert.Equal(t, "int a = 5;", decoded[0].Result.Code)
	assert.Equal(t, optz.CPP, decoded[0].Result.Language)
	assert.Len(t, decoded[0].Result.Timings, 2)
	assert.Equal(t, "big.c", decoded[1].File)
	assert.Nil(t, decoded[1].Result)
}

func TestRenderUnknownFormat(t *testing.T) {
	err := Render(&bytes.Buffer{}, "xml", sampleReports())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown format"))
}
