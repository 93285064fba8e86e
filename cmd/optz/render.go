package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"

	"github.com/zoobzio/optz"
)

// Report formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the outcome for one input file.
type Report struct {
	File   string       `json:"file" yaml:"file"`
	Error  string       `json:"error,omitempty" yaml:"error,omitempty"`
	Result *optz.Result `json:"result,omitempty" yaml:"result,omitempty"`
}

type renderFunc func(io.Writer, []Report) error

func renderer(format string) (renderFunc, error) {
	switch format {
	case FormatText:
		return renderText, nil
	case FormatJSON:
		return renderJSON, nil
	case FormatYAML:
		return renderYAML, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want %s, %s, or %s)", format, FormatText, FormatJSON, FormatYAML)
	}
}

// Render writes reports to w in the given format.
func Render(w io.Writer, format string, reports []Report) error {
	render, err := renderer(format)
	if err != nil {
		return err
	}
	return render(w, reports)
}

func renderJSON(w io.Writer, reports []Report) error {
	data, err := sonic.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func renderYAML(w io.Writer, reports []Report) error {
	data, err := yaml.Marshal(reports)
	if err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func renderText(w io.Writer, reports []Report) error {
	var b strings.Builder
	for i, r := range reports {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "== %s ==\n", r.File)
		if r.Error != "" {
			fmt.Fprintf(&b, "error: %s\n", r.Error)
			continue
		}

		res := r.Result
		fmt.Fprintf(&b, "language: %s\n\n", res.Language)
		b.WriteString(res.Code)
		if !strings.HasSuffix(res.Code, "\n") {
			b.WriteString("\n")
		}

		b.WriteString("\nmemory:\n")
		fmt.Fprintf(&b, "  %-7s heap %6d B  stack %6d B\n", "before", res.Before.HeapBytes, res.Before.StackBytes)
		fmt.Fprintf(&b, "  %-7s heap %6d B  stack %6d B\n", "after", res.After.HeapBytes, res.After.StackBytes)

		b.WriteString("\ntimings:\n")
		for _, t := range res.Timings {
			fmt.Fprintf(&b, "  %-26s %9.3f ms\n", t.Step, t.ElapsedMs)
		}

		if len(res.Insights) > 0 {
			b.WriteString("\ninsights:\n")
			for _, insight := range res.Insights {
				fmt.Fprintf(&b, "  - %s\n", insight)
			}
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
