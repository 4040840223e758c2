package bcc

import (
	"context"
	"fmt"
	"slices"

	"github.com/giantswarm/procexpect"
)

// Comparison is the outcome of EqualResults.
type Comparison struct {
	// Equal is true when every process exited 0 and all outputs are
	// identical.
	Equal bool
	// Output is the common output when Equal.
	Output []string
	// Results holds every captured result.
	Results map[string]procexpect.Result
}

// EqualResults captures the named processes to completion and compares
// their outputs.
func EqualResults(ctx context.Context, s procexpect.Session, names ...string) (Comparison, error) {
	if len(names) == 0 {
		return Comparison{}, fmt.Errorf("compare results: no processes named")
	}

	results, err := s.Capture(ctx, names...)
	if err != nil {
		return Comparison{}, fmt.Errorf("capture results: %w", err)
	}

	cmp := Comparison{Results: results}
	first := results[names[0]].Lines
	for _, name := range names {
		r := results[name]
		if r.ExitCode != 0 || !slices.Equal(r.Lines, first) {
			return cmp, nil
		}
	}
	cmp.Equal = true
	cmp.Output = first
	return cmp, nil
}

// Summary returns the row-count footer psql prints ("(42 rows)"), or "" if
// the output is too short to have one.
func (c Comparison) Summary() string {
	// psql ends its output with the footer and a blank line.
	if len(c.Output) < 2 {
		return ""
	}
	return c.Output[len(c.Output)-2]
}
