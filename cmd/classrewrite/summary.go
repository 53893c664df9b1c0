package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/wippyai/jvm-rewrite/pipeline"
)

func printSummary(w io.Writer, s *pipeline.Summary, useColor bool) {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)
	faint := color.New(color.Faint)
	for _, c := range []*color.Color{green, red, yellow, faint} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	for _, r := range s.Failures() {
		red.Fprint(w, "FAIL ")
		fmt.Fprintf(w, "%s: %v\n", r.Name, r.Err)
	}

	green.Fprintf(w, "%d rewritten", s.Rewritten)
	fmt.Fprintf(w, " (%d call sites), %d unchanged, %d skipped", s.Rewrites, s.Unchanged, s.Skipped)
	if s.Cached > 0 {
		fmt.Fprintf(w, ", %d cached", s.Cached)
	}
	if s.Failed > 0 {
		fmt.Fprint(w, ", ")
		red.Fprintf(w, "%d failed", s.Failed)
	}
	if s.Canceled > 0 {
		fmt.Fprint(w, ", ")
		yellow.Fprintf(w, "%d canceled", s.Canceled)
	}
	fmt.Fprintln(w)
	if s.Diagnostics > 0 {
		yellow.Fprintf(w, "%d diagnostics", s.Diagnostics)
		fmt.Fprintln(w, " (run with --log-level debug for details)")
	}
	faint.Fprintf(w, "done in %s\n", s.Elapsed.Round(time.Millisecond))
}
