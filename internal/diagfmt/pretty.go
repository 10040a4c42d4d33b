package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"plugchain/internal/diag"
)

// Pretty writes one block per issue:
//
//	<context>: <severity>[<category>]: <title>
//	    <description>
//
// followed by a summary line. Issues are printed in the given order; sort
// the bag first for stable output.
func Pretty(w io.Writer, issues []diag.Issue, opts PrettyOpts) {
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}
		c.EnableColor()
		return c.Sprint(s)
	}
	bold := color.New(color.Bold)

	var errs, warns int
	for _, is := range issues {
		switch is.Severity {
		case diag.SevError:
			errs++
		case diag.SevWarning:
			warns++
		}

		ctx := formatPath(is.Context, opts.PathMode, opts.BaseDir)
		if ctx != "" {
			fmt.Fprintf(w, "%s: ", paint(bold, ctx))
		}
		sev := paint(severityColor(is.Severity), strings.ToLower(is.Severity.String()))
		fmt.Fprintf(w, "%s[%s]: %s\n", sev, is.Category, is.Title)

		if opts.ShowDescription && is.Description != "" {
			for _, line := range strings.Split(is.Description, "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}

	if len(issues) > 0 {
		fmt.Fprintf(w, "%s\n", paint(bold, summary(errs, warns)))
	}
}

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return color.New(color.FgRed, color.Bold)
	case diag.SevWarning:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}

func summary(errs, warns int) string {
	plural := func(n int, word string) string {
		if n == 1 {
			return fmt.Sprintf("%d %s", n, word)
		}
		return fmt.Sprintf("%d %ss", n, word)
	}
	return plural(errs, "error") + ", " + plural(warns, "warning")
}
