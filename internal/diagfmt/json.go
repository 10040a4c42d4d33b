package diagfmt

import (
	"encoding/json"
	"io"
	"strings"

	"plugchain/internal/diag"
)

// IssueJSON is the JSON form of one issue.
type IssueJSON struct {
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Context     string `json:"context"`
}

// IssuesOutput is the root of the JSON output.
type IssuesOutput struct {
	Issues   []IssueJSON `json:"issues"`
	Count    int         `json:"count"`
	Errors   int         `json:"errors"`
	Warnings int         `json:"warnings"`
}

// BuildIssuesOutput converts issues without encoding them. Counters cover
// every issue even when Max truncates the list.
func BuildIssuesOutput(issues []diag.Issue, opts JSONOpts) IssuesOutput {
	n := len(issues)
	if opts.Max > 0 && opts.Max < n {
		n = opts.Max
	}

	out := IssuesOutput{Issues: make([]IssueJSON, 0, n)}
	for i, is := range issues {
		switch is.Severity {
		case diag.SevError:
			out.Errors++
		case diag.SevWarning:
			out.Warnings++
		}
		if i >= n {
			continue
		}
		out.Issues = append(out.Issues, IssueJSON{
			Severity:    strings.ToLower(is.Severity.String()),
			Category:    is.Category,
			Title:       is.Title,
			Description: is.Description,
			Context:     formatPath(is.Context, opts.PathMode, opts.BaseDir),
		})
	}
	out.Count = len(out.Issues)
	return out
}

// JSON writes issues as an indented JSON document.
func JSON(w io.Writer, issues []diag.Issue, opts JSONOpts) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(BuildIssuesOutput(issues, opts))
}
