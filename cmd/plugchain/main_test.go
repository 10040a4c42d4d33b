package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus"

	"plugchain/internal/ast"
	"plugchain/internal/comments"
	"plugchain/internal/config"
	"plugchain/internal/diag"
	"plugchain/internal/metrics"
	"plugchain/internal/sandbox"
	"plugchain/internal/source"
	"plugchain/internal/transform"
)

const sampleUnit = `{
  "path": "src/app.js",
  "source": "// greet\nfoo(a);\n",
  "program": {
    "kind": 0,
    "span": {"file": 0, "start": 9, "end": 16},
    "body": [
      {"kind": "ExprStmt", "span": {"file": 0, "start": 9, "end": 16}, "children": [
        {"kind": "Call", "span": {"file": 0, "start": 9, "end": 15}, "children": [
          {"kind": "Ident", "span": {"file": 0, "start": 9, "end": 12}, "sym": "foo"},
          {"kind": "Ident", "span": {"file": 0, "start": 13, "end": 14}, "sym": "a"}
        ]}
      ]}
    ]
  },
  "comments": {
    "leading": {"9": [{"kind": 0, "span": {"file": 0, "start": 0, "end": 8}, "text": " greet"}]}
  }
}
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadUnitBuildsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.json")
	writeFile(t, path, sampleUnit)

	u, err := readUnit(path)
	if err != nil {
		t.Fatalf("readUnit: %v", err)
	}
	if got := len(u.Program.Body); got != 1 {
		t.Fatalf("body length = %d, want 1", got)
	}

	fileSet := source.NewFileSet()
	tctx := u.context(fileSet)
	if tctx.FilePath != "src/app.js" || tctx.FileName != "app.js" {
		t.Fatalf("unexpected file identity %q / %q", tctx.FilePath, tctx.FileName)
	}
	if tctx.UnresolvedMark != defaultUnresolvedMark {
		t.Fatalf("UnresolvedMark = %d, want %d", tctx.UnresolvedMark, defaultUnresolvedMark)
	}
	if !tctx.Comments.Leading.Has(9) {
		t.Fatalf("leading comment at 9 not loaded")
	}
	if !tctx.Comments.Trailing.IsEmpty() {
		t.Fatalf("trailing comments should be empty")
	}

	text, err := fileSet.SpanToSource(source.Span{File: tctx.File, Start: 9, End: 15})
	if err != nil {
		t.Fatalf("SpanToSource: %v", err)
	}
	if text != "foo(a)" {
		t.Fatalf("SpanToSource = %q, want %q", text, "foo(a)")
	}
}

func TestReadUnitKeepsSourceBytes(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		start, end source.BytePos
		want       string
	}{
		{"crlf", "a;\r\nbc;", 4, 6, "bc"},
		{"bom", "\xef\xbb\xbfab", 3, 5, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := json.Marshal(map[string]any{
				"path":    "src/" + tt.name + ".js",
				"source":  tt.source,
				"program": map[string]any{"kind": 1},
			})
			if err != nil {
				t.Fatalf("marshal unit: %v", err)
			}
			path := filepath.Join(t.TempDir(), tt.name+".json")
			writeFile(t, path, string(raw))

			u, err := readUnit(path)
			if err != nil {
				t.Fatalf("readUnit: %v", err)
			}
			fileSet := source.NewFileSet()
			tctx := u.context(fileSet)

			text, err := fileSet.SpanToSource(source.Span{File: tctx.File, Start: tt.start, End: tt.end})
			if err != nil {
				t.Fatalf("SpanToSource: %v", err)
			}
			if text != tt.want {
				t.Fatalf("SpanToSource = %q, want %q", text, tt.want)
			}
		})
	}
}

func TestReadUnitDefaultsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.json")
	writeFile(t, path, `{"source": "", "program": {"kind": 1}}`)

	u, err := readUnit(path)
	if err != nil {
		t.Fatalf("readUnit: %v", err)
	}
	if u.Path != path {
		t.Fatalf("Path = %q, want %q", u.Path, path)
	}
	if u.Program.Kind != ast.ProgramScript {
		t.Fatalf("Kind = %v, want script", u.Program.Kind)
	}
}

func TestReadUnitRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	writeFile(t, path, `{"program": [`)

	if _, err := readUnit(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestResolveMode(t *testing.T) {
	m := &config.Manifest{Transform: config.TransformSection{Mode: "development"}}
	cases := []struct {
		flag    string
		want    string
		wantErr bool
	}{
		{"", "development", false},
		{"production", "production", false},
		{" development ", "development", false},
		{"staging", "", true},
	}
	for _, tc := range cases {
		got, err := resolveMode(m, tc.flag)
		if tc.wantErr {
			if !errors.Is(err, config.ErrInvalidMode) {
				t.Fatalf("resolveMode(%q) error = %v, want ErrInvalidMode", tc.flag, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("resolveMode(%q) error: %v", tc.flag, err)
		}
		if got != tc.want {
			t.Fatalf("resolveMode(%q) = %q, want %q", tc.flag, got, tc.want)
		}
	}
}

func TestChainIssuesIncludePluginDiagnostics(t *testing.T) {
	err := &transform.Error{
		Kind:   transform.KindPluginExecution,
		Plugin: "strip",
		Index:  1,
		Err: &sandbox.ExecutionError{
			Plugin: "strip",
			Err:    &sandbox.StatusError{Status: 3},
			Diagnostics: []sandbox.PluginDiagnostic{
				{Level: sandbox.LevelWarning, Message: "suspicious call"},
				{Level: sandbox.LevelError, Message: "cannot rewrite", Span: source.Span{Start: 4, End: 9}},
			},
		},
	}

	issues := chainIssues("src/app.js", err)
	if len(issues) != 3 {
		t.Fatalf("got %d issues, want 3", len(issues))
	}
	if issues[0].Severity != diag.SevError || issues[0].Context != "src/app.js" {
		t.Fatalf("unexpected chain issue %+v", issues[0])
	}
	if issues[1].Severity != diag.SevWarning || issues[1].Title != "strip: suspicious call" {
		t.Fatalf("unexpected warning issue %+v", issues[1])
	}
	if issues[2].Severity != diag.SevError || issues[2].Description != "at bytes 4..9" {
		t.Fatalf("unexpected error issue %+v", issues[2])
	}
}

func TestChainIssuesPlainError(t *testing.T) {
	issues := chainIssues("a.js", &transform.Error{Kind: transform.KindDeserialize, Err: errors.New("boom")})
	if len(issues) != 1 {
		t.Fatalf("got %d issues, want 1", len(issues))
	}
	if !strings.Contains(issues[0].Title, "boom") {
		t.Fatalf("title %q does not mention the cause", issues[0].Title)
	}
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.CacheHit()
	m.CacheMiss()

	var buf bytes.Buffer
	if err := writeMetrics(&buf, reg); err != nil {
		t.Fatalf("writeMetrics: %v", err)
	}
	out := buf.String()
	for _, name := range []string{"module_cache_hits_total 1", "module_cache_misses_total 1"} {
		if !strings.Contains(out, name) {
			t.Fatalf("metrics output lacks %q:\n%s", name, out)
		}
	}
}

func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err = rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestTransformEmptyChainRoundTrips(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, config.ManifestName)
	writeFile(t, manifest, "[transform]\nmode = \"production\"\n")
	unitPath := filepath.Join(dir, "units", "app.json")
	writeFile(t, unitPath, sampleUnit)
	outDir := filepath.Join(dir, "out")

	_, stderr, err := execute(t, "--color", "off", "transform", "--manifest", manifest, "--out-dir", outDir, unitPath)
	if err != nil {
		t.Fatalf("transform: %v\n%s", err, stderr)
	}

	want, err := readUnit(unitPath)
	if err != nil {
		t.Fatalf("readUnit input: %v", err)
	}
	got, err := readUnit(filepath.Join(outDir, "app.json"))
	if err != nil {
		t.Fatalf("readUnit output: %v", err)
	}
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unit changed (-want +got):\n%s", diff)
	}
	if got.Comments.Leading[9][0].Kind != comments.Line {
		t.Fatalf("leading comment kind = %v, want line", got.Comments.Leading[9][0].Kind)
	}
}

func TestTransformMissingUnitFails(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, config.ManifestName)
	writeFile(t, manifest, "")

	_, _, err := execute(t, "--color", "off", "transform", "--manifest", manifest, filepath.Join(dir, "nope.json"))
	if err == nil {
		t.Fatalf("expected error for missing unit")
	}
}

func TestVersionJSON(t *testing.T) {
	stdout, _, err := execute(t, "version", "--format", "json")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	var payload versionPayload
	if err := json.Unmarshal([]byte(stdout), &payload); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if payload.Tool != "plugchain" || payload.Version == "" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if !strings.Contains(payload.Go, "go") {
		t.Fatalf("go version %q", payload.Go)
	}
}
