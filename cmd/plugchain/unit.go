package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"plugchain/internal/ast"
	"plugchain/internal/comments"
	"plugchain/internal/source"
	"plugchain/internal/transform"
)

// defaultUnresolvedMark is used for units that do not record the mark their
// resolver created.
const defaultUnresolvedMark ast.Mark = 1

// unitFile is one parsed program as the transform command reads and writes
// it.
type unitFile struct {
	Path           string       `json:"path"`
	Source         string       `json:"source"`
	UnresolvedMark ast.Mark     `json:"unresolved_mark,omitempty"`
	Program        ast.Program  `json:"program"`
	Comments       unitComments `json:"comments"`
}

type unitComments struct {
	Leading  map[source.BytePos][]comments.Comment `json:"leading,omitempty"`
	Trailing map[source.BytePos][]comments.Comment `json:"trailing,omitempty"`
}

func readUnit(path string) (*unitFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read unit: %w", err)
	}
	var u unitFile
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("%s: failed to decode unit: %w", path, err)
	}
	if u.Path == "" {
		u.Path = path
	}
	return &u, nil
}

// context registers the unit's source in fileSet and builds the
// per-file transform context.
func (u *unitFile) context(fileSet *source.FileSet) *transform.Context {
	// Spans in the unit index the source byte for byte, so it is stored
	// without BOM or line-ending normalization.
	file := fileSet.Add(u.Path, []byte(u.Source), source.FileVirtual)

	cs := comments.New()
	for pos, list := range u.Comments.Leading {
		cs.AddLeading(pos, list...)
	}
	for pos, list := range u.Comments.Trailing {
		cs.AddTrailing(pos, list...)
	}

	mark := u.UnresolvedMark
	if !mark.IsValid() {
		mark = defaultUnresolvedMark
	}
	return &transform.Context{
		SourceMap:      fileSet,
		File:           file,
		UnresolvedMark: mark,
		FilePath:       u.Path,
		FileName:       filepath.Base(u.Path),
		Comments:       cs,
	}
}

func (u *unitFile) encode() ([]byte, error) {
	data, err := json.MarshalIndent(u, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%s: failed to encode unit: %w", u.Path, err)
	}
	return append(data, '\n'), nil
}

// writeUnit stores u under outDir with the base name of the input file.
func writeUnit(outDir, inputPath string, u *unitFile) error {
	data, err := u.encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	dst := filepath.Join(outDir, filepath.Base(inputPath))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fmt.Errorf("failed to write unit: %w", err)
	}
	return nil
}
