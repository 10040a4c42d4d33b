package transform

import (
	"plugchain/internal/ast"
	"plugchain/internal/comments"
	"plugchain/internal/source"
)

// Context is the per-file information a chain run needs.
type Context struct {
	SourceMap      *source.FileSet
	File           source.FileID
	UnresolvedMark ast.Mark
	// FilePath identifies the file in issues.
	FilePath string
	// FileName is what plugins see as the "filename" metadata.
	FileName string
	Comments *comments.Comments
}

func (c *Context) leadingTrailing() (*comments.Map, *comments.Map) {
	if c == nil || c.Comments == nil {
		return nil, nil
	}
	return c.Comments.Leading, c.Comments.Trailing
}
