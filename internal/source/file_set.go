package source

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"sync"

	"fortio.org/safecast"
)

var (
	// ErrUnknownFile is returned for a FileID the set has never issued.
	ErrUnknownFile = errors.New("unknown file")
	// ErrOutOfRange is returned for positions past the end of a file.
	ErrOutOfRange = errors.New("position out of range")
)

// FileSet manages a collection of source files and resolves byte offsets to
// line/column positions. It is the source map shared by every transform of
// a build session and is safe for concurrent use.
type FileSet struct {
	mu    sync.RWMutex
	files []*File
	index map[string]FileID // path -> latest id
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]*File, 0),
		index: make(map[string]FileID),
	}
}

// Add stores a file from normalized bytes, computes LineIdx and Hash, and returns a new FileID.
// It always creates a new FileID even if a file with the same path already exists.
func (fileSet *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	hash := sha256.Sum256(content)
	lineIdx := buildLineIndex(content)
	normalizedPath := normalizePath(path)

	fileSet.mu.Lock()
	defer fileSet.mu.Unlock()

	lenFiles, err := safecast.Conv[uint32](len(fileSet.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fileSet.files = append(fileSet.files, &File{
		ID:      id,
		Path:    normalizedPath,
		Content: content,
		LineIdx: lineIdx,
		Hash:    hash,
		Flags:   flags,
	})
	fileSet.index[normalizedPath] = id
	return id
}

// Load reads a file from disk, normalizes CRLF/BOM, and calls Add.
func (fileSet *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return fileSet.Add(path, content, flags), nil
}

// AddVirtual adds an in-memory file with the FileVirtual flag.
func (fileSet *FileSet) AddVirtual(name string, content []byte) FileID {
	content, _ = removeBOM(content)
	content, _ = normalizeCRLF(content)
	return fileSet.Add(name, content, FileVirtual)
}

// Get returns the file for the given ID, or nil if it does not exist.
func (fileSet *FileSet) Get(id FileID) *File {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	if int(id) >= len(fileSet.files) {
		return nil
	}
	return fileSet.files[id]
}

// GetLatest returns the latest file ID for the given path, if it exists.
func (fileSet *FileSet) GetLatest(path string) (FileID, bool) {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	id, ok := fileSet.index[normalizePath(path)]
	return id, ok
}

// Len returns the number of files ever added.
func (fileSet *FileSet) Len() int {
	fileSet.mu.RLock()
	defer fileSet.mu.RUnlock()
	return len(fileSet.files)
}

// Resolve converts a span into line and column positions.
func (fileSet *FileSet) Resolve(span Span) (start, end LineCol, err error) {
	f := fileSet.Get(span.File)
	if f == nil {
		return LineCol{}, LineCol{}, fmt.Errorf("%w: %d", ErrUnknownFile, span.File)
	}
	return toLineCol(f.LineIdx, uint32(span.Start)), toLineCol(f.LineIdx, uint32(span.End)), nil
}

// LookupLoc resolves a single position in a file.
func (fileSet *FileSet) LookupLoc(id FileID, pos BytePos) (Loc, error) {
	f := fileSet.Get(id)
	if f == nil {
		return Loc{}, fmt.Errorf("%w: %d", ErrUnknownFile, id)
	}
	if int(pos) > len(f.Content) {
		return Loc{}, fmt.Errorf("%w: %d > %d", ErrOutOfRange, pos, len(f.Content))
	}
	lc := toLineCol(f.LineIdx, uint32(pos))
	return Loc{File: f.Path, Line: lc.Line, Col: lc.Col}, nil
}

// SpanToSource returns the source text covered by span.
func (fileSet *FileSet) SpanToSource(span Span) (string, error) {
	f := fileSet.Get(span.File)
	if f == nil {
		return "", fmt.Errorf("%w: %d", ErrUnknownFile, span.File)
	}
	if span.End < span.Start || int(span.End) > len(f.Content) {
		return "", fmt.Errorf("%w: %s", ErrOutOfRange, span)
	}
	return string(f.Content[span.Start:span.End]), nil
}

// GetLine returns the line with the given 1-based number, or "" if it does not exist.
func (f *File) GetLine(lineNum uint32) string {
	if lineNum == 0 {
		return ""
	}

	var start, end uint32
	lenLineIdx, err := safecast.Conv[uint32](len(f.LineIdx))
	if err != nil {
		panic(fmt.Errorf("line index length overflow: %w", err))
	}
	lenContent, err := safecast.Conv[uint32](len(f.Content))
	if err != nil {
		panic(fmt.Errorf("content length overflow: %w", err))
	}

	switch {
	case lineNum == 1:
		start = 0
	case (lineNum - 2) < lenLineIdx:
		start = f.LineIdx[lineNum-2] + 1
	default:
		return ""
	}

	if (lineNum - 1) < lenLineIdx {
		end = f.LineIdx[lineNum-1]
	} else {
		end = lenContent
	}

	if start >= lenContent {
		return ""
	}
	if end > lenContent {
		end = lenContent
	}

	return string(f.Content[start:end])
}
