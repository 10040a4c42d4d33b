package diagfmt

import "path/filepath"

func formatPath(p string, mode PathMode, baseDir string) string {
	if p == "" {
		return p
	}
	switch mode {
	case PathModeAbsolute:
		if abs, err := filepath.Abs(p); err == nil {
			return filepath.ToSlash(abs)
		}
	case PathModeRelative:
		if baseDir == "" {
			return p
		}
		if rel, err := filepath.Rel(baseDir, p); err == nil {
			return filepath.ToSlash(rel)
		}
	case PathModeBasename:
		return filepath.Base(p)
	}
	return p
}
