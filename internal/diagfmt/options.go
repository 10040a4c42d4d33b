package diagfmt

// PathMode specifies how issue contexts that are file paths are displayed.
type PathMode uint8

const (
	// PathModeAuto prints paths as recorded.
	PathModeAuto PathMode = iota
	PathModeAbsolute
	PathModeRelative
	PathModeBasename
)

// PrettyOpts configures human-readable output.
type PrettyOpts struct {
	Color    bool
	PathMode PathMode
	BaseDir  string // for PathModeRelative
	// ShowDescription prints the indented description under each title.
	ShowDescription bool
}

// JSONOpts configures JSON output.
type JSONOpts struct {
	PathMode PathMode
	BaseDir  string
	Max      int // truncates output, not the bag
}
