package comments

// ShouldBridge reports whether a transform over c needs the comments proxy.
// Both sides must carry comments; a file with comments on only one side is
// treated as comment-free.
func ShouldBridge(c *Comments) bool {
	if c == nil {
		return false
	}
	return !c.Leading.IsEmpty() && !c.Trailing.IsEmpty()
}

// MaybeBridge copies the host maps into a SingleThreaded store, or returns
// nil when ShouldBridge would say no.
func MaybeBridge(leading, trailing *Map) *SingleThreaded {
	if !ShouldBridge(&Comments{Leading: leading, Trailing: trailing}) {
		return nil
	}
	return NewSingleThreaded(leading.snapshot(), trailing.snapshot())
}
