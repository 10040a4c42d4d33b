// Package comments stores source comments keyed by the byte position of the
// token they attach to.
//
// Two representations exist. Map (and the Comments pair built from it) is
// the host's storage: it is filled by the parser and read by many compiler
// goroutines at once, so it is guarded by a lock. SingleThreaded is the
// plain-map form handed to a plugin invocation; it belongs to exactly one
// transform call and must not be shared between goroutines.
//
// MaybeBridge converts the former into the latter. The conversion is a
// one-time copy, not a live view: changes a plugin makes through the comment
// host functions stay in the copy and never reach the host Map.
package comments
