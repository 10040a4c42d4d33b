// Package transform applies an ordered chain of sandboxed plugins to a
// program.
//
// The program crosses into each plugin as serialized bytes and comes back
// the same way; the host deserializes exactly once, after the last plugin.
// Builds without the sandbox runtime (tag plugchain_nosandbox) get a runner
// that only reports a warning and leaves the program untouched.
package transform
