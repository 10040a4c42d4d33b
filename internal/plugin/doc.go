// Package plugin manages compiled transform plugin modules.
//
// A plugin arrives as raw WebAssembly bytes plus a name. ModuleCache turns
// that pair into a CompiledModule, compiling at most once per distinct
// (name, bytes) fingerprint for the lifetime of a build session, no matter
// how many files or goroutines ask for it. The cache knows nothing about
// ASTs or transforms; the actual compilation is delegated to a Compiler
// (the sandbox engine in production).
//
// CompiledModule is a cheap handle onto a shared, reference-counted
// artifact. Clone before handing a module to work that may outlive the
// caller's own handle, and Release every handle obtained from Clone or
// CompileOrGet.
package plugin
