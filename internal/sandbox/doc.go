// Package sandbox runs transform plugins inside wazero.
//
// An Engine owns the compilation cache shared by every plugin of a session
// and implements plugin.Compiler. Each Transform call gets its own runtime:
// the guest module is instantiated next to WASI and a host module named
// "env" whose functions close over one invocation's state (source map,
// metadata, bridged comments). Nothing about an invocation is reachable
// through globals, so concurrent chains never observe each other.
//
// Guest contract:
//
//	memory                         exported linear memory
//	__alloc(size i32) i32          allocate size bytes for host writes
//	__transform(prog_ptr, prog_len, cfg_ptr, cfg_len,
//	            meta_ptr, meta_len, mark, comments i32) i32
//	__free(ptr, len i32)           optional
//	_initialize()                  optional, run at instantiation
//
// Host values returned to the guest as i64 are packed as ptr<<32 | len,
// with 0 meaning "nothing".
package sandbox
