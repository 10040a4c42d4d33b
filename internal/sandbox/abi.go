package sandbox

import "github.com/tetratelabs/wazero/api"

// Guest exports.
const (
	ExportMemory     = "memory"
	ExportAlloc      = "__alloc"
	ExportFree       = "__free"
	ExportTransform  = "__transform"
	ExportInitialize = "_initialize"
)

// HostModuleName is the import module plugins link their host calls against.
const HostModuleName = "env"

// Host functions exposed under HostModuleName.
const (
	HostSetTransformResult = "__set_transform_result"
	HostEmitDiagnostics    = "__emit_diagnostics"
	HostGetLeading         = "__get_leading_comments_proxy"
	HostGetTrailing        = "__get_trailing_comments_proxy"
	HostHasLeading         = "__has_leading_comments_proxy"
	HostHasTrailing        = "__has_trailing_comments_proxy"
	HostAddLeading         = "__add_leading_comment_proxy"
	HostAddTrailing        = "__add_trailing_comment_proxy"
	HostLookupCharPos      = "__lookup_char_pos_source_map_proxy"
	HostSpanToSource       = "__span_to_source_proxy"
	HostGetContext         = "__get_transform_context"
)

// statusOK is the __transform return value for success.
const statusOK int32 = 0

type exportSig struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

var (
	i32 = api.ValueTypeI32

	requiredFuncs = []exportSig{
		{name: ExportAlloc, params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		{name: ExportTransform, params: []api.ValueType{i32, i32, i32, i32, i32, i32, i32, i32}, results: []api.ValueType{i32}},
	}
	optionalFuncs = []exportSig{
		{name: ExportFree, params: []api.ValueType{i32, i32}},
		{name: ExportInitialize},
	}
)

func packPtrLen(ptr, n uint32) uint64 {
	return uint64(ptr)<<32 | uint64(n)
}

func boolI32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
