package sandbox

// Minimal WebAssembly assembler for test plugins. Every fixture exports
// memory (2 pages), a bump allocator __alloc and __transform; the body of
// __transform and the host imports vary per fixture.

const (
	opUnreachable = 0x00
	opEnd         = 0x0B
	opCall        = 0x10
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Const    = 0x41
	opI64Const    = 0x42
	opI32Eqz      = 0x45
	opI32Add      = 0x6A
	opI64ShrU     = 0x88
	opI32WrapI64  = 0xA7

	valI32   = 0x7F
	valI64   = 0x7E
	funcType = 0x60
)

type hostImport struct {
	name    string
	params  []byte
	results []byte
}

var (
	importSetResult   = hostImport{HostSetTransformResult, []byte{valI32, valI32}, nil}
	importGetLeading  = hostImport{HostGetLeading, []byte{valI32}, []byte{valI64}}
	importHasLeading  = hostImport{HostHasLeading, []byte{valI32}, []byte{valI32}}
	importAddLeading  = hostImport{HostAddLeading, []byte{valI32, valI32, valI32}, nil}
	importLookupPos   = hostImport{HostLookupCharPos, []byte{valI32}, []byte{valI64}}
	importSpanSource  = hostImport{HostSpanToSource, []byte{valI32, valI32}, []byte{valI64}}
	importGetContext  = hostImport{HostGetContext, []byte{valI32, valI32}, []byte{valI64}}
	importEmitDiags   = hostImport{HostEmitDiagnostics, []byte{valI32, valI32}, nil}
	transformParams   = []byte{valI32, valI32, valI32, valI32, valI32, valI32, valI32, valI32}
	transformResults  = []byte{valI32}
	allocParams       = []byte{valI32}
	allocResults      = []byte{valI32}
	heapBase          = int64(1024)
	fixtureMemPages   = 2
	noExtraLocals     = []byte{0x00}
	oneI64Local       = []byte{0x01, 0x01, valI64}
	allocBody         = []byte{opGlobalGet, 0, opGlobalGet, 0, opLocalGet, 0, opI32Add, opGlobalSet, 0, opEnd}
	defaultExportList = []string{ExportAlloc, ExportTransform}
)

type fixture struct {
	imports []hostImport
	locals  []byte
	body    []byte
	exports []string
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func wasmName(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func wasmVec(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func section(id byte, content []byte) []byte {
	out := append([]byte{id}, uleb(uint64(len(content)))...)
	return append(out, content...)
}

func encodeFuncType(params, results []byte) []byte {
	out := []byte{funcType}
	out = append(out, uleb(uint64(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint64(len(results)))...)
	return append(out, results...)
}

// importIndex returns the function index of a host import in f.
func (f fixture) importIndex(name string) byte {
	for i, imp := range f.imports {
		if imp.name == name {
			return byte(i)
		}
	}
	panic("fixture does not import " + name)
}

func (f fixture) assemble() []byte {
	var types, imports [][]byte
	for i, imp := range f.imports {
		types = append(types, encodeFuncType(imp.params, imp.results))
		entry := append(wasmName(HostModuleName), wasmName(imp.name)...)
		entry = append(entry, 0x00)
		imports = append(imports, append(entry, uleb(uint64(i))...))
	}
	allocType := len(types)
	types = append(types, encodeFuncType(allocParams, allocResults))
	transformType := len(types)
	types = append(types, encodeFuncType(transformParams, transformResults))

	base := len(f.imports)
	exportList := f.exports
	if exportList == nil {
		exportList = defaultExportList
	}
	exports := [][]byte{append(wasmName(ExportMemory), 0x02, 0x00)}
	for _, name := range exportList {
		idx := base
		if name == ExportTransform {
			idx = base + 1
		}
		exports = append(exports, append(append(wasmName(name), 0x00), uleb(uint64(idx))...))
	}

	locals := f.locals
	if locals == nil {
		locals = noExtraLocals
	}
	transformBody := append(append([]byte{}, locals...), f.body...)
	allocFull := append([]byte{0x00}, allocBody...)

	global := append([]byte{valI32, 0x01, opI32Const}, sleb(heapBase)...)
	global = append(global, opEnd)

	out := []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, wasmVec(types...))...)
	if len(imports) > 0 {
		out = append(out, section(2, wasmVec(imports...))...)
	}
	out = append(out, section(3, wasmVec(uleb(uint64(allocType)), uleb(uint64(transformType))))...)
	out = append(out, section(5, wasmVec([]byte{0x00, byte(fixtureMemPages)}))...)
	out = append(out, section(6, wasmVec(global))...)
	out = append(out, section(7, wasmVec(exports...))...)
	out = append(out, section(10, wasmVec(
		append(uleb(uint64(len(allocFull))), allocFull...),
		append(uleb(uint64(len(transformBody))), transformBody...),
	))...)
	return out
}

// setResultFromPacked calls __set_transform_result with the ptr/len packed
// in i64 local 8.
func setResultFromPacked(setIdx byte) []byte {
	return []byte{
		opLocalGet, 8, opI64Const, 32, opI64ShrU, opI32WrapI64,
		opLocalGet, 8, opI32WrapI64,
		opCall, setIdx,
	}
}

func echoPlugin() []byte {
	f := fixture{imports: []hostImport{importSetResult}}
	f.body = []byte{opLocalGet, 0, opLocalGet, 1, opCall, 0, opI32Const, 0, opEnd}
	return f.assemble()
}

func trapPlugin() []byte {
	f := fixture{body: []byte{opUnreachable, opEnd}}
	return f.assemble()
}

func statusPlugin(status int64) []byte {
	f := fixture{imports: []hostImport{importSetResult}}
	f.body = append([]byte{opLocalGet, 0, opLocalGet, 1, opCall, 0, opI32Const}, sleb(status)...)
	f.body = append(f.body, opEnd)
	return f.assemble()
}

func noResultPlugin() []byte {
	f := fixture{body: []byte{opI32Const, 0, opEnd}}
	return f.assemble()
}

// configPlugin returns its configuration as the result.
func configPlugin() []byte {
	f := fixture{imports: []hostImport{importSetResult}}
	f.body = []byte{opLocalGet, 2, opLocalGet, 3, opCall, 0, opI32Const, 0, opEnd}
	return f.assemble()
}

// leadingCommentsPlugin returns the msgpack leading comments at pos.
func leadingCommentsPlugin(pos int64) []byte {
	f := fixture{imports: []hostImport{importSetResult, importGetLeading}, locals: oneI64Local}
	f.body = append([]byte{opI32Const}, sleb(pos)...)
	f.body = append(f.body, opCall, f.importIndex(HostGetLeading), opLocalSet, 8)
	f.body = append(f.body, setResultFromPacked(0)...)
	f.body = append(f.body, opI32Const, 0, opEnd)
	return f.assemble()
}

// addCommentPlugin adds the program bytes (an encoded comment) as a leading
// comment at pos and echoes them. It fails with status 1 unless
// has_leading(pos) sees the comment afterwards.
func addCommentPlugin(pos int64) []byte {
	f := fixture{imports: []hostImport{importSetResult, importAddLeading, importHasLeading}}
	p := sleb(pos)
	f.body = append([]byte{opI32Const}, p...)
	f.body = append(f.body, opLocalGet, 0, opLocalGet, 1, opCall, 1)
	f.body = append(f.body, opLocalGet, 0, opLocalGet, 1, opCall, 0)
	f.body = append(f.body, opI32Const)
	f.body = append(f.body, p...)
	f.body = append(f.body, opCall, 2, opI32Eqz, opEnd)
	return f.assemble()
}

// lookupPlugin calls an (i32, i32) -> i64 host function with the program
// ptr/len and returns what it produced.
func lookupPlugin(imp hostImport) []byte {
	f := fixture{imports: []hostImport{importSetResult, imp}, locals: oneI64Local}
	f.body = []byte{opLocalGet, 0, opLocalGet, 1, opCall, 1, opLocalSet, 8}
	f.body = append(f.body, setResultFromPacked(0)...)
	f.body = append(f.body, opI32Const, 0, opEnd)
	return f.assemble()
}

// spanPlugin returns span_to_source(lo, hi).
func spanPlugin(lo, hi int64) []byte {
	f := fixture{imports: []hostImport{importSetResult, importSpanSource}, locals: oneI64Local}
	f.body = append([]byte{opI32Const}, sleb(lo)...)
	f.body = append(f.body, opI32Const)
	f.body = append(f.body, sleb(hi)...)
	f.body = append(f.body, opCall, 1, opLocalSet, 8)
	f.body = append(f.body, setResultFromPacked(0)...)
	f.body = append(f.body, opI32Const, 0, opEnd)
	return f.assemble()
}

// charPosPlugin returns lookup_char_pos(pos).
func charPosPlugin(pos int64) []byte {
	f := fixture{imports: []hostImport{importSetResult, importLookupPos}, locals: oneI64Local}
	f.body = append([]byte{opI32Const}, sleb(pos)...)
	f.body = append(f.body, opCall, 1, opLocalSet, 8)
	f.body = append(f.body, setResultFromPacked(0)...)
	f.body = append(f.body, opI32Const, 0, opEnd)
	return f.assemble()
}

// diagnosticsPlugin emits the program bytes as diagnostics and fails.
func diagnosticsPlugin() []byte {
	f := fixture{imports: []hostImport{importEmitDiags}}
	f.body = []byte{opLocalGet, 0, opLocalGet, 1, opCall, 0, opI32Const, 1, opEnd}
	return f.assemble()
}

func withoutTransform() []byte {
	f := fixture{body: []byte{opI32Const, 0, opEnd}, exports: []string{ExportAlloc}}
	return f.assemble()
}
