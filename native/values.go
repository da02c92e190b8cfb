package native

import (
	"raya/heap"
	"raya/interp"
	"raya/rerr"
	"raya/value"
)

// goString extracts a Go string from a heap-allocated StringBody Value.
// Grounded on builtins' argument-unwrapping idiom (every builtinFoo in
// builtins/*.go first type-asserts args[i].(types.StrValue)), adapted
// from MOO's type-asserted Value interface to this runtime's tagged
// Value plus a heap lookup.
func goString(ctx *interp.NativeContext, v value.Value) (string, bool) {
	if !v.IsPointer() {
		return "", false
	}
	obj := ctx.Host.Heap().Get(v)
	if obj == nil {
		return "", false
	}
	sb, ok := obj.Body.(heap.StringBody)
	if !ok {
		return "", false
	}
	return string(sb.Bytes), true
}

// newString allocates a string object and returns a pointer Value to it.
func newString(ctx *interp.NativeContext, s string) value.Value {
	return ctx.Host.Heap().Allocate(heap.TypeString, uint32(len(s)), heap.StringBody{Bytes: []byte(s)})
}

// newArray allocates an array object from elems.
func newArray(ctx *interp.NativeContext, elems []value.Value) value.Value {
	size := uint32(len(elems)) * 8
	return ctx.Host.Heap().Allocate(heap.TypeArray, size, heap.ArrayBody{Elements: elems})
}

// goArray extracts the element slice of an array-typed Value.
func goArray(ctx *interp.NativeContext, v value.Value) ([]value.Value, bool) {
	if !v.IsPointer() {
		return nil, false
	}
	obj := ctx.Host.Heap().Get(v)
	if obj == nil {
		return nil, false
	}
	ab, ok := obj.Body.(heap.ArrayBody)
	if !ok {
		return nil, false
	}
	return ab.Elements, true
}

func argErr(format string, args ...any) interp.NativeDirective {
	return interp.NativeDirective{Kind: interp.NativeException, Err: rerr.New(rerr.KindTypeError, format, args...)}
}

func valueResult(v value.Value) interp.NativeDirective {
	return interp.NativeDirective{Kind: interp.NativeValue, Value: v}
}
