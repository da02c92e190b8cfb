package native

import (
	"raya/heap"
	"raya/interp"
	"raya/value"
)

// registerReflect installs the reflect range (0x0D00-0x0E2F): runtime
// type introspection. No permission check applies to these natives:
// neither this package nor vmhost consults Permissions.AllowReflect.
// Grounded on the teacher's own
// typeof/respond_to-style introspection builtins
// (builtins/registry.go's "Register type conversion builtins" group)
// generalized from MOO's object/verb introspection to this runtime's
// heap type ids and array/field shapes.
func (t *Table) registerReflect() {
	t.Register(rangeReflectStart+0, "reflect.typeof", reflectTypeof)
	t.Register(rangeReflectStart+1, "reflect.len", reflectLen)
	t.Register(rangeReflectStart+2, "reflect.fields", reflectFields)
}

func reflectTypeof(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	if len(args) != 1 {
		return argErr("reflect.typeof expects exactly one argument")
	}
	v := args[0]
	switch v.Kind() {
	case value.KindNull:
		return valueResult(newString(ctx, "null"))
	case value.KindBool:
		return valueResult(newString(ctx, "bool"))
	case value.KindInt32:
		return valueResult(newString(ctx, "int"))
	case value.KindFloat64:
		return valueResult(newString(ctx, "float"))
	case value.KindPointer:
		obj := ctx.Host.Heap().Get(v)
		if obj == nil {
			return valueResult(newString(ctx, "dangling"))
		}
		return valueResult(newString(ctx, typeName(obj.Header.TypeID)))
	default:
		return valueResult(newString(ctx, "unknown"))
	}
}

func typeName(id heap.TypeID) string {
	switch id {
	case heap.TypeString:
		return "string"
	case heap.TypeArray:
		return "array"
	case heap.TypeInstance:
		return "instance"
	case heap.TypeClosure:
		return "closure"
	case heap.TypeMutex:
		return "mutex"
	case heap.TypeChannel:
		return "channel"
	case heap.TypeBuffer:
		return "buffer"
	case heap.TypeDate:
		return "date"
	case heap.TypeRegex:
		return "regex"
	default:
		return "class"
	}
}

// reflectLen reports the element count of a string or array Value.
func reflectLen(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	if len(args) != 1 {
		return argErr("reflect.len expects exactly one argument")
	}
	if s, ok := goString(ctx, args[0]); ok {
		return valueResult(value.Int32(int32(len(s))))
	}
	if elems, ok := goArray(ctx, args[0]); ok {
		return valueResult(value.Int32(int32(len(elems))))
	}
	return argErr("reflect.len expects a string or array argument")
}

// reflectFields returns the field Values of a class instance as an
// array.
func reflectFields(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	if len(args) != 1 || !args[0].IsPointer() {
		return argErr("reflect.fields expects a single instance argument")
	}
	obj := ctx.Host.Heap().Get(args[0])
	if obj == nil {
		return argErr("reflect.fields: dangling reference")
	}
	ib, ok := obj.Body.(heap.InstanceBody)
	if !ok {
		return argErr("reflect.fields expects an instance argument")
	}
	return valueResult(newArray(ctx, append([]value.Value(nil), ib.Fields...)))
}
