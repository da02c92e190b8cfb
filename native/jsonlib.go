package native

import (
	"encoding/json"

	"raya/interp"
	"raya/rerr"
	"raya/value"
)

// registerJSON installs the json range (0x0C00-0x0CFF), grounded on
// builtins/json.go's builtinGenerateJson/builtinParseJson, generalized
// from MOO's value-to-JSON walk (mooToJSON) to this runtime's tagged
// Value plus heap-backed strings and arrays. Uses the standard library's
// encoding/json (no ecosystem JSON library is worth adopting purely for
// marshal/unmarshal of a Go `any` tree — see DESIGN.md).
func (t *Table) registerJSON() {
	t.Register(rangeJSONStart+0, "json.encode", jsonEncode)
	t.Register(rangeJSONStart+1, "json.decode", jsonDecode)
}

func jsonEncode(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	if len(args) != 1 {
		return argErr("json.encode expects exactly one argument")
	}
	goVal, err := toJSONable(ctx, args[0])
	if err != nil {
		return interp.NativeDirective{Kind: interp.NativeException, Err: err}
	}
	data, err2 := json.Marshal(goVal)
	if err2 != nil {
		return interp.NativeDirective{Kind: interp.NativeException, Err: rerr.New(rerr.KindRuntimeError, "json.encode: %v", err2)}
	}
	return valueResult(newString(ctx, string(data)))
}

func jsonDecode(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	if len(args) != 1 {
		return argErr("json.decode expects exactly one argument")
	}
	s, ok := goString(ctx, args[0])
	if !ok {
		return argErr("json.decode expects a string argument")
	}
	var goVal any
	if err := json.Unmarshal([]byte(s), &goVal); err != nil {
		return interp.NativeDirective{Kind: interp.NativeException, Err: rerr.New(rerr.KindRuntimeError, "json.decode: %v", err)}
	}
	return valueResult(fromJSONable(ctx, goVal))
}

// toJSONable walks a Value tree into a Go value json.Marshal can handle,
// mirroring mooToJSON's recursive descent into MOO lists/maps.
func toJSONable(ctx *interp.NativeContext, v value.Value) (any, *rerr.RuntimeError) {
	switch v.Kind() {
	case value.KindNull:
		return nil, nil
	case value.KindBool:
		return v.AsBool(), nil
	case value.KindInt32:
		return v.AsInt32(), nil
	case value.KindFloat64:
		return v.AsFloat64(), nil
	case value.KindPointer:
		if s, ok := goString(ctx, v); ok {
			return s, nil
		}
		if elems, ok := goArray(ctx, v); ok {
			out := make([]any, len(elems))
			for i, e := range elems {
				gv, err := toJSONable(ctx, e)
				if err != nil {
					return nil, err
				}
				out[i] = gv
			}
			return out, nil
		}
		return nil, rerr.New(rerr.KindTypeError, "json.encode: unsupported heap type")
	default:
		return nil, rerr.New(rerr.KindTypeError, "json.encode: unsupported value kind")
	}
}

// fromJSONable is the inverse of toJSONable, grounded on builtinParseJson's
// JSON-to-MOO conversion, generalized to allocate this runtime's string
// and array heap objects instead of MOO STR/LIST values.
func fromJSONable(ctx *interp.NativeContext, v any) value.Value {
	switch x := v.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.Bool(x)
	case float64:
		if x == float64(int32(x)) {
			return value.Int32(int32(x))
		}
		return value.Float64(x)
	case string:
		return newString(ctx, x)
	case []any:
		elems := make([]value.Value, len(x))
		for i, e := range x {
			elems[i] = fromJSONable(ctx, e)
		}
		return newArray(ctx, elems)
	case map[string]any:
		// Raya's array type has no string-keyed variant in the value
		// model this runtime exposes to natives; project object keys
		// as alternating [key, value, key, value, ...] array entries
		// so a stdlib wrapper can reconstruct a map without the native
		// layer needing a dedicated map heap type.
		elems := make([]value.Value, 0, len(x)*2)
		for k, val := range x {
			elems = append(elems, newString(ctx, k), fromJSONable(ctx, val))
		}
		return newArray(ctx, elems)
	default:
		return value.Null()
	}
}
