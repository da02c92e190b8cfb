package main

import (
	"fmt"

	"raya/heap"
	"raya/value"
	"raya/vmhost"
)

// formatResult renders a task's result value for the run/test
// subcommands' output. A pointer is resolved one level into the heap
// when it names a string or array, since those are the two shapes a
// top-level entry point's return value is most likely to take; anything
// else falls back to its heap type id.
func formatResult(vc *vmhost.VmContext, v value.Value) string {
	switch v.Kind() {
	case value.KindNull:
		return "null"
	case value.KindBool:
		return fmt.Sprintf("%t", v.AsBool())
	case value.KindInt32:
		return fmt.Sprintf("%d", v.AsInt32())
	case value.KindFloat64:
		return fmt.Sprintf("%g", v.AsFloat64())
	case value.KindPointer:
		return formatPointer(vc, v)
	default:
		return fmt.Sprintf("<%s>", v.Kind())
	}
}

func formatPointer(vc *vmhost.VmContext, v value.Value) string {
	obj := vc.Heap().Get(v)
	if obj == nil {
		return "<dangling pointer>"
	}
	switch body := obj.Body.(type) {
	case heap.StringBody:
		return fmt.Sprintf("%q", string(body.Bytes))
	case heap.ArrayBody:
		out := "["
		for i, el := range body.Elements {
			if i > 0 {
				out += ", "
			}
			out += formatResult(vc, el)
		}
		return out + "]"
	default:
		return fmt.Sprintf("<object #%d type %d>", obj.ID(), obj.Header.TypeID)
	}
}
