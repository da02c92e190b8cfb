package interp

import (
	"raya/bytecode"
	"raya/heap"
	"raya/rerr"
	"raya/value"
	"raya/vmtask"
)

// execCall handles group 7's CALL/CALL_METHOD/CALL_CLOSURE, grounded on
// barn/vm.Evaluator's verb-call frame setup (vm/vm.go, vm/verbs.go),
// generalized from MOO's object:verb dispatch to direct function-index
// calls, vtable-slot method calls, and closure-value calls.
func (in *Interpreter) execCall(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function, op bytecode.Opcode) (Result, bool) {
	if len(t.Frames) >= maxFrames {
		return in.failTask(t, rerr.New(rerr.KindStackOverflow, "call stack depth exceeded %d", maxFrames)), true
	}

	switch op {
	case bytecode.OpCall:
		funcIdx := int(readU16(fn, frame.IP))
		frame.IP += 2
		return in.enterFunction(t, frame.ModuleID, funcIdx)

	case bytecode.OpCallMethod:
		slot := int(readU16(fn, frame.IP))
		frame.IP += 2
		recv, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		return in.callMethod(t, frame.ModuleID, recv, slot)

	case bytecode.OpCallClosure:
		closureVal, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		obj := in.host.Heap().Get(closureVal)
		if obj == nil || obj.Header.TypeID != heap.TypeClosure {
			return in.raise(t, rerr.New(rerr.KindTypeError, "CALL_CLOSURE on non-closure value"))
		}
		cb := obj.Body.(heap.ClosureBody)
		return in.enterClosure(t, frame.ModuleID, cb)
	}
	return Result{}, false
}

// enterFunction pushes a new frame for funcIdx in moduleID, taking the
// callee's declared parameter count of arguments off the caller's stack
// top (spec.md section 4.1 group 7: "transferring N arguments from the
// caller's stack top into the callee's locals 0..N-1").
func (in *Interpreter) enterFunction(t *vmtask.Task, moduleID, funcIdx int) (Result, bool) {
	mod := in.host.Module(moduleID)
	if mod == nil || funcIdx < 0 || funcIdx >= len(mod.Functions) {
		return in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "call to unknown function %d", funcIdx)), true
	}
	callee := &mod.Functions[funcIdx]

	args, ok := in.popN(t, callee.ParamCount)
	if !ok {
		return in.stackUnderflow(t, bytecode.OpCall)
	}

	locals := make([]value.Value, callee.LocalCount)
	for i := range locals {
		locals[i] = value.Null()
	}
	copy(locals, args)

	t.PushFrame(&vmtask.Frame{
		FunctionID:  funcIdx,
		ModuleID:    moduleID,
		BasePointer: len(t.OperandStack),
		Locals:      locals,
	})
	return Result{}, false
}

func (in *Interpreter) enterClosure(t *vmtask.Task, moduleID int, cb heap.ClosureBody) (Result, bool) {
	res, done := in.enterFunction(t, moduleID, cb.FunctionID)
	if done {
		return res, true
	}
	// Captures are visible as extra locals appended after the callee's
	// LocalCount declared locals, matching spec.md section 9: "the runtime treats
	// captures as ordinary roots through the closure object."
	frame := t.CurrentFrame()
	frame.Locals = append(frame.Locals, cb.Captures...)
	return Result{}, false
}

// callMethod resolves recv's class vtable at slot and calls it (spec.md
// section 4.1 group 7: "CALL_METHOD resolves through the receiver's class
// vtable"). The receiver is pushed back on top of the explicit arguments
// as an implicit extra argument, so it occupies the callee's last
// parameter slot, locals[ParamCount-1] (the compiler decides the rest of
// the calling convention).
func (in *Interpreter) callMethod(t *vmtask.Task, moduleID int, recv value.Value, slot int) (Result, bool) {
	obj := in.host.Heap().Get(recv)
	if obj == nil || obj.Header.TypeID != heap.TypeInstance {
		return in.raise(t, rerr.New(rerr.KindTypeError, "CALL_METHOD on non-instance value"))
	}
	ib := obj.Body.(heap.InstanceBody)
	mod := in.host.Module(moduleID)
	if mod == nil || ib.ClassID >= len(mod.Classes) {
		return in.raise(t, rerr.New(rerr.KindTypeError, "unknown class id %d", ib.ClassID))
	}
	class := &mod.Classes[ib.ClassID]
	if slot < 0 || slot >= len(class.Vtable) {
		return in.raise(t, rerr.New(rerr.KindTypeError, "vtable slot %d out of range for class %s", slot, class.Name))
	}
	funcIdx := class.Vtable[slot].FunctionID

	in.push(t, recv) // receiver becomes the callee's last argument
	return in.enterFunction(t, moduleID, funcIdx)
}

// execReturn handles RETURN: pop the return value (or null), pop the
// frame, push the value on the caller's stack, and if that was the last
// frame, complete the task (spec.md section 4.1 group 7).
func (in *Interpreter) execReturn(t *vmtask.Task) (Result, bool) {
	v, ok := in.pop(t)
	if !ok {
		v = value.Null()
	}

	frame := t.PopFrame()
	// Discard anything the callee left below its own result on the shared
	// operand stack (e.g. leftover temporaries from a failed expression),
	// restoring the caller's stack depth to exactly its base pointer.
	if frame != nil && len(t.OperandStack) > frame.BasePointer {
		t.OperandStack = t.OperandStack[:frame.BasePointer]
	}

	if t.CurrentFrame() == nil {
		return in.completeTask(t, v), true
	}
	in.push(t, v)
	return Result{}, false
}

// execObjectArray handles group 8, grounded on barn/vm/indexing.go's
// index get/set helpers and barn/vm/properties.go's property get/set,
// generalized from MOO's dynamic property bags to fixed-layout class
// instances plus a separate array type.
func (in *Interpreter) execObjectArray(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function, op bytecode.Opcode) (Result, bool) {
	switch op {
	case bytecode.OpNewObject:
		classID := int(readU16(fn, frame.IP))
		frame.IP += 2
		mod := in.host.Module(frame.ModuleID)
		if mod == nil || classID >= len(mod.Classes) {
			return in.raise(t, rerr.New(rerr.KindTypeError, "unknown class id %d", classID))
		}
		fields := make([]value.Value, mod.Classes[classID].FieldCount)
		for i := range fields {
			fields[i] = value.Null()
		}
		in.push(t, in.host.Heap().Allocate(heap.TypeInstance, uint32(16*len(fields)), heap.InstanceBody{ClassID: classID, Fields: fields}))

	case bytecode.OpLoadField:
		idx := int(readU16(fn, frame.IP))
		frame.IP += 2
		recv, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		obj := in.host.Heap().Get(recv)
		if obj == nil || obj.Header.TypeID != heap.TypeInstance {
			return in.raise(t, rerr.New(rerr.KindTypeError, "LOAD_FIELD on non-instance value"))
		}
		ib := obj.Body.(heap.InstanceBody)
		if idx >= len(ib.Fields) {
			return in.raise(t, rerr.New(rerr.KindIndexOutOfBounds, "field index %d out of range", idx))
		}
		in.push(t, ib.Fields[idx])

	case bytecode.OpStoreField:
		idx := int(readU16(fn, frame.IP))
		frame.IP += 2
		vs, ok := in.popN(t, 2)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		recv, v := vs[0], vs[1]
		obj := in.host.Heap().Get(recv)
		if obj == nil || obj.Header.TypeID != heap.TypeInstance {
			return in.raise(t, rerr.New(rerr.KindTypeError, "STORE_FIELD on non-instance value"))
		}
		ib := obj.Body.(heap.InstanceBody)
		if idx >= len(ib.Fields) {
			return in.raise(t, rerr.New(rerr.KindIndexOutOfBounds, "field index %d out of range", idx))
		}
		ib.Fields[idx] = v
		obj.Body = ib

	case bytecode.OpNewArray:
		length := int(readU32(fn, frame.IP))
		frame.IP += 4
		elems := make([]value.Value, length)
		for i := range elems {
			elems[i] = value.Null()
		}
		in.push(t, in.host.Heap().Allocate(heap.TypeArray, uint32(16*length), heap.ArrayBody{Elements: elems}))

	case bytecode.OpArrayGet:
		vs, ok := in.popN(t, 2)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		arr, idxVal := vs[0], vs[1]
		obj := in.host.Heap().Get(arr)
		if obj == nil || obj.Header.TypeID != heap.TypeArray {
			return in.raise(t, rerr.New(rerr.KindTypeError, "ARRAY_GET on non-array value"))
		}
		idx, err := in.requireInt32(t, idxVal)
		if err != nil {
			return in.raise(t, err)
		}
		ab := obj.Body.(heap.ArrayBody)
		if idx < 0 || int(idx) >= len(ab.Elements) {
			return in.raise(t, rerr.New(rerr.KindIndexOutOfBounds, "array index %d out of range (len %d)", idx, len(ab.Elements)))
		}
		in.push(t, ab.Elements[idx])

	case bytecode.OpArraySet:
		vs, ok := in.popN(t, 3)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		arr, idxVal, v := vs[0], vs[1], vs[2]
		obj := in.host.Heap().Get(arr)
		if obj == nil || obj.Header.TypeID != heap.TypeArray {
			return in.raise(t, rerr.New(rerr.KindTypeError, "ARRAY_SET on non-array value"))
		}
		idx, err := in.requireInt32(t, idxVal)
		if err != nil {
			return in.raise(t, err)
		}
		ab := obj.Body.(heap.ArrayBody)
		if idx < 0 || int(idx) >= len(ab.Elements) {
			return in.raise(t, rerr.New(rerr.KindIndexOutOfBounds, "array index %d out of range (len %d)", idx, len(ab.Elements)))
		}
		ab.Elements[idx] = v
		obj.Body = ab

	case bytecode.OpArrayLen:
		arr, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		obj := in.host.Heap().Get(arr)
		if obj == nil || obj.Header.TypeID != heap.TypeArray {
			return in.raise(t, rerr.New(rerr.KindTypeError, "ARRAY_LEN on non-array value"))
		}
		ab := obj.Body.(heap.ArrayBody)
		in.push(t, value.Int32(int32(len(ab.Elements))))
	}
	return Result{}, false
}
