package interp

import (
	"raya/bytecode"
	"raya/heap"
	"raya/rerr"
	"raya/value"
	"raya/vmtask"
)

// execConst handles group 2 (constants), grounded on barn/vm.Evaluator's
// OP_PUSH handling in vm/vm.go generalized to spec.md's typed CONST_*
// family (barn pushes a constant-pool index for everything; Raya inlines
// null/true/false/i32/f64 directly into the instruction stream and keeps
// only strings in the pool, since strings are heap objects).
func (in *Interpreter) execConst(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function, op bytecode.Opcode) (Result, bool) {
	switch op {
	case bytecode.OpConstNull:
		in.push(t, value.Null())
	case bytecode.OpConstTrue:
		in.push(t, value.Bool(true))
	case bytecode.OpConstFalse:
		in.push(t, value.Bool(false))
	case bytecode.OpConstI32:
		in.push(t, value.Int32(readI32(fn, frame.IP)))
		frame.IP += 4
	case bytecode.OpConstF64:
		in.push(t, value.Float64(readF64(fn, frame.IP)))
		frame.IP += 8
	case bytecode.OpConstString:
		idx := readU16(fn, frame.IP)
		frame.IP += 2
		mod := in.host.Module(frame.ModuleID)
		if int(idx) >= len(mod.ConstantStrings) {
			return in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "constant string index %d out of range", idx)), true
		}
		in.push(t, in.host.Heap().Allocate(heap.TypeString, uint32(len(mod.ConstantStrings[idx])), heap.StringBody{Bytes: []byte(mod.ConstantStrings[idx])}))
	}
	return Result{}, false
}

// execLocalsGlobals handles group 3, grounded on barn/vm.Evaluator's
// OP_GET_VAR/OP_SET_VAR handlers (vm/vm.go), generalized from a
// MOO-variable map indexed by name to a fixed-size locals slice indexed
// by u8 slot, and from MOO's environment-variable globals to a dedicated
// Globals table indexed by u16 name index.
func (in *Interpreter) execLocalsGlobals(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function, op bytecode.Opcode) (Result, bool) {
	switch op {
	case bytecode.OpLoadLocal:
		slot := readU8(fn, frame.IP)
		frame.IP++
		if int(slot) >= len(frame.Locals) {
			return in.raise(t, rerr.New(rerr.KindIndexOutOfBounds, "local slot %d out of range", slot))
		}
		in.push(t, frame.Locals[slot])
	case bytecode.OpStoreLocal:
		slot := readU8(fn, frame.IP)
		frame.IP++
		v, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		if int(slot) >= len(frame.Locals) {
			return in.raise(t, rerr.New(rerr.KindIndexOutOfBounds, "local slot %d out of range", slot))
		}
		frame.Locals[slot] = v
	case bytecode.OpLoadGlobal:
		idx := readU16(fn, frame.IP)
		frame.IP += 2
		in.push(t, in.host.Globals().Load(idx))
	case bytecode.OpStoreGlobal:
		idx := readU16(fn, frame.IP)
		frame.IP += 2
		v, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		in.host.Globals().Store(idx, v)
	}
	return Result{}, false
}

// execJump handles group 6 (control flow), grounded on barn/vm.Evaluator's
// OP_JUMP/OP_JUMP_IF_FALSE handlers (vm/vm.go). Offsets are measured from
// the byte immediately following the operand (spec.md section 4.1 group
// 6), which is frame.IP after the 2-byte operand has already been
// consumed by the caller loop's frame.IP++ plus the explicit += 2 below.
func (in *Interpreter) execJump(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function, op bytecode.Opcode) (Result, bool) {
	offset := int(readI16(fn, frame.IP))
	base := frame.IP + 2
	frame.IP = base

	switch op {
	case bytecode.OpJmp:
		frame.IP = base + offset
	case bytecode.OpJmpIfTrue:
		v, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		if in.truthy(v) {
			frame.IP = base + offset
		}
	case bytecode.OpJmpIfFalse:
		v, ok := in.pop(t)
		if !ok {
			return in.stackUnderflow(t, op)
		}
		if !in.truthy(v) {
			frame.IP = base + offset
		}
	}
	return Result{}, false
}

// truthy extends value.Value.Truthy with the one case it cannot decide on
// its own: an empty string, which is a heap object (spec.md section 4.1
// group 6: "empty string" is falsy alongside false/null/0/0.0).
func (in *Interpreter) truthy(v value.Value) bool {
	if !v.Truthy() {
		return false
	}
	if v.IsPointer() {
		if obj := in.host.Heap().Get(v); obj != nil {
			if s, ok := obj.Body.(heap.StringBody); ok {
				return len(s.Bytes) > 0
			}
		}
	}
	return true
}
