package interp

import (
	"raya/bytecode"
	"raya/rerr"
	"raya/vmtask"
)

// execNativeCall handles group 11's single opcode, grounded on
// barn/builtins.Registry's id-to-handler dispatch (builtins/registry.go),
// generalized from MOO's name-keyed builtin table to spec.md's dense u16
// id space (section 4.7: "dispatches to a host-installed table indexed
// by id").
func (in *Interpreter) execNativeCall(t *vmtask.Task, frame *vmtask.Frame, fn *bytecode.Function) (Result, bool) {
	id := readU16(fn, frame.IP)
	frame.IP += 2
	argc := int(readU8(fn, frame.IP))
	frame.IP++

	args, ok := in.popN(t, argc)
	if !ok {
		return in.stackUnderflow(t, bytecode.OpNativeCall)
	}

	handler, ok := in.host.Natives().Lookup(id)
	if !ok {
		return in.failTask(t, rerr.New(rerr.KindInvalidOpcode, "unknown native id %d", id)), true
	}

	directive := handler(&NativeContext{Host: in.host, Task: t}, args)
	switch directive.Kind {
	case NativeValue:
		in.push(t, directive.Value)
	case NativeException:
		return in.raise(t, directive.Err)
	case NativeSuspend:
		return in.suspendTask(t, *directive.Suspend), true
	}
	return Result{}, false
}
