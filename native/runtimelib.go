package native

import (
	"raya/interp"
	"raya/value"
)

// registerRuntime installs the runtime range (0x3000-0x30FF): process
// clock access and channel construction. Channels have no dedicated
// NEW_CHANNEL opcode (spec.md section 4.1 group 10 covers only
// SEND/RECV), so construction is routed through NATIVE_CALL, per the
// channels package's own doc comment ("invoked by whichever native
// installs the channel constructor"). Grounded on barn's task/scheduler
// introspection builtins (builtins/registry.go's "Register system
// builtins" group, RegisterSystemBuiltins) generalized from MOO's
// ticks/seconds/task_id builtins to this runtime's millisecond clock and
// task handle model.
func (t *Table) registerRuntime() {
	t.Register(rangeRuntimeStart+0, "runtime.now_millis", runtimeNowMillis)
	t.Register(rangeRuntimeStart+1, "runtime.new_channel", runtimeNewChannel)
	t.Register(rangeRuntimeStart+2, "runtime.close_channel", runtimeCloseChannel)
	t.Register(rangeRuntimeStart+3, "runtime.current_task", runtimeCurrentTask)
}

func runtimeNowMillis(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	if len(args) != 0 {
		return argErr("runtime.now_millis takes no arguments")
	}
	return valueResult(value.Int32(int32(ctx.Host.NowMillis())))
}

// runtimeNewChannel allocates a channels.Registry entry and returns its id
// as a bare int32 handle, matching NEW_MUTEX's convention (concurrency.go:
// CHANNEL_SEND/RECV decode their channel operand the same way, via
// uint64(handle.AsInt32())) rather than a heap pointer.
func runtimeNewChannel(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	capacity := 0
	switch len(args) {
	case 0:
	case 1:
		if args[0].Kind() != value.KindInt32 || args[0].AsInt32() < 0 {
			return argErr("runtime.new_channel(capacity) expects a non-negative int")
		}
		capacity = int(args[0].AsInt32())
	default:
		return argErr("runtime.new_channel expects 0 or 1 arguments")
	}
	id := ctx.Host.Channels().New(capacity)
	return valueResult(value.Int32(int32(id)))
}

func runtimeCloseChannel(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	if len(args) != 1 || args[0].Kind() != value.KindInt32 {
		return argErr("runtime.close_channel expects a channel handle argument")
	}
	if err := ctx.Host.Channels().Close(uint64(args[0].AsInt32())); err != nil {
		return argErr("runtime.close_channel: %v", err)
	}
	return valueResult(value.Null())
}

func runtimeCurrentTask(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
	if len(args) != 0 {
		return argErr("runtime.current_task takes no arguments")
	}
	return valueResult(value.Int32(int32(ctx.Task.ID)))
}
