package interp

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"raya/bytecode"
	"raya/channels"
	"raya/heap"
	"raya/mutexes"
	"raya/rerr"
	"raya/safepoint"
	"raya/value"
	"raya/vmtask"
)

// --- tiny bytecode assembler ---

type asm struct {
	code []byte
}

func (a *asm) op(op bytecode.Opcode) *asm { a.code = append(a.code, byte(op)); return a }
func (a *asm) u8(v uint8) *asm            { a.code = append(a.code, v); return a }
func (a *asm) u16(v uint16) *asm {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	a.code = append(a.code, b[:]...)
	return a
}
func (a *asm) i16(v int16) *asm { return a.u16(uint16(v)) }
func (a *asm) u32(v uint32) *asm {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	a.code = append(a.code, b[:]...)
	return a
}
func (a *asm) i32(v int32) *asm { return a.u32(uint32(v)) }

// --- fake host ---

type fakeHost struct {
	h        *heap.Heap
	modules  map[int]*bytecode.Module
	mx       *mutexes.Registry
	ch       *channels.Registry
	globals  *Globals
	tasks    map[int64]*vmtask.Task
	nextID   int64
	natives  map[uint16]NativeHandler
	now      int64
	schedule []int64
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		h:       heap.NewHeap(heap.NewTypeRegistry()),
		modules: make(map[int]*bytecode.Module),
		mx:      mutexes.NewRegistry(),
		ch:      channels.NewRegistry(),
		globals: NewGlobals(),
		tasks:   make(map[int64]*vmtask.Task),
		natives: make(map[uint16]NativeHandler),
	}
}

func (f *fakeHost) Heap() *heap.Heap                       { return f.h }
func (f *fakeHost) Module(id int) *bytecode.Module         { return f.modules[id] }
func (f *fakeHost) Mutexes() *mutexes.Registry             { return f.mx }
func (f *fakeHost) Channels() *channels.Registry           { return f.ch }
func (f *fakeHost) Globals() *Globals                      { return f.globals }
func (f *fakeHost) NowMillis() int64                       { return f.now }
func (f *fakeHost) ScheduleTask(taskID int64)              { f.schedule = append(f.schedule, taskID) }
func (f *fakeHost) TaskByID(taskID int64) *vmtask.Task      { return f.tasks[taskID] }
func (f *fakeHost) Natives() NativeTable                   { return fakeNatives(f.natives) }

func (f *fakeHost) NewTask(functionID, moduleID int, args []value.Value, parentID int64) *vmtask.Task {
	f.nextID++
	tk := vmtask.New(f.nextID, functionID, moduleID, parentID)
	tk.PushFrame(&vmtask.Frame{
		FunctionID: functionID,
		ModuleID:   moduleID,
		Locals:     append([]value.Value(nil), args...),
	})
	f.tasks[tk.ID] = tk
	return tk
}

type fakeNatives map[uint16]NativeHandler

func (n fakeNatives) Lookup(id uint16) (NativeHandler, bool) {
	h, ok := n[id]
	return h, ok
}

func newTestInterp(host *fakeHost) *Interpreter {
	return New(host, safepoint.NewCoordinator(1))
}

func oneFuncModule(fn bytecode.Function) *bytecode.Module {
	return &bytecode.Module{Functions: []bytecode.Function{fn}}
}

func startTask(host *fakeHost, fn bytecode.Function, args ...value.Value) *vmtask.Task {
	host.modules[0] = oneFuncModule(fn)
	return host.NewTask(0, 0, args, 0)
}

func TestArithmeticAddAndReturn(t *testing.T) {
	host := newFakeHost()
	code := (&asm{}).
		op(bytecode.OpConstI32).i32(2).
		op(bytecode.OpConstI32).i32(3).
		op(bytecode.OpIAdd).
		op(bytecode.OpReturn).code

	tk := startTask(host, bytecode.Function{Name: "add", Code: code})
	res := newTestInterp(host).Run(tk)

	require.Equal(t, Completed, res.Kind)
	require.Equal(t, int32(5), res.Value.AsInt32())
}

func TestDivisionByZeroFailsUncaught(t *testing.T) {
	host := newFakeHost()
	code := (&asm{}).
		op(bytecode.OpConstI32).i32(1).
		op(bytecode.OpConstI32).i32(0).
		op(bytecode.OpIDiv).
		op(bytecode.OpReturn).code

	tk := startTask(host, bytecode.Function{Name: "div0", Code: code})
	res := newTestInterp(host).Run(tk)

	require.Equal(t, Failed, res.Kind)
	require.Equal(t, rerr.KindUnhandledException, res.Err.Kind)
	require.Equal(t, rerr.KindDivisionByZero, res.Err.Cause.Kind)
}

func TestBackwardJumpLoopSumsToTen(t *testing.T) {
	// locals[0] = counter, locals[1] = accumulator
	// loop: if counter >= 10 jump to end; acc += counter; counter += 1; jump loop
	a := &asm{}
	a.op(bytecode.OpConstI32).i32(0).op(bytecode.OpStoreLocal).u8(0) // counter = 0
	a.op(bytecode.OpConstI32).i32(0).op(bytecode.OpStoreLocal).u8(1) // acc = 0

	loopStart := len(a.code)
	a.op(bytecode.OpLoadLocal).u8(0)
	a.op(bytecode.OpConstI32).i32(10)
	a.op(bytecode.OpIGe)
	jmpIfDoneAt := len(a.code)
	a.op(bytecode.OpJmpIfTrue).i16(0) // patched below

	a.op(bytecode.OpLoadLocal).u8(1)
	a.op(bytecode.OpLoadLocal).u8(0)
	a.op(bytecode.OpIAdd)
	a.op(bytecode.OpStoreLocal).u8(1)

	a.op(bytecode.OpLoadLocal).u8(0)
	a.op(bytecode.OpConstI32).i32(1)
	a.op(bytecode.OpIAdd)
	a.op(bytecode.OpStoreLocal).u8(0)

	backJumpAt := len(a.code)
	a.op(bytecode.OpJmp).i16(0) // patched below
	loopEnd := len(a.code)

	a.op(bytecode.OpLoadLocal).u8(1)
	a.op(bytecode.OpReturn)

	// patch offsets: measured from the byte after the 2-byte operand.
	patchI16(a.code, jmpIfDoneAt+1, loopEnd-(jmpIfDoneAt+3))
	patchI16(a.code, backJumpAt+1, loopStart-(backJumpAt+3))

	host := newFakeHost()
	tk := startTask(host, bytecode.Function{Name: "sum10", LocalCount: 2, Code: a.code})
	res := newTestInterp(host).Run(tk)

	require.Equal(t, Completed, res.Kind)
	require.Equal(t, int32(45), res.Value.AsInt32())
}

func patchI16(code []byte, at int, v int) {
	binary.LittleEndian.PutUint16(code[at:at+2], uint16(int16(v)))
}

func TestTryCatchRecoversFromTypeError(t *testing.T) {
	// try { null + 1 } catch (e) { push 99 } ; return
	a := &asm{}
	pushHandlerAt := len(a.code)
	a.op(bytecode.OpPushHandler).i32(0).i32(-1) // catch offset patched below, no finally

	a.op(bytecode.OpConstNull)
	a.op(bytecode.OpConstI32).i32(1)
	a.op(bytecode.OpIAdd) // TypeError: null is not int32
	a.op(bytecode.OpPopHandler)
	jmpPastCatchAt := len(a.code)
	a.op(bytecode.OpJmp).i16(0) // patched below, skips the catch body on the no-error path

	catchStart := len(a.code)
	a.op(bytecode.OpConstI32).i32(99)
	a.op(bytecode.OpEndCatch)

	after := len(a.code)
	a.op(bytecode.OpReturn)

	patchI32(a.code, pushHandlerAt+1, catchStart)
	patchI16(a.code, jmpPastCatchAt+1, after-(jmpPastCatchAt+3))

	host := newFakeHost()
	tk := startTask(host, bytecode.Function{Name: "trycatch", Code: a.code})
	res := newTestInterp(host).Run(tk)

	require.Equal(t, Completed, res.Kind)
	require.Equal(t, int32(99), res.Value.AsInt32())
}

func patchI32(code []byte, at int, v int) {
	binary.LittleEndian.PutUint32(code[at:at+4], uint32(int32(v)))
}

func TestAwaitOfCompletedTaskPushesResult(t *testing.T) {
	host := newFakeHost()
	host.modules[0] = oneFuncModule(bytecode.Function{Name: "noop"})

	target := host.NewTask(0, 0, nil, 0)
	target.Result = value.Int32(7)
	target.SetState(vmtask.Completed)

	code := (&asm{}).
		op(bytecode.OpConstI32).i32(int32(target.ID)).
		op(bytecode.OpAwait).
		op(bytecode.OpReturn).code
	tk := startTask(host, bytecode.Function{Name: "awaiter", Code: code})

	res := newTestInterp(host).Run(tk)
	require.Equal(t, Completed, res.Kind)
	require.Equal(t, int32(7), res.Value.AsInt32())
}

func TestAwaitOfFailedTaskFailsUnhandled(t *testing.T) {
	host := newFakeHost()
	host.modules[0] = oneFuncModule(bytecode.Function{Name: "noop"})

	target := host.NewTask(0, 0, nil, 0)
	target.ResultError = rerr.New(rerr.KindDivisionByZero, "boom")
	target.SetState(vmtask.Failed)

	code := (&asm{}).
		op(bytecode.OpConstI32).i32(int32(target.ID)).
		op(bytecode.OpAwait).
		op(bytecode.OpReturn).code
	tk := startTask(host, bytecode.Function{Name: "awaiter", Code: code})

	res := newTestInterp(host).Run(tk)
	require.Equal(t, Failed, res.Kind)
	require.Equal(t, rerr.KindUnhandledException, res.Err.Kind)
}

func TestAwaitOfRunningTaskSuspendsAndRegistersWaiter(t *testing.T) {
	host := newFakeHost()
	host.modules[0] = oneFuncModule(bytecode.Function{Name: "noop"})
	target := host.NewTask(0, 0, nil, 0)
	target.SetState(vmtask.Running)

	code := (&asm{}).
		op(bytecode.OpConstI32).i32(int32(target.ID)).
		op(bytecode.OpAwait).
		op(bytecode.OpReturn).code
	tk := startTask(host, bytecode.Function{Name: "awaiter", Code: code})

	res := newTestInterp(host).Run(tk)
	require.Equal(t, Suspended, res.Kind)
	require.Equal(t, vmtask.ReasonAwaitTask, tk.SuspendReason.Kind)
	require.Equal(t, []int64{tk.ID}, target.TakeWaiters())
}

func TestMutexLockUnlockTransfersToFIFOWaiter(t *testing.T) {
	host := newFakeHost()
	id := host.mx.New()

	lockThenReturn := (&asm{}).
		op(bytecode.OpConstI32).i32(int32(id)).
		op(bytecode.OpMutexLock).
		op(bytecode.OpConstNull).
		op(bytecode.OpReturn).code

	host.modules[0] = oneFuncModule(bytecode.Function{Name: "locker", Code: lockThenReturn})
	owner := host.NewTask(0, 0, nil, 0)
	waiter := host.NewTask(0, 0, nil, 0)

	in := newTestInterp(host)
	res := in.Run(owner)
	require.Equal(t, Completed, res.Kind)
	require.Equal(t, []uint64{id}, owner.HeldMutexIDs())

	res = in.Run(waiter)
	require.Equal(t, Suspended, res.Kind)
	require.Equal(t, vmtask.ReasonMutexLock, waiter.SuspendReason.Kind)

	n, transferred, err := host.mx.Unlock(id, owner.ID)
	require.NoError(t, err)
	require.True(t, transferred)
	require.Equal(t, waiter.ID, n)

	require.Equal(t, vmtask.Suspended, waiter.GetState())
	in.wakeMutexWaiter(n, id)
	require.Equal(t, vmtask.Resumed, waiter.GetState())

	res = in.Run(waiter)
	require.Equal(t, Completed, res.Kind)
	require.Equal(t, []uint64{id}, waiter.HeldMutexIDs())
}

func TestChannelSendRecvRendezvous(t *testing.T) {
	host := newFakeHost()
	id := host.ch.New(0)

	recvCode := (&asm{}).
		op(bytecode.OpConstI32).i32(int32(id)).
		op(bytecode.OpChannelRecv).
		op(bytecode.OpReturn).code
	host.modules[0] = oneFuncModule(bytecode.Function{Name: "recv", Code: recvCode})
	receiver := host.NewTask(0, 0, nil, 0)

	in := newTestInterp(host)
	res := in.Run(receiver)
	require.Equal(t, Suspended, res.Kind)
	require.Equal(t, vmtask.ReasonChannelRecv, receiver.SuspendReason.Kind)

	sendCode := (&asm{}).
		op(bytecode.OpConstI32).i32(int32(id)).
		op(bytecode.OpConstI32).i32(42).
		op(bytecode.OpChannelSend).
		op(bytecode.OpConstNull).
		op(bytecode.OpReturn).code
	host.modules[1] = oneFuncModule(bytecode.Function{Name: "send", Code: sendCode})
	sender := host.NewTask(0, 1, nil, 0)

	res = in.Run(sender)
	require.Equal(t, Completed, res.Kind)
	require.Equal(t, vmtask.Resumed, receiver.GetState())
	require.Equal(t, int32(42), receiver.ResumeValue.AsInt32())

	res = in.Run(receiver)
	require.Equal(t, Completed, res.Kind)
	require.Equal(t, int32(42), res.Value.AsInt32())
}

func TestNativeCallDispatchesAndPushesResult(t *testing.T) {
	host := newFakeHost()
	host.natives[1] = func(ctx *NativeContext, args []value.Value) NativeDirective {
		return NativeDirective{Kind: NativeValue, Value: value.Int32(args[0].AsInt32() * 2)}
	}
	code := (&asm{}).
		op(bytecode.OpConstI32).i32(21).
		op(bytecode.OpNativeCall).u16(1).u8(1).
		op(bytecode.OpReturn).code

	tk := startTask(host, bytecode.Function{Name: "doubler", Code: code})
	res := newTestInterp(host).Run(tk)

	require.Equal(t, Completed, res.Kind)
	require.Equal(t, int32(42), res.Value.AsInt32())
}
