package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"raya/bytecode"
	"raya/rerr"
	"raya/value"
)

func TestRethrowPropagatesToOuterHandler(t *testing.T) {
	// outer try { inner try { throw 5 } catch (e) { rethrow } } catch (e) { push 77 }
	a := &asm{}
	outerPushAt := len(a.code)
	a.op(bytecode.OpPushHandler).i32(0).i32(-1) // outer catch offset patched below
	innerPushAt := len(a.code)
	a.op(bytecode.OpPushHandler).i32(0).i32(-1) // inner catch offset patched below

	a.op(bytecode.OpConstI32).i32(5)
	a.op(bytecode.OpThrow)

	innerCatchStart := len(a.code)
	a.op(bytecode.OpRethrow)

	outerCatchStart := len(a.code)
	a.op(bytecode.OpConstI32).i32(77)
	a.op(bytecode.OpEndCatch)

	a.op(bytecode.OpReturn)

	patchI32(a.code, outerPushAt+1, outerCatchStart)
	patchI32(a.code, innerPushAt+1, innerCatchStart)

	host := newFakeHost()
	tk := startTask(host, bytecode.Function{Name: "rethrow", Code: a.code})
	res := newTestInterp(host).Run(tk)

	require.Equal(t, Completed, res.Kind)
	require.Equal(t, int32(77), res.Value.AsInt32())
}

func TestFinallyRunsDuringUncaughtExceptionPropagation(t *testing.T) {
	// try (no catch) { 1 / 0 } finally { native marker }
	var finallyRuns int
	host := newFakeHost()
	host.natives[1] = func(ctx *NativeContext, args []value.Value) NativeDirective {
		finallyRuns++
		return NativeDirective{Kind: NativeValue, Value: value.Null()}
	}

	a := &asm{}
	pushHandlerAt := len(a.code)
	a.op(bytecode.OpPushHandler).i32(-1).i32(0) // no catch, finally offset patched below

	a.op(bytecode.OpConstI32).i32(1)
	a.op(bytecode.OpConstI32).i32(0)
	a.op(bytecode.OpIDiv)

	finallyStart := len(a.code)
	a.op(bytecode.OpNativeCall).u16(1).u8(0)
	a.op(bytecode.OpEndFinally)

	a.op(bytecode.OpReturn)

	patchI32(a.code, pushHandlerAt+5, finallyStart)

	tk := startTask(host, bytecode.Function{Name: "finallyonly", Code: a.code})
	res := newTestInterp(host).Run(tk)

	require.Equal(t, 1, finallyRuns)
	require.Equal(t, Failed, res.Kind)
	require.Equal(t, rerr.KindUnhandledException, res.Err.Kind)
	require.Equal(t, rerr.KindDivisionByZero, res.Err.Cause.Kind)
}

func TestFinallyThenOuterCatchStillCatchesAfterCleanup(t *testing.T) {
	// outer try { inner try (no catch) { 1 / 0 } finally { native marker } } catch (e) { push 88 }
	var finallyRuns int
	host := newFakeHost()
	host.natives[1] = func(ctx *NativeContext, args []value.Value) NativeDirective {
		finallyRuns++
		return NativeDirective{Kind: NativeValue, Value: value.Null()}
	}

	a := &asm{}
	outerPushAt := len(a.code)
	a.op(bytecode.OpPushHandler).i32(0).i32(-1) // outer catch offset patched below
	innerPushAt := len(a.code)
	a.op(bytecode.OpPushHandler).i32(-1).i32(0) // inner: no catch, finally offset patched below

	a.op(bytecode.OpConstI32).i32(1)
	a.op(bytecode.OpConstI32).i32(0)
	a.op(bytecode.OpIDiv)

	finallyStart := len(a.code)
	a.op(bytecode.OpNativeCall).u16(1).u8(0)
	a.op(bytecode.OpEndFinally)

	outerCatchStart := len(a.code)
	a.op(bytecode.OpConstI32).i32(88)
	a.op(bytecode.OpEndCatch)

	a.op(bytecode.OpReturn)

	patchI32(a.code, outerPushAt+1, outerCatchStart)
	patchI32(a.code, innerPushAt+5, finallyStart)

	tk := startTask(host, bytecode.Function{Name: "finallythencatch", Code: a.code})
	res := newTestInterp(host).Run(tk)

	require.Equal(t, 1, finallyRuns)
	require.Equal(t, Completed, res.Kind)
	require.Equal(t, int32(88), res.Value.AsInt32())
}

func TestDeepSelfRecursionFailsWithStackOverflow(t *testing.T) {
	// fn() { fn(); return null } called on itself forever.
	a := &asm{}
	a.op(bytecode.OpCall).u16(0)
	a.op(bytecode.OpConstNull)
	a.op(bytecode.OpReturn)

	host := newFakeHost()
	tk := startTask(host, bytecode.Function{Name: "recur", Code: a.code})
	res := newTestInterp(host).Run(tk)

	require.Equal(t, Failed, res.Kind)
	require.Equal(t, rerr.KindStackOverflow, res.Err.Kind)
}
