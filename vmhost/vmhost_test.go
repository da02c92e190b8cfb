package vmhost

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"raya/bytecode"
	"raya/interp"
	"raya/value"
)

// --- tiny bytecode assembler, mirroring package interp's test helper ---

type asm struct{ code []byte }

func (a *asm) op(op bytecode.Opcode) *asm { a.code = append(a.code, byte(op)); return a }
func (a *asm) i32(v int32) *asm {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	a.code = append(a.code, b[:]...)
	return a
}

func addModule() *bytecode.Module {
	code := (&asm{}).
		op(bytecode.OpConstI32).i32(2).
		op(bytecode.OpConstI32).i32(3).
		op(bytecode.OpIAdd).
		op(bytecode.OpReturn).code
	mod := &bytecode.Module{
		Name:      "main",
		Version:   1,
		Functions: []bytecode.Function{{Name: "add", Code: code}},
		Exports:   []bytecode.Export{{Name: "add", Kind: bytecode.SymbolFunction, Index: 0}},
	}
	mod.Checksum = mod.ComputeChecksum()
	return mod
}

func newTestContext(t *testing.T) *VmContext {
	t.Helper()
	vc := New(Config{WorkerCount: 2})
	vc.Start()
	t.Cleanup(vc.Stop)
	return vc
}

func TestSpawnAndAwaitHandleReturnsResult(t *testing.T) {
	vc := newTestContext(t)
	id, err := vc.RegisterModule(addModule())
	require.NoError(t, err)
	require.NoError(t, vc.Link(id))

	taskID, err := vc.Spawn(id, "add", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, rerr, err := vc.AwaitHandle(ctx, taskID)
	require.NoError(t, err)
	require.Nil(t, rerr)
	require.Equal(t, int32(5), v.AsInt32())
}

func TestLinkFailsOnMissingModule(t *testing.T) {
	vc := newTestContext(t)
	mod := addModule()
	mod.Imports = []bytecode.Import{{Specifier: "other", Name: "thing", ExpectedKind: bytecode.SymbolFunction}}
	id, err := vc.RegisterModule(mod)
	require.NoError(t, err)

	err = vc.Link(id)
	require.Error(t, err)
	linkErr, ok := err.(*LinkError)
	require.True(t, ok)
	require.Equal(t, ModuleNotFound, linkErr.Kind)
}

func TestLinkFailsOnTypeMismatch(t *testing.T) {
	vc := newTestContext(t)
	depID, err := vc.RegisterModule(addModule())
	require.NoError(t, err)
	require.NoError(t, vc.Link(depID))

	mod := addModule()
	mod.Name = "consumer"
	mod.Imports = []bytecode.Import{{Specifier: "main", Name: "add", ExpectedKind: bytecode.SymbolClass}}
	id, err := vc.RegisterModule(mod)
	require.NoError(t, err)

	err = vc.Link(id)
	require.Error(t, err)
	linkErr, ok := err.(*LinkError)
	require.True(t, ok)
	require.Equal(t, TypeMismatch, linkErr.Kind)
}

func TestLinkDetectsImportCycle(t *testing.T) {
	vc := newTestContext(t)
	a := addModule()
	a.Name = "a"
	a.Imports = []bytecode.Import{{Specifier: "b", Name: "add", ExpectedKind: bytecode.SymbolAny}}
	b := addModule()
	b.Name = "b"
	b.Imports = []bytecode.Import{{Specifier: "a", Name: "add", ExpectedKind: bytecode.SymbolAny}}

	aID, err := vc.RegisterModule(a)
	require.NoError(t, err)
	_, err = vc.RegisterModule(b)
	require.NoError(t, err)

	err = vc.Link(aID)
	require.Error(t, err)
	linkErr, ok := err.(*LinkError)
	require.True(t, ok)
	require.Equal(t, CyclicImport, linkErr.Kind)
}

func TestSnapshotThenRestoreResumesSleepingTask(t *testing.T) {
	vc := newTestContext(t)

	code := (&asm{}).
		op(bytecode.OpConstI32).i32(50).
		op(bytecode.OpSleep).
		op(bytecode.OpConstI32).i32(7).
		op(bytecode.OpReturn).code
	mod := &bytecode.Module{
		Name:      "sleepy",
		Version:   1,
		Functions: []bytecode.Function{{Name: "nap", Code: code}},
		Exports:   []bytecode.Export{{Name: "nap", Kind: bytecode.SymbolFunction, Index: 0}},
	}
	mod.Checksum = mod.ComputeChecksum()

	id, err := vc.RegisterModule(mod)
	require.NoError(t, err)
	require.NoError(t, vc.Link(id))

	taskID, err := vc.Spawn(id, "nap", nil)
	require.NoError(t, err)

	// Give the task a chance to run up to its SLEEP suspension before pausing.
	time.Sleep(20 * time.Millisecond)

	path := filepath.Join(t.TempDir(), "snap.bin")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, vc.Snapshot(ctx, path))

	restored, err := vc.Restore(path, []*bytecode.Module{mod})
	require.NoError(t, err)
	restored.Start()
	defer restored.Stop()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	v, rerr, err := restored.AwaitHandle(ctx2, taskID)
	require.NoError(t, err)
	require.Nil(t, rerr)
	require.Equal(t, int32(7), v.AsInt32())
}

func TestInstallNativeRequiresPermission(t *testing.T) {
	vc := New(Config{WorkerCount: 1})
	err := vc.InstallNative(0x9000, 0x90FF, func(ctx *interp.NativeContext, args []value.Value) interp.NativeDirective {
		return interp.NativeDirective{}
	})
	require.ErrorIs(t, err, ErrNativeCallsDisallowed)
}
