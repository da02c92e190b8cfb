package native

import (
	"testing"

	"github.com/stretchr/testify/require"

	"raya/bytecode"
	"raya/channels"
	"raya/heap"
	"raya/interp"
	"raya/mutexes"
	"raya/value"
	"raya/vmtask"
)

// fakeHost implements interp.Host; native handlers under test never
// touch Module/NewTask/ScheduleTask/TaskByID/Globals/Natives, so those
// are stubbed to satisfy the interface only.
type fakeHost struct {
	h   *heap.Heap
	mx  *mutexes.Registry
	ch  *channels.Registry
	now int64
}

func (f *fakeHost) Heap() *heap.Heap            { return f.h }
func (f *fakeHost) Module(int) *bytecode.Module { return nil }
func (f *fakeHost) Mutexes() *mutexes.Registry  { return f.mx }
func (f *fakeHost) Channels() *channels.Registry { return f.ch }
func (f *fakeHost) NewTask(int, int, []value.Value, int64) *vmtask.Task {
	return nil
}
func (f *fakeHost) ScheduleTask(int64)          {}
func (f *fakeHost) TaskByID(int64) *vmtask.Task { return nil }
func (f *fakeHost) Globals() *interp.Globals    { return nil }
func (f *fakeHost) Natives() interp.NativeTable { return nil }
func (f *fakeHost) NowMillis() int64            { return f.now }

func newCtx() *interp.NativeContext {
	reg := heap.NewTypeRegistry()
	return &interp.NativeContext{
		Host: &fakeHost{h: heap.NewHeap(reg), mx: mutexes.NewRegistry(), ch: channels.NewRegistry(), now: 1000},
		Task: &vmtask.Task{ID: 1},
	}
}

func TestLogNativesAcceptAStringAndReturnNull(t *testing.T) {
	tbl := New()
	handler, ok := tbl.Lookup(rangeLoggerStart + 1)
	require.True(t, ok)
	ctx := newCtx()
	msg := newString(ctx, "hello")
	d := handler(ctx, []value.Value{msg})
	require.Equal(t, interp.NativeValue, d.Kind)
	require.True(t, d.Value.IsNull())
}

func TestMathAbsPreservesIntKind(t *testing.T) {
	tbl := New()
	handler, ok := tbl.Lookup(rangeMathStart + 0)
	require.True(t, ok)
	d := handler(newCtx(), []value.Value{value.Int32(-7)})
	require.Equal(t, interp.NativeValue, d.Kind)
	require.Equal(t, int32(7), d.Value.AsInt32())
}

func TestMathSqrtOfFour(t *testing.T) {
	tbl := New()
	handler, ok := tbl.Lookup(rangeMathStart + 1)
	require.True(t, ok)
	d := handler(newCtx(), []value.Value{value.Int32(4)})
	require.Equal(t, interp.NativeValue, d.Kind)
	require.Equal(t, 2.0, d.Value.AsFloat64())
}

func TestJSONRoundTripsAString(t *testing.T) {
	tbl := New()
	enc, ok := tbl.Lookup(rangeJSONStart + 0)
	require.True(t, ok)
	dec, ok := tbl.Lookup(rangeJSONStart + 1)
	require.True(t, ok)

	ctx := newCtx()
	original := newString(ctx, "hi there")
	encoded := enc(ctx, []value.Value{original})
	require.Equal(t, interp.NativeValue, encoded.Kind)

	decoded := dec(ctx, []value.Value{encoded.Value})
	require.Equal(t, interp.NativeValue, decoded.Kind)
	s, ok := goString(ctx, decoded.Value)
	require.True(t, ok)
	require.Equal(t, "hi there", s)
}

func TestReflectTypeofDistinguishesKinds(t *testing.T) {
	tbl := New()
	handler, ok := tbl.Lookup(rangeReflectStart + 0)
	require.True(t, ok)
	ctx := newCtx()

	d := handler(ctx, []value.Value{value.Int32(3)})
	s, _ := goString(ctx, d.Value)
	require.Equal(t, "int", s)

	d = handler(ctx, []value.Value{newString(ctx, "x")})
	s, _ = goString(ctx, d.Value)
	require.Equal(t, "string", s)
}

func TestRuntimeNewChannelReturnsRegistryHandle(t *testing.T) {
	tbl := New()
	handler, ok := tbl.Lookup(rangeRuntimeStart + 1)
	require.True(t, ok)
	ctx := newCtx()

	d := handler(ctx, []value.Value{value.Int32(2)})
	require.Equal(t, interp.NativeValue, d.Kind)
	require.True(t, d.Value.IsInt32())
	require.NotNil(t, ctx.Host.Channels().Get(uint64(d.Value.AsInt32())))
}

func TestCryptoSHA256HexIsDeterministic(t *testing.T) {
	tbl := New()
	handler, ok := tbl.Lookup(rangeCryptoStart + 0)
	require.True(t, ok)
	ctx := newCtx()

	d1 := handler(ctx, []value.Value{newString(ctx, "password")})
	d2 := handler(ctx, []value.Value{newString(ctx, "password")})
	s1, _ := goString(ctx, d1.Value)
	s2, _ := goString(ctx, d2.Value)
	require.Equal(t, s1, s2)
	require.Len(t, s1, 64)
}
