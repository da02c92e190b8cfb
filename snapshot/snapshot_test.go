package snapshot

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"raya/bytecode"
	"raya/heap"
	"raya/mutexes"
	"raya/value"
	"raya/vmtask"
)

func buildSource(t *testing.T) (Source, *heap.TypeRegistry) {
	t.Helper()
	reg := heap.NewTypeRegistry()
	h := heap.NewHeap(reg)

	strVal := h.Allocate(heap.TypeString, 5, heap.StringBody{Bytes: []byte("hello")})
	arrVal := h.Allocate(heap.TypeArray, 8, heap.ArrayBody{Elements: []value.Value{strVal, value.Int32(42)}})

	mx := mutexes.NewRegistry()
	id := mx.New()
	acquired, err := mx.Lock(id, 1)
	require.True(t, acquired)
	require.NoError(t, err)
	_, err = mx.Lock(id, 2) // task 2 queues behind task 1
	require.NoError(t, err)

	task := vmtask.New(1, 0, 0, 0)
	task.SetState(vmtask.Suspended)
	task.OperandStack = []value.Value{arrVal}
	task.PushFrame(&vmtask.Frame{
		FunctionID: 0, ModuleID: 0, ReturnIP: -1, BasePointer: 0, IP: 12,
		Locals: []value.Value{value.Int32(7)},
	})
	task.HoldMutex(id)
	task.SuspendReason = &vmtask.SuspendReason{Kind: vmtask.ReasonMutexLock, MutexID: id}

	module := &bytecode.Module{Name: "main", Version: 1}
	module.Checksum = module.ComputeChecksum()

	return Source{
		Heap:    h,
		Mutexes: mx,
		Tasks:   []*vmtask.Task{task},
		Modules: []*bytecode.Module{module},
	}, reg
}

func TestWriteThenReadRoundTripsHeapTasksAndMutexes(t *testing.T) {
	src, reg := buildSource(t)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src, 123456))

	restored, err := Read(&buf, reg)
	require.NoError(t, err)

	require.Len(t, restored.Modules, 1)
	require.Equal(t, "main", restored.Modules[0].Name)

	require.Len(t, restored.Tasks, 1)
	rt := restored.Tasks[0]
	require.Equal(t, int64(1), rt.ID)
	require.Equal(t, vmtask.Suspended, rt.GetState())
	require.Len(t, rt.Frames, 1)
	require.Equal(t, 12, rt.Frames[0].IP)
	require.NotNil(t, rt.SuspendReason)
	require.Equal(t, vmtask.ReasonMutexLock, rt.SuspendReason.Kind)

	arrObj := restored.Heap.Get(rt.OperandStack[0])
	require.NotNil(t, arrObj)
	arrBody, ok := arrObj.Body.(heap.ArrayBody)
	require.True(t, ok)
	require.Len(t, arrBody.Elements, 2)
	require.Equal(t, int32(42), arrBody.Elements[1].AsInt32())

	strObj := restored.Heap.Get(arrBody.Elements[0])
	require.NotNil(t, strObj)
	strBody, ok := strObj.Body.(heap.StringBody)
	require.True(t, ok)
	require.Equal(t, "hello", string(strBody.Bytes))

	restoredMutexes := restored.Mutexes.All()
	require.Len(t, restoredMutexes, 1)
	require.Equal(t, int64(1), restoredMutexes[0].Owner())
	require.Equal(t, []int64{2}, restoredMutexes[0].Queue())
}

func TestReadRejectsBadMagic(t *testing.T) {
	src, reg := buildSource(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src, 1))
	b := buf.Bytes()
	b[0] ^= 0xFF

	_, err := Read(bytes.NewReader(b), reg)
	require.Error(t, err)
	snapErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, ErrInvalidMagic, snapErr.Kind)
}

func TestReadRejectsCorruptedChecksum(t *testing.T) {
	src, reg := buildSource(t)
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, src, 1))
	b := buf.Bytes()
	b[len(b)-1] ^= 0xFF

	_, err := Read(bytes.NewReader(b), reg)
	require.Error(t, err)
	snapErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, ErrChecksumMismatch, snapErr.Kind)
}
