package bytecode

// Opcode is a single bytecode instruction. The first byte of an
// instruction is its Opcode; any operands follow as little-endian fixed
// width fields, per spec.md section 3 ("Opcodes are variable-length").
//
// Grounded on barn/vm's OpCode enum (vm/opcodes.go), regrouped from MOO's
// object/verb/property opcodes to spec.md section 4.1's twelve groups
// (stack, constants, locals/globals, typed arithmetic, comparisons,
// control flow, calls/returns, object/array, exceptions, concurrency,
// native call, safepoint poll — the last has no dedicated opcode, it is
// woven into every dispatch iteration by the interpreter itself).
type Opcode byte

const (
	// Group 1: stack manipulation.
	OpNop Opcode = iota
	OpPop
	OpDup
	OpSwap

	// Group 2: constants.
	OpConstNull
	OpConstTrue
	OpConstFalse
	OpConstI32  // operand: i32 (4 bytes, little-endian)
	OpConstF64  // operand: f64 (8 bytes, little-endian)
	OpConstString // operand: u16 constant-pool index

	// Group 3: locals and globals.
	OpLoadLocal   // operand: u8 slot
	OpStoreLocal  // operand: u8 slot
	OpLoadGlobal  // operand: u16 name index
	OpStoreGlobal // operand: u16 name index

	// Group 4: typed arithmetic.
	OpIAdd
	OpISub
	OpIMul
	OpIDiv
	OpIMod
	OpINeg
	OpFAdd
	OpFSub
	OpFMul
	OpFDiv
	OpFNeg

	// Group 5: comparisons.
	OpIEq
	OpINe
	OpILt
	OpILe
	OpIGt
	OpIGe
	OpFEq
	OpFNe
	OpFLt
	OpFLe
	OpFGt
	OpFGe

	// Group 6: control flow. Jump offsets are i16, measured from the byte
	// immediately following the operand.
	OpJmp
	OpJmpIfTrue
	OpJmpIfFalse

	// Group 7: calls/returns.
	OpCall       // operand: u16 function index
	OpCallMethod // operand: u16 vtable slot
	OpCallClosure
	OpReturn

	// Group 8: object/array.
	OpNewObject // operand: u16 class id
	OpLoadField // operand: u16 field index
	OpStoreField
	OpNewArray // operand: u32 initial length
	OpArrayGet
	OpArraySet
	OpArrayLen

	// Group 9: exceptions.
	OpPushHandler // operands: i32 catch offset, i32 finally offset
	OpPopHandler
	OpThrow
	OpRethrow
	OpEndCatch
	OpEndFinally

	// Group 10: concurrency (the suspendable core).
	OpSpawn // operand: u16 function index
	OpAwait
	OpSleep
	OpNewMutex
	OpMutexLock
	OpMutexUnlock
	OpChannelSend
	OpChannelRecv
	OpYield

	// Group 11: native call.
	OpNativeCall // operands: u16 id, u8 argc

	opcodeCount
)

// operandWidths gives the fixed-width operand size in bytes for every
// opcode that carries one, used by the interpreter's instruction decoder
// and by any bytecode disassembler/validator.
var operandWidths = [opcodeCount]int{
	OpConstI32:    4,
	OpConstF64:    8,
	OpConstString: 2,
	OpLoadLocal:   1,
	OpStoreLocal:  1,
	OpLoadGlobal:  2,
	OpStoreGlobal: 2,
	OpJmp:         2,
	OpJmpIfTrue:   2,
	OpJmpIfFalse:  2,
	OpCall:        2,
	OpCallMethod:  2,
	OpNewObject:   2,
	OpLoadField:   2,
	OpStoreField:  2,
	OpNewArray:    4,
	OpPushHandler: 8,
	OpSpawn:       2,
	OpNativeCall:  3, // u16 id + u8 argc
}

// OperandWidth reports how many operand bytes follow op's opcode byte.
func (op Opcode) OperandWidth() int {
	if int(op) >= len(operandWidths) {
		return 0
	}
	return operandWidths[op]
}

// Valid reports whether op names a real opcode, used by the interpreter
// to raise InvalidOpcode instead of indexing an out-of-range dispatch
// table.
func (op Opcode) Valid() bool { return op < opcodeCount }

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return "OP_UNKNOWN"
}

var opcodeNames = map[Opcode]string{
	OpNop: "NOP", OpPop: "POP", OpDup: "DUP", OpSwap: "SWAP",
	OpConstNull: "CONST_NULL", OpConstTrue: "CONST_TRUE", OpConstFalse: "CONST_FALSE",
	OpConstI32: "CONST_I32", OpConstF64: "CONST_F64", OpConstString: "CONST_STRING",
	OpLoadLocal: "LOAD_LOCAL", OpStoreLocal: "STORE_LOCAL",
	OpLoadGlobal: "LOAD_GLOBAL", OpStoreGlobal: "STORE_GLOBAL",
	OpIAdd: "IADD", OpISub: "ISUB", OpIMul: "IMUL", OpIDiv: "IDIV", OpIMod: "IMOD", OpINeg: "INEG",
	OpFAdd: "FADD", OpFSub: "FSUB", OpFMul: "FMUL", OpFDiv: "FDIV", OpFNeg: "FNEG",
	OpIEq: "IEQ", OpINe: "INE", OpILt: "ILT", OpILe: "ILE", OpIGt: "IGT", OpIGe: "IGE",
	OpFEq: "FEQ", OpFNe: "FNE", OpFLt: "FLT", OpFLe: "FLE", OpFGt: "FGT", OpFGe: "FGE",
	OpJmp: "JMP", OpJmpIfTrue: "JMP_IF_TRUE", OpJmpIfFalse: "JMP_IF_FALSE",
	OpCall: "CALL", OpCallMethod: "CALL_METHOD", OpCallClosure: "CALL_CLOSURE", OpReturn: "RETURN",
	OpNewObject: "NEW_OBJECT", OpLoadField: "LOAD_FIELD", OpStoreField: "STORE_FIELD",
	OpNewArray: "NEW_ARRAY", OpArrayGet: "ARRAY_GET", OpArraySet: "ARRAY_SET", OpArrayLen: "ARRAY_LEN",
	OpPushHandler: "PUSH_HANDLER", OpPopHandler: "POP_HANDLER", OpThrow: "THROW",
	OpRethrow: "RETHROW", OpEndCatch: "END_CATCH", OpEndFinally: "END_FINALLY",
	OpSpawn: "SPAWN", OpAwait: "AWAIT", OpSleep: "SLEEP",
	OpNewMutex: "NEW_MUTEX", OpMutexLock: "MUTEX_LOCK", OpMutexUnlock: "MUTEX_UNLOCK",
	OpChannelSend: "CHANNEL_SEND", OpChannelRecv: "CHANNEL_RECV", OpYield: "YIELD",
	OpNativeCall: "NATIVE_CALL",
}
