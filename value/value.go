// Package value implements Raya's tagged 64-bit runtime value representation.
//
// Grounded on barn/types' tagged-union Value interface (types/base.go,
// types/int.go, types/float.go, types/bool.go), generalized from a Go
// interface with one concrete struct per MOO type to a single trivially
// copyable 64-bit cell per spec.md section 3 and 9.
package value

import "math"

// Kind identifies which of the four primitive families (plus the float
// family carried via NaN-boxing) a Value currently holds.
type Kind uint8

const (
	KindPointer Kind = iota // heap object reference
	KindInt32               // 32-bit signed integer
	KindBool                // boolean
	KindNull                // null
	KindFloat64             // IEEE-754 double
)

func (k Kind) String() string {
	switch k {
	case KindPointer:
		return "pointer"
	case KindInt32:
		return "int32"
	case KindBool:
		return "bool"
	case KindNull:
		return "null"
	case KindFloat64:
		return "float64"
	default:
		return "unknown"
	}
}

// Encoding: values are NaN-boxed. A "boxed" cell carries a 3-bit tag plus a
// 45-bit payload underneath a reserved quiet-NaN prefix that real float
// arithmetic never produces (the canonical NaN is 0x7FF8000000000000, sign
// bit clear; our signature sets the sign bit and a different exponent/
// mantissa prefix). Any bit pattern that is NOT in the reserved prefix is a
// plain IEEE-754 double, so normal float64 values pass through untouched and
// the full 64 bits participate in float round-tripping.
const (
	boxSignature uint64 = 0xFFFC_0000_0000_0000
	boxSigMask   uint64 = 0xFFFF_0000_0000_0000
	tagShift            = 45
	tagBits             = 3
	tagMask      uint64 = (1 << tagBits) - 1
	payloadMask  uint64 = (uint64(1) << tagShift) - 1
)

const (
	tagPointer uint64 = 0
	tagInt32   uint64 = 1
	tagBool    uint64 = 2
	tagNull    uint64 = 3
)

// MaxObjectID is the largest heap object index a Value can address.
const MaxObjectID = payloadMask

// Value is a single 64-bit, self-describing, trivially copyable runtime
// value. The zero Value is float64(0), not Null — callers that need an
// absent/uninitialized value must use Null() explicitly.
type Value struct {
	bits uint64
}

func isBoxed(bits uint64) bool { return bits&boxSigMask == boxSignature }

func box(tag, payload uint64) Value {
	return Value{bits: boxSignature | (tag << tagShift) | (payload & payloadMask)}
}

// Null returns the null value.
func Null() Value { return box(tagNull, 0) }

// Bool returns a boxed boolean.
func Bool(b bool) Value {
	var p uint64
	if b {
		p = 1
	}
	return box(tagBool, p)
}

// Int32 returns a boxed 32-bit signed integer.
func Int32(i int32) Value { return box(tagInt32, uint64(uint32(i))) }

// Pointer returns a boxed reference to heap object slot id. id must be
// <= MaxObjectID; callers (the heap allocator) guarantee this by construction.
func Pointer(id uint64) Value { return box(tagPointer, id) }

// Float64 returns a boxed IEEE-754 double. If f's raw bit pattern happens to
// fall inside the reserved NaN-boxing signature (only possible for a
// specific, otherwise-unobservable NaN encoding), it is canonicalized to the
// standard quiet NaN so every Value still round-trips through ToBits/FromBits.
func Float64(f float64) Value {
	bits := math.Float64bits(f)
	if isBoxed(bits) {
		bits = math.Float64bits(math.NaN())
	}
	return Value{bits: bits}
}

// ToBits returns the raw 64-bit encoding, e.g. for snapshot serialization.
func (v Value) ToBits() uint64 { return v.bits }

// FromBits reconstructs a Value from a raw 64-bit encoding previously
// produced by ToBits. Round-trips for every Value produced by this package.
func FromBits(bits uint64) Value { return Value{bits: bits} }

// Kind reports which family this Value belongs to.
func (v Value) Kind() Kind {
	if !isBoxed(v.bits) {
		return KindFloat64
	}
	switch (v.bits >> tagShift) & tagMask {
	case tagPointer:
		return KindPointer
	case tagInt32:
		return KindInt32
	case tagBool:
		return KindBool
	default:
		return KindNull
	}
}

func (v Value) payload() uint64 { return v.bits & payloadMask }

// IsPointer reports whether v holds a heap reference.
func (v Value) IsPointer() bool { return v.Kind() == KindPointer }

// IsInt32 reports whether v holds a 32-bit integer.
func (v Value) IsInt32() bool { return v.Kind() == KindInt32 }

// IsBool reports whether v holds a boolean.
func (v Value) IsBool() bool { return v.Kind() == KindBool }

// IsNull reports whether v holds null.
func (v Value) IsNull() bool { return v.Kind() == KindNull }

// IsFloat64 reports whether v holds a double.
func (v Value) IsFloat64() bool { return v.Kind() == KindFloat64 }

// AsPointer extracts the heap object slot id. Panics if v is not a pointer.
func (v Value) AsPointer() uint64 {
	if v.Kind() != KindPointer {
		panic("value: AsPointer on non-pointer Value")
	}
	return v.payload()
}

// AsInt32 extracts the integer payload. Panics if v is not an int32.
func (v Value) AsInt32() int32 {
	if v.Kind() != KindInt32 {
		panic("value: AsInt32 on non-int32 Value")
	}
	return int32(uint32(v.payload()))
}

// AsBool extracts the boolean payload. Panics if v is not a bool.
func (v Value) AsBool() bool {
	if v.Kind() != KindBool {
		panic("value: AsBool on non-bool Value")
	}
	return v.payload() != 0
}

// AsFloat64 extracts the double payload. Panics if v is not a float64.
func (v Value) AsFloat64() float64 {
	if v.Kind() != KindFloat64 {
		panic("value: AsFloat64 on non-float64 Value")
	}
	return math.Float64frombits(v.bits)
}

// Truthy implements Raya's truthiness rule (spec.md section 4.1 group 6):
// false, null, integer 0, float 0.0 and empty string are falsy; everything
// else (including heap objects, since emptiness of strings is resolved by
// the interpreter which has heap access) is truthy.
func (v Value) Truthy() bool {
	switch v.Kind() {
	case KindNull:
		return false
	case KindBool:
		return v.AsBool()
	case KindInt32:
		return v.AsInt32() != 0
	case KindFloat64:
		return v.AsFloat64() != 0
	case KindPointer:
		return true
	default:
		return true
	}
}

// Equal implements bitwise equality for primitives and reference equality
// for heap values, per spec.md section 3 ("Equality is bitwise for
// primitives; reference equality for heap values; structural equality is a
// library-level operation").
func (v Value) Equal(other Value) bool {
	if v.Kind() != other.Kind() {
		return false
	}
	if v.Kind() == KindFloat64 {
		// NaN != NaN even though bit patterns may match; delegate to IEEE-754.
		return v.AsFloat64() == other.AsFloat64()
	}
	return v.bits == other.bits
}
