package wire

import (
	"bytes"
	"unicode/utf8"

	"github.com/kulaginds/llrp/internal/llrp/llrperr"
	"github.com/kulaginds/llrp/internal/llrp/schema"
)

// Init returns the zero value a freshly-constructed instance should hold for
// f before the caller supplies anything, matching each FieldType's natural
// Go representation (spec §4.2):
//
//	UIntBE/IntBE/Bits -> int64
//	Bool              -> bool
//	String            -> string
//	Array             -> []int64
//	BitArray          -> []byte
//	BytesToEnd        -> []byte
//	Skip              -> nil (carries no value)
func Init(f *schema.FieldDef) any {
	switch f.Type.Kind {
	case schema.KindUIntBE, schema.KindIntBE, schema.KindBits:
		if f.Default != nil {
			return *f.Default
		}
		return int64(0)
	case schema.KindBool:
		return false
	case schema.KindString:
		return ""
	case schema.KindArray:
		return []int64{}
	case schema.KindBitArray, schema.KindBytesToEnd:
		return []byte{}
	case schema.KindSkip:
		return nil
	default:
		return nil
	}
}

// Read decodes one field's value from r per spec §4.2. bytesRemaining is the
// number of whole bytes left in the enclosing TLV body (or -1 when the
// caller has no declared-length bound, e.g. the fields of a TV parameter,
// in which case the rest of r is used) and is only consulted by BytesToEnd.
func Read(f *schema.FieldDef, r *BitReader, bytesRemaining int) (any, error) {
	switch f.Type.Kind {
	case schema.KindUIntBE, schema.KindBits:
		v, err := r.ReadBits(f.Type.Bits)
		if err != nil {
			return nil, decodeErr(f, err)
		}
		return int64(v), nil

	case schema.KindIntBE:
		v, err := r.ReadBits(f.Type.Bits)
		if err != nil {
			return nil, decodeErr(f, err)
		}
		return signExtend(v, f.Type.Bits), nil

	case schema.KindBool:
		v, err := r.ReadBits(1)
		if err != nil {
			return nil, decodeErr(f, err)
		}
		return v != 0, nil

	case schema.KindSkip:
		if _, err := r.ReadBits(f.Type.Bits); err != nil {
			return nil, decodeErr(f, err)
		}
		return nil, nil

	case schema.KindString:
		n, err := r.ReadBits(16)
		if err != nil {
			return nil, decodeErr(f, err)
		}
		b, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, decodeErr(f, err)
		}
		if !utf8.Valid(b) {
			return nil, llrperr.NewDecodeError("field "+f.Name, "string is not valid UTF-8")
		}
		b = bytes.TrimSuffix(b, []byte{0})
		return string(b), nil

	case schema.KindArray:
		n, err := r.ReadBits(16)
		if err != nil {
			return nil, decodeErr(f, err)
		}
		out := make([]int64, n)
		for i := range out {
			v, err := r.ReadBits(f.Type.Bits)
			if err != nil {
				return nil, decodeErr(f, err)
			}
			out[i] = int64(v)
		}
		return out, nil

	case schema.KindBitArray:
		nbits, err := r.ReadBits(16)
		if err != nil {
			return nil, decodeErr(f, err)
		}
		nbytes := (int(nbits) + 7) / 8
		b, err := r.ReadBytes(nbytes)
		if err != nil {
			return nil, decodeErr(f, err)
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil

	case schema.KindBytesToEnd:
		n := bytesRemaining
		if n < 0 {
			n = r.Remaining()
		}
		b, err := r.ReadBytes(n)
		if err != nil {
			return nil, decodeErr(f, err)
		}
		out := make([]byte, len(b))
		copy(out, b)
		return out, nil

	default:
		return nil, llrperr.NewDecodeError("field "+f.Name, "unhandled field kind %d", f.Type.Kind)
	}
}

// Write encodes value onto w per spec §4.2. Callers must run Validate first;
// Write itself only guards against shapes Validate cannot have let through
// (wrong Go type for the field), surfacing those as EncodeError since they
// indicate a codec bug rather than caller misuse.
func Write(w *BitWriter, f *schema.FieldDef, value any) error {
	switch f.Type.Kind {
	case schema.KindUIntBE, schema.KindBits:
		v, ok := value.(int64)
		if !ok {
			return encodeErr(f, "expected int64, got %T", value)
		}
		w.WriteBits(uint64(v)&mask(f.Type.Bits), f.Type.Bits)
		return nil

	case schema.KindIntBE:
		v, ok := value.(int64)
		if !ok {
			return encodeErr(f, "expected int64, got %T", value)
		}
		w.WriteBits(uint64(v)&mask(f.Type.Bits), f.Type.Bits)
		return nil

	case schema.KindBool:
		v, ok := value.(bool)
		if !ok {
			return encodeErr(f, "expected bool, got %T", value)
		}
		if v {
			w.WriteBits(1, 1)
		} else {
			w.WriteBits(0, 1)
		}
		return nil

	case schema.KindSkip:
		w.WriteBits(0, f.Type.Bits)
		return nil

	case schema.KindString:
		v, ok := value.(string)
		if !ok {
			return encodeErr(f, "expected string, got %T", value)
		}
		b := append([]byte(v), 0)
		w.WriteBits(uint64(len(b)), 16)
		return w.WriteBytes(b)

	case schema.KindArray:
		v, ok := value.([]int64)
		if !ok {
			return encodeErr(f, "expected []int64, got %T", value)
		}
		w.WriteBits(uint64(len(v)), 16)
		for _, elem := range v {
			w.WriteBits(uint64(elem)&mask(f.Type.Bits), f.Type.Bits)
		}
		return nil

	case schema.KindBitArray:
		v, ok := value.([]byte)
		if !ok {
			return encodeErr(f, "expected []byte, got %T", value)
		}
		w.WriteBits(uint64(len(v)*8), 16)
		return w.WriteBytes(v)

	case schema.KindBytesToEnd:
		v, ok := value.([]byte)
		if !ok {
			return encodeErr(f, "expected []byte, got %T", value)
		}
		return w.WriteBytes(v)

	default:
		return encodeErr(f, "unhandled field kind %d", f.Type.Kind)
	}
}

// Validate checks value against f's type, range and enum membership,
// returning a ValidationError rooted at path on failure. The 1-based
// ChannelIndex rule is not checked here; package validate applies it.
func Validate(path string, f *schema.FieldDef, value any) error {
	switch f.Type.Kind {
	case schema.KindUIntBE, schema.KindBits:
		v, ok := value.(int64)
		if !ok {
			return llrperr.NewValidationError(path, "expected an integer, got %T", value)
		}
		if v < 0 {
			return llrperr.NewValidationError(path, "unsigned field cannot hold negative value %d", v)
		}
		if f.Type.Bits < 64 && v >= int64(1)<<uint(f.Type.Bits) {
			return llrperr.NewValidationError(path, "value %d overflows %d-bit field", v, f.Type.Bits)
		}
		return validateEnum(path, f, int(v))

	case schema.KindIntBE:
		v, ok := value.(int64)
		if !ok {
			return llrperr.NewValidationError(path, "expected an integer, got %T", value)
		}
		if f.Type.Bits < 64 {
			lo := -(int64(1) << uint(f.Type.Bits-1))
			hi := int64(1)<<uint(f.Type.Bits-1) - 1
			if v < lo || v > hi {
				return llrperr.NewValidationError(path, "value %d out of range [%d,%d] for %d-bit field", v, lo, hi, f.Type.Bits)
			}
		}
		return validateEnum(path, f, int(v))

	case schema.KindBool:
		if _, ok := value.(bool); !ok {
			return llrperr.NewValidationError(path, "expected a bool, got %T", value)
		}
		return nil

	case schema.KindString:
		v, ok := value.(string)
		if !ok {
			return llrperr.NewValidationError(path, "expected a string, got %T", value)
		}
		if len(v)+1 > 65535 { // Write appends a trailing NUL
			return llrperr.NewValidationError(path, "string length %d exceeds 16-bit length field", len(v))
		}
		return nil

	case schema.KindArray:
		v, ok := value.([]int64)
		if !ok {
			return llrperr.NewValidationError(path, "expected []int64, got %T", value)
		}
		if len(v) > 65535 {
			return llrperr.NewValidationError(path, "array length %d exceeds 16-bit length field", len(v))
		}
		for _, elem := range v {
			if f.Type.Bits < 64 && (elem < 0 || elem >= int64(1)<<uint(f.Type.Bits)) {
				return llrperr.NewValidationError(path, "array element %d overflows %d-bit width", elem, f.Type.Bits)
			}
		}
		return nil

	case schema.KindBitArray, schema.KindBytesToEnd:
		if _, ok := value.([]byte); !ok {
			return llrperr.NewValidationError(path, "expected []byte, got %T", value)
		}
		return nil

	case schema.KindSkip:
		return nil

	default:
		return llrperr.NewValidationError(path, "unhandled field kind %d", f.Type.Kind)
	}
}

func validateEnum(path string, f *schema.FieldDef, v int) error {
	if f.Enum == nil {
		return nil
	}
	for _, c := range f.Enum.Choices {
		if c.Value == v {
			return nil
		}
	}
	return llrperr.NewValidationError(path, "value %d is not a member of enumeration %s", v, f.Enum.Name)
}

func mask(bits int) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bits)) - 1
}

// signExtend interprets the low n bits of v as a two's-complement integer.
func signExtend(v uint64, n int) int64 {
	if n >= 64 {
		return int64(v)
	}
	signBit := uint64(1) << uint(n-1)
	if v&signBit != 0 {
		v |= ^uint64(0) << uint(n)
	}
	return int64(v)
}

func decodeErr(f *schema.FieldDef, err error) error {
	return llrperr.NewDecodeError("field "+f.Name, "%v", err)
}

func encodeErr(f *schema.FieldDef, format string, args ...any) error {
	return llrperr.NewEncodeError("field "+f.Name, format, args...)
}
