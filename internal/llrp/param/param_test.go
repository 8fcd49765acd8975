package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulaginds/llrp/internal/llrp/registry"
	"github.com/kulaginds/llrp/internal/llrp/schema"
	"github.com/kulaginds/llrp/internal/llrp/wire"
)

func ptrInt64(v int64) *int64 { return &v }

func uintField(name string, bits int) *schema.FieldDef {
	return &schema.FieldDef{Name: name, Type: schema.FieldType{Kind: schema.KindUIntBE, Bits: bits}}
}

func uintFieldDefault(name string, bits int, deflt int64) *schema.FieldDef {
	return &schema.FieldDef{Name: name, Type: schema.FieldType{Kind: schema.KindUIntBE, Bits: bits}, Default: &deflt}
}

func tvDesc() *schema.ParameterDesc {
	return &schema.ParameterDesc{
		TypeCode: 13,
		Name:     "EPC_96",
		Encoding: schema.TV,
		Fields:   []*schema.FieldDef{uintField("EPCWord0", 32), uintField("EPCWord1", 32), uintField("EPCWord2", 32)},
		TVLength: 13,
	}
}

func tlvLeafDesc(typeCode int, name string) *schema.ParameterDesc {
	return &schema.ParameterDesc{TypeCode: typeCode, Name: name, Encoding: schema.TLV, Fields: []*schema.FieldDef{uintField("ID", 16)}}
}

func tlvParentDesc(typeCode int, name string, child string) *schema.ParameterDesc {
	return &schema.ParameterDesc{
		TypeCode: typeCode, Name: name, Encoding: schema.TLV,
		Children: []schema.ChildSpec{{RefName: child + "_Parameter", Min: 1, Max: 1}},
	}
}

func newReg(params map[int]*schema.ParameterDesc, variants map[schema.VendorKey]*schema.ParameterDesc) *registry.Registry {
	byName := make(map[string]*schema.ParameterDesc, len(params)+len(variants))
	for _, d := range params {
		byName[d.ClassName()] = d
	}
	for _, d := range variants {
		byName[d.ClassName()] = d
	}
	return registry.New(&schema.Tables{
		Parameters:        params,
		ParameterVariants: variants,
		ParametersByName:  byName,
		Messages:          map[int]*schema.MessageDesc{},
		MessageVariants:   map[schema.VendorKey]*schema.MessageDesc{},
		MessagesByName:    map[string]*schema.MessageDesc{},
		Choices:           map[string]map[string]bool{},
	})
}

func TestNew_SinglePositionalArg(t *testing.T) {
	inst, err := New(tlvLeafDesc(200, "Antenna"), int64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), inst.Get("ID"))
}

func TestNew_ByNameMap(t *testing.T) {
	inst, err := New(tvDesc(), map[string]any{"EPCWord1": int64(9)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), inst.Get("EPCWord0"))
	assert.Equal(t, int64(9), inst.Get("EPCWord1"))
}

func TestPack_TV_HighBitSetAndLength(t *testing.T) {
	inst, err := New(tvDesc())
	require.NoError(t, err)
	inst.Set("EPCWord0", int64(0x11223344))

	w := wire.NewBitWriter()
	require.NoError(t, Pack(w, inst))
	b, err := w.Bytes()
	require.NoError(t, err)

	assert.Equal(t, byte(0x80|13), b[0])
	assert.Len(t, b, tvDesc().TVLength)
}

func TestPackUnpack_TLV_RoundTrip(t *testing.T) {
	desc := tlvLeafDesc(200, "Antenna")
	reg := newReg(map[int]*schema.ParameterDesc{200: desc}, nil)

	inst, err := New(desc, int64(7))
	require.NoError(t, err)

	w := wire.NewBitWriter()
	require.NoError(t, Pack(w, inst))
	b, err := w.Bytes()
	require.NoError(t, err)

	r := wire.NewBitReader(b)
	got, n, err := Unpack(reg, r)
	require.NoError(t, err)
	assert.Equal(t, len(b), n)
	assert.Equal(t, int64(7), got.Get("ID"))
}

func TestPackUnpack_TLV_WithChildren(t *testing.T) {
	child := tlvLeafDesc(201, "Sub")
	parent := tlvParentDesc(202, "Holder", "Sub")
	reg := newReg(map[int]*schema.ParameterDesc{201: child, 202: parent}, nil)

	parentInst, err := New(parent)
	require.NoError(t, err)
	childInst, err := New(child, int64(5))
	require.NoError(t, err)
	parentInst.AddChild(childInst)

	w := wire.NewBitWriter()
	require.NoError(t, Pack(w, parentInst))
	b, err := w.Bytes()
	require.NoError(t, err)

	r := wire.NewBitReader(b)
	got, _, err := Unpack(reg, r)
	require.NoError(t, err)
	require.Len(t, got.Children, 1)
	assert.Equal(t, int64(5), got.Children[0].Get("ID"))

	length := uint16(b[2])<<8 | uint16(b[3])
	assert.Equal(t, len(b), int(length))
}

func TestUnpack_TV(t *testing.T) {
	desc := tvDesc()
	reg := newReg(map[int]*schema.ParameterDesc{13: desc}, nil)

	inst, err := New(desc)
	require.NoError(t, err)
	inst.Set("EPCWord2", int64(99))

	w := wire.NewBitWriter()
	require.NoError(t, Pack(w, inst))
	b, err := w.Bytes()
	require.NoError(t, err)

	r := wire.NewBitReader(b)
	got, n, err := Unpack(reg, r)
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, int64(99), got.Get("EPCWord2"))
}

func customGenericDesc() *schema.ParameterDesc {
	return &schema.ParameterDesc{
		TypeCode: schema.CustomTypeCode, Name: "Custom", Encoding: schema.TLV,
		Fields: []*schema.FieldDef{uintField("VendorIdentifier", 32), uintField("ParameterSubtype", 32)},
	}
}

func customVariantDesc() *schema.ParameterDesc {
	return &schema.ParameterDesc{
		TypeCode: schema.CustomTypeCode, Name: "ImpinjFoo", Encoding: schema.TLV,
		Fields: []*schema.FieldDef{
			uintFieldDefault("VendorIdentifier", 32, 25882),
			uintFieldDefault("ParameterSubtype", 32, 21),
			uintField("Bar", 16),
		},
		Vendor: &schema.VendorKey{VendorID: 25882, Subtype: 21},
	}
}

func TestUnpackCustom_KnownVendor_Rebinds(t *testing.T) {
	generic := customGenericDesc()
	variant := customVariantDesc()
	reg := newReg(
		map[int]*schema.ParameterDesc{schema.CustomTypeCode: generic},
		map[schema.VendorKey]*schema.ParameterDesc{*variant.Vendor: variant},
	)

	inst, err := New(variant)
	require.NoError(t, err)
	inst.Set("Bar", int64(77))

	w := wire.NewBitWriter()
	require.NoError(t, Pack(w, inst))
	b, err := w.Bytes()
	require.NoError(t, err)

	r := wire.NewBitReader(b)
	got, _, err := Unpack(reg, r)
	require.NoError(t, err)
	assert.Equal(t, "ImpinjFoo_Parameter", got.ClassName())
	assert.Equal(t, int64(77), got.Get("Bar"))
}

func TestUnpackCustom_UnknownVendor_ReturnsPlainAndSkipsBytes(t *testing.T) {
	generic := customGenericDesc()
	reg := newReg(map[int]*schema.ParameterDesc{schema.CustomTypeCode: generic}, nil)

	// Hand-build a Custom TLV frame: tag(16) + length(16) + vendorID(32) + subtype(32) + 4 trailing bytes.
	w := wire.NewBitWriter()
	w.WriteBits(uint64(schema.CustomTypeCode), 16)
	w.WriteBits(0, 16) // placeholder
	w.WriteBits(999, 32)
	w.WriteBits(1, 32)
	require.NoError(t, w.WriteBytes([]byte{0xAA, 0xBB, 0xCC, 0xDD}))
	b, err := w.Bytes()
	require.NoError(t, err)
	length := uint16(len(b))
	b[2] = byte(length >> 8)
	b[3] = byte(length)

	r := wire.NewBitReader(b)
	got, n, err := Unpack(reg, r)
	require.NoError(t, err)
	assert.Equal(t, "Custom_Parameter", got.ClassName())
	assert.Equal(t, len(b), n)
	assert.Equal(t, 0, r.Remaining())
}

func TestUnpackCustom_ShortBodyOnKnownVendor_Errors(t *testing.T) {
	generic := customGenericDesc()
	variant := customVariantDesc()
	reg := newReg(
		map[int]*schema.ParameterDesc{schema.CustomTypeCode: generic},
		map[schema.VendorKey]*schema.ParameterDesc{*variant.Vendor: variant},
	)

	// Declares more bytes than the known vendor descriptor's fields consume.
	w := wire.NewBitWriter()
	w.WriteBits(uint64(schema.CustomTypeCode), 16)
	w.WriteBits(0, 16)
	w.WriteBits(25882, 32)
	w.WriteBits(21, 32)
	w.WriteBits(7, 16) // Bar
	require.NoError(t, w.WriteBytes([]byte{0x01, 0x02, 0x03})) // extra undeclared trailing bytes
	b, err := w.Bytes()
	require.NoError(t, err)
	length := uint16(len(b))
	b[2] = byte(length >> 8)
	b[3] = byte(length)

	r := wire.NewBitReader(b)
	_, _, err = Unpack(reg, r)
	assert.Error(t, err)
}
