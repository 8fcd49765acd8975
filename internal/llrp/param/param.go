// Package param implements the Parameter Codec (spec §4.5): pack/unpack of
// TLV and TV parameters, including Custom dispatch on (VendorIdentifier,
// Subtype).
package param

import (
	"github.com/kulaginds/llrp/internal/llrp/instance"
	"github.com/kulaginds/llrp/internal/llrp/llrperr"
	"github.com/kulaginds/llrp/internal/llrp/registry"
	"github.com/kulaginds/llrp/internal/llrp/schema"
	"github.com/kulaginds/llrp/internal/llrp/wire"
	"github.com/kulaginds/llrp/internal/logging"
)

// New builds a fresh, default-valued Instance for the named parameter
// descriptor, applying the "one field -> positional arg, else by name" rule
// from spec §4.6 (the rule is stated for messages but applies identically
// to parameter construction).
func New(desc *schema.ParameterDesc, args ...any) (*instance.Instance, error) {
	inst := instance.New(instance.Parameter(desc))
	for _, f := range desc.Fields {
		inst.Set(f.Name, wire.Init(f))
	}
	if err := applyArgs(desc.ClassName(), desc.Fields, inst, args); err != nil {
		return nil, err
	}
	return inst, nil
}

// applyArgs implements the one-positional-arg-or-by-name construction rule
// shared by parameters and messages.
func applyArgs(className string, fields []*schema.FieldDef, inst *instance.Instance, args []any) error {
	if len(args) == 0 {
		return nil
	}

	nonSkip := make([]*schema.FieldDef, 0, len(fields))
	for _, f := range fields {
		if f.Type.Kind != schema.KindSkip {
			nonSkip = append(nonSkip, f)
		}
	}

	if len(args) == 1 {
		if kv, ok := args[0].(map[string]any); ok {
			for name, v := range kv {
				inst.Set(name, v)
			}
			return nil
		}
		if len(nonSkip) == 1 {
			inst.Set(nonSkip[0].Name, args[0])
			return nil
		}
		return llrperr.NewEncodeError(className, "single positional argument requires exactly one non-skip field, has %d", len(nonSkip))
	}

	return llrperr.NewEncodeError(className, "multiple constructor arguments must be passed as a single map[string]any")
}

// Pack serializes inst to its wire bytes per spec §4.5. Fields and children
// are written in descriptor order; TV parameters are a fixed-width tag-only
// form, TLV parameters carry a 16-bit length backfilled after the body is written.
func Pack(w *wire.BitWriter, inst *instance.Instance) error {
	desc := inst.ParamDesc
	if desc == nil {
		return llrperr.NewEncodeError(inst.ClassName(), "instance is not bound to a parameter descriptor")
	}

	if desc.Encoding == schema.TV {
		w.WriteBits(uint64(desc.TypeCode)|0x80, 8)
		for _, f := range desc.Fields {
			if err := wire.Write(w, f, inst.Get(f.Name)); err != nil {
				return err
			}
		}
		return nil
	}

	w.WriteBits(uint64(desc.TypeCode)&0x3ff, 16)
	lenPos := w.Len()
	w.WriteBits(0, 16) // length placeholder, backfilled below

	for _, f := range desc.Fields {
		if err := wire.Write(w, f, inst.Get(f.Name)); err != nil {
			return err
		}
	}
	for _, child := range inst.Children {
		if err := Pack(w, child); err != nil {
			return err
		}
	}

	total := w.Len() - lenPos + 2 // +2 for the 16-bit tag already written
	if total < 0 || total > 0xffff {
		return llrperr.NewEncodeError(inst.ClassName(), "parameter length %d does not fit in 16 bits", total)
	}
	w.PatchUint16At(lenPos, uint16(total))
	return nil
}

// Unpack decodes one parameter from r starting at the current (byte-aligned)
// position, resolving its descriptor from reg and recursively decoding its
// declared children. It returns the decoded instance and the number of bytes
// consumed.
func Unpack(reg *registry.Registry, r *wire.BitReader) (*instance.Instance, int, error) {
	start := r.Pos()

	first, err := r.PeekByte()
	if err != nil {
		return nil, 0, err
	}

	if first&0x80 != 0 {
		tagByte, err := r.ReadBits(8)
		if err != nil {
			return nil, 0, err
		}
		typeCode := int(tagByte & 0x7f)
		desc, ok := reg.LookupParameter(typeCode)
		if !ok {
			return nil, 0, llrperr.NewDecodeError("parameter", "unknown TV type code %d", typeCode)
		}
		inst := instance.New(instance.Parameter(desc))
		for _, f := range desc.Fields {
			v, err := wire.Read(f, r, -1)
			if err != nil {
				return nil, 0, err
			}
			inst.Set(f.Name, v)
		}
		inst.WireLength = r.Pos() - start
		return inst, inst.WireLength, nil
	}

	header, err := r.ReadBits(16)
	if err != nil {
		return nil, 0, err
	}
	typeCode := int(header & 0x3ff)
	length, err := r.ReadBits(16)
	if err != nil {
		return nil, 0, err
	}
	wireLength := int(length)
	bodyEnd := start + wireLength

	desc, ok := reg.LookupParameter(typeCode)
	if !ok {
		return nil, 0, llrperr.NewDecodeError("parameter", "unknown TLV type code %d", typeCode)
	}

	inst := instance.New(instance.Parameter(desc))

	if typeCode == schema.CustomTypeCode {
		return unpackCustom(reg, r, desc, inst, start, bodyEnd)
	}

	for _, f := range desc.Fields {
		remaining := bodyEnd - r.Pos()
		v, err := wire.Read(f, r, remaining)
		if err != nil {
			return nil, 0, err
		}
		inst.Set(f.Name, v)
	}

	if desc.Children != nil {
		for r.Pos() < bodyEnd {
			child, _, err := Unpack(reg, r)
			if err != nil {
				return nil, 0, err
			}
			inst.AddChild(child)
		}
	}

	if r.Pos() != bodyEnd {
		return nil, 0, llrperr.NewDecodeError(desc.ClassName(), "declared length %d but consumed %d bytes", wireLength, r.Pos()-start)
	}

	inst.WireLength = wireLength
	return inst, wireLength, nil
}

// unpackCustom implements spec §4.5 step 4: read the generic Custom header
// fields, then rebind to the concrete vendor descriptor if one is
// registered, or skip the remaining declared bytes and return a plain
// Custom instance otherwise.
func unpackCustom(reg *registry.Registry, r *wire.BitReader, genericDesc *schema.ParameterDesc, inst *instance.Instance, start, bodyEnd int) (*instance.Instance, int, error) {
	for _, f := range genericDesc.Fields {
		remaining := bodyEnd - r.Pos()
		v, err := wire.Read(f, r, remaining)
		if err != nil {
			return nil, 0, err
		}
		inst.Set(f.Name, v)
	}

	vendorID, _ := inst.Get("VendorIdentifier").(int64)
	subtype, _ := inst.Get("ParameterSubtype").(int64)

	vendorDesc, ok := reg.LookupCustomParameter(uint32(vendorID), uint32(subtype))
	if !ok {
		logging.Debug("param: no vendor descriptor for (vendor=%d, subtype=%d), falling back to generic Custom", vendorID, subtype)

		remaining := bodyEnd - r.Pos()
		if remaining > 0 {
			if _, err := r.ReadBytes(remaining); err != nil {
				return nil, 0, err
			}
		}
		inst.WireLength = bodyEnd - start
		return inst, inst.WireLength, nil
	}

	rebind := instance.New(instance.Parameter(vendorDesc))
	rebind.Set("VendorIdentifier", inst.Get("VendorIdentifier"))
	rebind.Set("ParameterSubtype", inst.Get("ParameterSubtype"))

	for _, f := range vendorDesc.Fields[2:] {
		remaining := bodyEnd - r.Pos()
		v, err := wire.Read(f, r, remaining)
		if err != nil {
			return nil, 0, err
		}
		rebind.Set(f.Name, v)
	}

	if vendorDesc.Children != nil {
		for r.Pos() < bodyEnd {
			child, _, err := Unpack(reg, r)
			if err != nil {
				return nil, 0, err
			}
			rebind.AddChild(child)
		}
	}

	if r.Pos() != bodyEnd {
		return nil, 0, llrperr.NewDecodeError(vendorDesc.ClassName(), "short custom body: declared length %d but consumed %d bytes", bodyEnd-start, r.Pos()-start)
	}

	rebind.WireLength = bodyEnd - start
	return rebind, rebind.WireLength, nil
}
