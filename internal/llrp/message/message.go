// Package message implements the Message Codec (spec §4.6): message framing
// pack/unpack, Custom-message dispatch, and the process-wide message-id
// counter used when a new message is constructed without an explicit id.
package message

import (
	"sync/atomic"

	"github.com/kulaginds/llrp/internal/llrp/instance"
	"github.com/kulaginds/llrp/internal/llrp/llrperr"
	"github.com/kulaginds/llrp/internal/llrp/param"
	"github.com/kulaginds/llrp/internal/llrp/registry"
	"github.com/kulaginds/llrp/internal/llrp/schema"
	"github.com/kulaginds/llrp/internal/llrp/wire"
	"github.com/kulaginds/llrp/internal/logging"
)

// nextMessageID is the process-wide monotonically increasing counter (spec
// §4.6, §5), allocated fetch-and-add starting at 1.
var nextMessageID uint32

// AllocateMessageID returns the next id from the process-wide counter.
func AllocateMessageID() uint32 {
	return atomic.AddUint32(&nextMessageID, 1)
}

// New builds a fresh, default-valued message Instance. If messageID is nil,
// one is allocated from the process-wide counter.
func New(desc *schema.MessageDesc, messageID *uint32, args ...any) (*instance.Instance, error) {
	inst := instance.New(instance.Message(desc))
	for _, f := range desc.Fields {
		inst.Set(f.Name, wire.Init(f))
	}

	id := messageID
	if id == nil {
		v := AllocateMessageID()
		id = &v
	}
	inst.MessageID = id

	if err := applyArgs(desc.ClassName(), desc.Fields, inst, args); err != nil {
		return nil, err
	}
	return inst, nil
}

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

// Pack serializes inst — a top-level message — to its full wire frame per
// spec §4.6: 16-bit (version<<10 | typeCode) header, 32-bit length
// placeholder, 32-bit message id, fields, then children.
func Pack(w *wire.BitWriter, inst *instance.Instance) error {
	desc := inst.MsgDesc
	if desc == nil {
		return llrperr.NewEncodeError(inst.ClassName(), "instance is not bound to a message descriptor")
	}
	if inst.MessageID == nil {
		return llrperr.NewEncodeError(inst.ClassName(), "message has no id")
	}

	const protocolVersion = 1
	w.WriteBits(uint64(protocolVersion)<<10|uint64(desc.TypeCode)&0x3ff, 16)
	lenPos := w.Len()
	w.WriteBits(0, 32) // length placeholder
	w.WriteBits(uint64(*inst.MessageID), 32)

	for _, f := range desc.Fields {
		if err := wire.Write(w, f, inst.Get(f.Name)); err != nil {
			return err
		}
	}
	for _, child := range inst.Children {
		if err := param.Pack(w, child); err != nil {
			return err
		}
	}

	total := w.Len() - lenPos + 2 // +2 for the already-written 16-bit tag
	w.PatchUint32At(lenPos, uint32(total))
	return nil
}

// Unpack decodes a complete message frame per spec §4.6, dispatching to the
// vendor-specific descriptor when typeCode is the reserved Custom code.
func Unpack(reg *registry.Registry, data []byte) (*instance.Instance, error) {
	r := wire.NewBitReader(data)

	header, err := r.ReadBits(16)
	if err != nil {
		return nil, err
	}
	typeCode := int(header & 0x3ff)

	length, err := r.ReadBits(32)
	if err != nil {
		return nil, err
	}
	msgLen := int(length)
	if msgLen != len(data) {
		return nil, llrperr.NewDecodeError("message", "declared length %d does not match frame size %d", msgLen, len(data))
	}

	msgID, err := r.ReadBits(32)
	if err != nil {
		return nil, err
	}
	id := uint32(msgID)

	desc, ok := reg.LookupMessage(typeCode)
	if !ok {
		return nil, llrperr.NewDecodeError("message", "unknown message type code %d", typeCode)
	}

	inst := instance.New(instance.Message(desc))
	inst.MessageID = &id

	if typeCode == schema.CustomTypeCode {
		return unpackCustomMessage(reg, r, desc, inst, msgLen)
	}

	for _, f := range desc.Fields {
		remaining := msgLen - r.Pos()
		v, err := wire.Read(f, r, remaining)
		if err != nil {
			return nil, err
		}
		inst.Set(f.Name, v)
	}

	if desc.Children != nil {
		for r.Pos() < msgLen {
			child, _, err := param.Unpack(reg, r)
			if err != nil {
				return nil, err
			}
			inst.AddChild(child)
		}
	}

	if r.Pos() != msgLen {
		return nil, llrperr.NewDecodeError(desc.ClassName(), "declared length %d but consumed %d bytes", msgLen, r.Pos())
	}

	inst.WireLength = msgLen
	return inst, nil
}

func unpackCustomMessage(reg *registry.Registry, r *wire.BitReader, genericDesc *schema.MessageDesc, inst *instance.Instance, msgLen int) (*instance.Instance, error) {
	for _, f := range genericDesc.Fields {
		remaining := msgLen - r.Pos()
		v, err := wire.Read(f, r, remaining)
		if err != nil {
			return nil, err
		}
		inst.Set(f.Name, v)
	}

	vendorID, _ := inst.Get("VendorIdentifier").(int64)
	subtype, _ := inst.Get("MessageSubtype").(int64)

	vendorDesc, ok := reg.LookupCustomMessage(uint32(vendorID), uint32(subtype))
	if !ok {
		logging.Debug("message: no vendor descriptor for (vendor=%d, subtype=%d), falling back to generic CUSTOM_MESSAGE", vendorID, subtype)

		remaining := msgLen - r.Pos()
		if remaining > 0 {
			if _, err := r.ReadBytes(remaining); err != nil {
				return nil, err
			}
		}
		inst.WireLength = msgLen
		return inst, nil
	}

	rebind := instance.New(instance.Message(vendorDesc))
	rebind.MessageID = inst.MessageID
	rebind.Set("VendorIdentifier", inst.Get("VendorIdentifier"))
	rebind.Set("MessageSubtype", inst.Get("MessageSubtype"))

	for _, f := range vendorDesc.Fields[2:] {
		remaining := msgLen - r.Pos()
		v, err := wire.Read(f, r, remaining)
		if err != nil {
			return nil, err
		}
		rebind.Set(f.Name, v)
	}

	if vendorDesc.Children != nil {
		for r.Pos() < msgLen {
			child, _, err := param.Unpack(reg, r)
			if err != nil {
				return nil, err
			}
			rebind.AddChild(child)
		}
	}

	if r.Pos() != msgLen {
		return nil, llrperr.NewDecodeError(vendorDesc.ClassName(), "short custom body: declared length %d but consumed %d bytes", msgLen, r.Pos())
	}

	rebind.WireLength = msgLen
	return rebind, nil
}
