package schema

import "fmt"

// Build normalizes a decoded Document into immutable descriptor Tables (spec §4.1).
func (doc *Document) Build() (*Tables, error) {
	t := &Tables{
		Enums:             make(map[string]*EnumDef),
		Parameters:        make(map[int]*ParameterDesc),
		ParameterVariants: make(map[VendorKey]*ParameterDesc),
		ParametersByName:  make(map[string]*ParameterDesc),
		Messages:          make(map[int]*MessageDesc),
		MessageVariants:   make(map[VendorKey]*MessageDesc),
		MessagesByName:    make(map[string]*MessageDesc),
		Choices:           make(map[string]map[string]bool),
		Vendors:           doc.Vendors,
	}

	for _, e := range doc.Enums {
		choices := make([]EnumValue, 0, len(e.Choices))
		for _, pair := range e.Choices {
			v, err := parseEnumValue(pair[0])
			if err != nil {
				return nil, schemaErr("enum "+e.Name, "bad value: %v", err)
			}
			name, ok := pair[1].(string)
			if !ok {
				return nil, schemaErr("enum "+e.Name, "choice name must be a string")
			}
			choices = append(choices, EnumValue{Value: v, Name: name})
		}
		def, err := newEnumDef(e.Name, choices)
		if err != nil {
			return nil, err
		}
		t.Enums[e.Name] = def
	}

	// choiceDefinitions maps a concrete member parameter name to the choice
	// group name it belongs to (see pyllrp: `llrpdef.choiceDefinitions[pName]`
	// looked up by the *member's* class name). Both sides get the
	// "_Parameter" suffix appended, per spec §6.1.
	for member, group := range doc.ChoiceDefinitions {
		memberName := member + "_Parameter"
		groupName := group + "_Parameter"
		if t.Choices[groupName] == nil {
			t.Choices[groupName] = make(map[string]bool)
		}
		t.Choices[groupName][memberName] = true
	}

	for _, rec := range doc.Parameters {
		desc, err := buildParameterDesc(rec, t.Enums)
		if err != nil {
			return nil, err
		}
		if _, dup := t.Parameters[desc.TypeCode]; dup && desc.Vendor == nil {
			return nil, schemaErr("parameter "+desc.Name, "duplicate type code %d", desc.TypeCode)
		}
		if desc.Vendor != nil {
			if _, dup := t.ParameterVariants[*desc.Vendor]; dup {
				return nil, schemaErr("parameter "+desc.Name, "duplicate vendor key %+v", *desc.Vendor)
			}
			t.ParameterVariants[*desc.Vendor] = desc
		} else {
			t.Parameters[desc.TypeCode] = desc
		}
		t.ParametersByName[desc.ClassName()] = desc
	}

	for _, rec := range doc.Messages {
		desc, err := buildMessageDesc(rec, t.Enums)
		if err != nil {
			return nil, err
		}
		if _, dup := t.Messages[desc.TypeCode]; dup && desc.Vendor == nil {
			return nil, schemaErr("message "+desc.Name, "duplicate type code %d", desc.TypeCode)
		}
		if desc.Vendor != nil {
			if _, dup := t.MessageVariants[*desc.Vendor]; dup {
				return nil, schemaErr("message "+desc.Name, "duplicate vendor key %+v", *desc.Vendor)
			}
			t.MessageVariants[*desc.Vendor] = desc
		} else {
			t.Messages[desc.TypeCode] = desc
		}
		t.MessagesByName[desc.ClassName()] = desc
	}

	stripTrailingBytesToEnd(t)

	return t, nil
}

func buildFields(recs []FieldRecord, enums map[string]*EnumDef) ([]*FieldDef, error) {
	fields := make([]*FieldDef, 0, len(recs))
	for _, f := range recs {
		ft, err := ParseFieldType(f.Type)
		if err != nil {
			return nil, schemaErr("field "+f.Name, "%v", err)
		}
		var enum *EnumDef
		if f.Enumeration != "" {
			enum = enums[f.Enumeration]
			if enum == nil {
				return nil, schemaErr("field "+f.Name, "unknown enumeration %q", f.Enumeration)
			}
		}
		fields = append(fields, &FieldDef{
			Name:    f.Name,
			Type:    ft,
			Enum:    enum,
			Default: f.Default,
		})
	}
	return fields, nil
}

func buildChildren(recs []ChildRecord, declared bool) []ChildSpec {
	if !declared {
		return nil
	}
	children := make([]ChildSpec, 0, len(recs))
	for _, c := range recs {
		children = append(children, ChildSpec{RefName: c.Parameter + "_Parameter", Min: c.Repeat[0], Max: c.Repeat[1]})
	}
	return children
}

// isCustomFields reports whether fields[0:2] are the (VendorIdentifier,
// Subtype) pair with concrete defaults that marks a vendor-specific Custom
// variant (spec §4.5/§4.6, grounded in pyllrp's `isCustom`).
func isCustomFields(fields []*FieldDef, subtypeFieldName string) *VendorKey {
	if len(fields) < 2 {
		return nil
	}
	if fields[0].Name != "VendorIdentifier" || fields[0].Default == nil {
		return nil
	}
	if fields[1].Name != subtypeFieldName || fields[1].Default == nil {
		return nil
	}
	return &VendorKey{VendorID: uint32(*fields[0].Default), Subtype: uint32(*fields[1].Default)}
}

func buildParameterDesc(rec TypeRecord, enums map[string]*EnumDef) (*ParameterDesc, error) {
	fields, err := buildFields(rec.Fields, enums)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", rec.Name, err)
	}

	desc := &ParameterDesc{
		TypeCode: rec.TypeNum,
		Name:     rec.Name,
		Fields:   fields,
	}

	if rec.Name != "Custom" {
		desc.Vendor = isCustomFields(fields, "ParameterSubtype")
	}

	if rec.TypeNum <= 127 {
		desc.Encoding = TV
		bits := 8
		for _, f := range fields {
			bits += f.Type.Bits
			if f.Type.Kind == KindString || f.Type.Kind == KindArray || f.Type.Kind == KindBitArray || f.Type.Kind == KindBytesToEnd {
				return nil, schemaErr("parameter "+rec.Name, "TV parameter cannot contain variable-width field %q", f.Name)
			}
		}
		if bits%8 != 0 {
			return nil, schemaErr("parameter "+rec.Name, "TV field widths sum to %d bits, not a multiple of 8", bits)
		}
		desc.TVLength = bits / 8
		if rec.Parameters != nil {
			return nil, schemaErr("parameter "+rec.Name, "TV parameters cannot declare children")
		}
	} else {
		desc.Encoding = TLV
		desc.Children = buildChildren(rec.Parameters, rec.Parameters != nil)
	}

	return desc, nil
}

func buildMessageDesc(rec TypeRecord, enums map[string]*EnumDef) (*MessageDesc, error) {
	fields, err := buildFields(rec.Fields, enums)
	if err != nil {
		return nil, fmt.Errorf("message %s: %w", rec.Name, err)
	}

	desc := &MessageDesc{
		TypeCode: rec.TypeNum,
		Name:     rec.Name,
		Fields:   fields,
		Children: buildChildren(rec.Parameters, rec.Parameters != nil),
	}

	if rec.Name != "CUSTOM_MESSAGE" {
		desc.Vendor = isCustomFields(fields, "MessageSubtype")
	}

	return desc, nil
}

// stripTrailingBytesToEnd removes the generic Custom/CUSTOM_MESSAGE
// descriptors' trailing BytesToEnd "Data" field (spec §4.1, §9 Open Question):
// vendor-specific descriptors fully enumerate those bytes, so the generic
// descriptor only needs VendorIdentifier/(Parameter|Message)Subtype to drive
// dispatch; its raw body is never read field-by-field.
func stripTrailingBytesToEnd(t *Tables) {
	if custom := t.ParametersByName["Custom_Parameter"]; custom != nil {
		custom.Fields = trimTrailingBytesToEnd(custom.Fields)
	}
	if customMsg := t.MessagesByName["CUSTOM_MESSAGE_Message"]; customMsg != nil {
		customMsg.Fields = trimTrailingBytesToEnd(customMsg.Fields)
	}
}

func trimTrailingBytesToEnd(fields []*FieldDef) []*FieldDef {
	if len(fields) > 0 && fields[len(fields)-1].Type.Kind == KindBytesToEnd {
		return fields[:len(fields)-1]
	}
	return fields
}
