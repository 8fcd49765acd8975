package schema

// EnumValue is one (value, name) choice of an enumeration.
type EnumValue struct {
	Value int
	Name  string
}

// EnumDef is a normalized enumeration: an ordered, bidirectional value<->name mapping.
type EnumDef struct {
	Name        string
	Choices     []EnumValue
	valueToName map[int]string
	nameToValue map[string]int
}

func newEnumDef(name string, choices []EnumValue) (*EnumDef, error) {
	e := &EnumDef{
		Name:        name,
		Choices:     choices,
		valueToName: make(map[int]string, len(choices)),
		nameToValue: make(map[string]int, len(choices)),
	}
	for _, c := range choices {
		if _, dup := e.valueToName[c.Value]; dup {
			return nil, schemaErr("enum "+name, "duplicate value %d", c.Value)
		}
		if _, dup := e.nameToValue[c.Name]; dup {
			return nil, schemaErr("enum "+name, "duplicate name %q", c.Name)
		}
		e.valueToName[c.Value] = c.Name
		e.nameToValue[c.Name] = c.Value
	}
	return e, nil
}

// FieldDef is a normalized field descriptor (spec §3.1).
type FieldDef struct {
	Name    string
	Type    FieldType
	Enum    *EnumDef
	Default *int64
}

// ChildSpec declares one allowed child position (spec §3.1): refName names
// either a parameter/message type or a choice group, repeated min..max times.
type ChildSpec struct {
	RefName string
	Min     int
	Max     int
}

// VendorKey is the (CustomTypeCode, VendorIdentifier, Subtype) dispatch triple (spec §3.2).
type VendorKey struct {
	VendorID uint32
	Subtype  uint32
}

// Encoding distinguishes LLRP's two parameter wire disciplines (spec §3.1, §4.5).
type Encoding int

const (
	TLV Encoding = iota
	TV
)

// ParameterDesc is the immutable descriptor for one parameter type (spec §3.1).
type ParameterDesc struct {
	TypeCode int
	Name     string
	Encoding Encoding
	Fields   []*FieldDef
	// Children is nil when the parameter declares no children at all; a
	// non-nil (possibly empty) slice when the schema gives an explicit
	// (possibly empty) child list. Unpack decodes child parameters only when
	// Children is non-nil, and the validator rejects any child of a nil list.
	Children []ChildSpec
	TVLength int // bytes; only meaningful when Encoding == TV
	Vendor   *VendorKey
}

// ClassName is the parameter's fully-suffixed type name, as used in choice
// sets and validator path messages (e.g. "ROSpec_Parameter").
func (d *ParameterDesc) ClassName() string { return d.Name + "_Parameter" }

// MessageDesc is the immutable descriptor for one message type (spec §3.1).
type MessageDesc struct {
	TypeCode int
	Name     string
	Fields   []*FieldDef
	Children []ChildSpec
	Vendor   *VendorKey
}

// ClassName is the message's fully-suffixed type name (e.g. "ADD_ROSPEC_Message").
func (d *MessageDesc) ClassName() string { return d.Name + "_Message" }

// Tables is the Schema Loader's output (spec §4.1): the normalized enum,
// parameter, message and choice tables the rest of the codec is built on.
type Tables struct {
	Enums map[string]*EnumDef

	Parameters        map[int]*ParameterDesc
	ParameterVariants map[VendorKey]*ParameterDesc
	ParametersByName  map[string]*ParameterDesc

	Messages        map[int]*MessageDesc
	MessageVariants map[VendorKey]*MessageDesc
	MessagesByName  map[string]*MessageDesc

	// Choices maps a choice group name to the set of parameter class names
	// (suffixed, e.g. "Antenna_Parameter") that satisfy it.
	Choices map[string]map[string]bool

	// Vendors maps vendor name to vendor code, as declared in the schema.
	Vendors map[string]uint32
}
