// Package instance defines Instance, the single runtime representation
// shared by every parameter and message tree node (spec §3.1). A descriptor
// reference plus a field-value map plus an ordered child list stands in for
// the per-type classes the schema would otherwise have to generate.
package instance

import (
	"iter"

	"github.com/kulaginds/llrp/internal/llrp/llrperr"
	"github.com/kulaginds/llrp/internal/llrp/schema"
)

// Desc is the common shape of schema.ParameterDesc and schema.MessageDesc
// that Instance needs: a class name, a field list and a child-spec list.
type Desc interface {
	ClassName() string
	FieldList() []*schema.FieldDef
	ChildList() []schema.ChildSpec
}

// paramDesc adapts *schema.ParameterDesc to Desc.
type paramDesc struct{ d *schema.ParameterDesc }

func (p paramDesc) ClassName() string             { return p.d.ClassName() }
func (p paramDesc) FieldList() []*schema.FieldDef { return p.d.Fields }
func (p paramDesc) ChildList() []schema.ChildSpec { return p.d.Children }

// Parameter wraps a *schema.ParameterDesc as a Desc.
func Parameter(d *schema.ParameterDesc) Desc { return paramDesc{d} }

// msgDesc adapts *schema.MessageDesc to Desc.
type msgDesc struct{ d *schema.MessageDesc }

func (m msgDesc) ClassName() string             { return m.d.ClassName() }
func (m msgDesc) FieldList() []*schema.FieldDef { return m.d.Fields }
func (m msgDesc) ChildList() []schema.ChildSpec { return m.d.Children }

// Message wraps a *schema.MessageDesc as a Desc.
func Message(d *schema.MessageDesc) Desc { return msgDesc{d} }

// Instance is a runtime parameter or message node (spec §3.1).
type Instance struct {
	Desc        Desc
	ParamDesc   *schema.ParameterDesc // non-nil when Desc wraps a parameter
	MsgDesc     *schema.MessageDesc   // non-nil when Desc wraps a message
	FieldValues map[string]any
	Children    []*Instance
	MessageID   *uint32 // only meaningful when MsgDesc != nil
	WireLength  int     // populated on pack/unpack
}

// New builds an empty Instance for desc: no field values, no children. The
// caller (the parameter/message constructors in §4.6, which already hold a
// field-init function from package wire) is responsible for populating
// FieldValues with each field's init value before the instance is used.
func New(desc Desc) *Instance {
	fields := desc.FieldList()
	inst := &Instance{Desc: desc, FieldValues: make(map[string]any, len(fields))}
	if pd, ok := desc.(paramDesc); ok {
		inst.ParamDesc = pd.d
	}
	if md, ok := desc.(msgDesc); ok {
		inst.MsgDesc = md.d
	}
	return inst
}

// ClassName returns the instance's descriptor class name.
func (i *Instance) ClassName() string { return i.Desc.ClassName() }

// Get returns the named field's current value.
func (i *Instance) Get(name string) any { return i.FieldValues[name] }

// Set assigns the named field's value.
func (i *Instance) Set(name string, value any) { i.FieldValues[name] = value }

// AddChild appends a child instance, preserving declaration order.
func (i *Instance) AddChild(child *Instance) { i.Children = append(i.Children, child) }

// AllParametersByName walks the instance's parameter tree depth-first,
// yielding every descendant (not including itself) whose class name equals
// name (supplemented feature, grounded in pyllrp's _getAllParametersByClass).
func (i *Instance) AllParametersByName(name string) iter.Seq[*Instance] {
	return func(yield func(*Instance) bool) {
		var walk func(n *Instance) bool
		walk = func(n *Instance) bool {
			for _, c := range n.Children {
				if c.ClassName() == name {
					if !yield(c) {
						return false
					}
				}
				if !walk(c) {
					return false
				}
			}
			return true
		}
		walk(i)
	}
}

// FirstParameterByName returns the first depth-first descendant whose class
// name equals name, or nil if none exists (pyllrp's _getFirstParameterByClass).
func (i *Instance) FirstParameterByName(name string) *Instance {
	for p := range i.AllParametersByName(name) {
		return p
	}
	return nil
}

// IsSuccess reports whether the instance's LLRPStatus child carries
// StatusCode "M_Success" (pyllrp's per-response .success property). It
// errors if the instance has no LLRPStatus child.
func (i *Instance) IsSuccess() (bool, error) {
	status := i.FirstParameterByName("LLRPStatus_Parameter")
	if status == nil {
		return false, llrperr.NewValidationError(i.ClassName(), "instance has no LLRPStatus parameter")
	}
	code, ok := status.Get("StatusCode").(int64)
	if !ok {
		return false, llrperr.NewValidationError(i.ClassName()+".LLRPStatus", "StatusCode field is missing or malformed")
	}

	var enum *schema.EnumDef
	if status.ParamDesc != nil {
		for _, f := range status.ParamDesc.Fields {
			if f.Name == "StatusCode" {
				enum = f.Enum
				break
			}
		}
	}
	if enum == nil {
		return code == 0, nil
	}
	for _, c := range enum.Choices {
		if c.Value == int(code) {
			return c.Name == "M_Success", nil
		}
	}
	return false, nil
}
