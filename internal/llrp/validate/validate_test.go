package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulaginds/llrp/internal/llrp/instance"
	"github.com/kulaginds/llrp/internal/llrp/registry"
	"github.com/kulaginds/llrp/internal/llrp/schema"
)

func uintField(name string, bits int) *schema.FieldDef {
	return &schema.FieldDef{Name: name, Type: schema.FieldType{Kind: schema.KindUIntBE, Bits: bits}}
}

func newParamInstance(desc *schema.ParameterDesc) *instance.Instance {
	inst := instance.New(instance.Parameter(desc))
	for _, f := range desc.Fields {
		inst.Set(f.Name, int64(0))
	}
	return inst
}

func TestValidate_InRangeFieldsPass(t *testing.T) {
	desc := &schema.ParameterDesc{TypeCode: 200, Name: "RFTransmitter", Fields: []*schema.FieldDef{
		uintField("HopTableID", 8), uintField("ChannelIndex", 8), uintField("TransmitPower", 16),
	}}
	inst := newParamInstance(desc)
	inst.Set("HopTableID", int64(1))
	inst.Set("ChannelIndex", int64(1))
	inst.Set("TransmitPower", int64(8192))

	reg := registry.New(&schema.Tables{Choices: map[string]map[string]bool{}})
	err := Instance(reg, inst)
	assert.NoError(t, err)
}

func TestValidate_ChannelIndexMustBeOneBased(t *testing.T) {
	desc := &schema.ParameterDesc{TypeCode: 200, Name: "RFTransmitter", Fields: []*schema.FieldDef{
		uintField("HopTableID", 8), uintField("ChannelIndex", 8), uintField("TransmitPower", 16),
	}}
	inst := newParamInstance(desc)
	inst.Set("HopTableID", int64(1))
	inst.Set("ChannelIndex", int64(0))
	inst.Set("TransmitPower", int64(8192))

	reg := registry.New(&schema.Tables{Choices: map[string]map[string]bool{}})
	err := Instance(reg, inst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RFTransmitter.ChannelIndex")
}

func TestValidate_NoChildrenDeclared_RejectsAny(t *testing.T) {
	leaf := &schema.ParameterDesc{TypeCode: 201, Name: "Leaf"}
	parent := &schema.ParameterDesc{TypeCode: 202, Name: "Parent"} // Children == nil

	parentInst := instance.New(instance.Parameter(parent))
	parentInst.AddChild(instance.New(instance.Parameter(leaf)))

	reg := registry.New(&schema.Tables{Choices: map[string]map[string]bool{}})
	err := Instance(reg, parentInst)
	assert.Error(t, err)
}

func TestValidate_CardinalityTooFewTooMany(t *testing.T) {
	child := &schema.ParameterDesc{TypeCode: 201, Name: "Child"}
	parent := &schema.ParameterDesc{TypeCode: 202, Name: "Parent", Children: []schema.ChildSpec{
		{RefName: "Child_Parameter", Min: 1, Max: 1},
	}}
	reg := registry.New(&schema.Tables{Choices: map[string]map[string]bool{}})

	tooFew := instance.New(instance.Parameter(parent))
	assert.Error(t, Instance(reg, tooFew))

	tooMany := instance.New(instance.Parameter(parent))
	tooMany.AddChild(instance.New(instance.Parameter(child)))
	tooMany.AddChild(instance.New(instance.Parameter(child)))
	assert.Error(t, Instance(reg, tooMany))

	justRight := instance.New(instance.Parameter(parent))
	justRight.AddChild(instance.New(instance.Parameter(child)))
	assert.NoError(t, Instance(reg, justRight))
}

func TestValidate_OrderingViolation(t *testing.T) {
	boundary := &schema.ParameterDesc{TypeCode: 201, Name: "ROBoundarySpec"}
	report := &schema.ParameterDesc{TypeCode: 202, Name: "ROReportSpec"}
	rospec := &schema.ParameterDesc{TypeCode: 203, Name: "ROSpec", Children: []schema.ChildSpec{
		{RefName: "ROBoundarySpec_Parameter", Min: 1, Max: 1},
		{RefName: "ROReportSpec_Parameter", Min: 0, Max: 1},
	}}
	reg := registry.New(&schema.Tables{Choices: map[string]map[string]bool{}})

	wrongOrder := instance.New(instance.Parameter(rospec))
	wrongOrder.AddChild(instance.New(instance.Parameter(report)))
	wrongOrder.AddChild(instance.New(instance.Parameter(boundary)))
	err := Instance(reg, wrongOrder)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incorrect parameter sequence")

	rightOrder := instance.New(instance.Parameter(rospec))
	rightOrder.AddChild(instance.New(instance.Parameter(boundary)))
	rightOrder.AddChild(instance.New(instance.Parameter(report)))
	assert.NoError(t, Instance(reg, rightOrder))
}

func TestValidate_ChoiceGroupSatisfiesChildSpec(t *testing.T) {
	antenna := &schema.ParameterDesc{TypeCode: 201, Name: "Antenna"}
	gpi := &schema.ParameterDesc{TypeCode: 202, Name: "GPI"}
	holder := &schema.ParameterDesc{TypeCode: 203, Name: "Holder", Children: []schema.ChildSpec{
		{RefName: "Spec_Parameter", Min: 1, Max: 65535},
	}}
	reg := registry.New(&schema.Tables{Choices: map[string]map[string]bool{
		"Spec_Parameter": {"Antenna_Parameter": true, "GPI_Parameter": true},
	}})

	inst := instance.New(instance.Parameter(holder))
	inst.AddChild(instance.New(instance.Parameter(antenna)))
	inst.AddChild(instance.New(instance.Parameter(gpi)))
	assert.NoError(t, Instance(reg, inst))
}

func TestValidate_DepthFirstReportsNestedFieldPath(t *testing.T) {
	leaf := &schema.ParameterDesc{TypeCode: 201, Name: "Leaf", Fields: []*schema.FieldDef{uintField("X", 8)}}
	parent := &schema.ParameterDesc{TypeCode: 202, Name: "Parent", Children: []schema.ChildSpec{
		{RefName: "Leaf_Parameter", Min: 1, Max: 1},
	}}
	reg := registry.New(&schema.Tables{Choices: map[string]map[string]bool{}})

	parentInst := instance.New(instance.Parameter(parent))
	leafInst := instance.New(instance.Parameter(leaf))
	leafInst.Set("X", int64(999)) // overflows an 8-bit field
	parentInst.AddChild(leafInst)

	err := Instance(reg, parentInst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Parent_Parameter.Leaf_Parameter.X")
}
