package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kulaginds/llrp/internal/llrp/schema"
)

func leafDesc(typeCode int, name string) *schema.ParameterDesc {
	return &schema.ParameterDesc{TypeCode: typeCode, Name: name}
}

func TestAllParametersByName_DepthFirst(t *testing.T) {
	root := New(Parameter(leafDesc(1, "Root")))
	a := New(Parameter(leafDesc(2, "Target")))
	b := New(Parameter(leafDesc(3, "Other")))
	nested := New(Parameter(leafDesc(2, "Target")))
	b.AddChild(nested)
	root.AddChild(a)
	root.AddChild(b)

	var found []*Instance
	for p := range root.AllParametersByName("Target_Parameter") {
		found = append(found, p)
	}
	require.Len(t, found, 2)
	assert.Same(t, a, found[0])
	assert.Same(t, nested, found[1])
}

func TestAllParametersByName_NoMatches(t *testing.T) {
	root := New(Parameter(leafDesc(1, "Root")))
	var found []*Instance
	for p := range root.AllParametersByName("Missing_Parameter") {
		found = append(found, p)
	}
	assert.Empty(t, found)
}

func TestAllParametersByName_StopsEarlyWhenConsumerBreaks(t *testing.T) {
	root := New(Parameter(leafDesc(1, "Root")))
	for i := 0; i < 5; i++ {
		root.AddChild(New(Parameter(leafDesc(2, "Target"))))
	}

	count := 0
	for range root.AllParametersByName("Target_Parameter") {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestFirstParameterByName(t *testing.T) {
	root := New(Parameter(leafDesc(1, "Root")))
	assert.Nil(t, root.FirstParameterByName("Target_Parameter"))

	first := New(Parameter(leafDesc(2, "Target")))
	root.AddChild(first)
	root.AddChild(New(Parameter(leafDesc(2, "Target"))))
	assert.Same(t, first, root.FirstParameterByName("Target_Parameter"))
}

func statusCodeField(enum *schema.EnumDef) *schema.FieldDef {
	return &schema.FieldDef{Name: "StatusCode", Type: schema.FieldType{Kind: schema.KindUIntBE, Bits: 16}, Enum: enum}
}

func TestIsSuccess_NoStatusParameterErrors(t *testing.T) {
	root := New(Parameter(leafDesc(1, "ADD_ROSPEC_RESPONSE")))
	_, err := root.IsSuccess()
	assert.Error(t, err)
}

func TestIsSuccess_WithEnum(t *testing.T) {
	enum := &schema.EnumDef{Name: "StatusCode", Choices: []schema.EnumValue{
		{Value: 0, Name: "M_Success"}, {Value: 1, Name: "M_ParameterError"},
	}}
	statusDesc := &schema.ParameterDesc{TypeCode: 287, Name: "LLRPStatus", Fields: []*schema.FieldDef{statusCodeField(enum)}}

	root := New(Parameter(leafDesc(1, "ADD_ROSPEC_RESPONSE")))
	status := New(Parameter(statusDesc))
	status.Set("StatusCode", int64(0))
	root.AddChild(status)

	ok, err := root.IsSuccess()
	require.NoError(t, err)
	assert.True(t, ok)

	status.Set("StatusCode", int64(1))
	ok, err = root.IsSuccess()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsSuccess_WithoutEnum_FallsBackToZero(t *testing.T) {
	statusDesc := &schema.ParameterDesc{TypeCode: 287, Name: "LLRPStatus", Fields: []*schema.FieldDef{
		{Name: "StatusCode", Type: schema.FieldType{Kind: schema.KindUIntBE, Bits: 16}},
	}}

	root := New(Parameter(leafDesc(1, "ADD_ROSPEC_RESPONSE")))
	status := New(Parameter(statusDesc))
	status.Set("StatusCode", int64(0))
	root.AddChild(status)

	ok, err := root.IsSuccess()
	require.NoError(t, err)
	assert.True(t, ok)

	status.Set("StatusCode", int64(5))
	ok, err = root.IsSuccess()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsSuccess_MissingStatusCodeField(t *testing.T) {
	statusDesc := &schema.ParameterDesc{TypeCode: 287, Name: "LLRPStatus"}
	root := New(Parameter(leafDesc(1, "ADD_ROSPEC_RESPONSE")))
	root.AddChild(New(Parameter(statusDesc)))

	_, err := root.IsSuccess()
	assert.Error(t, err)
}
