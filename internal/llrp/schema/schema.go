// Package schema loads the normalized LLRP protocol description (spec §6.1)
// from YAML and builds the immutable descriptor tables the rest of the codec
// runs against.
package schema

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kulaginds/llrp/internal/llrp/llrperr"
)

// CustomTypeCode is the reserved parameter/message type code that carries a
// (VendorIdentifier, Subtype) dispatch pair.
const CustomTypeCode = 1023

func schemaErr(context, format string, args ...any) error {
	return llrperr.NewSchemaError(context, format, args...)
}

// Document is the YAML-decoded, pre-normalization shape of §6.1's schema record.
type Document struct {
	Enums             []EnumRecord      `yaml:"enums"`
	Parameters        []TypeRecord      `yaml:"parameters"`
	Messages          []TypeRecord      `yaml:"messages"`
	ChoiceDefinitions map[string]string `yaml:"choiceDefinitions"`
	Vendors           map[string]uint32 `yaml:"vendors"`
}

// EnumRecord is one `enums` entry: a name and its ordered (value, name) choices.
type EnumRecord struct {
	Name    string   `yaml:"name"`
	Choices [][2]any `yaml:"choices"`
}

// FieldRecord is one field entry within a parameter or message record.
type FieldRecord struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Enumeration string `yaml:"enumeration,omitempty"`
	Format      string `yaml:"format,omitempty"`
	Default     *int64 `yaml:"default,omitempty"`
}

// ChildRecord is one entry within a parameter/message's `parameters` list.
type ChildRecord struct {
	Parameter string `yaml:"parameter"`
	Repeat    [2]int `yaml:"repeat"`
}

// TypeRecord is the shared shape of a `parameters` or `messages` entry.
type TypeRecord struct {
	TypeNum    int           `yaml:"typeNum"`
	Name       string        `yaml:"name"`
	Fields     []FieldRecord `yaml:"fields,omitempty"`
	Parameters []ChildRecord `yaml:"parameters,omitempty"`
}

// Load decodes a YAML schema document from r.
func Load(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, schemaErr("document", "invalid YAML: %v", err)
	}
	return &doc, nil
}

// parseEnumValue accepts either a YAML int or string scalar for an enum value,
// since hand-authored schema YAML commonly writes both.
func parseEnumValue(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, err
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported enum value type %T", v)
	}
}
