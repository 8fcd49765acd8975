// Package registry resolves schema-loaded descriptors and enumeration values
// at runtime: the Enumeration Registry (spec §4.3) and the Type Registry
// (spec §4.4), both read-only after Schema Loader construction (spec §5).
package registry

import (
	"fmt"

	"github.com/kulaginds/llrp/internal/llrp/schema"
)

// Registry wraps the immutable descriptor tables produced by schema.Build
// with the lookup operations the rest of the codec needs.
type Registry struct {
	tables *schema.Tables
}

// New wraps tables in a Registry.
func New(tables *schema.Tables) *Registry {
	return &Registry{tables: tables}
}

// Tables exposes the underlying descriptor tables for components (schema
// loader adjustments, typed constructors) that need direct access.
func (r *Registry) Tables() *schema.Tables { return r.tables }

// LookupParameter resolves a bare parameter type code to its descriptor.
func (r *Registry) LookupParameter(typeCode int) (*schema.ParameterDesc, bool) {
	d, ok := r.tables.Parameters[typeCode]
	return d, ok
}

// LookupCustomParameter resolves a (VendorIdentifier, Subtype) pair to its
// vendor-specific parameter descriptor, or false if none is registered.
func (r *Registry) LookupCustomParameter(vendorID, subtype uint32) (*schema.ParameterDesc, bool) {
	d, ok := r.tables.ParameterVariants[schema.VendorKey{VendorID: vendorID, Subtype: subtype}]
	return d, ok
}

// LookupParameterByName resolves a parameter's suffixed class name (e.g. "ROSpec_Parameter").
func (r *Registry) LookupParameterByName(className string) (*schema.ParameterDesc, bool) {
	d, ok := r.tables.ParametersByName[className]
	return d, ok
}

// LookupMessage resolves a bare message type code to its descriptor.
func (r *Registry) LookupMessage(typeCode int) (*schema.MessageDesc, bool) {
	d, ok := r.tables.Messages[typeCode]
	return d, ok
}

// LookupCustomMessage resolves a (VendorIdentifier, Subtype) pair to its
// vendor-specific message descriptor, or false if none is registered.
func (r *Registry) LookupCustomMessage(vendorID, subtype uint32) (*schema.MessageDesc, bool) {
	d, ok := r.tables.MessageVariants[schema.VendorKey{VendorID: vendorID, Subtype: subtype}]
	return d, ok
}

// LookupMessageByName resolves a message's suffixed class name (e.g. "ADD_ROSPEC_Message").
func (r *Registry) LookupMessageByName(className string) (*schema.MessageDesc, bool) {
	d, ok := r.tables.MessagesByName[className]
	return d, ok
}

// ChoiceMembers returns the set of parameter class names belonging to the
// named choice group, or nil if groupName is not a choice group.
func (r *Registry) ChoiceMembers(groupName string) map[string]bool {
	return r.tables.Choices[groupName]
}

// VendorName reverse-looks-up a vendor code to its declared name, falling
// back to the decimal code (matching pyllrp's getVendorName).
func (r *Registry) VendorName(code uint32) string {
	for name, c := range r.tables.Vendors {
		if c == code {
			return name
		}
	}
	return fmt.Sprintf("%d", code)
}
