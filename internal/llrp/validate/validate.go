// Package validate implements the Validator (spec §4.7): depth-first field
// validation plus child cardinality and ordering checks, run automatically
// at the start of every pack.
package validate

import (
	"github.com/kulaginds/llrp/internal/llrp/instance"
	"github.com/kulaginds/llrp/internal/llrp/llrperr"
	"github.com/kulaginds/llrp/internal/llrp/registry"
	"github.com/kulaginds/llrp/internal/llrp/schema"
	"github.com/kulaginds/llrp/internal/llrp/wire"
)

// Instance validates inst and its full descendant tree against reg,
// returning the first violation found in depth-first order.
func Instance(reg *registry.Registry, inst *instance.Instance) error {
	return validateNode(reg, inst, inst.ClassName())
}

func validateNode(reg *registry.Registry, n *instance.Instance, path string) error {
	fields := n.Desc.FieldList()
	for _, f := range fields {
		if f.Type.Kind == schema.KindSkip {
			continue
		}
		fieldPath := path + "." + f.Name
		v := n.Get(f.Name)
		if err := wire.Validate(fieldPath, f, v); err != nil {
			return err
		}
		if f.Name == "ChannelIndex" {
			iv, ok := v.(int64)
			if ok && iv < 1 {
				return llrperr.NewValidationError(fieldPath, "ChannelIndex is 1-based; got %d", iv)
			}
		}
	}

	if err := validateChildren(reg, n, path); err != nil {
		return err
	}

	for _, c := range n.Children {
		if err := validateNode(reg, c, path+"."+c.ClassName()); err != nil {
			return err
		}
	}
	return nil
}

// validateChildren enforces spec §4.7's cardinality/ordering rule: first each
// child's sequence index (the position of the first ChildSpec it matches)
// must be non-decreasing, then two cursors are walked over the declared
// ChildSpec list and the instance's actual children.
func validateChildren(reg *registry.Registry, n *instance.Instance, path string) error {
	specs := n.Desc.ChildList()
	children := n.Children

	if specs == nil {
		if len(children) > 0 {
			return llrperr.NewValidationError(path, "parameter declares no children but %d were supplied", len(children))
		}
		return nil
	}

	prevSeq := 0
	for i, child := range children {
		seq := len(specs)
		for si, spec := range specs {
			if matchesRef(reg, child, spec.RefName) {
				seq = si
				break
			}
		}
		if seq < prevSeq {
			return llrperr.NewValidationError(path, "incorrect parameter sequence: unexpected %q at position %d", child.ClassName(), i)
		}
		prevSeq = seq
	}

	ci := 0
	for _, spec := range specs {
		k := 0
		for ci < len(children) && matchesRef(reg, children[ci], spec.RefName) {
			ci++
			k++
		}
		if k < spec.Min {
			return llrperr.NewValidationError(path, "expected at least %d of %q, got %d", spec.Min, spec.RefName, k)
		}
		if spec.Max >= 0 && k > spec.Max {
			return llrperr.NewValidationError(path, "expected at most %d of %q, got %d", spec.Max, spec.RefName, k)
		}
	}

	if ci < len(children) {
		return llrperr.NewValidationError(path, "incorrect parameter sequence: unexpected %q at position %d", children[ci].ClassName(), ci)
	}

	return nil
}

// matchesRef reports whether child's class name satisfies refName, either
// directly or through refName naming a choice group child belongs to.
func matchesRef(reg *registry.Registry, child *instance.Instance, refName string) bool {
	name := child.ClassName()
	if name == refName {
		return true
	}
	members := reg.ChoiceMembers(refName)
	if members == nil {
		return false
	}
	return members[name]
}
