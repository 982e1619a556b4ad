package project

import (
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"

	"github.com/agentic-research/grove/api"
)

type hclNode struct {
	Label      string         `hcl:"name,label"`
	ClassName  string         `hcl:"class_name,optional"`
	Path       string         `hcl:"path,optional"`
	Ignore     bool           `hcl:"ignore_unknown_instances,optional"`
	Properties hcl.Expression `hcl:"properties,optional"`
	Children   []*hclNode     `hcl:"node,block"`
}

// hclTree is the root block, which carries no label.
type hclTree struct {
	ClassName  string         `hcl:"class_name,optional"`
	Path       string         `hcl:"path,optional"`
	Ignore     bool           `hcl:"ignore_unknown_instances,optional"`
	Properties hcl.Expression `hcl:"properties,optional"`
	Children   []*hclNode     `hcl:"node,block"`
}

type hclRoot struct {
	Name string   `hcl:"name,optional"`
	Tree *hclTree `hcl:"tree,block"`
}

func loadHCL(filename string, data []byte) (*api.Project, error) {
	var root hclRoot
	if err := hclsimple.Decode(filename, data, nil, &root); err != nil {
		return nil, err
	}
	proj := &api.Project{Name: root.Name}
	if root.Tree == nil {
		return proj, nil
	}

	tree := &api.ProjectNode{
		ClassName:              root.Tree.ClassName,
		Path:                   root.Tree.Path,
		IgnoreUnknownInstances: root.Tree.Ignore,
	}
	props, err := hclProperties(root.Tree.Properties)
	if err != nil {
		return nil, err
	}
	tree.Properties = props
	if tree.Children, err = hclChildren(root.Tree.Children); err != nil {
		return nil, err
	}
	proj.Tree = tree
	return proj, nil
}

func hclChildren(blocks []*hclNode) (map[string]*api.ProjectNode, error) {
	if len(blocks) == 0 {
		return nil, nil
	}
	out := make(map[string]*api.ProjectNode, len(blocks))
	for _, b := range blocks {
		if _, dup := out[b.Label]; dup {
			return nil, fmt.Errorf("duplicate node %q", b.Label)
		}
		node := &api.ProjectNode{
			ClassName:              b.ClassName,
			Path:                   b.Path,
			IgnoreUnknownInstances: b.Ignore,
		}
		props, err := hclProperties(b.Properties)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", b.Label, err)
		}
		node.Properties = props
		if node.Children, err = hclChildren(b.Children); err != nil {
			return nil, fmt.Errorf("node %q: %w", b.Label, err)
		}
		out[b.Label] = node
	}
	return out, nil
}

func hclProperties(expr hcl.Expression) (map[string]any, error) {
	if expr == nil {
		return nil, nil
	}
	v, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, diags
	}
	if v.IsNull() {
		return nil, nil
	}
	if !v.Type().IsObjectType() && !v.Type().IsMapType() {
		return nil, fmt.Errorf("properties must be an object, got %s", v.Type().FriendlyName())
	}
	raw, err := ctyToAny(v)
	if err != nil {
		return nil, err
	}
	return raw.(map[string]any), nil
}

// ctyToAny converts a cty value into the same plain shapes the JSON and
// YAML decoders produce.
func ctyToAny(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, fmt.Errorf("value is not known")
	}
	t := v.Type()
	switch {
	case t == cty.String:
		return v.AsString(), nil
	case t == cty.Bool:
		return v.True(), nil
	case t == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case t.IsObjectType() || t.IsMapType():
		out := make(map[string]any, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			conv, err := ctyToAny(ev)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = conv
		}
		return out, nil
	case t.IsTupleType() || t.IsListType() || t.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			conv, err := ctyToAny(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, conv)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported value type %s", t.FriendlyName())
}
