package transform

import "bloom/internal/ir"

// cloneRegionTree deep-clones src and every descendant region into a
// fresh tree rooted at parent (nil for an independent root, as a
// function body is), recording old->new for every node including each
// region's ENTRY sentinel. It does not wire operand edges; call
// wireClonedRegionTree with the same src/mapping afterward, once every
// node in the tree has a mapping entry — operands can point forward to
// a node not yet cloned during a single-pass walk (e.g. a loop header's
// branch target), so cloning and wiring are kept as two passes.
func cloneRegionTree(ctx *ir.Context, m *ir.Module, src *ir.Region, parent *ir.Region, mapping map[*ir.Node]*ir.Node) *ir.Region {
	var newRegion *ir.Region
	if parent == nil {
		newRegion = ctx.NewRootRegion(m, src.Name())
	} else {
		newRegion = parent.NewChild(src.Name())
	}
	mapping[src.Entry()] = newRegion.Entry()

	for _, n := range src.Nodes()[1:] {
		clone := ctx.NewNode(n.Kind())
		clone.SetType(n.Type())
		clone.SetProperties(n.Properties())
		if data, ok := n.Data(); ok {
			clone.SetData(data)
		}
		if name, ok := n.Name(ctx); ok {
			clone.SetName(ctx, name)
		}
		if n.Kind() == ir.KindParam {
			clone.SetParamIndex(n.ParamIndex())
		}
		newRegion.Append(clone)
		mapping[n] = clone
	}

	for _, child := range src.Children() {
		cloneRegionTree(ctx, m, child, newRegion, mapping)
	}
	return newRegion
}

// wireClonedRegionTree fills in operand edges for every node cloned
// from src (and its descendants) using mapping. An input node outside
// the cloned subtree (a value from an enclosing scope the clone still
// legitimately reads) is kept as-is rather than remapped.
func wireClonedRegionTree(src *ir.Region, mapping map[*ir.Node]*ir.Node) {
	for _, n := range src.Nodes()[1:] {
		clone := mapping[n]
		for _, in := range n.Inputs() {
			if in == nil {
				clone.AppendInput(nil)
				continue
			}
			if mapped, ok := mapping[in]; ok {
				clone.AppendInput(mapped)
			} else {
				clone.AppendInput(in)
			}
		}
	}
	for _, child := range src.Children() {
		wireClonedRegionTree(child, mapping)
	}
}
