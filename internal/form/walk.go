package form

// Descendants walks root's subtree depth-first in pre-order and returns every
// node accepted by keep. The root itself is not visited.
func Descendants(root Node, keep func(Node) bool) []Node {
	if root == nil {
		return nil
	}
	var out []Node
	var walk func(n Node)
	walk = func(n Node) {
		for _, ch := range n.Children() {
			if keep(ch) {
				out = append(out, ch)
			}
			walk(ch)
		}
	}
	walk(root)
	return out
}

// Panels returns every panel below root.
func Panels(root Node) []Panel {
	var panels []Panel
	for _, n := range Descendants(root, func(n Node) bool { return n.Kind() == KindPanel }) {
		if p, ok := n.(Panel); ok {
			panels = append(panels, p)
		}
	}
	return panels
}

// OptionLists returns every drop-down below root.
func OptionLists(root Node) []OptionList {
	var lists []OptionList
	for _, n := range Descendants(root, func(n Node) bool { return n.Kind() == KindDropDown }) {
		if l, ok := n.(OptionList); ok {
			lists = append(lists, l)
		}
	}
	return lists
}
