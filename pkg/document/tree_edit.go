package document

import (
	"fmt"
	"strconv"
	"strings"
)

// PathOf returns the element path of n, e.g. "/domain[1]/devices[1]/shmem[2]".
// Indexes are 1-based and count same-tag element siblings.
func PathOf(n *Node) string {
	var parts []string
	for cur := n; cur != nil; cur = cur.Parent {
		idx := 1
		if cur.Parent != nil {
			for _, sib := range cur.Parent.Elements(cur.Tag) {
				if sib == cur {
					break
				}
				idx++
			}
		}
		parts = append(parts, fmt.Sprintf("%s[%d]", cur.Tag, idx))
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return "/" + strings.Join(parts, "/")
}

// Resolve finds the element addressed by path (as produced by PathOf).
func (t *Tree) Resolve(path string) (*Node, error) {
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(segs) == 0 || segs[0] == "" {
		return nil, fmt.Errorf("empty path")
	}
	root := t.Root()
	if root == nil {
		return nil, fmt.Errorf("tree has no root")
	}
	tag, idx, err := splitSegment(segs[0])
	if err != nil {
		return nil, err
	}
	if root.Tag != tag || idx != 1 {
		return nil, fmt.Errorf("path %s: root is %s", path, root.Tag)
	}
	cur := root
	for _, seg := range segs[1:] {
		tag, idx, err := splitSegment(seg)
		if err != nil {
			return nil, err
		}
		matches := cur.Elements(tag)
		if idx < 1 || idx > len(matches) {
			return nil, fmt.Errorf("path %s: no %s", path, seg)
		}
		cur = matches[idx-1]
	}
	return cur, nil
}

func splitSegment(seg string) (string, int, error) {
	open := strings.IndexByte(seg, '[')
	if open < 0 || !strings.HasSuffix(seg, "]") {
		return seg, 1, nil
	}
	idx, err := strconv.Atoi(seg[open+1 : len(seg)-1])
	if err != nil {
		return "", 0, fmt.Errorf("bad path segment %q: %w", seg, err)
	}
	return seg[:open], idx, nil
}

// InsertChild inserts n as an element child of parent. pos is an index among the
// element children of parent; pos < 0 or pos >= count appends. For parsed parents
// the surrounding whitespace is extended so n lands on its own, indented line.
func InsertChild(parent, n *Node, pos int) {
	n.Parent = parent
	elems := parent.Elements("")
	if parent.Fresh() {
		at := len(parent.Children)
		if pos >= 0 && pos < len(elems) {
			at = indexOf(parent.Children, elems[pos])
		}
		parent.Children = insertAt(parent.Children, at, n)
		return
	}

	indent, step := childIndent(parent)
	n.indent, n.step = indent, step

	if pos >= 0 && pos < len(elems) {
		// <sep><anchor>  ->  <sep><n><sep'><anchor>
		at := indexOf(parent.Children, elems[pos])
		parent.Children = insertAt(parent.Children, at, n, newBlank("\n"+indent))
		return
	}

	at := len(parent.Children)
	if at > 0 && parent.Children[at-1].IsBlank() {
		// <last><closing-ws>  ->  <last><sep><n><closing-ws>
		parent.Children = insertAt(parent.Children, at-1, newBlank("\n"+indent), n)
		return
	}
	parent.Children = insertAt(parent.Children, at, newBlank("\n"+indent), n, newBlank("\n"+nodeIndent(parent)))
}

// Remove detaches n from its parent together with the blank text run in front of
// it, so removal leaves no empty line behind.
func Remove(n *Node) error {
	parent := n.Parent
	if parent == nil {
		return fmt.Errorf("cannot remove root element %s", n.Tag)
	}
	i := indexOf(parent.Children, n)
	if i < 0 {
		return fmt.Errorf("node %s not found in parent %s", n.Tag, parent.Tag)
	}
	from := i
	if i > 0 && parent.Children[i-1].IsBlank() {
		from = i - 1
	}
	parent.Children = append(parent.Children[:from], parent.Children[i+1:]...)
	n.Parent = nil
	return nil
}

func newBlank(s string) *Node {
	return &Node{Type: TextNode, Data: s, raw: s}
}

func insertAt(list []*Node, at int, nodes ...*Node) []*Node {
	out := make([]*Node, 0, len(list)+len(nodes))
	out = append(out, list[:at]...)
	out = append(out, nodes...)
	return append(out, list[at:]...)
}

func indexOf(list []*Node, n *Node) int {
	for i, c := range list {
		if c == n {
			return i
		}
	}
	return -1
}

// childIndent derives the indentation of parent's children from existing blank
// text in front of an element child, falling back to the parent's own indentation
// plus one step.
func childIndent(parent *Node) (indent, step string) {
	own := nodeIndent(parent)
	for i, c := range parent.Children {
		if c.Type != ElementNode || i == 0 || !parent.Children[i-1].IsBlank() {
			continue
		}
		ws := parent.Children[i-1].Data
		if nl := strings.LastIndexByte(ws, '\n'); nl >= 0 {
			indent = ws[nl+1:]
			if strings.HasPrefix(indent, own) && len(indent) > len(own) {
				return indent, indent[len(own):]
			}
			return indent, defaultStep
		}
	}
	return own + defaultStep, defaultStep
}

// nodeIndent returns the indentation of the line n starts on.
func nodeIndent(n *Node) string {
	if n.indent != "" {
		return n.indent
	}
	if n.Parent == nil {
		return ""
	}
	i := indexOf(n.Parent.Children, n)
	if i > 0 && n.Parent.Children[i-1].IsBlank() {
		ws := n.Parent.Children[i-1].Data
		if nl := strings.LastIndexByte(ws, '\n'); nl >= 0 {
			return ws[nl+1:]
		}
	}
	return nodeIndent(n.Parent) + defaultStep
}
