package document

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// NodeType classifies the nodes of a Tree.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
	CommentNode
	ProcInstNode
	DirectiveNode
)

// Attr is a single attribute. Value holds the unescaped value.
type Attr struct {
	Name  string
	Value string
}

// Node is a markup node. Nodes parsed from input keep their raw bytes and are
// written back verbatim; nodes built in memory (fresh) are rendered canonically.
type Node struct {
	Type     NodeType
	Tag      string
	Attrs    []Attr
	Children []*Node
	Parent   *Node

	// Data is the unescaped character data of a text node.
	Data string

	raw       string // leaf bytes, or the element's start tag
	rawEnd    string // element end tag, empty when self-closing
	selfClose bool
	indent    string // line indentation of a fresh node inserted into a parsed parent
	step      string // indentation unit used below a fresh node
}

// Tree is a parsed domain descriptor. Nodes holds the top-level nodes (prolog,
// root element, trailing whitespace) in document order.
type Tree struct {
	Nodes []*Node
}

// Kind implements Document.
func (t *Tree) Kind() Kind { return KindTree }

// Root returns the single top-level element.
func (t *Tree) Root() *Node {
	for _, n := range t.Nodes {
		if n.Type == ElementNode {
			return n
		}
	}
	return nil
}

// ParseTree builds a lossless tree from raw markup. Attribute values may use either
// quote style. Mismatched tags, stray top-level text and multiple roots are errors.
func ParseTree(raw string) (*Tree, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	dec.Strict = true

	tree := &Tree{}
	var stack []*Node
	var prev int64
	roots := 0

	appendNode := func(n *Node) {
		if len(stack) == 0 {
			tree.Nodes = append(tree.Nodes, n)
			return
		}
		parent := stack[len(stack)-1]
		n.Parent = parent
		parent.Children = append(parent.Children, n)
	}

	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Kind: KindTree, Offset: dec.InputOffset(), Msg: "malformed markup", Err: err}
		}
		off := dec.InputOffset()
		chunk := raw[prev:off]
		prev = off

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 0 {
				roots++
				if roots > 1 {
					return nil, &ParseError{Kind: KindTree, Offset: off, Msg: "multiple root elements"}
				}
			}
			n := &Node{Type: ElementNode, Tag: qualified(t.Name), raw: chunk}
			for _, a := range t.Attr {
				n.Attrs = append(n.Attrs, Attr{Name: qualified(a.Name), Value: a.Value})
			}
			appendNode(n)
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, &ParseError{Kind: KindTree, Offset: off, Msg: "unexpected end tag " + qualified(t.Name)}
			}
			top := stack[len(stack)-1]
			if top.Tag != qualified(t.Name) {
				return nil, &ParseError{Kind: KindTree, Offset: off, Msg: fmt.Sprintf("end tag %s does not match %s", qualified(t.Name), top.Tag)}
			}
			// The decoder synthesizes the end of "<a/>" without consuming input.
			if chunk == "" {
				top.selfClose = true
			}
			top.rawEnd = chunk
			stack = stack[:len(stack)-1]
		case xml.CharData:
			n := &Node{Type: TextNode, Data: string(t), raw: chunk}
			if len(stack) == 0 && !n.IsBlank() {
				return nil, &ParseError{Kind: KindTree, Offset: off, Msg: "text outside root element"}
			}
			appendNode(n)
		case xml.Comment:
			appendNode(&Node{Type: CommentNode, Data: string(t), raw: chunk})
		case xml.ProcInst:
			appendNode(&Node{Type: ProcInstNode, Data: t.Target, raw: chunk})
		case xml.Directive:
			appendNode(&Node{Type: DirectiveNode, Data: string(t), raw: chunk})
		}
	}

	if len(stack) > 0 {
		return nil, &ParseError{Kind: KindTree, Offset: prev, Msg: "unclosed element " + stack[len(stack)-1].Tag}
	}
	if roots == 0 {
		return nil, &ParseError{Kind: KindTree, Offset: prev, Msg: "no root element"}
	}
	if int(prev) != len(raw) {
		return nil, &ParseError{Kind: KindTree, Offset: prev, Msg: "trailing input"}
	}
	return tree, nil
}

// ParseElement parses a single element and returns it as a fresh node: raw bytes and
// blank text are dropped so it renders canonically wherever it is inserted.
func ParseElement(raw string) (*Node, error) {
	tree, err := ParseTree(raw)
	if err != nil {
		return nil, err
	}
	root := tree.Root()
	root.Parent = nil
	root.Freshen()
	return root, nil
}

func qualified(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

// NewElement creates a fresh element.
func NewElement(tag string, attrs ...Attr) *Node {
	return &Node{Type: ElementNode, Tag: tag, Attrs: attrs}
}

// NewText creates a fresh text node.
func NewText(data string) *Node {
	return &Node{Type: TextNode, Data: data}
}

// Append adds child as the last child of a fresh element.
func (n *Node) Append(child *Node) *Node {
	child.Parent = n
	n.Children = append(n.Children, child)
	return n
}

// Freshen discards raw bytes below n so the subtree renders canonically.
func (n *Node) Freshen() {
	n.raw, n.rawEnd, n.selfClose, n.indent, n.step = "", "", false, "", ""
	kept := n.Children[:0]
	for _, c := range n.Children {
		if c.Type == TextNode && c.IsBlank() {
			continue
		}
		c.Freshen()
		kept = append(kept, c)
	}
	n.Children = kept
}

// Fresh reports whether n was built in memory rather than parsed.
func (n *Node) Fresh() bool {
	return n.raw == "" && n.Type == ElementNode
}

// IsBlank reports whether n is a whitespace-only text node.
func (n *Node) IsBlank() bool {
	return n.Type == TextNode && strings.TrimSpace(n.Data) == ""
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Elements returns the element children of n, optionally filtered by tag.
func (n *Node) Elements(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Type == ElementNode && (tag == "" || c.Tag == tag) {
			out = append(out, c)
		}
	}
	return out
}

// Child returns the first element child with the given tag.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if c.Type == ElementNode && c.Tag == tag {
			return c
		}
	}
	return nil
}

// Text returns the concatenated, trimmed character data directly below n.
func (n *Node) Text() string {
	var b strings.Builder
	for _, c := range n.Children {
		if c.Type == TextNode {
			b.WriteString(c.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// Clone returns a deep copy of n detached from its parent.
func (n *Node) Clone() *Node {
	cp := *n
	cp.Parent = nil
	cp.Attrs = append([]Attr(nil), n.Attrs...)
	cp.Children = make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		cc := c.Clone()
		cc.Parent = &cp
		cp.Children = append(cp.Children, cc)
	}
	return &cp
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	cp := &Tree{Nodes: make([]*Node, 0, len(t.Nodes))}
	for _, n := range t.Nodes {
		cp.Nodes = append(cp.Nodes, n.Clone())
	}
	return cp
}

// String serializes the tree.
func (t *Tree) String() string {
	var b strings.Builder
	for _, n := range t.Nodes {
		writeNode(&b, n, "", defaultStep)
	}
	return b.String()
}

// String serializes the subtree rooted at n.
func (n *Node) String() string {
	var b strings.Builder
	writeNode(&b, n, n.indent, n.stepOr(defaultStep))
	return b.String()
}

const defaultStep = "  "

func (n *Node) stepOr(def string) string {
	if n.step != "" {
		return n.step
	}
	return def
}

func writeNode(b *strings.Builder, n *Node, indent, step string) {
	if n.Type != ElementNode {
		if n.raw != "" {
			b.WriteString(n.raw)
			return
		}
		writeLeaf(b, n)
		return
	}

	if !n.Fresh() {
		writeParsed(b, n, step)
		return
	}

	if n.indent != "" {
		indent = n.indent
	}
	step = n.stepOr(step)

	elems := 0
	for _, c := range n.Children {
		if c.Type != TextNode {
			elems++
		}
	}
	b.WriteString(startTag(n.Tag, n.Attrs, len(n.Children) == 0))
	if len(n.Children) == 0 {
		return
	}
	if elems == 0 {
		for _, c := range n.Children {
			writeNode(b, c, indent, step)
		}
		b.WriteString("</" + n.Tag + ">")
		return
	}
	for _, c := range n.Children {
		if c.IsBlank() {
			continue
		}
		b.WriteString("\n" + indent + step)
		writeNode(b, c, indent+step, step)
	}
	b.WriteString("\n" + indent + "</" + n.Tag + ">")
}

// writeParsed writes a parsed element verbatim. Only the start tag of an element
// that was self-closing and has since gained children needs regenerating.
func writeParsed(b *strings.Builder, n *Node, step string) {
	if n.selfClose {
		if len(n.Children) == 0 {
			b.WriteString(n.raw)
			return
		}
		b.WriteString(startTag(n.Tag, n.Attrs, false))
		for _, c := range n.Children {
			writeNode(b, c, c.indent, step)
		}
		b.WriteString("</" + n.Tag + ">")
		return
	}
	b.WriteString(n.raw)
	for _, c := range n.Children {
		writeNode(b, c, c.indent, step)
	}
	b.WriteString(n.rawEnd)
}

func writeLeaf(b *strings.Builder, n *Node) {
	switch n.Type {
	case TextNode:
		b.WriteString(escapeText(n.Data))
	case CommentNode:
		b.WriteString("<!--" + n.Data + "-->")
	case ProcInstNode:
		b.WriteString("<?" + n.Data + "?>")
	case DirectiveNode:
		b.WriteString("<!" + n.Data + ">")
	}
}

// startTag renders a canonical start tag with single-quoted attributes.
func startTag(tag string, attrs []Attr, selfClose bool) string {
	var b strings.Builder
	b.WriteString("<" + tag)
	for _, a := range attrs {
		b.WriteString(" " + a.Name + "='" + escapeAttr(a.Value) + "'")
	}
	if selfClose {
		b.WriteString("/>")
	} else {
		b.WriteString(">")
	}
	return b.String()
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "'", "&apos;", "\"", "&quot;", "\n", "&#xA;", "\t", "&#x9;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }
