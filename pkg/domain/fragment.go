package domain

import (
	"fmt"
	"strings"

	"github.com/aretw0/vmtune/pkg/document"
)

// Selector locates the nodes a part is about. Parent is the element path below the
// document root; the remaining fields filter Parent's element children.
type Selector struct {
	Parent    []string
	Tag       string
	KeyAttr   string
	KeyValue  string
	HasChild  string
	Singleton bool
}

// Matches reports whether n is selected.
func (s Selector) Matches(n *document.Node) bool {
	if n.Type != document.ElementNode || n.Tag != s.Tag {
		return false
	}
	if s.KeyAttr != "" {
		v, ok := n.Attr(s.KeyAttr)
		if !ok || v != s.KeyValue {
			return false
		}
	}
	if s.HasChild != "" && n.Child(s.HasChild) == nil {
		return false
	}
	return true
}

func (s Selector) String() string {
	var b strings.Builder
	for _, p := range s.Parent {
		b.WriteString("/" + p)
	}
	b.WriteString("/" + s.Tag)
	if s.KeyAttr != "" {
		fmt.Fprintf(&b, "[@%s=%q]", s.KeyAttr, s.KeyValue)
	}
	if s.HasChild != "" {
		fmt.Fprintf(&b, "[%s]", s.HasChild)
	}
	return b.String()
}

// Anchor is the fixed insertion rule of a node part: before the first existing
// sibling tagged one of Before, else after the last one tagged one of After, else
// appended as the last child.
type Anchor struct {
	Before []string
	After  []string
}

// NodePart targets one element of a domain descriptor.
type NodePart struct {
	Selector Selector
	Desired  *document.Node
	Policy   MergePolicy
	Anchor   Anchor

	// Parents holds templates for the Selector.Parent elements, used when the
	// parent path does not exist yet. Nil entries fall back to a bare element.
	Parents []*document.Node
	// ParentAnchor places the outermost missing parent below the root.
	ParentAnchor Anchor

	// Ignore lists child tags the daemon assigns on define (address, alias).
	Ignore []string
}

// IgnoreSet returns Ignore as a lookup set.
func (p *NodePart) IgnoreSet() map[string]bool {
	set := make(map[string]bool, len(p.Ignore))
	for _, tag := range p.Ignore {
		set[tag] = true
	}
	return set
}

// TokenPart targets a set of boot parameters. Keys are the parameter names the part
// owns; Tokens are the desired tokens (empty for removals).
type TokenPart struct {
	Keys   []string
	Tokens []string
	Policy MergePolicy
}

// Part is one independently matched piece of a fragment. Exactly one of Node and
// Token is set.
type Part struct {
	Name  string
	Node  *NodePart
	Token *TokenPart
}

// Policy returns the merge policy of the part.
func (p Part) Policy() MergePolicy {
	if p.Node != nil {
		return p.Node.Policy
	}
	return p.Token.Policy
}

// Fragment is a resolved target: what a document must contain (or not) for one
// fragment kind.
type Fragment struct {
	Kind    string
	Action  Action
	DocKind document.Kind
	Parts   []Part
}

func (f *Fragment) String() string {
	names := make([]string, len(f.Parts))
	for i, p := range f.Parts {
		names[i] = p.Name
	}
	return fmt.Sprintf("%s/%s[%s]", f.Kind, f.Action, strings.Join(names, ","))
}
