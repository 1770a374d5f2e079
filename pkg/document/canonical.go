package document

import (
	"sort"
	"strings"
)

// Canonical renders n in a form where attribute order, sibling order, quoting and
// inter-element whitespace do not matter. Child elements whose tag is in ignore are
// skipped (daemon-assigned content such as device addresses).
func Canonical(n *Node, ignore map[string]bool) string {
	var b strings.Builder
	writeCanonical(&b, n, ignore)
	return b.String()
}

func writeCanonical(b *strings.Builder, n *Node, ignore map[string]bool) {
	b.WriteString("<" + n.Tag)

	attrs := append([]Attr(nil), n.Attrs...)
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	for _, a := range attrs {
		b.WriteString(" " + a.Name + "=" + escapeAttr(a.Value))
	}
	b.WriteString(">")

	var kids []string
	for _, c := range n.Children {
		if c.Type != ElementNode || ignore[c.Tag] {
			continue
		}
		kids = append(kids, Canonical(c, ignore))
	}
	sort.Strings(kids)
	for _, k := range kids {
		b.WriteString(k)
	}
	b.WriteString(escapeText(n.Text()))
	b.WriteString("</" + n.Tag + ">")
}

// Equal reports whether a and b carry the same content under Canonical.
func Equal(a, b *Node, ignore map[string]bool) bool {
	return Canonical(a, ignore) == Canonical(b, ignore)
}
