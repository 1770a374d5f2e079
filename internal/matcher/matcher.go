// Package matcher compares a parsed document against a fragment.
package matcher

import (
	"fmt"

	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
)

// PartReport is the verdict for one part of a fragment.
type PartReport struct {
	Part   domain.Part
	Status domain.Status
	Detail string

	// Node parts. Parent is the deepest existing element of the selector's parent
	// path and Missing the index into Selector.Parent of the first absent element
	// (len(Selector.Parent) when the whole path exists).
	Parent  *document.Node
	Missing int
	Matches []*document.Node

	// Token parts: positions of every token owned by the part, per key.
	Indexes map[string][]int
}

// Report is the verdict for a whole fragment.
type Report struct {
	Status domain.Status
	Parts  []PartReport
}

// Conflicts lists the details of every conflicting part.
func (r *Report) Conflicts() []string {
	var out []string
	for _, p := range r.Parts {
		if p.Status == domain.StatusConflicting {
			out = append(out, p.Detail)
		}
	}
	return out
}

// Match compares doc against every part of frag.
func Match(doc document.Document, frag *domain.Fragment) (*Report, error) {
	if doc.Kind() != frag.DocKind {
		return nil, fmt.Errorf("fragment %s targets %s documents, got %s", frag.Kind, frag.DocKind, doc.Kind())
	}

	report := &Report{Parts: make([]PartReport, 0, len(frag.Parts))}
	for _, part := range frag.Parts {
		pr, err := MatchPart(doc, part)
		if err != nil {
			return nil, err
		}
		report.Parts = append(report.Parts, pr)
	}
	report.Status = aggregate(report.Parts)
	return report, nil
}

// MatchPart compares doc against a single part.
func MatchPart(doc document.Document, part domain.Part) (PartReport, error) {
	switch d := doc.(type) {
	case *document.Tree:
		if part.Node == nil {
			return PartReport{}, fmt.Errorf("part %s has no node selector", part.Name)
		}
		return matchNode(d, part), nil
	case *document.ParamLine:
		if part.Token == nil {
			return PartReport{}, fmt.Errorf("part %s has no token set", part.Name)
		}
		return matchTokens(d, part), nil
	default:
		return PartReport{}, fmt.Errorf("unsupported document %T", doc)
	}
}

func aggregate(parts []PartReport) domain.Status {
	counts := make(map[domain.Status]int)
	for _, p := range parts {
		counts[p.Status]++
	}
	switch {
	case counts[domain.StatusConflicting] > 0:
		return domain.StatusConflicting
	case counts[domain.StatusSatisfied] == len(parts):
		return domain.StatusSatisfied
	case counts[domain.StatusAbsent] == len(parts):
		return domain.StatusAbsent
	default:
		return domain.StatusPartiallyPresent
	}
}

// FindParent walks sel.Parent below the root. It returns the deepest element
// reached, the index of the first missing path element (len(sel.Parent) when the
// full path exists), and an error when a path element is ambiguous.
func FindParent(tree *document.Tree, sel domain.Selector) (*document.Node, int, error) {
	cur := tree.Root()
	for i, tag := range sel.Parent {
		next := cur.Elements(tag)
		switch len(next) {
		case 0:
			return cur, i, nil
		case 1:
			cur = next[0]
		default:
			return nil, i, fmt.Errorf("%d %s elements under %s", len(next), tag, document.PathOf(cur))
		}
	}
	return cur, len(sel.Parent), nil
}

func matchNode(tree *document.Tree, part domain.Part) PartReport {
	np := part.Node
	pr := PartReport{Part: part}

	parent, depth, err := FindParent(tree, np.Selector)
	if err != nil {
		pr.Status, pr.Detail = domain.StatusConflicting, err.Error()
		return pr
	}
	pr.Parent, pr.Missing = parent, depth
	if depth < len(np.Selector.Parent) {
		pr.Status = absentOrSatisfied(np.Policy)
		pr.Detail = fmt.Sprintf("no %s", np.Selector)
		return pr
	}

	for _, c := range parent.Children {
		if np.Selector.Matches(c) {
			pr.Matches = append(pr.Matches, c)
		}
	}

	switch n := len(pr.Matches); {
	case n > 1 && np.Selector.Singleton:
		pr.Status = domain.StatusConflicting
		pr.Detail = fmt.Sprintf("%d nodes match singleton %s", n, np.Selector)
	case n == 0:
		pr.Status = absentOrSatisfied(np.Policy)
		pr.Detail = fmt.Sprintf("no %s", np.Selector)
	case np.Policy == domain.PolicyRemoveIfPresent:
		pr.Status = domain.StatusPartiallyPresent
		pr.Detail = fmt.Sprintf("%s present", np.Selector)
	case np.Policy == domain.PolicyInsertIfAbsent:
		pr.Status = domain.StatusSatisfied
	case n == 1 && document.Equal(pr.Matches[0], np.Desired, np.IgnoreSet()):
		pr.Status = domain.StatusSatisfied
	default:
		pr.Status = domain.StatusPartiallyPresent
		pr.Detail = fmt.Sprintf("%s differs", np.Selector)
	}
	return pr
}

// matchTokens compares parsed tokens only; "isolcpus=2-7" never matches
// "isolcpus=2-70".
func matchTokens(line *document.ParamLine, part domain.Part) PartReport {
	tp := part.Token
	pr := PartReport{Part: part, Indexes: make(map[string][]int, len(tp.Keys))}

	present := 0
	for _, key := range tp.Keys {
		idx := line.IndexesOfKey(key)
		if len(idx) == 0 {
			continue
		}
		pr.Indexes[key] = idx
		present++
		if len(idx) > 1 && pr.Status == "" {
			pr.Status = domain.StatusConflicting
			pr.Detail = fmt.Sprintf("%s appears %d times", key, len(idx))
		}
	}
	if pr.Status == domain.StatusConflicting {
		return pr
	}

	if tp.Policy == domain.PolicyRemoveIfPresent {
		if present == 0 {
			pr.Status = domain.StatusSatisfied
		} else {
			pr.Status = domain.StatusPartiallyPresent
			pr.Detail = fmt.Sprintf("%d of %v present", present, tp.Keys)
		}
		return pr
	}

	exact := 0
	for _, want := range tp.Tokens {
		key := document.Token{Text: want}.Key()
		if idx, ok := pr.Indexes[key]; ok && line.Tokens[idx[0]].Text == want {
			exact++
		}
	}
	switch {
	case exact == len(tp.Tokens):
		pr.Status = domain.StatusSatisfied
	case present == 0:
		pr.Status = domain.StatusAbsent
		pr.Detail = fmt.Sprintf("none of %v present", tp.Keys)
	case tp.Policy == domain.PolicyInsertIfAbsent:
		pr.Status = domain.StatusSatisfied
	default:
		pr.Status = domain.StatusPartiallyPresent
		pr.Detail = fmt.Sprintf("%d of %d tokens match", exact, len(tp.Tokens))
	}
	return pr
}

func absentOrSatisfied(p domain.MergePolicy) domain.Status {
	if p == domain.PolicyRemoveIfPresent {
		return domain.StatusSatisfied
	}
	return domain.StatusAbsent
}
