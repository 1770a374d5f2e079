// Package planner computes the edits that take a document from its matched state
// to Satisfied.
package planner

import (
	"fmt"
	"strings"

	"github.com/aretw0/vmtune/internal/matcher"
	"github.com/aretw0/vmtune/pkg/document"
	"github.com/aretw0/vmtune/pkg/domain"
)

// Options tune planning.
type Options struct {
	// ResolveConflicts allows the RemoveAll-then-Insert plan for parts whose
	// singleton selector matched more than once. It is never chosen implicitly.
	ResolveConflicts bool
}

// Plan returns the edits needed to bring doc to Satisfied for frag. status is the
// aggregate verdict of the matcher on doc. doc itself is not modified: parts are
// planned one after another against a private copy so later parts see the effect
// of earlier ones and every path stays valid when the plan is replayed with Apply.
func Plan(doc document.Document, frag *domain.Fragment, status domain.Status, opts Options) ([]Edit, error) {
	if status == domain.StatusSatisfied {
		return nil, nil
	}
	if status == domain.StatusConflicting && !opts.ResolveConflicts {
		report, err := matcher.Match(doc, frag)
		if err != nil {
			return nil, err
		}
		return nil, domain.Errorf(domain.CodeConflictingState, "%w: %s", domain.ErrConflict, strings.Join(report.Conflicts(), "; "))
	}

	work, err := clone(doc)
	if err != nil {
		return nil, err
	}

	var plan []Edit
	for _, part := range frag.Parts {
		pr, err := matcher.MatchPart(work, part)
		if err != nil {
			return nil, err
		}
		if pr.Status == domain.StatusSatisfied {
			continue
		}

		var edits []Edit
		switch d := work.(type) {
		case *document.Tree:
			edits, err = planNode(d, pr)
		case *document.ParamLine:
			edits = planTokens(d, pr)
		}
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", part.Name, err)
		}
		plan = append(plan, edits...)
	}
	return plan, nil
}

func clone(doc document.Document) (document.Document, error) {
	switch d := doc.(type) {
	case *document.Tree:
		return d.Clone(), nil
	case *document.ParamLine:
		return d.Clone(), nil
	default:
		return nil, fmt.Errorf("unsupported document %T", doc)
	}
}

// planNode emits the edits for one node part and applies each of them to tree as
// it goes, so the next path is computed against the updated copy.
func planNode(tree *document.Tree, pr matcher.PartReport) ([]Edit, error) {
	np := pr.Part.Node
	var edits []Edit
	emit := func(e Edit) error {
		if err := applyNode(tree, e); err != nil {
			return err
		}
		edits = append(edits, e)
		return nil
	}

	if pr.Parent == nil {
		// Ambiguous parent path: nothing can be removed safely.
		return nil, domain.Errorf(domain.CodeConflictingState, "%w: %s", domain.ErrConflict, pr.Detail)
	}

	// 1. Missing parent path: insert the chain of parents around the desired node.
	if pr.Missing < len(np.Selector.Parent) {
		if np.Policy == domain.PolicyRemoveIfPresent {
			return nil, nil
		}
		top := parentChain(np, pr.Missing)
		err := emit(Edit{Op: OpInsertNode, Path: document.PathOf(pr.Parent), Pos: anchorPos(pr.Parent, np.ParentAnchor), Node: top})
		return edits, err
	}

	// 2. Existing matches: remove them, remembering where the first one was.
	pos := -1
	if pr.Status == domain.StatusConflicting || pr.Status == domain.StatusPartiallyPresent {
		for i, m := range pr.Matches {
			if i == 0 {
				pos = elementIndex(pr.Parent, m)
			}
			if err := emit(Edit{Op: OpRemoveNode, Path: document.PathOf(m)}); err != nil {
				return nil, err
			}
		}
	}
	if np.Policy == domain.PolicyRemoveIfPresent {
		return edits, nil
	}

	// 3. Insert the desired node, in place of a replaced one or at the anchor.
	if pos < 0 {
		pos = anchorPos(pr.Parent, np.Anchor)
	}
	err := emit(Edit{Op: OpInsertNode, Path: document.PathOf(pr.Parent), Pos: pos, Node: np.Desired.Clone()})
	return edits, err
}

// parentChain nests the desired node inside fresh copies of the missing parents
// starting at Selector.Parent[from], and returns the outermost one.
func parentChain(np *domain.NodePart, from int) *document.Node {
	node := np.Desired.Clone()
	for i := len(np.Selector.Parent) - 1; i >= from; i-- {
		var parent *document.Node
		if i < len(np.Parents) && np.Parents[i] != nil {
			parent = np.Parents[i].Clone()
		} else {
			parent = document.NewElement(np.Selector.Parent[i])
		}
		node = parent.Append(node)
	}
	return node
}

// anchorPos resolves an anchor rule to an element index of parent, -1 to append.
func anchorPos(parent *document.Node, a domain.Anchor) int {
	elems := parent.Elements("")
	for i, el := range elems {
		if contains(a.Before, el.Tag) {
			return i
		}
	}
	for i := len(elems) - 1; i >= 0; i-- {
		if contains(a.After, elems[i].Tag) {
			return i + 1
		}
	}
	return -1
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// planTokens emits the edits for one token part. Tokens already present with the
// desired value stay where they are; changed values are replaced in place and
// missing tokens are appended.
func planTokens(line *document.ParamLine, pr matcher.PartReport) []Edit {
	tp := pr.Part.Token
	var edits []Edit
	emit := func(e Edit) {
		// Edits are built from the current token list and cannot fail.
		_ = applyToken(line, e)
		edits = append(edits, e)
	}

	if pr.Status == domain.StatusConflicting || tp.Policy == domain.PolicyRemoveIfPresent {
		var old []string
		pos := -1
		for _, key := range tp.Keys {
			for _, i := range pr.Indexes[key] {
				old = append(old, line.Tokens[i].Text)
				if pos < 0 || i < pos {
					pos = i
				}
			}
		}
		if len(old) > 0 {
			emit(Edit{Op: OpRemoveTokenRun, Old: old})
		}
		if tp.Policy != domain.PolicyRemoveIfPresent && len(tp.Tokens) > 0 {
			emit(Edit{Op: OpInsertToken, Pos: pos, New: tp.Tokens})
		}
		return edits
	}

	var missing []string
	for _, want := range tp.Tokens {
		key := document.Token{Text: want}.Key()
		idx, ok := pr.Indexes[key]
		switch {
		case !ok:
			missing = append(missing, want)
		case line.Tokens[idx[0]].Text != want:
			emit(Edit{Op: OpReplaceTokenRun, Old: []string{line.Tokens[idx[0]].Text}, New: []string{want}})
		}
	}
	if len(missing) > 0 {
		emit(Edit{Op: OpInsertToken, Pos: -1, New: missing})
	}
	return edits
}
