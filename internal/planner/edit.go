package planner

import (
	"fmt"
	"strings"

	"github.com/aretw0/vmtune/pkg/document"
)

// Op is an edit operation.
type Op string

const (
	OpInsertNode      Op = "InsertNode"
	OpReplaceNode     Op = "ReplaceNode"
	OpRemoveNode      Op = "RemoveNode"
	OpInsertToken     Op = "InsertToken"
	OpReplaceTokenRun Op = "ReplaceTokenRun"
	OpRemoveTokenRun  Op = "RemoveTokenRun"
)

// Edit is one step of a plan. Paths are element paths as produced by
// document.PathOf and are valid against the document after every earlier edit of
// the same plan has been applied.
//
//   - InsertNode: Path is the parent, Pos the element index to insert at (-1 appends).
//   - ReplaceNode, RemoveNode: Path is the node itself.
//   - InsertToken: Pos is the token index (-1 appends), New the tokens.
//   - ReplaceTokenRun: Old replaced by New at the position of the first old token.
//   - RemoveTokenRun: Old removed.
type Edit struct {
	Op   Op
	Path string
	Pos  int
	Node *document.Node
	Old  []string
	New  []string
}

func (e Edit) String() string {
	switch e.Op {
	case OpInsertNode:
		return fmt.Sprintf("%s %s @%d <%s>", e.Op, e.Path, e.Pos, e.Node.Tag)
	case OpReplaceNode:
		return fmt.Sprintf("%s %s <%s>", e.Op, e.Path, e.Node.Tag)
	case OpRemoveNode:
		return fmt.Sprintf("%s %s", e.Op, e.Path)
	case OpInsertToken:
		return fmt.Sprintf("%s @%d %s", e.Op, e.Pos, strings.Join(e.New, " "))
	case OpReplaceTokenRun:
		return fmt.Sprintf("%s %s -> %s", e.Op, strings.Join(e.Old, " "), strings.Join(e.New, " "))
	default:
		return fmt.Sprintf("%s %s", e.Op, strings.Join(e.Old, " "))
	}
}

// Apply replays edits on doc in order. Inserted nodes are cloned, so a plan can be
// applied to several copies of the same document.
func Apply(doc document.Document, edits []Edit) error {
	for i, e := range edits {
		var err error
		switch d := doc.(type) {
		case *document.Tree:
			err = applyNode(d, e)
		case *document.ParamLine:
			err = applyToken(d, e)
		default:
			err = fmt.Errorf("unsupported document %T", doc)
		}
		if err != nil {
			return fmt.Errorf("edit %d (%s): %w", i, e, err)
		}
	}
	return nil
}

func applyNode(tree *document.Tree, e Edit) error {
	switch e.Op {
	case OpInsertNode:
		parent, err := tree.Resolve(e.Path)
		if err != nil {
			return err
		}
		document.InsertChild(parent, e.Node.Clone(), e.Pos)
		return nil
	case OpReplaceNode:
		n, err := tree.Resolve(e.Path)
		if err != nil {
			return err
		}
		parent := n.Parent
		if parent == nil {
			return fmt.Errorf("cannot replace root element")
		}
		pos := elementIndex(parent, n)
		if err := document.Remove(n); err != nil {
			return err
		}
		document.InsertChild(parent, e.Node.Clone(), pos)
		return nil
	case OpRemoveNode:
		n, err := tree.Resolve(e.Path)
		if err != nil {
			return err
		}
		return document.Remove(n)
	default:
		return fmt.Errorf("%s does not apply to a domain descriptor", e.Op)
	}
}

func applyToken(line *document.ParamLine, e Edit) error {
	switch e.Op {
	case OpInsertToken:
		line.InsertTokens(e.Pos, e.New...)
		return nil
	case OpReplaceTokenRun:
		return line.ReplaceTokens(e.Old, e.New)
	case OpRemoveTokenRun:
		_, err := line.RemoveTokens(e.Old...)
		return err
	default:
		return fmt.Errorf("%s does not apply to a boot parameter line", e.Op)
	}
}

func elementIndex(parent, n *document.Node) int {
	for i, el := range parent.Elements("") {
		if el == n {
			return i
		}
	}
	return -1
}
