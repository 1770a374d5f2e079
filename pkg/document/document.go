// Package document implements lossless models of the two document kinds vmtune edits:
// the boot parameter line (ParamLine) and the domain descriptor markup tree (Tree).
//
// Both models guarantee that serializing an unmodified parse reproduces the input
// byte for byte. Edits only touch the nodes or tokens they name.
package document

import (
	"fmt"
)

// Kind identifies which document model a target speaks.
type Kind string

const (
	KindParamLine Kind = "paramline"
	KindTree      Kind = "domain"
)

// Document is a parsed, mutable configuration document.
type Document interface {
	Kind() Kind
	String() string
}

// ParseError reports input that cannot be modeled safely.
type ParseError struct {
	Kind   Kind
	Offset int64
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s at offset %d: %s", e.Kind, e.Offset, e.Msg)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse dispatches to the parser for kind. key names the assignment holding the
// boot parameters and is ignored for trees.
func Parse(kind Kind, raw, key string) (Document, error) {
	switch kind {
	case KindParamLine:
		return ParseParamLine(raw, key)
	case KindTree:
		return ParseTree(raw)
	default:
		return nil, &ParseError{Kind: kind, Msg: "unsupported document kind"}
	}
}
