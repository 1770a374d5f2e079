package document

import (
	"fmt"
	"strings"
)

// Token is one whitespace-delimited boot parameter. Sep is the whitespace run in
// front of it; the first token never carries one (see ParamLine.lead).
type Token struct {
	Sep  string
	Text string
}

// Key returns the part of the token before the first '='.
func (t Token) Key() string {
	k, _, _ := SplitToken(t.Text)
	return k
}

// Value returns the part of the token after the first '='.
func (t Token) Value() string {
	_, v, _ := SplitToken(t.Text)
	return v
}

// SplitToken splits "key=value". ok is false for bare flags such as "quiet".
func SplitToken(text string) (key, value string, ok bool) {
	return strings.Cut(text, "=")
}

// ParamLine is a boot parameter file reduced to the one assignment vmtune edits,
// e.g. GRUB_CMDLINE_LINUX_DEFAULT="quiet splash". Everything around the value is
// kept verbatim.
type ParamLine struct {
	Key    string
	Tokens []Token

	head  string // file text up to the opening quote
	quote string // `"`, `'` or empty for an unquoted value
	lead  string // whitespace between the opening quote and the first token
	trail string // whitespace between the last token and the closing quote
	tail  string // closing quote onward
}

// Kind implements Document.
func (p *ParamLine) Kind() Kind { return KindParamLine }

// ParseParamLine locates the single uncommented assignment of key in raw and
// tokenizes its value. A missing or repeated assignment is a ParseError: there is
// no safe way to decide which line the bootloader generator will honor.
func ParseParamLine(raw, key string) (*ParamLine, error) {
	if key == "" {
		return nil, &ParseError{Kind: KindParamLine, Msg: "empty assignment key"}
	}

	start := -1
	offset := 0
	for _, line := range strings.SplitAfter(raw, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		trimmed = strings.TrimPrefix(trimmed, "export ")
		if strings.HasPrefix(trimmed, key+"=") {
			if start >= 0 {
				return nil, &ParseError{Kind: KindParamLine, Offset: int64(offset), Msg: "duplicate assignment of " + key}
			}
			start = offset + (len(line) - len(trimmed)) + len(key) + 1
		}
		offset += len(line)
	}
	if start < 0 {
		return nil, &ParseError{Kind: KindParamLine, Msg: "no assignment of " + key}
	}

	p := &ParamLine{Key: key}
	end := strings.IndexByte(raw[start:], '\n')
	if end < 0 {
		end = len(raw)
	} else {
		end += start
	}

	var value string
	switch q := raw[start:min(start+1, len(raw))]; q {
	case `"`, `'`:
		closing := closingQuote(raw[start+1:end], q[0])
		if closing < 0 {
			return nil, &ParseError{Kind: KindParamLine, Offset: int64(start), Msg: "unterminated quote in " + key}
		}
		p.quote = q
		p.head = raw[:start]
		value = raw[start+1 : start+1+closing]
		p.tail = raw[start+1+closing:]
	default:
		stop := strings.IndexAny(raw[start:end], " \t#")
		if stop < 0 {
			stop = end - start
		}
		p.head = raw[:start]
		value = raw[start : start+stop]
		p.tail = raw[start+stop:]
		// The value gains double quotes once it holds more than one token.
		if strings.ContainsAny(value, `"'\`) {
			return nil, &ParseError{Kind: KindParamLine, Offset: int64(start), Msg: "quote or escape in unquoted value of " + key}
		}
	}

	if err := p.tokenize(value); err != nil {
		return nil, &ParseError{Kind: KindParamLine, Offset: int64(start), Msg: err.Error() + " in " + key}
	}
	return p, nil
}

// closingQuote returns the index of the quote byte q that ends s. Inside double
// quotes a backslash escapes the next byte, as in the shell.
func closingQuote(s string, q byte) int {
	for i := 0; i < len(s); i++ {
		switch {
		case q == '"' && s[i] == '\\':
			i++
		case s[i] == q:
			return i
		}
	}
	return -1
}

// tokenize splits value on whitespace outside kernel quotes, so
// acpi_osi=\"Windows 2015\" stays one token. In a double-quoted assignment the
// kernel quote is written \"; elsewhere it is a bare ".
func (p *ParamLine) tokenize(value string) error {
	i := 0
	for i < len(value) && isSpace(value[i]) {
		i++
	}
	p.lead = value[:i]
	sep := ""
	for i < len(value) {
		j := i
		quoted := false
		for j < len(value) && (quoted || !isSpace(value[j])) {
			switch {
			case p.quote == `"` && value[j] == '\\':
				if j+1 < len(value) && value[j+1] == '"' {
					quoted = !quoted
				}
				j++
			case p.quote != `"` && value[j] == '"':
				quoted = !quoted
			}
			j++
		}
		if quoted || j > len(value) {
			return fmt.Errorf("unbalanced parameter quote")
		}
		p.Tokens = append(p.Tokens, Token{Sep: sep, Text: value[i:j]})
		k := j
		for k < len(value) && isSpace(value[k]) {
			k++
		}
		sep = value[j:k]
		i = k
	}
	p.trail = sep
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

// String serializes the whole file.
func (p *ParamLine) String() string {
	var b strings.Builder
	b.WriteString(p.head)
	q := p.quote
	if q == "" && len(p.Tokens) > 1 {
		q = `"`
	}
	b.WriteString(q)
	b.WriteString(p.lead)
	for i, t := range p.Tokens {
		if i > 0 {
			sep := t.Sep
			if sep == "" {
				sep = " "
			}
			b.WriteString(sep)
		}
		b.WriteString(t.Text)
	}
	b.WriteString(p.trail)
	if p.quote == "" {
		b.WriteString(q)
	}
	b.WriteString(p.tail)
	return b.String()
}

// Value returns the assignment value without quotes.
func (p *ParamLine) Value() string {
	texts := make([]string, len(p.Tokens))
	for i, t := range p.Tokens {
		texts[i] = t.Text
	}
	return strings.Join(texts, " ")
}

// Clone returns an independent copy.
func (p *ParamLine) Clone() *ParamLine {
	cp := *p
	cp.Tokens = append([]Token(nil), p.Tokens...)
	return &cp
}

// IndexesOfKey returns the positions of every token whose key is key.
func (p *ParamLine) IndexesOfKey(key string) []int {
	var out []int
	for i, t := range p.Tokens {
		if t.Key() == key {
			out = append(out, i)
		}
	}
	return out
}

// InsertTokens inserts texts at pos (clamped to the token count).
func (p *ParamLine) InsertTokens(pos int, texts ...string) {
	if pos < 0 || pos > len(p.Tokens) {
		pos = len(p.Tokens)
	}
	added := make([]Token, len(texts))
	for i, t := range texts {
		added[i] = Token{Sep: " ", Text: t}
	}
	out := make([]Token, 0, len(p.Tokens)+len(added))
	out = append(out, p.Tokens[:pos]...)
	out = append(out, added...)
	out = append(out, p.Tokens[pos:]...)
	p.Tokens = out
}

// RemoveTokens removes one occurrence of each text and returns the position of the
// first removed token, or -1 when nothing matched.
func (p *ParamLine) RemoveTokens(texts ...string) (int, error) {
	first := -1
	for _, text := range texts {
		i := p.indexOfText(text)
		if i < 0 {
			return first, fmt.Errorf("token %q not present", text)
		}
		p.Tokens = append(p.Tokens[:i], p.Tokens[i+1:]...)
		if first < 0 || i < first {
			first = i
		}
	}
	return first, nil
}

// ReplaceTokens removes old and inserts replacement where the first old token was.
func (p *ParamLine) ReplaceTokens(old, replacement []string) error {
	pos, err := p.RemoveTokens(old...)
	if err != nil {
		return err
	}
	p.InsertTokens(pos, replacement...)
	return nil
}

func (p *ParamLine) indexOfText(text string) int {
	for i, t := range p.Tokens {
		if t.Text == text {
			return i
		}
	}
	return -1
}
