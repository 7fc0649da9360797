package schema

import (
	"fmt"
	"strings"
)

// tokenKind classifies one CWIR argument token.
type tokenKind int

const (
	tWord tokenKind = iota
	tString
	tObject
	tTuple
)

// token is one tokenized CWIR argument: a bare WORD, a quoted STRING, a
// parenthesized OBJECT reference, or a bracketed TUPLE (recursively
// tokenized).
type token struct {
	kind  tokenKind
	text  string
	tuple []token
}

// tokenizeLine splits a CWIR line into its opcode/keyword word (tokens[0])
// and argument tokens, respecting "..." strings, (...) objects and
// recursively-tokenized [...] tuples.
func tokenizeLine(line string) ([]token, error) {
	r := []rune(line)
	i := 0
	var toks []token
	for i < len(r) {
		for i < len(r) && isSpace(r[i]) {
			i++
		}
		if i >= len(r) {
			break
		}
		tok, next, err := scanToken(r, i)
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		i = next
	}
	return toks, nil
}

func isSpace(ch rune) bool { return ch == ' ' || ch == '\t' }

func scanToken(r []rune, i int) (token, int, error) {
	switch r[i] {
	case '"':
		return scanDelimited(r, i, '"', tString)
	case '(':
		return scanDelimited(r, i, ')', tObject)
	case '[':
		return scanTuple(r, i)
	default:
		return scanWord(r, i)
	}
}

func scanDelimited(r []rune, i int, closer rune, kind tokenKind) (token, int, error) {
	open := r[i]
	start := i + 1
	j := start
	for j < len(r) && r[j] != closer {
		j++
	}
	if j >= len(r) {
		return token{}, 0, fmt.Errorf("unterminated %c...%c", open, closer)
	}
	return token{kind: kind, text: string(r[start:j])}, j + 1, nil
}

func scanTuple(r []rune, i int) (token, int, error) {
	start := i + 1
	j := start
	depth := 1
	for j < len(r) && depth > 0 {
		switch r[j] {
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				goto done
			}
		}
		j++
	}
done:
	if depth != 0 {
		return token{}, 0, fmt.Errorf("unterminated [...] tuple")
	}
	inner := string(r[start:j])
	var elems []token
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		toks, err := tokenizeLine(part)
		if err != nil {
			return token{}, 0, err
		}
		elems = append(elems, toks...)
	}
	return token{kind: tTuple, tuple: elems}, j + 1, nil
}

func scanWord(r []rune, i int) (token, int, error) {
	j := i
	for j < len(r) && !isSpace(r[j]) {
		j++
	}
	return token{kind: tWord, text: string(r[i:j])}, j, nil
}

// display renders a token back to its source text, used for schema slots
// that are rendered verbatim into the output JSON.
func (t token) display() string {
	switch t.kind {
	case tString:
		return t.text
	case tObject:
		return t.text
	case tTuple:
		parts := make([]string, len(t.tuple))
		for i, e := range t.tuple {
			parts[i] = e.display()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return t.text
	}
}
