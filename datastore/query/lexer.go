/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokParam
	tokOperator
	tokStar
	tokDot
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) keyword(word string) bool {
	return t.kind == tokIdent && strings.EqualFold(t.text, word)
}

func tokenize(src string) ([]token, error) {
	var tokens []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '*':
			tokens = append(tokens, token{kind: tokStar, text: "*", pos: i})
			i++
		case r == '.':
			tokens = append(tokens, token{kind: tokDot, text: ".", pos: i})
			i++
		case r == '=':
			tokens = append(tokens, token{kind: tokOperator, text: "=", pos: i})
			i++
		case r == '!' || r == '<' || r == '>':
			start := i
			i++
			if i < len(runes) && (runes[i] == '=' || (r == '<' && runes[i] == '>')) {
				i++
			}
			op := string(runes[start:i])
			if op == "!" {
				return nil, fmt.Errorf("unexpected %q at offset %d", op, start)
			}
			tokens = append(tokens, token{kind: tokOperator, text: op, pos: start})
		case r == '\'' || r == '"':
			s, next, err := scanString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: s, pos: i})
			i = next
		case r == '@':
			start := i
			i++
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			if i == start+1 {
				return nil, fmt.Errorf("empty parameter name at offset %d", start)
			}
			tokens = append(tokens, token{kind: tokParam, text: string(runes[start:i]), pos: start})
		case r == '-' || unicode.IsDigit(r):
			start := i
			i++
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.' || runes[i] == 'e' || runes[i] == 'E' ||
				((runes[i] == '-' || runes[i] == '+') && (runes[i-1] == 'e' || runes[i-1] == 'E'))) {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: string(runes[start:i]), pos: start})
		case isIdentStart(r):
			start := i
			for i < len(runes) && isIdentRune(runes[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[start:i]), pos: start})
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
		}
	}
	return append(tokens, token{kind: tokEOF, pos: len(runes)}), nil
}

// scanString reads a quoted literal starting at runes[start]; a doubled quote or a
// backslash escapes the quote character.
func scanString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var b strings.Builder
	i := start + 1
	for i < len(runes) {
		r := runes[i]
		switch {
		case r == '\\' && i+1 < len(runes):
			b.WriteRune(runes[i+1])
			i += 2
		case r == quote && i+1 < len(runes) && runes[i+1] == quote:
			b.WriteRune(quote)
			i += 2
		case r == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteRune(r)
			i++
		}
	}
	return "", 0, fmt.Errorf("unterminated string starting at offset %d", start)
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
