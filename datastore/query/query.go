/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/suparena/familystore/errors"
	"github.com/suparena/familystore/storagemodels"
)

// Operator is a comparison between a document field and a value.
type Operator string

const (
	OpEq Operator = "="
	OpNe Operator = "!="
	OpLt Operator = "<"
	OpLe Operator = "<="
	OpGt Operator = ">"
	OpGe Operator = ">="
)

// Condition compares the field at Path against Value.
type Condition struct {
	// Path is the field path below the alias, e.g. ["Address", "City"].
	Path []string
	Op   Operator
	// Value is a string, float64, bool or nil once bound.
	Value any
	// Param holds the "@name" placeholder until Bind resolves it.
	Param string
}

// FieldPath renders Path the way partition key paths are written, e.g. "/Address/City".
func (c Condition) FieldPath() string {
	return "/" + strings.Join(c.Path, "/")
}

// Statement is a parsed "SELECT * FROM alias WHERE ..." query. Conditions are joined by AND.
type Statement struct {
	Alias      string
	Conditions []Condition
}

// Parse reads query text of the form
//
//	SELECT * FROM c [WHERE c.Field op value [AND c.Other.Field op value ...]]
//
// where op is one of = != <> < <= > >= and value is a quoted string, a number,
// true, false, null or an @parameter.
func Parse(text string) (*Statement, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.NewValidationError("query", "query text is empty")
	}
	tokens, err := tokenize(text)
	if err != nil {
		return nil, errors.NewValidationError("query", err.Error())
	}
	p := &parser{tokens: tokens}
	stmt, err := p.statement()
	if err != nil {
		return nil, errors.NewValidationError("query", err.Error())
	}
	return stmt, nil
}

// Bind returns a copy of the statement with every @parameter replaced by its value.
func (s *Statement) Bind(params []storagemodels.QueryParameter) (*Statement, error) {
	values := make(map[string]any, len(params))
	for _, p := range params {
		name := p.Name
		if !strings.HasPrefix(name, "@") {
			name = "@" + name
		}
		values[name] = p.Value
	}

	bound := &Statement{Alias: s.Alias, Conditions: make([]Condition, len(s.Conditions))}
	for i, c := range s.Conditions {
		if c.Param != "" {
			v, ok := values[c.Param]
			if !ok {
				return nil, errors.NewValidationError(c.Param, "query parameter is not bound")
			}
			c.Value = normalizeValue(v)
			c.Param = ""
		}
		bound.Conditions[i] = c
	}
	return bound, nil
}

// PartitionValue returns the value of an equality condition on partitionKeyPath, if any.
func (s *Statement) PartitionValue(partitionKeyPath string) (any, bool) {
	for _, c := range s.Conditions {
		if c.Op == OpEq && c.Param == "" && c.FieldPath() == partitionKeyPath {
			return c.Value, true
		}
	}
	return nil, false
}

// normalizeValue widens Go numbers to float64 so they compare like decoded JSON numbers.
func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case uint:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	}
	return v
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expectKeyword(word string) error {
	t := p.next()
	if !t.keyword(word) {
		return fmt.Errorf("expected %s at offset %d, got %q", word, t.pos, t.text)
	}
	return nil
}

func (p *parser) statement() (*Statement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	if t := p.next(); t.kind != tokStar {
		return nil, fmt.Errorf("only SELECT * is supported, got %q at offset %d", t.text, t.pos)
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	alias := p.next()
	if alias.kind != tokIdent {
		return nil, fmt.Errorf("expected container alias at offset %d", alias.pos)
	}
	stmt := &Statement{Alias: alias.text}

	if p.peek().kind == tokEOF {
		return stmt, nil
	}
	if err := p.expectKeyword("WHERE"); err != nil {
		return nil, err
	}
	for {
		cond, err := p.condition(stmt.Alias)
		if err != nil {
			return nil, err
		}
		stmt.Conditions = append(stmt.Conditions, cond)

		t := p.next()
		if t.kind == tokEOF {
			return stmt, nil
		}
		if !t.keyword("AND") {
			return nil, fmt.Errorf("expected AND at offset %d, got %q", t.pos, t.text)
		}
	}
}

func (p *parser) condition(alias string) (Condition, error) {
	var cond Condition

	root := p.next()
	if root.kind != tokIdent || root.text != alias {
		return cond, fmt.Errorf("expected field reference on %q at offset %d", alias, root.pos)
	}
	for p.peek().kind == tokDot {
		p.next()
		field := p.next()
		if field.kind != tokIdent {
			return cond, fmt.Errorf("expected field name at offset %d", field.pos)
		}
		cond.Path = append(cond.Path, field.text)
	}
	if len(cond.Path) == 0 {
		return cond, fmt.Errorf("expected %s.<field> at offset %d", alias, root.pos)
	}

	op := p.next()
	if op.kind != tokOperator {
		return cond, fmt.Errorf("expected comparison operator at offset %d", op.pos)
	}
	switch op.text {
	case "=":
		cond.Op = OpEq
	case "!=", "<>":
		cond.Op = OpNe
	default:
		cond.Op = Operator(op.text)
	}

	val := p.next()
	switch {
	case val.kind == tokString:
		cond.Value = val.text
	case val.kind == tokNumber:
		f, err := strconv.ParseFloat(val.text, 64)
		if err != nil {
			return cond, fmt.Errorf("invalid number %q at offset %d", val.text, val.pos)
		}
		cond.Value = f
	case val.kind == tokParam:
		cond.Param = val.text
	case val.keyword("true"):
		cond.Value = true
	case val.keyword("false"):
		cond.Value = false
	case val.keyword("null"):
		cond.Value = nil
	default:
		return cond, fmt.Errorf("expected literal or parameter at offset %d", val.pos)
	}
	return cond, nil
}
