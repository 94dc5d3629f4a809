/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/cel-go/cel"
)

// Matcher evaluates a bound statement against JSON documents with a compiled CEL program.
// A missing field or a comparison between mismatched types is undefined and does not match.
type Matcher struct {
	prog   cel.Program
	values map[string]any
	always bool
}

// NewMatcher compiles stmt. Every parameter must already be bound.
func NewMatcher(stmt *Statement) (*Matcher, error) {
	if len(stmt.Conditions) == 0 {
		return &Matcher{always: true}, nil
	}

	opts := []cel.EnvOption{
		cel.Variable("doc", cel.MapType(cel.StringType, cel.DynType)),
	}
	values := make(map[string]any, len(stmt.Conditions))
	clauses := make([]string, 0, len(stmt.Conditions))
	for i, c := range stmt.Conditions {
		if c.Param != "" {
			return nil, fmt.Errorf("query parameter %s is not bound", c.Param)
		}
		name := "v" + strconv.Itoa(i)
		opts = append(opts, cel.Variable(name, cel.DynType))
		values[name] = c.Value
		// CEL equality is heterogeneous ("a" != 3.0 is true), so operands must share a type.
		sel := celSelector(c.Path)
		clauses = append(clauses, fmt.Sprintf("(type(%s) == type(%s) && %s %s %s)", sel, name, sel, celOperator(c.Op), name))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(strings.Join(clauses, " && "))
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return &Matcher{prog: prog, values: values}, nil
}

// Match decodes raw and evaluates the predicate against it.
func (m *Matcher) Match(raw []byte) (bool, error) {
	if m.always {
		return true, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("failed to decode document: %w", err)
	}
	return m.MatchDocument(doc), nil
}

// MatchDocument evaluates the predicate against an already decoded document.
func (m *Matcher) MatchDocument(doc map[string]any) bool {
	if m.always {
		return true
	}
	activation := make(map[string]any, len(m.values)+1)
	for k, v := range m.values {
		activation[k] = v
	}
	activation["doc"] = doc

	out, _, err := m.prog.Eval(activation)
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

// celSelector uses index syntax so field names never collide with CEL keywords.
func celSelector(path []string) string {
	var b strings.Builder
	b.WriteString("doc")
	for _, field := range path {
		b.WriteString("[")
		b.WriteString(strconv.Quote(field))
		b.WriteString("]")
	}
	return b.String()
}

func celOperator(op Operator) string {
	if op == OpEq {
		return "=="
	}
	return string(op)
}
