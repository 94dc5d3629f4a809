/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/suparena/familystore/datastore/query"
)

// expression is a query statement rendered as DynamoDB expressions.
type expression struct {
	// keyCondition is set when the statement pins the partition key, making a Query possible.
	keyCondition *string
	filter       *string
	names        map[string]string
	values       map[string]types.AttributeValue
}

type expressionBuilder struct {
	names  map[string]string // attribute -> placeholder
	values map[string]types.AttributeValue
}

// buildExpression renders stmt for a table whose hash key is pkAttr. Missing attributes never
// satisfy a condition, matching the undefined semantics of the query language.
func buildExpression(stmt *query.Statement, pkAttr string) (expression, error) {
	b := &expressionBuilder{
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
	}

	var expr expression
	var filters []string
	keyUsed := false
	for _, c := range stmt.Conditions {
		if !keyUsed && c.Op == query.OpEq && c.FieldPath() == "/"+pkAttr {
			if s, ok := c.Value.(string); ok {
				keyUsed = true
				kc := fmt.Sprintf("%s = %s", b.path(c.Path), b.value(&types.AttributeValueMemberS{Value: s}))
				expr.keyCondition = aws.String(kc)
				continue
			}
		}
		clause, err := b.condition(c)
		if err != nil {
			return expression{}, err
		}
		filters = append(filters, clause)
	}

	if len(filters) > 0 {
		expr.filter = aws.String(strings.Join(filters, " AND "))
	}
	if len(b.names) > 0 {
		expr.names = make(map[string]string, len(b.names))
		for attr, placeholder := range b.names {
			expr.names[placeholder] = attr
		}
	}
	if len(b.values) > 0 {
		expr.values = b.values
	}
	return expr, nil
}

func (b *expressionBuilder) condition(c query.Condition) (string, error) {
	path := b.path(c.Path)

	if c.Value == nil {
		nullType := b.value(&types.AttributeValueMemberS{Value: "NULL"})
		switch c.Op {
		case query.OpEq:
			return fmt.Sprintf("attribute_type(%s, %s)", path, nullType), nil
		case query.OpNe:
			// A non-null attribute is a type mismatch and a null one is equal, so nothing matches.
			return fmt.Sprintf("(attribute_type(%s, %s) AND NOT attribute_type(%s, %s))", path, nullType, path, nullType), nil
		default:
			return "", fmt.Errorf("operator %s cannot compare against null", c.Op)
		}
	}

	av, err := attributevalue.Marshal(c.Value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal query value %v: %w", c.Value, err)
	}
	placeholder := b.value(av)

	switch c.Op {
	case query.OpEq, query.OpLt, query.OpLe, query.OpGt, query.OpGe:
		return fmt.Sprintf("%s %s %s", path, string(c.Op), placeholder), nil
	case query.OpNe:
		// <> is true across types; attribute_type also rules out a missing attribute.
		typ := b.value(&types.AttributeValueMemberS{Value: attributeType(av)})
		return fmt.Sprintf("(attribute_type(%s, %s) AND %s <> %s)", path, typ, path, placeholder), nil
	default:
		return "", fmt.Errorf("unsupported operator %q", c.Op)
	}
}

// path renders a field path with name placeholders so reserved words are safe.
func (b *expressionBuilder) path(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		placeholder, ok := b.names[f]
		if !ok {
			placeholder = fmt.Sprintf("#n%d", len(b.names))
			b.names[f] = placeholder
		}
		parts[i] = placeholder
	}
	return strings.Join(parts, ".")
}

func (b *expressionBuilder) value(av types.AttributeValue) string {
	placeholder := fmt.Sprintf(":v%d", len(b.values))
	b.values[placeholder] = av
	return placeholder
}

// attributeType returns the DynamoDB type descriptor of a marshalled query value.
func attributeType(av types.AttributeValue) string {
	switch av.(type) {
	case *types.AttributeValueMemberN:
		return string(types.ScalarAttributeTypeN)
	case *types.AttributeValueMemberBOOL:
		return "BOOL"
	default:
		return string(types.ScalarAttributeTypeS)
	}
}
