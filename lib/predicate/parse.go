package predicate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steinarvk/recquery/lib/dexapi"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/record"
)

func invalidQuery(format string, args ...interface{}) error {
	return dexerror.New(
		dexerror.WithKind(dexerror.KindInvalidQuery),
		dexerror.WithPublicMessage(fmt.Sprintf(format, args...)),
	)
}

func newLeaf(schema *record.Schema, field string, op Operator, raw interface{}) (Predicate, error) {
	if field == "" {
		return nil, invalidQuery("condition has no field")
	}

	switch op {
	case OpEq, "":
		if raw == nil {
			return nil, invalidQuery("condition on %q compares with null", field)
		}
		v, err := schema.Coerce(field, raw)
		if err != nil {
			return nil, dexerror.New(
				dexerror.WithKind(dexerror.KindInvalidQuery),
				dexerror.WithPublicMessage(fmt.Sprintf("bad comparison value for %q", field)),
				dexerror.WithCause(err),
			)
		}
		return Eq(field, v), nil
	case OpStartsWith:
		prefix, ok := raw.(string)
		if !ok {
			return nil, invalidQuery("startswith on %q needs a string, got %T", field, raw)
		}
		return StartsWith(field, prefix), nil
	}

	return nil, invalidQuery("unknown operator %q", op)
}

// Parse builds a predicate from a JSON condition tree. Comparison values are
// coerced through schema, which may be nil.
func Parse(schema *record.Schema, c *dexapi.Condition) (Predicate, error) {
	if c == nil {
		return nil, invalidQuery("empty condition")
	}

	isLeaf := c.Field != ""
	isAnd := len(c.And) > 0
	isOr := len(c.Or) > 0

	n := 0
	for _, b := range []bool{isLeaf, isAnd, isOr} {
		if b {
			n++
		}
	}
	if n != 1 {
		return nil, invalidQuery("a condition must have exactly one of field, and, or")
	}

	if isLeaf {
		return newLeaf(schema, c.Field, Operator(c.Op), c.Value)
	}

	children := c.And
	combine := AndAll
	name := "and"
	if isOr {
		children = c.Or
		combine = OrAll
		name = "or"
	}

	if len(children) < 2 {
		return nil, invalidQuery("%q needs at least two operands", name)
	}

	ps := make([]Predicate, 0, len(children))
	for _, child := range children {
		p, err := Parse(schema, child)
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}

	return combine(ps...), nil
}

// FromFilterMap builds the conjunction of keyword conditions such as
// {"age": 10, "ymd__startswith": "2011-06"}, in sorted key order. It
// returns nil for an empty map.
func FromFilterMap(schema *record.Schema, filter map[string]interface{}) (Predicate, error) {
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var ps []Predicate
	for _, key := range keys {
		field, op := key, OpEq
		if i := strings.LastIndex(key, "__"); i >= 0 {
			field, op = key[:i], Operator(key[i+2:])
		}

		p, err := newLeaf(schema, field, op, filter[key])
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}

	return AndAll(ps...), nil
}
