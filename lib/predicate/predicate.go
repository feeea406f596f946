// Package predicate implements composable filter conditions over records.
//
// A predicate is either a leaf comparing one field (Eq, StartsWith) or a
// binary combinator (And, Or). There is no implicit precedence: a tree is
// exactly what the caller built.
package predicate

import (
	"fmt"

	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/record"
)

type Operator string

const (
	OpEq         = Operator("eq")
	OpStartsWith = Operator("startswith")
)

type Predicate interface {
	// Evaluate fails with dexerror.ErrFieldMissing when a leaf reaches a
	// field the record does not have.
	Evaluate(r record.Record) (bool, error)
	String() string
}

type leaf struct {
	field  string
	op     Operator
	value  record.Value
	prefix string
}

// Eq matches records whose field has the same kind and value.
func Eq(field string, value record.Value) Predicate {
	return &leaf{field: field, op: OpEq, value: value}
}

// StartsWith matches string fields beginning with prefix. Fields of any
// other kind never match.
func StartsWith(field string, prefix string) Predicate {
	return &leaf{field: field, op: OpStartsWith, prefix: prefix}
}

func fieldMissing(r record.Record, field string) error {
	return dexerror.New(
		dexerror.WithKind(dexerror.KindFieldMissing),
		dexerror.WithPublicMessage(fmt.Sprintf("record has no field %q", field)),
		dexerror.WithPublicData("field", field),
		dexerror.WithPublicData("namespace", r.Namespace),
		dexerror.WithInternalData("record_id", r.ID.String()),
	)
}

func (l *leaf) Evaluate(r record.Record) (bool, error) {
	v, ok := r.Get(l.field)
	if !ok {
		return false, fieldMissing(r, l.field)
	}

	switch l.op {
	case OpEq:
		return v.Equal(l.value), nil
	case OpStartsWith:
		return v.HasPrefix(l.prefix), nil
	}
	return false, fmt.Errorf("unknown operator %q", l.op)
}

func (l *leaf) String() string {
	if l.op == OpStartsWith {
		return fmt.Sprintf("%s startswith %q", l.field, l.prefix)
	}
	return fmt.Sprintf("%s = %s", l.field, l.value)
}

type combinator struct {
	op          string
	left, right Predicate
}

// And is true when both sides are; right is not evaluated when left is false.
func And(left, right Predicate) Predicate {
	return &combinator{op: "AND", left: left, right: right}
}

// Or is true when either side is; right is not evaluated when left is true.
func Or(left, right Predicate) Predicate {
	return &combinator{op: "OR", left: left, right: right}
}

func (c *combinator) Evaluate(r record.Record) (bool, error) {
	l, err := c.left.Evaluate(r)
	if err != nil {
		return false, err
	}

	if c.op == "AND" && !l {
		return false, nil
	}
	if c.op == "OR" && l {
		return true, nil
	}

	return c.right.Evaluate(r)
}

func (c *combinator) String() string {
	return fmt.Sprintf("(%s %s %s)", c.left, c.op, c.right)
}

func fold(combine func(a, b Predicate) Predicate, ps []Predicate) Predicate {
	if len(ps) == 0 {
		return nil
	}
	rv := ps[0]
	for _, p := range ps[1:] {
		rv = combine(rv, p)
	}
	return rv
}

// AndAll left-folds And over ps. It returns nil for no predicates and the
// predicate itself for one.
func AndAll(ps ...Predicate) Predicate {
	return fold(And, ps)
}

// OrAll left-folds Or over ps, with the same edge cases as AndAll.
func OrAll(ps ...Predicate) Predicate {
	return fold(Or, ps)
}
