// Package query runs filtered, ordered queries over one collection.
//
// A Query is an immutable value: Filter, OrderBy and Limit return a new
// Query and leave the receiver untouched. Chained Filter calls are ANDed;
// an OR must be built explicitly with predicate.Or.
package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/paginator"
	"github.com/steinarvk/recquery/lib/predicate"
	"github.com/steinarvk/recquery/lib/record"
	"github.com/steinarvk/recquery/lib/store"
)

type Direction = store.Direction

const (
	Ascending  = store.Ascending
	Descending = store.Descending
)

type OrderSpec = store.OrderSpec

type Query struct {
	collection *store.Collection
	where      predicate.Predicate
	order      *OrderSpec
	limit      int
	hasLimit   bool
}

func New(c *store.Collection) Query {
	return Query{collection: c}
}

// Filter narrows the query to records matching p, in conjunction with any
// earlier filters.
func (q Query) Filter(p predicate.Predicate) Query {
	if p == nil {
		return q
	}
	if q.where == nil {
		q.where = p
	} else {
		q.where = predicate.And(q.where, p)
	}
	return q
}

// OrderBy replaces any previous ordering.
func (q Query) OrderBy(field string, direction Direction) Query {
	q.order = &OrderSpec{Field: field, Direction: direction}
	return q
}

// Limit caps the result after ordering. A negative n removes the cap.
func (q Query) Limit(n int) Query {
	q.limit = n
	q.hasLimit = n >= 0
	return q
}

func (q Query) Collection() *store.Collection {
	return q.collection
}

// Ordering is the ordering Execute will apply, or nil for insertion order.
func (q Query) Ordering() *OrderSpec {
	if q.order != nil {
		return q.order
	}
	return q.collection.DefaultOrdering()
}

func (q Query) String() string {
	var parts []string
	parts = append(parts, q.collection.Name())
	if q.where != nil {
		parts = append(parts, "where "+q.where.String())
	}
	if o := q.Ordering(); o != nil {
		parts = append(parts, "order by "+o.String())
	}
	if q.hasLimit {
		parts = append(parts, fmt.Sprintf("limit %d", q.limit))
	}
	return strings.Join(parts, " ")
}

// Execute materializes the result. Over an unchanged collection it returns
// the same sequence every time.
func (q Query) Execute() ([]record.Record, error) {
	snapshot := q.collection.Scan()

	var rv []record.Record
	for _, r := range snapshot {
		if q.where != nil {
			ok, err := q.where.Evaluate(r)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		rv = append(rv, r)
	}

	if o := q.Ordering(); o != nil {
		if err := sortRecords(rv, *o); err != nil {
			return nil, err
		}
	}

	if q.hasLimit && len(rv) > q.limit {
		rv = rv[:q.limit]
	}

	return rv, nil
}

func (q Query) Count() (int, error) {
	records, err := q.Execute()
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// First returns the first record of the result; ok is false when it is empty.
func (q Query) First() (rec record.Record, ok bool, err error) {
	records, err := q.Limit(1).Execute()
	if err != nil {
		return record.Record{}, false, err
	}
	if len(records) == 0 {
		return record.Record{}, false, nil
	}
	return records[0], true, nil
}

func (q Query) Paginate(pageSize int) (*paginator.Paginator, error) {
	records, err := q.Execute()
	if err != nil {
		return nil, err
	}
	return paginator.New(records, pageSize)
}

func unorderable(spec OrderSpec, r record.Record, reason string) error {
	return dexerror.New(
		dexerror.WithKind(dexerror.KindUnorderableField),
		dexerror.WithPublicMessage(fmt.Sprintf("cannot order by %q: %s", spec.Field, reason)),
		dexerror.WithPublicData("field", spec.Field),
		dexerror.WithPublicData("namespace", r.Namespace),
		dexerror.WithInternalData("record_id", r.ID.String()),
	)
}

// sortRecords sorts in place and keeps the existing relative order of ties.
// Every record must carry the field, and all values must share one ordered
// kind.
func sortRecords(records []record.Record, spec OrderSpec) error {
	if len(records) == 0 {
		return nil
	}

	keys := make([]record.Value, len(records))
	var kind record.Kind
	for i, r := range records {
		v, ok := r.Get(spec.Field)
		if !ok {
			return unorderable(spec, r, "field is missing")
		}
		if !v.Kind().Ordered() {
			return unorderable(spec, r, fmt.Sprintf("%s values have no order", v.Kind()))
		}
		if i == 0 {
			kind = v.Kind()
		} else if v.Kind() != kind {
			return unorderable(spec, r, fmt.Sprintf("mixed %s and %s values", kind, v.Kind()))
		}
		keys[i] = v
	}

	idx := make([]int, len(records))
	for i := range idx {
		idx[i] = i
	}

	sort.SliceStable(idx, func(a, b int) bool {
		c, _ := record.Compare(keys[idx[a]], keys[idx[b]])
		if spec.Direction == Descending {
			return c > 0
		}
		return c < 0
	})

	sorted := make([]record.Record, len(records))
	for i, j := range idx {
		sorted[i] = records[j]
	}
	copy(records, sorted)

	return nil
}
