package record

import (
	"sort"

	"github.com/google/uuid"
)

type Fields map[string]Value

func (f Fields) clone() Fields {
	rv := make(Fields, len(f))
	for k, v := range f {
		rv[k] = v
	}
	return rv
}

// Record is an immutable set of named values with a store-assigned identity.
type Record struct {
	ID        uuid.UUID
	Namespace string
	Seq       uint64

	fields Fields
}

func New(namespace string, id uuid.UUID, seq uint64, fields Fields) Record {
	return Record{
		ID:        id,
		Namespace: namespace,
		Seq:       seq,
		fields:    fields.clone(),
	}
}

func (r Record) Get(field string) (Value, bool) {
	v, ok := r.fields[field]
	return v, ok
}

func (r Record) Has(field string) bool {
	_, ok := r.fields[field]
	return ok
}

// Fields returns a copy of the record's values.
func (r Record) Fields() Fields {
	return r.fields.clone()
}

func (r Record) FieldNames() []string {
	names := make([]string, 0, len(r.fields))
	for k := range r.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r Record) Len() int {
	return len(r.fields)
}

func (r Record) Ref() Value {
	return RefTo(r.Namespace, r.ID)
}

// ToMap renders the record for JSON output, with its id under "id".
func (r Record) ToMap() map[string]interface{} {
	rv := make(map[string]interface{}, len(r.fields)+1)
	for k, v := range r.fields {
		rv[k] = v.Interface()
	}
	rv["id"] = r.ID.String()
	return rv
}
