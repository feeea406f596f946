package record

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/steinarvk/recquery/lib/dexerror"
)

type FieldType string

const (
	TypeString = FieldType("string")
	TypeInt    = FieldType("int")
	TypeBool   = FieldType("bool")
	TypeDate   = FieldType("date")
	TypeRef    = FieldType("ref")
)

func (t FieldType) Valid() bool {
	switch t {
	case TypeString, TypeInt, TypeBool, TypeDate, TypeRef:
		return true
	}
	return false
}

type FieldSpec struct {
	Type FieldType
	// RefNamespace is the collection a TypeRef field points into.
	RefNamespace string
}

// Derivation computes Field from the date field From on every insert,
// formatted with the Go time layout Layout.
type Derivation struct {
	Field  string
	From   string
	Layout string
}

// Schema declares field types for a collection. Undeclared fields have their
// kind inferred from the raw value. A nil *Schema infers everything.
type Schema struct {
	Fields  map[string]FieldSpec
	Derived []Derivation
}

func (s *Schema) spec(field string) (FieldSpec, bool) {
	if s == nil || s.Fields == nil {
		return FieldSpec{}, false
	}
	spec, ok := s.Fields[field]
	return spec, ok
}

func coercionError(field string, t FieldType, raw interface{}, cause error) error {
	opts := []dexerror.ErrorOption{
		dexerror.WithKind(dexerror.KindInvalidRecord),
		dexerror.WithPublicMessage(fmt.Sprintf("field %q: cannot use %T as %s", field, raw, t)),
		dexerror.WithPublicData("field", field),
	}
	if cause != nil {
		opts = append(opts, dexerror.WithCause(cause))
	}
	return dexerror.New(opts...)
}

// Coerce converts raw into a Value for field, honouring the declared type.
func (s *Schema) Coerce(field string, raw interface{}) (Value, error) {
	spec, ok := s.spec(field)
	if !ok {
		v, err := FromInterface(raw)
		if err != nil {
			return Value{}, fmt.Errorf("field %q: %w", field, err)
		}
		return v, nil
	}

	if v, isValue := raw.(Value); isValue {
		if v.Kind() == kindForType(spec.Type) {
			return v, nil
		}
		raw = v.Interface()
	}

	switch spec.Type {
	case TypeString:
		if s, ok := raw.(string); ok {
			return String(s), nil
		}
	case TypeBool:
		if b, ok := raw.(bool); ok {
			return Bool(b), nil
		}
	case TypeInt:
		switch raw.(type) {
		case float64, int, int32, int64, json.Number:
			v, err := FromInterface(raw)
			if err != nil {
				return Value{}, coercionError(field, spec.Type, raw, err)
			}
			return v, nil
		}
	case TypeDate:
		if n, ok := raw.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				raw = f
			}
		}
		t, err := InterpretTimestamp(raw)
		if err != nil {
			return Value{}, coercionError(field, spec.Type, raw, err)
		}
		return Time(t), nil
	case TypeRef:
		switch x := raw.(type) {
		case string:
			id, err := uuid.Parse(x)
			if err != nil {
				return Value{}, coercionError(field, spec.Type, raw, err)
			}
			return RefTo(spec.RefNamespace, id), nil
		case uuid.UUID:
			return RefTo(spec.RefNamespace, x), nil
		case Record, *Record, Ref:
			return FromInterface(x)
		}
	}

	return Value{}, coercionError(field, spec.Type, raw, nil)
}

func kindForType(t FieldType) Kind {
	switch t {
	case TypeString:
		return KindString
	case TypeInt:
		return KindInt
	case TypeBool:
		return KindBool
	case TypeDate:
		return KindTime
	case TypeRef:
		return KindRef
	}
	return KindInvalid
}

// Build coerces every raw value and then applies derivations. Null values
// are treated as absent fields.
func (s *Schema) Build(raw map[string]interface{}) (Fields, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make(Fields, len(raw))
	for _, k := range keys {
		if raw[k] == nil {
			continue
		}
		v, err := s.Coerce(k, raw[k])
		if err != nil {
			return nil, err
		}
		fields[k] = v
	}

	if err := s.Derive(fields); err != nil {
		return nil, err
	}

	return fields, nil
}

// Derive fills in derived fields in place. A derivation whose source field
// is absent is skipped.
func (s *Schema) Derive(fields Fields) error {
	if s == nil {
		return nil
	}
	for _, d := range s.Derived {
		src, ok := fields[d.From]
		if !ok {
			continue
		}
		t, ok := src.AsTime()
		if !ok {
			return dexerror.New(
				dexerror.WithKind(dexerror.KindInvalidRecord),
				dexerror.WithPublicMessage(fmt.Sprintf("derived field %q needs a date in %q, got %s", d.Field, d.From, src.Kind())),
				dexerror.WithPublicData("field", d.From),
			)
		}
		fields[d.Field] = String(t.Format(d.Layout))
	}
	return nil
}

// IsString reports whether field always holds strings: it is declared as a
// string or produced by a derivation.
func (s *Schema) IsString(field string) bool {
	if spec, ok := s.spec(field); ok {
		return spec.Type == TypeString
	}
	if s == nil {
		return false
	}
	for _, d := range s.Derived {
		if d.Field == field {
			return true
		}
	}
	return false
}

func (s *Schema) Validate() error {
	if s == nil {
		return nil
	}
	for name, spec := range s.Fields {
		if !spec.Type.Valid() {
			return fmt.Errorf("field %q has unknown type %q", name, spec.Type)
		}
		if spec.Type != TypeRef && spec.RefNamespace != "" {
			return fmt.Errorf("field %q is not a reference but names namespace %q", name, spec.RefNamespace)
		}
	}
	for _, d := range s.Derived {
		if d.Field == "" || d.From == "" || d.Layout == "" {
			return fmt.Errorf("derived field %q: field, from and layout are all required", d.Field)
		}
		if spec, ok := s.Fields[d.From]; ok && spec.Type != TypeDate {
			return fmt.Errorf("derived field %q: source %q is %s, not date", d.Field, d.From, spec.Type)
		}
	}
	return nil
}
