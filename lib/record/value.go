package record

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	canonicaljson "github.com/gibson042/canonicaljson-go"
	"github.com/google/uuid"
	"github.com/steinarvk/recquery/lib/dexerror"
)

type Kind int

const (
	KindInvalid Kind = iota
	KindString
	KindInt
	KindBool
	KindTime
	KindRef
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindTime:
		return "date"
	case KindRef:
		return "ref"
	default:
		return "invalid"
	}
}

// Ordered reports whether values of this kind have a total order.
func (k Kind) Ordered() bool {
	return k == KindString || k == KindInt || k == KindTime
}

// Ref points at a record in another (or the same) collection.
type Ref struct {
	Namespace string
	ID        uuid.UUID
}

func (r Ref) String() string {
	if r.Namespace == "" {
		return r.ID.String()
	}
	return r.Namespace + "/" + r.ID.String()
}

// Value is a single typed field value. The zero Value is invalid.
type Value struct {
	kind Kind
	s    string
	i    int64
	b    bool
	t    time.Time
	ref  Ref
}

func String(s string) Value {
	return Value{kind: KindString, s: s}
}

func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func Time(t time.Time) Value {
	return Value{kind: KindTime, t: t.UTC()}
}

func RefTo(namespace string, id uuid.UUID) Value {
	return Value{kind: KindRef, ref: Ref{Namespace: namespace, ID: id}}
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsValid() bool {
	return v.kind != KindInvalid
}

func (v Value) AsString() (string, bool) {
	return v.s, v.kind == KindString
}

func (v Value) AsInt() (int64, bool) {
	return v.i, v.kind == KindInt
}

func (v Value) AsBool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) AsTime() (time.Time, bool) {
	return v.t, v.kind == KindTime
}

func (v Value) AsRef() (Ref, bool) {
	return v.ref, v.kind == KindRef
}

// Equal is true when both values have the same kind and value. References
// compare by id only, so a reference built without a namespace still matches.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.s == other.s
	case KindInt:
		return v.i == other.i
	case KindBool:
		return v.b == other.b
	case KindTime:
		return v.t.Equal(other.t)
	case KindRef:
		return v.ref.ID == other.ref.ID
	default:
		return false
	}
}

// HasPrefix is true only for string values starting with prefix.
func (v Value) HasPrefix(prefix string) bool {
	return v.kind == KindString && strings.HasPrefix(v.s, prefix)
}

type errIncomparable struct {
	a, b Kind
}

func (e errIncomparable) Error() string {
	if e.a == e.b {
		return fmt.Sprintf("values of kind %s have no order", e.a)
	}
	return fmt.Sprintf("cannot compare %s with %s", e.a, e.b)
}

// Compare returns -1, 0 or 1. Both values must share one ordered kind.
func Compare(a, b Value) (int, error) {
	if a.kind != b.kind || !a.kind.Ordered() {
		return 0, errIncomparable{a.kind, b.kind}
	}
	switch a.kind {
	case KindString:
		return strings.Compare(a.s, b.s), nil
	case KindInt:
		switch {
		case a.i < b.i:
			return -1, nil
		case a.i > b.i:
			return 1, nil
		}
		return 0, nil
	case KindTime:
		return a.t.Compare(b.t), nil
	}
	return 0, errIncomparable{a.kind, b.kind}
}

// Interface returns the JSON-friendly form: dates as RFC 3339 strings and
// references as their id string.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	case KindTime:
		return v.t.Format(time.RFC3339Nano)
	case KindRef:
		return v.ref.ID.String()
	default:
		return nil
	}
}

func (v Value) CanonicalJSON() ([]byte, error) {
	return canonicaljson.Marshal(v.Interface())
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("%q", v.s)
	case KindRef:
		return "ref:" + v.ref.String()
	case KindInvalid:
		return "<invalid>"
	default:
		return fmt.Sprint(v.Interface())
	}
}

func invalidValue(format string, args ...interface{}) error {
	return dexerror.New(
		dexerror.WithKind(dexerror.KindInvalidRecord),
		dexerror.WithPublicMessage(fmt.Sprintf(format, args...)),
	)
}

func intFromFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// FromInterface infers a Value from a Go or decoded-JSON value. Records
// become references to themselves.
func FromInterface(x interface{}) (Value, error) {
	switch x := x.(type) {
	case Value:
		if !x.IsValid() {
			return Value{}, invalidValue("invalid value")
		}
		return x, nil
	case Record:
		return x.Ref(), nil
	case *Record:
		return x.Ref(), nil
	case Ref:
		return RefTo(x.Namespace, x.ID), nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		i, ok := intFromFloat(x)
		if !ok {
			return Value{}, invalidValue("non-integral number %v is not supported", x)
		}
		return Int(i), nil
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return Value{}, invalidValue("number %s is not an integer", x.String())
		}
		return Int(i), nil
	case time.Time:
		return Time(x), nil
	case nil:
		return Value{}, invalidValue("null value")
	default:
		return Value{}, invalidValue("unsupported value type %T", x)
	}
}
