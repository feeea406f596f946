package record

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postSchema() *Schema {
	return &Schema{
		Fields: map[string]FieldSpec{
			"created_at": {Type: TypeDate},
			"author":     {Type: TypeRef, RefNamespace: "person"},
			"order":      {Type: TypeInt},
			"title":      {Type: TypeString},
		},
		Derived: []Derivation{
			{Field: "ymd", From: "created_at", Layout: "2006-01-02"},
		},
	}
}

func TestBuild(t *testing.T) {
	author := uuid.New()

	fields, err := postSchema().Build(map[string]interface{}{
		"title":        "bob #3",
		"author":       author.String(),
		"created_at":   "2011-06-01T10:00:00+02:00",
		"order":        float64(3),
		"is_published": true,
		"draft_of":     nil,
	})
	require.NoError(t, err)

	assert.True(t, fields["ymd"].Equal(String("2011-06-01")))
	assert.True(t, fields["author"].Equal(RefTo("person", author)))
	assert.True(t, fields["order"].Equal(Int(3)))
	assert.True(t, fields["is_published"].Equal(Bool(true)))
	assert.Equal(t, KindTime, fields["created_at"].Kind())

	_, present := fields["draft_of"]
	assert.False(t, present)
}

func TestBuildWithoutSchema(t *testing.T) {
	var s *Schema
	fields, err := s.Build(map[string]interface{}{"name": "A", "age": 20})
	require.NoError(t, err)
	assert.Len(t, fields, 2)
	assert.True(t, fields["age"].Equal(Int(20)))
}

func TestDeriveSkipsAbsentSource(t *testing.T) {
	fields, err := postSchema().Build(map[string]interface{}{"title": "undated"})
	require.NoError(t, err)
	_, ok := fields["ymd"]
	assert.False(t, ok)
}

func TestCoerceErrors(t *testing.T) {
	s := postSchema()

	for _, tc := range []struct {
		field string
		raw   interface{}
	}{
		{"created_at", "last tuesday"},
		{"created_at", true},
		{"author", "not-a-uuid"},
		{"order", "three"},
		{"order", 2.5},
		{"title", 7},
	} {
		_, err := s.Coerce(tc.field, tc.raw)
		require.Error(t, err, "%s=%#v", tc.field, tc.raw)
		assert.True(t, errors.Is(err, dexerror.ErrInvalidRecord), "%s=%#v: %v", tc.field, tc.raw, err)
	}
}

func TestCoerceAcceptsMatchingValue(t *testing.T) {
	when := time.Date(2011, 5, 28, 0, 0, 0, 0, time.UTC)
	v, err := postSchema().Coerce("created_at", Time(when))
	require.NoError(t, err)
	assert.True(t, v.Equal(Time(when)))

	v, err = postSchema().Coerce("title", Int(5))
	assert.Error(t, err)
	assert.False(t, v.IsValid())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, postSchema().Validate())

	var nilSchema *Schema
	assert.NoError(t, nilSchema.Validate())

	bad := []*Schema{
		{Fields: map[string]FieldSpec{"a": {Type: "float"}}},
		{Fields: map[string]FieldSpec{"a": {Type: TypeInt, RefNamespace: "x"}}},
		{Derived: []Derivation{{Field: "ymd", From: "created_at"}}},
		{
			Fields:  map[string]FieldSpec{"created_at": {Type: TypeString}},
			Derived: []Derivation{{Field: "ymd", From: "created_at", Layout: "2006"}},
		},
	}
	for i, s := range bad {
		assert.Error(t, s.Validate(), "case %d", i)
	}
}

func TestInterpretTimestamp(t *testing.T) {
	want := time.Date(2011, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, in := range []interface{}{
		"2011-06-01",
		"2011-06-01T00:00:00Z",
		"2011-06-01T02:00:00+02:00",
		"2011-06-01 00:00:00",
		want.Unix(),
		float64(want.Unix()),
		want.UnixMilli(),
		"1306886400",
	} {
		got, err := InterpretTimestamp(in)
		require.NoError(t, err, "%#v", in)
		assert.True(t, want.Equal(got), "%#v: got %v", in, got)
	}

	for _, in := range []interface{}{"yesterday", 12, true} {
		_, err := InterpretTimestamp(in)
		assert.Error(t, err, "%#v", in)
	}
}

func TestIsString(t *testing.T) {
	s := postSchema()
	assert.True(t, s.IsString("title"))
	assert.True(t, s.IsString("ymd"))
	assert.False(t, s.IsString("order"))
	assert.False(t, s.IsString("undeclared"))

	var none *Schema
	assert.False(t, none.IsString("title"))
}
