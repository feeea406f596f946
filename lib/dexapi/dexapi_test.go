package dexapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestParseOrderBy(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want OrderBy
	}{
		{"age", OrderBy{Field: "age"}},
		{"+age", OrderBy{Field: "age"}},
		{"-age", OrderBy{Field: "age", Descending: true}},
		{" -created_at ", OrderBy{Field: "created_at", Descending: true}},
	} {
		got, err := ParseOrderBy(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, bad := range []string{"", "-", "+", "--age", "a b"} {
		_, err := ParseOrderBy(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestOrderByJSON(t *testing.T) {
	var q Query
	require.NoError(t, json.Unmarshal([]byte(`{"namespace": "post", "order_by": "-order"}`), &q))
	require.NotNil(t, q.GetOrderBy())
	assert.Equal(t, OrderBy{Field: "order", Descending: true}, *q.GetOrderBy())

	data, err := json.Marshal(q.OrderBy)
	require.NoError(t, err)
	assert.Equal(t, `"-order"`, string(data))

	assert.Error(t, json.Unmarshal([]byte(`{"order_by": 3}`), &q))
}

func TestOrderByYAML(t *testing.T) {
	var doc struct {
		Ordering *OrderBy `yaml:"ordering"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(`ordering: "+order"`), &doc))
	require.NotNil(t, doc.Ordering)
	assert.Equal(t, "+order", doc.Ordering.String())

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "ordering: +order\n", string(out))
}

func TestQueryDefaults(t *testing.T) {
	var q Query
	assert.Equal(t, 1, q.GetPage())
	assert.Equal(t, 20, q.GetPageSize(20))
	_, ok := q.GetLimit()
	assert.False(t, ok)
	assert.Nil(t, q.GetOrderBy())

	require.NoError(t, json.Unmarshal([]byte(`{"page": 2, "page_size": 5, "limit": 0}`), &q))
	assert.Equal(t, 2, q.GetPage())
	assert.Equal(t, 5, q.GetPageSize(20))
	n, ok := q.GetLimit()
	assert.True(t, ok)
	assert.Equal(t, 0, n)
}

func TestConditionJSON(t *testing.T) {
	var c Condition
	require.NoError(t, json.Unmarshal([]byte(`{"or": [{"field": "age", "value": 10}, {"field": "name", "op": "startswith", "value": "C"}]}`), &c))
	require.Len(t, c.Or, 2)
	assert.Equal(t, "age", c.Or[0].Field)
	assert.Equal(t, "startswith", c.Or[1].Op)
	assert.Empty(t, c.And)
}
