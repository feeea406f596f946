package paginator

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRecords(n int) []record.Record {
	var rv []record.Record
	for i := 1; i <= n; i++ {
		rv = append(rv, record.New("p", uuid.New(), uint64(i), record.Fields{
			"name": record.String(fmt.Sprintf("p%d", i)),
		}))
	}
	return rv
}

func names(records []record.Record) []string {
	rv := []string{}
	for _, r := range records {
		v, _ := r.Get("name")
		s, _ := v.AsString()
		rv = append(rv, s)
	}
	return rv
}

func TestNewRejectsBadPageSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := New(makeRecords(3), size)
		require.Error(t, err)
		assert.True(t, errors.Is(err, dexerror.ErrInvalidPageSize))
	}
}

func TestPage(t *testing.T) {
	p, err := New(makeRecords(5), 2)
	require.NoError(t, err)

	assert.Equal(t, 5, p.Count())
	assert.Equal(t, 3, p.NumPages())

	for _, tc := range []struct {
		n          int
		want       []string
		start, end int
		next, prev bool
	}{
		{n: 1, want: []string{"p1", "p2"}, start: 1, end: 2, next: true},
		{n: 2, want: []string{"p3", "p4"}, start: 3, end: 4, next: true, prev: true},
		{n: 3, want: []string{"p5"}, start: 5, end: 5, prev: true},
		{n: 4, want: []string{}},
		{n: math.MaxInt/2 + 2, want: []string{}},
		{n: math.MaxInt, want: []string{}},
		{n: 0, want: []string{}},
		{n: -3, want: []string{}},
	} {
		t.Run(fmt.Sprintf("page %d", tc.n), func(t *testing.T) {
			page := p.Page(tc.n)
			assert.Equal(t, tc.n, page.Number)
			assert.Equal(t, tc.want, names(page.Records))
			assert.Equal(t, len(tc.want), page.Len())
			assert.Equal(t, tc.start, page.StartIndex())
			assert.Equal(t, tc.end, page.EndIndex())
			assert.Equal(t, tc.next, page.HasNext())
			assert.Equal(t, tc.prev, page.HasPrevious())
		})
	}
}

func TestPagesPartitionTheResult(t *testing.T) {
	records := makeRecords(7)
	p, err := New(records, 3)
	require.NoError(t, err)

	var seen []string
	for n := 1; n <= p.NumPages(); n++ {
		seen = append(seen, names(p.Page(n).Records)...)
	}
	assert.Equal(t, names(records), seen)
}

func TestPageDoesNotAliasNextPage(t *testing.T) {
	records := makeRecords(4)
	p, err := New(records, 2)
	require.NoError(t, err)

	first := p.Page(1).Records
	first = append(first, record.Record{})

	assert.Equal(t, []string{"p3", "p4"}, names(p.Page(2).Records))
	assert.Len(t, first, 3)
}

func TestEmpty(t *testing.T) {
	p, err := New(nil, 10)
	require.NoError(t, err)

	assert.Equal(t, 0, p.Count())
	assert.Equal(t, 0, p.NumPages())

	page := p.Page(1)
	assert.Empty(t, page.Records)
	assert.False(t, page.HasNext())
	assert.False(t, page.HasPrevious())
	assert.Equal(t, 0, page.StartIndex())
}

func TestHugePageSize(t *testing.T) {
	p, err := New(makeRecords(5), math.MaxInt)
	require.NoError(t, err)

	assert.Equal(t, 1, p.NumPages())
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, names(p.Page(1).Records))
	assert.Empty(t, p.Page(2).Records)
}
