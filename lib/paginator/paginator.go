// Package paginator splits an ordered result into fixed-size pages.
package paginator

import (
	"fmt"

	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/record"
)

type Paginator struct {
	records  []record.Record
	pageSize int
}

func New(records []record.Record, pageSize int) (*Paginator, error) {
	if pageSize <= 0 {
		return nil, dexerror.New(
			dexerror.WithKind(dexerror.KindInvalidPageSize),
			dexerror.WithPublicMessage(fmt.Sprintf("page size must be positive, got %d", pageSize)),
			dexerror.WithPublicData("page_size", pageSize),
		)
	}
	return &Paginator{
		records:  records,
		pageSize: pageSize,
	}, nil
}

func (p *Paginator) PageSize() int {
	return p.pageSize
}

// Count is the number of records across all pages.
func (p *Paginator) Count() int {
	return len(p.records)
}

// NumPages is zero when there are no records.
func (p *Paginator) NumPages() int {
	if len(p.records) == 0 {
		return 0
	}
	return (len(p.records)-1)/p.pageSize + 1
}

// Page returns page n, counting from 1. Pages outside [1, NumPages] are empty.
func (p *Paginator) Page(n int) Page {
	page := Page{Number: n, paginator: p}
	if n < 1 || n > p.NumPages() {
		return page
	}

	lo := (n - 1) * p.pageSize
	if lo >= len(p.records) {
		return page
	}
	hi := lo + p.pageSize
	if hi > len(p.records) {
		hi = len(p.records)
	}

	page.Records = p.records[lo:hi:hi]
	return page
}

type Page struct {
	Number  int
	Records []record.Record

	paginator *Paginator
}

func (p Page) Len() int {
	return len(p.Records)
}

func (p Page) HasNext() bool {
	return p.Number >= 1 && p.Number < p.paginator.NumPages()
}

// HasPrevious is false for pages outside [1, NumPages].
func (p Page) HasPrevious() bool {
	return p.Number > 1 && p.Number <= p.paginator.NumPages()
}

// StartIndex is the 1-based position of the first record on the page, or 0
// for an empty page.
func (p Page) StartIndex() int {
	if len(p.Records) == 0 {
		return 0
	}
	return (p.Number-1)*p.paginator.pageSize + 1
}

// EndIndex is the 1-based position of the last record on the page, or 0 for
// an empty page.
func (p Page) EndIndex() int {
	if len(p.Records) == 0 {
		return 0
	}
	return p.StartIndex() + len(p.Records) - 1
}
