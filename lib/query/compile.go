package query

import (
	"errors"
	"fmt"

	"github.com/steinarvk/recquery/lib/dexapi"
	"github.com/steinarvk/recquery/lib/dexerror"
	"github.com/steinarvk/recquery/lib/paginator"
	"github.com/steinarvk/recquery/lib/predicate"
	"github.com/steinarvk/recquery/lib/store"
)

// CompiledQuery is a query document bound to a collection.
type CompiledQuery struct {
	Query

	// Paged is set when the document asked for a page.
	Paged    bool
	Page     int
	PageSize int
}

func invalidQuery(msg string) error {
	return dexerror.New(
		dexerror.WithKind(dexerror.KindInvalidQuery),
		dexerror.WithPublicMessage(msg),
	)
}

// CompileQuery binds doc to its namespace in s. Keyword filters and the
// where tree are ANDed. defaultPageSize applies when the document names a
// page but no page size.
func CompileQuery(s *store.Store, doc *dexapi.Query, defaultPageSize int) (*CompiledQuery, error) {
	if doc == nil {
		return nil, errors.New("nil query")
	}
	if doc.Namespace == "" {
		return nil, invalidQuery("query has no namespace")
	}

	coll, ok := s.Lookup(doc.Namespace)
	if !ok {
		return nil, dexerror.New(
			dexerror.WithKind(dexerror.KindInvalidQuery),
			dexerror.WithPublicMessage(fmt.Sprintf("unknown namespace %q", doc.Namespace)),
			dexerror.WithPublicData("namespace", doc.Namespace),
		)
	}

	q := New(coll)

	if len(doc.Filter) > 0 {
		p, err := predicate.FromFilterMap(coll.Schema(), doc.Filter)
		if err != nil {
			return nil, err
		}
		q = q.Filter(p)
	}

	if doc.Where != nil {
		p, err := predicate.Parse(coll.Schema(), doc.Where)
		if err != nil {
			return nil, err
		}
		q = q.Filter(p)
	}

	if o := doc.GetOrderBy(); o != nil {
		direction := Ascending
		if o.Descending {
			direction = Descending
		}
		q = q.OrderBy(o.Field, direction)
	}

	if n, ok := doc.GetLimit(); ok {
		if n < 0 {
			return nil, invalidQuery("limit cannot be negative")
		}
		q = q.Limit(n)
	}

	compiled := &CompiledQuery{Query: q}

	if doc.Page != nil || doc.PageSize != nil {
		compiled.Paged = true
		compiled.Page = doc.GetPage()
		compiled.PageSize = doc.GetPageSize(defaultPageSize)
	}

	return compiled, nil
}

// Run executes the compiled query and renders the response document.
func (c *CompiledQuery) Run() (*dexapi.PageResponse, error) {
	records, err := c.Execute()
	if err != nil {
		return nil, err
	}

	resp := &dexapi.PageResponse{}

	if c.Paged {
		pager, err := paginator.New(records, c.PageSize)
		if err != nil {
			return nil, err
		}
		page := pager.Page(c.Page)
		records = page.Records
		resp.Page = &dexapi.PageInfo{
			Number:      page.Number,
			PageSize:    pager.PageSize(),
			NumPages:    pager.NumPages(),
			Count:       pager.Count(),
			HasNext:     page.HasNext(),
			HasPrevious: page.HasPrevious(),
		}
	}

	resp.Records = make([]dexapi.RecordItem, 0, len(records))
	for _, r := range records {
		resp.Records = append(resp.Records, dexapi.RecordItem{
			Namespace: r.Namespace,
			RecordID:  r.ID.String(),
			Record:    r.ToMap(),
		})
	}

	return resp, nil
}
