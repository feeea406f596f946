package dexapi

// Condition is one node of a filter tree. Exactly one of Field, And or Or
// is set; Op defaults to "eq".
type Condition struct {
	Field string      `json:"field,omitempty"`
	Op    string      `json:"op,omitempty"`
	Value interface{} `json:"value,omitempty"`

	And []*Condition `json:"and,omitempty"`
	Or  []*Condition `json:"or,omitempty"`
}

// Query is the JSON query document.
//
// Filter holds keyword conditions ({"age": 10, "ymd__startswith": "2011"})
// and Where an explicit tree; when both are present they are ANDed.
type Query struct {
	Namespace string `json:"namespace"`

	Filter map[string]interface{} `json:"filter"`
	Where  *Condition             `json:"where"`

	OrderBy *OrderBy `json:"order_by"`

	Limit *int `json:"limit"`

	Page     *int `json:"page"`
	PageSize *int `json:"page_size"`
}

const (
	defaultPage = 1
)

func (q Query) GetPage() int {
	if q.Page == nil {
		return defaultPage
	}
	return *q.Page
}

// GetPageSize returns the requested page size or fallback.
func (q Query) GetPageSize(fallback int) int {
	if q.PageSize == nil {
		return fallback
	}
	return *q.PageSize
}

// GetLimit returns the limit and whether one was given.
func (q Query) GetLimit() (int, bool) {
	if q.Limit == nil {
		return 0, false
	}
	return *q.Limit, true
}

// GetOrderBy returns nil when the query leaves ordering to the collection.
func (q Query) GetOrderBy() *OrderBy {
	return q.OrderBy
}
