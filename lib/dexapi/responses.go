package dexapi

type RecordItem struct {
	Namespace string                 `json:"namespace"`
	RecordID  string                 `json:"record_id"`
	Record    map[string]interface{} `json:"record"`
}

type RecordList struct {
	Records []RecordItem `json:"records"`
}

type PageInfo struct {
	Number      int  `json:"number"`
	PageSize    int  `json:"page_size"`
	NumPages    int  `json:"num_pages"`
	Count       int  `json:"count"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

type PageResponse struct {
	RecordList
	Page *PageInfo `json:"page,omitempty"`
}

type LoadStatsResponse struct {
	Namespace   string `json:"namespace"`
	NumLines    int    `json:"num_lines"`
	NumInserted int    `json:"num_inserted"`
	NumError    int    `json:"num_error"`
}
