package present

import "dosh/internal/core"

const (
	SortColumn    = "transaction_date"
	SortDirection = "desc"

	// SearchPageSize is the page size advertised with search results.
	SearchPageSize = 50
)

// PagePayload is the JSON envelope of a page of transactions.
type PagePayload struct {
	Records         []core.Transaction `json:"records"`
	RecordsReturned int                `json:"recordsReturned"`
	TotalRecords    int                `json:"totalRecords"`
	Sort            string             `json:"sort"`
	Dir             string             `json:"dir"`
	StartIndex      int                `json:"startIndex"`
	PageSize        int                `json:"pageSize"`
}

// NewPagePayload wraps one page of records. records may be nil.
func NewPagePayload(records []core.Transaction, total, start, pageSize int) PagePayload {
	if records == nil {
		records = []core.Transaction{}
	}
	return PagePayload{
		Records:         records,
		RecordsReturned: len(records),
		TotalRecords:    total,
		Sort:            SortColumn,
		Dir:             SortDirection,
		StartIndex:      start,
		PageSize:        pageSize,
	}
}

// SearchPayload wraps search results, which are never paged.
func SearchPayload(records []core.Transaction) PagePayload {
	return NewPagePayload(records, len(records), 0, SearchPageSize)
}

// ErrorPayload is the JSON body returned for rejected requests.
type ErrorPayload struct {
	Error string `json:"ERROR"`
}

// InvalidID is returned when an id parameter is missing or malformed.
var InvalidID = ErrorPayload{Error: "Invalid id"}
