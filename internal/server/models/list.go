package models

// ListParams is a validated, store-ready list query. SortField is a public
// field name (e.g. "createdAt"); each store maps it onto a column and
// rejects names it does not know.
type ListParams struct {
	Search    string
	Offset    int
	Limit     int
	SortField string
	SortDesc  bool
}
