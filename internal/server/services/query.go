package services

import (
	"fmt"
	"math"
	"strings"

	"github.com/dmitrijs2005/gophpress/internal/server/models"
	"github.com/dmitrijs2005/gophpress/internal/server/validation"
)

const (
	DefaultLimit = 30
	MaxLimit     = 100
	DefaultSort  = "-createdAt"
)

// ListQuery is the public list query: free text q, 1-based page, page size
// and a sort field optionally prefixed with "-" for descending order.
type ListQuery struct {
	Q     string `query:"q" validate:"max=200"`
	Page  int    `query:"page" validate:"min=1"`
	Limit int    `query:"limit" validate:"min=1,max=100"`
	Sort  string `query:"sort"`
}

// NewListQuery returns a ListQuery with defaults applied.
func NewListQuery() ListQuery {
	return ListQuery{Page: 1, Limit: DefaultLimit, Sort: DefaultSort}
}

// Params validates q against the sortable fields and converts it into store
// parameters.
func (q ListQuery) Params(sortable ...string) (models.ListParams, error) {
	if err := validation.ValidateStruct(&q); err != nil {
		return models.ListParams{}, err
	}

	if q.Page-1 > math.MaxInt/q.Limit {
		return models.ListParams{}, validation.Invalid("page", "page is out of range")
	}

	sort := q.Sort
	if sort == "" {
		sort = DefaultSort
	}
	desc := strings.HasPrefix(sort, "-")
	field := strings.TrimPrefix(sort, "-")

	known := false
	for _, s := range sortable {
		if s == field {
			known = true
			break
		}
	}
	if !known {
		return models.ListParams{}, validation.Invalid("sort", fmt.Sprintf("sort must be one of: %s", strings.Join(sortable, " ")))
	}

	return models.ListParams{
		Search:    strings.TrimSpace(q.Q),
		Offset:    (q.Page - 1) * q.Limit,
		Limit:     q.Limit,
		SortField: field,
		SortDesc:  desc,
	}, nil
}
