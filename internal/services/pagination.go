package services

import (
	"context"
	"fmt"

	"github.com/desertthunder/spm/internal/shared"
)

// Page is one page of a cursor-paginated listing. Next is null on the last page.
type Page[T any] struct {
	Items []T     `json:"items"`
	Next  *string `json:"next"`
	Total int     `json:"total"`
}

// PageGetter fetches url and decodes the JSON body into v.
type PageGetter interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// FetchAll follows next links from initialURL until the provider stops returning one.
//
// Pages are fetched strictly in sequence and items keep their page order.
// Items for which keep returns false are dropped; a nil keep keeps everything.
// Any request or decode error aborts the fetch without a partial result.
func FetchAll[T any](ctx context.Context, getter PageGetter, initialURL string, keep func(T) bool) ([]T, error) {
	var (
		all  []T
		seen = map[string]bool{}
		next = initialURL
	)

	for next != "" {
		if seen[next] {
			return nil, fmt.Errorf("%w: pagination loop at %s", shared.ErrAPIRequest, next)
		}
		seen[next] = true

		var page Page[T]
		if err := getter.GetJSON(ctx, next, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if keep == nil || keep(item) {
				all = append(all, item)
			}
		}

		if page.Next == nil {
			break
		}
		next = *page.Next
	}

	return all, nil
}
