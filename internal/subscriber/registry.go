package subscriber

import (
	"context"
	"errors"
)

// DefaultPageSize is the page size requested from the store.
const DefaultPageSize = 100

// maxPages guards against a store that never returns an empty cursor.
const maxPages = 10000

var errCursorLoop = errors.New("store returned a repeating cursor")

// Lister returns every active subscriber.
type Lister interface {
	List(ctx context.Context) ([]Subscriber, error)
}

// Registry reads the full subscriber set from a Pager.
type Registry struct {
	pager    Pager
	pageSize int
}

func NewRegistry(p Pager) *Registry {
	return &Registry{pager: p, pageSize: DefaultPageSize}
}

// WithPageSize returns a copy of r using n records per page.
func (r *Registry) WithPageSize(n int) *Registry {
	cp := *r
	if n > 0 {
		cp.pageSize = n
	}
	return &cp
}

// List requests every page and combines the result.
// Any store failure is returned as *UnavailableError; nothing is retried.
func (r *Registry) List(ctx context.Context) ([]Subscriber, error) {
	if r == nil || r.pager == nil {
		return nil, &UnavailableError{Err: errors.New("no subscriber store configured")}
	}
	var (
		out    []Subscriber
		cursor string
	)
	for page := 0; page < maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, &UnavailableError{Err: err}
		}
		items, next, err := r.pager.ListSubscribers(ctx, cursor, r.pageSize)
		if err != nil {
			return nil, &UnavailableError{Err: err}
		}
		out = append(out, items...)
		if next == "" {
			return out, nil
		}
		if next == cursor {
			return nil, &UnavailableError{Err: errCursorLoop}
		}
		cursor = next
	}
	return nil, &UnavailableError{Err: errCursorLoop}
}

// Static is a Lister over a fixed slice.
type Static []Subscriber

func (s Static) List(context.Context) ([]Subscriber, error) {
	return append([]Subscriber(nil), s...), nil
}
