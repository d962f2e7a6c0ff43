package resolve

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/thread-intel/internal/store"
)

// Outcome is the result of a find-or-create call.
type Outcome int

const (
	Failed Outcome = iota
	Created
	Found
)

func (o Outcome) String() string {
	switch o {
	case Created:
		return "created"
	case Found:
		return "found"
	default:
		return "failed"
	}
}

// steps is the lookup / upsert / insert cascade for one entity.
type steps[T any] struct {
	find   func(ctx context.Context) (*T, error)
	upsert func(ctx context.Context) (*T, error)
	insert func(ctx context.Context) (*T, error)
}

// findOrCreate looks the entity up, then upserts it, then falls back to a
// plain insert. A duplicate on insert means a concurrent writer won, so the
// row is looked up again and reported as Found.
func findOrCreate[T any](ctx context.Context, s steps[T]) (*T, Outcome, error) {
	got, err := s.find(ctx)
	switch {
	case err == nil:
		return got, Found, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, Failed, err
	}

	got, uerr := s.upsert(ctx)
	if uerr == nil {
		return got, Created, nil
	}

	got, err = s.insert(ctx)
	if err == nil {
		return got, Created, nil
	}
	if !store.IsDuplicate(err) {
		return nil, Failed, eris.Wrapf(err, "insert after upsert failed (%v)", uerr)
	}

	got, err = s.find(ctx)
	if err != nil {
		return nil, Failed, eris.Wrap(err, "lookup after duplicate insert")
	}
	return got, Found, nil
}
