package facade

import (
	"context"
	"errors"
)

// Source labels reported by reads.
const (
	SourceIndex  = "index"
	SourceLedger = "ledger"
)

// Source is one place a value can be read from.
type Source[T any] struct {
	Name  string
	Fetch func(ctx context.Context) (T, error)
}

// FirstOf tries sources in order and returns the first success together
// with the name of the source that produced it. A failing source hands over
// to the next one; the last source's result, error included, is returned
// as is. Results are never compared or merged.
func FirstOf[T any](ctx context.Context, sources ...Source[T]) (T, string, error) {
	var zero T
	if len(sources) == 0 {
		return zero, "", errors.New("facade: no read sources")
	}
	var (
		v    T
		err  error
		name string
	)
	for _, src := range sources {
		name = src.Name
		v, err = src.Fetch(ctx)
		if err == nil {
			return v, name, nil
		}
	}
	return v, name, err
}
