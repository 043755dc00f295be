package facade

import (
	"context"
	"errors"
	"testing"
)

func TestFirstOf(t *testing.T) {
	ctx := context.Background()
	errIndex := errors.New("index down")
	errLedger := errors.New("ledger down")

	calls := map[string]int{}
	src := func(name string, v int, err error) Source[int] {
		return Source[int]{Name: name, Fetch: func(context.Context) (int, error) {
			calls[name]++
			return v, err
		}}
	}

	tests := []struct {
		name       string
		sources    []Source[int]
		wantV      int
		wantSource string
		wantErr    error
		wantCalls  map[string]int
	}{
		{"first wins", []Source[int]{src("a", 1, nil), src("b", 2, nil)}, 1, "a", nil, map[string]int{"a": 1}},
		{"falls back", []Source[int]{src("a", 0, errIndex), src("b", 2, nil)}, 2, "b", nil, map[string]int{"a": 1, "b": 1}},
		{"last error returned unchanged", []Source[int]{src("a", 0, errIndex), src("b", 0, errLedger)}, 0, "b", errLedger, map[string]int{"a": 1, "b": 1}},
		{"single source", []Source[int]{src("b", 3, nil)}, 3, "b", nil, map[string]int{"b": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls = map[string]int{}
			v, source, err := FirstOf(ctx, tt.sources...)
			if v != tt.wantV || source != tt.wantSource || !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Errorf("FirstOf = %d, %q, %v; want %d, %q, %v", v, source, err, tt.wantV, tt.wantSource, tt.wantErr)
			}
			for name, n := range tt.wantCalls {
				if calls[name] != n {
					t.Errorf("source %s called %d times, want %d", name, calls[name], n)
				}
			}
			if len(calls) != len(tt.wantCalls) {
				t.Errorf("calls = %v, want %v", calls, tt.wantCalls)
			}
		})
	}

	if _, _, err := FirstOf[int](ctx); err == nil {
		t.Error("expected an error without sources")
	}
}
