package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func newGroup(maxFailures int) *FallbackGroup[string] {
	fg := NewFallbackGroup("primary", "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: maxFailures, ResetTimeout: time.Hour},
	})
	fg.AddFallback("secondary", "secondary")
	return fg
}

func TestFallbackGroup_Execute(t *testing.T) {
	tests := []struct {
		name      string
		failing   map[string]bool
		wantCalls []string
		wantErr   error
	}{
		{
			name:      "primary succeeds",
			wantCalls: []string{"primary"},
		},
		{
			name:      "primary fails",
			failing:   map[string]bool{"primary": true},
			wantCalls: []string{"primary", "secondary"},
		},
		{
			name:      "all fail",
			failing:   map[string]bool{"primary": true, "secondary": true},
			wantCalls: []string{"primary", "secondary"},
			wantErr:   ErrAllFailed,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fg := newGroup(3)
			var calls []string
			err := fg.Execute(func(v string) error {
				calls = append(calls, v)
				if tc.failing[v] {
					return errTest
				}
				return nil
			})
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if diff := cmp.Diff(tc.wantCalls, calls); diff != "" {
				t.Errorf("calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFallbackGroup_SkipsOpenEntry(t *testing.T) {
	fg := newGroup(2)
	for range 2 {
		_ = fg.Execute(func(v string) error {
			if v == "primary" {
				return errTest
			}
			return nil
		})
	}

	want := []EntryStatus{{Name: "primary", State: StateOpen}, {Name: "secondary", State: StateClosed}}
	if diff := cmp.Diff(want, fg.Status()); diff != "" {
		t.Errorf("Status mismatch (-want +got):\n%s", diff)
	}

	var called []string
	if err := fg.Execute(func(v string) error { called = append(called, v); return nil }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"secondary"}, called); diff != "" {
		t.Errorf("open primary was called (-want +got):\n%s", diff)
	}
}

func TestFallbackGroup_StopsOnCancellation(t *testing.T) {
	fg := newGroup(3)
	var calls int
	err := fg.Execute(func(string) error {
		calls++
		return fmt.Errorf("crossref: %w", context.Canceled)
	})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want bare cancellation", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestExecuteWithResult(t *testing.T) {
	fg := NewFallbackGroup(10, "ten", FallbackConfig{})
	fg.AddFallback("twenty", 20)
	if fg.Len() != 2 {
		t.Fatalf("Len = %d, want 2", fg.Len())
	}

	result, err := ExecuteWithResult(fg, func(v int) (string, error) {
		if v == 10 {
			return "", errTest
		}
		return fmt.Sprintf("from-%d", v), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "from-20" {
		t.Errorf("result = %q, want from-20", result)
	}

	_, err = ExecuteWithResult(fg, func(int) (string, error) { return "", errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}
