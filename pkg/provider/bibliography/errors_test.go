package bibliography_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
)

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCheckResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status      int
		wantNil     bool
		auth        bool
		rateLimited bool
		notFound    bool
	}{
		{status: 200, wantNil: true},
		{status: 204, wantNil: true},
		{status: 401, auth: true},
		{status: 403, auth: true},
		{status: 404, notFound: true},
		{status: 429, rateLimited: true},
		{status: 500},
		{status: 503},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			t.Parallel()
			err := bibliography.CheckResponse("test", response(tc.status, "boom"))
			if tc.wantNil {
				if err != nil {
					t.Fatalf("CheckResponse(%d) = %v, want nil", tc.status, err)
				}
				return
			}
			if err == nil {
				t.Fatalf("CheckResponse(%d) = nil, want error", tc.status)
			}
			if got := bibliography.IsAuthError(err); got != tc.auth {
				t.Errorf("IsAuthError(%v) = %v, want %v", err, got, tc.auth)
			}
			if got := bibliography.IsRateLimited(err); got != tc.rateLimited {
				t.Errorf("IsRateLimited(%v) = %v, want %v", err, got, tc.rateLimited)
			}
			if got := bibliography.IsNotFound(err); got != tc.notFound {
				t.Errorf("IsNotFound(%v) = %v, want %v", err, got, tc.notFound)
			}
		})
	}
}

func TestCheckResponse_APIErrorCarriesBody(t *testing.T) {
	t.Parallel()

	err := bibliography.CheckResponse("crossref", response(502, "  bad gateway\n"))
	var apiErr *bibliography.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("CheckResponse(502) = %T, want *APIError", err)
	}
	if apiErr.Message != "bad gateway" {
		t.Errorf("Message = %q, want %q", apiErr.Message, "bad gateway")
	}
	if want := "crossref: API error (status 502): bad gateway"; apiErr.Error() != want {
		t.Errorf("Error() = %q, want %q", apiErr.Error(), want)
	}
}

func TestErrorHelpers_WrappedAPIError(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("lookup: %w", &bibliography.APIError{Provider: "x", StatusCode: 429})
	if !bibliography.IsRateLimited(err) {
		t.Error("IsRateLimited(wrapped 429) = false, want true")
	}
	if bibliography.IsAuthError(err) {
		t.Error("IsAuthError(wrapped 429) = true, want false")
	}
}

func TestLimit(t *testing.T) {
	t.Parallel()

	for in, want := range map[int]int{-1: 5, 0: 5, 1: 1, 20: 20} {
		if got := bibliography.Limit(in); got != want {
			t.Errorf("Limit(%d) = %d, want %d", in, got, want)
		}
	}
}
