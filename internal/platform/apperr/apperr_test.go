package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestToHTTPMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"authentication", ErrAuthentication, http.StatusUnauthorized},
		{"not found", ErrNotFound, http.StatusNotFound},
		{"conflict", ErrSchedulingConflict, http.StatusConflict},
		{"validation", Validation("start_utc", "must precede end_utc"), http.StatusUnprocessableEntity},
		{"isolation", ErrIsolationViolation, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			he := ToHTTP(tc.err)
			if he.Code != tc.code {
				t.Errorf("got %d, want %d", he.Code, tc.code)
			}
		})
	}
}

func TestToHTTPWrapped(t *testing.T) {
	err := fmt.Errorf("create appointment: %w", ErrSchedulingConflict)
	if he := ToHTTP(err); he.Code != http.StatusConflict {
		t.Errorf("wrapped conflict mapped to %d", he.Code)
	}
	if !IsConflict(err) {
		t.Error("IsConflict failed on wrapped error")
	}
}

func TestValidationError(t *testing.T) {
	err := Validation("day_of_week", "must be between 0 and 6")
	if !IsValidation(err) {
		t.Fatal("IsValidation returned false")
	}
	want := "validation failed: day_of_week: must be between 0 and 6"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if IsValidation(errors.New("other")) {
		t.Error("IsValidation matched a plain error")
	}
}

func TestNotFoundIndistinguishable(t *testing.T) {
	// Cross-tenant misses and true misses must produce identical responses.
	miss := ToHTTP(fmt.Errorf("get patient: %w", ErrNotFound))
	foreign := ToHTTP(fmt.Errorf("get patient: tenant mismatch: %w", ErrNotFound))
	if miss.Code != foreign.Code || miss.Message != foreign.Message {
		t.Errorf("responses differ: %v vs %v", miss, foreign)
	}
}
