package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusFromError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("contact %d", 1), http.StatusNotFound},
		{InvalidArgument("bad"), http.StatusBadRequest},
		{Conflict("busy"), http.StatusConflict},
		{fmt.Errorf("wrapped: %w", ErrUnauthorized), http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{Internal("op", fmt.Errorf("boom")), http.StatusInternalServerError},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatusFromError(tc.err); got != tc.want {
			t.Fatalf("HTTPStatusFromError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestInternalKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Internal("create contact", cause)

	if !Is(err, ErrInternal) || !Is(err, cause) {
		t.Fatalf("Internal must wrap both ErrInternal and the cause: %v", err)
	}
}

func TestNewAPIError(t *testing.T) {
	err := NewAPIError("contact not found", http.StatusNotFound)
	if err.Error() != "contact not found" || err.Code != http.StatusNotFound {
		t.Fatalf("api error = %+v", err)
	}
}
