package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	err := Wrap(stdErrors.New("gateway down"), "Failed to send notification")

	if err.Error() != "Failed to send notification: gateway down" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if err.Code != CodeInternal {
		t.Fatalf("expected %s, got %s", CodeInternal, err.Code)
	}
}

func TestWithInternalCopies(t *testing.T) {
	with := ErrInternal.WithInternal(stdErrors.New("oops"))

	if with == ErrInternal {
		t.Fatal("expected WithInternal to return a copy")
	}
	if ErrInternal.Internal != nil {
		t.Fatal("expected sentinel to remain unchanged")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewInvalidArgument("title is required"))

	if !stdErrors.Is(err, ErrInvalidArgument) {
		t.Fatal("expected wrapped invalid argument to match sentinel")
	}
	if stdErrors.Is(err, ErrUnauthenticated) {
		t.Fatal("did not expect match against a different code")
	}
}

func TestFromError(t *testing.T) {
	if out := FromError(ErrNotFound); out != ErrNotFound {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	out := FromError(stdErrors.New("raw"))
	if out.Code != CodeInternal || out.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected internal error, got %s/%d", out.Code, out.StatusCode)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
	if FromError(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}

func TestNewInvalidArgument(t *testing.T) {
	err := NewInvalidArgument("Missing required fields: recipientIds, title, body")
	if err.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
	if err.Message != "Missing required fields: recipientIds, title, body" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
}
