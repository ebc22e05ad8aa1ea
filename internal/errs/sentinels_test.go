package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidationError_IsAndMessage(t *testing.T) {
	t.Parallel()

	err := Invalid("rating", "must be between %d and %d", 1, 5)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want errors.Is ErrValidation")
	}
	if got := err.Error(); got != "validation: rating: must be between 1 and 5" {
		t.Fatalf("message: %q", got)
	}

	wrapped := fmt.Errorf("generate: %w", err)
	var ve *ValidationError
	if !errors.As(wrapped, &ve) || ve.Field != "rating" {
		t.Fatalf("errors.As through wrap failed: %v", wrapped)
	}

	noField := &ValidationError{Msg: "empty body"}
	if noField.Error() != "validation: empty body" {
		t.Fatalf("message without field: %q", noField.Error())
	}
}
