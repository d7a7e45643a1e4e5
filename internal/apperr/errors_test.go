package apperr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidationError(t *testing.T) {
	t.Run("collects messages per field", func(t *testing.T) {
		v := NewValidationError("password", "too short")
		v.Add("password", "needs a digit")
		v.Add("email", "invalid")

		if got := len(v.Fields["password"]); got != 2 {
			t.Errorf("password messages = %d, want 2", got)
		}
		msg := v.Error()
		if !strings.HasPrefix(msg, "validation failed: email: invalid; password:") {
			t.Errorf("Error() = %q, fields should be sorted", msg)
		}
	})

	t.Run("detected through wrapping", func(t *testing.T) {
		err := fmt.Errorf("register: %w", NewValidationError("username", "taken"))
		v, ok := IsValidation(err)
		if !ok {
			t.Fatal("IsValidation() = false, want true")
		}
		if v.Fields["username"][0] != "taken" {
			t.Errorf("unexpected fields %v", v.Fields)
		}
	})

	t.Run("plain errors are not validation errors", func(t *testing.T) {
		if _, ok := IsValidation(errors.New("boom")); ok {
			t.Error("IsValidation() = true for plain error")
		}
		if !(&ValidationError{}).Empty() {
			t.Error("zero ValidationError should be empty")
		}
	})
}
