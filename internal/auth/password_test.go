package auth

import (
	"strings"
	"testing"

	"github.com/user/papertiger/internal/apperr"
)

func TestValidatePassword(t *testing.T) {
	attrs := UserAttributes{Username: "rosemary", Email: "rosemary@example.com"}

	t.Run("strong password passes", func(t *testing.T) {
		if err := ValidatePassword("Nosferatu1922", attrs); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("all failures are collected", func(t *testing.T) {
		err := ValidatePassword("abc", attrs)
		v, ok := apperr.IsValidation(err)
		if !ok {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		msgs := v.Fields["password"]
		if len(msgs) < 2 {
			t.Fatalf("expected at least two messages, got %v", msgs)
		}
		joined := strings.Join(msgs, " ")
		if !strings.Contains(joined, "too short") {
			t.Errorf("missing length message: %v", msgs)
		}
		if !strings.Contains(joined, "uppercase") {
			t.Errorf("missing strength message: %v", msgs)
		}
	})

	t.Run("numeric password", func(t *testing.T) {
		v, _ := apperr.IsValidation(ValidatePassword("1234567890123", attrs))
		if v == nil || !strings.Contains(strings.Join(v.Fields["password"], " "), "entirely numeric") {
			t.Fatalf("expected numeric failure, got %v", v)
		}
	})

	t.Run("common password ignores case", func(t *testing.T) {
		if msg := CommonPasswordRule("PASSWORD123", attrs); msg == "" {
			t.Fatal("expected common password to be rejected")
		}
	})

	t.Run("similar to username", func(t *testing.T) {
		if msg := SimilarityRule("Rosemary1", attrs); !strings.Contains(msg, "username") {
			t.Fatalf("expected similarity failure, got %q", msg)
		}
	})

	t.Run("similar to email local part", func(t *testing.T) {
		a := UserAttributes{Username: "x", Email: "vertigo58@example.com"}
		if msg := SimilarityRule("Vertigo58", a); !strings.Contains(msg, "email") {
			t.Fatalf("expected similarity failure, got %q", msg)
		}
	})

	t.Run("longer than bcrypt limit", func(t *testing.T) {
		pw := "Zq9" + strings.Repeat("x7Kp", 20)
		v, _ := apperr.IsValidation(ValidatePassword(pw, attrs))
		if v == nil || !strings.Contains(strings.Join(v.Fields["password"], " "), "too long") {
			t.Fatalf("expected length failure, got %v", v)
		}
		if err := ValidatePassword(pw[:MaxPasswordBytes], attrs); err != nil {
			t.Fatalf("72 byte password rejected: %v", err)
		}
	})

	t.Run("custom rule set", func(t *testing.T) {
		if err := ValidatePassword("abc", attrs, NumericRule); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abcd", "abcd", 1},
		{"abcd", "wxyz", 0},
		{"abcd", "bcde", 0.75},
		{"", "", 1},
	}
	for _, tt := range tests {
		if got := similarity(tt.a, tt.b); got != tt.want {
			t.Errorf("similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("Nosferatu1922")
	if err != nil {
		t.Fatal(err)
	}
	if !CheckPassword(hash, "Nosferatu1922") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "nosferatu1922") {
		t.Error("wrong password accepted")
	}
}

func TestConfirmationKey(t *testing.T) {
	plain, hash, err := NewConfirmationKey()
	if err != nil {
		t.Fatal(err)
	}
	if plain == "" || len(hash) != 64 {
		t.Fatalf("plain=%q hash=%q", plain, hash)
	}
	if HashConfirmationKey(plain) != hash {
		t.Error("hash does not match plain key")
	}
	other, _, _ := NewConfirmationKey()
	if other == plain {
		t.Error("keys should be random")
	}
}
