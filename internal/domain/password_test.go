package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordPolicyValidate(t *testing.T) {
	t.Parallel()

	policy := DefaultPasswordPolicy()
	cases := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "empty", password: "", wantErr: true},
		{name: "too short", password: "abc", wantErr: true},
		{name: "minimum", password: "abcd"},
		{name: "maximum", password: strings.Repeat("a", 100)},
		{name: "too long", password: strings.Repeat("a", 101), wantErr: true},
		{name: "multibyte counted as characters", password: "ééé€"},
		{name: "multibyte over limit", password: strings.Repeat("é", 101), wantErr: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := policy.Validate(tc.password)
			if tc.wantErr {
				if !errors.Is(err, ErrWeakPassword) {
					t.Fatalf("expected ErrWeakPassword, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPasswordPolicyCustomBounds(t *testing.T) {
	t.Parallel()

	policy := PasswordPolicy{MinLength: 8, MaxLength: 10}
	if err := policy.Validate("1234567"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected 7 characters to be rejected, got %v", err)
	}
	if err := policy.Validate("12345678"); err != nil {
		t.Fatalf("expected 8 characters to pass, got %v", err)
	}
	if err := policy.Validate("12345678901"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected 11 characters to be rejected, got %v", err)
	}
}
