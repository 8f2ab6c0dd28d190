package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizeLogin(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Roger", want: "roger"},
		{in: "  jane.doe@corp ", want: "jane.doe@corp"},
		{in: "o'brien_-x", want: "o'brien_-x"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "has space", wantErr: true},
		{in: "semi;colon", wantErr: true},
		{in: strings.Repeat("a", 50), want: strings.Repeat("a", 50)},
		{in: strings.Repeat("a", 51), wantErr: true},
	}
	for _, tc := range cases {
		got, err := NormalizeLogin(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("NormalizeLogin(%q): expected ErrInvalidInput, got %v", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeLogin(%q): unexpected error %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeLogin(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
