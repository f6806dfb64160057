package core

import (
	"errors"
	"testing"
)

func TestParseGrams(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"150", 150, true},
		{"12,5", 12.5, true},
		{"12.5", 12.5, true},
		{" 80 g ", 80, true},
		{"200ml", 200, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseGrams(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("%q expected validation error, got %v", tc.in, err)
			}
		}
	}
}

func TestFormatGrams(t *testing.T) {
	if got := FormatGrams(80); got != "80" {
		t.Errorf("FormatGrams(80) = %q", got)
	}
	if got := FormatGrams(12.5); got != "12.5" {
		t.Errorf("FormatGrams(12.5) = %q", got)
	}
}

func TestPerHundred(t *testing.T) {
	for _, s := range []string{"100g", "100 g", "", "100ml", "100 G"} {
		if !PerHundred(s) {
			t.Errorf("PerHundred(%q) = false", s)
		}
	}
	for _, s := range []string{"30g", "per serving", "1 biscuit"} {
		if PerHundred(s) {
			t.Errorf("PerHundred(%q) = true", s)
		}
	}
}

func TestErrorTaxonomy(t *testing.T) {
	err := InterpretationError("no foods detected", nil)
	if !errors.Is(err, ErrEstimation) || !errors.Is(err, ErrInterpretation) {
		t.Fatalf("interpretation error does not match its sentinels: %v", err)
	}
	if errors.Is(err, ErrScan) {
		t.Fatal("interpretation error matched ErrScan")
	}
	if !errors.Is(ScanError("unreadable", nil), ErrScan) {
		t.Fatal("scan error does not match ErrScan")
	}
	var pe error = &PersistenceReadError{Key: "goals", Err: errors.New("boom")}
	if !errors.Is(pe, ErrPersistenceRead) {
		t.Fatal("persistence error does not match ErrPersistenceRead")
	}
}
