package util

import (
	"encoding/json"
	"testing"
)

func TestToFloat(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{"98.5", 98.5, true},
		{" 7 ", 7, true},
		{json.Number("1000"), 1000, true},
		{12.25, 12.25, true},
		{"", 0, false},
		{"n/a", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := ToFloat(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("ToFloat(%v) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestToFloatRejectsNonFinite(t *testing.T) {
	for _, s := range []string{"NaN", "Inf", "-Inf", "1e400"} {
		if _, ok := ToFloat(s); ok {
			t.Fatalf("ToFloat(%q) should fail", s)
		}
	}
}
