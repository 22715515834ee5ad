package amount

import (
	"errors"
	"math/big"
	"testing"
)

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		human    string
		decimals uint8
		want     string
	}{
		{"0", 18, "0"},
		{"1", 18, "1000000000000000000"},
		{"2.5", 18, "2500000000000000000"},
		// 0.1 is not representable in binary floating point; the exact
		// integer path must still produce the exact base-unit count.
		{"0.1", 18, "100000000000000000"},
		{"0.000000000000000001", 18, "1"},
		{".5", 2, "50"},
		{"+1.25", 2, "125"},
		{"123", 0, "123"},
		{"1000000", 6, "1000000000000"},
		{"1.23456789", 36, "1234567890000000000000000000000000000"},
	}

	for _, tc := range cases {
		got, err := ToBaseUnits(tc.human, tc.decimals)
		if err != nil {
			t.Fatalf("ToBaseUnits(%q, %d): %v", tc.human, tc.decimals, err)
		}
		if got.String() != tc.want {
			t.Errorf("ToBaseUnits(%q, %d) = %s, want %s", tc.human, tc.decimals, got, tc.want)
		}
	}
}

func TestToBaseUnits_Rounding(t *testing.T) {
	cases := []struct {
		human    string
		decimals uint8
		want     string
	}{
		{"1.005", 2, "101"},  // half rounds up
		{"1.004", 2, "100"},  // below half rounds down
		{"0.9999", 2, "100"}, // carries into the integer part
		{"0.5", 0, "1"},
		{"0.4", 0, "0"},
	}

	for _, tc := range cases {
		got, err := ToBaseUnits(tc.human, tc.decimals)
		if err != nil {
			t.Fatalf("ToBaseUnits(%q, %d): %v", tc.human, tc.decimals, err)
		}
		if got.String() != tc.want {
			t.Errorf("ToBaseUnits(%q, %d) = %s, want %s", tc.human, tc.decimals, got, tc.want)
		}
	}
}

func TestToBaseUnits_Invalid(t *testing.T) {
	invalid := []string{"", "-1", "-0.5", "1e18", "0x10", "1.2.3", "abc", ".", "1,5", "NaN", "Inf"}

	for _, s := range invalid {
		if _, err := ToBaseUnits(s, 18); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ToBaseUnits(%q) error = %v, want ErrInvalidAmount", s, err)
		}
	}
}

func TestToHumanUnits(t *testing.T) {
	cases := []struct {
		scaled   string
		decimals uint8
		want     string
	}{
		{"0", 18, "0"},
		{"2500000000000000000", 18, "2.5"},
		{"100000000000000000", 18, "0.1"},
		{"1", 18, "0.000000000000000001"},
		{"123", 0, "123"},
		{"1000000000000", 6, "1000000"},
		{"105", 1, "10.5"},
	}

	for _, tc := range cases {
		v, ok := new(big.Int).SetString(tc.scaled, 10)
		if !ok {
			t.Fatalf("bad test input %q", tc.scaled)
		}
		if got := ToHumanUnits(v, tc.decimals); got != tc.want {
			t.Errorf("ToHumanUnits(%s, %d) = %q, want %q", tc.scaled, tc.decimals, got, tc.want)
		}
	}

	if got := ToHumanUnits(nil, 18); got != "0" {
		t.Errorf("ToHumanUnits(nil) = %q, want 0", got)
	}
}

func TestRoundTrip(t *testing.T) {
	// Amounts expressible exactly in d decimal places must survive a
	// ToBaseUnits -> ToHumanUnits round trip unchanged.
	cases := []struct {
		human    string
		decimals uint8
	}{
		{"1", 0},
		{"0.5", 1},
		{"2.5", 18},
		{"0.1", 18},
		{"123456.654321", 6},
		{"0.000000000000000001", 18},
		{"99999999999999999999", 36},
	}

	for _, tc := range cases {
		scaled, err := ToBaseUnits(tc.human, tc.decimals)
		if err != nil {
			t.Fatalf("ToBaseUnits(%q, %d): %v", tc.human, tc.decimals, err)
		}
		if got := ToHumanUnits(scaled, tc.decimals); got != tc.human {
			t.Errorf("round trip (%q, %d) = %q", tc.human, tc.decimals, got)
		}
	}
}
