package command

import (
	"testing"
	"time"
)

func TestParseTimespan(t *testing.T) {
	cases := []struct {
		input string
		want  time.Duration
	}{
		{"36500.00:00:00", 36500 * 24 * time.Hour},
		{"01:30:00", 90 * time.Minute},
		{"00:00:01.5", 1500 * time.Millisecond},
		{"1.02:03:04.0000005", 24*time.Hour + 2*time.Hour + 3*time.Minute + 4*time.Second + 500*time.Nanosecond},
		{"-02:00", -2 * time.Hour},
		{"7", 7 * 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"12h", 12 * time.Hour},
		{"1.5h", 90 * time.Minute},
		{"30m", 30 * time.Minute},
		{"15s", 15 * time.Second},
		{"100ms", 100 * time.Millisecond},
	}
	for _, tc := range cases {
		got, err := ParseTimespan(tc.input)
		if err != nil {
			t.Fatalf("%q: %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %s, got %s", tc.input, tc.want, got)
		}
	}
}

func TestParseTimespanRejectsInvalid(t *testing.T) {
	for _, input := range []string{"", "forever", "25:00:00", "00:61:00", "1.2.3", "10 weeks"} {
		if _, err := ParseTimespan(input); err == nil {
			t.Fatalf("%q: expected error", input)
		}
	}
}

func TestFormatTimespan(t *testing.T) {
	cases := []struct {
		input time.Duration
		want  string
	}{
		{0, "00:00:00"},
		{36500 * 24 * time.Hour, "36500.00:00:00"},
		{90 * time.Minute, "01:30:00"},
		{1500 * time.Millisecond, "00:00:01.5000000"},
		{-2 * time.Hour, "-02:00:00"},
	}
	for _, tc := range cases {
		if got := FormatTimespan(tc.input); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.input, tc.want, got)
		}
	}
}
