package duration

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tc := []struct {
		name  string
		input string
		want  int
		ok    bool
	}{
		{name: "seconds only", input: "45", want: 45, ok: true},
		{name: "minutes and seconds", input: "3:45", want: 225, ok: true},
		{name: "reference track", input: "3:43", want: 223, ok: true},
		{name: "hours", input: "1:02:30", want: 3723, ok: true},
		{name: "hours with leading zero minutes", input: "1:03:43", want: 3823, ok: true},
		{name: "padded", input: "  04:05 ", want: 245, ok: true},
		{name: "zero is known", input: "0:00", want: 0, ok: true},
		{name: "long words", input: "3 minutes 43 seconds", want: 223, ok: true},
		{name: "short words", input: "3 mins 43 secs", want: 223, ok: true},
		{name: "minutes only", input: "3 min", want: 180, ok: true},
		{name: "singular", input: "1 minute 1 second", want: 61, ok: true},
		{name: "case insensitive", input: "2 Minutes 5 SECONDS", want: 125, ok: true},
		{name: "seconds words", input: "50 sec", want: 50, ok: true},
		{name: "empty", input: "", want: 0, ok: false},
		{name: "whitespace", input: "   ", want: 0, ok: false},
		{name: "garbage", input: "three minutes", want: 0, ok: false},
		{name: "too many fields", input: "1:2:3:4", want: 0, ok: false},
		{name: "empty field", input: "3:", want: 0, ok: false},
		{name: "negative minutes", input: "-1:00", want: 0, ok: false},
		{name: "negative seconds", input: "-30", want: 0, ok: false},
		{name: "decimal", input: "3.5", want: 0, ok: false},
		{name: "unit only", input: "minutes", want: 0, ok: false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input)
			if got != tt.want || ok != tt.ok {
				t.Errorf("Parse(%q) = (%d, %v), want (%d, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
			if got := ParseSeconds(tt.input); got != tt.want {
				t.Errorf("ParseSeconds(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseColonIdentity(t *testing.T) {
	for h := 0; h < 3; h++ {
		for m := 0; m < 60; m += 7 {
			for s := 0; s < 60; s += 11 {
				want := h*3600 + m*60 + s
				input := Format(want)
				if got, ok := Parse(input); !ok || got != want {
					t.Fatalf("Parse(%q) = (%d, %v), want %d", input, got, ok, want)
				}
			}
		}
	}
}

func TestFormat(t *testing.T) {
	tc := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{59, "0:59"},
		{223, "3:43"},
		{3723, "1:02:03"},
		{-5, "0:00"},
	}

	for _, tt := range tc {
		if got := Format(tt.seconds); got != tt.want {
			t.Errorf("Format(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestHuman(t *testing.T) {
	if got := Human(125 * time.Second); got != "2m 5s" {
		t.Errorf("expected 2m 5s, got %s", got)
	}
	if got := Human(1500 * time.Millisecond); got != "0m 2s" {
		t.Errorf("expected rounding to 0m 2s, got %s", got)
	}
}
