package menu

import (
	"errors"
	"testing"
)

func TestWeekNumber(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "single digit", text: "wochenkarte KW5 noon", want: 5},
		{name: "space tolerated", text: "Wochenkarte KW 12", want: 12},
		{name: "lower case", text: "kw07 - 11.02. bis 15.02.", want: 7},
		{name: "first match wins", text: "kw 3 ... kw 4", want: 3},
		{name: "third digit ignored", text: "kw123", want: 12},
		{name: "no-break space", text: "kw\u00a012", want: 12},
		{name: "narrow no-break space", text: "Wochenkarte KW\u202f12", want: 12},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := WeekNumber(tt.text)
			if err != nil {
				t.Fatalf("WeekNumber(%q) error: %v", tt.text, err)
			}
			if got != tt.want {
				t.Fatalf("WeekNumber(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestWeekNumberMissing(t *testing.T) {
	t.Parallel()
	for _, text := range []string{"", "wochenkarte", "kw", "kw x 12"} {
		if _, err := WeekNumber(text); !errors.Is(err, ErrWeekNumberMissing) {
			t.Fatalf("WeekNumber(%q) err = %v, want ErrWeekNumberMissing", text, err)
		}
	}
}

func TestValidateWeek(t *testing.T) {
	t.Parallel()
	ok, err := ValidateWeek("kw 7", 7)
	if err != nil || !ok {
		t.Fatalf("ValidateWeek same week = %v, %v", ok, err)
	}
	ok, err = ValidateWeek("kw 52", 1)
	if err != nil || ok {
		t.Fatalf("ValidateWeek year boundary = %v, %v; want false, nil", ok, err)
	}
	if _, err := ValidateWeek("no marker", 1); !errors.Is(err, ErrWeekNumberMissing) {
		t.Fatalf("ValidateWeek missing err = %v", err)
	}
}
