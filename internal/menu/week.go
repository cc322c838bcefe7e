package menu

import (
	"errors"
	"regexp"
	"strconv"
)

// ErrWeekNumberMissing is returned when no "KW <n>" marker is present.
var ErrWeekNumberMissing = errors.New("menu: week number not found")

// \p{Zs} covers the no-break spaces PDF extraction tends to emit between "KW" and the number.
var reWeek = regexp.MustCompile(`(?i)kw[\s\p{Zs}]*(\d{1,2})`)

// WeekNumber returns the first calendar week declared in text.
func WeekNumber(text string) (int, error) {
	m := reWeek.FindStringSubmatch(text)
	if len(m) != 2 {
		return 0, ErrWeekNumberMissing
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, ErrWeekNumberMissing
	}
	return n, nil
}

// ValidateWeek reports whether the document's week equals current.
// Equality is exact; there is no wraparound at year boundaries.
func ValidateWeek(text string, current int) (bool, error) {
	week, err := WeekNumber(text)
	if err != nil {
		return false, err
	}
	return week == current, nil
}
