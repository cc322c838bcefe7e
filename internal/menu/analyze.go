package menu

import (
	"strings"
	"time"
)

// Unowned is the day code for a dish with no preceding weekday heading.
// It never equals a business-day code.
const Unowned = time.Sunday

// DayOf locates token in text and returns the weekday whose heading is the
// closest one before it. found is false when the token is absent.
//
// Only the first occurrence of token is considered. Headings are scanned from
// Friday back to Monday and the first one that occurs before the token wins,
// which assumes headings appear in weekday order.
func DayOf(text, token string) (day time.Weekday, found bool) {
	pos := strings.Index(text, token)
	if pos < 0 {
		return Unowned, false
	}
	for i := len(Weekdays) - 1; i >= 0; i-- {
		at := strings.Index(text, Weekdays[i].Heading())
		if at >= 0 && at < pos {
			return Weekdays[i].Day, true
		}
	}
	return Unowned, true
}

// Match returns the first dish, in list order, whose computed day is today.
func Match(text string, today time.Weekday, dishes []Dish) (Dish, bool) {
	for _, d := range dishes {
		day, found := DayOf(text, d.Token)
		if !found {
			continue
		}
		if day != Unowned && day == today {
			return d, true
		}
	}
	return Dish{}, false
}

// Document is the normalized text of one fetched menu and its declared week.
type Document struct {
	Text    string
	Week    int
	HasWeek bool
}

// NewDocument normalizes text and records its week marker, if any.
func NewDocument(text string) Document {
	d := Document{Text: Normalize(text)}
	if w, err := WeekNumber(d.Text); err == nil {
		d.Week, d.HasWeek = w, true
	}
	return d
}
