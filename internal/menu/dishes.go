package menu

import (
	"strings"
	"time"
)

// Dish is a watched menu item.
type Dish struct {
	ID      string
	Token   string // lower-cased search token
	Message string // may contain {url}
}

// Render returns the notification text with {url} replaced.
func (d Dish) Render(url string) string {
	return strings.ReplaceAll(d.Message, "{url}", url)
}

// Dishes is the watch list in priority order. The first dish served today wins.
var Dishes = []Dish{
	{ID: "schnitzel", Token: "schnitzel", Message: "Schnitzel day! {url}"},
	{ID: "cordon bleu", Token: "cordon bleu", Message: "Cordon bleu day! {url}"},
}

// Weekday is a business-day heading and its day-of-week code.
type Weekday struct {
	Name string
	Day  time.Weekday
}

// Weekdays lists Monday..Friday in order. Codes follow time.Weekday (Sunday = 0).
var Weekdays = []Weekday{
	{Name: "Montag", Day: time.Monday},
	{Name: "Dienstag", Day: time.Tuesday},
	{Name: "Mittwoch", Day: time.Wednesday},
	{Name: "Donnerstag", Day: time.Thursday},
	{Name: "Freitag", Day: time.Friday},
}

// Heading renders the weekday the way it appears in extracted text:
// lower-cased with one space between letters ("m o n t a g").
func (w Weekday) Heading() string {
	rs := []rune(strings.ToLower(w.Name))
	parts := make([]string, len(rs))
	for i, r := range rs {
		parts[i] = string(r)
	}
	return strings.Join(parts, " ")
}
