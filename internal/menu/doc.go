// Package menu turns a weekly menu document into the facts the bot acts on.
//
// The pipeline is deliberately narrow:
//   - Extract converts raw PDF bytes into lower-cased plain text.
//   - WeekNumber / ValidateWeek read the declared calendar week ("KW 12") and
//     gate stale documents.
//   - DayOf / Match attribute each watched dish to the closest preceding
//     weekday heading. Headings are expected letter-spaced ("m o n t a g"),
//     which is how the published layout extracts.
//
// Nothing here performs I/O or retries; callers decide what a failure means.
package menu
