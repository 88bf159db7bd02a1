package shared

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ═══════════════════════════════════════════════════════════════════════════
// Date Value Object
// ═══════════════════════════════════════════════════════════════════════════

// DateLayout is the calendar-day format used everywhere a game date appears.
const DateLayout = "2006-01-02"

// Date is a calendar day in YYYY-MM-DD form. The zero value is the empty string.
// Dates compare correctly as strings.
type Date string

// String returns the string representation.
func (d Date) String() string {
	return string(d)
}

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool {
	return d == ""
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	t, _ := time.Parse(DateLayout, string(d))
	return t
}

// ParseDate validates and normalizes a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", WrapError("shared", "ParseDate", ErrInvalidFormat, "date must be YYYY-MM-DD", err)
	}
	return Date(t.Format(DateLayout)), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank and Point Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Rank is a player's finishing position within one round, 1 (best) to 4.
type Rank int

const (
	FirstPlace  Rank = 1
	FourthPlace Rank = 4
)

// IsValid checks if the rank is a seat position of a four-player round.
func (r Rank) IsValid() bool {
	return r >= FirstPlace && r <= FourthPlace
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// Point is the league point value awarded for a rank.
type Point int

// Int returns the underlying int value.
func (p Point) Int() int {
	return int(p)
}

// ═══════════════════════════════════════════════════════════════════════════
// Player Name Value Object
// ═══════════════════════════════════════════════════════════════════════════

const maxPlayerNameLength = 50

// NewPlayerName trims and validates a display name.
func NewPlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxPlayerNameLength {
		return "", ErrPlayerNameInvalid
	}
	return name, nil
}
