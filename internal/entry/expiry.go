package entry

import (
	"fmt"
	"slices"
	"strings"

	"github.com/zombor/cardscan/internal/card"
)

// expiryLength is len("MM/YY")
const expiryLength = 5

// Expiry validates an MM/YY expiry field
type Expiry struct {
	month      int
	year       int
	fullLength bool
	clock      card.TimeSource
}

// NewExpiry returns an empty expiry validator reading the wall clock
func NewExpiry() *Expiry {
	return NewExpiryWithClock(card.SystemTime{})
}

// NewExpiryWithClock returns an empty expiry validator using clock as "now"
func NewExpiryWithClock(clock card.TimeSource) *Expiry {
	return &Expiry{clock: clock}
}

// NewExpiryWithValue returns a validator pre-filled with a month and year,
// typically from a scan. Two-digit years are placed in the 2000s.
func NewExpiryWithValue(month, year int, clock card.TimeSource) *Expiry {
	if year < 2000 {
		year += 2000
	}
	return &Expiry{
		month:      month,
		year:       year,
		fullLength: month > 0 && year > 0,
		clock:      clock,
	}
}

// Filter pads a leading month digit above 1 with a zero, inserts the "/"
// after the month, and rejects impossible months and overlong input.
func (v *Expiry) Filter(current string, edit Edit) Outcome {
	edit = clamp(current, edit)
	if edit.Text == "" {
		return accepted(edit)
	}

	result := []byte(keepDigitsAndSlash(edit.Text))
	if len(result) == 0 {
		return rejected()
	}

	if edit.Start == 0 && '1' < result[0] && result[0] <= '9' {
		result = append([]byte{'0'}, result...)
	}

	end := len(result)
	replen := edit.End - edit.Start
	if edit.Start-replen <= 2 && edit.Start+end-replen >= 2 {
		loc := 2 - edit.Start
		if loc == end || (loc >= 0 && loc < end && result[loc] != '/') {
			result = slices.Insert(result, loc, '/')
		}
	}

	updated := splice(current, edit.Start, edit.End, string(result))

	if len(updated) >= 1 && (updated[0] < '0' || updated[0] > '1') {
		return rejected()
	}
	if len(updated) >= 2 {
		if updated[0] != '0' && updated[1] > '2' {
			return rejected()
		}
		if updated[0] == '0' && updated[1] == '0' {
			return rejected()
		}
	}
	if len(updated) > expiryLength {
		return rejected()
	}

	return replaced(edit, string(result))
}

// AfterEdit parses the buffer into a month and year
func (v *Expiry) AfterEdit(buffer string) string {
	v.month, v.year = 0, 0
	v.fullLength = len(buffer) >= expiryLength

	if month, year, ok := card.ParseExpiry(buffer); ok {
		v.month, v.year = month, year
	}
	return buffer
}

// Value returns the expiry as MM/YY
func (v *Expiry) Value() string {
	return fmt.Sprintf("%02d/%02d", v.month, v.year%100)
}

// Month returns the parsed month, or 0
func (v *Expiry) Month() int {
	return v.month
}

// Year returns the parsed four-digit year, or 0
func (v *Expiry) Year() int {
	return v.year
}

// HasFullLength reports whether a full MM/YY has been entered
func (v *Expiry) HasFullLength() bool {
	return v.fullLength
}

// IsValid reports whether the parsed date is a current expiry date
func (v *Expiry) IsValid() bool {
	return card.IsDateValid(v.month, v.year, v.clock.Now())
}

func keepDigitsAndSlash(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '/' || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}
