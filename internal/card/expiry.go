package card

import (
	"strconv"
	"time"
)

// ExpiryMaxFutureYears is how many years ahead an expiry date may lie
const ExpiryMaxFutureYears = 15

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the wall clock
type SystemTime struct{}

// Now returns time.Now()
func (SystemTime) Now() time.Time {
	return time.Now()
}

// IsDateValid reports whether month/year is a current expiry date as of
// now: not in the past and no more than ExpiryMaxFutureYears ahead.
func IsDateValid(month, year int, now time.Time) bool {
	if month < 1 || month > 12 {
		return false
	}

	thisYear := now.Year()
	thisMonth := int(now.Month())

	if year < thisYear {
		return false
	}
	if year == thisYear && month < thisMonth {
		return false
	}
	if year > thisYear+ExpiryMaxFutureYears {
		return false
	}
	return true
}

// ParseExpiry reads an MMYY or MMYYYY date from s, ignoring non-digits.
// Two-digit years are placed in the 2000s.
func ParseExpiry(s string) (month, year int, ok bool) {
	digits := DigitsOnly(s)

	switch len(digits) {
	case 4, 6:
	default:
		return 0, 0, false
	}

	month, err := strconv.Atoi(digits[:2])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, false
	}
	year, err = strconv.Atoi(digits[2:])
	if err != nil {
		return 0, 0, false
	}
	if len(digits) == 4 {
		year += 2000
	}
	return month, year, true
}

// IsDateStringValid parses s with ParseExpiry and checks it with IsDateValid
func IsDateStringValid(s string, now time.Time) bool {
	month, year, ok := ParseExpiry(s)
	if !ok {
		return false
	}
	return IsDateValid(month, year, now)
}
