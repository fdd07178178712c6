package card

import "strings"

// luhnSums maps a digit to its contribution, indexed by whether it sits
// in a doubled position (counting from the right).
var luhnSums = [2][10]int{
	{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
	{0, 2, 4, 6, 8, 1, 3, 5, 7, 9},
}

// DigitsOnly strips every non-digit character from s
func DigitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PassesLuhnChecksum reports whether number passes the Luhn mod-10 check.
// Any non-digit character makes the check fail.
func PassesLuhnChecksum(number string) bool {
	sum := 0
	even := 0
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		sum += luhnSums[even&1][c-'0']
		even++
	}
	return sum%10 == 0
}

// FormatForDisplay inserts spaces into digits for display: every 4 digits
// for 16-digit types, after the 4th and 10th digit for 15-digit types.
// Input whose length does not match the type's number length is returned
// unchanged. Length is counted in runes so masked numbers format too.
func FormatForDisplay(digits string, t Type) string {
	runes := []rune(digits)
	n := t.NumberLength()
	if len(runes) != n {
		return digits
	}

	switch n {
	case 16:
		return insertSpaces(runes, func(i int) bool { return i != 0 && i%4 == 0 })
	case 15:
		return insertSpaces(runes, func(i int) bool { return i == 4 || i == 10 })
	}
	return digits
}

// Format formats a free-form number string for display, inferring the
// card type from its digits. When the digits cannot be formatted the
// input is returned as given.
func Format(s string) string {
	digits := DigitsOnly(s)
	t := Classify(digits)
	n := t.NumberLength()
	if len(digits) == n && (n == 15 || n == 16) {
		return FormatForDisplay(digits, t)
	}
	return s
}

func insertSpaces(runes []rune, before func(i int) bool) string {
	var b strings.Builder
	b.Grow(len(runes) + 4)
	for i, r := range runes {
		if before(i) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
