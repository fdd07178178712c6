package card

import (
	"strconv"
	"strings"
)

// Type identifies a card brand, or one of the two non-brand
// classification outcomes.
type Type int

const (
	Unknown Type = iota
	InsufficientDigits
	AmEx
	DinersClub
	Discover
	JCB
	MasterCard
	Visa
	Maestro
)

// typeInfo holds the fixed per-type attributes
type typeInfo struct {
	name         string
	numberLength int
	cvvLength    int
}

var types = map[Type]typeInfo{
	AmEx:       {name: "AmEx", numberLength: 15, cvvLength: 4},
	DinersClub: {name: "DinersClub", numberLength: 14, cvvLength: 3},
	Discover:   {name: "Discover", numberLength: 16, cvvLength: 3},
	JCB:        {name: "JCB", numberLength: 16, cvvLength: 3},
	MasterCard: {name: "MasterCard", numberLength: 16, cvvLength: 3},
	Visa:       {name: "Visa", numberLength: 16, cvvLength: 3},
	Maestro:    {name: "Maestro", numberLength: 16, cvvLength: 3},
	Unknown:    {name: "Unknown", numberLength: -1, cvvLength: -1},
	// numberLength is filled in from the interval table in init
	InsufficientDigits: {name: "More digits required", numberLength: 1, cvvLength: -1},
}

// brands lists the concrete brands in a stable order
var brands = []Type{AmEx, DinersClub, Discover, JCB, MasterCard, Visa, Maestro}

// prefixInterval maps a range of leading digits to a brand. Start and End
// may differ in length from the number being classified; comparison is on
// the common prefix.
type prefixInterval struct {
	Start string
	End   string
	Type  Type
}

// See http://en.wikipedia.org/wiki/Bank_card_number
var intervals = []prefixInterval{
	{"2221", "2720", MasterCard}, // 2-series
	{"300", "305", DinersClub},
	{"309", "309", DinersClub},
	{"34", "34", AmEx},
	{"3528", "3589", JCB},
	{"36", "36", DinersClub},
	{"37", "37", AmEx},
	{"38", "39", DinersClub},
	{"4", "4", Visa},
	{"50", "50", Maestro},
	{"51", "55", MasterCard},
	{"56", "59", Maestro},
	{"6011", "6011", Discover},
	{"61", "61", Maestro},
	{"62", "62", Discover}, // China UnionPay
	{"63", "63", Maestro},
	{"644", "649", Discover},
	{"65", "65", Discover},
	{"66", "69", Maestro},
	{"88", "88", Discover}, // China UnionPay
}

func init() {
	longest := 1
	for _, iv := range intervals {
		longest = max(longest, len(iv.Start), len(iv.End))
	}
	info := types[InsufficientDigits]
	info.numberLength = longest
	types[InsufficientDigits] = info
}

// String returns the type's name
func (t Type) String() string {
	if info, ok := types[t]; ok {
		return info.name
	}
	return types[Unknown].name
}

// NumberLength returns the expected number of digits for the type: 15 for
// AmEx, 14 for Diners Club, 16 for the other brands and -1 for Unknown.
// InsufficientDigits reports the longest prefix length in the interval
// table, which is the most digits needed before a brand is known.
func (t Type) NumberLength() int {
	if info, ok := types[t]; ok {
		return info.numberLength
	}
	return -1
}

// CVVLength returns 4 for AmEx, 3 for the other brands and -1 otherwise
func (t Type) CVVLength() int {
	if info, ok := types[t]; ok {
		return info.cvvLength
	}
	return -1
}

// IsBrand reports whether t is a concrete card brand
func (t Type) IsBrand() bool {
	return t != Unknown && t != InsufficientDigits && t.NumberLength() > 0
}

// MarshalText encodes the type by name
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type name; unknown names decode to Unknown
func (t *Type) UnmarshalText(text []byte) error {
	if string(text) == types[InsufficientDigits].name {
		*t = InsufficientDigits
		return nil
	}
	*t = ClassifyByName(string(text))
	return nil
}

// Classify infers the card type from the leading digits of a number.
// Non-digit characters are ignored. When more than one brand is still
// possible the result is InsufficientDigits.
func Classify(number string) Type {
	digits := DigitsOnly(number)
	if digits == "" {
		return Unknown
	}

	possible := make(map[Type]struct{})
	for _, iv := range intervals {
		if inInterval(digits, iv.Start, iv.End) {
			possible[iv.Type] = struct{}{}
		}
	}

	switch len(possible) {
	case 0:
		return Unknown
	case 1:
		for t := range possible {
			return t
		}
	}
	return InsufficientDigits
}

// ClassifyByName matches a brand name case-insensitively
func ClassifyByName(name string) Type {
	for _, t := range brands {
		if strings.EqualFold(name, t.String()) {
			return t
		}
	}
	return Unknown
}

// inInterval compares the number against each bound, truncated to the
// shorter of the two lengths
func inInterval(number, start, end string) bool {
	nStart := min(len(number), len(start))
	nEnd := min(len(number), len(end))

	if prefixValue(number, nStart) < prefixValue(start, nStart) {
		return false
	}
	if prefixValue(number, nEnd) > prefixValue(end, nEnd) {
		return false
	}
	return true
}

func prefixValue(s string, n int) int {
	v, err := strconv.Atoi(s[:n])
	if err != nil {
		return 0
	}
	return v
}
