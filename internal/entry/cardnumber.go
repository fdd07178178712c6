package entry

import (
	"slices"
	"strings"

	"github.com/zombor/cardscan/internal/card"
)

// Buffer positions of the separating spaces
var (
	amexSpacers   = []int{4, 11}
	normalSpacers = []int{4, 9, 14}
)

// CardNumber validates a card number field, keeping the digits grouped
// by the spacing rules of the brand inferred from what has been typed.
type CardNumber struct {
	number         string
	spacerToDelete int
}

// NewCardNumber returns an empty card number validator
func NewCardNumber() *CardNumber {
	return &CardNumber{}
}

// NewCardNumberWithValue returns a validator pre-filled with a number,
// typically from a scan
func NewCardNumberWithValue(number string) *CardNumber {
	return &CardNumber{number: card.DigitsOnly(number)}
}

// Filter rejects edits that would hold more digits than the inferred brand
// allows, drops anything but digits and spaces, and inserts separators
// into the typed text where it crosses a group boundary.
func (v *CardNumber) Filter(current string, edit Edit) Outcome {
	edit = clamp(current, edit)

	text := keepDigitsAndSpaces(edit.Text)
	updated := splice(current, edit.Start, edit.End, text)
	t := card.Classify(updated)
	spacers := filterSpacers(t)

	if edit.Text == "" {
		// backspace over a lone separator also removes the digit before it
		if edit.End-edit.Start == 1 && current[edit.Start] == ' ' && slices.Contains(spacers, edit.Start) {
			v.spacerToDelete = edit.Start
		}
		return accepted(edit)
	}

	if len(card.DigitsOnly(updated)) > t.NumberLength() {
		return rejected()
	}

	var b strings.Builder
	p := edit.Start
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' {
			if slices.Contains(spacers, p) {
				b.WriteByte(' ')
				p++
			}
			continue
		}
		if slices.Contains(spacers, p) {
			b.WriteByte(' ')
			p++
		}
		b.WriteByte(c)
		p++
	}

	out := b.String()
	if out != "" && out[len(out)-1] != ' ' && slices.Contains(spacers, p) &&
		!strings.HasPrefix(current[edit.End:], " ") {
		out += " "
	}
	if out == "" {
		return rejected()
	}
	return replaced(edit, out)
}

// AfterEdit records the digits and regroups the buffer: a space at every
// separator position and nowhere else.
func (v *CardNumber) AfterEdit(buffer string) string {
	if v.spacerToDelete > 1 {
		e := v.spacerToDelete
		s := e - 1
		v.spacerToDelete = 0
		if e <= len(buffer) {
			buffer = buffer[:s] + buffer[e:]
		}
	}

	v.number = card.DigitsOnly(buffer)
	spacers := displaySpacers(card.Classify(v.number))

	b := []byte(buffer)
	for i := 0; i < len(b); i++ {
		if slices.Contains(spacers, i) {
			if b[i] != ' ' {
				b = slices.Insert(b, i, ' ')
			}
		} else if b[i] == ' ' {
			b = slices.Delete(b, i, i+1)
			i--
		}
	}
	return string(b)
}

// Value returns the digits of the number
func (v *CardNumber) Value() string {
	return v.number
}

// HasFullLength reports whether the number has exactly as many digits as
// its brand requires
func (v *CardNumber) HasFullLength() bool {
	if v.number == "" {
		return false
	}
	return len(v.number) == card.Classify(v.number).NumberLength()
}

// IsValid reports whether the number is complete and passes the Luhn check
func (v *CardNumber) IsValid() bool {
	return v.HasFullLength() && card.PassesLuhnChecksum(v.number)
}

// Type returns the brand inferred from the digits typed so far
func (v *CardNumber) Type() card.Type {
	return card.Classify(v.number)
}

// filterSpacers picks the separators used while typing
func filterSpacers(t card.Type) []int {
	if t.NumberLength() == 15 {
		return amexSpacers
	}
	return normalSpacers
}

// displaySpacers picks the separators kept in the buffer; numbers of no
// known length are shown without any
func displaySpacers(t card.Type) []int {
	switch t.NumberLength() {
	case 15:
		return amexSpacers
	case 14, 16:
		return normalSpacers
	}
	return nil
}

func keepDigitsAndSpaces(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}
