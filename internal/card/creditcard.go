package card

import (
	"fmt"
	"strings"
	"time"
)

// CreditCard describes a card produced by a scan or by manual entry
type CreditCard struct {
	Number      string `json:"card_number"` // digits only, no separators
	ExpiryMonth int    `json:"expiry_month,omitempty"`
	ExpiryYear  int    `json:"expiry_year,omitempty"` // four digits
	CVV         string `json:"cvv,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
	ScanID      string `json:"scan_id,omitempty"`

	// Layout hints from the recognizer for drawing digits over the card image
	Flipped  bool    `json:"-"`
	YOffset  int     `json:"-"`
	XOffsets [16]int `json:"-"`
}

// Type infers the card type from the number
func (c CreditCard) Type() Type {
	return Classify(c.Number)
}

// LastFour returns the last four digits of the number, or fewer if the
// number is shorter
func (c CreditCard) LastFour() string {
	if len(c.Number) <= 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}

// Redacted returns the number with all but the last four digits replaced
// by bullets, grouped for display
func (c CreditCard) Redacted() string {
	if c.Number == "" {
		return ""
	}
	var redacted string
	if len(c.Number) > 4 {
		redacted = strings.Repeat("•", len(c.Number)-4)
	}
	redacted += c.LastFour()
	return FormatForDisplay(redacted, c.Type())
}

// Formatted returns the number with spaces inserted for readability
func (c CreditCard) Formatted() string {
	return Format(c.Number)
}

// IsExpiryValid reports whether the expiry is current as of now
func (c CreditCard) IsExpiryValid(now time.Time) bool {
	return IsDateValid(c.ExpiryMonth, c.ExpiryYear, now)
}

// String is safe for logs; it never contains the full number or the CVV
func (c CreditCard) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{%s: %s", c.Type(), c.Redacted())
	if c.ExpiryMonth > 0 || c.ExpiryYear > 0 {
		fmt.Fprintf(&b, "  expiry:%d/%d", c.ExpiryMonth, c.ExpiryYear)
	}
	if c.PostalCode != "" {
		fmt.Fprintf(&b, "  postalCode:%s", c.PostalCode)
	}
	if c.CVV != "" {
		fmt.Fprintf(&b, "  cvvLength:%d", len(c.CVV))
	}
	b.WriteString("}")
	return b.String()
}
