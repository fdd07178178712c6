package entry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zombor/cardscan/internal/card"
)

// Field names an entry field
type Field string

const (
	FieldNumber     Field = "number"
	FieldExpiry     Field = "expiry"
	FieldCVV        Field = "cvv"
	FieldPostalCode Field = "postal"
)

// Fields lists the entry fields in display order
var Fields = []Field{FieldNumber, FieldExpiry, FieldCVV, FieldPostalCode}

// MaxPostalCodeLength matches what payment APIs downstream accept
const MaxPostalCodeLength = 20

// defaultCVVLength is used until the number identifies a brand
const defaultCVVLength = 4

// ErrUnknownField is returned for a field name the form does not have
var ErrUnknownField = errors.New("unknown field")

// IncompleteError is returned by Submit when fields are not yet valid
type IncompleteError struct {
	Fields []Field
}

func (e *IncompleteError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("incomplete card entry: %s", strings.Join(names, ", "))
}

// FormOptions selects which optional fields are required
type FormOptions struct {
	RequireExpiry     bool
	RequireCVV        bool
	RequirePostalCode bool
	Clock             card.TimeSource
}

// Form is a manual-entry card form: one validator per field plus the
// field buffers as the user sees them
type Form struct {
	opts       FormOptions
	scanned    *card.CreditCard
	number     *CardNumber
	validators map[Field]Validator
	buffers    map[Field]string
}

// NewForm builds a form. When scanned is not nil its values pre-fill the
// number and expiry fields. The CVV length follows the number's brand.
func NewForm(opts FormOptions, scanned *card.CreditCard) *Form {
	if opts.Clock == nil {
		opts.Clock = card.SystemTime{}
	}

	f := &Form{
		opts:       opts,
		scanned:    scanned,
		validators: make(map[Field]Validator, len(Fields)),
		buffers:    make(map[Field]string, len(Fields)),
	}

	if scanned != nil {
		f.number = NewCardNumberWithValue(scanned.Number)
		f.buffers[FieldNumber] = f.number.AfterEdit(scanned.Number)
	} else {
		f.number = NewCardNumber()
	}
	f.validators[FieldNumber] = f.number

	switch {
	case !opts.RequireExpiry:
		f.validators[FieldExpiry] = NewAlwaysValid("")
	case scanned != nil && scanned.ExpiryMonth > 0 && scanned.ExpiryYear > 0:
		expiry := NewExpiryWithValue(scanned.ExpiryMonth, scanned.ExpiryYear, opts.Clock)
		if expiry.HasFullLength() {
			f.buffers[FieldExpiry] = expiry.Value()
		}
		f.validators[FieldExpiry] = expiry
	default:
		f.validators[FieldExpiry] = NewExpiryWithClock(opts.Clock)
	}

	if opts.RequireCVV {
		f.validators[FieldCVV] = NewFixedLength(f.cvvLength())
	} else {
		f.validators[FieldCVV] = NewAlwaysValid("")
	}

	if opts.RequirePostalCode {
		f.validators[FieldPostalCode] = NewMaxLength(MaxPostalCodeLength)
	} else {
		f.validators[FieldPostalCode] = NewAlwaysValid("")
	}

	return f
}

// Edit applies an edit to a field and returns the field's new buffer
func (f *Form) Edit(field Field, edit Edit) (string, Outcome, error) {
	v, ok := f.validators[field]
	if !ok {
		return "", Outcome{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	buffer, outcome := Apply(v, f.buffers[field], edit)
	f.buffers[field] = buffer

	if field == FieldNumber {
		f.resizeCVV()
	}
	return buffer, outcome, nil
}

// Set replaces the whole buffer of a field
func (f *Form) Set(field Field, text string) (string, Outcome, error) {
	return f.Edit(field, Edit{Start: 0, End: len(f.buffers[field]), Text: text})
}

// Buffer returns what the field currently shows
func (f *Form) Buffer(field Field) string {
	return f.buffers[field]
}

// Validator returns the validator behind a field, or nil
func (f *Form) Validator(field Field) Validator {
	return f.validators[field]
}

// Ready reports whether every field is valid
func (f *Form) Ready() bool {
	return len(f.invalidFields()) == 0
}

// Submit returns the entered card, or an *IncompleteError naming the
// fields that are not yet valid
func (f *Form) Submit() (card.CreditCard, error) {
	if invalid := f.invalidFields(); len(invalid) > 0 {
		return card.CreditCard{}, &IncompleteError{Fields: invalid}
	}

	result := card.CreditCard{
		Number:     f.number.Value(),
		CVV:        f.validators[FieldCVV].Value(),
		PostalCode: f.validators[FieldPostalCode].Value(),
	}
	if f.scanned != nil {
		result.ExpiryMonth = f.scanned.ExpiryMonth
		result.ExpiryYear = f.scanned.ExpiryYear
		result.ScanID = f.scanned.ScanID
	}
	if expiry, ok := f.validators[FieldExpiry].(*Expiry); ok {
		result.ExpiryMonth = expiry.Month()
		result.ExpiryYear = expiry.Year()
	}
	return result, nil
}

func (f *Form) invalidFields() []Field {
	var invalid []Field
	for _, field := range Fields {
		if !f.validators[field].IsValid() {
			invalid = append(invalid, field)
		}
	}
	return invalid
}

// cvvLength follows the brand of the number as it is now, scanned or
// typed. Until a brand is known the default applies.
func (f *Form) cvvLength() int {
	if t := f.number.Type(); t.IsBrand() && t.CVVLength() > 0 {
		return t.CVVLength()
	}
	return defaultCVVLength
}

func (f *Form) resizeCVV() {
	current, ok := f.validators[FieldCVV].(*FixedLength)
	if !ok || current.Length() == f.cvvLength() {
		return
	}
	resized := NewFixedLength(f.cvvLength())
	buffer := f.buffers[FieldCVV]
	if len(buffer) > resized.Length() {
		buffer = buffer[:resized.Length()]
	}
	f.buffers[FieldCVV] = resized.AfterEdit(buffer)
	f.validators[FieldCVV] = resized
}
