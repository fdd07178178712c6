package entry

import "strings"

// FixedLength accepts up to n characters and is valid at exactly n
type FixedLength struct {
	n     int
	value string
}

// NewFixedLength returns a validator requiring exactly n characters
func NewFixedLength(n int) *FixedLength {
	return &FixedLength{n: n}
}

// Filter rejects insertions that would push the field past n characters
func (v *FixedLength) Filter(current string, edit Edit) Outcome {
	edit = clamp(current, edit)
	if edit.Text != "" && len(current)-(edit.End-edit.Start)+len(edit.Text) > v.n {
		return rejected()
	}
	return accepted(edit)
}

// AfterEdit records the buffer
func (v *FixedLength) AfterEdit(buffer string) string {
	v.value = buffer
	return buffer
}

// Value returns the buffer as last observed
func (v *FixedLength) Value() string {
	return v.value
}

// IsValid reports whether exactly n characters are present
func (v *FixedLength) IsValid() bool {
	return len(v.value) == v.n
}

// HasFullLength is the same as IsValid
func (v *FixedLength) HasFullLength() bool {
	return v.IsValid()
}

// Length returns the required length
func (v *FixedLength) Length() int {
	return v.n
}

// NonEmpty accepts every value that is not blank after trimming
type NonEmpty struct {
	value string
}

// NewNonEmpty returns a validator requiring a non-blank value
func NewNonEmpty() *NonEmpty {
	return &NonEmpty{}
}

func (v *NonEmpty) Filter(current string, edit Edit) Outcome {
	return accepted(edit)
}

// AfterEdit records the trimmed buffer
func (v *NonEmpty) AfterEdit(buffer string) string {
	v.value = strings.TrimSpace(buffer)
	return buffer
}

func (v *NonEmpty) Value() string {
	return v.value
}

func (v *NonEmpty) IsValid() bool {
	return v.value != ""
}

func (v *NonEmpty) HasFullLength() bool {
	return v.IsValid()
}

// MaxLength accepts non-blank values of at most n characters
type MaxLength struct {
	NonEmpty
	n int
}

// NewMaxLength returns a validator requiring a non-blank value of at most
// n characters
func NewMaxLength(n int) *MaxLength {
	return &MaxLength{n: n}
}

func (v *MaxLength) IsValid() bool {
	return v.NonEmpty.IsValid() && len(v.Value()) <= v.n
}

func (v *MaxLength) HasFullLength() bool {
	return v.IsValid()
}

// AlwaysValid stands in for a field that is not required
type AlwaysValid struct {
	placeholder string
}

// NewAlwaysValid returns a validator whose value is always placeholder
func NewAlwaysValid(placeholder string) *AlwaysValid {
	return &AlwaysValid{placeholder: placeholder}
}

func (v *AlwaysValid) Filter(current string, edit Edit) Outcome {
	return accepted(edit)
}

func (v *AlwaysValid) AfterEdit(buffer string) string {
	return buffer
}

func (v *AlwaysValid) Value() string {
	return v.placeholder
}

func (v *AlwaysValid) IsValid() bool {
	return true
}

func (v *AlwaysValid) HasFullLength() bool {
	return true
}
