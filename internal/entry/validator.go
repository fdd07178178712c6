package entry

// Edit replaces Buffer[Start:End] with Text. Positions are byte offsets;
// entry fields hold ASCII digits and separators.
type Edit struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

// Insert returns an edit that inserts text at pos
func Insert(pos int, text string) Edit {
	return Edit{Start: pos, End: pos, Text: text}
}

// Delete returns an edit that removes buffer[start:end]
func Delete(start, end int) Edit {
	return Edit{Start: start, End: end}
}

// OutcomeKind says what a validator decided about an edit
type OutcomeKind int

const (
	// Accept applies the edit as typed
	Accept OutcomeKind = iota
	// Reject leaves the buffer unchanged
	Reject
	// Replace applies the edit with Outcome.Text in place of Edit.Text
	Replace
)

func (k OutcomeKind) String() string {
	switch k {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case Replace:
		return "replace"
	}
	return "unknown"
}

// Outcome is the result of filtering an edit
type Outcome struct {
	Kind OutcomeKind
	Text string
}

func accepted(e Edit) Outcome {
	return Outcome{Kind: Accept, Text: e.Text}
}

func rejected() Outcome {
	return Outcome{Kind: Reject}
}

func replaced(e Edit, text string) Outcome {
	if text == e.Text {
		return accepted(e)
	}
	return Outcome{Kind: Replace, Text: text}
}

// Validator checks one entry field as it is typed
type Validator interface {
	// Filter decides whether an edit to current may go ahead, and may
	// rewrite the inserted text
	Filter(current string, edit Edit) Outcome
	// AfterEdit observes the buffer after an edit has been applied and
	// returns the buffer the field should show
	AfterEdit(buffer string) string
	// Value returns the field value as last observed
	Value() string
	// IsValid reports whether the value is acceptable for submission
	IsValid() bool
	// HasFullLength reports whether no more input is expected
	HasFullLength() bool
}

// Apply runs an edit through v: Filter, splice, then AfterEdit. It returns
// the resulting buffer and the filter outcome. Out-of-range edits are
// clamped to the buffer.
func Apply(v Validator, current string, edit Edit) (string, Outcome) {
	edit = clamp(current, edit)
	outcome := v.Filter(current, edit)
	buffer := current
	if outcome.Kind != Reject {
		buffer = splice(current, edit.Start, edit.End, outcome.Text)
	}
	return v.AfterEdit(buffer), outcome
}

// clamp keeps 0 <= Start <= End <= len(current)
func clamp(current string, e Edit) Edit {
	e.Start = min(max(e.Start, 0), len(current))
	e.End = min(max(e.End, e.Start), len(current))
	return e
}

func splice(s string, start, end int, text string) string {
	return s[:start] + text + s[end:]
}
