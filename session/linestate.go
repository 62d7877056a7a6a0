package session

// LineState is the result of reading a modem status line. LineFailed is
// the zero value and always comes with a non-nil error.
type LineState int

const (
	LineFailed LineState = iota
	LineNotAsserted
	LineAsserted
)

func lineState(asserted bool) LineState {
	if asserted {
		return LineAsserted
	}
	return LineNotAsserted
}

func (s LineState) String() string {
	switch s {
	case LineAsserted:
		return "asserted"
	case LineNotAsserted:
		return "not asserted"
	default:
		return "failed"
	}
}

// ClearBuffer selects which kernel queue Clear discards
type ClearBuffer int

// Selector values match the host-side enum (0, 1, 2).
const (
	ClearInput ClearBuffer = iota
	ClearOutput
	ClearAll
)

func (c ClearBuffer) valid() bool {
	return c >= ClearInput && c <= ClearAll
}

func (c ClearBuffer) String() string {
	switch c {
	case ClearInput:
		return "input"
	case ClearOutput:
		return "output"
	case ClearAll:
		return "all"
	default:
		return "invalid"
	}
}
