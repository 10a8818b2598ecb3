package domain

// Outcome is the result recorded for one resource within an execution.
type Outcome string

// Possible outcome values
const (
	OutcomeUnanswered Outcome = "unanswered"
	OutcomePass       Outcome = "pass"
	OutcomeFail       Outcome = "fail"
)

// Validate checks that the outcome is one of the known values.
func (o Outcome) Validate() error {
	switch o {
	case OutcomeUnanswered, OutcomePass, OutcomeFail:
		return nil
	default:
		return NewValidationError("outcome", "must be one of unanswered, pass, fail", ErrInvalidOutcome)
	}
}

// Answered reports whether the outcome carries a pass or fail verdict.
func (o Outcome) Answered() bool {
	return o == OutcomePass || o == OutcomeFail
}

// Counters holds the tally of outcomes for a set of result entries.
type Counters struct {
	Correct    int `json:"correct"`
	Incorrect  int `json:"incorrect"`
	Unanswered int `json:"unanswered"`
}

// Record adds a single outcome to the tally.
func (c *Counters) Record(o Outcome) {
	switch o {
	case OutcomePass:
		c.Correct++
	case OutcomeFail:
		c.Incorrect++
	default:
		c.Unanswered++
	}
}

// Add returns the element-wise sum of c and other.
func (c Counters) Add(other Counters) Counters {
	return Counters{
		Correct:    c.Correct + other.Correct,
		Incorrect:  c.Incorrect + other.Incorrect,
		Unanswered: c.Unanswered + other.Unanswered,
	}
}

// Total is the number of entries the counters were built from.
func (c Counters) Total() int {
	return c.Correct + c.Incorrect + c.Unanswered
}

// IsZero reports whether nothing has been counted.
func (c Counters) IsZero() bool {
	return c == Counters{}
}
