package reconcile

type Decision string

const (
	DecisionInserted Decision = "inserted"
	DecisionUpdated  Decision = "updated"
	DecisionSkipped  Decision = "skipped"
	DecisionError    Decision = "error"
)

// Outcome is the terminal result of one candidate.
type Outcome struct {
	Index    int      `json:"idx"`
	Email    string   `json:"email"`
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason,omitempty"`
	Changed  []string `json:"changed,omitempty"`
}

type RowError struct {
	Idx   int    `json:"idx"`
	Email string `json:"email"`
	Error string `json:"error"`
}

// Summary is what a batch reports back to its caller.
type Summary struct {
	BatchID  string     `json:"-"`
	Inserted int        `json:"inserted"`
	Updated  int        `json:"updated"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
	Results  []Outcome  `json:"results,omitempty"`
}

// Total is the number of candidates the summary accounts for.
func (s Summary) Total() int {
	return s.Inserted + s.Updated + s.Skipped + len(s.Errors)
}

// Report folds outcomes into a Summary. Every outcome lands in exactly one bucket.
func Report(outcomes []Outcome) Summary {
	sum := Summary{Errors: []RowError{}, Results: outcomes}
	for _, o := range outcomes {
		switch o.Decision {
		case DecisionInserted:
			sum.Inserted++
		case DecisionUpdated:
			sum.Updated++
		case DecisionSkipped:
			sum.Skipped++
		default:
			sum.Errors = append(sum.Errors, RowError{Idx: o.Index, Email: o.Email, Error: o.Reason})
		}
	}
	return sum
}
