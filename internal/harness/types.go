package harness

// TraceEvent records one executed step. Parties and records appear by name
// so traces stay readable and stable.
type TraceEvent struct {
	Step       int           `json:"step"`
	Action     string        `json:"action"`
	Caller     string        `json:"caller"`
	Wallet     string        `json:"wallet,omitempty"`
	Identifier string        `json:"identifier,omitempty"`
	Outcome    string        `json:"outcome"`
	Status     string        `json:"status,omitempty"`
	Created    []string      `json:"created,omitempty"`
	Closed     []string      `json:"closed,omitempty"`
	Credits    []CreditEvent `json:"credits,omitempty"`
}

// CreditEvent is a deposit refunded when a record closed.
type CreditEvent struct {
	Record    string `json:"record"`
	Recipient string `json:"recipient"`
	Lamports  uint64 `json:"lamports"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true when every step met its expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Trace contains every setup and flow step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Committed returns the trace events whose step succeeded.
func (r *Result) Committed() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Outcome == OutcomeOK {
			out = append(out, ev)
		}
	}
	return out
}
