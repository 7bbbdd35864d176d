package harness

import (
	"fmt"
	"strings"
)

// TraceEvent is one observation made during a run.
type TraceEvent struct {
	// Seq numbers events from 1 in execution order.
	Seq int `json:"seq"`

	// Phase is "seed", "commit" or "read".
	Phase string `json:"phase"`

	// Detail describes what was observed.
	Detail string `json:"detail"`
}

func (e TraceEvent) String() string {
	return fmt.Sprintf("%03d %-6s %s", e.Seq, e.Phase, e.Detail)
}

// Result is the outcome of running a scenario.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	// Trace lists observations in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

func (r *Result) record(phase, format string, args ...any) {
	r.Trace = append(r.Trace, TraceEvent{
		Seq:    len(r.Trace) + 1,
		Phase:  phase,
		Detail: fmt.Sprintf(format, args...),
	})
}

// Golden renders the trace as the text stored in golden files.
func (r *Result) Golden() []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario %s\n", r.Name)
	for _, event := range r.Trace {
		buf.WriteString(event.String())
		buf.WriteByte('\n')
	}
	return []byte(buf.String())
}
