package harness

import (
	"errors"
	"fmt"
)

// State is the outcome of one check.
type State string

const (
	StatePass    State = "PASS"
	StateFail    State = "FAIL"
	StateUnclear State = "UNCLEAR"
)

// Test names one check. Its methods build the check's Result.
type Test struct {
	Name        string
	Description string
}

// NewTest creates a test.
func NewTest(description, name string) Test {
	return Test{Name: name, Description: description}
}

// Pass returns a passing result.
func (t Test) Pass() Result {
	return Result{Name: t.Name, Description: t.Description, State: StatePass}
}

// Fail returns a failing result with an optional link to the relevant
// specification page.
func (t Test) Fail(message string, link ...string) Result {
	r := Result{Name: t.Name, Description: t.Description, State: StateFail, Message: message}
	if len(link) > 0 {
		r.Link = link[0]
	}
	return r
}

// Unclear returns an inconclusive result.
func (t Test) Unclear(message string) Result {
	return Result{Name: t.Name, Description: t.Description, State: StateUnclear, Message: message}
}

// Result is the outcome of one executed check.
type Result struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	State       State  `json:"state"`
	Message     string `json:"message,omitempty"`
	Link        string `json:"link,omitempty"`
}

// toCanonicalMap converts a Result for ir.MarshalCanonical.
func (r Result) toCanonicalMap() map[string]any {
	m := map[string]any{
		"name":        r.Name,
		"description": r.Description,
		"state":       string(r.State),
	}
	if r.Message != "" {
		m["message"] = r.Message
	}
	if r.Link != "" {
		m["link"] = r.Link
	}
	return m
}

// Outcome carries a finished Result out of a helper that cannot complete
// its check, so the caller can return it directly.
type Outcome struct {
	Result Result
}

func (o *Outcome) Error() string {
	return fmt.Sprintf("%s: %s: %s", o.Result.Name, o.Result.State, o.Result.Message)
}

// resultOf returns the Result carried by err, or a FAIL for t with the
// error text.
func resultOf(t Test, err error) Result {
	var o *Outcome
	if errors.As(err, &o) {
		return o.Result
	}
	return t.Fail(err.Error())
}

// Summary counts results by state.
type Summary struct {
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Unclear int `json:"unclear"`
}

// Summarize counts results by state.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.State {
		case StatePass:
			s.Passed++
		case StateFail:
			s.Failed++
		default:
			s.Unclear++
		}
	}
	return s
}

// OK reports whether no result failed.
func (s Summary) OK() bool {
	return s.Failed == 0
}
