package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when a result does not meet an expectation.
// It lists every result of the run to help debug the failure.
type AssertionError struct {
	Name     string
	Expected string
	Actual   string
	Results  []Result
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Name)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nResults:\n")
	for i, r := range e.Results {
		fmt.Fprintf(&buf, "  [%d] %s %s", i+1, r.Name, r.State)
		if r.Message != "" {
			fmt.Fprintf(&buf, " %q", r.Message)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// CheckExpectations evaluates every expectation against results and
// returns one error per unmet expectation.
func CheckExpectations(results []Result, expect []Expectation) []error {
	var errs []error
	for _, e := range expect {
		if err := checkExpectation(results, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func checkExpectation(results []Result, e Expectation) error {
	r, ok := findResult(results, e.Name)
	if !ok {
		return &AssertionError{
			Name:     e.Name,
			Expected: fmt.Sprintf("result %s", e.State),
			Actual:   "no such result",
			Results:  results,
		}
	}

	if r.State != e.State {
		return &AssertionError{
			Name:     e.Name,
			Expected: fmt.Sprintf("state %s", e.State),
			Actual:   fmt.Sprintf("state %s: %s", r.State, r.Message),
			Results:  results,
		}
	}
	if e.MessageContains != "" && !strings.Contains(r.Message, e.MessageContains) {
		return &AssertionError{
			Name:     e.Name,
			Expected: fmt.Sprintf("message containing %q", e.MessageContains),
			Actual:   fmt.Sprintf("message %q", r.Message),
			Results:  results,
		}
	}
	if e.Link != "" && r.Link != e.Link {
		return &AssertionError{
			Name:     e.Name,
			Expected: fmt.Sprintf("link %s", e.Link),
			Actual:   fmt.Sprintf("link %q", r.Link),
			Results:  results,
		}
	}
	return nil
}

func findResult(results []Result, name string) (Result, bool) {
	for _, r := range results {
		if r.Name == name {
			return r, true
		}
	}
	return Result{}, false
}
