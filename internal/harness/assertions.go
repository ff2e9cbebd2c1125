package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/stableids/internal/schema"
)

// AssertionError is returned when an expectation or assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// Check validates a run result against the scenario's expectations and
// assertions, returning the first failure.
func Check(scenario *Scenario, result *Result) error {
	if err := checkExpectation(scenario.Expect, result); err != nil {
		return err
	}
	for _, a := range scenario.Assertions {
		if err := checkAssertion(a, result); err != nil {
			return err
		}
	}
	return nil
}

func checkExpectation(exp Expectation, result *Result) error {
	if got := result.ErrorCode(); got != exp.Error {
		actual := "success"
		if result.Err != nil {
			actual = result.Err.Error()
		}
		expected := "success"
		if exp.Error != "" {
			expected = exp.Error
		}
		return &AssertionError{Type: "error", Expected: expected, Actual: actual}
	}

	counts := summaryCounts(result)
	for _, key := range summaryKeys {
		want, ok := exp.Summary[key]
		if !ok {
			continue
		}
		if got := counts[key]; got != want {
			return &AssertionError{
				Type:     "summary." + key,
				Expected: fmt.Sprint(want),
				Actual:   fmt.Sprint(got),
			}
		}
	}
	return nil
}

func summaryCounts(result *Result) map[string]int {
	s := result.Summary
	if s == nil {
		return map[string]int{}
	}
	return map[string]int{
		"checked":            s.Checked,
		"incremented":        s.Incremented,
		"not_incremented":    s.NotIncremented,
		"skipped":            s.Skipped,
		"missing_identifier": s.MissingIdentifier,
		"marked":             s.Marked,
		"mark_failures":      s.MarkFailures,
	}
}

func checkAssertion(a Assertion, result *Result) error {
	switch a.Type {
	case AssertLogContains:
		if !strings.Contains(result.Log.String(), a.Value) {
			return &AssertionError{Type: a.Type, Expected: a.Value, Actual: "no matching log line"}
		}
		return nil
	case AssertInstanceCount:
		return assertInstanceCount(a, result)
	}

	inst := result.Instance(a.Store, a.DBID)
	if inst == nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("instance %d in %s", a.DBID, a.Store),
			Actual:   "not found",
		}
	}

	switch a.Type {
	case AssertAttribute:
		want, err := convertValues(a.Values)
		if err != nil {
			return fmt.Errorf("assertion values: %w", err)
		}
		if len(a.Values) == 0 {
			want = nil
		}
		got := inst.Values(a.Attribute)
		if !slices.Equal(got, want) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s.%s = %s", a.Store, a.Attribute, formatValues(want)),
				Actual:   formatValues(got),
			}
		}
	case AssertAttributeCount:
		if got := inst.Count(a.Attribute); got != a.Count {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%d values in %s.%s", a.Count, a.Store, a.Attribute),
				Actual:   fmt.Sprint(got),
			}
		}
	case AssertDisplayName:
		if inst.DisplayName != a.Value {
			return &AssertionError{Type: a.Type, Expected: a.Value, Actual: inst.DisplayName}
		}
	}
	return nil
}

func assertInstanceCount(a Assertion, result *Result) error {
	s := schema.Default()
	n := 0
	for _, inst := range result.Final[a.Store] {
		if s.IsA(inst.Class, a.Class) {
			n++
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d %s instances in %s", a.Count, a.Class, a.Store),
			Actual:   fmt.Sprint(n),
		}
	}
	return nil
}
