package harness

import (
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/stableids/internal/ir"
)

// Report renders a run result as deterministic text: the outcome followed by
// every instance of the slice and curator stores. The previous slice is
// read-only and left out.
func Report(scenario *Scenario, result *Result) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", scenario.Name)
	if s := result.Summary; s != nil {
		fmt.Fprintf(&b, "run_id: %s\n", s.RunID)
		fmt.Fprintf(&b, "counter: %s\n", s.Counter)
		fmt.Fprintf(&b, "state: %s\n", s.State)
	}
	errCode := "none"
	if result.Err != nil {
		errCode = result.ErrorCode()
		if errCode == "" {
			errCode = "unknown"
		}
	}
	fmt.Fprintf(&b, "error: %s\n", errCode)

	counts := summaryCounts(result)
	fmt.Fprint(&b, "summary:")
	for _, key := range summaryKeys {
		fmt.Fprintf(&b, " %s=%d", key, counts[key])
	}
	fmt.Fprint(&b, "\n")

	for _, name := range []string{"slice", "curator"} {
		fmt.Fprintf(&b, "\n[%s]\n", name)
		for _, inst := range result.Final[name] {
			writeInstance(&b, inst)
		}
	}
	return []byte(b.String())
}

func writeInstance(b *strings.Builder, inst *ir.Instance) {
	fmt.Fprintf(b, "%d %s %s\n", inst.DBID, inst.Class, strconv.Quote(inst.DisplayName))
	for _, name := range inst.AttributeNames() {
		fmt.Fprintf(b, "    %s: %s\n", name, formatValues(inst.Values(name)))
	}
}

// formatValues renders values as a bracketed list: strings quoted, integers
// bare, refs as #db_id.
func formatValues(vals []ir.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(ir.String); ok {
			parts[i] = strconv.Quote(string(s))
			continue
		}
		parts[i] = ir.FormatValue(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// RunWithGolden runs a scenario, checks its expectations and compares the
// report with testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) *Result {
	t.Helper()

	result, err := Run(t.Context(), scenario, t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("run scenario %s: %v", scenario.Name, err)
	}
	if err := Check(scenario, result); err != nil {
		t.Fatalf("scenario %s: %v\nlog:\n%s", scenario.Name, err, result.Log)
	}

	AssertGolden(t, scenario, result)
	return result
}

// AssertGolden compares a result's report against its golden file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Report(scenario, result))
}
