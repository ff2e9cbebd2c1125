package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stableids/internal/config"
	"github.com/roach88/stableids/internal/ir"
)

// Scenario defines one release-step run and its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// PersonID is the Person every InstanceEdit is attributed to.
	PersonID int64 `yaml:"person_id"`

	// Counter selects the change counter. Defaults to "modified".
	Counter string `yaml:"counter,omitempty"`

	// RunID is the fixed run id. Defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Now is the fixed audit time (RFC 3339). Defaults to testutil.DefaultTime.
	Now string `yaml:"now,omitempty"`

	// Stores holds the seed data of the three stores.
	Stores Stores `yaml:"stores"`

	// Expect holds the expected run outcome.
	Expect Expectation `yaml:"expect,omitempty"`

	// Assertions validate the final store state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Stores is the seed data of a run.
type Stores struct {
	Slice         StoreFixture `yaml:"slice"`
	PreviousSlice StoreFixture `yaml:"previous_slice"`
	Curator       StoreFixture `yaml:"curator"`
}

// StoreFixture seeds one store.
type StoreFixture struct {
	// Transactional defaults to true.
	Transactional *bool             `yaml:"transactional,omitempty"`
	Instances     []InstanceFixture `yaml:"instances"`
}

// InstanceFixture is one seeded instance. Attribute values are strings,
// integers or {ref: db_id}; a single value may be given without a list.
type InstanceFixture struct {
	DBID        int64          `yaml:"db_id"`
	Class       string         `yaml:"class"`
	DisplayName string         `yaml:"display_name,omitempty"`
	Attributes  map[string]any `yaml:"attributes,omitempty"`
}

// Expectation is the expected run outcome.
type Expectation struct {
	// Error is the expected release error code; empty means success.
	Error string `yaml:"error,omitempty"`

	// Summary holds expected counts; unset counts are not checked.
	Summary map[string]int `yaml:"summary,omitempty"`
}

// Assertion validates final store state or the run log.
type Assertion struct {
	Type      string `yaml:"type"`
	Store     string `yaml:"store,omitempty"`
	DBID      int64  `yaml:"db_id,omitempty"`
	Attribute string `yaml:"attribute,omitempty"`
	Values    []any  `yaml:"values,omitempty"`
	Value     string `yaml:"value,omitempty"`
	Class     string `yaml:"class,omitempty"`
	Count     int    `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertAttribute      = "attribute"
	AssertAttributeCount = "attribute_count"
	AssertDisplayName    = "display_name"
	AssertInstanceCount  = "instance_count"
	AssertLogContains    = "log_contains"
)

var summaryKeys = []string{
	"checked", "incremented", "not_incremented", "skipped",
	"missing_identifier", "marked", "mark_failures",
}

var storeNames = []string{config.StoreSlice, config.StorePreviousSlice, config.StoreCurator}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.PersonID <= 0 {
		return fmt.Errorf("person_id is required")
	}
	if s.Now != "" {
		if _, err := time.Parse(time.RFC3339, s.Now); err != nil {
			return fmt.Errorf("now: %w", err)
		}
	}

	for name, fixture := range s.Stores.byName() {
		seen := make(map[int64]bool)
		for i, inst := range fixture.Instances {
			if inst.DBID <= 0 {
				return fmt.Errorf("stores.%s.instances[%d]: db_id is required", name, i)
			}
			if inst.Class == "" {
				return fmt.Errorf("stores.%s.instances[%d]: class is required", name, i)
			}
			if seen[inst.DBID] {
				return fmt.Errorf("stores.%s.instances[%d]: duplicate db_id %d", name, i, inst.DBID)
			}
			seen[inst.DBID] = true
		}
	}

	for key := range s.Expect.Summary {
		if !slices.Contains(summaryKeys, key) {
			return fmt.Errorf("expect.summary: unknown count %q", key)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertAttribute, AssertAttributeCount:
		if a.Attribute == "" {
			return fmt.Errorf("%s: attribute is required", a.Type)
		}
	case AssertDisplayName:
	case AssertInstanceCount:
		if a.Class == "" {
			return fmt.Errorf("%s: class is required", a.Type)
		}
	case AssertLogContains:
		if a.Value == "" {
			return fmt.Errorf("%s: value is required", a.Type)
		}
		return nil
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if !slices.Contains(storeNames, a.Store) {
		return fmt.Errorf("%s: store must be one of %v", a.Type, storeNames)
	}
	if a.Type != AssertInstanceCount && a.DBID <= 0 {
		return fmt.Errorf("%s: db_id is required", a.Type)
	}
	return nil
}

func (s Stores) byName() map[string]StoreFixture {
	return map[string]StoreFixture{
		config.StoreSlice:         s.Slice,
		config.StorePreviousSlice: s.PreviousSlice,
		config.StoreCurator:       s.Curator,
	}
}

// transactional reports the fixture's transaction setting, default true.
func (f StoreFixture) transactional() bool {
	return f.Transactional == nil || *f.Transactional
}

// Instance converts the fixture into an instance.
func (f InstanceFixture) Instance() (*ir.Instance, error) {
	inst := ir.NewInstance(f.DBID, f.Class, f.DisplayName)
	for name, raw := range f.Attributes {
		vals, err := convertValues(raw)
		if err != nil {
			return nil, fmt.Errorf("instance %d attribute %q: %w", f.DBID, name, err)
		}
		inst.SetValues(name, vals)
	}
	return inst, nil
}

func convertValues(raw any) ([]ir.Value, error) {
	list, ok := raw.([]any)
	if !ok {
		list = []any{raw}
	}
	vals := make([]ir.Value, 0, len(list))
	for i, item := range list {
		v, err := ir.ConvertValue(item)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}
