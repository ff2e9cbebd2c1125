// Package harness runs release-step scenarios against real SQLite stores.
//
// A scenario seeds the slice, previous slice and curator stores from YAML,
// runs the release step with a fixed clock and run id, and checks the
// outcome through expected summary counts, assertions on stored attributes
// and a golden report.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	person_id: 1
//	counter: modified            # or update_tracker
//	run_id: test-run-0001        # optional
//	now: "2024-03-14T09:30:00Z"  # optional
//	stores:
//	  slice:
//	    transactional: true
//	    instances:
//	      - db_id: 10
//	        class: Reaction
//	        display_name: "Glucose phosphorylation"
//	        attributes:
//	          stableIdentifier: {ref: 1010}
//	          modified: [{ref: 900}, {ref: 901}]
//	  previous_slice:
//	    instances: [...]
//	  curator:
//	    instances: [...]
//	expect:
//	  error: INTEGRITY_VIOLATION  # optional error code
//	  summary: {incremented: 1, not_incremented: 1, skipped: 1}
//	assertions:
//	  - type: attribute
//	    store: curator
//	    db_id: 1010
//	    attribute: identifierVersion
//	    values: ["5"]
//
// # Assertion Types
//
//   - attribute: the attribute holds exactly the given values
//   - attribute_count: the attribute holds Count values
//   - display_name: the instance's display name equals Value
//   - instance_count: the store holds Count instances of Class (subclasses included)
//   - log_contains: a run log line contains Value
package harness
