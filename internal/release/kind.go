package release

import (
	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/schema"
)

// Kind classifies an instance for the release step.
type Kind int

const (
	// KindOther is anything that is neither an Event nor a PhysicalEntity.
	KindOther Kind = iota

	// KindEvent is an Event without composition (reactions, black box events).
	KindEvent

	// KindPathway is an Event whose class may compose child Events via hasEvent.
	KindPathway

	// KindPhysicalEntity is a leaf-like entity.
	KindPhysicalEntity
)

// KindOf classifies inst using the class schema.
func KindOf(s *schema.Schema, inst *ir.Instance) Kind {
	switch {
	case s.IsA(inst.Class, ir.ClassEvent):
		if s.IsValidAttribute(inst.Class, ir.AttrHasEvent) {
			return KindPathway
		}
		return KindEvent
	case s.IsA(inst.Class, ir.ClassPhysicalEntity):
		return KindPhysicalEntity
	default:
		return KindOther
	}
}

// IsEvent reports whether the kind is an Event of either flavour.
func (k Kind) IsEvent() bool {
	return k == KindEvent || k == KindPathway
}

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "Event"
	case KindPathway:
		return "Pathway"
	case KindPhysicalEntity:
		return "PhysicalEntity"
	default:
		return "Other"
	}
}
