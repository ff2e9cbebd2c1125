package release

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/schema"
)

func TestKindOf(t *testing.T) {
	s := schema.Default()

	tests := []struct {
		class string
		want  Kind
	}{
		{"Pathway", KindPathway},
		{"TopLevelPathway", KindPathway},
		{"Reaction", KindEvent},
		{"BlackBoxEvent", KindEvent},
		{"Complex", KindPhysicalEntity},
		{"SimpleEntity", KindPhysicalEntity},
		{"StableIdentifier", KindOther},
		{"NoSuchClass", KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			got := KindOf(s, ir.NewInstance(1, tt.class, ""))
			assert.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestKind_IsEvent(t *testing.T) {
	assert.True(t, KindEvent.IsEvent())
	assert.True(t, KindPathway.IsEvent())
	assert.False(t, KindPhysicalEntity.IsEvent())
	assert.False(t, KindOther.IsEvent())
}
