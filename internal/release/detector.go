package release

import (
	"context"

	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/logging"
	"github.com/roach88/stableids/internal/schema"
)

// Detector decides whether an Event counts as updated in this release.
//
// An Event is updated when it already carries a releaseStatus, when it gained
// revised or reviewed entries since the previous release, or when it is a
// pathway and any of its child Events is updated. PhysicalEntities are never
// updated by this check.
//
// The Detector only reads from the stores.
type Detector struct {
	schema   *schema.Schema
	current  Reader
	previous Reader
}

// NewDetector creates a Detector that resolves child Events in current and
// their counterparts in previous.
func NewDetector(s *schema.Schema, current, previous Reader) *Detector {
	return &Detector{schema: s, current: current, previous: previous}
}

// IsUpdated evaluates current against its previous-release counterpart.
//
// Child failures are logged and count as "not updated" for that child only;
// they never propagate. A child that is already on the recursion path is
// treated the same way.
func (d *Detector) IsUpdated(ctx context.Context, current, previous *ir.Instance) (bool, error) {
	return d.isUpdated(ctx, current, previous, make(map[int64]bool))
}

func (d *Detector) isUpdated(ctx context.Context, current, previous *ir.Instance, path map[int64]bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	kind := KindOf(d.schema, current)
	if !kind.IsEvent() {
		return false, nil
	}

	if current.Value(ir.AttrReleaseStatus) != nil {
		return true, nil
	}

	if recentlyRevised(current, previous) || recentlyReviewed(current, previous) {
		return true, nil
	}

	if kind != KindPathway {
		return false, nil
	}

	path[current.DBID] = true
	defer delete(path, current.DBID)

	log := logging.FromContext(ctx)
	for _, child := range current.Refs(ir.AttrHasEvent) {
		updated, err := d.childUpdated(ctx, child.DBID(), path)
		if err != nil {
			log.Error().Err(err).
				Int64("db_id", child.DBID()).
				Int64("parent_db_id", current.DBID).
				Msg("unable to check if child event is updated")
			continue
		}
		if updated {
			return true, nil
		}
	}
	return false, nil
}

func (d *Detector) childUpdated(ctx context.Context, dbID int64, path map[int64]bool) (bool, error) {
	if path[dbID] {
		logging.FromContext(ctx).Warn().
			Int64("db_id", dbID).
			Msg("event composition cycle; child treated as not updated")
		return false, nil
	}

	child, err := d.current.FetchInstance(ctx, dbID)
	if err != nil {
		return false, newStoreError(d.current.Name(), "fetch child event", dbID, err)
	}
	if child == nil {
		return false, nil
	}

	prevChild, err := d.previous.FetchInstance(ctx, dbID)
	if err != nil {
		return false, newStoreError(d.previous.Name(), "fetch previous child event", dbID, err)
	}
	if prevChild == nil {
		return false, nil
	}

	return d.isUpdated(ctx, child, prevChild, path)
}

func recentlyRevised(current, previous *ir.Instance) bool {
	return current.Count(ir.AttrRevised) > previous.Count(ir.AttrRevised)
}

func recentlyReviewed(current, previous *ir.Instance) bool {
	return current.Count(ir.AttrReviewed) > previous.Count(ir.AttrReviewed)
}
