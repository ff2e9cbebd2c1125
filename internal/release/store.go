package release

import (
	"context"

	"github.com/roach88/stableids/internal/ir"
)

// Reader is the read side of an Instance Store. The previous-release slice is
// only ever read.
type Reader interface {
	// Name identifies the store in logs and errors.
	Name() string

	// FetchInstance returns nil, nil when no instance has the db_id.
	FetchInstance(ctx context.Context, dbID int64) (*ir.Instance, error)

	// FetchInstancesByClass includes instances of subclasses.
	FetchInstancesByClass(ctx context.Context, class string) ([]*ir.Instance, error)

	// FetchReferrers returns instances whose attribute refers to dbID.
	FetchReferrers(ctx context.Context, dbID int64, attribute string) ([]*ir.Instance, error)
}

// InstanceStore is a mutable Instance Store: the slice or the curator store.
//
// Attribute reads and in-memory writes happen on *ir.Instance;
// UpdateInstanceAttribute flushes one attribute to the backing store.
type InstanceStore interface {
	Reader

	StoreInstance(ctx context.Context, inst *ir.Instance) (int64, error)
	UpdateInstanceAttribute(ctx context.Context, inst *ir.Instance, attribute string) error

	SupportsTransactions() bool
	BeginTransaction(ctx context.Context) error
	Commit() error
	Rollback() error
}
