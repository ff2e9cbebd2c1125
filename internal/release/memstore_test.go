package release

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/stableids/internal/ir"
	"github.com/roach88/stableids/internal/schema"
)

// memStore is an in-memory InstanceStore with failure injection.
// Reads return clones so tests observe only what was persisted.
type memStore struct {
	name      string
	schema    *schema.Schema
	instances map[int64]*ir.Instance
	order     []int64

	transactional bool
	inTx          bool
	snapshot      map[int64]*ir.Instance
	snapOrder     []int64

	beginErr  error
	commitErr error
	fetchErr  map[int64]error
	updateErr error

	commits   int
	rollbacks int
	updates   []string
}

func newMemStore(name string, transactional bool) *memStore {
	return &memStore{
		name:          name,
		schema:        schema.Default(),
		instances:     make(map[int64]*ir.Instance),
		transactional: transactional,
		fetchErr:      make(map[int64]error),
	}
}

func (m *memStore) Name() string { return m.name }

func (m *memStore) put(insts ...*ir.Instance) {
	for _, inst := range insts {
		if _, ok := m.instances[inst.DBID]; !ok {
			m.order = append(m.order, inst.DBID)
		}
		m.instances[inst.DBID] = inst.Clone()
	}
}

func (m *memStore) get(dbID int64) *ir.Instance {
	inst, ok := m.instances[dbID]
	if !ok {
		return nil
	}
	return inst.Clone()
}

func (m *memStore) FetchInstance(ctx context.Context, dbID int64) (*ir.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.fetchErr[dbID]; err != nil {
		return nil, err
	}
	return m.get(dbID), nil
}

func (m *memStore) FetchInstancesByClass(ctx context.Context, class string) ([]*ir.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	classes := m.schema.Subclasses(class)
	out := []*ir.Instance{}
	for _, id := range m.order {
		inst := m.instances[id]
		if slices.Contains(classes, inst.Class) {
			out = append(out, inst.Clone())
		}
	}
	return out, nil
}

func (m *memStore) FetchReferrers(ctx context.Context, dbID int64, attribute string) ([]*ir.Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := []*ir.Instance{}
	for _, id := range m.order {
		inst := m.instances[id]
		if slices.Contains(inst.Refs(attribute), ir.Ref(dbID)) {
			out = append(out, inst.Clone())
		}
	}
	return out, nil
}

func (m *memStore) StoreInstance(ctx context.Context, inst *ir.Instance) (int64, error) {
	if err := m.schema.Validate(inst); err != nil {
		return 0, err
	}
	if inst.DBID == 0 {
		var maxID int64
		for id := range m.instances {
			maxID = max(maxID, id)
		}
		inst.DBID = maxID + 1
	}
	if _, ok := m.instances[inst.DBID]; ok {
		return 0, fmt.Errorf("store instance %d: duplicate db_id", inst.DBID)
	}
	m.put(inst)
	return inst.DBID, nil
}

func (m *memStore) UpdateInstanceAttribute(ctx context.Context, inst *ir.Instance, attribute string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	stored, ok := m.instances[inst.DBID]
	if !ok {
		return fmt.Errorf("update instance %d: not found", inst.DBID)
	}
	if attribute == ir.AttrDisplayName {
		stored.DisplayName = inst.DisplayName
	} else {
		stored.SetValues(attribute, inst.Values(attribute))
	}
	m.updates = append(m.updates, fmt.Sprintf("%d.%s", inst.DBID, attribute))
	return nil
}

func (m *memStore) SupportsTransactions() bool { return m.transactional }

func (m *memStore) BeginTransaction(ctx context.Context) error {
	if !m.transactional {
		return errors.New("transactions not supported")
	}
	if m.beginErr != nil {
		return m.beginErr
	}
	m.inTx = true
	m.snapshot = make(map[int64]*ir.Instance, len(m.instances))
	for id, inst := range m.instances {
		m.snapshot[id] = inst.Clone()
	}
	m.snapOrder = slices.Clone(m.order)
	return nil
}

func (m *memStore) Commit() error {
	if !m.inTx {
		return errors.New("no transaction")
	}
	if m.commitErr != nil {
		return m.commitErr
	}
	m.inTx = false
	m.snapshot = nil
	m.commits++
	return nil
}

func (m *memStore) Rollback() error {
	if !m.inTx {
		return nil
	}
	m.instances = m.snapshot
	m.order = m.snapOrder
	m.inTx = false
	m.snapshot = nil
	m.rollbacks++
	return nil
}

// Fixture builders.

func newPerson(dbID int64) *ir.Instance {
	p := ir.NewInstance(dbID, ir.ClassPerson, "Curator, A")
	p.SetValue(ir.AttrSurname, ir.String("Curator"))
	p.SetValue(ir.AttrInitial, ir.String("A"))
	p.SetValue(ir.AttrFirstname, ir.String("Ada"))
	return p
}

func newStableID(dbID int64, identifier string, version int) *ir.Instance {
	si := ir.NewInstance(dbID, ir.ClassStableIdentifier, fmt.Sprintf("%s.%d", identifier, version))
	si.SetValue(ir.AttrIdentifier, ir.String(identifier))
	si.SetValue(ir.AttrIdentifierVersion, ir.String(fmt.Sprint(version)))
	return si
}

// newEvent builds an instance of class with a stable identifier ref and
// modified edits 1..modified (refs only, edits are not stored).
func newEvent(dbID int64, class string, stableID int64, modified int) *ir.Instance {
	inst := ir.NewInstance(dbID, class, fmt.Sprintf("%s %d", class, dbID))
	if stableID != 0 {
		inst.SetValue(ir.AttrStableIdentifier, ir.Ref(stableID))
	}
	for i := 0; i < modified; i++ {
		inst.AddValue(ir.AttrModified, ir.Ref(5000+int64(i)))
	}
	return inst
}

func withRefs(inst *ir.Instance, attribute string, ids ...int64) *ir.Instance {
	for _, id := range ids {
		inst.AddValue(attribute, ir.Ref(id))
	}
	return inst
}

// triple holds the three stores of a run.
type triple struct {
	slice    *memStore
	previous *memStore
	curator  *memStore
}

const testPersonID int64 = 1

func newTriple() *triple {
	tr := &triple{
		slice:    newMemStore("slice", true),
		previous: newMemStore("previous_slice", false),
		curator:  newMemStore("gk_central", true),
	}
	tr.slice.put(newPerson(testPersonID))
	tr.curator.put(newPerson(testPersonID))
	return tr
}
