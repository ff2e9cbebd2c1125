package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/stableids/internal/ir"
)

// FetchInstance loads one instance with all its attributes.
// Returns nil, nil if no instance has the given db_id.
func (s *Store) FetchInstance(ctx context.Context, dbID int64) (*ir.Instance, error) {
	var class, displayName string
	err := s.conn().QueryRowContext(ctx, `
		SELECT class, display_name FROM instances WHERE db_id = ?
	`, dbID).Scan(&class, &displayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch instance %d: %w", dbID, err)
	}

	inst := ir.NewInstance(dbID, class, displayName)
	byID := map[int64]*ir.Instance{dbID: inst}
	if err := s.loadAttributes(ctx, byID, `WHERE av.db_id = ?`, dbID); err != nil {
		return nil, fmt.Errorf("fetch instance %d: %w", dbID, err)
	}
	return inst, nil
}

// FetchInstancesByClass returns every instance whose class is the given class
// or one of its subclasses, ordered by db_id.
//
// Returns an empty slice (not nil) if no records exist.
func (s *Store) FetchInstancesByClass(ctx context.Context, class string) ([]*ir.Instance, error) {
	classes := s.schema.Subclasses(class)
	if len(classes) == 0 {
		return nil, fmt.Errorf("fetch instances: unknown class %q", class)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(classes)), ",")
	args := make([]any, len(classes))
	for i, c := range classes {
		args[i] = c
	}

	rows, err := s.conn().QueryContext(ctx, `
		SELECT db_id, class, display_name
		FROM instances
		WHERE class IN (`+placeholders+`)
		ORDER BY db_id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query instances of %s: %w", class, err)
	}

	instances := []*ir.Instance{}
	byID := make(map[int64]*ir.Instance)
	for rows.Next() {
		var dbID int64
		var cls, displayName string
		if err := rows.Scan(&dbID, &cls, &displayName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		inst := ir.NewInstance(dbID, cls, displayName)
		instances = append(instances, inst)
		byID[dbID] = inst
	}
	// Close before the next query: the pool holds a single connection.
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close instances: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}

	if len(instances) == 0 {
		return instances, nil
	}

	err = s.loadAttributes(ctx, byID,
		`JOIN instances i ON i.db_id = av.db_id WHERE i.class IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch instances of %s: %w", class, err)
	}
	return instances, nil
}

// FetchReferrers returns the instances whose attribute holds a ref to dbID,
// ordered by db_id.
func (s *Store) FetchReferrers(ctx context.Context, dbID int64, attribute string) ([]*ir.Instance, error) {
	rows, err := s.conn().QueryContext(ctx, `
		SELECT DISTINCT db_id
		FROM attribute_values
		WHERE attribute = ? AND value_type = 'ref' AND int_value = ?
		ORDER BY db_id ASC
	`, attribute, dbID)
	if err != nil {
		return nil, fmt.Errorf("query referrers of %d: %w", dbID, err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan referrer: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close referrers: %w", err)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referrers: %w", err)
	}

	referrers := make([]*ir.Instance, 0, len(ids))
	for _, id := range ids {
		inst, err := s.FetchInstance(ctx, id)
		if err != nil {
			return nil, err
		}
		if inst != nil {
			referrers = append(referrers, inst)
		}
	}
	return referrers, nil
}

// CountInstances returns the number of instances in the store.
func (s *Store) CountInstances(ctx context.Context) (int, error) {
	var n int
	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM instances`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count instances: %w", err)
	}
	return n, nil
}

// loadAttributes fills attribute values for the given instances.
// filter is appended after "FROM attribute_values av".
func (s *Store) loadAttributes(ctx context.Context, byID map[int64]*ir.Instance, filter string, args ...any) error {
	rows, err := s.conn().QueryContext(ctx, `
		SELECT av.db_id, av.attribute, av.value_type, av.str_value, av.int_value
		FROM attribute_values av
		`+filter+`
		ORDER BY av.db_id ASC, av.attribute ASC, av.rank ASC
	`, args...)
	if err != nil {
		return fmt.Errorf("query attributes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dbID int64
		var attribute string
		var e encodedValue
		if err := rows.Scan(&dbID, &attribute, &e.valueType, &e.str, &e.num); err != nil {
			return fmt.Errorf("scan attribute: %w", err)
		}
		v, err := decodeValue(e)
		if err != nil {
			return fmt.Errorf("instance %d attribute %q: %w", dbID, attribute, err)
		}
		if inst, ok := byID[dbID]; ok {
			inst.AddValue(attribute, v)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attributes: %w", err)
	}
	return nil
}
