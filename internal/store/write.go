package store

import (
	"context"
	"fmt"

	"github.com/roach88/stableids/internal/ir"
)

// StoreInstance inserts a new instance with all its attributes and returns
// its db_id. A zero DBID is replaced by the next free id, and inst.DBID is
// updated in place.
//
// The instance is validated against the store's schema first.
func (s *Store) StoreInstance(ctx context.Context, inst *ir.Instance) (int64, error) {
	if err := s.schema.Validate(inst); err != nil {
		return 0, fmt.Errorf("store instance: %w", err)
	}

	err := s.write(ctx, func(q querier) error {
		if inst.DBID == 0 {
			var next int64
			if err := q.QueryRowContext(ctx,
				`SELECT COALESCE(MAX(db_id), 0) + 1 FROM instances`,
			).Scan(&next); err != nil {
				return fmt.Errorf("next db_id: %w", err)
			}
			inst.DBID = next
		}

		if _, err := q.ExecContext(ctx, `
			INSERT INTO instances (db_id, class, display_name)
			VALUES (?, ?, ?)
		`, inst.DBID, inst.Class, inst.DisplayName); err != nil {
			return fmt.Errorf("insert instance %d: %w", inst.DBID, err)
		}

		for _, name := range inst.AttributeNames() {
			if err := insertValues(ctx, q, inst.DBID, name, inst.Values(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("store instance: %w", err)
	}
	return inst.DBID, nil
}

// UpdateInstanceAttribute persists the in-memory values of one attribute,
// replacing whatever the store held. "_displayName" updates the instance row.
func (s *Store) UpdateInstanceAttribute(ctx context.Context, inst *ir.Instance, attribute string) error {
	if attribute != ir.AttrDisplayName && !s.schema.IsValidAttribute(inst.Class, attribute) {
		return fmt.Errorf("update %s.%s: attribute is not valid for class %s",
			inst, attribute, inst.Class)
	}

	err := s.write(ctx, func(q querier) error {
		if attribute == ir.AttrDisplayName {
			result, err := q.ExecContext(ctx, `
				UPDATE instances SET display_name = ? WHERE db_id = ?
			`, inst.DisplayName, inst.DBID)
			if err != nil {
				return err
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			if n == 0 {
				return ErrInstanceNotFound
			}
			return nil
		}

		var exists int
		if err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM instances WHERE db_id = ?`, inst.DBID,
		).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrInstanceNotFound
		}

		if _, err := q.ExecContext(ctx, `
			DELETE FROM attribute_values WHERE db_id = ? AND attribute = ?
		`, inst.DBID, attribute); err != nil {
			return fmt.Errorf("clear values: %w", err)
		}
		return insertValues(ctx, q, inst.DBID, attribute, inst.Values(attribute))
	})
	if err != nil {
		return fmt.Errorf("update %d.%s: %w", inst.DBID, attribute, err)
	}
	return nil
}

func insertValues(ctx context.Context, q querier, dbID int64, attribute string, vals []ir.Value) error {
	for rank, v := range vals {
		e, err := encodeValue(v)
		if err != nil {
			return fmt.Errorf("encode %d.%s[%d]: %w", dbID, attribute, rank, err)
		}
		if _, err := q.ExecContext(ctx, `
			INSERT INTO attribute_values (db_id, attribute, rank, value_type, str_value, int_value)
			VALUES (?, ?, ?, ?, ?, ?)
		`, dbID, attribute, rank, e.valueType, e.str, e.num); err != nil {
			return fmt.Errorf("insert %d.%s[%d]: %w", dbID, attribute, rank, err)
		}
	}
	return nil
}
