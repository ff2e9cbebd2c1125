package store

import (
	"database/sql"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/stableids/internal/ir"
)

// encodedValue is the column form of an ir.Value.
type encodedValue struct {
	valueType string
	str       sql.NullString
	num       sql.NullInt64
}

// encodeValue converts an ir.Value to its column form.
// Strings are NFC normalized so identifiers compare equal across stores
// regardless of how curators typed them.
func encodeValue(v ir.Value) (encodedValue, error) {
	switch val := v.(type) {
	case ir.String:
		return encodedValue{
			valueType: string(ir.KindString),
			str:       sql.NullString{String: norm.NFC.String(string(val)), Valid: true},
		}, nil
	case ir.Int:
		return encodedValue{
			valueType: string(ir.KindInt),
			num:       sql.NullInt64{Int64: int64(val), Valid: true},
		}, nil
	case ir.Ref:
		return encodedValue{
			valueType: string(ir.KindRef),
			num:       sql.NullInt64{Int64: int64(val), Valid: true},
		}, nil
	default:
		return encodedValue{}, fmt.Errorf("unknown value type %T", v)
	}
}

// decodeValue converts a column form back to an ir.Value.
func decodeValue(e encodedValue) (ir.Value, error) {
	switch ir.ValueKind(e.valueType) {
	case ir.KindString:
		if !e.str.Valid {
			return nil, fmt.Errorf("string value is NULL")
		}
		return ir.String(e.str.String), nil
	case ir.KindInt:
		if !e.num.Valid {
			return nil, fmt.Errorf("int value is NULL")
		}
		return ir.Int(e.num.Int64), nil
	case ir.KindRef:
		if !e.num.Valid {
			return nil, fmt.Errorf("ref value is NULL")
		}
		return ir.Ref(e.num.Int64), nil
	default:
		return nil, fmt.Errorf("unknown value_type %q", e.valueType)
	}
}
