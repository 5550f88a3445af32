package source

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONValue stores a typed struct as a JSON column. Corrupt at-rest data
// degrades to an absent value on scan rather than failing the read path;
// marshal failures on the write path are real errors.
type JSONValue[T any] struct {
	Data  T
	Valid bool
}

// NewJSONValue wraps data as a present value.
func NewJSONValue[T any](data T) JSONValue[T] {
	return JSONValue[T]{Data: data, Valid: true}
}

func (v *JSONValue[T]) Scan(src any) error {
	var zero T
	v.Data, v.Valid = zero, false
	if src == nil {
		return nil
	}

	var raw []byte
	switch s := src.(type) {
	case []byte:
		raw = s
	case string:
		raw = []byte(s)
	default:
		return fmt.Errorf("cannot scan %T into JSONValue", src)
	}

	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		// Corrupt stored data must not break reads.
		return nil
	}
	v.Data, v.Valid = data, true
	return nil
}

func (v JSONValue[T]) Value() (driver.Value, error) {
	if !v.Valid {
		return nil, nil
	}
	raw, err := json.Marshal(v.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON column: %w", err)
	}
	return raw, nil
}
