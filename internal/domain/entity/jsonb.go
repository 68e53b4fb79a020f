package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// scanJSONB decodes a jsonb column into dest. NULL and empty values leave dest untouched.
func scanJSONB(value interface{}, dest interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("failed to unmarshal JSONB value: unexpected type %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

// jsonbValue encodes v for a jsonb column, writing empty as the given literal instead of null.
func jsonbValue(v interface{}, isEmpty bool, empty string) (driver.Value, error) {
	if isEmpty {
		return []byte(empty), nil
	}
	return json.Marshal(v)
}
