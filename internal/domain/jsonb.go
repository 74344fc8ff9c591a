package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON is a native JSON-valued column, avoiding re-parsing opaque
// provider payloads until the composer actually needs them. It wraps
// database/sql's Scanner/Valuer directly over encoding/json.RawMessage.
type JSON json.RawMessage

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = JSON(v)
		return nil
	default:
		return fmt.Errorf("unsupported Scan source for domain.JSON: %T", src)
	}
}

// MarshalJSON satisfies json.Marshaler so JSON round-trips through the
// API layer unchanged.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON satisfies json.Unmarshaler.
func (j *JSON) UnmarshalJSON(data []byte) error {
	*j = append((*j)[0:0], data...)
	return nil
}
