package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// Metadata is an opaque JSON object attached to a record. It is kept in
// its encoded form; callers decode it into their own types when needed.
type Metadata []byte

var emptyObject = []byte("{}")

// NewMetadata encodes v as a Metadata object.
func NewMetadata(v any) (Metadata, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("metadata: encode: %w", err)
	}
	m := Metadata(data)
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Decode unmarshals the metadata into v. Empty metadata decodes as {}.
func (m Metadata) Decode(v any) error {
	return json.Unmarshal(m.Bytes(), v)
}

// Bytes returns the encoded object, "{}" when empty.
func (m Metadata) Bytes() []byte {
	if len(bytes.TrimSpace(m)) == 0 {
		return emptyObject
	}
	return m
}

// MarshalJSON implements json.Marshaler.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return m.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null leaves m unchanged.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}
	candidate := Metadata(append([]byte{}, data...))
	if err := candidate.validate(); err != nil {
		return err
	}
	*m = candidate
	return nil
}

// Value implements driver.Valuer; metadata is stored as JSON text.
func (m Metadata) Value() (driver.Value, error) {
	return string(m.Bytes()), nil
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*m = nil
	case string:
		*m = Metadata(v)
	case []byte:
		*m = append(Metadata{}, v...)
	default:
		return fmt.Errorf("metadata: unsupported scan type %T", src)
	}
	return nil
}

func (m Metadata) validate() error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(m.Bytes(), &obj); err != nil {
		return errors.New("metadata: must be a JSON object")
	}
	return nil
}
