package memo

import (
	"errors"

	"github.com/google/uuid"
)

// ID is a value object for the client-generated memo identifier. It is
// assigned once at creation and stays stable for the memo's entire local
// lifetime, independent of the server-assigned identity.
type ID struct {
	value string
}

// NewID creates a new random ID
func NewID() ID {
	return ID{value: uuid.New().String()}
}

// ParseID creates an ID from an existing string
func ParseID(id string) (ID, error) {
	if id == "" {
		return ID{}, errors.New("memo ID cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return ID{}, errors.New("memo ID must be a valid UUID")
	}
	return ID{value: id}, nil
}

// String returns the string representation of the ID
func (id ID) String() string {
	return id.value
}

// Equals checks if two IDs are equal
func (id ID) Equals(other ID) bool {
	return id.value == other.value
}

// IsZero checks if the ID is the zero value
func (id ID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("memo ID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}
