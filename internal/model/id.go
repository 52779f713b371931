package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is the canonical string form of an entity identifier. The communication
// backend returns ids inconsistently as JSON numbers or strings; all external
// ids are normalized here, at the decoding boundary, so the rest of the code
// never re-coerces.
type ID string

func (id ID) String() string {
	return string(id)
}

// IsZero reports whether the id is absent. Freshly sent messages have no id
// until the server echo arrives.
func (id ID) IsZero() bool {
	return id == ""
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID(n.String())
		return nil
	}

	return fmt.Errorf("invalid id literal: %s", data)
}

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

// ParseID normalizes an id from a non-JSON source such as a query parameter.
func ParseID(raw any) ID {
	switch v := raw.(type) {
	case string:
		return ID(v)
	case int:
		return ID(strconv.Itoa(v))
	case int64:
		return ID(strconv.FormatInt(v, 10))
	case float64:
		return ID(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return ID(fmt.Sprintf("%v", v))
	}
}
