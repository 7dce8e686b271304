package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is an identifier issued by the backend. It may be a JSON number or a JSON string;
// the original token is kept so the value is echoed back exactly as received.
type ID string

// NumericID returns an ID holding a JSON number.
func NumericID(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}

// StringID returns an ID holding a JSON string.
func StringID(s string) ID {
	return ID(strconv.Quote(s))
}

// UnmarshalJSON accepts a JSON number or string.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return fmt.Errorf("%w: id is null", ErrMalformedPayload)
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("%w: id: %v", ErrMalformedPayload, err)
		}
		if s == "" {
			return fmt.Errorf("%w: id is empty", ErrMalformedPayload)
		}
		*id = StringID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("%w: id must be a number or string", ErrMalformedPayload)
	}
	*id = ID(n.String())
	return nil
}

// MarshalJSON writes the original token.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	return []byte(id), nil
}

// IsZero reports whether the ID was never set.
func (id ID) IsZero() bool {
	return id == ""
}

// String returns the identifier without JSON quoting.
func (id ID) String() string {
	if s, err := strconv.Unquote(string(id)); err == nil {
		return s
	}
	return string(id)
}

// Less orders numeric IDs numerically, before string IDs, which sort lexically.
func (id ID) Less(other ID) bool {
	a, aErr := strconv.ParseFloat(string(id), 64)
	b, bErr := strconv.ParseFloat(string(other), 64)
	switch {
	case aErr == nil && bErr == nil:
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return id.String() < other.String()
	}
}
