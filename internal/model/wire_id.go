package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// WireID is an identifier received from a browser client, which may send it
// as a JSON string or number.
type WireID string

// UnmarshalJSON accepts "12", 12 and null (left empty).
func (w *WireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*w = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*w = WireID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("id must be a string or number")
	}
	*w = WireID(n.String())
	return nil
}

// Int64 parses the identifier.
func (w WireID) Int64() (int64, error) {
	return strconv.ParseInt(string(w), 10, 64)
}

// OptionalWireID is a WireID whose key must be sent but whose value may be
// null. Present is false only when the key was absent.
type OptionalWireID struct {
	Present bool
	ID      WireID
}

// UnmarshalJSON marks the key present and decodes the value; null leaves ID empty.
func (o *OptionalWireID) UnmarshalJSON(b []byte) error {
	o.Present = true
	return o.ID.UnmarshalJSON(b)
}

// Int64Ptr returns nil for a null value and the parsed identifier otherwise.
func (o OptionalWireID) Int64Ptr() (*int64, error) {
	if o.ID == "" {
		return nil, nil
	}
	id, err := o.ID.Int64()
	if err != nil {
		return nil, err
	}
	return &id, nil
}
