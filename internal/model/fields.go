package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The user and book documents are owned by the wider catalog application,
// not by this service. Records therefore carry fields we never look at
// (emails, ISBNs, cover URLs...). We keep those as raw JSON so that a
// read-modify-write of the users document never drops them.

// splitFields decodes a JSON object into its raw members.
func splitFields(data []byte) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		// "null" decodes to a nil map without error
		fields = map[string]json.RawMessage{}
	}
	return fields, nil
}

// mergeFields encodes the untouched members together with the ones this
// package owns. Owned members win on key collisions.
func mergeFields(extra map[string]json.RawMessage, owned map[string]any) ([]byte, error) {
	out := make(map[string]any, len(extra)+len(owned))
	for k, v := range extra {
		out[k] = v
	}
	for k, v := range owned {
		out[k] = v
	}
	return json.Marshal(out)
}

// decodeID reads an identifier that may be stored as a JSON string or a
// JSON number. Catalog files written by hand often use numeric ids.
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id must be a string or number: %w", err)
	}
	return n.String(), nil
}

// ID is an identifier sent by a client, accepted as a JSON string or
// number and held in string form.
type ID string

// UnmarshalJSON applies the same string-or-number rule as stored ids.
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := decodeID(data)
	if err != nil {
		return err
	}
	*id = ID(s)
	return nil
}

// decodeString reads an optional string member, treating absent and null
// as the empty string.
func decodeString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}
