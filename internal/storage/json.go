package storage

import (
	"encoding/json"
	"fmt"
)

// EncodeList marshals a string list for a JSON column, never producing null.
func EncodeList(items []string) ([]byte, error) {
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal list: %w", err)
	}
	return data, nil
}

// DecodeList is the inverse of EncodeList. Empty input decodes to an empty list.
func DecodeList(data []byte) ([]string, error) {
	items := []string{}
	if len(data) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// EncodeRaw returns the raw payload, substituting an empty object when absent.
func EncodeRaw(raw json.RawMessage) []byte {
	if len(raw) == 0 || !json.Valid(raw) {
		return []byte("{}")
	}
	return raw
}
