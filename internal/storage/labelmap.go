package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// LabelMap maps a decimal label to its content record. Records are opaque JSON.
type LabelMap map[string]json.RawMessage

// ParseLabelMap decodes a label map. Anything other than a JSON object is rejected.
func ParseLabelMap(data []byte) (LabelMap, error) {
	var m LabelMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse label map: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("parse label map: not a JSON object")
	}
	return m, nil
}

// Lookup returns the record for label. Records that are not JSON objects count as missing.
func (m LabelMap) Lookup(label uint64) (json.RawMessage, bool) {
	rec, ok := m[strconv.FormatUint(label, 10)]
	if !ok || !isObject(rec) {
		return nil, false
	}
	return rec, true
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
