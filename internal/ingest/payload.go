// Bantay - Fisherfolk Safety and Vessel Tracking
// Copyright 2026 DummyC
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/DummyC/Bantay-v2

package ingest

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// ErrMalformedPayload indicates the request body was not one of the
// accepted payload shapes.
var ErrMalformedPayload = errors.New("malformed payload")

// Batch is a decoded webhook body: the report objects it carried plus
// the count of list members that were not objects at all.
type Batch struct {
	Items     []map[string]any
	Malformed int
}

// ParseBatch decodes a webhook body into a list of raw report objects.
// Accepted shapes, matching what Traccar forwarders send in the wild:
//
//   - a JSON list of reports
//   - an object wrapping a list under listKey (e.g. "positions")
//   - an object wrapping a single report under itemKey (e.g. "position")
//   - a bare single report object
func ParseBatch(body []byte, listKey, itemKey string) (Batch, error) {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch v := decoded.(type) {
	case []any:
		return batchFromList(v), nil
	case map[string]any:
		if wrapped, ok := v[listKey]; ok {
			list, isList := wrapped.([]any)
			if !isList {
				return Batch{}, fmt.Errorf("%w: %q is not a list", ErrMalformedPayload, listKey)
			}
			return batchFromList(list), nil
		}
		if wrapped, ok := v[itemKey]; ok {
			item, isObj := wrapped.(map[string]any)
			if !isObj {
				return Batch{}, fmt.Errorf("%w: %q is not an object", ErrMalformedPayload, itemKey)
			}
			return Batch{Items: []map[string]any{item}}, nil
		}
		// Bare single report.
		return Batch{Items: []map[string]any{v}}, nil
	default:
		return Batch{}, fmt.Errorf("%w: expected object or list", ErrMalformedPayload)
	}
}

func batchFromList(list []any) Batch {
	batch := Batch{Items: make([]map[string]any, 0, len(list))}
	for _, member := range list {
		obj, ok := member.(map[string]any)
		if !ok {
			batch.Malformed++
			continue
		}
		batch.Items = append(batch.Items, obj)
	}
	return batch
}
