// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package facade

import (
	"fmt"

	"github.com/relabs-tech/kontor/store"
)

// sanitize intersects the payload with the resource's writable allow-list.
// Keys outside the list are dropped, surviving values pass through
// unmodified apart from the integer coercion JSON decoding requires:
// numbers destined for integer and relation fields arrive as float64 and
// are converted to int64. A relation value may also be an {id: n} object,
// which collapses to its identifier.
func sanitize(rc Resource, payload map[string]any) (store.Fields, error) {
	fields := store.Fields{}
	for _, key := range rc.writable() {
		value, ok := payload[key]
		if !ok {
			continue
		}
		field, declared := rc.field(key)
		if !declared {
			fields[key] = value
			continue
		}
		switch field.Type {
		case store.FieldInteger, store.FieldRelation:
			converted, err := asIdentifier(value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			fields[key] = converted
		default:
			fields[key] = value
		}
	}
	return fields, nil
}

func asIdentifier(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case map[string]any:
		id, ok := v["id"]
		if !ok {
			return nil, fmt.Errorf("object value carries no id")
		}
		return asIdentifier(id)
	default:
		return nil, fmt.Errorf("%v is not an integer", value)
	}
}

// checkRequired verifies that every required field is present with a
// non-empty value.
func checkRequired(rc Resource, fields store.Fields) error {
	for _, key := range rc.Required {
		value, ok := fields[key]
		if !ok || value == nil || value == "" {
			return fmt.Errorf("missing required field: %s", key)
		}
	}
	return nil
}
