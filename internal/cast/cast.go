// Package cast converts the untyped any values a bencode.Decoder produces
// into the concrete Go types metainfo parsing expects.
package cast

import "fmt"

// ToString coerces v to a string. Bencoded byte strings decode as Go
// strings already; this also accepts []byte for callers that went through
// an intermediate re-encoding step.
func ToString(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case []byte:
		return string(t), nil
	default:
		return "", fmt.Errorf("cast: %T is not a string", v)
	}
}

// ToBytes coerces v to a byte slice.
func ToBytes(v any) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("cast: %T is not a byte string", v)
	}
}

// ToInt coerces v to an int64. bencode.Decoder always produces int64 for
// integers; the wider switch accommodates values built programmatically
// (e.g. in tests).
func ToInt(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint64:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("cast: %T is not an integer", v)
	}
}

// ToStringSlice coerces v to a []string, requiring every element to be a
// string (used for the "path" component list of a multi-file entry).
func ToStringSlice(v any) ([]string, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("cast: %T is not a list", v)
	}

	out := make([]string, 0, len(list))
	for i, e := range list {
		s, err := ToString(e)
		if err != nil {
			return nil, fmt.Errorf("cast: element %d: %w", i, err)
		}
		out = append(out, s)
	}

	return out, nil
}

// ToTieredStrings coerces v to a [][]string, the shape of BEP-12's
// "announce-list": a list of tiers, each a list of URL strings.
func ToTieredStrings(v any) ([][]string, error) {
	tiers, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("cast: %T is not a list of tiers", v)
	}

	out := make([][]string, 0, len(tiers))
	for i, t := range tiers {
		tier, err := ToStringSlice(t)
		if err != nil {
			return nil, fmt.Errorf("cast: tier %d: %w", i, err)
		}
		out = append(out, tier)
	}

	return out, nil
}
