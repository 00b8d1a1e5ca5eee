// Package confighash computes the launch-config and runtime-config hashes
// tagged onto nodes. The source cloudtik implementation hashes configuration
// dictionaries with unspecified textual serialization; this port pins the
// format down so the tags stay stable across versions: canonicalize to a
// sorted-key JSON byte stream, hash with SHA-256, and keep the first 16 hex
// characters as the tag value.
package confighash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// tagLength is the number of hex characters kept from the SHA-256 digest.
const tagLength = 16

// Of canonicalizes each value in order and hashes the concatenation. Passing
// multiple values lets callers combine, e.g., launch config and auth config
// without having to merge them into one map first.
func Of(values ...interface{}) string {
	h := sha256.New()
	for _, v := range values {
		h.Write(canonicalize(v))
		h.Write([]byte{0}) // separator: marks the boundary between consecutive values
	}
	return hex.EncodeToString(h.Sum(nil))[:tagLength]
}

// canonicalize produces a deterministic byte stream for v: maps are
// re-encoded with sorted keys (recursively), everything else (slices,
// strings, and structs such as types.AuthConfig or types.CommandSet) goes
// through encoding/json directly. If json.Marshal fails (e.g. for a
// channel), the text of its error message is hashed instead: stable, but
// independent of the value's content.
func canonicalize(v interface{}) []byte {
	normalized := normalize(v)
	data, err := json.Marshal(normalized)
	if err != nil {
		return []byte(err.Error())
	}
	return data
}

// normalize walks v, turning every map into a sortedMap (whose MarshalJSON
// emits keys in sorted order) so that json.Marshal output is independent of
// Go's randomized map iteration order.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return newSortedMap(val)
	case map[string]string:
		m := make(map[string]interface{}, len(val))
		for k, v := range val {
			m[k] = v
		}
		return newSortedMap(m)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = e
		}
		return out
	default:
		return val
	}
}

// sortedMap marshals to JSON with keys in sorted order.
type sortedMap struct {
	keys   []string
	values map[string]interface{}
}

func newSortedMap(m map[string]interface{}) sortedMap {
	keys := make([]string, 0, len(m))
	values := make(map[string]interface{}, len(m))
	for k, v := range m {
		keys = append(keys, k)
		values[k] = normalize(v)
	}
	sort.Strings(keys)
	return sortedMap{keys: keys, values: values}
}

func (s sortedMap) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, '{')
	for i, k := range s.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		vb, err := json.Marshal(s.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}
