// Package canon implements deterministic serialization and content
// fingerprinting for any JSON-compatible value. Two values that are
// semantically equal (same keys, same numbers, same strings modulo line
// ending) always produce identical canonical bytes and therefore identical
// fingerprints, regardless of map iteration order or how the value was
// originally decoded.
//
// Canonicalization rules, matching the determinism contract every edge
// relies on:
//   - object keys are sorted ascending by Unicode code point;
//   - no insignificant whitespace is emitted;
//   - integers are preserved as decimal strings, never reformatted;
//   - floats use the shortest round-trippable decimal (strconv's 'g', -1);
//   - string line endings are normalized to LF;
//   - NaN and Infinity are rejected with CanonicalizationError;
//   - binary blobs are never embedded; callers must reference them by hash
//     (see Fingerprint) before handing the value to Canonical.
package canon

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Error reports why a value could not be canonicalized. It wraps the
// offending path so recorders can attach it to the failing edge's event.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("canonicalization: %s", e.Reason)
	}
	return fmt.Sprintf("canonicalization: %s at %s", e.Reason, e.Path)
}

// BlobRef marks a binary payload that must be addressed by hash rather than
// embedded inline. Canonical writes a BlobRef as the string "blake3:"
// followed by HashBytes(Bytes); the raw Bytes are never serialized into the
// canonical form.
type BlobRef struct {
	// Bytes is the raw payload. It is hashed but not emitted.
	Bytes []byte
}

// Canonical returns the deterministic byte representation of v. v must be
// built from the JSON-compatible universe: nil, bool, string, float64,
// int/int64, json.Number, []any, map[string]any, and BlobRef. Decode
// arbitrary structs through json.Marshal/Unmarshal into map[string]any
// first so struct field ordering never leaks in.
func Canonical(v any) ([]byte, error) {
	var buf strings.Builder
	if err := writeValue(&buf, v, ""); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Fingerprint returns the BLAKE3 hex digest of Canonical(v). Fingerprints
// are equal if and only if the canonical bytes are equal (canon.Canonical
// is idempotent: canonicalizing the canonical bytes round-trips unchanged).
func Fingerprint(v any) (string, error) {
	b, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes returns the BLAKE3 hex digest of raw bytes, used both for
// canonical-form fingerprints and for content-addressing artifact blobs.
func HashBytes(b []byte) string {
	sum := blake3.Sum256(b)
	return fmt.Sprintf("%x", sum)
}

func writeValue(buf *strings.Builder, v any, path string) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case string:
		return writeString(buf, val)
	case BlobRef:
		return writeString(buf, "blake3:"+HashBytes(val.Bytes))
	case json.Number:
		return writeNumberString(buf, val.String(), path)
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
		return nil
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
		return nil
	case float64:
		return writeFloat(buf, val, path)
	case []any:
		return writeArray(buf, val, path)
	case map[string]any:
		return writeObject(buf, val, path)
	default:
		return &Error{Path: path, Reason: fmt.Sprintf("unsupported type %T", v)}
	}
}

func writeNumberString(buf *strings.Builder, s, path string) error {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return &Error{Path: path, Reason: "malformed number " + s}
	}
	return writeFloat(buf, f, path)
}

func writeFloat(buf *strings.Builder, f float64, path string) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return &Error{Path: path, Reason: "non-finite number not permitted"}
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

func writeString(buf *strings.Builder, s string) error {
	normalized := normalizeLineEndings(s)
	encoded, err := json.Marshal(normalized)
	if err != nil {
		return &Error{Reason: "invalid string: " + err.Error()}
	}
	buf.Write(encoded)
	return nil
}

func normalizeLineEndings(s string) string {
	if !strings.ContainsRune(s, '\r') {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return s
}

func writeArray(buf *strings.Builder, arr []any, path string) error {
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeObject(buf *strings.Builder, obj map[string]any, path string) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return less(keys[i], keys[j])
	})
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		childPath := k
		if path != "" {
			childPath = path + "." + k
		}
		if err := writeValue(buf, obj[k], childPath); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// less orders strings ascending by Unicode code point, which for Go's UTF-8
// string type coincides with plain byte-wise comparison.
func less(a, b string) bool { return a < b }
