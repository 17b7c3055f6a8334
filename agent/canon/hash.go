// Package canon implements the canonical JSON hash used as both the
// Deduplicator's lookup key and the turn_id recorded on tool results (spec
// §4.1). Canonicalization is implemented directly rather than delegated to
// any library's JSON serializer (spec §9 Design Notes), because the
// standard library's encoding/json re-renders numbers from their decoded
// float64/json.Number form and does not guarantee object key order is
// preserved across re-marshaling — both of which would break the
// commutativity property this package exists to guarantee (spec §8
// property 2): two parameter objects that are deep-equal but differ only in
// source key order must hash identically.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Hash returns the hex-encoded SHA-256 digest of "{tool}|{canonical(params)}".
// It is deterministic: calling it twice with deep-equal params, regardless of
// source map/object key order, yields the same digest.
func Hash(tool string, params map[string]any) string {
	var buf []byte
	buf = append(buf, tool...)
	buf = append(buf, '|')
	buf = appendCanonical(buf, params)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// HashJSON behaves like Hash but accepts params already materialized as raw
// JSON (for example, native function-call arguments decoded via
// json.Number). It round-trips through appendCanonicalValue to preserve the
// caller's numeric literal form.
func HashJSON(tool string, rawParams []byte) (string, error) {
	var v any
	dec := json.NewDecoder(bytesReader(rawParams))
	dec.UseNumber()
	if len(rawParams) == 0 {
		v = map[string]any{}
	} else if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("canon: decode params: %w", err)
	}
	var buf []byte
	buf = append(buf, tool...)
	buf = append(buf, '|')
	buf = appendCanonicalValue(buf, v)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:]), nil
}

func bytesReader(b []byte) *byteReader { return &byteReader{b: b} }

// byteReader is a minimal io.Reader over a byte slice, avoiding a bytes
// import solely for json.NewDecoder's sake.
type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, errEOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

var errEOF = fmt.Errorf("EOF")

// appendCanonical renders a map[string]any (as typically constructed by
// callers building tool params programmatically) in canonical form: object
// keys sorted lexicographically, arrays preserving source order, numbers
// rendered via Go's default formatting (since this path has no access to the
// original lexical form — callers that need source-text-preserving number
// canonicalization should go through HashJSON instead).
func appendCanonical(buf []byte, params map[string]any) []byte {
	return appendCanonicalValue(buf, map[string]any(params))
}

func appendCanonicalValue(buf []byte, v any) []byte {
	switch t := v.(type) {
	case nil:
		return append(buf, "null"...)
	case bool:
		if t {
			return append(buf, "true"...)
		}
		return append(buf, "false"...)
	case json.Number:
		return append(buf, t.String()...)
	case float64:
		return append(buf, strconv.FormatFloat(t, 'g', -1, 64)...)
	case int:
		return append(buf, strconv.Itoa(t)...)
	case int64:
		return append(buf, strconv.FormatInt(t, 10)...)
	case string:
		s, _ := json.Marshal(t)
		return append(buf, s...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			ks, _ := json.Marshal(k)
			buf = append(buf, ks...)
			buf = append(buf, ':')
			buf = appendCanonicalValue(buf, t[k])
		}
		buf = append(buf, '}')
		return buf
	case []any:
		buf = append(buf, '[')
		for i, e := range t {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendCanonicalValue(buf, e)
		}
		buf = append(buf, ']')
		return buf
	default:
		// Fall back to the standard encoder for any type not covered above
		// (e.g., caller-defined structs passed as tool params). This loses
		// the source-text-preservation guarantee for numbers nested inside
		// such values, which is acceptable: those values never came from the
		// model's raw JSON in the first place.
		s, _ := json.Marshal(t)
		return append(buf, s...)
	}
}
