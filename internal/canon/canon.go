// Package canon implements the JSON Normalizer (spec.md §4.2): the single
// source of truth for the bytes handed to the Git Backend. Blob object ids
// are computed over exactly these bytes, so canonicalization must be a
// pure, deterministic function of the document's parsed value.
package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Doc is the in-memory representation of a JsonDoc's body: a JSON object
// decoded with ordered map semantics preserved by re-sorting on every
// marshal, per spec.md's "canonical sorted-key serialization."
type Doc = map[string]any

// Canonicalize serializes doc with keys sorted ascending at every nesting
// level, two-space indentation, and a trailing newline. encoding/json
// already sorts map[string]any keys on marshal; this function also
// recursively normalizes nested maps so that round-tripping through
// ParseDoc and Canonicalize again is idempotent.
func Canonicalize(doc Doc) ([]byte, error) {
	normalized := normalize(doc)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("canon: encode: %w", err)
	}
	// json.Encoder.Encode already appends exactly one trailing newline.
	return buf.Bytes(), nil
}

// ParseDoc decodes raw JSON bytes into a Doc. All JSON reads round-trip
// through Parse+Canonicalize so that content-addressed identity is stable
// regardless of the input key order (spec.md §4.2).
func ParseDoc(raw []byte) (Doc, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canon: decode: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("canon: top-level JSON value is not an object")
	}
	return m, nil
}

// WithID returns a shallow copy of doc with its "_id" property set to id.
// Used both to embed the fullDocPath inside the persisted bytes and to
// rewrite the shortId into the value returned from the API.
func WithID(doc Doc, id string) Doc {
	out := make(Doc, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["_id"] = id
	return out
}

// PropertyNames returns the top-level property names of doc, for
// validate.ValidatePropertyNames.
func PropertyNames(doc Doc) []string {
	names := make([]string, 0, len(doc))
	for k := range doc {
		names = append(names, k)
	}
	return names
}

// normalize deep-copies v, recursively converting any nested map into a
// plain map[string]any with no special ordering metadata — json.Marshal
// sorts map[string]any keys for us, so the work here is purely recursive
// type normalization (maps-of-maps, slices-of-maps, etc.) so nested
// objects also get canonical ordering instead of relying on field order
// from whatever produced the value.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = normalize(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return t
	}
}
