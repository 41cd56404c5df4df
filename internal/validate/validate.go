package validate

import (
	"fmt"
	"strings"
)

// Options bounds the length checks; spec.md §4.1 requires collectionPath
// and _id byte lengths to fall within [MIN, MAX] but leaves the bounds to
// the implementer. Defaults are generous enough for real document trees.
// The "canonical bytes exceed filesystem path limits" case from spec.md §4
// Open Questions is not checked here (see SPEC_FULL.md §4 item 3).
type Options struct {
	MinIdLength             int
	MaxIdLength             int
	MinCollectionPathLength int
	MaxCollectionPathLength int
	// MaxPathLength bounds the localDir path checked by ValidateLocalDir.
	// ValidateId does not check the projected fullDocPath against it.
	MaxPathLength int
}

// DefaultOptions mirrors the bounds used throughout this package's tests.
func DefaultOptions() Options {
	return Options{
		MinIdLength:             1,
		MaxIdLength:             1024,
		MinCollectionPathLength: 0,
		MaxCollectionPathLength: 1024,
		MaxPathLength:           4096,
	}
}

// forbiddenChars are rejected anywhere in an id or collectionPath segment.
// This is the union of characters illegal in Windows, macOS, and Linux
// filenames (spec.md §3's "platform filename rules").
const forbiddenChars = `<>:"|?*`

var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// NormalizeCollectionPath converts backslash and yen-sign path separators
// to forward slashes and ensures the result is either "" or ends with "/"
// and never starts with "/", per spec.md §4.1. It does not validate; call
// ValidateCollectionPath on the result.
func NormalizeCollectionPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.ReplaceAll(p, "¥", "/") // yen sign, common backslash look-alike
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// ValidateCollectionPath rejects a normalized collectionPath that violates
// spec.md §4.1: must not start with "/" or "_", must not contain forbidden
// characters, and its byte length must fall within [opts.Min, opts.Max].
func ValidateCollectionPath(p string, opts Options) error {
	if p == "" {
		return nil
	}
	if len(p) < opts.MinCollectionPathLength || len(p) > opts.MaxCollectionPathLength {
		return fmt.Errorf("collectionPath %q: %w", p, ErrInvalidCollectionPathLength)
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("collectionPath %q starts with '/': %w", p, ErrInvalidCollectionPathCharacter)
	}
	if strings.HasPrefix(p, "_") {
		return fmt.Errorf("collectionPath %q starts with '_': %w", p, ErrInvalidCollectionPathCharacter)
	}
	trimmed := strings.TrimSuffix(p, "/")
	for _, seg := range strings.Split(trimmed, "/") {
		if err := validateSegment(seg); err != nil {
			return fmt.Errorf("collectionPath %q: %w", p, joinErr(ErrInvalidCollectionPathCharacter, err))
		}
	}
	return nil
}

// ValidateId rejects an _id that violates spec.md §3: must not start with
// "_" or "/", must not end with "/", must not contain forbidden characters,
// and must satisfy platform filename rules segment by segment (a "/" in an
// _id selects a sub-directory layout on disk).
func ValidateId(id string, opts Options) error {
	if id == "" {
		return ErrUndefinedDocumentId
	}
	if len(id) < opts.MinIdLength || len(id) > opts.MaxIdLength {
		return fmt.Errorf("_id %q: %w", id, ErrInvalidIdLength)
	}
	if strings.HasPrefix(id, "_") {
		return fmt.Errorf("_id %q starts with '_': %w", id, ErrInvalidIdCharacter)
	}
	if strings.HasPrefix(id, "/") {
		return fmt.Errorf("_id %q starts with '/': %w", id, ErrInvalidIdCharacter)
	}
	if strings.HasSuffix(id, "/") {
		return fmt.Errorf("_id %q ends with '/': %w", id, ErrInvalidIdCharacter)
	}
	for _, seg := range strings.Split(id, "/") {
		if err := validateSegment(seg); err != nil {
			return fmt.Errorf("_id %q: %w", id, joinErr(ErrInvalidIdCharacter, err))
		}
	}
	return nil
}

// ValidatePropertyNames rejects any top-level JSON property name beginning
// with "_" other than "_id" and "_deleted" (spec.md §4.1; "_deleted" is the
// tombstone marker added by SPEC_FULL.md §3).
func ValidatePropertyNames(names []string) error {
	for _, n := range names {
		if n == "_id" || n == "_deleted" {
			continue
		}
		if strings.HasPrefix(n, "_") {
			return fmt.Errorf("property %q: %w", n, ErrInvalidPropertyNameInDocument)
		}
	}
	return nil
}

// ValidateDbName rejects an empty or path-hostile database name.
func ValidateDbName(name string) error {
	if name == "" {
		return ErrUndefinedDatabaseName
	}
	if err := validateSegment(name); err != nil {
		return fmt.Errorf("dbName %q: %w", name, joinErr(ErrInvalidDbNameCharacter, err))
	}
	return nil
}

// ValidateLocalDir rejects a localDir whose byte length is unreasonable.
// Unlike collectionPath/_id, localDir is a real filesystem path and may
// legitimately be absolute, so only the length and forbidden-character
// rules apply (not the "no leading /" rule).
func ValidateLocalDir(dir string, opts Options) error {
	if len(dir) > opts.MaxPathLength {
		return fmt.Errorf("localDir %q: %w", dir, ErrInvalidWorkingDirectoryPathLength)
	}
	if strings.ContainsAny(dir, forbiddenChars) || strings.ContainsRune(dir, 0) {
		return fmt.Errorf("localDir %q: %w", dir, ErrInvalidLocalDirCharacter)
	}
	return nil
}

// validateSegment checks one "/"-delimited path component against the
// platform filename rules named in spec.md §3.
func validateSegment(seg string) error {
	if seg == "" {
		return fmt.Errorf("empty path segment")
	}
	if seg == "." || seg == ".." {
		return fmt.Errorf("reserved segment %q", seg)
	}
	if strings.ContainsAny(seg, forbiddenChars) || strings.ContainsRune(seg, 0) {
		return fmt.Errorf("forbidden character in segment %q", seg)
	}
	for _, r := range seg {
		if r < 0x20 {
			return fmt.Errorf("control character in segment %q", seg)
		}
	}
	if seg != strings.TrimRight(seg, " .") {
		return fmt.Errorf("segment %q has trailing period or whitespace", seg)
	}
	base := seg
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if reservedNames[strings.ToUpper(base)] {
		return fmt.Errorf("segment %q is a reserved name", seg)
	}
	return nil
}

// joinErr wraps detail under sentinel so callers can still errors.Is(err, sentinel).
func joinErr(sentinel, detail error) error {
	return fmt.Errorf("%w (%v)", sentinel, detail)
}
