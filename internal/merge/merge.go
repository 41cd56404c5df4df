// Package merge implements the Merge Engine of spec.md §4.6: a recursive
// three-way JSON property merge, with a plain-text diff3 fallback for
// schema-designated string properties and soft-delete tombstone handling
// (SPEC_FULL.md §3). The per-field resolver shape (mergeField-style
// per-key functions, recurse-into-objects, "modified on both sides"
// branching) is grounded on the teacher's internal/merge/merge.go, which
// does the same three-way reconciliation over a fixed Issue struct;
// here it operates on the untyped property maps a schemaless document
// store requires instead.
package merge

import (
	"reflect"
	"time"

	"github.com/gitdocdb/gitdocdb/internal/canon"
)

// MergeDocuments performs spec.md §4.6.2's recursive property merge of
// two documents that both descended from base. The returned bool reports
// whether any property required the configured fallback resolution
// (i.e. was genuinely conflicting, not just independently identical).
func MergeDocuments(base, local, remote canon.Doc, opts TreeMergeOptions) (canon.Doc, bool) {
	if IsTombstone(local) || IsTombstone(remote) {
		winner, _ := mergeTombstones(local, remote, opts.TombstoneTTLSeconds, effectiveNow(opts))
		return winner, false
	}
	return mergeObjects(base, local, remote, opts)
}

func effectiveNow(opts TreeMergeOptions) int64 {
	if opts.NowUnix != 0 {
		return opts.NowUnix
	}
	return time.Now().Unix()
}

// mergeObjects merges one JSON object level. base may be nil when a
// property is new on both sides with no common ancestor value.
func mergeObjects(base, local, remote map[string]any, opts TreeMergeOptions) (map[string]any, bool) {
	merged := make(map[string]any, len(local)+len(remote))
	conflicted := false

	keys := make(map[string]struct{}, len(local)+len(remote))
	for k := range local {
		keys[k] = struct{}{}
	}
	for k := range remote {
		keys[k] = struct{}{}
	}

	for k := range keys {
		lv, lok := local[k]
		rv, rok := remote[k]

		switch {
		case lok && !rok:
			// Property present on only one side → take that side
			// (spec.md §4.6.2).
			merged[k] = lv
		case !lok && rok:
			merged[k] = rv
		default:
			sub, subConflicted := mergeProperty(k, base, lv, rv, opts)
			merged[k] = sub
			if subConflicted {
				conflicted = true
			}
		}
	}
	return merged, conflicted
}

// mergeProperty resolves one property present on both sides.
func mergeProperty(key string, base map[string]any, lv, rv any, opts TreeMergeOptions) (any, bool) {
	if equalJSONValue(lv, rv) {
		return lv, false
	}
	// Changed on one side only: take that side without a conflict.
	if base != nil {
		if bv, ok := base[key]; ok {
			if equalJSONValue(bv, lv) {
				return rv, false
			}
			if equalJSONValue(bv, rv) {
				return lv, false
			}
		}
	}

	lm, lIsObj := lv.(map[string]any)
	rm, rIsObj := rv.(map[string]any)
	if lIsObj && rIsObj {
		var bm map[string]any
		if base != nil {
			bm, _ = base[key].(map[string]any)
		}
		return mergeObjects(bm, lm, rm, opts)
	}

	if opts.PlainTextProperties[key] {
		ls, lIsStr := lv.(string)
		rs, rIsStr := rv.(string)
		if lIsStr && rIsStr {
			var bs string
			if base != nil {
				bs, _ = base[key].(string)
			}
			merged, textConflicted := MergeText(bs, ls, rs, opts.ConflictResolutionStrategy)
			return merged, textConflicted
		}
	}

	// Modified on both sides, not recursible, not plain-text: apply the
	// configured resolution (spec.md §4.6.2).
	switch opts.ConflictResolutionStrategy {
	case StrategyOurs, StrategyOursDiff:
		return lv, true
	default:
		return rv, true
	}
}

// equalJSONValue compares two values decoded by canon.ParseDoc (which
// uses json.Number to avoid float64 precision loss) for structural
// equality.
func equalJSONValue(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
