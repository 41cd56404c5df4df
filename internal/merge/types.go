package merge

import "github.com/gitdocdb/gitdocdb/internal/gitbackend"

// Operation classifies one path's change within a merge (spec.md §4.6.3).
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ChangedFile records one path's before/after blob oids from a tree
// merge. The Sync Engine reports these values unchanged in
// SyncResult.changes (spec.md §4.7.5); they carry blob oids only, not
// decoded FatDoc pairs.
type ChangedFile struct {
	Path      string
	Operation Operation
	OldOid    gitbackend.Oid // zero value means "did not exist"
	NewOid    gitbackend.Oid // zero value means "removed"
	Conflict  bool
}

// ConflictResolutionStrategy selects the property-level fallback when a
// JSON property (or a whole non-JSON file) is modified on both sides
// (spec.md §4.6.2).
type ConflictResolutionStrategy string

const (
	// StrategyOursDiff is spec.md's default: "prefer the locally-authored
	// side, property-wise merged."
	StrategyOursDiff ConflictResolutionStrategy = "ours-diff"
	// StrategyTheirs prefers the side being pushed/fetched now.
	StrategyTheirs ConflictResolutionStrategy = "theirs"
	StrategyOurs   ConflictResolutionStrategy = "ours"
)

// TreeMergeOptions configures one MergeTrees call.
type TreeMergeOptions struct {
	ConflictResolutionStrategy ConflictResolutionStrategy
	// PlainTextProperties are JSON property names that get a three-way
	// line diff instead of whole-value replacement (spec.md §4.6.2,
	// schema.json.plainTextProperties).
	PlainTextProperties map[string]bool
	// TombstoneTTLSeconds governs SPEC_FULL.md §3's soft delete: a
	// "_deleted: true" document wins a merge against a concurrently
	// modified live document. When > 0, a tombstone older than this TTL
	// (see tombstone.go) loses instead and the live side resurrects; at 0
	// tombstones never expire.
	TombstoneTTLSeconds int64
	// NowUnix is injected for deterministic TTL tests; zero means "use
	// time.Now()".
	NowUnix int64
}
