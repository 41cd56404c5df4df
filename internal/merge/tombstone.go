package merge

import "github.com/gitdocdb/gitdocdb/internal/canon"

// IsTombstone reports whether doc carries the reserved soft-delete
// marker (SPEC_FULL.md §3, adapted from the teacher's
// Issue.DeletedAt-based IsTombstone check in internal/merge/merge.go).
func IsTombstone(doc canon.Doc) bool {
	if doc == nil {
		return false
	}
	deleted, ok := doc["_deleted"].(bool)
	return ok && deleted
}

// deletedAtUnix extracts "_deletedAt" as a Unix timestamp, or 0 if absent
// or malformed.
func deletedAtUnix(doc canon.Doc) int64 {
	v, ok := doc["_deletedAt"]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

// IsExpiredTombstone reports whether a tombstone has outlived ttlSeconds
// as of nowUnix, mirroring the teacher's IsExpiredTombstone. ttlSeconds
// <= 0 means tombstones never expire.
func IsExpiredTombstone(doc canon.Doc, ttlSeconds int64, nowUnix int64) bool {
	if !IsTombstone(doc) || ttlSeconds <= 0 {
		return false
	}
	at := deletedAtUnix(doc)
	if at == 0 {
		return false
	}
	return nowUnix-at > ttlSeconds
}

// mergeTombstones resolves a merge where at least one side is a
// tombstone, following the teacher's mergeTombstones policy: "tombstone
// wins unless it has exceeded its TTL, in which case the live side
// resurrects" (SPEC_FULL.md §3). Returns the winning document and
// whether a conflict occurred (both sides tombstoned with different
// deletion times counts as a clean merge, not a conflict: the earliest
// deletion wins).
func mergeTombstones(local, remote canon.Doc, ttlSeconds, nowUnix int64) (canon.Doc, bool) {
	localDead := IsTombstone(local)
	remoteDead := IsTombstone(remote)

	switch {
	case localDead && remoteDead:
		if deletedAtUnix(local) <= deletedAtUnix(remote) {
			return local, false
		}
		return remote, false
	case localDead && !remoteDead:
		if IsExpiredTombstone(local, ttlSeconds, nowUnix) {
			return remote, false
		}
		return local, false
	case remoteDead && !localDead:
		if IsExpiredTombstone(remote, ttlSeconds, nowUnix) {
			return local, false
		}
		return remote, false
	default:
		return local, false
	}
}
