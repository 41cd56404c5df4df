package store

import (
	"github.com/gitdocdb/gitdocdb/internal/canon"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
)

// DocType tags a FatDoc's payload kind, per spec.md §3.
type DocType string

const (
	TypeJSON   DocType = "json"
	TypeText   DocType = "text"
	TypeBinary DocType = "binary"
)

// FatDoc is spec.md §3's envelope: a document plus its storage identity.
// Doc is populated only when Type is TypeJSON; Raw carries the bytes
// verbatim for text/binary documents.
type FatDoc struct {
	ID     string
	Name   string
	Type   DocType
	FileOid gitbackend.Oid
	Doc    canon.Doc
	Raw    []byte
}

// PutResult is the envelope every put/insert/update/delete call resolves
// its Future with (spec.md §4.3).
type PutResult struct {
	ID      string
	FileOid gitbackend.Oid
	Commit  gitbackend.Oid
}

// CommitFilterClause is one conjunction of a getHistory/getBackNumber
// filter (spec.md §4.3): "a commit matches if author (when set) equals
// Author and committer (when set) equals Committer."
type CommitFilterClause struct {
	AuthorName     string
	AuthorEmail    string
	CommitterName  string
	CommitterEmail string
}

// Filter is a disjunction of CommitFilterClause; a commit matching any
// one clause is included in the history sequence. A nil/empty Filter
// matches every commit.
type Filter []CommitFilterClause

func (f Filter) matches(sig gitbackend.Signature, committer gitbackend.Signature) bool {
	if len(f) == 0 {
		return true
	}
	for _, c := range f {
		if c.AuthorName != "" && c.AuthorName != sig.Name {
			continue
		}
		if c.AuthorEmail != "" && c.AuthorEmail != sig.Email {
			continue
		}
		if c.CommitterName != "" && c.CommitterName != committer.Name {
			continue
		}
		if c.CommitterEmail != "" && c.CommitterEmail != committer.Email {
			continue
		}
		return true
	}
	return false
}

// FindOptions configures Find's breadth-first HEAD-tree traversal
// (spec.md §4.3).
type FindOptions struct {
	Prefix     string
	Recursive  bool // default true; callers use DefaultFindOptions to get that default
	Descending bool
}

// DefaultFindOptions returns FindOptions with Recursive true, matching
// spec.md §4.3's stated default.
func DefaultFindOptions() FindOptions {
	return FindOptions{Recursive: true}
}
