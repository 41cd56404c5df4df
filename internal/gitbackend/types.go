// Package gitbackend defines the abstract Git Backend contract that the
// rest of the module consumes (spec.md §6): object hashing/reading,
// staging, commits, ref resolution, merge-base lookup, and the network
// operations (fetch/push/remote management) the Sync Engine drives.
// Concrete implementations live in subpackages (nativegit is the one this
// module ships).
package gitbackend

import "time"

// Oid is a Git object id, rendered as its lowercase hex SHA.
type Oid string

// String satisfies fmt.Stringer so Oid prints naturally in logs and
// commit-message templating (spec.md §4.3's "<%file_oid%>").
func (o Oid) String() string { return string(o) }

// ShortOid returns the seven-character oid prefix used in default commit
// messages and the "<%file_oid%>" template substitution.
func (o Oid) ShortOid() string {
	if len(o) <= 7 {
		return string(o)
	}
	return string(o[:7])
}

// TreeEntryType distinguishes a tree entry's kind.
type TreeEntryType string

const (
	TreeEntryBlob TreeEntryType = "blob"
	TreeEntryTree TreeEntryType = "tree"
)

// TreeEntry is one child of a tree listing (readTree in spec.md §6).
type TreeEntry struct {
	Path string
	Type TreeEntryType
	Oid  Oid
}

// Signature is an author/committer identity and timestamp.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// CommitOptions are the inputs to Repo.Commit.
type CommitOptions struct {
	Author    Signature
	Committer Signature
	Message   string
	// Parents overrides the default single-parent-at-HEAD behavior; used
	// by the Merge Engine to create a two-parent merge commit.
	Parents []Oid
}

// NormalizedCommit is the common shape returned by Repo.ListCommits,
// independent of the backend implementation (spec.md §6).
type NormalizedCommit struct {
	Oid       Oid
	Author    Signature
	Committer Signature
	Message   string
	Parents   []Oid
}

// AuthConfig carries the RemoteOptions.connection fields (spec.md §6) that
// a concrete backend needs to authenticate fetch/push.
type AuthConfig struct {
	// Type is "github", "ssh", or "none".
	Type                 string
	PersonalAccessToken  string
	PublicKeyPath        string
	PrivateKeyPath       string
	PassPhrase           string
}

// NetOptions bounds a network operation (fetch, push, remote creation)
// with a timeout and optional authentication, per spec.md §5's "every Git
// Backend call is a potential suspension point ... network operations are
// additionally subject to per-call timeouts."
type NetOptions struct {
	Timeout time.Duration
	Auth    *AuthConfig
}
