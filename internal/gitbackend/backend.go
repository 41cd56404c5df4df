package gitbackend

import "context"

// Backend creates or opens a repository rooted at a working directory.
// spec.md §6: "init(dir, {defaultBranch}); open(dir) -> Repo".
type Backend interface {
	Init(ctx context.Context, dir string, defaultBranch string) (Repo, error)
	Open(ctx context.Context, dir string) (Repo, error)
}

// Repo is the full Git Backend contract of spec.md §6: the one interface
// the core (Document Store, Merge Engine, Sync Engine, Lifecycle Manager)
// consumes from the otherwise out-of-scope Git plumbing.
type Repo interface {
	// HashBlob computes the object id data would have without writing it.
	HashBlob(data []byte) (Oid, error)
	// WriteBlob writes data as a loose blob object and returns its oid.
	WriteBlob(data []byte) (Oid, error)
	// ReadBlob reads back the bytes of a blob by oid.
	ReadBlob(oid Oid) ([]byte, error)
	// ReadTree lists the immediate children of path within commitOid's
	// tree. path == "" lists the tree root.
	ReadTree(commitOid Oid, path string) ([]TreeEntry, error)
	// ResolveRef dereferences a ref name (branch, HEAD, remote-tracking
	// branch, or an oid-like revision) to a commit oid.
	ResolveRef(ref string) (Oid, error)

	// Stage writes data to path in the working tree and adds it to the
	// index. Creates any missing ancestor directories.
	Stage(path string, data []byte) error
	// Unstage removes path from both the working tree and the index,
	// pruning now-empty ancestor directories.
	Unstage(path string) error
	// Commit creates a commit over the current index. When
	// opts.Parents is empty the current HEAD is used as the sole parent.
	Commit(ctx context.Context, opts CommitOptions) (Oid, error)

	// ListCommits walks the commit graph from "from" (inclusive) back to
	// "to" (exclusive; the zero Oid walks to the root).
	ListCommits(from Oid, to Oid) ([]NormalizedCommit, error)
	// MergeBase returns the best common ancestor of a and b, or
	// (_, false, nil) if none exists.
	MergeBase(a, b Oid) (Oid, bool, error)
	// FastForward moves the current branch and the working tree directly
	// to oid, with no merge commit. Used for the Sync Engine's
	// "fast-forward merge" classification (spec.md §4.7), where the
	// local branch's tip is already an ancestor of oid.
	FastForward(oid Oid) error

	// Fetch and Push run the named refspec against remote, respecting
	// opts.Timeout and opts.Auth. Errors are classified as *TransportError.
	Fetch(ctx context.Context, remote, refspec string, opts NetOptions) error
	Push(ctx context.Context, remote, refspec string, opts NetOptions) error
	SetUpstream(branch, upstreamRef string) error

	RemoteLookup(name string) (url string, ok bool, err error)
	RemoteCreate(name, url string) error
	RemoteSetURL(name, url string) error

	// DefaultBranch reports the symbolic ref HEAD points at, e.g. "main".
	DefaultBranch() (string, error)

	Close() error
}
