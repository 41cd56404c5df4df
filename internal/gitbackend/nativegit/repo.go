package nativegit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
)

// Repo implements gitbackend.Repo over a *git.Repository with an ordinary
// (non-bare) worktree, since GitDocumentDB materializes document files on
// disk at the configured localDir.
type Repo struct {
	repo *git.Repository
	dir  string
}

func (r *Repo) HashBlob(data []byte) (gitbackend.Oid, error) {
	h := plumbing.ComputeHash(plumbing.BlobObject, data)
	return gitbackend.Oid(h.String()), nil
}

func (r *Repo) WriteBlob(data []byte) (gitbackend.Oid, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return "", fmt.Errorf("nativegit: blob writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("nativegit: write blob: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("nativegit: close blob writer: %w", err)
	}
	hash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return "", fmt.Errorf("nativegit: store blob: %w", err)
	}
	return gitbackend.Oid(hash.String()), nil
}

func (r *Repo) ReadBlob(oid gitbackend.Oid) ([]byte, error) {
	blob, err := r.repo.BlobObject(plumbing.NewHash(string(oid)))
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, gitbackend.ErrBlobNotFound
		}
		return nil, fmt.Errorf("nativegit: read blob %s: %w", oid, err)
	}
	reader, err := blob.Reader()
	if err != nil {
		return nil, fmt.Errorf("nativegit: open blob %s: %w", oid, err)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("nativegit: read blob %s: %w", oid, err)
	}
	return data, nil
}

func (r *Repo) ReadTree(commitOid gitbackend.Oid, path string) ([]gitbackend.TreeEntry, error) {
	commit, err := r.repo.CommitObject(plumbing.NewHash(string(commitOid)))
	if err != nil {
		return nil, fmt.Errorf("nativegit: commit %s: %w", commitOid, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("nativegit: tree of %s: %w", commitOid, err)
	}
	if path != "" {
		tree, err = tree.Tree(path)
		if err != nil {
			if errors.Is(err, object.ErrDirectoryNotFound) || errors.Is(err, object.ErrEntryNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("nativegit: subtree %s at %s: %w", path, commitOid, err)
		}
	}
	entries := make([]gitbackend.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		typ := gitbackend.TreeEntryBlob
		if e.Mode == filemode.Dir {
			typ = gitbackend.TreeEntryTree
		}
		entries = append(entries, gitbackend.TreeEntry{
			Path: e.Name,
			Type: typ,
			Oid:  gitbackend.Oid(e.Hash.String()),
		})
	}
	return entries, nil
}

func (r *Repo) ResolveRef(ref string) (gitbackend.Oid, error) {
	h, err := r.repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", gitbackend.ErrRefNotFound
		}
		return "", fmt.Errorf("nativegit: resolve %s: %w", ref, err)
	}
	return gitbackend.Oid(h.String()), nil
}

func (r *Repo) Stage(path string, data []byte) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("nativegit: worktree: %w", err)
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := wt.Filesystem.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("nativegit: mkdir %s: %w", dir, err)
		}
	}
	f, err := wt.Filesystem.Create(path)
	if err != nil {
		return fmt.Errorf("nativegit: create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("nativegit: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("nativegit: close %s: %w", path, err)
	}
	if _, err := wt.Add(path); err != nil {
		return fmt.Errorf("nativegit: stage %s: %w", path, err)
	}
	return nil
}

func (r *Repo) Unstage(path string) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("nativegit: worktree: %w", err)
	}
	if _, err := wt.Remove(path); err != nil {
		return fmt.Errorf("nativegit: unstage %s: %w", path, err)
	}
	if err := pruneEmptyAncestors(wt, filepath.Dir(path)); err != nil {
		return fmt.Errorf("nativegit: prune empty directories above %s: %w", path, err)
	}
	return nil
}

// pruneEmptyAncestors removes now-empty ancestor directories of a deleted
// file, matching spec.md §4.3's "removes file and prunes empty ancestor
// dirs." go-git's billy filesystem has no directory entries in the index
// (Git never tracks empty directories), so only the working-tree
// directories need physical removal.
func pruneEmptyAncestors(wt *git.Worktree, dir string) error {
	for dir != "." && dir != "/" && dir != "" {
		entries, err := wt.Filesystem.ReadDir(dir)
		if err != nil {
			return nil //nolint:nilerr // directory already gone or inaccessible; nothing to prune
		}
		if len(entries) > 0 {
			return nil
		}
		if err := wt.Filesystem.Remove(dir); err != nil {
			return err
		}
		dir = filepath.Dir(dir)
	}
	return nil
}

func (r *Repo) Commit(_ context.Context, opts gitbackend.CommitOptions) (gitbackend.Oid, error) {
	wt, err := r.repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("nativegit: worktree: %w", err)
	}
	commitOpts := &git.CommitOptions{
		Author: &object.Signature{
			Name:  opts.Author.Name,
			Email: opts.Author.Email,
			When:  opts.Author.When,
		},
		Committer: &object.Signature{
			Name:  opts.Committer.Name,
			Email: opts.Committer.Email,
			When:  opts.Committer.When,
		},
	}
	if len(opts.Parents) > 0 {
		parents := make([]plumbing.Hash, 0, len(opts.Parents))
		for _, p := range opts.Parents {
			parents = append(parents, plumbing.NewHash(string(p)))
		}
		commitOpts.Parents = parents
		commitOpts.AllowEmptyCommits = true
	}
	hash, err := wt.Commit(opts.Message, commitOpts)
	if err != nil {
		return "", fmt.Errorf("nativegit: commit: %w", err)
	}
	return gitbackend.Oid(hash.String()), nil
}

func (r *Repo) ListCommits(from, to gitbackend.Oid) ([]gitbackend.NormalizedCommit, error) {
	iter, err := r.repo.Log(&git.LogOptions{From: plumbing.NewHash(string(from))})
	if err != nil {
		return nil, fmt.Errorf("nativegit: log from %s: %w", from, err)
	}
	defer iter.Close()
	var out []gitbackend.NormalizedCommit
	err = iter.ForEach(func(c *object.Commit) error {
		if to != "" && c.Hash.String() == string(to) {
			return storer.ErrStop
		}
		out = append(out, normalizeCommit(c))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("nativegit: walk commits: %w", err)
	}
	return out, nil
}

func normalizeCommit(c *object.Commit) gitbackend.NormalizedCommit {
	parents := make([]gitbackend.Oid, len(c.ParentHashes))
	for i, h := range c.ParentHashes {
		parents[i] = gitbackend.Oid(h.String())
	}
	return gitbackend.NormalizedCommit{
		Oid: gitbackend.Oid(c.Hash.String()),
		Author: gitbackend.Signature{
			Name: c.Author.Name, Email: c.Author.Email, When: c.Author.When,
		},
		Committer: gitbackend.Signature{
			Name: c.Committer.Name, Email: c.Committer.Email, When: c.Committer.When,
		},
		Message: c.Message,
		Parents: parents,
	}
}

func (r *Repo) MergeBase(a, b gitbackend.Oid) (gitbackend.Oid, bool, error) {
	ca, err := r.repo.CommitObject(plumbing.NewHash(string(a)))
	if err != nil {
		return "", false, fmt.Errorf("nativegit: commit %s: %w", a, err)
	}
	cb, err := r.repo.CommitObject(plumbing.NewHash(string(b)))
	if err != nil {
		return "", false, fmt.Errorf("nativegit: commit %s: %w", b, err)
	}
	bases, err := ca.MergeBase(cb)
	if err != nil {
		return "", false, fmt.Errorf("nativegit: merge-base %s %s: %w", a, b, err)
	}
	if len(bases) == 0 {
		return "", false, nil
	}
	return gitbackend.Oid(bases[0].Hash.String()), true, nil
}

func (r *Repo) FastForward(oid gitbackend.Oid) error {
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("nativegit: worktree: %w", err)
	}
	hash := plumbing.NewHash(string(oid))
	if err := wt.Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("nativegit: fast-forward to %s: %w", oid, err)
	}
	return nil
}

func (r *Repo) SetUpstream(branch, upstreamRef string) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return fmt.Errorf("nativegit: config: %w", err)
	}
	b, ok := cfg.Branches[branch]
	if !ok {
		b = &config.Branch{Name: branch}
		cfg.Branches[branch] = b
	}
	b.Remote = "origin"
	b.Merge = plumbing.ReferenceName(upstreamRef)
	if err := r.repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("nativegit: set upstream %s -> %s: %w", branch, upstreamRef, err)
	}
	return nil
}

func (r *Repo) RemoteLookup(name string) (string, bool, error) {
	rem, err := r.repo.Remote(name)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("nativegit: remote %s: %w", name, err)
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", false, nil
	}
	return urls[0], true, nil
}

func (r *Repo) RemoteCreate(name, url string) error {
	_, err := r.repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}})
	if err != nil {
		if errors.Is(err, git.ErrRemoteExists) {
			return gitbackend.ErrRemoteAlreadyExists
		}
		return fmt.Errorf("nativegit: create remote %s: %w", name, err)
	}
	return nil
}

func (r *Repo) RemoteSetURL(name, url string) error {
	cfg, err := r.repo.Config()
	if err != nil {
		return fmt.Errorf("nativegit: config: %w", err)
	}
	rc, ok := cfg.Remotes[name]
	if !ok {
		return gitbackend.ErrRemoteNotFound
	}
	rc.URLs = []string{url}
	if err := r.repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("nativegit: set remote url %s: %w", name, err)
	}
	return nil
}

func (r *Repo) DefaultBranch() (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("nativegit: head: %w", err)
	}
	return head.Name().Short(), nil
}

func (r *Repo) Close() error { return nil }
