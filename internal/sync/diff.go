package sync

import (
	"path"

	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/merge"
)

// diffTrees computes the one-directional, conflict-free change set
// between two commits, used to populate SyncResult.changes when the
// classification is "push" (local ahead of remote) or "fast-forward
// merge" (remote ahead of local) — cases spec.md §4.7 never routes
// through the Merge Engine because only one side has moved.
func diffTrees(repo gitbackend.Repo, fromOid, toOid gitbackend.Oid) ([]merge.ChangedFile, error) {
	paths := make(map[string]bool)
	if err := collectPaths(repo, fromOid, "", paths); err != nil {
		return nil, err
	}
	if err := collectPaths(repo, toOid, "", paths); err != nil {
		return nil, err
	}

	var out []merge.ChangedFile
	for p := range paths {
		fromEntry, fromHas, err := lookupPath(repo, fromOid, p)
		if err != nil {
			return nil, err
		}
		toEntry, toHas, err := lookupPath(repo, toOid, p)
		if err != nil {
			return nil, err
		}
		if fromHas == toHas && (!toHas || fromEntry == toEntry) {
			continue
		}
		switch {
		case !toHas:
			out = append(out, merge.ChangedFile{Path: p, Operation: merge.OpDelete, OldOid: fromEntry})
		case !fromHas:
			out = append(out, merge.ChangedFile{Path: p, Operation: merge.OpInsert, NewOid: toEntry})
		default:
			out = append(out, merge.ChangedFile{Path: p, Operation: merge.OpUpdate, OldOid: fromEntry, NewOid: toEntry})
		}
	}
	return out, nil
}

func collectPaths(repo gitbackend.Repo, commitOid gitbackend.Oid, prefix string, out map[string]bool) error {
	if commitOid == "" {
		return nil
	}
	entries, err := repo.ReadTree(commitOid, prefix)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := e.Path
		if prefix != "" {
			p = path.Join(prefix, e.Path)
		}
		if e.Type == gitbackend.TreeEntryTree {
			if err := collectPaths(repo, commitOid, p, out); err != nil {
				return err
			}
		} else {
			out[p] = true
		}
	}
	return nil
}

func lookupPath(repo gitbackend.Repo, commitOid gitbackend.Oid, p string) (gitbackend.Oid, bool, error) {
	if commitOid == "" || p == "" {
		return "", false, nil
	}
	dir := path.Dir(p)
	if dir == "." {
		dir = ""
	}
	name := path.Base(p)
	entries, err := repo.ReadTree(commitOid, dir)
	if err != nil {
		return "", false, nil //nolint:nilerr // an absent directory means an absent path, not an error
	}
	for _, e := range entries {
		if e.Path == name && e.Type == gitbackend.TreeEntryBlob {
			return e.Oid, true, nil
		}
	}
	return "", false, nil
}
