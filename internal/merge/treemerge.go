package merge

import (
	"path"
	"strings"

	"github.com/gitdocdb/gitdocdb/internal/canon"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
)

// MergeTrees implements spec.md §4.6's tree-level merge: it walks every
// blob path reachable from base/local/remote, resolves each path's
// content per MergeDocuments (JSON) or whole-blob resolution
// (non-JSON), and stages the result into repo's working tree and index.
// The caller commits the result with both localOid and remoteOid as
// parents (spec.md §4.6.3). baseOid may be "" when the two histories
// share no common ancestor and the caller has already decided a
// behaviorForNoMergeBase policy other than failing outright.
func MergeTrees(repo gitbackend.Repo, baseOid, localOid, remoteOid gitbackend.Oid, opts TreeMergeOptions) ([]ChangedFile, error) {
	paths := make(map[string]bool)
	if err := collectBlobPaths(repo, baseOid, "", paths); err != nil {
		return nil, err
	}
	if err := collectBlobPaths(repo, localOid, "", paths); err != nil {
		return nil, err
	}
	if err := collectBlobPaths(repo, remoteOid, "", paths); err != nil {
		return nil, err
	}

	var changes []ChangedFile
	for p := range paths {
		baseEntry, baseHas, err := lookupBlob(repo, baseOid, p)
		if err != nil {
			return nil, err
		}
		localEntry, localHas, err := lookupBlob(repo, localOid, p)
		if err != nil {
			return nil, err
		}
		remoteEntry, remoteHas, err := lookupBlob(repo, remoteOid, p)
		if err != nil {
			return nil, err
		}

		mergedOid, mergedHas, conflict, err := mergeOnePath(repo, p, baseEntry, baseHas, localEntry, localHas, remoteEntry, remoteHas, opts)
		if err != nil {
			return nil, err
		}

		if localHas == mergedHas && (!mergedHas || localEntry == mergedOid) {
			continue // already matches the working tree's current (local) state
		}

		switch {
		case !mergedHas:
			if err := repo.Unstage(p); err != nil {
				return nil, err
			}
			changes = append(changes, ChangedFile{Path: p, Operation: OpDelete, OldOid: localEntry, Conflict: conflict})
		case !localHas:
			data, err := repo.ReadBlob(mergedOid)
			if err != nil {
				return nil, err
			}
			if err := repo.Stage(p, data); err != nil {
				return nil, err
			}
			changes = append(changes, ChangedFile{Path: p, Operation: OpInsert, NewOid: mergedOid, Conflict: conflict})
		default:
			data, err := repo.ReadBlob(mergedOid)
			if err != nil {
				return nil, err
			}
			if err := repo.Stage(p, data); err != nil {
				return nil, err
			}
			changes = append(changes, ChangedFile{Path: p, Operation: OpUpdate, OldOid: localEntry, NewOid: mergedOid, Conflict: conflict})
		}
	}
	return changes, nil
}

// mergeOnePath resolves a single path's merged blob oid. It only reads
// and writes blobs (never touches the working tree); MergeTrees applies
// the result.
func mergeOnePath(
	repo gitbackend.Repo,
	p string,
	baseOid gitbackend.Oid, baseHas bool,
	localOid gitbackend.Oid, localHas bool,
	remoteOid gitbackend.Oid, remoteHas bool,
	opts TreeMergeOptions,
) (gitbackend.Oid, bool, bool, error) {
	if localHas == remoteHas && (!localHas || localOid == remoteOid) {
		return localOid, localHas, false, nil
	}
	if !localHas && !remoteHas {
		return "", false, false, nil
	}
	// Fast-forward: one side matches the ancestor exactly, take the
	// other side unchanged (spec.md §4.6.1's "non-overlapping modifies").
	if baseHas && localHas && localOid == baseOid {
		return remoteOid, remoteHas, false, nil
	}
	if baseHas && remoteHas && remoteOid == baseOid {
		return localOid, localHas, false, nil
	}
	if !baseHas && !localHas {
		return remoteOid, remoteHas, false, nil
	}
	if !baseHas && !remoteHas {
		return localOid, localHas, false, nil
	}

	// Both sides modified (or added differently, or one deleted while the
	// other modified): resolve by content.
	var localData, remoteData []byte
	var err error
	if localHas {
		localData, err = repo.ReadBlob(localOid)
		if err != nil {
			return "", false, false, err
		}
	}
	if remoteHas {
		remoteData, err = repo.ReadBlob(remoteOid)
		if err != nil {
			return "", false, false, err
		}
	}

	if isJSONPath(p) && localHas && remoteHas {
		var baseDoc canon.Doc
		if baseHas {
			baseData, err := repo.ReadBlob(baseOid)
			if err != nil {
				return "", false, false, err
			}
			baseDoc, err = canon.ParseDoc(baseData)
			if err != nil {
				return "", false, false, ErrInvalidJsonObject
			}
		}
		localDoc, err := canon.ParseDoc(localData)
		if err != nil {
			return "", false, false, ErrInvalidJsonObject
		}
		remoteDoc, err := canon.ParseDoc(remoteData)
		if err != nil {
			return "", false, false, ErrInvalidJsonObject
		}
		merged, conflicted := MergeDocuments(baseDoc, localDoc, remoteDoc, opts)
		bytes, err := canon.Canonicalize(merged)
		if err != nil {
			return "", false, false, err
		}
		oid, err := repo.WriteBlob(bytes)
		if err != nil {
			return "", false, false, err
		}
		return oid, true, conflicted, nil
	}

	// Non-JSON, or one side deleted the path while the other modified
	// it: whole-value resolution per the configured strategy
	// (spec.md §4.6.1).
	switch opts.ConflictResolutionStrategy {
	case StrategyOurs, StrategyOursDiff:
		if localHas {
			return localOid, true, true, nil
		}
		return "", false, true, nil
	default:
		if remoteHas {
			return remoteOid, true, true, nil
		}
		return "", false, true, nil
	}
}

func isJSONPath(p string) bool {
	return strings.HasSuffix(p, ".json")
}

// collectBlobPaths adds every blob path reachable from commitOid into
// out. commitOid == "" is a no-op (used when a side has no history yet).
func collectBlobPaths(repo gitbackend.Repo, commitOid gitbackend.Oid, prefix string, out map[string]bool) error {
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
			if err := collectBlobPaths(repo, commitOid, p, out); err != nil {
				return err
			}
		} else {
			out[p] = true
		}
	}
	return nil
}

// lookupBlob returns the blob oid at path within commitOid's tree, or
// (_, false, nil) if no such blob exists (it may be a directory, or
// absent entirely).
func lookupBlob(repo gitbackend.Repo, commitOid gitbackend.Oid, p string) (gitbackend.Oid, bool, error) {
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
		return "", false, err
	}
	for _, e := range entries {
		if e.Path == name && e.Type == gitbackend.TreeEntryBlob {
			return e.Oid, true, nil
		}
	}
	return "", false, nil
}
