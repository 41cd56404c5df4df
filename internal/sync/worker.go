package sync

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gitdocdb/gitdocdb/internal/config"
	"github.com/gitdocdb/gitdocdb/internal/eventbus"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/merge"
)

// runSyncWithRetry is sync_worker's outer loop: it invokes runSync, and
// on a CannotPushUnfetched transport error retries the whole sync round
// up to opts.Retry times with exponential backoff (spec.md §4.7 step 4:
// "retry-induced sync counts as one attempt regardless of intermediate
// states").
func (s *Synchronizer) runSyncWithRetry(ctx context.Context) (eventbus.SyncResult, error) {
	s.setState(StateRunningTask)
	s.bus.Emit(eventbus.Event{Type: eventbus.EventStart})

	var result eventbus.SyncResult
	operation := func() error {
		var err error
		result, err = s.runSync(ctx)
		if err == nil {
			return nil
		}
		if gitbackend.IsKind(err, gitbackend.CannotPushUnfetched) {
			s.mu.Lock()
			s.retryCount++
			s.mu.Unlock()
			s.setState(StateRetrying)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(s.backOff(), ctx))
	if err != nil {
		s.setState(StateFailed)
		s.bus.Emit(eventbus.Event{Type: eventbus.EventError, Err: err})
		return eventbus.SyncResult{}, err
	}

	s.mu.Lock()
	s.retryCount = 0
	s.mu.Unlock()
	s.setState(StateActive)
	s.bus.Emit(eventbus.Event{Type: eventbus.EventComplete})
	s.bus.Emit(eventbus.Event{Type: eventbus.EventChange, Result: result})
	if len(result.Changes.Local) > 0 {
		s.bus.Emit(eventbus.Event{Type: eventbus.EventLocalChange, Changes: result.Changes.Local})
	}
	if len(result.Changes.Remote) > 0 {
		s.bus.Emit(eventbus.Event{Type: eventbus.EventRemoteChange, Changes: result.Changes.Remote})
	}
	return result, nil
}

// runSync is one sync_worker invocation (spec.md §4.7): fetch, classify
// by comparing local HEAD, remote HEAD and their merge base, apply the
// local side of the merge, and push.
func (s *Synchronizer) runSync(ctx context.Context) (eventbus.SyncResult, error) {
	if err := s.repo.Fetch(ctx, originRemote, s.fetchRefspec(), s.netOptions()); err != nil {
		return eventbus.SyncResult{}, err
	}

	localHead, localErr := s.repo.ResolveRef(s.headRef())
	remoteHead, remoteErr := s.repo.ResolveRef(s.remoteTrackingRef())
	if localErr != nil && localErr != gitbackend.ErrRefNotFound {
		return eventbus.SyncResult{}, localErr
	}
	if remoteErr != nil && remoteErr != gitbackend.ErrRefNotFound {
		return eventbus.SyncResult{}, remoteErr
	}

	if localHead == remoteHead {
		return eventbus.SyncResult{Action: eventbus.ActionNop}, nil
	}

	base, hasBase, err := s.repo.MergeBase(localHead, remoteHead)
	if err != nil {
		return eventbus.SyncResult{}, err
	}
	if !hasBase {
		switch s.opts.BehaviorForNoMergeBase {
		case config.NoMergeBaseTheirs:
			if err := s.repo.FastForward(remoteHead); err != nil {
				return eventbus.SyncResult{}, err
			}
			return eventbus.SyncResult{Action: eventbus.ActionFastForwardMerge}, nil
		case config.NoMergeBaseOurs:
			return eventbus.SyncResult{Action: eventbus.ActionPush}, s.push(ctx)
		default:
			return eventbus.SyncResult{}, ErrNoMergeBaseFound
		}
	}

	switch base {
	case remoteHead:
		// Remote is an ancestor of local: local is strictly ahead, just push.
		changes, err := diffTrees(s.repo, remoteHead, localHead)
		if err != nil {
			return eventbus.SyncResult{}, err
		}
		if err := s.push(ctx); err != nil {
			return eventbus.SyncResult{}, err
		}
		result := eventbus.SyncResult{Action: eventbus.ActionPush}
		result.Changes.Local = changes
		s.fillCommits(&result, base, localHead, remoteHead)
		return result, nil

	case localHead:
		// Local is an ancestor of remote: fast-forward, nothing to push.
		changes, err := diffTrees(s.repo, localHead, remoteHead)
		if err != nil {
			return eventbus.SyncResult{}, err
		}
		if err := s.repo.FastForward(remoteHead); err != nil {
			return eventbus.SyncResult{}, err
		}
		result := eventbus.SyncResult{Action: eventbus.ActionFastForwardMerge}
		result.Changes.Remote = changes
		s.fillCommits(&result, base, localHead, remoteHead)
		return result, nil

	default:
		// Divergent histories: merge both trees, commit, and push.
		opts := merge.TreeMergeOptions{
			ConflictResolutionStrategy: merge.ConflictResolutionStrategy(s.opts.ConflictResolutionStrategy),
			PlainTextProperties:        s.plainTextProperties,
		}
		changes, err := merge.MergeTrees(s.repo, base, localHead, remoteHead, opts)
		if err != nil {
			return eventbus.SyncResult{}, err
		}

		conflicted := false
		for _, c := range changes {
			if c.Conflict {
				conflicted = true
				break
			}
		}

		mergeCommit, err := s.repo.Commit(ctx, gitbackend.CommitOptions{
			Author:    s.mergeSignature(),
			Committer: s.mergeSignature(),
			Message:   "merge: " + string(remoteHead)[:min7(len(remoteHead))],
			Parents:   []gitbackend.Oid{localHead, remoteHead},
		})
		if err != nil {
			return eventbus.SyncResult{}, err
		}
		_ = mergeCommit

		if err := s.push(ctx); err != nil {
			return eventbus.SyncResult{}, err
		}

		action := eventbus.ActionMergeAndPush
		if conflicted {
			action = eventbus.ActionResolveConflictsAndPush
		}
		result := eventbus.SyncResult{Action: action}
		result.Changes.Local = changes
		s.fillCommits(&result, base, localHead, remoteHead)
		return result, nil
	}
}

func min7(n int) int {
	if n > 7 {
		return 7
	}
	return n
}

func (s *Synchronizer) mergeSignature() gitbackend.Signature {
	return gitbackend.Signature{Name: "gitdocdb-sync", Email: "sync@gitdocdb.local", When: time.Now()}
}

// fillCommits populates SyncResult.commits when RemoteOptions.IncludeCommits
// is set (spec.md §4.7.5).
func (s *Synchronizer) fillCommits(result *eventbus.SyncResult, base, localHead, remoteHead gitbackend.Oid) {
	if !s.opts.IncludeCommits {
		return
	}
	if localCommits, err := s.repo.ListCommits(localHead, base); err == nil {
		for _, c := range localCommits {
			result.Commits.Local = append(result.Commits.Local, eventbus.CommitRecord{Oid: string(c.Oid), Message: c.Message})
		}
	}
	if remoteCommits, err := s.repo.ListCommits(remoteHead, base); err == nil {
		for _, c := range remoteCommits {
			result.Commits.Remote = append(result.Commits.Remote, eventbus.CommitRecord{Oid: string(c.Oid), Message: c.Message})
		}
	}
}

func (s *Synchronizer) push(ctx context.Context) error {
	return s.repo.Push(ctx, originRemote, s.pushRefspec(), s.netOptions())
}

// tryPushOnce implements tryPush (spec.md §4.7): push-only, no merge
// phase, fails if the remote is not an ancestor of local.
func (s *Synchronizer) tryPushOnce(ctx context.Context) (eventbus.SyncResult, error) {
	if err := s.repo.Fetch(ctx, originRemote, s.fetchRefspec(), s.netOptions()); err != nil && !gitbackend.IsKind(err, gitbackend.RemoteRepositoryNotFound) {
		return eventbus.SyncResult{}, err
	}

	localHead, err := s.repo.ResolveRef(s.headRef())
	if err != nil {
		return eventbus.SyncResult{}, err
	}
	remoteHead, remoteErr := s.repo.ResolveRef(s.remoteTrackingRef())
	if remoteErr == nil && remoteHead != localHead {
		if base, hasBase, err := s.repo.MergeBase(localHead, remoteHead); err != nil {
			return eventbus.SyncResult{}, err
		} else if !hasBase || base != remoteHead {
			return eventbus.SyncResult{}, &gitbackend.TransportError{Kind: gitbackend.CannotPushUnfetched, Err: errors.New("remote has commits not present locally")}
		}
	}

	if err := s.push(ctx); err != nil {
		return eventbus.SyncResult{}, err
	}
	return eventbus.SyncResult{Action: eventbus.ActionPush}, nil
}
