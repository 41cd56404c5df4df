package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gitdocdb/gitdocdb/internal/config"
	"github.com/gitdocdb/gitdocdb/internal/dlog"
	"github.com/gitdocdb/gitdocdb/internal/eventbus"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend/nativegit"
	"github.com/gitdocdb/gitdocdb/internal/taskqueue"
)

func sig() gitbackend.Signature {
	return gitbackend.Signature{Name: "Yoshino", Email: "yoshino@example.com", When: time.Unix(1700000000, 0)}
}

// newLinkedRepos returns two repositories sharing a "main" branch
// history, with repo "local"'s origin remote pointed at repo "remote"'s
// working directory. go-git's local-filesystem transport lets tests
// fetch/push over a plain directory path, the same way
// nativegit/repo_test.go tests stage/commit against a real on-disk repo.
func newLinkedRepos(t *testing.T) (local gitbackend.Repo, remote gitbackend.Repo, remoteDir string) {
	t.Helper()
	ctx := context.Background()
	backend := nativegit.New()

	remoteDir = t.TempDir()
	remote, err := backend.Init(ctx, remoteDir, "main")
	require.NoError(t, err)
	_, err = remote.Commit(ctx, gitbackend.CommitOptions{Author: sig(), Committer: sig(), Message: "initial"})
	require.NoError(t, err)

	localDir := t.TempDir()
	local, err = backend.Init(ctx, localDir, "main")
	require.NoError(t, err)
	require.NoError(t, local.RemoteCreate("origin", remoteDir))
	require.NoError(t, local.Fetch(ctx, "origin", "+refs/heads/main:refs/remotes/origin/main", gitbackend.NetOptions{}))
	require.NoError(t, local.FastForward(mustResolve(t, local, "refs/remotes/origin/main")))

	return local, remote, remoteDir
}

func mustResolve(t *testing.T, repo gitbackend.Repo, ref string) gitbackend.Oid {
	t.Helper()
	oid, err := repo.ResolveRef(ref)
	require.NoError(t, err)
	return oid
}

func newSynchronizer(t *testing.T, repo gitbackend.Repo, remoteURL string) *Synchronizer {
	t.Helper()
	opts := config.DefaultRemoteOptions()
	opts.RemoteURL = remoteURL
	opts.Live = false
	s, err := New(repo, "main", taskqueue.New(), eventbus.New(nil), dlog.New(nil), nil, nil, opts)
	require.NoError(t, err)
	return s
}

func TestNewRejectsUndefinedRemoteURL(t *testing.T) {
	_, err := New(nil, "main", taskqueue.New(), eventbus.New(nil), dlog.New(nil), nil, nil, config.DefaultRemoteOptions())
	require.ErrorIs(t, err, ErrUndefinedRemoteURL)
}

func TestNewRejectsIntervalTooSmall(t *testing.T) {
	opts := config.DefaultRemoteOptions()
	opts.RemoteURL = "https://example.com/x.git"
	opts.Live = true
	opts.Interval = 100 * time.Millisecond
	_, err := New(nil, "main", taskqueue.New(), eventbus.New(nil), dlog.New(nil), nil, nil, opts)
	require.ErrorIs(t, err, ErrIntervalTooSmall)
}

func TestRunSyncReportsNopWhenHeadsMatch(t *testing.T) {
	local, _, remoteDir := newLinkedRepos(t)
	s := newSynchronizer(t, local, remoteDir)

	result, err := s.runSync(context.Background())
	require.NoError(t, err)
	require.Equal(t, eventbus.ActionNop, result.Action)
}

func TestRunSyncPushesWhenLocalIsAhead(t *testing.T) {
	ctx := context.Background()
	local, remote, remoteDir := newLinkedRepos(t)

	require.NoError(t, local.Stage("nara.json", []byte("{\n  \"flower\": \"sakura\"\n}\n")))
	head, err := local.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	_, err = local.Commit(ctx, gitbackend.CommitOptions{Author: sig(), Committer: sig(), Message: "insert: nara.json", Parents: []gitbackend.Oid{head}})
	require.NoError(t, err)

	s := newSynchronizer(t, local, remoteDir)
	result, err := s.runSync(ctx)
	require.NoError(t, err)
	require.Equal(t, eventbus.ActionPush, result.Action)
	require.Len(t, result.Changes.Local, 1)
	require.Equal(t, "nara.json", result.Changes.Local[0].Path)

	remoteHead, err := remote.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	localHead, err := local.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	require.Equal(t, localHead, remoteHead, "push must advance the remote's branch to local's tip")
}

func TestRunSyncFastForwardsWhenRemoteIsAhead(t *testing.T) {
	ctx := context.Background()
	local, remote, remoteDir := newLinkedRepos(t)

	require.NoError(t, remote.Stage("yoshino.json", []byte("{\n  \"flower\": \"cherry\"\n}\n")))
	rHead, err := remote.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	_, err = remote.Commit(ctx, gitbackend.CommitOptions{Author: sig(), Committer: sig(), Message: "insert: yoshino.json", Parents: []gitbackend.Oid{rHead}})
	require.NoError(t, err)

	s := newSynchronizer(t, local, remoteDir)
	result, err := s.runSync(ctx)
	require.NoError(t, err)
	require.Equal(t, eventbus.ActionFastForwardMerge, result.Action)
	require.Len(t, result.Changes.Remote, 1)

	localHead, err := local.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	remoteHead, err := remote.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	require.Equal(t, remoteHead, localHead, "fast-forward must advance local to remote's tip")
}

func TestTryPushFailsWhenRemoteHasUnfetchedCommits(t *testing.T) {
	ctx := context.Background()
	local, remote, remoteDir := newLinkedRepos(t)

	rHead, err := remote.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	require.NoError(t, remote.Stage("onsen.json", []byte("{}\n")))
	_, err = remote.Commit(ctx, gitbackend.CommitOptions{Author: sig(), Committer: sig(), Message: "insert: onsen.json", Parents: []gitbackend.Oid{rHead}})
	require.NoError(t, err)

	require.NoError(t, local.Stage("nara.json", []byte("{}\n")))
	lHead, err := local.ResolveRef("refs/heads/main")
	require.NoError(t, err)
	_, err = local.Commit(ctx, gitbackend.CommitOptions{Author: sig(), Committer: sig(), Message: "insert: nara.json", Parents: []gitbackend.Oid{lHead}})
	require.NoError(t, err)

	s := newSynchronizer(t, local, remoteDir)
	_, err = s.tryPushOnce(ctx)
	require.Error(t, err)
	require.True(t, gitbackend.IsKind(err, gitbackend.CannotPushUnfetched))
}
