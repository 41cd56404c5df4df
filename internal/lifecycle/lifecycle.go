// Package lifecycle implements spec.md §4.9's Lifecycle Manager:
// open/close/destroy, the .gitddb/info.json version metadata blob, and
// process-wide state (the directory lock and the shutdown coordination
// between the Task Queue drain and every registered Synchronizer's
// timer). No teacher file owns an open/close/destroy contract over a
// single on-disk resource the way this package does (the teacher's
// storage backends are opened once per server process and never
// "destroyed"), so the shape here is grounded directly on spec.md §4.9
// and §5, reusing internal/lifecycle/repolock for the cross-process
// exclusivity guardrail and golang.org/x/sync/errgroup — already a
// direct dependency of the teacher's go.mod — to coordinate the two
// independent shutdown sequences (queue drain, Synchronizer timers)
// concurrently instead of serially.
package lifecycle

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/gitdocdb/gitdocdb/internal/canon"
	"github.com/gitdocdb/gitdocdb/internal/config"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/lifecycle/repolock"
	"github.com/gitdocdb/gitdocdb/internal/taskqueue"
)

// CurrentVersion is the database format version this build writes into
// a freshly created .gitddb/info.json and accepts on open.
const CurrentVersion = "1.0.0"

const metadataPath = ".gitddb/info.json"

// Info is the persisted shape of .gitddb/info.json (spec.md §6).
type Info struct {
	Version string `json:"version"`
	DbId    string `json:"dbId"`
}

// OpenResult reports what Open observed and did, per spec.md §4.9.
type OpenResult struct {
	// IsNew is true when the working directory had no Git repository
	// before this call.
	IsNew bool
	// IsClone is true when the working directory already held commit
	// history this instance did not create (a repository cloned or
	// otherwise populated outside this call).
	IsClone bool
	// IsCreatedHere is true when this call made the first commit
	// (the metadata blob), whether because the repository was brand
	// new or because it existed but was still empty.
	IsCreatedHere bool
	// IsValidVersion is false when info.json exists but carries a
	// version this build does not recognize.
	IsValidVersion bool
}

// Resummable stops/restarts with the Lifecycle (a Synchronizer, in
// practice); kept as a narrow interface so this package does not import
// internal/sync and create a cycle.
type Resummable interface {
	Pause()
	Close()
}

// Lifecycle owns one database's process-wide state for the duration of
// Open -> Close/Destroy: the directory lock, the shared Task Queue, the
// repository handle, and every registered Synchronizer.
type Lifecycle struct {
	dir    string
	lock   *repolock.DirLock
	repo   gitbackend.Repo
	queue  *taskqueue.Queue
	dbId   string
	info   Info

	synchronizers []Resummable
}

// Open implements spec.md §4.9's open(): reuse an existing Git
// repository at opts.LocalDir, or create one with opts.DefaultBranch;
// ensure a .gitddb/info.json metadata blob exists, committing it as the
// first commit when the repository (or its metadata) is missing.
func Open(ctx context.Context, backend gitbackend.Backend, opts config.DatabaseOptions) (*Lifecycle, OpenResult, error) {
	dir := opts.LocalDir
	if dir == "" {
		dir = "./gitddb"
	}
	branch := opts.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, OpenResult{}, fmt.Errorf("lifecycle: create working dir: %w", err)
	}
	lock, err := repolock.Acquire(filepath.Join(dir, ".gitddb"))
	if err != nil {
		return nil, OpenResult{}, err
	}

	repo, result, err := openOrInit(ctx, backend, dir, branch)
	if err != nil {
		lock.Release()
		return nil, OpenResult{}, err
	}

	lc := &Lifecycle{
		dir:   dir,
		lock:  lock,
		repo:  repo,
		queue: taskqueue.New(),
	}

	info, hasInfo, err := readInfo(repo, branch)
	if err != nil {
		lock.Release()
		return nil, OpenResult{}, err
	}

	switch {
	case !hasInfo:
		lc.info = Info{Version: CurrentVersion, DbId: newDbId()}
		if err := lc.writeInfo(ctx, opts); err != nil {
			lock.Release()
			return nil, OpenResult{}, err
		}
		result.IsCreatedHere = true
		result.IsValidVersion = true
	case info.Version != CurrentVersion:
		lc.info = info
		result.IsValidVersion = false
	default:
		lc.info = info
		result.IsValidVersion = true
	}

	lc.dbId = lc.info.DbId
	return lc, result, nil
}

// openOrInit implements the reuse-or-create half of open(): a fresh
// directory gets Backend.Init and counts as IsNew; an existing
// repository is opened as-is and, if it already carries commits this
// call did not just create, counts as IsClone.
func openOrInit(ctx context.Context, backend gitbackend.Backend, dir, branch string) (gitbackend.Repo, OpenResult, error) {
	repo, err := backend.Open(ctx, dir)
	if err == nil {
		_, hasHead := headOid(repo, branch)
		return repo, OpenResult{IsNew: false, IsClone: hasHead}, nil
	}
	if err != gitbackend.ErrRepositoryNotOpen {
		return nil, OpenResult{}, err
	}

	repo, err = backend.Init(ctx, dir, branch)
	if err != nil {
		return nil, OpenResult{}, fmt.Errorf("lifecycle: init %s: %w", dir, err)
	}
	return repo, OpenResult{IsNew: true}, nil
}

func headOid(repo gitbackend.Repo, branch string) (gitbackend.Oid, bool) {
	oid, err := repo.ResolveRef("refs/heads/" + branch)
	if err != nil {
		return "", false
	}
	return oid, true
}

// readInfo reads .gitddb/info.json at HEAD, if present.
func readInfo(repo gitbackend.Repo, branch string) (Info, bool, error) {
	head, err := repo.ResolveRef("refs/heads/" + branch)
	if err != nil {
		if err == gitbackend.ErrRefNotFound {
			return Info{}, false, nil
		}
		return Info{}, false, err
	}
	entries, err := repo.ReadTree(head, ".gitddb")
	if err != nil {
		return Info{}, false, nil //nolint:nilerr // an absent .gitddb tree means absent metadata, not an error
	}
	var infoOid gitbackend.Oid
	found := false
	for _, e := range entries {
		if e.Path == "info.json" && e.Type == gitbackend.TreeEntryBlob {
			infoOid = e.Oid
			found = true
			break
		}
	}
	if !found {
		return Info{}, false, nil
	}
	data, err := repo.ReadBlob(infoOid)
	if err != nil {
		return Info{}, false, err
	}
	doc, err := canon.ParseDoc(data)
	if err != nil {
		return Info{}, false, err
	}
	version, _ := doc["version"].(string)
	dbId, _ := doc["dbId"].(string)
	return Info{Version: version, DbId: dbId}, true, nil
}

// writeInfo stages and commits .gitddb/info.json as the first commit of
// a freshly created (or freshly metadata-less) repository.
func (lc *Lifecycle) writeInfo(ctx context.Context, opts config.DatabaseOptions) error {
	doc := canon.Doc{"version": lc.info.Version, "dbId": lc.info.DbId}
	data, err := canon.Canonicalize(doc)
	if err != nil {
		return err
	}
	if err := lc.repo.Stage(metadataPath, data); err != nil {
		return fmt.Errorf("lifecycle: stage %s: %w", metadataPath, err)
	}

	sig := gitbackend.Signature{Name: opts.AuthorName, Email: opts.AuthorEmail, When: time.Now()}
	var parents []gitbackend.Oid
	branch := opts.DefaultBranch
	if branch == "" {
		branch = "main"
	}
	if head, err := lc.repo.ResolveRef("refs/heads/" + branch); err == nil {
		parents = []gitbackend.Oid{head}
	} else if err != gitbackend.ErrRefNotFound {
		return err
	}

	_, err = lc.repo.Commit(ctx, gitbackend.CommitOptions{
		Author: sig, Committer: sig, Message: "gitdocdb: initialize database metadata", Parents: parents,
	})
	return err
}

func newDbId() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// DbId returns the database's persisted ULID identity.
func (lc *Lifecycle) DbId() string { return lc.dbId }

// Repo returns the underlying Git Backend handle for the Document Store,
// Collection, and Sync Engine layers to share.
func (lc *Lifecycle) Repo() gitbackend.Repo { return lc.repo }

// Queue returns the shared single-writer Task Queue (spec.md §4.5).
func (lc *Lifecycle) Queue() *taskqueue.Queue { return lc.queue }

// Register records a Synchronizer so Close/Destroy can shut it down
// (Synchronizer.Close) alongside the queue drain.
func (lc *Lifecycle) Register(s Resummable) {
	lc.synchronizers = append(lc.synchronizers, s)
}

// CloseOptions configures Close (spec.md §4.9/§5).
type CloseOptions struct {
	// Timeout bounds how long Close waits for the queue to drain.
	// Zero means wait indefinitely.
	Timeout time.Duration
	// Force cancels pending tasks immediately instead of draining.
	Force bool
}

// Close implements spec.md §4.9's close({timeout, force}): reject new
// submissions, stop every registered Synchronizer's timer, drain (or
// cancel) the Task Queue, and release the directory lock. The queue
// drain and the Synchronizer shutdowns run concurrently via errgroup,
// since neither depends on the other's completion.
func (lc *Lifecycle) Close(ctx context.Context) error {
	return lc.CloseWithOptions(ctx, CloseOptions{})
}

func (lc *Lifecycle) CloseWithOptions(ctx context.Context, opts CloseOptions) error {
	defer lc.lock.Release()

	var g errgroup.Group
	g.Go(func() error {
		for _, s := range lc.synchronizers {
			s.Close()
		}
		return nil
	})
	g.Go(func() error {
		if opts.Force {
			lc.queue.Stop()
			return nil
		}
		return lc.queue.Close(opts.Timeout)
	})
	return g.Wait()
}

// Destroy closes the database, then removes its working directory.
// deleteRemote, when non-nil, is invoked after the local directory is
// removed so a caller can wire in internal/remoteprovision's
// DeleteRepository for the "invoke the provisioning hook to delete the
// remote" clause of spec.md §4.9.
func (lc *Lifecycle) Destroy(ctx context.Context, deleteRemote func(ctx context.Context) error) error {
	if err := lc.Close(ctx); err != nil {
		return err
	}
	if err := os.RemoveAll(lc.dir); err != nil {
		return fmt.Errorf("lifecycle: remove working dir: %w", err)
	}
	if deleteRemote != nil {
		return deleteRemote(ctx)
	}
	return nil
}
