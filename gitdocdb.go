// Package gitdocdb is the public façade over the internal packages that
// implement spec.md's offline-first, Git-backed JSON document store:
// open/close/destroy a Database, fetch its root or named Collections,
// and attach Synchronizers for push/pull replication against a Git
// remote. Everything below this package is an internal implementation
// detail; this file wires the Document Store, Collection, Sync Engine
// and Lifecycle Manager together the way a caller actually uses them.
package gitdocdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gitdocdb/gitdocdb/internal/collection"
	"github.com/gitdocdb/gitdocdb/internal/config"
	"github.com/gitdocdb/gitdocdb/internal/dlog"
	"github.com/gitdocdb/gitdocdb/internal/eventbus"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend/nativegit"
	"github.com/gitdocdb/gitdocdb/internal/lifecycle"
	"github.com/gitdocdb/gitdocdb/internal/remoteprovision"
	"github.com/gitdocdb/gitdocdb/internal/store"
	gsync "github.com/gitdocdb/gitdocdb/internal/sync"
	"github.com/gitdocdb/gitdocdb/internal/validate"
)

// Re-exported types and constructors a caller needs without reaching
// into internal/.
type (
	Doc                        = canonDoc
	FatDoc                     = store.FatDoc
	PutResult                  = store.PutResult
	WriteOptions               = store.WriteOptions
	FindOptions                = store.FindOptions
	Filter                     = store.Filter
	Collection                 = collection.Collection
	Synchronizer               = gsync.Synchronizer
	SyncResult                 = eventbus.SyncResult
	SyncState                  = gsync.State
	EventType                  = eventbus.EventType
	Handler                    = eventbus.Handler
	DatabaseOptions            = config.DatabaseOptions
	RemoteOptions              = config.RemoteOptions
	ConflictResolutionStrategy = config.ConflictResolutionStrategy
)

// canonDoc avoids importing internal/canon into this package's exported
// surface under its internal name while still giving callers the
// map[string]any shape documents are built from.
type canonDoc = map[string]any

const (
	EventStart        = eventbus.EventStart
	EventComplete     = eventbus.EventComplete
	EventError        = eventbus.EventError
	EventPause        = eventbus.EventPause
	EventResume       = eventbus.EventResume
	EventChange       = eventbus.EventChange
	EventLocalChange  = eventbus.EventLocalChange
	EventRemoteChange = eventbus.EventRemoteChange
)

// Database owns one working directory's worth of state: its Lifecycle
// (repository handle, Task Queue, directory lock), the root Collection,
// and zero or more Synchronizers keyed by remote URL (spec.md §3).
type Database struct {
	mu   sync.Mutex
	opts config.DatabaseOptions
	lc   *lifecycle.Lifecycle

	root  *collection.Collection
	syncs map[string]*gsync.Synchronizer
	provs map[string]*remoteprovision.Provisioner
}

// OpenResult is Lifecycle's open() report (spec.md §4.9), re-exported so
// callers never need to import internal/lifecycle directly.
type OpenResult = lifecycle.OpenResult

// Open implements spec.md §4.9's open(): reuse or create the Git
// repository at opts.LocalDir (nativegit is the only Git Backend this
// module ships), ensure .gitddb/info.json, and return a ready-to-use
// Database plus what Open observed.
func Open(ctx context.Context, opts config.DatabaseOptions) (*Database, OpenResult, error) {
	if opts.DbName == "" {
		return nil, OpenResult{}, fmt.Errorf("gitdocdb: DbName is required")
	}
	if opts.LocalDir == "" {
		opts.LocalDir = "./gitddb"
	}
	if opts.DefaultBranch == "" {
		opts.DefaultBranch = "main"
	}

	lc, result, err := lifecycle.Open(ctx, nativegit.New(), opts)
	if err != nil {
		return nil, OpenResult{}, err
	}

	if len(opts.Schema.JSON.PlainTextProperties) == 0 {
		if schema, err := config.LoadSchema(opts.LocalDir); err == nil {
			opts.Schema = schema
		}
	}

	rootStore := &store.Store{
		Repo:          lc.Repo(),
		DefaultBranch: opts.DefaultBranch,
		AuthorName:    opts.AuthorName,
		AuthorEmail:   opts.AuthorEmail,
		CollectionPath: "",
		IsJSON:        true,
		NamePrefix:    opts.NamePrefix,
		ValidateOpts:  validate.DefaultOptions(),
	}

	db := &Database{
		opts:  opts,
		lc:    lc,
		root:  collection.New(rootStore, "", true, lc.Queue()),
		syncs: make(map[string]*gsync.Synchronizer),
		provs: make(map[string]*remoteprovision.Provisioner),
	}
	return db, result, nil
}

// Collection returns a Collection scoped to path ("" for the database's
// own root collection). isJSON false yields a generic collection that
// accepts JSON, UTF-8 text, or raw byte payloads (spec.md §4.4).
func (db *Database) Collection(path string, isJSON bool) (*collection.Collection, error) {
	if path == "" {
		return db.root, nil
	}
	opts := validate.DefaultOptions()
	cp := validate.NormalizeCollectionPath(path)
	if err := validate.ValidateCollectionPath(cp, opts); err != nil {
		return nil, err
	}
	s := &store.Store{
		Repo:           db.lc.Repo(),
		DefaultBranch:  db.opts.DefaultBranch,
		AuthorName:     db.opts.AuthorName,
		AuthorEmail:    db.opts.AuthorEmail,
		CollectionPath: cp,
		IsJSON:         isJSON,
		NamePrefix:     db.opts.NamePrefix,
		ValidateOpts:   opts,
	}
	return collection.New(s, cp, isJSON, db.lc.Queue()), nil
}

// DbId returns the database's persisted ULID identity
// (.gitddb/info.json's "dbId").
func (db *Database) DbId() string { return db.lc.DbId() }

// Sync attaches a Synchronizer for opts.RemoteURL (spec.md §4.7),
// bootstraps it, and registers it with the Lifecycle so Close/Destroy
// shuts its timer down. A GitHub connection with a personal access
// token wires internal/remoteprovision so bootstrap can auto-create a
// missing remote.
func (db *Database) Sync(ctx context.Context, opts config.RemoteOptions) (*gsync.Synchronizer, error) {
	db.mu.Lock()
	if existing, ok := db.syncs[opts.RemoteURL]; ok {
		db.mu.Unlock()
		return existing, nil
	}
	db.mu.Unlock()

	var provisioner *remoteprovision.Provisioner
	if opts.Connection.Type == config.ConnectionGitHub && opts.Connection.PersonalAccessToken != "" {
		provisioner = remoteprovision.New(opts.Connection.PersonalAccessToken)
	}

	bus := eventbus.New(nil)
	logger := dlog.New(db.opts.Logger)
	s, err := gsync.New(db.lc.Repo(), db.opts.DefaultBranch, db.lc.Queue(), bus, logger, provisioner, db.opts.Schema.JSON.PlainTextProperties, opts)
	if err != nil {
		return nil, err
	}
	if err := s.Bootstrap(ctx); err != nil {
		return nil, err
	}

	db.mu.Lock()
	db.syncs[opts.RemoteURL] = s
	if provisioner != nil {
		db.provs[opts.RemoteURL] = provisioner
	}
	db.mu.Unlock()
	db.lc.Register(s)
	return s, nil
}

// Stat is a read-only introspection snapshot: the HEAD commit oid, the
// default branch name, the root collection's document count, and the
// working directory's on-disk size (spec.md §1's "a real database"
// framing; not a spec.md-named operation).
type Stat struct {
	Head           gitbackend.Oid
	DefaultBranch  string
	DocumentCount  int
	WorkingDirSize int64
}

// Stat reads the database's current HEAD, counts documents under the
// root collection, and sums the working directory's file sizes.
func (db *Database) Stat() (Stat, error) {
	head, err := db.lc.Repo().ResolveRef("refs/heads/" + db.opts.DefaultBranch)
	if err != nil && err != gitbackend.ErrRefNotFound {
		return Stat{}, err
	}

	docs, err := db.root.Find(context.Background(), store.FindOptions{Recursive: true})
	if err != nil {
		return Stat{}, err
	}

	size, err := dirSize(db.opts.LocalDir)
	if err != nil {
		return Stat{}, err
	}

	return Stat{
		Head:           head,
		DefaultBranch:  db.opts.DefaultBranch,
		DocumentCount:  len(docs),
		WorkingDirSize: size,
	}, nil
}

// dirSize sums regular file sizes under root, excluding the ".git"
// directory (the object store's own size is not document payload).
func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && info.Name() == ".git" {
			return filepath.SkipDir
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Close implements spec.md §4.9's close() with default options: it waits
// without a timeout for queued tasks to drain, and never force-cancels.
func (db *Database) Close(ctx context.Context) error {
	return db.lc.Close(ctx)
}

// CloseWithOptions is Close with explicit drain timeout / force-cancel
// control (spec.md §5's close semantics).
func (db *Database) CloseWithOptions(ctx context.Context, opts lifecycle.CloseOptions) error {
	return db.lc.CloseWithOptions(ctx, opts)
}

// Destroy closes the database and removes its working directory. When
// deleteRemote is true and a GitHub Synchronizer with a configured
// token exists, its remote repository is deleted too.
func (db *Database) Destroy(ctx context.Context, deleteRemote bool) error {
	var hook func(ctx context.Context) error
	if deleteRemote {
		db.mu.Lock()
		for remoteURL, provisioner := range db.provs {
			provisioner := provisioner
			owner, repo, err := remoteprovision.ParseGitHubRemote(remoteURL)
			if err != nil {
				continue
			}
			hook = func(ctx context.Context) error {
				return provisioner.DeleteRepository(ctx, owner, repo)
			}
			break
		}
		db.mu.Unlock()
	}
	return db.lc.Destroy(ctx, hook)
}
