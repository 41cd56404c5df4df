// Package collection implements spec.md §4.4's Collection: a namespaced
// view over internal/store's Document Store that translates between the
// collection-scoped shortId an API caller sees and the fullDocPath that
// actually lands on disk. It has no teacher analog; store.Store already
// does the collectionPath-aware path arithmetic (each Store carries its
// own CollectionPath), so Collection is a thin, mostly pass-through
// wrapper plus enumerateSubCollections.
package collection

import (
	"context"
	"strings"

	"github.com/gitdocdb/gitdocdb/internal/canon"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/store"
	"github.com/gitdocdb/gitdocdb/internal/taskqueue"
)

// metadataDir is the reserved directory enumerateSubCollections excludes
// (spec.md §4.4, §6's ".gitddb/" layout).
const metadataDir = ".gitddb"

// Collection owns one collectionPath and the Store that serves it.
type Collection struct {
	Path   string // "" for the database's own root collection, else ends with "/"
	IsJSON bool
	store  *store.Store
	queue  *taskqueue.Queue
}

// New wraps store for collectionPath. store.CollectionPath, store.IsJSON
// and store.NamePrefix must already be set to match path/isJSON/namePrefix;
// callers normally go through a constructor on the database that builds
// the Store and the Collection together (see the gitdocdb façade). queue
// is the database's single-writer Task Queue (spec.md §4.5); every
// mutating call below routes through it so put/insert/update/delete run
// strictly one at a time, in submission order, against the shared
// working tree.
func New(s *store.Store, path string, isJSON bool, queue *taskqueue.Queue) *Collection {
	return &Collection{Path: path, IsJSON: isJSON, store: s, queue: queue}
}

// submitWrite enqueues fn as label on the Task Queue and waits for its
// result, so every write call below has the same "submit, then block
// the caller's goroutine on the Future" shape (spec.md §4.5: "the caller
// receives its operation result through the function's future").
func (c *Collection) submitWrite(ctx context.Context, label, targetId string, fn func(ctx context.Context) (store.PutResult, error)) (store.PutResult, error) {
	fut, err := c.queue.Submit(label, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, taskqueue.SubmitOptions{TargetId: targetId})
	if err != nil {
		return store.PutResult{}, err
	}
	result, err := fut.Wait(ctx)
	if err != nil {
		return store.PutResult{}, err
	}
	return result.(store.PutResult), nil
}

// Put inserts or updates the JSON document at shortId (spec.md §4.4: "the
// _id embedded in the persisted JSON is the fullDocPath ... the _id
// returned by the API is the shortId" — both already handled by Store).
func (c *Collection) Put(ctx context.Context, shortID string, body canon.Doc, opts store.WriteOptions) (store.PutResult, error) {
	return c.submitWrite(ctx, "put: "+c.Path+shortID, c.Path+shortID, func(ctx context.Context) (store.PutResult, error) {
		return c.store.Put(ctx, shortID, body, opts)
	})
}

// Insert fails with store.ErrSameIdExists if shortId already exists.
func (c *Collection) Insert(ctx context.Context, shortID string, body canon.Doc, opts store.WriteOptions) (store.PutResult, error) {
	return c.submitWrite(ctx, "insert: "+c.Path+shortID, c.Path+shortID, func(ctx context.Context) (store.PutResult, error) {
		return c.store.Insert(ctx, shortID, body, opts)
	})
}

// Update fails with store.ErrDocumentNotFound if shortId is absent.
func (c *Collection) Update(ctx context.Context, shortID string, body canon.Doc, opts store.WriteOptions) (store.PutResult, error) {
	return c.submitWrite(ctx, "update: "+c.Path+shortID, c.Path+shortID, func(ctx context.Context) (store.PutResult, error) {
		return c.store.Update(ctx, shortID, body, opts)
	})
}

// Delete removes the document at shortId.
func (c *Collection) Delete(ctx context.Context, shortID string, opts store.WriteOptions) (store.PutResult, error) {
	return c.submitWrite(ctx, "delete: "+c.Path+shortID, c.Path+shortID, func(ctx context.Context) (store.PutResult, error) {
		return c.store.Delete(ctx, shortID, opts)
	})
}

// PutText writes a UTF-8 text payload at shortId (spec.md §4.4's generic
// collections). The collection type is not checked: on a JSON collection
// the bytes are stored unparsed at shortId + ".json".
func (c *Collection) PutText(ctx context.Context, shortID, text string, opts store.WriteOptions) (store.PutResult, error) {
	return c.PutRaw(ctx, shortID, []byte(text), opts)
}

// PutRaw writes an arbitrary byte payload at shortId. As with PutText,
// the collection type is not checked.
func (c *Collection) PutRaw(ctx context.Context, shortID string, data []byte, opts store.WriteOptions) (store.PutResult, error) {
	return c.submitWrite(ctx, "put: "+c.Path+shortID, c.Path+shortID, func(ctx context.Context) (store.PutResult, error) {
		return c.store.PutRaw(ctx, shortID, data, opts)
	})
}

// Get reads the document at shortId from HEAD.
func (c *Collection) Get(ctx context.Context, shortID string) (store.FatDoc, bool, error) {
	return c.store.Get(ctx, shortID)
}

// GetFatDoc is Get plus the blob oid and type tag.
func (c *Collection) GetFatDoc(ctx context.Context, shortID string) (store.FatDoc, bool, error) {
	return c.store.GetFatDoc(ctx, shortID)
}

// GetByOid reads any blob by object id directly.
func (c *Collection) GetByOid(ctx context.Context, oid gitbackend.Oid) (canon.Doc, bool, error) {
	return c.store.GetByOid(ctx, oid)
}

// GetHistory returns shortId's revisions newest-first.
func (c *Collection) GetHistory(ctx context.Context, shortID string, filter store.Filter) ([]*store.FatDoc, error) {
	return c.store.GetHistory(ctx, shortID, filter)
}

// GetBackNumber returns the entry at index n of the same sequence
// GetHistory returns, or nil if n is out of range.
func (c *Collection) GetBackNumber(ctx context.Context, shortID string, n int, filter store.Filter) (*store.FatDoc, error) {
	return c.store.GetBackNumber(ctx, shortID, n, filter)
}

// Find enumerates this collection's documents under opts.Prefix.
func (c *Collection) Find(ctx context.Context, opts store.FindOptions) ([]canon.Doc, error) {
	return c.store.Find(ctx, opts)
}

// EnumerateSubCollections reads the HEAD tree at root (relative to this
// collection's own path) and returns one Collection per immediate
// subdirectory, excluding the reserved ".gitddb" metadata directory
// (spec.md §4.4). Each returned Collection inherits this collection's
// IsJSON and shares its underlying Store's Repo, branch and identity,
// scoped to the subtree's own collectionPath.
func (c *Collection) EnumerateSubCollections(ctx context.Context, root string) ([]*Collection, error) {
	return c.enumerateSubCollections(ctx, root, false)
}

// EnumerateSubCollectionsRecursive supplements EnumerateSubCollections
// with a recursive variant: every subtree at every depth under root,
// still excluding ".gitddb" wherever it appears.
func (c *Collection) EnumerateSubCollectionsRecursive(ctx context.Context, root string) ([]*Collection, error) {
	return c.enumerateSubCollections(ctx, root, true)
}

// withCollectionPath returns a Store identical to c's own except scoped
// to a different collectionPath, sharing the same Repo and identity.
func (c *Collection) withCollectionPath(path string) *store.Store {
	cp := *c.store
	cp.CollectionPath = path
	return &cp
}

func (c *Collection) enumerateSubCollections(ctx context.Context, root string, recursive bool) ([]*Collection, error) {
	repo := c.store.Repo
	head, err := repo.ResolveRef("refs/heads/" + c.store.DefaultBranch)
	if err != nil {
		if err == gitbackend.ErrRefNotFound {
			return nil, nil
		}
		return nil, err
	}

	base := c.Path + strings.TrimSuffix(root, "/")
	base = strings.Trim(base, "/")

	var out []*Collection
	queue := []string{base}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]

		entries, err := repo.ReadTree(head, dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.Type != gitbackend.TreeEntryTree || e.Path == metadataDir {
				continue
			}
			sub := e.Path
			if dir != "" {
				sub = dir + "/" + e.Path
			}
			subStore := c.withCollectionPath(sub + "/")
			out = append(out, New(subStore, sub+"/", c.IsJSON, c.queue))
			if recursive {
				queue = append(queue, sub)
			}
		}
	}
	return out, nil
}
