// Package store implements spec.md §4.3's Document Store: the CRUD and
// history operations that read and write JSON (or generic) documents as
// Git blobs through a gitbackend.Repo. It has no teacher analog — the
// teacher persists typed Issue structs in SQLite/Dolt — so its shape is
// grounded directly on spec.md §4.3's operation table and the
// surrounding invariants (§3, §8). Each Store serves one collection: its
// CollectionPath field drives the shortId <-> fullDocPath translation
// (spec.md §4.4), and internal/collection wraps one Store per collection.
package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/gitdocdb/gitdocdb/internal/canon"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/validate"
)

// metadataDir is the reserved top-level directory Find and
// EnumerateSubCollections must never descend into (spec.md §6's
// ".gitddb/" layout holds repository metadata, not documents).
const metadataDir = ".gitddb"

// Store is the engine behind one collection's worth of documents
// (CollectionPath == "" is the database's own root collection).
type Store struct {
	Repo          gitbackend.Repo
	DefaultBranch string
	AuthorName    string
	AuthorEmail   string
	CollectionPath string // "" or ends with "/"
	IsJSON        bool    // true: shortId never carries ".json"; false: generic
	NamePrefix    string
	ValidateOpts  validate.Options
}

// headRef is the revision Store resolves to find the current tree.
func (s *Store) headRef() string {
	return "refs/heads/" + s.DefaultBranch
}

// validateOpts falls back to validate.DefaultOptions when the caller
// left ValidateOpts at its zero value, so a Store is usable without
// forcing every constructor to repeat the default bounds.
func (s *Store) validateOpts() validate.Options {
	if s.ValidateOpts == (validate.Options{}) {
		return validate.DefaultOptions()
	}
	return s.ValidateOpts
}

func (s *Store) fullDocPath(id string) string {
	if s.IsJSON {
		return s.CollectionPath + id + ".json"
	}
	return s.CollectionPath + id
}

// AutoID generates a NamePrefix-prefixed 26-character monotonic ULID,
// per spec.md §4.3's "if _id is absent ... generate
// <prefix><26-char monotonic ULID>".
func (s *Store) AutoID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	return s.NamePrefix + id.String()
}

// WriteOptions configures one put/insert/update/delete call.
type WriteOptions struct {
	// CommitMessageTemplate overrides the default "insert: <path>(<oid>)"
	// / "update: ..." / "delete: ..." message. The literal "<%file_oid%>"
	// substring is replaced with the seven-character oid prefix before
	// committing (spec.md §4.3).
	CommitMessageTemplate string
}

func (s *Store) signature() gitbackend.Signature {
	return gitbackend.Signature{Name: s.AuthorName, Email: s.AuthorEmail, When: time.Now()}
}

func renderTemplate(tmpl string, oid gitbackend.Oid) string {
	return strings.ReplaceAll(tmpl, "<%file_oid%>", oid.ShortOid())
}

func defaultMessage(verb, path string, oid gitbackend.Oid) string {
	return fmt.Sprintf("%s: %s(%s)", verb, path, oid.ShortOid())
}

// lookupBlob returns the blob oid at fullPath within HEAD's tree, or
// (_, false, nil) if absent.
func (s *Store) lookupBlob(fullPath string) (gitbackend.Oid, bool, error) {
	head, err := s.Repo.ResolveRef(s.headRef())
	if err != nil {
		if err == gitbackend.ErrRefNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return s.lookupBlobAt(head, fullPath)
}

func (s *Store) lookupBlobAt(commitOid gitbackend.Oid, fullPath string) (gitbackend.Oid, bool, error) {
	dir := path.Dir(fullPath)
	if dir == "." {
		dir = ""
	}
	name := path.Base(fullPath)
	entries, err := s.Repo.ReadTree(commitOid, dir)
	if err != nil {
		return "", false, nil //nolint:nilerr // an absent directory means an absent document, not an error
	}
	for _, e := range entries {
		if e.Path == name && e.Type == gitbackend.TreeEntryBlob {
			return e.Oid, true, nil
		}
	}
	return "", false, nil
}

// commitWrite stages data at fullPath (or unstages it, when data is
// nil), commits with parents set to the current HEAD (if any), and
// returns the new commit oid. It is the sole place this package mutates
// the working tree, matching spec.md §5's "a write task is all-or-
// nothing": any failure here leaves the caller free to treat the whole
// operation as not having happened, since nothing has been committed.
func (s *Store) commitWrite(ctx context.Context, fullPath string, data []byte, message string) (gitbackend.Oid, error) {
	if data == nil {
		if err := s.Repo.Unstage(fullPath); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCannotDeleteData, err)
		}
	} else {
		if err := s.Repo.Stage(fullPath, data); err != nil {
			return "", fmt.Errorf("%w: %v", ErrCannotWriteData, err)
		}
	}

	var parents []gitbackend.Oid
	if head, err := s.Repo.ResolveRef(s.headRef()); err == nil {
		parents = []gitbackend.Oid{head}
	} else if err != gitbackend.ErrRefNotFound {
		return "", err
	}

	sig := s.signature()
	commitOid, err := s.Repo.Commit(ctx, gitbackend.CommitOptions{
		Author: sig, Committer: sig, Message: message, Parents: parents,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCannotWriteData, err)
	}
	return commitOid, nil
}

// put is the shared insert/update/put implementation. mode selects the
// existence precondition: "" (put, no precondition), "insert"
// (SameIdExists if present), "update" (DocumentNotFound if absent).
func (s *Store) put(ctx context.Context, id string, body canon.Doc, mode string, opts WriteOptions) (PutResult, error) {
	if id == "" {
		if s.NamePrefix == "" {
			return PutResult{}, validate.ErrUndefinedDocumentId
		}
		id = s.AutoID()
	}
	if err := validate.ValidateId(id, s.validateOpts()); err != nil {
		return PutResult{}, err
	}
	if err := validate.ValidatePropertyNames(canon.PropertyNames(body)); err != nil {
		return PutResult{}, err
	}

	fullPath := s.fullDocPath(id)
	_, exists, err := s.lookupBlob(fullPath)
	if err != nil {
		return PutResult{}, err
	}
	switch mode {
	case "insert":
		if exists {
			return PutResult{}, fmt.Errorf("%s: %w", id, ErrSameIdExists)
		}
	case "update":
		if !exists {
			return PutResult{}, fmt.Errorf("%s: %w", id, ErrDocumentNotFound)
		}
	}

	doc := canon.WithID(body, strings.TrimSuffix(fullPath, ".json"))
	data, err := canon.Canonicalize(doc)
	if err != nil {
		return PutResult{}, fmt.Errorf("%w: %v", ErrInvalidJsonObject, err)
	}
	fileOid, err := s.Repo.HashBlob(data)
	if err != nil {
		return PutResult{}, err
	}

	verb := "update"
	if !exists {
		verb = "insert"
	}
	message := opts.CommitMessageTemplate
	if message == "" {
		message = defaultMessage(verb, fullPath, fileOid)
	} else {
		message = renderTemplate(message, fileOid)
	}

	commitOid, err := s.commitWrite(ctx, fullPath, data, message)
	if err != nil {
		return PutResult{}, err
	}
	return PutResult{ID: id, FileOid: fileOid, Commit: commitOid}, nil
}

// Put inserts or updates the document at id (spec.md §4.3's put).
func (s *Store) Put(ctx context.Context, id string, body canon.Doc, opts WriteOptions) (PutResult, error) {
	return s.put(ctx, id, body, "", opts)
}

// Insert fails with ErrSameIdExists if a document already exists at id.
func (s *Store) Insert(ctx context.Context, id string, body canon.Doc, opts WriteOptions) (PutResult, error) {
	return s.put(ctx, id, body, "insert", opts)
}

// Update fails with ErrDocumentNotFound if no document exists at id.
func (s *Store) Update(ctx context.Context, id string, body canon.Doc, opts WriteOptions) (PutResult, error) {
	return s.put(ctx, id, body, "update", opts)
}

// Delete removes the document at id and prunes any now-empty ancestor
// directories (spec.md §4.3).
func (s *Store) Delete(ctx context.Context, id string, opts WriteOptions) (PutResult, error) {
	if err := validate.ValidateId(id, s.validateOpts()); err != nil {
		return PutResult{}, err
	}
	fullPath := s.fullDocPath(id)
	fileOid, exists, err := s.lookupBlob(fullPath)
	if err != nil {
		return PutResult{}, err
	}
	if !exists {
		return PutResult{}, fmt.Errorf("%s: %w", id, ErrDocumentNotFound)
	}

	message := opts.CommitMessageTemplate
	if message == "" {
		message = defaultMessage("delete", fullPath, fileOid)
	} else {
		message = renderTemplate(message, fileOid)
	}

	commitOid, err := s.commitWrite(ctx, fullPath, nil, message)
	if err != nil {
		return PutResult{}, err
	}
	return PutResult{ID: id, FileOid: fileOid, Commit: commitOid}, nil
}

// PutRaw writes a text or binary payload at id, for the generic
// (non-JSON) collections of spec.md §4.4: "accepts JSON, UTF-8 text, or
// raw byte buffers". Unlike put, it performs no JSON canonicalization
// or property-name validation; id still passes through the same
// id-format checks.
func (s *Store) PutRaw(ctx context.Context, id string, data []byte, opts WriteOptions) (PutResult, error) {
	if err := validate.ValidateId(id, s.validateOpts()); err != nil {
		return PutResult{}, err
	}
	fullPath := s.fullDocPath(id)
	_, exists, err := s.lookupBlob(fullPath)
	if err != nil {
		return PutResult{}, err
	}
	fileOid, err := s.Repo.HashBlob(data)
	if err != nil {
		return PutResult{}, err
	}

	verb := "update"
	if !exists {
		verb = "insert"
	}
	message := opts.CommitMessageTemplate
	if message == "" {
		message = defaultMessage(verb, fullPath, fileOid)
	} else {
		message = renderTemplate(message, fileOid)
	}

	commitOid, err := s.commitWrite(ctx, fullPath, data, message)
	if err != nil {
		return PutResult{}, err
	}
	return PutResult{ID: id, FileOid: fileOid, Commit: commitOid}, nil
}

// Get reads the document at id from HEAD. The second return is false
// when no document exists there.
func (s *Store) Get(ctx context.Context, id string) (FatDoc, bool, error) {
	fd, ok, err := s.GetFatDoc(ctx, id)
	return fd, ok, err
}

// GetFatDoc is Get plus the blob oid and type tag (spec.md §4.3).
func (s *Store) GetFatDoc(ctx context.Context, id string) (FatDoc, bool, error) {
	fullPath := s.fullDocPath(id)
	oid, exists, err := s.lookupBlob(fullPath)
	if err != nil || !exists {
		return FatDoc{}, false, err
	}
	data, err := s.Repo.ReadBlob(oid)
	if err != nil {
		return FatDoc{}, false, err
	}
	return s.decodeFatDoc(id, fullPath, oid, data)
}

func (s *Store) decodeFatDoc(id, fullPath string, oid gitbackend.Oid, data []byte) (FatDoc, bool, error) {
	if strings.HasSuffix(fullPath, ".json") {
		doc, err := canon.ParseDoc(data)
		if err != nil {
			return FatDoc{}, false, fmt.Errorf("%s: %w", fullPath, ErrInvalidJsonObject)
		}
		doc = canon.WithID(doc, id)
		return FatDoc{ID: id, Name: fullPath, Type: TypeJSON, FileOid: oid, Doc: doc}, true, nil
	}
	if utf8.Valid(data) {
		return FatDoc{ID: id, Name: fullPath, Type: TypeText, FileOid: oid, Raw: data}, true, nil
	}
	return FatDoc{ID: id, Name: fullPath, Type: TypeBinary, FileOid: oid, Raw: data}, true, nil
}

// GetByOid reads any blob by object id directly, bypassing id lookup.
func (s *Store) GetByOid(ctx context.Context, oid gitbackend.Oid) (canon.Doc, bool, error) {
	data, err := s.Repo.ReadBlob(oid)
	if err != nil {
		if err == gitbackend.ErrBlobNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	doc, err := canon.ParseDoc(data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidJsonObject, err)
	}
	return doc, true, nil
}

// history walks the commit graph from HEAD collecting fullPath's blob
// oid at each commit that matches filter, then applies spec.md §4.3's
// three collapsing rules: merge consecutive equal oids (including
// consecutive "absent"), and drop the absent prefix before the
// document's first appearance.
func (s *Store) history(id string, filter Filter) ([]*FatDoc, error) {
	fullPath := s.fullDocPath(id)
	head, err := s.Repo.ResolveRef(s.headRef())
	if err != nil {
		if err == gitbackend.ErrRefNotFound {
			return nil, nil
		}
		return nil, err
	}
	commits, err := s.Repo.ListCommits(head, "")
	if err != nil {
		return nil, err
	}

	type rev struct {
		oid gitbackend.Oid
		has bool
	}
	var revisions []rev
	for _, c := range commits {
		if !filter.matches(c.Author, c.Committer) {
			continue
		}
		oid, exists, err := s.lookupBlobAt(c.Oid, fullPath)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev{oid: oid, has: exists})
	}

	// Rule 1: collapse consecutive identical entries (oid or "absent").
	var collapsed []rev
	for _, r := range revisions {
		if n := len(collapsed); n > 0 && collapsed[n-1].has == r.has && collapsed[n-1].oid == r.oid {
			continue
		}
		collapsed = append(collapsed, r)
	}

	// Rule 2: drop the trailing run of "absent" entries that precede the
	// document's first appearance (ListCommits walks newest-first, so
	// that run sits at the end of collapsed).
	for len(collapsed) > 0 && !collapsed[len(collapsed)-1].has {
		collapsed = collapsed[:len(collapsed)-1]
	}

	out := make([]*FatDoc, 0, len(collapsed))
	for _, r := range collapsed {
		if !r.has {
			out = append(out, nil) // Rule 3: None means deleted at that revision.
			continue
		}
		data, err := s.Repo.ReadBlob(r.oid)
		if err != nil {
			return nil, err
		}
		fd, _, err := s.decodeFatDoc(id, fullPath, r.oid, data)
		if err != nil {
			return nil, err
		}
		out = append(out, &fd)
	}
	return out, nil
}

// GetHistory returns id's revisions newest-first (spec.md §4.3).
func (s *Store) GetHistory(ctx context.Context, id string, filter Filter) ([]*FatDoc, error) {
	return s.history(id, filter)
}

// GetBackNumber returns the entry at index n (0 = latest) of the same
// sequence GetHistory returns, or (nil, nil) if n is out of range.
func (s *Store) GetBackNumber(ctx context.Context, id string, n int, filter Filter) (*FatDoc, error) {
	revs, err := s.history(id, filter)
	if err != nil {
		return nil, err
	}
	if n < 0 || n >= len(revs) {
		return nil, nil
	}
	return revs[n], nil
}

// Find enumerates HEAD's tree breadth-first under CollectionPath+opts.Prefix
// (spec.md §4.3).
func (s *Store) Find(ctx context.Context, opts FindOptions) ([]canon.Doc, error) {
	head, err := s.Repo.ResolveRef(s.headRef())
	if err != nil {
		if err == gitbackend.ErrRefNotFound {
			return nil, nil
		}
		return nil, err
	}

	root := s.CollectionPath + opts.Prefix
	var docs []canon.Doc
	queue := []string{strings.TrimSuffix(root, "/")}
	for len(queue) > 0 {
		dir := queue[0]
		queue = queue[1:]
		if dir == "" {
			dir = ""
		}
		entries, err := s.Repo.ReadTree(head, dir)
		if err != nil {
			continue // absent directory under the requested prefix
		}

		sort.Slice(entries, func(i, j int) bool {
			if opts.Descending {
				return entries[i].Path > entries[j].Path
			}
			return entries[i].Path < entries[j].Path
		})

		var subdirs []string
		for _, e := range entries {
			p := e.Path
			if dir != "" {
				p = dir + "/" + e.Path
			}
			if e.Type == gitbackend.TreeEntryTree {
				if p == metadataDir {
					continue
				}
				subdirs = append(subdirs, p)
				continue
			}
			if !strings.HasSuffix(p, ".json") {
				continue
			}
			data, err := s.Repo.ReadBlob(e.Oid)
			if err != nil {
				return nil, err
			}
			doc, err := canon.ParseDoc(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, ErrInvalidJsonObject)
			}
			shortID := strings.TrimSuffix(strings.TrimPrefix(p, s.CollectionPath), ".json")
			docs = append(docs, canon.WithID(doc, shortID))
		}
		if opts.Recursive {
			queue = append(queue, subdirs...)
		}
	}
	return docs, nil
}
