package store

import (
	"context"
	"errors"
	"testing"

	"github.com/gitdocdb/gitdocdb/internal/canon"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend/nativegit"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	backend := nativegit.New()
	repo, err := backend.Init(context.Background(), dir, "main")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return &Store{
		Repo:          repo,
		DefaultBranch: "main",
		AuthorName:    "Yoshino",
		AuthorEmail:   "yoshino@example.com",
		IsJSON:        true,
	}
}

func TestPutThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Put(ctx, "nara", canon.Doc{"flower": "cherry blossoms"}, WriteOptions{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if res.ID != "nara" {
		t.Fatalf("expected id nara, got %s", res.ID)
	}

	fd, ok, err := s.Get(ctx, "nara")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if fd.Doc["_id"] != "nara" || fd.Doc["flower"] != "cherry blossoms" {
		t.Fatalf("unexpected doc: %+v", fd.Doc)
	}
	if fd.FileOid != res.FileOid {
		t.Fatalf("FatDoc oid %s != PutResult oid %s", fd.FileOid, res.FileOid)
	}
}

func TestPutCommitMessageDefaultsToInsertWithShortOid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Put(ctx, "nara", canon.Doc{"flower": "cherry blossoms"}, WriteOptions{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	commits, err := s.Repo.ListCommits(res.Commit, "")
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	want := "insert: nara.json(" + res.FileOid.ShortOid() + ")"
	if commits[0].Message != want {
		t.Fatalf("commit message = %q, want %q", commits[0].Message, want)
	}
}

func TestInsertFailsWhenIdAlreadyExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Insert(ctx, "nara", canon.Doc{"flower": "sakura"}, WriteOptions{}); err != nil {
		t.Fatalf("first Insert: %v", err)
	}
	if _, err := s.Insert(ctx, "nara", canon.Doc{"flower": "yamazakura"}, WriteOptions{}); err == nil {
		t.Fatalf("expected second Insert to fail")
	} else if !errors.Is(err, ErrSameIdExists) {
		t.Fatalf("expected ErrSameIdExists, got %v", err)
	}
}

func TestUpdateFailsWhenDocumentAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Update(ctx, "nara", canon.Doc{"flower": "sakura"}, WriteOptions{}); err == nil {
		t.Fatalf("expected Update on an absent document to fail")
	} else if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDeletePrunesEmptyAncestorDirectories(t *testing.T) {
	s := newTestStore(t)
	s.CollectionPath = "yoshino/sub/"
	ctx := context.Background()

	if _, err := s.Put(ctx, "mt", canon.Doc{"flower": "sakura"}, WriteOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Delete(ctx, "mt", WriteOptions{}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	head, err := s.Repo.ResolveRef("refs/heads/main")
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	entries, err := s.Repo.ReadTree(head, "")
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected the empty yoshino/sub/ tree to have been pruned, got %+v", entries)
	}
}

func TestGetHistoryCollapsesConsecutiveEqualOidsAndDropsAbsentPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "nara", canon.Doc{"v": "one"}, WriteOptions{}); err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	if _, err := s.Put(ctx, "nara", canon.Doc{"v": "two"}, WriteOptions{}); err != nil {
		t.Fatalf("Put v2: %v", err)
	}
	if _, err := s.Delete(ctx, "nara", WriteOptions{}); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	hist, err := s.GetHistory(ctx, "nara", nil)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 history entries (deleted, v2, v1), got %d: %+v", len(hist), hist)
	}
	if hist[0] != nil {
		t.Fatalf("expected the newest entry to be nil (deleted), got %+v", hist[0])
	}
	if hist[1] == nil || hist[1].Doc["v"] != "two" {
		t.Fatalf("expected entry 1 to be v2, got %+v", hist[1])
	}
	if hist[2] == nil || hist[2].Doc["v"] != "one" {
		t.Fatalf("expected entry 2 to be v1, got %+v", hist[2])
	}
}

func TestGetBackNumberReturnsEntryByIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "nara", canon.Doc{"v": "one"}, WriteOptions{}); err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	if _, err := s.Put(ctx, "nara", canon.Doc{"v": "two"}, WriteOptions{}); err != nil {
		t.Fatalf("Put v2: %v", err)
	}

	fd, err := s.GetBackNumber(ctx, "nara", 1, nil)
	if err != nil {
		t.Fatalf("GetBackNumber: %v", err)
	}
	if fd == nil || fd.Doc["v"] != "one" {
		t.Fatalf("expected back-number 1 to be v1, got %+v", fd)
	}

	fd, err = s.GetBackNumber(ctx, "nara", 99, nil)
	if err != nil {
		t.Fatalf("GetBackNumber out of range: %v", err)
	}
	if fd != nil {
		t.Fatalf("expected nil for an out-of-range back-number, got %+v", fd)
	}
}

func TestFindReturnsSortedJsonDocsUnderPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"nara", "yoshino", "totsukawa"} {
		if _, err := s.Put(ctx, id, canon.Doc{"flower": id}, WriteOptions{}); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	docs, err := s.Find(ctx, DefaultFindOptions())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("expected 3 docs, got %d", len(docs))
	}
	ids := []string{docs[0]["_id"].(string), docs[1]["_id"].(string), docs[2]["_id"].(string)}
	want := []string{"nara", "totsukawa", "yoshino"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("Find ordering = %v, want ascending %v", ids, want)
		}
	}
}

func TestFindSkipsGitddbMetadataDirectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Put(ctx, "nara", canon.Doc{"flower": "sakura"}, WriteOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	head, err := s.Repo.ResolveRef(s.headRef())
	if err != nil {
		t.Fatalf("ResolveRef: %v", err)
	}
	if err := s.Repo.Stage(".gitddb/info.json", []byte(`{"version":"1.0.0","dbId":"x"}`)); err != nil {
		t.Fatalf("Stage: %v", err)
	}
	sig := s.signature()
	if _, err := s.Repo.Commit(ctx, gitbackend.CommitOptions{
		Author: sig, Committer: sig, Message: "metadata", Parents: []gitbackend.Oid{head},
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	docs, err := s.Find(ctx, FindOptions{Recursive: true})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc (metadata excluded), got %d", len(docs))
	}
	if docs[0]["_id"] != "nara" {
		t.Fatalf("expected nara, got %v", docs[0]["_id"])
	}
}

func TestAutoIDGeneratesPrefixedULIDWhenIdOmitted(t *testing.T) {
	s := newTestStore(t)
	s.NamePrefix = "doc-"
	ctx := context.Background()

	res, err := s.Put(ctx, "", canon.Doc{"flower": "sakura"}, WriteOptions{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(res.ID) != len("doc-")+26 {
		t.Fatalf("expected a 26-char ULID after the prefix, got %q (len %d)", res.ID, len(res.ID))
	}
}

