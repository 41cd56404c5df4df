package collection

import (
	"context"
	"testing"

	"github.com/gitdocdb/gitdocdb/internal/canon"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend/nativegit"
	"github.com/gitdocdb/gitdocdb/internal/store"
	"github.com/gitdocdb/gitdocdb/internal/taskqueue"
)

func newTestCollection(t *testing.T, path string) *Collection {
	t.Helper()
	dir := t.TempDir()
	backend := nativegit.New()
	repo, err := backend.Init(context.Background(), dir, "main")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	s := &store.Store{
		Repo:           repo,
		DefaultBranch:  "main",
		AuthorName:     "Yoshino",
		AuthorEmail:    "yoshino@example.com",
		CollectionPath: path,
		IsJSON:         true,
	}
	q := taskqueue.New()
	t.Cleanup(q.Destroy)
	return New(s, path, true, q)
}

func TestCollectionPutReturnsShortIDNotFullPath(t *testing.T) {
	col := newTestCollection(t, "yoshino/")
	ctx := context.Background()

	res, err := col.Put(ctx, "mt_yoshino", canon.Doc{"flower": "awesome cherry blossoms"}, store.WriteOptions{})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if res.ID != "mt_yoshino" {
		t.Fatalf("PutResult.ID = %q, want shortId %q", res.ID, "mt_yoshino")
	}

	fd, ok, err := col.Get(ctx, "mt_yoshino")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if fd.Doc["_id"] != "mt_yoshino" {
		t.Fatalf("Doc[_id] = %v, want shortId", fd.Doc["_id"])
	}
	if fd.Name != "yoshino/mt_yoshino.json" {
		t.Fatalf("Name = %q, want the fullDocPath", fd.Name)
	}
}

func TestGenericCollectionAcceptsTextAndBinary(t *testing.T) {
	col := newTestCollection(t, "notes/")
	col.IsJSON = false
	col.store.IsJSON = false
	ctx := context.Background()

	if _, err := col.PutText(ctx, "readme.txt", "hello", store.WriteOptions{}); err != nil {
		t.Fatalf("PutText: %v", err)
	}
	fd, ok, err := col.Get(ctx, "readme.txt")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if fd.Type != store.TypeText || string(fd.Raw) != "hello" {
		t.Fatalf("expected text doc %q, got type=%v raw=%q", "hello", fd.Type, fd.Raw)
	}

	bin := []byte{0x00, 0xff, 0x10, 0x80}
	if _, err := col.PutRaw(ctx, "blob.bin", bin, store.WriteOptions{}); err != nil {
		t.Fatalf("PutRaw: %v", err)
	}
	fd, ok, err = col.Get(ctx, "blob.bin")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if fd.Type != store.TypeBinary {
		t.Fatalf("expected TypeBinary, got %v", fd.Type)
	}
}

func TestEnumerateSubCollectionsExcludesMetadataDir(t *testing.T) {
	root := newTestCollection(t, "")
	ctx := context.Background()

	if _, err := root.Put(ctx, "yoshino/mt_yoshino", canon.Doc{"flower": "sakura"}, store.WriteOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := root.Put(ctx, "totsukawa/onsen", canon.Doc{"note": "hot spring"}, store.WriteOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := root.PutRaw(ctx, ".gitddb/info", []byte(`{"version":"1.0.0"}`), store.WriteOptions{}); err != nil {
		t.Fatalf("PutRaw: %v", err)
	}

	subs, err := root.EnumerateSubCollections(ctx, "")
	if err != nil {
		t.Fatalf("EnumerateSubCollections: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 subcollections (yoshino, totsukawa), got %d: %+v", len(subs), subs)
	}
	for _, sc := range subs {
		if sc.Path == metadataDir+"/" {
			t.Fatalf("enumerateSubCollections must exclude the reserved metadata directory, got %+v", subs)
		}
	}
}
