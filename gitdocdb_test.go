package gitdocdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func testOptions(t *testing.T) DatabaseOptions {
	return DatabaseOptions{
		DbName:      "nara-park",
		LocalDir:    filepath.Join(t.TempDir(), "db"),
		AuthorName:  "Yoshino",
		AuthorEmail: "yoshino@example.com",
	}
}

func TestOpenCreatesRootCollectionAndAllowsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, result, err := Open(ctx, testOptions(t))
	require.NoError(t, err)
	defer db.Close(ctx)

	require.True(t, result.IsNew)
	require.NotEmpty(t, db.DbId())

	root, err := db.Collection("", true)
	require.NoError(t, err)

	pr, err := root.Insert(ctx, "deer", Doc{"name": "sika"}, WriteOptions{})
	require.NoError(t, err)
	require.Equal(t, "deer", pr.ID)

	fd, ok, err := root.Get(ctx, "deer")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sika", fd.Doc["name"])
}

func TestCollectionRejectsInvalidPath(t *testing.T) {
	ctx := context.Background()
	db, _, err := Open(ctx, testOptions(t))
	require.NoError(t, err)
	defer db.Close(ctx)

	_, err = db.Collection("/absolute", true)
	require.Error(t, err)
}

func TestNamedCollectionIsolatesDocumentsFromRoot(t *testing.T) {
	ctx := context.Background()
	db, _, err := Open(ctx, testOptions(t))
	require.NoError(t, err)
	defer db.Close(ctx)

	parks, err := db.Collection("parks", true)
	require.NoError(t, err)

	_, err = parks.Insert(ctx, "nara", Doc{"prefecture": "nara"}, WriteOptions{})
	require.NoError(t, err)

	root, err := db.Collection("", true)
	require.NoError(t, err)
	_, ok, err := root.Get(ctx, "nara")
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = parks.Get(ctx, "nara")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestStatReportsHeadAfterWrite(t *testing.T) {
	ctx := context.Background()
	db, _, err := Open(ctx, testOptions(t))
	require.NoError(t, err)
	defer db.Close(ctx)

	before, err := db.Stat()
	require.NoError(t, err)
	require.NotEmpty(t, before.Head)
	require.Zero(t, before.DocumentCount)

	root, err := db.Collection("", true)
	require.NoError(t, err)
	_, err = root.Insert(ctx, "deer", Doc{"name": "sika"}, WriteOptions{})
	require.NoError(t, err)

	after, err := db.Stat()
	require.NoError(t, err)
	require.NotEqual(t, before.Head, after.Head)
	require.Equal(t, 1, after.DocumentCount)
	require.Positive(t, after.WorkingDirSize)
}

func TestReopenPreservesDbIdAndDocuments(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	db1, _, err := Open(ctx, opts)
	require.NoError(t, err)
	root1, err := db1.Collection("", true)
	require.NoError(t, err)
	_, err = root1.Insert(ctx, "deer", Doc{"name": "sika"}, WriteOptions{})
	require.NoError(t, err)
	dbId := db1.DbId()
	require.NoError(t, db1.Close(ctx))

	db2, result, err := Open(ctx, opts)
	require.NoError(t, err)
	defer db2.Close(ctx)

	require.False(t, result.IsNew)
	require.Equal(t, dbId, db2.DbId())

	root2, err := db2.Collection("", true)
	require.NoError(t, err)
	fd, ok, err := root2.Get(ctx, "deer")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "sika", fd.Doc["name"])
}

func TestDestroyRemovesWorkingDirectory(t *testing.T) {
	ctx := context.Background()
	opts := testOptions(t)

	db, _, err := Open(ctx, opts)
	require.NoError(t, err)

	require.NoError(t, db.Destroy(ctx, false))
	require.NoDirExists(t, opts.LocalDir)
}
