package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gitdocdb/gitdocdb/internal/config"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend/nativegit"
)

func testOptions(dir string) config.DatabaseOptions {
	return config.DatabaseOptions{
		DbName:        "shika",
		LocalDir:      dir,
		AuthorName:    "Yoshino",
		AuthorEmail:   "yoshino@example.com",
		DefaultBranch: "main",
	}
}

func TestOpenOnFreshDirectoryCreatesMetadataAsFirstCommit(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	lc, result, err := Open(ctx, nativegit.New(), testOptions(dir))
	require.NoError(t, err)
	defer lc.Close(ctx)

	require.True(t, result.IsNew)
	require.True(t, result.IsCreatedHere)
	require.True(t, result.IsValidVersion)
	require.False(t, result.IsClone)
	require.NotEmpty(t, lc.DbId())

	head, err := lc.Repo().ResolveRef("refs/heads/main")
	require.NoError(t, err)
	entries, err := lc.Repo().ReadTree(head, ".gitddb")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "info.json", entries[0].Path)
}

func TestOpenReusesExistingRepositoryAndMetadata(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	lc1, result1, err := Open(ctx, nativegit.New(), testOptions(dir))
	require.NoError(t, err)
	require.True(t, result1.IsNew)
	firstDbId := lc1.DbId()
	require.NoError(t, lc1.Close(ctx))

	lc2, result2, err := Open(ctx, nativegit.New(), testOptions(dir))
	require.NoError(t, err)
	defer lc2.Close(ctx)

	require.False(t, result2.IsNew)
	require.True(t, result2.IsClone)
	require.False(t, result2.IsCreatedHere)
	require.True(t, result2.IsValidVersion)
	require.Equal(t, firstDbId, lc2.DbId())
}

func TestOpenRejectsSecondInstanceOverSameWorkingDir(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	lc1, _, err := Open(ctx, nativegit.New(), testOptions(dir))
	require.NoError(t, err)
	defer lc1.Close(ctx)

	_, _, err = Open(ctx, nativegit.New(), testOptions(dir))
	require.Error(t, err)
}

func TestDestroyRemovesWorkingDirAfterClose(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	lc, _, err := Open(ctx, nativegit.New(), testOptions(dir))
	require.NoError(t, err)

	require.NoError(t, lc.Destroy(ctx, nil))
	require.NoDirExists(t, dir)
}

func TestCloseAllowsReopenAfterRelease(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	lc1, _, err := Open(ctx, nativegit.New(), testOptions(dir))
	require.NoError(t, err)
	require.NoError(t, lc1.Close(ctx))

	lc2, _, err := Open(ctx, nativegit.New(), testOptions(dir))
	require.NoError(t, err)
	require.NoError(t, lc2.Close(ctx))
}
