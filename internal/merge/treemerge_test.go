package merge

import (
	"context"
	"testing"
	"time"

	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend/nativegit"
)

func commitFile(t *testing.T, repo gitbackend.Repo, path, content, message string) gitbackend.Oid {
	t.Helper()
	if err := repo.Stage(path, []byte(content)); err != nil {
		t.Fatalf("Stage(%s): %v", path, err)
	}
	sig := gitbackend.Signature{Name: "Yoshino", Email: "yoshino@example.com", When: time.Unix(1700000000, 0)}
	oid, err := repo.Commit(context.Background(), gitbackend.CommitOptions{Author: sig, Committer: sig, Message: message})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return oid
}

func TestMergeTreesNonOverlappingFileAdds(t *testing.T) {
	dir := t.TempDir()
	backend := nativegit.New()
	repoIface, err := backend.Init(context.Background(), dir, "main")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	base := commitFile(t, repoIface, "nara.json", "{\n  \"flower\": \"sakura\"\n}\n", "insert: nara.json")

	// "local" adds a new file on top of base.
	local := commitFile(t, repoIface, "yoshino.json", "{\n  \"flower\": \"yamazakura\"\n}\n", "insert: yoshino.json")

	// "remote" is simulated by unstaging local's addition and adding a
	// different file from the same base.
	if err := repoIface.Unstage("yoshino.json"); err != nil {
		t.Fatalf("Unstage: %v", err)
	}
	sig := gitbackend.Signature{Name: "Yoshino", Email: "yoshino@example.com", When: time.Unix(1700000100, 0)}
	_, err = repoIface.Commit(context.Background(), gitbackend.CommitOptions{
		Author: sig, Committer: sig, Message: "revert to base", Parents: []gitbackend.Oid{base},
	})
	if err != nil {
		t.Fatalf("Commit revert: %v", err)
	}
	remote := commitFile(t, repoIface, "totsukawa.json", "{\n  \"flower\": \"someiyoshino\"\n}\n", "insert: totsukawa.json")

	changes, err := MergeTrees(repoIface, base, local, remote, TreeMergeOptions{ConflictResolutionStrategy: StrategyTheirs})
	if err != nil {
		t.Fatalf("MergeTrees: %v", err)
	}

	found := map[string]ChangedFile{}
	for _, c := range changes {
		found[c.Path] = c
	}
	if _, ok := found["totsukawa.json"]; !ok {
		t.Fatalf("expected the remote-only file to be staged, got %+v", changes)
	}
	for _, c := range changes {
		if c.Conflict {
			t.Fatalf("expected no conflicts for non-overlapping adds: %+v", changes)
		}
	}
}
