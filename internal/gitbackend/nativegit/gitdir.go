// Package nativegit implements gitbackend.Backend on top of go-git, the
// pure-Go Git implementation used throughout this module instead of
// shelling out to the git binary.
package nativegit

import (
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
)

// DetectExisting reports whether dir already contains a well-formed Git
// repository. Lifecycle.Open does not call it: it decides reuse versus
// init from whether Backend.Open returns ErrRepositoryNotOpen. Adapted
// from the teacher's GetGitDir/IsWorktree helpers: instead of shelling out
// to `git rev-parse`, it asks go-git to open the directory directly, which
// also validates that ".git" is a real repository rather than a stray
// file or empty directory.
func DetectExisting(dir string) (bool, error) {
	gitDir := filepath.Join(dir, ".git")
	if _, err := os.Stat(gitDir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := git.PlainOpen(dir); err != nil {
		if err == git.ErrRepositoryNotExists {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
