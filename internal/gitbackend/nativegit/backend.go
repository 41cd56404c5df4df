package nativegit

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
)

// Backend is the go-git-backed gitbackend.Backend.
type Backend struct{}

// New returns a ready-to-use Backend. go-git requires no shared state
// across repositories, so every call is independent.
func New() *Backend { return &Backend{} }

func (b *Backend) Init(_ context.Context, dir string, defaultBranch string) (gitbackend.Repo, error) {
	if defaultBranch == "" {
		defaultBranch = "main"
	}
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(defaultBranch),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("nativegit: init %s: %w", dir, err)
	}
	return &Repo{repo: repo, dir: dir}, nil
}

func (b *Backend) Open(_ context.Context, dir string) (gitbackend.Repo, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil, gitbackend.ErrRepositoryNotOpen
		}
		return nil, fmt.Errorf("nativegit: open %s: %w", dir, err)
	}
	return &Repo{repo: repo, dir: dir}, nil
}
