package nativegit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	gittransport "github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
)

func (r *Repo) Fetch(ctx context.Context, remote, refspec string, opts gitbackend.NetOptions) error {
	auth, err := authMethod(opts.Auth)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()
	err = r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(refspec)},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyTransportError(ctx, err)
	}
	return nil
}

func (r *Repo) Push(ctx context.Context, remote, refspec string, opts gitbackend.NetOptions) error {
	auth, err := authMethod(opts.Auth)
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(ctx, opts.Timeout)
	defer cancel()
	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{config.RefSpec(refspec)},
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return classifyTransportError(ctx, err)
	}
	return nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// authMethod converts a RemoteOptions.connection description (spec.md §6)
// into a go-git transport.AuthMethod.
func authMethod(cfg *gitbackend.AuthConfig) (gittransport.AuthMethod, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Type {
	case "", "none":
		return nil, nil
	case "github":
		return &githttp.BasicAuth{Username: "x-access-token", Password: cfg.PersonalAccessToken}, nil
	case "ssh":
		auth, err := gitssh.NewPublicKeysFromFile("git", cfg.PrivateKeyPath, cfg.PassPhrase)
		if err != nil {
			return nil, fmt.Errorf("nativegit: ssh key %s: %w", cfg.PrivateKeyPath, &gitbackend.TransportError{
				Kind: gitbackend.InvalidSSHKeyFormat, Err: err,
			})
		}
		return auth, nil
	default:
		return nil, fmt.Errorf("nativegit: unknown connection type %q", cfg.Type)
	}
}
