// Package remoteprovision implements the remote repository provisioning
// hook the Sync Engine's bootstrap calls when a GitHub-backed remote
// does not yet exist (spec.md §4.7 step 3) and that Lifecycle.Destroy
// optionally calls to remove it. Grounded on the teacher's
// internal/routing/github_client.go, which builds a *github.Client the
// same way (NewClient(nil).WithAuthToken(token) when a token is
// present, an unauthenticated client otherwise) and parses owner/repo
// out of a remote URL in the same three formats (ssh, https, http).
package remoteprovision

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
)

// Provisioner creates and deletes GitHub repositories on behalf of the
// Sync Engine bootstrap and Lifecycle.Destroy.
type Provisioner struct {
	client *github.Client
}

// New builds a Provisioner from a personal access token. An empty token
// yields an unauthenticated client, with which GitHub refuses repository
// create and delete calls.
func New(token string) *Provisioner {
	var client *github.Client
	if token != "" {
		client = github.NewClient(nil).WithAuthToken(token)
	} else {
		client = github.NewClient(nil)
	}
	return &Provisioner{client: client}
}

// NewWithHTTPClient builds a Provisioner against a caller-supplied HTTP
// client, for tests that point at an httptest server.
func NewWithHTTPClient(httpClient *http.Client) *Provisioner {
	return &Provisioner{client: github.NewClient(httpClient)}
}

// CreateRepository creates an empty repository at owner/repo (spec.md
// §4.7 step 3: "call the remote repository provisioning hook to create
// it"). private controls repository visibility.
func (p *Provisioner) CreateRepository(ctx context.Context, owner, repo string, private bool) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	r := &github.Repository{
		Name:    github.String(repo),
		Private: github.Bool(private),
	}
	// An empty org argument targets the authenticated user's own account.
	org := ""
	if !isLikelyUser(owner) {
		org = owner
	}
	_, _, err := p.client.Repositories.Create(ctx, org, r)
	if err != nil {
		return fmt.Errorf("remoteprovision: create %s/%s: %w", owner, repo, err)
	}
	return nil
}

// DeleteRepository deletes owner/repo (spec.md §4.9's destroy: "if a
// remote repository handle exists and the caller asks, invoke the
// provisioning hook to delete the remote").
func (p *Provisioner) DeleteRepository(ctx context.Context, owner, repo string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := p.client.Repositories.Delete(ctx, owner, repo)
	if err != nil {
		return fmt.Errorf("remoteprovision: delete %s/%s: %w", owner, repo, err)
	}
	return nil
}

// isLikelyUser is a best-effort heuristic used only to decide whether
// CreateRepository's org argument should be empty (authenticated user)
// or owner; callers that know better should prefer an explicit org
// field in a future RemoteOptions extension.
func isLikelyUser(owner string) bool {
	return owner == ""
}

// ParseGitHubRemote extracts owner and repo from a GitHub remote URL in
// ssh, https, or http form.
func ParseGitHubRemote(remoteURL string) (owner, repo string, err error) {
	remoteURL = strings.TrimSpace(remoteURL)

	switch {
	case strings.HasPrefix(remoteURL, "git@github.com:"):
		return splitOwnerRepo(strings.TrimPrefix(remoteURL, "git@github.com:"), remoteURL)
	case strings.HasPrefix(remoteURL, "https://github.com/"):
		return splitOwnerRepo(stripUserinfo(strings.TrimPrefix(remoteURL, "https://github.com/")), remoteURL)
	case strings.HasPrefix(remoteURL, "http://github.com/"):
		return splitOwnerRepo(stripUserinfo(strings.TrimPrefix(remoteURL, "http://github.com/")), remoteURL)
	default:
		return "", "", fmt.Errorf("remoteprovision: not a GitHub URL: %s", remoteURL)
	}
}

func stripUserinfo(path string) string {
	if at := strings.Index(path, "@"); at != -1 {
		return path[at+1:]
	}
	return path
}

func splitOwnerRepo(path, original string) (string, string, error) {
	path = strings.TrimSuffix(path, ".git")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("remoteprovision: invalid GitHub URL: %s", original)
	}
	return parts[0], parts[1], nil
}
