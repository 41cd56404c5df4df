package nativegit

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
)

// classifyTransportError maps a go-git transport failure onto the
// TransportErrorKind taxonomy spec.md §6 requires, so the Sync Engine can
// make a single retry/fatal decision (spec.md §7) regardless of which
// concrete backend is in use. go-git already exposes typed sentinel
// errors for the common cases; everything else falls back to net/url
// error inspection and finally a generic HttpNetwork classification.
func classifyTransportError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var existing *gitbackend.TransportError
	if errors.As(err, &existing) {
		return err
	}
	switch {
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return &gitbackend.TransportError{Kind: gitbackend.CannotPushUnfetched, Err: err}
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return &gitbackend.TransportError{Kind: gitbackend.RemoteRepositoryNotFound, Err: err}
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return &gitbackend.TransportError{Kind: gitbackend.PushAuthentication, Err: err}
	case errors.Is(err, transport.ErrAuthorizationFailed):
		return &gitbackend.TransportError{Kind: gitbackend.PushPermissionDenied, Err: err}
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return &gitbackend.TransportError{Kind: gitbackend.RemoteRepositoryNotFound, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		if ctx.Err() == context.DeadlineExceeded {
			return &gitbackend.TransportError{Kind: gitbackend.HttpTimeout, Err: err}
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &gitbackend.TransportError{Kind: gitbackend.UnresolvedHost, Err: err}
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return &gitbackend.TransportError{Kind: gitbackend.SocketTimeout, Err: err}
		}
		return &gitbackend.TransportError{Kind: gitbackend.InvalidURLFormat, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &gitbackend.TransportError{Kind: gitbackend.SocketTimeout, Err: err}
	}
	return &gitbackend.TransportError{Kind: gitbackend.HttpNetwork, Err: err}
}
