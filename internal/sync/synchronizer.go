// Package sync implements spec.md §4.7's Sync Engine: the Synchronizer
// state machine, its bootstrap contract, the fetch/classify/merge/push
// worker, and the retry loop around CannotPushBecauseUnfetchedCommitExists.
// No teacher file drives a Git-native sync loop (the teacher's storage
// backends sync to Dolt/SQLite, not a content-addressed Git remote), so
// the control flow here is grounded directly on spec.md §4.7/§4.8/§5 and
// wired atop internal/taskqueue (the teacher's single-writer scheduling
// discipline has no direct Go analog either — see internal/taskqueue's
// own ledger entry), internal/merge's MergeTrees, and internal/eventbus.
// Retrying CannotPushBecauseUnfetchedCommitExists uses
// github.com/cenkalti/backoff/v4, the same retry library and
// backoff.Retry/backoff.WithContext/backoff.Permanent idiom the teacher
// uses in internal/storage/dolt/store.go for transient connection
// errors.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gitdocdb/gitdocdb/internal/config"
	"github.com/gitdocdb/gitdocdb/internal/dlog"
	"github.com/gitdocdb/gitdocdb/internal/eventbus"
	"github.com/gitdocdb/gitdocdb/internal/gitbackend"
	"github.com/gitdocdb/gitdocdb/internal/merge"
	"github.com/gitdocdb/gitdocdb/internal/remoteprovision"
	"github.com/gitdocdb/gitdocdb/internal/taskqueue"
)

// State is one Synchronizer's position in spec.md §4.7's state machine.
type State string

const (
	StatePaused      State = "paused"
	StateActive      State = "active"
	StateRunningTask State = "running_task"
	StateRetrying    State = "retrying"
	StateFailed      State = "failed"
)

const originRemote = "origin"

// Synchronizer owns one RemoteOptions' worth of sync state: its live/
// paused flag, interval timer, retry counter, upstream branch, and event
// subscribers (spec.md §3). One Synchronizer is keyed by its remote URL.
type Synchronizer struct {
	mu sync.Mutex

	repo          gitbackend.Repo
	defaultBranch string
	queue         *taskqueue.Queue
	bus           *eventbus.Bus
	logger        *dlog.Logger
	provisioner   *remoteprovision.Provisioner

	// plainTextProperties names the JSON properties (from the database's
	// schema.yaml) that get a three-way line diff instead of whole-value
	// replacement during merge (spec.md §4.6).
	plainTextProperties map[string]bool

	opts config.RemoteOptions

	state          State
	retryCount     int
	upstreamBranch string // "" until the first successful push/fetch learns it

	timerStop chan struct{}
	closed    bool
}

// New validates opts and returns a Synchronizer ready for Bootstrap.
// With opts.Live set, opts.Interval below config.MinInterval rejects with
// ErrIntervalTooSmall (spec.md §4.7 step 6, construction time).
func New(repo gitbackend.Repo, defaultBranch string, queue *taskqueue.Queue, bus *eventbus.Bus, logger *dlog.Logger, provisioner *remoteprovision.Provisioner, plainTextProperties []string, opts config.RemoteOptions) (*Synchronizer, error) {
	if opts.RemoteURL == "" {
		return nil, ErrUndefinedRemoteURL
	}
	if opts.Live && opts.Interval < config.MinInterval {
		return nil, ErrIntervalTooSmall
	}
	if logger == nil {
		logger = dlog.New(nil)
	}
	ptp := make(map[string]bool, len(plainTextProperties))
	for _, p := range plainTextProperties {
		ptp[p] = true
	}
	return &Synchronizer{
		repo:                repo,
		defaultBranch:       defaultBranch,
		queue:               queue,
		bus:                 bus,
		logger:              logger,
		provisioner:         provisioner,
		plainTextProperties: ptp,
		opts:                opts,
		state:               StatePaused,
	}, nil
}

// State reports the Synchronizer's current state-machine position.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Synchronizer) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// RemoteURL identifies this Synchronizer, per spec.md §3's "keyed by its
// remote URL".
func (s *Synchronizer) RemoteURL() string { return s.opts.RemoteURL }

// On subscribes h to events of type t on this Synchronizer's Event Bus
// (spec.md §4.8).
func (s *Synchronizer) On(t eventbus.EventType, h eventbus.Handler) eventbus.Subscription {
	return s.bus.On(t, h)
}

// Off unregisters a subscription previously returned by On.
func (s *Synchronizer) Off(sub eventbus.Subscription) bool {
	return s.bus.Off(sub)
}

func authConfig(c config.Connection) *gitbackend.AuthConfig {
	if c.Type == config.ConnectionNone || c.Type == "" {
		return nil
	}
	return &gitbackend.AuthConfig{
		Type:                string(c.Type),
		PersonalAccessToken: c.PersonalAccessToken,
		PublicKeyPath:       c.PublicKeyPath,
		PrivateKeyPath:      c.PrivateKeyPath,
		PassPhrase:          c.PassPhrase,
	}
}

func (s *Synchronizer) netOptions() gitbackend.NetOptions {
	timeout := s.opts.RetryInterval
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return gitbackend.NetOptions{Timeout: timeout, Auth: authConfig(s.opts.Connection)}
}

func (s *Synchronizer) fetchRefspec() string {
	return fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", s.defaultBranch, s.defaultBranch)
}

func (s *Synchronizer) pushRefspec() string {
	return fmt.Sprintf("refs/heads/%s:refs/heads/%s", s.defaultBranch, s.defaultBranch)
}

func (s *Synchronizer) remoteTrackingRef() string {
	return "refs/remotes/origin/" + s.defaultBranch
}

func (s *Synchronizer) headRef() string {
	return "refs/heads/" + s.defaultBranch
}

// Bootstrap runs spec.md §4.7's sync(options) contract: ensure the
// origin remote, probe transport, provision a missing GitHub remote,
// enqueue the first push or sync task, and start the interval timer
// when Live.
func (s *Synchronizer) Bootstrap(ctx context.Context) error {
	if err := s.ensureRemote(); err != nil {
		return err
	}

	fetchErr := s.repo.Fetch(ctx, originRemote, s.fetchRefspec(), s.netOptions())
	remoteAbsent := fetchErr != nil && gitbackend.IsKind(fetchErr, gitbackend.RemoteRepositoryNotFound)
	if fetchErr != nil && !remoteAbsent {
		return fetchErr
	}

	if remoteAbsent && s.opts.Connection.Type == config.ConnectionGitHub && s.provisioner != nil {
		owner, repo, err := remoteprovision.ParseGitHubRemote(s.opts.RemoteURL)
		if err != nil {
			return err
		}
		if err := s.provisioner.CreateRepository(ctx, owner, repo, true); err != nil {
			return err
		}
	}

	_, upstreamErr := s.repo.ResolveRef(s.remoteTrackingRef())
	hasUpstream := upstreamErr == nil
	if hasUpstream {
		s.upstreamBranch = originRemote + "/" + s.defaultBranch
	}

	s.setState(StateActive)
	s.bus.Emit(eventbus.Event{Type: eventbus.EventStart})

	if !hasUpstream {
		fut, err := s.enqueuePush(false)
		if err != nil {
			return err
		}
		if _, err := fut.Wait(ctx); err != nil {
			return err
		}
		if err := s.repo.SetUpstream(s.defaultBranch, originRemote+"/"+s.defaultBranch); err != nil {
			return err
		}
		s.upstreamBranch = originRemote + "/" + s.defaultBranch
	} else {
		if _, err := s.enqueueSync(false); err != nil {
			return err
		}
	}

	if s.opts.Live {
		s.startTimer()
	}
	return nil
}

func (s *Synchronizer) ensureRemote() error {
	url, ok, err := s.repo.RemoteLookup(originRemote)
	if err != nil {
		return err
	}
	if !ok {
		return s.repo.RemoteCreate(originRemote, s.opts.RemoteURL)
	}
	if url != s.opts.RemoteURL {
		return s.repo.RemoteSetURL(originRemote, s.opts.RemoteURL)
	}
	return nil
}

func (s *Synchronizer) startTimer() {
	s.mu.Lock()
	if s.timerStop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.timerStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if _, err := s.enqueueSync(true); err != nil {
					s.logger.Sync(context.Background(), slog.LevelWarn, "sync: timer enqueue failed", s.opts.RemoteURL, "sync", "err", err)
				}
			}
		}
	}()
}

func (s *Synchronizer) stopTimer() {
	s.mu.Lock()
	stop := s.timerStop
	s.timerStop = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// Pause stops future interval-driven tasks and resets the retry counter;
// in-flight tasks run to completion (spec.md §5).
func (s *Synchronizer) Pause() {
	s.stopTimer()
	s.mu.Lock()
	s.retryCount = 0
	s.state = StatePaused
	s.mu.Unlock()
	s.bus.Emit(eventbus.Event{Type: eventbus.EventPause})
}

// Resume restarts the timer and, if interval/retry are non-zero,
// overrides the Synchronizer's configured values. Rejects with
// ErrSynchronizerNotOpen once Close has been called.
func (s *Synchronizer) Resume(interval time.Duration, retry int) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSynchronizerNotOpen
	}
	if interval > 0 {
		s.opts.Interval = interval
	}
	if retry > 0 {
		s.opts.Retry = retry
	}
	s.state = StateActive
	s.mu.Unlock()

	s.bus.Emit(eventbus.Event{Type: eventbus.EventResume})
	if s.opts.Live {
		s.startTimer()
	}
	return nil
}

// Close cancels the Synchronizer's timer. It does not touch the shared
// Task Queue; the owning database's Close/Destroy drains that.
func (s *Synchronizer) Close() {
	s.stopTimer()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// enqueueSync submits one sync_worker run. unshift places it at the
// queue head, used by the interval timer (spec.md §4.5).
func (s *Synchronizer) enqueueSync(unshift bool) (*taskqueue.Future, error) {
	return s.queue.Submit("sync", func(ctx context.Context) (any, error) {
		return s.runSyncWithRetry(ctx)
	}, taskqueue.SubmitOptions{TargetId: s.opts.RemoteURL, Unshift: unshift})
}

// enqueuePush submits one tryPush run.
func (s *Synchronizer) enqueuePush(unshift bool) (*taskqueue.Future, error) {
	return s.queue.Submit("push", func(ctx context.Context) (any, error) {
		return s.tryPushOnce(ctx)
	}, taskqueue.SubmitOptions{TargetId: s.opts.RemoteURL, Unshift: unshift})
}

// backOff builds the exponential backoff policy the retry loop steps
// through, bounded to opts.Retry attempts via backoff.WithMaxRetries, the
// same composition the teacher's newServerRetryBackoff reaches for.
func (s *Synchronizer) backOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.opts.RetryInterval
	if bo.InitialInterval <= 0 {
		bo.InitialInterval = config.DefaultRemoteOptions().RetryInterval
	}
	return backoff.WithMaxRetries(bo, uint64(maxInt(s.opts.Retry, 0)))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
