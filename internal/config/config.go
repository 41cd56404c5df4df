// Package config defines the option structs a caller builds to open a
// database and drive its Synchronizers (spec.md §6), plus optional
// on-disk schema loading in the teacher's local_config.go style: read a
// file directly with gopkg.in/yaml.v3, return a zero-value struct rather
// than an error when it is absent.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DatabaseOptions are the inputs to opening a database (spec.md §6).
type DatabaseOptions struct {
	// DbName is required.
	DbName string
	// LocalDir defaults to "./gitddb".
	LocalDir string
	// AuthorName/AuthorEmail are used for commits this instance creates.
	AuthorName  string
	AuthorEmail string
	// DefaultBranch defaults to "main".
	DefaultBranch string
	// NamePrefix is prepended to auto-generated ULID _ids.
	NamePrefix string
	// Schema optionally declares plainTextProperties for the Merge Engine.
	Schema Schema
	// Logger receives structured diagnostics; defaults to slog.Default().
	Logger *slog.Logger
}

// Schema is the subset of "schema.json" (spec.md §6) this module
// interprets: which top-level string properties get a three-way line
// diff instead of whole-value replacement during merge.
type Schema struct {
	JSON SchemaJSON `yaml:"json"`
}

type SchemaJSON struct {
	PlainTextProperties []string `yaml:"plainTextProperties"`
}

// ConnectionType enumerates RemoteOptions.connection.type.
type ConnectionType string

const (
	ConnectionGitHub ConnectionType = "github"
	ConnectionSSH    ConnectionType = "ssh"
	ConnectionNone   ConnectionType = "none"
)

// SyncDirection enumerates RemoteOptions.syncDirection.
type SyncDirection string

const (
	SyncPull SyncDirection = "pull"
	SyncPush SyncDirection = "push"
	SyncBoth SyncDirection = "both"
)

// NoMergeBaseBehavior enumerates RemoteOptions.behaviorForNoMergeBase.
type NoMergeBaseBehavior string

const (
	NoMergeBaseNop    NoMergeBaseBehavior = "nop"
	NoMergeBaseTheirs NoMergeBaseBehavior = "theirs"
	NoMergeBaseOurs   NoMergeBaseBehavior = "ours"
)

// ConflictResolutionStrategy enumerates the Merge Engine's property-level
// fallback policy (spec.md §4.6). SPEC_FULL.md §4 item 2 resolves the
// spec's open question by defaulting new Synchronizers to "theirs".
type ConflictResolutionStrategy string

const (
	StrategyOursDiff ConflictResolutionStrategy = "ours-diff"
	StrategyTheirs   ConflictResolutionStrategy = "theirs"
	StrategyOurs     ConflictResolutionStrategy = "ours"
)

// Connection carries the authentication fields of RemoteOptions.connection.
type Connection struct {
	Type                ConnectionType
	Engine              string
	PersonalAccessToken string
	PublicKeyPath       string
	PrivateKeyPath      string
	PassPhrase          string
}

// RemoteOptions configures one Synchronizer (spec.md §6).
type RemoteOptions struct {
	Live                       bool
	RemoteURL                  string
	Interval                   time.Duration
	Retry                      int
	RetryInterval              time.Duration
	Connection                 Connection
	SyncDirection              SyncDirection
	ConflictResolutionStrategy ConflictResolutionStrategy
	BehaviorForNoMergeBase     NoMergeBaseBehavior
	IncludeCommits             bool
}

// DefaultRemoteOptions fills in spec.md §6's documented defaults.
func DefaultRemoteOptions() RemoteOptions {
	return RemoteOptions{
		Interval:                   10 * time.Second,
		Retry:                      2,
		RetryInterval:              3 * time.Second,
		SyncDirection:              SyncPull,
		ConflictResolutionStrategy: StrategyTheirs,
		BehaviorForNoMergeBase:     NoMergeBaseNop,
	}
}

// MinInterval is the smallest accepted RemoteOptions.Interval when Live is
// set; a live Synchronizer with a smaller interval rejects with
// IntervalTooSmall at construction time (spec.md §4.7 step 6).
const MinInterval = 1 * time.Second

// LoadSchema reads "<localDir>/.gitddb/schema.yaml" if present. Returns a
// zero-value Schema (not an error) when the file is absent, matching the
// teacher's LoadLocalConfig discipline of never failing Open() over an
// optional config file.
func LoadSchema(localDir string) (Schema, error) {
	path := filepath.Join(localDir, ".gitddb", "schema.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Schema{}, nil
		}
		return Schema{}, err
	}
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, err
	}
	return s, nil
}
