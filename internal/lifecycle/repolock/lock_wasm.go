//go:build js && wasm

package repolock

import (
	"errors"
	"os"
)

var errProcessLocked = errors.New("repolock: directory lock already held by another process")

// FlockExclusiveNonBlocking is a no-op in WASM (single-process environment).
func FlockExclusiveNonBlocking(f *os.File) error {
	return nil
}

// FlockUnlock is a no-op in WASM.
func FlockUnlock(f *os.File) error {
	return nil
}
