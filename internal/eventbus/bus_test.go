package eventbus

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/gitdocdb/gitdocdb/internal/merge"
)

func TestEmitInvokesRegisteredHandlersInOrder(t *testing.T) {
	b := New(nil)
	var order []int
	b.On(EventStart, func(e Event) error { order = append(order, 1); return nil })
	b.On(EventStart, func(e Event) error { order = append(order, 2); return nil })

	b.Emit(Event{Type: EventStart})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected handlers invoked in registration order, got %v", order)
	}
}

func TestEmitOnlyCallsHandlersForMatchingType(t *testing.T) {
	b := New(nil)
	var calls int32
	b.On(EventPause, func(e Event) error { atomic.AddInt32(&calls, 1); return nil })

	b.Emit(Event{Type: EventResume})
	b.Emit(Event{Type: EventStart})

	if calls != 0 {
		t.Fatalf("expected no calls for non-matching event types, got %d", calls)
	}

	b.Emit(Event{Type: EventPause})
	if calls != 1 {
		t.Fatalf("expected exactly one call for the matching type, got %d", calls)
	}
}

func TestEmitSwallowsHandlerErrorsAndContinues(t *testing.T) {
	b := New(nil)
	var secondCalled bool
	b.On(EventComplete, func(e Event) error { return errors.New("boom") })
	b.On(EventComplete, func(e Event) error { secondCalled = true; return nil })

	b.Emit(Event{Type: EventComplete})

	if !secondCalled {
		t.Fatalf("expected the second handler to still run after the first returned an error")
	}
}

func TestEmitRecoversHandlerPanic(t *testing.T) {
	b := New(nil)
	var secondCalled bool
	b.On(EventError, func(e Event) error { panic("unexpected") })
	b.On(EventError, func(e Event) error { secondCalled = true; return nil })

	b.Emit(Event{Type: EventError, Err: errors.New("sync failed")})

	if !secondCalled {
		t.Fatalf("expected a panicking handler to not prevent later handlers from running")
	}
}

func TestOffRemovesASpecificSubscription(t *testing.T) {
	b := New(nil)
	var calls int
	sub := b.On(EventChange, func(e Event) error { calls++; return nil })

	if !b.Off(sub) {
		t.Fatalf("expected Off to report the subscription was found")
	}
	b.Emit(Event{Type: EventChange})

	if calls != 0 {
		t.Fatalf("expected no calls after Off, got %d", calls)
	}
	if b.Off(sub) {
		t.Fatalf("expected a second Off of the same subscription to report false")
	}
}

func TestChangeEventCarriesFullSyncResult(t *testing.T) {
	b := New(nil)
	var got SyncResult
	b.On(EventChange, func(e Event) error { got = e.Result; return nil })

	want := SyncResult{Action: ActionMergeAndPush}
	want.Changes.Local = []merge.ChangedFile{{Path: "a.json", Operation: merge.OpInsert}}
	b.Emit(Event{Type: EventChange, Result: want})

	if got.Action != ActionMergeAndPush || len(got.Changes.Local) != 1 {
		t.Fatalf("expected the full SyncResult to reach the handler, got %+v", got)
	}
}

func TestLocalAndRemoteChangeEventsCarryOnlyChangedFiles(t *testing.T) {
	b := New(nil)
	var localFiles, remoteFiles []merge.ChangedFile
	b.On(EventLocalChange, func(e Event) error { localFiles = e.Changes; return nil })
	b.On(EventRemoteChange, func(e Event) error { remoteFiles = e.Changes; return nil })

	b.Emit(Event{Type: EventLocalChange, Changes: []merge.ChangedFile{{Path: "local.json", Operation: merge.OpUpdate}}})
	b.Emit(Event{Type: EventRemoteChange, Changes: []merge.ChangedFile{{Path: "remote.json", Operation: merge.OpDelete}}})

	if len(localFiles) != 1 || localFiles[0].Path != "local.json" {
		t.Fatalf("expected localChange to carry only local files, got %+v", localFiles)
	}
	if len(remoteFiles) != 1 || remoteFiles[0].Path != "remote.json" {
		t.Fatalf("expected remoteChange to carry only remote files, got %+v", remoteFiles)
	}
}

func TestLenReportsSubscriberCount(t *testing.T) {
	b := New(nil)
	if b.Len(EventStart) != 0 {
		t.Fatalf("expected zero subscribers initially")
	}
	b.On(EventStart, func(e Event) error { return nil })
	b.On(EventStart, func(e Event) error { return nil })
	if b.Len(EventStart) != 2 {
		t.Fatalf("expected two subscribers, got %d", b.Len(EventStart))
	}
}
