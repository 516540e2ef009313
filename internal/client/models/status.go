package models

import (
	"errors"
	"fmt"
)

// SyncStatus is the per-record lifecycle tag tracking whether local state
// matches the server.
type SyncStatus string

const (
	StatusPendingSync SyncStatus = "PENDING_SYNC"
	StatusSynced      SyncStatus = "SYNCED"
	StatusSyncFailed  SyncStatus = "SYNC_FAILED"
)

// SyncEvent is something that happened to a record and may move its status.
type SyncEvent int

const (
	// EventLocalEdit is a local create or edit.
	EventLocalEdit SyncEvent = iota
	// EventPushSucceeded is a create or update the server accepted.
	EventPushSucceeded
	// EventPushFailed is a create or update that failed.
	EventPushFailed
	// EventServerApplied is a server version written over the local row.
	EventServerApplied
	// EventLocalWinsConflict is a pulled version that lost to the local one.
	EventLocalWinsConflict
)

var ErrInvalidTransition = errors.New("invalid sync status transition")

func (e SyncEvent) String() string {
	switch e {
	case EventLocalEdit:
		return "local_edit"
	case EventPushSucceeded:
		return "push_succeeded"
	case EventPushFailed:
		return "push_failed"
	case EventServerApplied:
		return "server_applied"
	case EventLocalWinsConflict:
		return "local_wins_conflict"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Valid reports whether s is one of the three known states.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusPendingSync, StatusSynced, StatusSyncFailed:
		return true
	}
	return false
}

// IsUnsynced reports whether a record is due for a push. Failed rows are
// retried exactly like pending ones.
func (s SyncStatus) IsUnsynced() bool {
	return s == StatusPendingSync || s == StatusSyncFailed
}

// Transition returns the status that follows e.
//
// A push outcome is only accepted for a record that was due for a push, so
// PushSucceeded and PushFailed from SYNCED are rejected.
func (s SyncStatus) Transition(e SyncEvent) (SyncStatus, error) {
	if !s.Valid() {
		return s, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, string(s))
	}

	switch e {
	case EventLocalEdit, EventLocalWinsConflict:
		return StatusPendingSync, nil
	case EventServerApplied:
		return StatusSynced, nil
	case EventPushSucceeded, EventPushFailed:
		if !s.IsUnsynced() {
			return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, e, s)
		}
		if e == EventPushSucceeded {
			return StatusSynced, nil
		}
		return StatusSyncFailed, nil
	default:
		return s, fmt.Errorf("%w: unknown event %s", ErrInvalidTransition, e)
	}
}
