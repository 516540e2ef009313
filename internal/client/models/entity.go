// Package models defines the entities kept in the local replica, their sync
// metadata, and the sync-status state machine.
//
// Foreign-key fields hold local ids while an entity lives in the local store
// and server ids while it travels over the wire; see package translate.
package models

import "time"

// EntityType tags an entity kind. It partitions checkpoints, the id index and
// the local store.
type EntityType string

const (
	TypeUser         EntityType = "users"
	TypeGroup        EntityType = "groups"
	TypeGroupMember  EntityType = "group_members"
	TypeRequisition  EntityType = "requisitions"
	TypeBankAccount  EntityType = "bank_accounts"
	TypePayment      EntityType = "payments"
	TypePaymentSplit EntityType = "payment_splits"
	TypeTransaction  EntityType = "transactions"
	TypeArchive      EntityType = "user_group_archives"
)

// TimestampLayout is the layout used for locally produced updated_at values.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t in UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// SyncMeta is embedded by every entity.
//
// LocalID and SyncStatus never leave the device. ServerID is nil until the
// server created the record and is never changed afterwards.
type SyncMeta struct {
	LocalID    int64      `json:"-"`
	ServerID   *int64     `json:"id,omitempty"`
	UpdatedAt  string     `json:"updated_at"`
	SyncStatus SyncStatus `json:"-"`
}

func (m *SyncMeta) Meta() *SyncMeta { return m }

// HasServerID reports whether the record exists on the server.
func (m *SyncMeta) HasServerID() bool { return m.ServerID != nil }

// Touch records a local edit made at now.
func (m *SyncMeta) Touch(now time.Time) {
	m.UpdatedAt = Timestamp(now)
	m.SyncStatus, _ = m.SyncStatus.orPending().Transition(EventLocalEdit)
}

func (s SyncStatus) orPending() SyncStatus {
	if s == "" {
		return StatusPendingSync
	}
	return s
}

// Ref describes one foreign-key field. ID points into the entity so the
// translation layer can rewrite it. An Optional ref holding 0 is unset.
type Ref struct {
	Field    string
	Target   EntityType
	ID       *int64
	Optional bool
}

// Entity is implemented by pointers to every synchronized type.
type Entity interface {
	Meta() *SyncMeta
	Refs() []Ref
}

// ServerIDOf returns the server id of e, or 0 when it has none.
func ServerIDOf(e Entity) int64 {
	if id := e.Meta().ServerID; id != nil {
		return *id
	}
	return 0
}

// Int64Ptr returns a pointer to a copy of v.
func Int64Ptr(v int64) *int64 { return &v }
