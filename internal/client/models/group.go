package models

type Group struct {
	SyncMeta
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	CreatedBy int64  `json:"created_by"`
}

func (g *Group) Refs() []Ref {
	return []Ref{{Field: "created_by", Target: TypeUser, ID: &g.CreatedBy}}
}

type GroupMember struct {
	SyncMeta
	GroupID int64 `json:"group_id"`
	UserID  int64 `json:"user_id"`
}

func (m *GroupMember) Refs() []Ref {
	return []Ref{
		{Field: "group_id", Target: TypeGroup, ID: &m.GroupID},
		{Field: "user_id", Target: TypeUser, ID: &m.UserID},
	}
}

// ArchiveMarker records whether a user has archived a group. Restoring a
// group flips Archived back rather than deleting the marker.
type ArchiveMarker struct {
	SyncMeta
	UserID     int64  `json:"user_id"`
	GroupID    int64  `json:"group_id"`
	Archived   bool   `json:"archived"`
	ArchivedAt string `json:"archived_at,omitempty"`
}

func (a *ArchiveMarker) Refs() []Ref {
	return []Ref{
		{Field: "user_id", Target: TypeUser, ID: &a.UserID},
		{Field: "group_id", Target: TypeGroup, ID: &a.GroupID},
	}
}
