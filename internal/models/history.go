package models

import "time"

// HistoryAction identifies the kind of write a history entry records
type HistoryAction string

const (
	ActionCreate  HistoryAction = "create"
	ActionUpdate  HistoryAction = "update"
	ActionDelete  HistoryAction = "delete"
	ActionRestore HistoryAction = "restore"
	ActionRevert  HistoryAction = "revert"
)

// HistoryEntry is one audited write. MemberID is nil for tree-wide
// actions such as a snapshot restore.
type HistoryEntry struct {
	ID        int64         `json:"id"`
	MemberID  *string       `json:"memberId"`
	Action    HistoryAction `json:"action"`
	Changes   []FieldChange `json:"changes"`
	Actor     string        `json:"actor"`
	CreatedAt time.Time     `json:"createdAt"`
}

// HistoryFilter narrows history listings
type HistoryFilter struct {
	MemberID string
	Action   HistoryAction
	Actor    string
	Limit    int
	Offset   int
}
