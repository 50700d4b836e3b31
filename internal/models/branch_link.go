package models

import "time"

// BranchLink is a shareable invitation that lets relatives submit members
// into one branch of the tree
type BranchLink struct {
	ID        int64      `json:"id"`
	Token     string     `json:"token"`
	Branch    string     `json:"branch"`
	ParentID  *string    `json:"parentId"`
	Label     string     `json:"label"`
	MaxUses   int        `json:"maxUses"`
	UseCount  int        `json:"useCount"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Active    bool       `json:"active"`
	CreatedBy string     `json:"createdBy"`
	CreatedAt time.Time  `json:"createdAt"`
}

// IsUsable reports whether the link can accept another submission.
// MaxUses of 0 means unlimited.
func (l *BranchLink) IsUsable(now time.Time) bool {
	if !l.Active {
		return false
	}
	if l.ExpiresAt != nil && !now.Before(*l.ExpiresAt) {
		return false
	}
	if l.MaxUses > 0 && l.UseCount >= l.MaxUses {
		return false
	}
	return true
}

// BranchLinkInfo is what anonymous visitors learn about a link
type BranchLinkInfo struct {
	Branch     string     `json:"branch"`
	Label      string     `json:"label"`
	ParentID   *string    `json:"parentId"`
	ParentName string     `json:"parentName,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt"`
}
