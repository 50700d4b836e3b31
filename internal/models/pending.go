package models

import "time"

// ReviewStatus is shared by pending submissions and uploaded images
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
)

// Valid reports whether s is a known status
func (s ReviewStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// PendingMember is a public submission awaiting admin review
type PendingMember struct {
	ID               int64        `json:"id"`
	Proposed         MemberInput  `json:"proposed"`
	SubmitterName    string       `json:"submitterName"`
	SubmitterPhone   string       `json:"submitterPhone"`
	SubmitterEmail   string       `json:"submitterEmail"`
	BranchLinkToken  *string      `json:"branchLinkToken"`
	Status           ReviewStatus `json:"status"`
	ReviewNote       string       `json:"reviewNote"`
	ReviewedBy       string       `json:"reviewedBy"`
	ReviewedAt       *time.Time   `json:"reviewedAt"`
	ApprovedMemberID *string      `json:"approvedMemberId"`
	CreatedAt        time.Time    `json:"createdAt"`
}
