package models

import "time"

// Image is a photo uploaded for a member
type Image struct {
	ID          int64        `json:"id"`
	MemberID    string       `json:"memberId"`
	StorageKey  string       `json:"-"`
	ContentType string       `json:"contentType"`
	SizeBytes   int64        `json:"sizeBytes"`
	Caption     string       `json:"caption"`
	Status      ReviewStatus `json:"status"`
	UploadedBy  string       `json:"uploadedBy"`
	ReviewedBy  string       `json:"reviewedBy"`
	ReviewedAt  *time.Time   `json:"reviewedAt"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// IsPublic reports whether anonymous callers may see the image
func (i *Image) IsPublic() bool {
	return i.Status == StatusApproved
}
