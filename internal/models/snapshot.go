package models

import (
	"encoding/json"
	"time"
)

// Snapshot is a named copy of every member at a point in time
type Snapshot struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	MemberCount int             `json:"memberCount"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Members decodes the snapshot payload
func (s *Snapshot) Members() ([]Member, error) {
	var members []Member
	if len(s.Payload) == 0 {
		return members, nil
	}
	if err := json.Unmarshal(s.Payload, &members); err != nil {
		return nil, err
	}
	return members, nil
}
