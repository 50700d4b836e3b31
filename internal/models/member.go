package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"familytree/internal/apperr"
)

// Gender of a family member
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// LifeStatus of a family member
type LifeStatus string

const (
	LifeStatusLiving   LifeStatus = "living"
	LifeStatusDeceased LifeStatus = "deceased"
)

// MemberIDPrefix is prepended to the zero-padded sequence number
const MemberIDPrefix = "M"

// FormatMemberID renders a sequence number as a member ID, e.g. 42 -> M00042
func FormatMemberID(seq int64) string {
	return fmt.Sprintf("%s%05d", MemberIDPrefix, seq)
}

// ParseMemberSeq extracts the sequence number from a member ID. Only the
// canonical form produced by FormatMemberID is accepted.
func ParseMemberSeq(id string) (int64, bool) {
	if !strings.HasPrefix(id, MemberIDPrefix) {
		return 0, false
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(id, MemberIDPrefix), 10, 64)
	if err != nil || seq <= 0 || FormatMemberID(seq) != id {
		return 0, false
	}
	return seq, true
}

// Member is a person in the family tree
type Member struct {
	ID              string     `json:"id"`
	FirstName       string     `json:"firstName"`
	FatherName      string     `json:"fatherName"`
	GrandfatherName string     `json:"grandfatherName"`
	FamilyName      string     `json:"familyName"`
	Gender          Gender     `json:"gender"`
	Generation      int        `json:"generation"`
	Branch          string     `json:"branch"`
	ParentID        *string    `json:"parentId"`
	LifeStatus      LifeStatus `json:"lifeStatus"`
	BirthYear       *int       `json:"birthYear"`
	DeathYear       *int       `json:"deathYear"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email"`
	City            string     `json:"city"`
	PhotoURL        string     `json:"photoUrl"`
	Notes           string     `json:"notes"`
	CreatedBy       string     `json:"createdBy"`
	UpdatedBy       string     `json:"updatedBy"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	Version         int        `json:"version"`
}

// FullName joins the lineage fields that are present
func (m *Member) FullName() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{m.FirstName, m.FatherName, m.GrandfatherName, m.FamilyName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Validate checks the member's own fields. Relations to other members
// (parent existence, generation consistency) are checked by the service.
func (m *Member) Validate() error {
	if strings.TrimSpace(m.FirstName) == "" {
		return apperr.New(apperr.CodeInvalid, "First name is required", "الاسم الأول مطلوب")
	}
	if m.Gender != GenderMale && m.Gender != GenderFemale {
		return apperr.New(apperr.CodeInvalid, "Gender must be male or female", "الجنس يجب أن يكون ذكر أو أنثى")
	}
	if m.Generation < 1 {
		return apperr.New(apperr.CodeInvalid, "Generation must be at least 1", "الجيل يجب أن يكون 1 على الأقل")
	}
	if m.LifeStatus != LifeStatusLiving && m.LifeStatus != LifeStatusDeceased {
		return apperr.New(apperr.CodeInvalid, "Life status must be living or deceased", "الحالة يجب أن تكون حي أو متوفى")
	}
	if m.BirthYear != nil && *m.BirthYear <= 0 {
		return apperr.New(apperr.CodeInvalid, "Birth year is invalid", "سنة الميلاد غير صحيحة")
	}
	if m.DeathYear != nil {
		if m.LifeStatus != LifeStatusDeceased {
			return apperr.New(apperr.CodeInvalid, "Death year is only allowed for deceased members", "سنة الوفاة مسموحة فقط للمتوفين")
		}
		if *m.DeathYear <= 0 {
			return apperr.New(apperr.CodeInvalid, "Death year is invalid", "سنة الوفاة غير صحيحة")
		}
		if m.BirthYear != nil && *m.DeathYear < *m.BirthYear {
			return apperr.New(apperr.CodeInvalid, "Death year cannot be before birth year", "سنة الوفاة لا يمكن أن تسبق سنة الميلاد")
		}
	}
	return nil
}

// MemberInput holds the fields a client may set on a member
type MemberInput struct {
	FirstName       string     `json:"firstName"`
	FatherName      string     `json:"fatherName"`
	GrandfatherName string     `json:"grandfatherName"`
	FamilyName      string     `json:"familyName"`
	Gender          Gender     `json:"gender"`
	Generation      int        `json:"generation"`
	Branch          string     `json:"branch"`
	ParentID        *string    `json:"parentId"`
	LifeStatus      LifeStatus `json:"lifeStatus"`
	BirthYear       *int       `json:"birthYear"`
	DeathYear       *int       `json:"deathYear"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email"`
	City            string     `json:"city"`
	PhotoURL        string     `json:"photoUrl"`
	Notes           string     `json:"notes"`
}

// Apply copies the input onto m, trimming text fields
func (in MemberInput) Apply(m *Member) {
	m.FirstName = strings.TrimSpace(in.FirstName)
	m.FatherName = strings.TrimSpace(in.FatherName)
	m.GrandfatherName = strings.TrimSpace(in.GrandfatherName)
	m.FamilyName = strings.TrimSpace(in.FamilyName)
	m.Gender = Gender(strings.ToLower(strings.TrimSpace(string(in.Gender))))
	m.Generation = in.Generation
	m.Branch = strings.TrimSpace(in.Branch)
	m.ParentID = normalizeID(in.ParentID)
	m.LifeStatus = LifeStatus(strings.ToLower(strings.TrimSpace(string(in.LifeStatus))))
	if m.LifeStatus == "" {
		m.LifeStatus = LifeStatusLiving
	}
	m.BirthYear = in.BirthYear
	m.DeathYear = in.DeathYear
	m.Phone = strings.TrimSpace(in.Phone)
	m.Email = strings.TrimSpace(in.Email)
	m.City = strings.TrimSpace(in.City)
	m.PhotoURL = strings.TrimSpace(in.PhotoURL)
	m.Notes = strings.TrimSpace(in.Notes)
}

// Input returns the editable fields of m
func (m *Member) Input() MemberInput {
	return MemberInput{
		FirstName:       m.FirstName,
		FatherName:      m.FatherName,
		GrandfatherName: m.GrandfatherName,
		FamilyName:      m.FamilyName,
		Gender:          m.Gender,
		Generation:      m.Generation,
		Branch:          m.Branch,
		ParentID:        m.ParentID,
		LifeStatus:      m.LifeStatus,
		BirthYear:       m.BirthYear,
		DeathYear:       m.DeathYear,
		Phone:           m.Phone,
		Email:           m.Email,
		City:            m.City,
		PhotoURL:        m.PhotoURL,
		Notes:           m.Notes,
	}
}

func normalizeID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// FieldChange records one field's value before and after a write
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// EditableFields lists member fields tracked in history, in display order
var EditableFields = []string{
	"firstName", "fatherName", "grandfatherName", "familyName",
	"gender", "generation", "branch", "parentId", "lifeStatus",
	"birthYear", "deathYear", "phone", "email", "city", "photoUrl", "notes",
}

// FieldValue returns the value of an editable field, normalized to
// string, int or nil
func (m *Member) FieldValue(field string) (any, bool) {
	switch field {
	case "firstName":
		return m.FirstName, true
	case "fatherName":
		return m.FatherName, true
	case "grandfatherName":
		return m.GrandfatherName, true
	case "familyName":
		return m.FamilyName, true
	case "gender":
		return string(m.Gender), true
	case "generation":
		return m.Generation, true
	case "branch":
		return m.Branch, true
	case "parentId":
		if m.ParentID == nil {
			return nil, true
		}
		return *m.ParentID, true
	case "lifeStatus":
		return string(m.LifeStatus), true
	case "birthYear":
		if m.BirthYear == nil {
			return nil, true
		}
		return *m.BirthYear, true
	case "deathYear":
		if m.DeathYear == nil {
			return nil, true
		}
		return *m.DeathYear, true
	case "phone":
		return m.Phone, true
	case "email":
		return m.Email, true
	case "city":
		return m.City, true
	case "photoUrl":
		return m.PhotoURL, true
	case "notes":
		return m.Notes, true
	}
	return nil, false
}

// SetField assigns an editable field from a loosely typed value, as found
// in decoded history JSON
func (m *Member) SetField(field string, value any) error {
	switch field {
	case "firstName", "fatherName", "grandfatherName", "familyName", "gender",
		"branch", "lifeStatus", "phone", "email", "city", "photoUrl", "notes":
		s, ok := value.(string)
		if !ok && value != nil {
			return fmt.Errorf("field %s: expected string, got %T", field, value)
		}
		switch field {
		case "firstName":
			m.FirstName = s
		case "fatherName":
			m.FatherName = s
		case "grandfatherName":
			m.GrandfatherName = s
		case "familyName":
			m.FamilyName = s
		case "gender":
			m.Gender = Gender(s)
		case "branch":
			m.Branch = s
		case "lifeStatus":
			m.LifeStatus = LifeStatus(s)
		case "phone":
			m.Phone = s
		case "email":
			m.Email = s
		case "city":
			m.City = s
		case "photoUrl":
			m.PhotoURL = s
		case "notes":
			m.Notes = s
		}
		return nil
	case "parentId":
		if value == nil {
			m.ParentID = nil
			return nil
		}
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("field %s: expected string, got %T", field, value)
		}
		m.ParentID = normalizeID(&s)
		return nil
	case "generation":
		n, err := toInt(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
		if n == nil {
			return fmt.Errorf("field %s: value required", field)
		}
		m.Generation = *n
		return nil
	case "birthYear", "deathYear":
		n, err := toInt(value)
		if err != nil {
			return fmt.Errorf("field %s: %w", field, err)
		}
		if field == "birthYear" {
			m.BirthYear = n
		} else {
			m.DeathYear = n
		}
		return nil
	}
	return fmt.Errorf("unknown field %q", field)
}

func toInt(value any) (*int, error) {
	var n int
	switch v := value.(type) {
	case nil:
		return nil, nil
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("expected integer, got %v", v)
		}
		n = int(v)
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return nil, err
		}
		n = int(i)
	default:
		return nil, fmt.Errorf("expected number, got %T", value)
	}
	return &n, nil
}

// MemberFilter narrows member listings
type MemberFilter struct {
	Branch     string
	Generation int
	LifeStatus LifeStatus
	ParentID   string
	Search     string
	Limit      int
	Offset     int
}

// MemberStats summarizes the tree
type MemberStats struct {
	Total        int            `json:"total"`
	Living       int            `json:"living"`
	Deceased     int            `json:"deceased"`
	ByGender     map[string]int `json:"byGender"`
	ByGeneration map[int]int    `json:"byGeneration"`
	ByBranch     map[string]int `json:"byBranch"`
}

// TreeNode is a member with its descendants
type TreeNode struct {
	Member   *Member     `json:"member"`
	Children []*TreeNode `json:"children"`
}
