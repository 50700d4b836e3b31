package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func TestFormatAndParseMemberID(t *testing.T) {
	tests := []struct {
		seq  int64
		want string
	}{
		{1, "M00001"},
		{42, "M00042"},
		{99999, "M99999"},
		{123456, "M123456"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := FormatMemberID(tt.seq)
			if got != tt.want {
				t.Fatalf("FormatMemberID(%d) = %s, want %s", tt.seq, got, tt.want)
			}
			seq, ok := ParseMemberSeq(got)
			if !ok || seq != tt.seq {
				t.Errorf("ParseMemberSeq(%s) = %d, %v", got, seq, ok)
			}
		})
	}

	for _, bad := range []string{"", "X00001", "M", "Mabc", "M00000", "M1", "M000001", "M+0001", "M-0001"} {
		if _, ok := ParseMemberSeq(bad); ok {
			t.Errorf("ParseMemberSeq(%q) should fail", bad)
		}
	}
}

func TestMemberFullName(t *testing.T) {
	m := Member{FirstName: "Ali", FatherName: "Hassan", GrandfatherName: " ", FamilyName: "Saleh"}
	if got := m.FullName(); got != "Ali Hassan Saleh" {
		t.Errorf("FullName() = %q", got)
	}
}

func TestMemberValidation(t *testing.T) {
	valid := func() Member {
		return Member{FirstName: "Ali", Gender: GenderMale, Generation: 1, LifeStatus: LifeStatusLiving}
	}

	tests := []struct {
		name    string
		mutate  func(m *Member)
		wantErr bool
	}{
		{name: "valid member", mutate: func(m *Member) {}, wantErr: false},
		{name: "missing first name", mutate: func(m *Member) { m.FirstName = "  " }, wantErr: true},
		{name: "unknown gender", mutate: func(m *Member) { m.Gender = "other" }, wantErr: true},
		{name: "generation zero", mutate: func(m *Member) { m.Generation = 0 }, wantErr: true},
		{name: "unknown life status", mutate: func(m *Member) { m.LifeStatus = "" }, wantErr: true},
		{name: "death year while living", mutate: func(m *Member) { m.DeathYear = intPtr(1990) }, wantErr: true},
		{
			name: "deceased with years",
			mutate: func(m *Member) {
				m.LifeStatus = LifeStatusDeceased
				m.BirthYear = intPtr(1920)
				m.DeathYear = intPtr(1990)
			},
			wantErr: false,
		},
		{
			name: "death before birth",
			mutate: func(m *Member) {
				m.LifeStatus = LifeStatusDeceased
				m.BirthYear = intPtr(1990)
				m.DeathYear = intPtr(1920)
			},
			wantErr: true,
		},
		{name: "negative birth year", mutate: func(m *Member) { m.BirthYear = intPtr(-5) }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := valid()
			tt.mutate(&m)
			err := m.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemberInputApply(t *testing.T) {
	in := MemberInput{
		FirstName:  "  Sara ",
		Gender:     "Female",
		Generation: 3,
		ParentID:   strPtr("  "),
	}
	var m Member
	in.Apply(&m)

	if m.FirstName != "Sara" {
		t.Errorf("FirstName = %q", m.FirstName)
	}
	if m.Gender != GenderFemale {
		t.Errorf("Gender = %q", m.Gender)
	}
	if m.ParentID != nil {
		t.Errorf("blank ParentID should become nil, got %q", *m.ParentID)
	}
	if m.LifeStatus != LifeStatusLiving {
		t.Errorf("LifeStatus should default to living, got %q", m.LifeStatus)
	}
}

func TestSetFieldFromDecodedJSON(t *testing.T) {
	var changes []FieldChange
	raw := `[{"field":"generation","old":2,"new":3},{"field":"birthYear","old":null,"new":1950},{"field":"parentId","old":"M00001","new":null},{"field":"city","old":"Riyadh","new":"Jeddah"}]`
	if err := json.Unmarshal([]byte(raw), &changes); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	m := Member{Generation: 3, BirthYear: intPtr(1950), City: "Jeddah"}
	for _, c := range changes {
		if err := m.SetField(c.Field, c.Old); err != nil {
			t.Fatalf("SetField(%s): %v", c.Field, err)
		}
	}

	want := Member{Generation: 2, ParentID: strPtr("M00001"), City: "Riyadh"}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("member mismatch (-want +got):\n%s", diff)
	}
}

func TestSetFieldRejectsBadValues(t *testing.T) {
	var m Member
	tests := []struct {
		field string
		value any
	}{
		{"generation", "two"},
		{"generation", nil},
		{"birthYear", 12.5},
		{"firstName", 7},
		{"unknown", "x"},
	}
	for _, tt := range tests {
		if err := m.SetField(tt.field, tt.value); err == nil {
			t.Errorf("SetField(%s, %v) should fail", tt.field, tt.value)
		}
	}
}

func TestFieldValueCoversEditableFields(t *testing.T) {
	m := Member{}
	for _, f := range EditableFields {
		if _, ok := m.FieldValue(f); !ok {
			t.Errorf("FieldValue(%s) not handled", f)
		}
		v, _ := m.FieldValue(f)
		if err := m.SetField(f, v); err != nil {
			t.Errorf("SetField(%s) round trip failed: %v", f, err)
		}
	}
}

func TestBranchLinkIsUsable(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		link BranchLink
		want bool
	}{
		{name: "active unlimited", link: BranchLink{Active: true}, want: true},
		{name: "inactive", link: BranchLink{Active: false}, want: false},
		{name: "expired", link: BranchLink{Active: true, ExpiresAt: &past}, want: false},
		{name: "not yet expired", link: BranchLink{Active: true, ExpiresAt: &future}, want: true},
		{name: "exhausted", link: BranchLink{Active: true, MaxUses: 2, UseCount: 2}, want: false},
		{name: "uses remaining", link: BranchLink{Active: true, MaxUses: 2, UseCount: 1}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.link.IsUsable(now); got != tt.want {
				t.Errorf("IsUsable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRoleAtLeast(t *testing.T) {
	tests := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleEditor, RoleEditor, true},
		{RoleEditor, RoleAdmin, false},
		{RoleAdmin, RoleEditor, true},
		{RoleAdmin, RoleSuperAdmin, false},
		{RoleSuperAdmin, RoleAdmin, true},
		{Role("guest"), RoleEditor, false},
	}
	for _, tt := range tests {
		if got := tt.role.AtLeast(tt.min); got != tt.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestSnapshotMembers(t *testing.T) {
	s := Snapshot{Payload: json.RawMessage(`[{"id":"M00001","firstName":"Ali","version":3}]`)}
	members, err := s.Members()
	if err != nil {
		t.Fatalf("Members() error: %v", err)
	}
	if len(members) != 1 || members[0].ID != "M00001" || members[0].Version != 3 {
		t.Errorf("unexpected members: %+v", members)
	}

	empty := Snapshot{}
	members, err = empty.Members()
	if err != nil || len(members) != 0 {
		t.Errorf("empty payload: %v %v", members, err)
	}
}

func TestImageIsPublic(t *testing.T) {
	for _, st := range []ReviewStatus{StatusPending, StatusRejected} {
		img := Image{Status: st}
		if img.IsPublic() {
			t.Errorf("%s image should not be public", st)
		}
	}
	img := Image{Status: StatusApproved}
	if !img.IsPublic() {
		t.Error("approved image should be public")
	}
}
