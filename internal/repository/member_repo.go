package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"familytree/internal/database"
	"familytree/internal/models"
)

// MaxIDAttempts bounds the create retry loop when two writers race for the
// same member sequence number
const MaxIDAttempts = 5

// maxChainLength bounds parent walks inside a transaction
const maxChainLength = 1000

// MemberRepository handles database operations for members
type MemberRepository struct {
	db *database.DB
	// nextSeq picks the sequence number for a new member
	nextSeq func(q database.DBTX) (int64, error)
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *database.DB) *MemberRepository {
	return &MemberRepository{db: db, nextSeq: maxSeqPlusOne}
}

func maxSeqPlusOne(q database.DBTX) (int64, error) {
	var next int64
	err := q.QueryRow("SELECT COALESCE(MAX(seq), 0) + 1 FROM members").Scan(&next)
	return next, err
}

const memberColumns = `id, first_name, father_name, grandfather_name, family_name, gender,
	generation, branch, parent_id, life_status, birth_year, death_year, phone, email, city,
	photo_url, notes, created_by, updated_by, created_at, updated_at, version`

func scanMember(s rowScanner) (*models.Member, error) {
	var (
		m          models.Member
		gender     string
		lifeStatus string
		parentID   sql.NullString
		birthYear  sql.NullInt64
		deathYear  sql.NullInt64
	)
	err := s.Scan(
		&m.ID,
		&m.FirstName,
		&m.FatherName,
		&m.GrandfatherName,
		&m.FamilyName,
		&gender,
		&m.Generation,
		&m.Branch,
		&parentID,
		&lifeStatus,
		&birthYear,
		&deathYear,
		&m.Phone,
		&m.Email,
		&m.City,
		&m.PhotoURL,
		&m.Notes,
		&m.CreatedBy,
		&m.UpdatedBy,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.Version,
	)
	if err != nil {
		return nil, err
	}
	m.Gender = models.Gender(gender)
	m.LifeStatus = models.LifeStatus(lifeStatus)
	m.ParentID = stringPtr(parentID)
	m.BirthYear = intPtr(birthYear)
	m.DeathYear = intPtr(deathYear)
	return &m, nil
}

func queryMembers(q database.DBTX, query string, args ...interface{}) ([]models.Member, error) {
	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func getMember(q database.DBTX, id string) (*models.Member, error) {
	m, err := scanMember(q.QueryRow("SELECT "+memberColumns+" FROM members WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

func insertMember(q database.DBTX, seq int64, m *models.Member) error {
	query := `
		INSERT INTO members (id, seq, first_name, father_name, grandfather_name, family_name, gender,
			generation, branch, parent_id, life_status, birth_year, death_year, phone, email, city,
			photo_url, notes, created_by, updated_by, created_at, updated_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.Exec(query,
		m.ID, seq, m.FirstName, m.FatherName, m.GrandfatherName, m.FamilyName, string(m.Gender),
		m.Generation, m.Branch, nullString(m.ParentID), string(m.LifeStatus), nullInt(m.BirthYear), nullInt(m.DeathYear),
		m.Phone, m.Email, m.City, m.PhotoURL, m.Notes, m.CreatedBy, m.UpdatedBy, m.CreatedAt, m.UpdatedAt, m.Version,
	)
	return err
}

// Create allocates the next member ID and inserts m with version 1, recording
// a create history entry in the same transaction. A collision on the ID is
// retried up to MaxIDAttempts times. Hooks run after the insert, inside the
// transaction, on every attempt.
func (r *MemberRepository) Create(m *models.Member, actor string, hooks ...TxHook) error {
	for attempt := 1; attempt <= MaxIDAttempts; attempt++ {
		err := r.db.WithTx(func(tx *database.Tx) error {
			seq, err := r.nextSeq(tx)
			if err != nil {
				return fmt.Errorf("failed to allocate member id: %w", err)
			}

			ts := now()
			m.ID = models.FormatMemberID(seq)
			m.Version = 1
			m.CreatedBy = actor
			m.UpdatedBy = actor
			m.CreatedAt = ts
			m.UpdatedAt = ts

			if err := insertMember(tx, seq, m); err != nil {
				return fmt.Errorf("failed to create member: %w", err)
			}

			changes := make([]models.FieldChange, 0, len(models.EditableFields))
			for _, field := range models.EditableFields {
				v, _ := m.FieldValue(field)
				if v == nil || v == "" {
					continue
				}
				changes = append(changes, models.FieldChange{Field: field, New: v})
			}
			id := m.ID
			if err := insertHistory(tx, &models.HistoryEntry{MemberID: &id, Action: models.ActionCreate, Changes: changes, Actor: actor, CreatedAt: ts}); err != nil {
				return err
			}
			return runHooks(tx, hooks)
		})
		if err == nil {
			return nil
		}
		if !r.db.Dialect.IsUniqueViolation(err) {
			m.ID = ""
			return err
		}
		slog.Warn("Member id collision, retrying", "attempt", attempt, "id", m.ID)
	}
	m.ID = ""
	return ErrIDAllocationFailed
}

// Update writes m if its stored version still equals expectedVersion and
// bumps the version by one. Nothing is written on a mismatch.
func (r *MemberRepository) Update(m *models.Member, expectedVersion int, action models.HistoryAction, changes []models.FieldChange, actor string, hooks ...TxHook) error {
	return r.db.WithTx(func(tx *database.Tx) error {
		ts := now()
		query := `
			UPDATE members SET first_name = ?, father_name = ?, grandfather_name = ?, family_name = ?,
				gender = ?, generation = ?, branch = ?, parent_id = ?, life_status = ?, birth_year = ?,
				death_year = ?, phone = ?, email = ?, city = ?, photo_url = ?, notes = ?,
				updated_by = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?
		`
		result, err := tx.Exec(query,
			m.FirstName, m.FatherName, m.GrandfatherName, m.FamilyName,
			string(m.Gender), m.Generation, m.Branch, nullString(m.ParentID), string(m.LifeStatus), nullInt(m.BirthYear),
			nullInt(m.DeathYear), m.Phone, m.Email, m.City, m.PhotoURL, m.Notes,
			actor, ts, m.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to update member: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to update member: %w", err)
		}
		if affected == 0 {
			return missingOrConflict(tx, m.ID)
		}

		id := m.ID
		if err := insertHistory(tx, &models.HistoryEntry{MemberID: &id, Action: action, Changes: changes, Actor: actor, CreatedAt: ts}); err != nil {
			return err
		}
		if err := runHooks(tx, hooks); err != nil {
			return err
		}

		m.Version = expectedVersion + 1
		m.UpdatedBy = actor
		m.UpdatedAt = ts
		return nil
	})
}

// RequireNotAncestor returns a hook that fails with ErrAncestorCycle when id
// appears in the parent chain starting at parentID. The chain is read inside
// the write transaction, after the member row has been updated.
func RequireNotAncestor(id, parentID string) TxHook {
	return func(tx *database.Tx) error {
		cur := parentID
		for i := 0; i < maxChainLength; i++ {
			if cur == id {
				return ErrAncestorCycle
			}
			var parent sql.NullString
			err := tx.QueryRow("SELECT parent_id FROM members WHERE id = ?", cur).Scan(&parent)
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to check ancestry: %w", err)
			}
			if !parent.Valid {
				return nil
			}
			cur = parent.String
		}
		return ErrAncestorCycle
	}
}

// RequireChildless returns a hook that fails with ErrHasChildren when any
// member names id as its parent
func RequireChildless(id string) TxHook {
	return func(tx *database.Tx) error {
		var count int
		if err := tx.QueryRow("SELECT COUNT(*) FROM members WHERE parent_id = ?", id).Scan(&count); err != nil {
			return fmt.Errorf("failed to count children: %w", err)
		}
		if count > 0 {
			return ErrHasChildren
		}
		return nil
	}
}

func missingOrConflict(q database.DBTX, id string) error {
	var count int
	if err := q.QueryRow("SELECT COUNT(*) FROM members WHERE id = ?", id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check member: %w", err)
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

// Delete removes a member that has no children, recording its final field
// values in history
func (r *MemberRepository) Delete(id string, expectedVersion int, actor string) error {
	return r.db.WithTx(func(tx *database.Tx) error {
		m, err := getMember(tx, id)
		if err != nil {
			return err
		}
		if m.Version != expectedVersion {
			return ErrVersionConflict
		}

		var children int
		if err := tx.QueryRow("SELECT COUNT(*) FROM members WHERE parent_id = ?", id).Scan(&children); err != nil {
			return fmt.Errorf("failed to count children: %w", err)
		}
		if children > 0 {
			return ErrHasChildren
		}

		result, err := tx.Exec("DELETE FROM members WHERE id = ? AND version = ?", id, expectedVersion)
		if err != nil {
			return fmt.Errorf("failed to delete member: %w", err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return ErrVersionConflict
		}

		changes := make([]models.FieldChange, 0, len(models.EditableFields))
		for _, field := range models.EditableFields {
			v, _ := m.FieldValue(field)
			changes = append(changes, models.FieldChange{Field: field, Old: v})
		}
		return insertHistory(tx, &models.HistoryEntry{MemberID: &id, Action: models.ActionDelete, Changes: changes, Actor: actor})
	})
}

// Get retrieves a member by ID
func (r *MemberRepository) Get(id string) (*models.Member, error) {
	return getMember(r.db, id)
}

// Exists reports whether a member with id exists
func (r *MemberRepository) Exists(id string) (bool, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM members WHERE id = ?", id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check member: %w", err)
	}
	return count > 0, nil
}

// List returns members matching filter in ID order, with the total count
func (r *MemberRepository) List(filter models.MemberFilter) ([]models.Member, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Branch != "" {
		conds = append(conds, "branch = ?")
		args = append(args, filter.Branch)
	}
	if filter.Generation > 0 {
		conds = append(conds, "generation = ?")
		args = append(args, filter.Generation)
	}
	if filter.LifeStatus != "" {
		conds = append(conds, "life_status = ?")
		args = append(args, string(filter.LifeStatus))
	}
	if filter.ParentID != "" {
		conds = append(conds, "parent_id = ?")
		args = append(args, filter.ParentID)
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		pattern := "%" + strings.ToLower(s) + "%"
		conds = append(conds, `(LOWER(first_name) LIKE ? OR LOWER(father_name) LIKE ? OR LOWER(grandfather_name) LIKE ?
			OR LOWER(family_name) LIKE ? OR LOWER(id) LIKE ?)`)
		args = append(args, pattern, pattern, pattern, pattern, pattern)
	}
	where := whereClause(conds)

	var total int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM members"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count members: %w", err)
	}

	query := "SELECT " + memberColumns + " FROM members" + where + " ORDER BY seq LIMIT ? OFFSET ?"
	members, err := queryMembers(r.db, query, append(args, clampLimit(filter.Limit), filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}
	return members, total, nil
}

// Children returns the direct children of a member
func (r *MemberRepository) Children(id string) ([]models.Member, error) {
	members, err := queryMembers(r.db, "SELECT "+memberColumns+" FROM members WHERE parent_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get children: %w", err)
	}
	return members, nil
}

// All returns every member in ID order
func (r *MemberRepository) All() ([]models.Member, error) {
	members, err := queryMembers(r.db, "SELECT "+memberColumns+" FROM members ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return members, nil
}

// Count returns the number of members
func (r *MemberRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM members").Scan(&count)
	return count, err
}

// Stats aggregates member counts
func (r *MemberRepository) Stats() (*models.MemberStats, error) {
	stats := &models.MemberStats{
		ByGender:     map[string]int{},
		ByGeneration: map[int]int{},
		ByBranch:     map[string]int{},
	}

	rows, err := r.db.Query("SELECT gender, life_status, generation, branch, COUNT(*) FROM members GROUP BY gender, life_status, generation, branch")
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			gender, lifeStatus, branch string
			generation, count          int
		)
		if err := rows.Scan(&gender, &lifeStatus, &generation, &branch, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		switch models.LifeStatus(lifeStatus) {
		case models.LifeStatusLiving:
			stats.Living += count
		case models.LifeStatusDeceased:
			stats.Deceased += count
		}
		stats.ByGender[gender] += count
		stats.ByGeneration[generation] += count
		stats.ByBranch[branch] += count
	}
	return stats, rows.Err()
}

// ReplaceAll swaps the whole member table for members in one transaction.
// Each restored member gets a version above both its stored and its
// snapshot version so stale clients conflict. A single history entry
// describes the operation.
func (r *MemberRepository) ReplaceAll(members []models.Member, action models.HistoryAction, changes []models.FieldChange, actor string) error {
	seqs := make([]int64, len(members))
	for i, m := range members {
		seq, ok := models.ParseMemberSeq(m.ID)
		if !ok {
			return fmt.Errorf("invalid member id %q", m.ID)
		}
		seqs[i] = seq
	}

	return r.db.WithTx(func(tx *database.Tx) error {
		versions := map[string]int{}
		rows, err := tx.Query("SELECT id, version FROM members")
		if err != nil {
			return fmt.Errorf("failed to read versions: %w", err)
		}
		for rows.Next() {
			var (
				id      string
				version int
			)
			if err := rows.Scan(&id, &version); err != nil {
				rows.Close()
				return err
			}
			versions[id] = version
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := tx.Exec("UPDATE members SET parent_id = NULL"); err != nil {
			return fmt.Errorf("failed to detach members: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM members"); err != nil {
			return fmt.Errorf("failed to clear members: %w", err)
		}

		ts := now()
		for i := range members {
			m := members[i]
			m.ParentID = nil
			m.Version = max(m.Version, versions[m.ID]) + 1
			m.UpdatedBy = actor
			m.UpdatedAt = ts
			if m.CreatedAt.IsZero() {
				m.CreatedAt = ts
			}
			if err := insertMember(tx, seqs[i], &m); err != nil {
				return fmt.Errorf("failed to restore member %s: %w", m.ID, err)
			}
		}
		for _, m := range members {
			if m.ParentID == nil {
				continue
			}
			if _, err := tx.Exec("UPDATE members SET parent_id = ? WHERE id = ?", *m.ParentID, m.ID); err != nil {
				return fmt.Errorf("failed to link member %s: %w", m.ID, err)
			}
		}

		return insertHistory(tx, &models.HistoryEntry{Action: action, Changes: changes, Actor: actor, CreatedAt: ts})
	})
}
