package repository

import (
	"database/sql"
	"fmt"

	"familytree/internal/database"
	"familytree/internal/models"
)

// AdminRepository handles database operations for admin accounts
type AdminRepository struct {
	db *database.DB
}

// NewAdminRepository creates a new admin repository
func NewAdminRepository(db *database.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

const adminColumns = `id, email, name, password_hash, role, active, created_at, updated_at`

func scanAdmin(s rowScanner) (*models.AdminUser, error) {
	var (
		u    models.AdminUser
		role string
	)
	err := s.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&role,
		&u.Active,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// Create inserts a new admin account
func (r *AdminRepository) Create(u *models.AdminUser) error {
	ts := now()
	query := `
		INSERT INTO admin_users (email, name, password_hash, role, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(query, u.Email, u.Name, u.PasswordHash, string(u.Role), u.Active, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	u.ID = id
	u.CreatedAt = ts
	u.UpdatedAt = ts
	return nil
}

// GetByEmail retrieves an admin by email address
func (r *AdminRepository) GetByEmail(email string) (*models.AdminUser, error) {
	u, err := scanAdmin(r.db.QueryRow("SELECT "+adminColumns+" FROM admin_users WHERE email = ?", email))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return u, nil
}

// GetByID retrieves an admin by ID
func (r *AdminRepository) GetByID(id int64) (*models.AdminUser, error) {
	u, err := scanAdmin(r.db.QueryRow("SELECT "+adminColumns+" FROM admin_users WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return u, nil
}

// List retrieves all admins
func (r *AdminRepository) List() ([]models.AdminUser, error) {
	rows, err := r.db.Query("SELECT " + adminColumns + " FROM admin_users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query admins: %w", err)
	}
	defer rows.Close()

	users := []models.AdminUser{}
	for rows.Next() {
		u, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Update changes an admin's profile, role and active state
func (r *AdminRepository) Update(u *models.AdminUser) error {
	ts := now()
	query := `
		UPDATE admin_users
		SET email = ?, name = ?, role = ?, active = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.Exec(query, u.Email, u.Name, string(u.Role), u.Active, ts, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update admin: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	u.UpdatedAt = ts
	return nil
}

// UpdatePassword replaces an admin's password hash
func (r *AdminRepository) UpdatePassword(id int64, passwordHash string) error {
	result, err := r.db.Exec("UPDATE admin_users SET password_hash = ?, updated_at = ? WHERE id = ?", passwordHash, now(), id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an admin account
func (r *AdminRepository) Delete(id int64) error {
	result, err := r.db.Exec("DELETE FROM admin_users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete admin: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of admin accounts
func (r *AdminRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM admin_users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}

// CountActiveByRole returns how many active admins hold role
func (r *AdminRepository) CountActiveByRole(role models.Role) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM admin_users WHERE role = ? AND active = " + r.db.Dialect.BoolValue(true)
	if err := r.db.QueryRow(query, string(role)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}
