package service

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"familytree/internal/apperr"
	"familytree/internal/credentials"
	"familytree/internal/models"
	"familytree/internal/repository"
	"familytree/internal/security"
	"familytree/internal/validation"
)

// LoginResult is returned to a signed-in admin
type LoginResult struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	Admin     *models.AdminUser `json:"admin"`
}

// AdminInput creates or edits an admin account. Empty fields are left
// unchanged on update.
type AdminInput struct {
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
	Password string      `json:"password"`
	Active   *bool       `json:"active"`
}

// AuthService handles admin authentication and account management
type AuthService struct {
	adminRepo *repository.AdminRepository
	tokens    *security.TokenManager
}

// NewAuthService creates a new auth service
func NewAuthService(adminRepo *repository.AdminRepository, tokens *security.TokenManager) *AuthService {
	return &AuthService{adminRepo: adminRepo, tokens: tokens}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login authenticates an admin by password
func (s *AuthService) Login(email, password string) (*LoginResult, error) {
	admin, err := s.adminRepo.GetByEmail(normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidLogin
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	if !security.CheckPassword(password, admin.PasswordHash) {
		return nil, ErrInvalidLogin
	}
	return s.issue(admin)
}

// LoginWithEmail signs in an admin whose email was verified by an identity
// provider
func (s *AuthService) LoginWithEmail(email string) (*LoginResult, error) {
	admin, err := s.adminRepo.GetByEmail(normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.CodeForbidden, "No admin account exists for this email", "لا يوجد حساب مشرف لهذا البريد")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return s.issue(admin)
}

func (s *AuthService) issue(admin *models.AdminUser) (*LoginResult, error) {
	if !admin.Active {
		return nil, ErrAccountDisabled
	}
	token, err := s.tokens.Generate(admin)
	if err != nil {
		return nil, err
	}
	slog.Info("Admin signed in", "admin_id", admin.ID, "role", admin.Role)
	return &LoginResult{
		Token:     token,
		ExpiresAt: time.Now().Add(s.tokens.TTL()).UTC(),
		Admin:     admin,
	}, nil
}

// Authenticate validates a bearer token and returns the current state of
// its admin, so disabled accounts and role changes apply immediately
func (s *AuthService) Authenticate(token string) (*models.AdminUser, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeUnauthorized, "Invalid or expired session", "انتهت الجلسة، يرجى تسجيل الدخول مجدداً")
	}
	admin, err := s.adminRepo.GetByID(claims.AdminID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.New(apperr.CodeUnauthorized, "Account no longer exists", "الحساب لم يعد موجوداً")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	if !admin.Active {
		return nil, ErrAccountDisabled
	}
	return admin, nil
}

// Bootstrap creates the first super admin when no admin exists yet
func (s *AuthService) Bootstrap(email, password, name string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	count, err := s.adminRepo.Count()
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	if _, _, err := s.CreateAdmin(AdminInput{Email: email, Name: name, Role: models.RoleSuperAdmin, Password: password}); err != nil {
		return false, err
	}
	slog.Info("Bootstrap super admin created", "email", normalizeEmail(email))
	return true, nil
}

// ListAdmins returns every admin account
func (s *AuthService) ListAdmins() ([]models.AdminUser, error) {
	return s.adminRepo.List()
}

// CreateAdmin adds an account. When no password is given a temporary one is
// generated and returned.
func (s *AuthService) CreateAdmin(in AdminInput) (*models.AdminUser, string, error) {
	admin := &models.AdminUser{
		Email:  normalizeEmail(in.Email),
		Name:   strings.TrimSpace(in.Name),
		Role:   in.Role,
		Active: true,
	}
	if admin.Role == "" {
		admin.Role = models.RoleEditor
	}
	if in.Active != nil {
		admin.Active = *in.Active
	}
	if err := validateAdmin(admin); err != nil {
		return nil, "", err
	}

	password := in.Password
	tempPassword := ""
	if password == "" {
		generated, err := credentials.GenerateTempPassword()
		if err != nil {
			return nil, "", fmt.Errorf("failed to generate password: %w", err)
		}
		password = generated
		tempPassword = generated
	}
	if err := validation.ValidatePassword(password); err != nil {
		return nil, "", invalid(err)
	}

	if _, err := s.adminRepo.GetByEmail(admin.Email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}
	admin.PasswordHash = hash
	if err := s.adminRepo.Create(admin); err != nil {
		return nil, "", err
	}
	return admin, tempPassword, nil
}

// UpdateAdmin edits another account. actor may not disable or demote
// themselves, and the last active super admin is always kept.
func (s *AuthService) UpdateAdmin(id int64, in AdminInput, actor *models.AdminUser) (*models.AdminUser, error) {
	admin, err := s.adminRepo.GetByID(id)
	if err != nil {
		return nil, notFoundAs(err, ErrAdminNotFound)
	}
	wasActiveSuper := admin.Active && admin.Role == models.RoleSuperAdmin

	if in.Email != "" {
		admin.Email = normalizeEmail(in.Email)
	}
	if in.Name != "" {
		admin.Name = strings.TrimSpace(in.Name)
	}
	if in.Role != "" {
		admin.Role = in.Role
	}
	if in.Active != nil {
		admin.Active = *in.Active
	}
	if err := validateAdmin(admin); err != nil {
		return nil, err
	}
	if actor != nil && actor.ID == id && (!admin.Active || admin.Role != actor.Role) {
		return nil, apperr.New(apperr.CodeForbidden, "You cannot disable or change the role of your own account", "لا يمكنك تعطيل حسابك أو تغيير صلاحيتك")
	}
	if wasActiveSuper && (!admin.Active || admin.Role != models.RoleSuperAdmin) {
		if err := s.ensureAnotherSuperAdmin(); err != nil {
			return nil, err
		}
	}

	if in.Email != "" {
		if other, err := s.adminRepo.GetByEmail(admin.Email); err == nil && other.ID != id {
			return nil, ErrEmailTaken
		}
	}
	if err := s.adminRepo.Update(admin); err != nil {
		return nil, notFoundAs(err, ErrAdminNotFound)
	}

	if in.Password != "" {
		if err := s.SetPassword(id, in.Password); err != nil {
			return nil, err
		}
	}
	return admin, nil
}

// SetPassword replaces an account's password
func (s *AuthService) SetPassword(id int64, password string) error {
	if err := validation.ValidatePassword(password); err != nil {
		return invalid(err)
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return notFoundAs(s.adminRepo.UpdatePassword(id, hash), ErrAdminNotFound)
}

// ChangePassword lets an admin replace their own password
func (s *AuthService) ChangePassword(id int64, current, next string) error {
	admin, err := s.adminRepo.GetByID(id)
	if err != nil {
		return notFoundAs(err, ErrAdminNotFound)
	}
	if !security.CheckPassword(current, admin.PasswordHash) {
		return ErrInvalidLogin
	}
	return s.SetPassword(id, next)
}

// DeleteAdmin removes an account other than actor's own
func (s *AuthService) DeleteAdmin(id int64, actor *models.AdminUser) error {
	if actor != nil && actor.ID == id {
		return apperr.New(apperr.CodeForbidden, "You cannot delete your own account", "لا يمكنك حذف حسابك")
	}
	admin, err := s.adminRepo.GetByID(id)
	if err != nil {
		return notFoundAs(err, ErrAdminNotFound)
	}
	if admin.Active && admin.Role == models.RoleSuperAdmin {
		if err := s.ensureAnotherSuperAdmin(); err != nil {
			return err
		}
	}
	return notFoundAs(s.adminRepo.Delete(id), ErrAdminNotFound)
}

func (s *AuthService) ensureAnotherSuperAdmin() error {
	count, err := s.adminRepo.CountActiveByRole(models.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrLastSuperAdmin
	}
	return nil
}

func validateAdmin(admin *models.AdminUser) error {
	if err := validation.ValidateEmail(admin.Email); err != nil {
		return invalid(err)
	}
	if err := validation.ValidateName(admin.Name); err != nil {
		return invalid(err)
	}
	if !admin.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}
