package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	// E.164, as required for SMS delivery
	phoneRegex = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
)

const (
	maxNameLength  = 100
	maxNotesLength = 2000
)

// ValidationError represents a validation error
type ValidationError struct {
	Field     string
	Message   string
	MessageAr string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ValidationError{Field: "email", Message: "email is required", MessageAr: "البريد الإلكتروني مطلوب"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "invalid email format", MessageAr: "صيغة البريد الإلكتروني غير صحيحة"}
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "password is required", MessageAr: "كلمة المرور مطلوبة"}
	}
	if len(password) < 8 {
		return ValidationError{Field: "password", Message: "password must be at least 8 characters", MessageAr: "كلمة المرور يجب أن تكون 8 أحرف على الأقل"}
	}
	// bcrypt ignores everything past 72 bytes
	if len(password) > 72 {
		return ValidationError{Field: "password", Message: "password must be at most 72 bytes", MessageAr: "كلمة المرور طويلة جداً"}
	}
	return nil
}

// ValidateName checks if a name is valid. Length is counted in characters
// so Arabic names are measured fairly.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "name is required", MessageAr: "الاسم مطلوب"}
	}
	n := utf8.RuneCountInString(name)
	if n < 2 {
		return ValidationError{Field: "name", Message: "name must be at least 2 characters", MessageAr: "الاسم يجب أن يكون حرفين على الأقل"}
	}
	if n > maxNameLength {
		return ValidationError{Field: "name", Message: "name is too long", MessageAr: "الاسم طويل جداً"}
	}
	return nil
}

// ValidatePhone checks an optional phone number. Empty is allowed.
func ValidatePhone(phone string) error {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil
	}
	if !phoneRegex.MatchString(phone) {
		return ValidationError{Field: "phone", Message: "phone must be in international format, e.g. +966500000000", MessageAr: "رقم الجوال يجب أن يكون بالصيغة الدولية مثل +966500000000"}
	}
	return nil
}

// NormalizePhone strips spaces, dashes and parentheses
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}

// ValidateOptionalEmail checks an email only when one is given
func ValidateOptionalEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	return ValidateEmail(email)
}

// ValidateNotes bounds free-text notes
func ValidateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > maxNotesLength {
		return ValidationError{Field: "notes", Message: "notes are too long", MessageAr: "الملاحظات طويلة جداً"}
	}
	return nil
}
