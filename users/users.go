package users

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"

	"github.com/jrsteele09/go-rag-client/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

// RoleType is the learning-platform role of an account
type RoleType string

const (
	RoleStudent RoleType = "student"
	RoleTeacher RoleType = "teacher"
	RoleAdmin   RoleType = "admin"
)

// MinPasswordLength is the shortest new password accepted before any request is sent.
const MinPasswordLength = 6

// User is the identity returned by GET /auth/me and cached locally under the "user" key.
type User struct {
	ID           string          `json:"id"`                   // Opaque user identifier (UUID on the reference backend)
	Email        string          `json:"email"`                // Login email
	FirstName    string          `json:"first_name,omitempty"` // Given name
	LastName     string          `json:"last_name,omitempty"`  // Family name
	Avatar       string          `json:"avatar,omitempty"`     // Avatar URL
	Role         RoleType        `json:"role,omitempty"`       // Platform role, "student" by default
	CreatedAt    utils.Timestamp `json:"created_at"`           // Registration time
	PasswordHash string          `json:"-"`                    // Only populated server side - never serialize
}

// DisplayName is "First Last", falling back to the email address.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Public returns a copy without server-side secrets.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.PasswordHash = ""
	return &c
}

// ValidateEmail checks the address is a bare RFC 5322 address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("email %q is not a valid address", email)
	}
	return nil
}

// ValidatePasswordStrength checks a new password:
// - At least MinPasswordLength characters long
// - Contains at least one letter
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}

	var (
		hasLetter bool
		hasNumber bool
	)
	for _, char := range password {
		if unicode.IsLetter(char) {
			hasLetter = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasLetter {
		return fmt.Errorf("password must contain at least one letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
