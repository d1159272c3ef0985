// Package learner contains the learner entity and registration rules.
package learner

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/vocahub/voca-study-hub/internal/domain/shared"
)

// MaxUsernameLen mirrors the storage column width.
const MaxUsernameLen = 50

// Learner is one registered study account. Progress, study logs, cycles and
// day rows all hang off its ID.
type Learner struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// New registers a learner with a bcrypt-hashed password.
func New(username, password string, now time.Time) (*Learner, error) {
	if username == "" {
		return nil, shared.NewDomainError("learner", "Register", shared.ErrInvalidInput, "username is required")
	}
	if len(username) > MaxUsernameLen {
		return nil, shared.NewDomainError("learner", "Register", shared.ErrInvalidInput, "username too long")
	}
	if password == "" {
		return nil, shared.NewDomainError("learner", "Register", shared.ErrInvalidInput, "password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, shared.WrapError("learner", "Register", shared.ErrInvalidInput, "failed to hash password", err)
	}

	return &Learner{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}, nil
}

// CheckPassword verifies a cleartext password against the stored hash.
func (l *Learner) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(l.PasswordHash), []byte(password)) == nil
}
