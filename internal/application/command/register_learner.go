// Package command contains write operations (CQRS - Commands). Every handler
// runs its writes inside a single store transaction, so a failed command
// leaves no partial state behind.
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/learner"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER LEARNER COMMAND
// Creates a learner account with a bcrypt-hashed password.
// ══════════════════════════════════════════════════════════════════════════════

// MinPasswordLen is the minimum accepted password length.
const MinPasswordLen = 8

// RegisterLearnerCommand contains the data to create a learner.
type RegisterLearnerCommand struct {
	// Username must be unique across all learners.
	Username string

	// Password is the plaintext password; only its hash is stored.
	Password string
}

// Validate validates the command.
func (c RegisterLearnerCommand) Validate() error {
	if c.Username == "" {
		return errors.New("register_learner: username is required")
	}
	if len(c.Username) > learner.MaxUsernameLen {
		return fmt.Errorf("register_learner: username exceeds %d characters", learner.MaxUsernameLen)
	}
	if len(c.Password) < MinPasswordLen {
		return fmt.Errorf("register_learner: password must be at least %d characters", MinPasswordLen)
	}
	return nil
}

// RegisterLearnerResult contains the result of registering a learner.
type RegisterLearnerResult struct {
	LearnerID string
	Username  string
	CreatedAt time.Time
}

// RegisterLearnerHandler handles the RegisterLearnerCommand.
type RegisterLearnerHandler struct {
	store study.Store
	log   *logger.Logger
	now   func() time.Time
}

// NewRegisterLearnerHandler creates a new RegisterLearnerHandler.
func NewRegisterLearnerHandler(store study.Store, log *logger.Logger) *RegisterLearnerHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RegisterLearnerHandler{
		store: store,
		log:   log.With(logger.Component("register_learner")),
		now:   time.Now,
	}
}

// Handle executes the register learner command.
func (h *RegisterLearnerHandler) Handle(ctx context.Context, cmd RegisterLearnerCommand) (*RegisterLearnerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_learner: validation failed: %w", err)
	}

	l, err := learner.New(cmd.Username, cmd.Password, h.now())
	if err != nil {
		return nil, fmt.Errorf("register_learner: %w", err)
	}

	err = h.store.InTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		return tx.CreateLearner(ctx, l)
	})
	if err != nil {
		return nil, fmt.Errorf("register_learner: %w", err)
	}

	h.log.Info("learner registered", logger.LearnerID(l.ID))

	return &RegisterLearnerResult{
		LearnerID: l.ID,
		Username:  l.Username,
		CreatedAt: l.CreatedAt,
	}, nil
}
