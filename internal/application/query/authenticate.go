package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/vocahub/voca-study-hub/internal/domain/learner"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
)

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATE QUERY
// Verifies a username/password pair and returns the learner identity. Token
// or session issuance is the caller's concern.
// ══════════════════════════════════════════════════════════════════════════════

// AuthenticateQuery contains the credentials to verify.
type AuthenticateQuery struct {
	Username string
	Password string
}

// Validate validates the query.
func (q AuthenticateQuery) Validate() error {
	if q.Username == "" {
		return errors.New("authenticate: username is required")
	}
	if q.Password == "" {
		return errors.New("authenticate: password is required")
	}
	return nil
}

// AuthenticateResult identifies the authenticated learner.
type AuthenticateResult struct {
	LearnerID string `json:"learnerId"`
	Username  string `json:"username"`
}

// AuthenticateHandler handles the AuthenticateQuery.
type AuthenticateHandler struct {
	store study.Store
}

// NewAuthenticateHandler creates a new AuthenticateHandler.
func NewAuthenticateHandler(store study.Store) *AuthenticateHandler {
	return &AuthenticateHandler{store: store}
}

// Handle executes the authenticate query. Unknown usernames and wrong
// passwords fail identically so the endpoint does not leak which usernames
// are registered.
func (h *AuthenticateHandler) Handle(ctx context.Context, q AuthenticateQuery) (*AuthenticateResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("authenticate: validation failed: %w", err)
	}

	var l *learner.Learner
	err := h.store.ReadTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		var err error
		l, err = tx.GetLearnerByUsername(ctx, q.Username)
		return err
	})
	if shared.IsNotFound(err) {
		return nil, invalidCredentials()
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if !l.CheckPassword(q.Password) {
		return nil, invalidCredentials()
	}

	return &AuthenticateResult{
		LearnerID: l.ID,
		Username:  l.Username,
	}, nil
}

func invalidCredentials() error {
	return shared.NewDomainError("learner", "Authenticate", shared.ErrNotFound,
		"invalid username or password")
}
