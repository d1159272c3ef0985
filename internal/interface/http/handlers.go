package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vocahub/voca-study-hub/internal/application/command"
	"github.com/vocahub/voca-study-hub/internal/application/query"
	"github.com/vocahub/voca-study-hub/internal/domain/shared"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// isRetryable reports whether an error is a transient transaction conflict
// worth re-running the whole command for.
func isRetryable(err error) bool {
	return shared.IsRetryable(err)
}

// writeDomainError maps a domain error kind onto an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	var domainErr *shared.DomainError
	msg := err.Error()
	if errors.As(err, &domainErr) {
		msg = domainErr.Message
	}

	switch {
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", msg)
	case shared.IsInvalidState(err):
		writeJSONError(w, http.StatusConflict, "invalid_state", msg)
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", msg)
	case shared.IsInvalidInput(err):
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid_input", msg)
	case shared.IsRetryable(err):
		// Conflict retries already exhausted.
		w.Header().Set("Retry-After", "1")
		writeJSONError(w, http.StatusServiceUnavailable, "conflict", "The operation conflicted with another request, try again")
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEARNERS
// ══════════════════════════════════════════════════════════════════════════════

type registerLearnerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleRegisterLearner handles POST /api/learners.
func (s *Server) handleRegisterLearner(w http.ResponseWriter, r *http.Request) {
	var req registerLearnerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	cmd := command.RegisterLearnerCommand{
		Username: req.Username,
		Password: req.Password,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.deps.RegisterLearner.Handle(r.Context(), cmd)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"learnerId": result.LearnerID,
		"username":  result.Username,
		"createdAt": result.CreatedAt,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin handles POST /api/learners/login. Credential verification
// only; no token or session is issued.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	q := query.AuthenticateQuery{
		Username: req.Username,
		Password: req.Password,
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	result, err := s.deps.Authenticate.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// CARD SELECTION
// ══════════════════════════════════════════════════════════════════════════════

// handleNextCard handles GET /api/cards/next?learnerId=&level=&day=.
func (s *Server) handleNextCard(w http.ResponseWriter, r *http.Request) {
	q := query.NextCardQuery{
		LearnerID: r.URL.Query().Get("learnerId"),
		Level:     r.URL.Query().Get("level"),
	}
	if dayStr := r.URL.Query().Get("day"); dayStr != "" {
		day, err := strconv.Atoi(dayStr)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "validation_error", "day must be an integer")
			return
		}
		q.Day = &day
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	card, err := s.deps.NextCard.Handle(r.Context(), q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleTodayCard handles GET /api/cards/today?learnerId=&level=.
func (s *Server) handleTodayCard(w http.ResponseWriter, r *http.Request) {
	q := query.TodayCardQuery{
		LearnerID: r.URL.Query().Get("learnerId"),
		Level:     r.URL.Query().Get("level"),
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var card interface{}
	err := s.retrier.Do(r.Context(), func(ctx context.Context) error {
		c, err := s.deps.TodayCard.Handle(ctx, q)
		card = c
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// handleRemindCard handles GET /api/cards/remind?learnerId=&level=.
func (s *Server) handleRemindCard(w http.ResponseWriter, r *http.Request) {
	q := query.RemindCardQuery{
		LearnerID: r.URL.Query().Get("learnerId"),
		Level:     r.URL.Query().Get("level"),
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var card interface{}
	err := s.retrier.Do(r.Context(), func(ctx context.Context) error {
		c, err := s.deps.RemindCard.Handle(ctx, q)
		card = c
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, card)
}

// ══════════════════════════════════════════════════════════════════════════════
// REVIEW
// ══════════════════════════════════════════════════════════════════════════════

type recordReviewRequest struct {
	LearnerID string `json:"learnerId"`
	ItemID    int64  `json:"itemId"`
	Grade     string `json:"grade"`
}

// handleRecordReview handles POST /api/review.
func (s *Server) handleRecordReview(w http.ResponseWriter, r *http.Request) {
	var req recordReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	cmd := command.RecordReviewCommand{
		LearnerID: req.LearnerID,
		ItemID:    req.ItemID,
		Grade:     req.Grade,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var result *command.RecordReviewResult
	err := s.retrier.Do(r.Context(), func(ctx context.Context) error {
		var err error
		result, err = s.deps.RecordReview.Handle(ctx, cmd)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"learnerId":     result.LearnerID,
		"itemId":        result.ItemID,
		"grade":         result.Grade,
		"level":         result.Level,
		"nextDue":       formatDue(result),
		"mastered":      result.Mastered,
		"correctStreak": result.CorrectStreak,
		"wrongCount":    result.WrongCount,
		"reviewedAt":    result.ReviewedAt,
	})
}

// formatDue hides the unscheduled sentinel from API clients.
func formatDue(result *command.RecordReviewResult) *time.Time {
	if !timeutil.HasDueDate(result.NextDue) {
		return nil
	}
	due := result.NextDue
	return &due
}

// ══════════════════════════════════════════════════════════════════════════════
// CYCLE PROGRESSION
// ══════════════════════════════════════════════════════════════════════════════

type openDayRequest struct {
	LearnerID string `json:"learnerId"`
	Level     string `json:"level"`
	Day       int    `json:"day"`
}

// handleOpenDay handles POST /api/days/open.
func (s *Server) handleOpenDay(w http.ResponseWriter, r *http.Request) {
	var req openDayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	cmd := command.OpenDayCommand{
		LearnerID: req.LearnerID,
		Level:     req.Level,
		Day:       req.Day,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var result *command.OpenDayResult
	err := s.retrier.Do(r.Context(), func(ctx context.Context) error {
		var err error
		result, err = s.deps.OpenDay.Handle(ctx, cmd)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"learnerId": result.LearnerID,
		"level":     result.Level,
		"cycleNo":   result.CycleNo,
		"day":       result.Day,
		"status":    result.Status,
		"openedAt":  result.OpenedAt,
	})
}

type levelOnlyRequest struct {
	LearnerID string `json:"learnerId"`
	Level     string `json:"level"`
}

// handleCompleteDay handles POST /api/days/complete.
func (s *Server) handleCompleteDay(w http.ResponseWriter, r *http.Request) {
	var req levelOnlyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	cmd := command.CompleteDayCommand{
		LearnerID: req.LearnerID,
		Level:     req.Level,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var result *command.CompleteDayResult
	err := s.retrier.Do(r.Context(), func(ctx context.Context) error {
		var err error
		result, err = s.deps.CompleteDay.Handle(ctx, cmd)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"learnerId":   result.LearnerID,
		"level":       result.Level,
		"cycleNo":     result.CycleNo,
		"day":         result.Day,
		"status":      result.Status,
		"completedAt": result.CompletedAt,
		"cycleStatus": result.CycleStatus,
	})
}

// handleConfirmCycle handles POST /api/cycles/confirm.
func (s *Server) handleConfirmCycle(w http.ResponseWriter, r *http.Request) {
	var req levelOnlyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Request body must be valid JSON")
		return
	}

	cmd := command.ConfirmCycleCommand{
		LearnerID: req.LearnerID,
		Level:     req.Level,
	}
	if err := cmd.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var result *command.ConfirmCycleResult
	err := s.retrier.Do(r.Context(), func(ctx context.Context) error {
		var err error
		result, err = s.deps.ConfirmCycle.Handle(ctx, cmd)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"learnerId":  result.LearnerID,
		"level":      result.Level,
		"newCycleNo": result.CycleNo,
		"startedAt":  result.StartedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEVEL STATUS
// ══════════════════════════════════════════════════════════════════════════════

// handleLevelStatus handles GET /api/levels/status?learnerId=&level=.
func (s *Server) handleLevelStatus(w http.ResponseWriter, r *http.Request) {
	q := query.LevelStatusQuery{
		LearnerID: r.URL.Query().Get("learnerId"),
		Level:     r.URL.Query().Get("level"),
	}
	if err := q.Validate(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	var result *query.LevelStatusResult
	err := s.retrier.Do(r.Context(), func(ctx context.Context) error {
		var err error
		result, err = s.deps.LevelStatus.Handle(ctx, q)
		return err
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	healthy := true

	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(r.Context()); err != nil {
			checks["database"] = err.Error()
			healthy = false
		} else {
			checks["database"] = "ok"
		}
	}
	if s.deps.Cache != nil {
		if err := s.deps.Cache.Ping(r.Context()); err != nil {
			// Cache is optional: report but stay healthy.
			checks["cache"] = err.Error()
		} else {
			checks["cache"] = "ok"
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "unhealthy"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": overall,
		"checks": checks,
	})
}
