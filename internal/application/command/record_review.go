package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/leitner"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD REVIEW COMMAND
// Grades one card: advances or resets the Leitner state, reschedules the next
// review, and appends the study-log entry. All three writes share one
// transaction.
// ══════════════════════════════════════════════════════════════════════════════

// RecordReviewCommand contains the data to grade a card.
type RecordReviewCommand struct {
	// LearnerID is the ID of the learner grading the card.
	LearnerID string

	// ItemID is the catalog ID of the graded item.
	ItemID int64

	// Grade is one of "perfect", "good", "again".
	Grade string
}

// Validate validates the command.
func (c RecordReviewCommand) Validate() error {
	if c.LearnerID == "" {
		return errors.New("record_review: learner_id is required")
	}
	if c.ItemID <= 0 {
		return errors.New("record_review: item_id is required")
	}
	if _, err := leitner.ParseGrade(c.Grade); err != nil {
		return fmt.Errorf("record_review: %w", err)
	}
	return nil
}

// RecordReviewResult contains the post-review scheduling state.
type RecordReviewResult struct {
	LearnerID     string
	ItemID        int64
	Grade         leitner.Grade
	Level         int
	NextDue       time.Time
	Mastered      bool
	CorrectStreak int
	WrongCount    int
	ReviewedAt    time.Time
}

// RecordReviewHandler handles the RecordReviewCommand.
type RecordReviewHandler struct {
	store study.Store
	cache study.StatusCache
	log   *logger.Logger
	now   func() time.Time
}

// NewRecordReviewHandler creates a new RecordReviewHandler.
func NewRecordReviewHandler(store study.Store, cache study.StatusCache, log *logger.Logger) *RecordReviewHandler {
	if cache == nil {
		cache = study.NopStatusCache{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &RecordReviewHandler{
		store: store,
		cache: cache,
		log:   log.With(logger.Component("record_review")),
		now:   time.Now,
	}
}

// Handle executes the record review command.
func (h *RecordReviewHandler) Handle(ctx context.Context, cmd RecordReviewCommand) (*RecordReviewResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_review: validation failed: %w", err)
	}
	grade, err := leitner.ParseGrade(cmd.Grade)
	if err != nil {
		return nil, fmt.Errorf("record_review: %w", err)
	}

	now := h.now()
	var (
		progress *study.Progress
		entry    *study.StudyLogEntry
	)
	err = h.store.InTx(ctx, func(ctx context.Context, tx study.StoreTx) error {
		progress, entry, err = study.RecordReview(ctx, tx, cmd.LearnerID, cmd.ItemID, grade, now)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("record_review: %w", err)
	}

	// A review can change the level dashboard (first touch creates the
	// cycle), so drop any cached snapshot.
	if entry.Level != "" {
		h.cache.Invalidate(ctx, cmd.LearnerID, entry.Level)
	}

	h.log.Info("review recorded",
		logger.LearnerID(cmd.LearnerID),
		logger.ItemID(cmd.ItemID),
		logger.Grade(string(grade)),
		logger.Int("new_level", progress.Level),
		logger.Bool("mastered", progress.Mastered))

	return &RecordReviewResult{
		LearnerID:     cmd.LearnerID,
		ItemID:        cmd.ItemID,
		Grade:         grade,
		Level:         progress.Level,
		NextDue:       progress.NextDue,
		Mastered:      progress.Mastered,
		CorrectStreak: progress.CorrectStreak,
		WrongCount:    progress.WrongCount,
		ReviewedAt:    now,
	}, nil
}
