// Package query contains read operations (CQRS - Queries).
package query

import (
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/catalog"
	"github.com/vocahub/voca-study-hub/internal/domain/study"
	"github.com/vocahub/voca-study-hub/pkg/timeutil"
)

// CardDTO is the wire view of one selected card.
type CardDTO struct {
	ItemID    int64            `json:"itemId"`
	Level     catalog.LevelTag `json:"level,omitempty"`
	Day       int              `json:"day,omitempty"`
	Topic     string           `json:"topic,omitempty"`
	Word      string           `json:"word"`
	Meaning   string           `json:"meaning"`
	ExampleEN string           `json:"exampleEn,omitempty"`
	ExampleKR string           `json:"exampleKr,omitempty"`

	// IsNew marks a card the learner has never been graded on.
	IsNew bool `json:"isNew"`

	Progress *CardProgressDTO `json:"progress,omitempty"`
}

// CardProgressDTO is the scheduling state attached to a seen card.
type CardProgressDTO struct {
	Level         int        `json:"level"`
	NextDue       *time.Time `json:"nextDue,omitempty"`
	Mastered      bool       `json:"mastered"`
	CorrectStreak int        `json:"correctStreak"`
	WrongCount    int        `json:"wrongCount"`
}

func toCardDTO(card *study.Card) *CardDTO {
	dto := &CardDTO{
		ItemID:    card.Item.ID,
		Level:     card.Item.Level,
		Day:       card.Item.Day,
		Topic:     card.Item.Topic,
		Word:      card.Item.Word,
		Meaning:   card.Item.Meaning,
		ExampleEN: card.Item.ExampleEN,
		ExampleKR: card.Item.ExampleKR,
		IsNew:     card.Progress == nil,
	}
	if p := card.Progress; p != nil {
		dto.Progress = &CardProgressDTO{
			Level:         p.Level,
			Mastered:      p.Mastered,
			CorrectStreak: p.CorrectStreak,
			WrongCount:    p.WrongCount,
		}
		if timeutil.HasDueDate(p.NextDue) {
			due := p.NextDue
			dto.Progress.NextDue = &due
		}
	}
	return dto
}
