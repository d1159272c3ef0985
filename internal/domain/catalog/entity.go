// Package catalog contains the vocabulary catalog: a flat list of items
// tagged with a difficulty level and a curriculum day. Items are created by
// catalog import and never edited or deleted by the engine.
package catalog

import (
	"fmt"
	"time"

	"github.com/vocahub/voca-study-hub/internal/domain/shared"
)

// LevelTag is a TOEIC difficulty band. Items without a tag float outside the
// cycle/day curriculum.
type LevelTag string

const (
	Level600 LevelTag = "600"
	Level800 LevelTag = "800"
	Level900 LevelTag = "900"
)

// Levels returns all difficulty bands in display order.
func Levels() []LevelTag {
	return []LevelTag{Level600, Level800, Level900}
}

// ParseLevelTag validates a wire-level difficulty value.
func ParseLevelTag(s string) (LevelTag, error) {
	switch LevelTag(s) {
	case Level600, Level800, Level900:
		return LevelTag(s), nil
	default:
		return "", shared.NewDomainError("catalog", "ParseLevelTag", shared.ErrInvalidInput,
			fmt.Sprintf("unrecognized level tag %q", s))
	}
}

// Item is one catalog entry. Content fields are immutable once imported.
type Item struct {
	// ID is the serial catalog identity. New-card selection uses it as the
	// stable catalog order.
	ID int64

	// Level is the difficulty band, empty for untagged items.
	Level LevelTag

	// Day is the curriculum day (1..30) within the level, 0 for untagged items.
	Day int

	// Topic groups related words.
	Topic string

	Word      string
	Meaning   string
	ExampleEN string
	ExampleKR string

	CreatedAt time.Time
}

// HasLevel reports whether the item belongs to a level curriculum.
func (i *Item) HasLevel() bool {
	return i.Level != ""
}

// Validate checks an item before import.
func (i *Item) Validate() error {
	if i.Word == "" {
		return shared.NewDomainError("catalog", "Validate", shared.ErrInvalidInput, "word is required")
	}
	if i.Meaning == "" {
		return shared.NewDomainError("catalog", "Validate", shared.ErrInvalidInput, "meaning is required")
	}
	if i.Level != "" {
		if _, err := ParseLevelTag(string(i.Level)); err != nil {
			return err
		}
	}
	if i.Day != 0 && (i.Day < 1 || i.Day > 30) {
		return shared.NewDomainError("catalog", "Validate", shared.ErrInvalidInput,
			fmt.Sprintf("day %d outside 1..30", i.Day))
	}
	return nil
}
