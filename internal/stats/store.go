// internal/stats/store.go
package stats

import (
	"context"

	"github.com/google/uuid"
	"github.com/typeloop/typeloop/internal/models"
)

// LeaderboardEntry is one row of the leaderboard read projection.
type LeaderboardEntry struct {
	DisplayName        string                   `json:"displayName"`
	WPM                float64                  `json:"wpm"`
	CorrectWords       int                      `json:"correctWords"`
	IncorrectCharCount int                      `json:"incorrectCharCount"`
	ParticipantStatus  models.ParticipantStatus `json:"participantStatus"`
}

// Store is the persistence the speed tracker, analytics flush and leaderboard
// projection need. Implemented by internal/database; faked in tests.
type Store interface {
	// UpsertSpeedRecord inserts or fully overwrites the single row keyed by
	// (userId, roomId). Last write wins; the store never merges fields.
	UpsertSpeedRecord(ctx context.Context, rec *models.SpeedRecord) (*models.SpeedRecord, error)

	// FindOrCreateSpeedRecord returns the row for (userId, roomId), creating
	// it with zero defaults when absent. An analytics flush may land before
	// the participant's first speed upsert.
	FindOrCreateSpeedRecord(ctx context.Context, userID, roomID uuid.UUID) (*models.SpeedRecord, error)

	// ReplaceCharacterStats deletes all prior character rows for the speed
	// record and inserts the new batch in one transaction. On failure no
	// partial rows survive.
	ReplaceCharacterStats(ctx context.Context, speedRecordID uuid.UUID, chars []models.CharacterStat) (int, error)

	// MarkParticipantLeft flips the participant status on an existing record;
	// a missing record is a no-op (the beacon is best-effort).
	MarkParticipantLeft(ctx context.Context, userID, roomID uuid.UUID) error

	// LeaderboardRows returns current speed rows for the room joined with
	// display names, ordered by wpm descending.
	LeaderboardRows(ctx context.Context, roomID uuid.UUID) ([]LeaderboardEntry, error)
}
