// internal/models/speed.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type ParticipantStatus string

const (
	ParticipantActive ParticipantStatus = "ACTIVE"
	ParticipantLeft   ParticipantStatus = "LEFT"
)

// SpeedRecord is the single authoritative performance snapshot for one
// participant in one room, keyed uniquely by (userId, roomId). Every upsert
// fully replaces the row; the server never averages across calls.
type SpeedRecord struct {
	ID                uuid.UUID         `json:"id"`
	UserID            uuid.UUID         `json:"userId"`
	RoomID            uuid.UUID         `json:"roomId"`
	WPM               float64           `json:"wpm"`
	CorrectWordCount  int               `json:"correctWordCount"`
	IncorrectChars    []string          `json:"incorrectChars"`
	DurationSeconds   float64           `json:"durationSeconds"`
	ParticipantStatus ParticipantStatus `json:"participantStatus"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}
