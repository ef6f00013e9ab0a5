// internal/stats/tracker.go
package stats

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
)

// MaxWPM is the upper bound accepted for a reported speed. Anything above is
// assumed to be a client bug or tampering and is rejected before persisting.
const MaxWPM = 300

// SpeedInput is one client push of its current performance snapshot.
type SpeedInput struct {
	WPM              float64  `json:"wpm"`
	CorrectWordCount int      `json:"correctWordCount"`
	IncorrectChars   []string `json:"incorrectChars"`
	DurationSeconds  float64  `json:"durationSeconds"`

	// Status is optional; empty means ACTIVE.
	Status models.ParticipantStatus `json:"status,omitempty"`
}

// Tracker owns the idempotent per-(user,room) speed upsert. Concurrent
// upserts from different users touch disjoint keys and never collide;
// concurrent upserts from the same user are safe because each call is a
// total-state replacement of one row. The server never averages or smooths
// wpm across calls; whatever smoothing the client wants is its own business.
type Tracker struct {
	store  Store
	logger *log.Logger
}

func NewTracker(store Store, logger *log.Logger) *Tracker {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Tracker{store: store, logger: logger}
}

func validateSpeed(in SpeedInput) error {
	if in.WPM < 0 || in.WPM > MaxWPM {
		return apperr.Validation("wpm must be between 0 and %d", MaxWPM)
	}
	if in.CorrectWordCount < 0 {
		return apperr.Validation("correctWordCount must be non-negative")
	}
	if in.DurationSeconds < 0 {
		return apperr.Validation("durationSeconds must be non-negative")
	}
	switch in.Status {
	case "", models.ParticipantActive, models.ParticipantLeft:
	default:
		return apperr.Validation("unknown participant status %q", in.Status)
	}
	return nil
}

// Upsert validates and persists the snapshot. Validation failures persist
// nothing.
func (t *Tracker) Upsert(ctx context.Context, userID, roomID uuid.UUID, in SpeedInput) (*models.SpeedRecord, error) {
	if userID == uuid.Nil || roomID == uuid.Nil {
		return nil, apperr.Validation("userId and roomId are required")
	}
	if err := validateSpeed(in); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.ParticipantActive
	}
	rec := &models.SpeedRecord{
		UserID:            userID,
		RoomID:            roomID,
		WPM:               in.WPM,
		CorrectWordCount:  in.CorrectWordCount,
		IncorrectChars:    in.IncorrectChars,
		DurationSeconds:   in.DurationSeconds,
		ParticipantStatus: status,
	}

	saved, err := t.store.UpsertSpeedRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// MarkLeft flips the participant status for the departure beacon. The beacon
// is unacknowledged, so failures are logged and swallowed.
func (t *Tracker) MarkLeft(ctx context.Context, userID, roomID uuid.UUID) {
	if err := t.store.MarkParticipantLeft(ctx, userID, roomID); err != nil {
		t.logger.WithError(err).WithFields(log.Fields{
			"user": userID,
			"room": roomID,
		}).Warn("failed to mark participant left")
	}
}
