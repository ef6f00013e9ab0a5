// internal/stats/analytics.go
package stats

import (
	"context"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
)

// Dispatcher forwards flushed character rows to the external scoring
// pipeline. Delivery is best-effort: implementations swallow their own
// failures and the flush result never depends on them.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID, roomID uuid.UUID, chars []models.CharacterStat)
}

// FlushResult acknowledges a completed analytics flush.
type FlushResult struct {
	SpeedRecordID uuid.UUID `json:"speedRecordId"`
	Count         int       `json:"count"`
}

// Analytics is the server side of end-of-session character analytics. One
// flush replaces the participant's entire CharacterStat set: repeated flushes
// within a session are idempotent and always reflect only the latest complete
// picture, never a merge of old and new.
type Analytics struct {
	store      Store
	dispatcher Dispatcher // optional
	logger     *log.Logger
}

func NewAnalytics(store Store, dispatcher Dispatcher, logger *log.Logger) *Analytics {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Analytics{store: store, dispatcher: dispatcher, logger: logger}
}

// Flush finds or creates the SpeedRecord for (userId, roomId), then deletes
// all prior character rows and inserts the new batch in one transaction.
// Malformed requests fail before any database access; a storage failure
// leaves no partial rows.
func (a *Analytics) Flush(ctx context.Context, userID, roomID uuid.UUID, chars []models.CharacterStat) (*FlushResult, error) {
	if userID == uuid.Nil || roomID == uuid.Nil {
		return nil, apperr.Validation("userId and roomId are required")
	}
	if len(chars) == 0 {
		return nil, apperr.Validation("characters must not be empty")
	}
	for _, c := range chars {
		if c.Char == "" {
			return nil, apperr.Validation("character entries must name a character")
		}
		if c.AvgLatencyMs < 0 || c.MaxLatencyMs < 0 {
			return nil, apperr.Validation("latencies must be non-negative")
		}
		if c.ErrorFrequency < 0 || c.ErrorFrequency > 100 {
			return nil, apperr.Validation("errorFrequency must be within 0-100")
		}
	}

	rec, err := a.store.FindOrCreateSpeedRecord(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	count, err := a.store.ReplaceCharacterStats(ctx, rec.ID, chars)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	if a.dispatcher != nil {
		a.dispatcher.Dispatch(ctx, userID, roomID, chars)
	}

	a.logger.WithFields(log.Fields{
		"user":  userID,
		"room":  roomID,
		"chars": count,
	}).Info("character analytics flushed")

	return &FlushResult{SpeedRecordID: rec.ID, Count: count}, nil
}
