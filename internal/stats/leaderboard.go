// internal/stats/leaderboard.go
package stats

import (
	"context"

	"github.com/google/uuid"

	"github.com/typeloop/typeloop/internal/apperr"
)

// AnonymousName is shown for participants with no display name on file.
const AnonymousName = "Anonymous"

// Leaderboard is a pure, uncached read projection over the current speed
// records for a room. Clients poll it at roughly one-second intervals during
// an active round; staleness is bounded by the poll interval, nothing more.
type Leaderboard struct {
	store Store
}

func NewLeaderboard(store Store) *Leaderboard {
	return &Leaderboard{store: store}
}

// Get returns entries ordered by wpm descending.
func (l *Leaderboard) Get(ctx context.Context, roomID uuid.UUID) ([]LeaderboardEntry, error) {
	if roomID == uuid.Nil {
		return nil, apperr.Validation("roomId is required")
	}
	rows, err := l.store.LeaderboardRows(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	for i := range rows {
		if rows[i].DisplayName == "" {
			rows[i].DisplayName = AnonymousName
		}
	}
	return rows, nil
}
