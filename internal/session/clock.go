// Package session owns the authoritative notion of "when is this room's
// phase over". There is no server-run countdown: deadlines are edge-triggered.
// The WAITING phase is bounded by the room's expiresAt TTL; the IN_GAME phase
// is bounded by timeLimitSeconds, which each client tracks against its own
// locally observed elapsed time. Whichever client first notices the deadline
// requests the FINISHED transition and everyone else converges by polling.
package session

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/typeloop/typeloop/internal/models"
)

const (
	// DefaultAbandonTimeout bounds how long a never-started room stays joinable.
	DefaultAbandonTimeout = 5 * time.Minute

	// DefaultFinishGrace is added past the play time limit before an in-game
	// room whose clients all vanished is eligible for expiry. A missing
	// departure beacon must never strand a room.
	DefaultFinishGrace = time.Minute
)

// Clock computes phase deadlines against an injectable time source.
type Clock struct {
	clock          clockwork.Clock
	abandonTimeout time.Duration
	finishGrace    time.Duration
}

func NewClock(clock clockwork.Clock) *Clock {
	return &Clock{
		clock:          clock,
		abandonTimeout: DefaultAbandonTimeout,
		finishGrace:    DefaultFinishGrace,
	}
}

// NewClockWithTimeouts overrides the default phase bounds, mainly for tests.
func NewClockWithTimeouts(clock clockwork.Clock, abandonTimeout, finishGrace time.Duration) *Clock {
	return &Clock{clock: clock, abandonTimeout: abandonTimeout, finishGrace: finishGrace}
}

func (c *Clock) Now() time.Time { return c.clock.Now() }

// WaitingDeadline is when a freshly created room expires if nobody starts it.
func (c *Clock) WaitingDeadline(createdAt time.Time) time.Time {
	return createdAt.Add(c.abandonTimeout)
}

// PlayDeadline is the server-side upper bound for an in-game room: the play
// time limit plus grace. Clients enforce the limit itself; this bound only
// exists so an abandoned race is eventually swept to EXPIRED.
func (c *Clock) PlayDeadline(startedAt time.Time, timeLimitSeconds int) time.Time {
	return startedAt.Add(time.Duration(timeLimitSeconds)*time.Second + c.finishGrace)
}

// Expired reports whether the room's current phase deadline has passed.
// Terminal rooms never expire further.
func (c *Clock) Expired(room *models.Room) bool {
	if room.Status.Terminal() {
		return false
	}
	return room.ExpiresAt.Before(c.clock.Now())
}

// RemainingSeconds is advisory: clients use their own observed elapsed time
// during a race, this just feeds the waiting-room countdown display.
func (c *Clock) RemainingSeconds(room *models.Room) float64 {
	rem := room.ExpiresAt.Sub(c.clock.Now()).Seconds()
	if rem < 0 {
		return 0
	}
	return rem
}
