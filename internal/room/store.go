// internal/room/store.go
package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/typeloop/typeloop/internal/models"
)

// Store is the transactional persistence the registry and sweeper need. The
// pgx implementation lives in internal/database; tests use an in-memory fake.
// Cross-client coordination happens entirely through these guarantees, never
// through in-process locks: there is no shared process across clients.
type Store interface {
	// CreateRoomWithCreator inserts the room and its creator membership in one
	// transaction; a room must never exist without its creator's membership.
	// Returns apperr.ErrDuplicateJoinCode when the code collides with another
	// live room, so the caller can retry with a fresh candidate.
	CreateRoomWithCreator(ctx context.Context, room *models.Room, creator *models.RoomMember) error

	RoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	RoomByJoinCode(ctx context.Context, code string) (*models.Room, error)

	// CountActiveRoomsByCreator counts the creator's rooms in WAITING or IN_GAME.
	CountActiveRoomsByCreator(ctx context.Context, creatorID uuid.UUID) (int, error)

	Members(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error)

	// MemberByUser returns the membership row for (roomID, userID) regardless
	// of status, or apperr.ErrMemberNotFound when absent.
	MemberByUser(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error)

	// AddMemberIfCapacity inserts the membership only while the room is still
	// WAITING and below maxPlayers, in one atomic statement so the capacity
	// check and the resulting count never diverge. Reports false when the
	// guard failed (room full or already started).
	AddMemberIfCapacity(ctx context.Context, member *models.RoomMember, maxPlayers int) (bool, error)

	// ReactivateMemberIfCapacity flips a LEFT membership back to JOINED with a
	// fresh joinedAt, preserving the row's identity. The flip carries the same
	// guard as AddMemberIfCapacity: it only lands while the room is WAITING
	// with a valid code and the non-LEFT count is below maxPlayers, so a
	// returning user whose freed slot was taken cannot push the room over
	// capacity. Reports false when the guard failed.
	ReactivateMemberIfCapacity(ctx context.Context, roomID, memberID uuid.UUID, joinedAt time.Time, maxPlayers int) (bool, error)

	UpdateMemberStatus(ctx context.Context, roomID, userID uuid.UUID, status models.MemberStatus) error

	// TransitionRoom conditionally moves the room to target iff its current
	// status is one of from, optionally rewriting codeValid and expiresAt.
	// Returns the updated room, or nil when the guard did not match.
	TransitionRoom(ctx context.Context, roomID uuid.UUID, from []models.RoomStatus, to models.RoomStatus, update TransitionUpdate) (*models.Room, error)

	// ExpireRooms moves every non-terminal room with expiresAt before now to
	// EXPIRED and returns how many rows changed. Idempotent.
	ExpireRooms(ctx context.Context, now time.Time) (int64, error)

	SpeedRecords(ctx context.Context, roomID uuid.UUID) ([]models.SpeedRecord, error)
}

// TransitionUpdate carries the side writes a status transition makes.
type TransitionUpdate struct {
	// InvalidateCode closes the join code alongside the status write, so a
	// join racing with a start can never slip in after IN_GAME lands.
	InvalidateCode bool

	// ExpiresAt, when non-zero, rewrites the room's expiry deadline.
	ExpiresAt time.Time
}
