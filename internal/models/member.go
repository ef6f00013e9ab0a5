// internal/models/member.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type MemberRole string

const (
	RoleCreator   MemberRole = "CREATOR"
	RolePlayer    MemberRole = "PLAYER"
	RoleSpectator MemberRole = "SPECTATOR"
)

type MemberStatus string

const (
	MemberJoined   MemberStatus = "JOINED"
	MemberReady    MemberStatus = "READY"
	MemberPlaying  MemberStatus = "PLAYING"
	MemberFinished MemberStatus = "FINISHED"
	MemberLeft     MemberStatus = "LEFT"
)

// RoomMember is one user's membership in one room. At most one non-LEFT row
// exists per (roomId, userId); rejoining reactivates the existing row instead
// of inserting a duplicate.
type RoomMember struct {
	ID       uuid.UUID    `json:"id"`
	RoomID   uuid.UUID    `json:"roomId"`
	UserID   uuid.UUID    `json:"userId"`
	Role     MemberRole   `json:"role"`
	Status   MemberStatus `json:"status"`
	JoinedAt time.Time    `json:"joinedAt"`
}
