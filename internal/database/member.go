// internal/database/member.go
package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
)

func (s *Store) Members(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, room_id, user_id, role, status, joined_at
		FROM room_members
		WHERE room_id = $1
		ORDER BY joined_at
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.RoomMember
	for rows.Next() {
		var m models.RoomMember
		if err := rows.Scan(&m.ID, &m.RoomID, &m.UserID, &m.Role, &m.Status, &m.JoinedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *Store) MemberByUser(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error) {
	var m models.RoomMember
	err := s.pool.QueryRow(ctx, `
		SELECT id, room_id, user_id, role, status, joined_at
		FROM room_members
		WHERE room_id = $1 AND user_id = $2
	`, roomID, userID).Scan(&m.ID, &m.RoomID, &m.UserID, &m.Role, &m.Status, &m.JoinedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AddMemberIfCapacity inserts the membership only while the room is still
// WAITING with a valid code and below maxPlayers. Guard and insert are one
// statement, so the capacity check and the resulting member count can never
// diverge under concurrent joins.
func (s *Store) AddMemberIfCapacity(ctx context.Context, member *models.RoomMember, maxPlayers int) (bool, error) {
	var inserted bool
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO room_members (id, room_id, user_id, role, status, joined_at)
			SELECT $1, $2, $3, $4, $5, $6
			WHERE (SELECT count(*) FROM room_members WHERE room_id = $2 AND status <> 'LEFT') < $7
			  AND EXISTS (SELECT 1 FROM rooms WHERE id = $2 AND status = 'WAITING' AND code_valid)
		`,
			member.ID, member.RoomID, member.UserID, member.Role,
			member.Status, member.JoinedAt, maxPlayers,
		)
		if err != nil {
			return err
		}
		inserted = tag.RowsAffected() == 1
		return nil
	})
	if isUniqueViolation(err, "room_members_room_user_key") {
		return false, apperr.Wrap(apperr.ErrAlreadyInRoom, err)
	}
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// ReactivateMemberIfCapacity flips a LEFT row back to JOINED, preserving its
// identity. Guard and update are one statement, mirroring AddMemberIfCapacity:
// the flip only lands while the room is still WAITING with a valid code and
// below maxPlayers, so rejoining after the freed slot was taken (or after the
// race started) changes nothing.
func (s *Store) ReactivateMemberIfCapacity(ctx context.Context, roomID, memberID uuid.UUID, joinedAt time.Time, maxPlayers int) (bool, error) {
	var reactivated bool
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE room_members SET status = 'JOINED', joined_at = $3
			WHERE id = $2
			  AND status = 'LEFT'
			  AND (SELECT count(*) FROM room_members WHERE room_id = $1 AND status <> 'LEFT') < $4
			  AND EXISTS (SELECT 1 FROM rooms WHERE id = $1 AND status = 'WAITING' AND code_valid)
		`, roomID, memberID, joinedAt, maxPlayers)
		if err != nil {
			return err
		}
		reactivated = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return reactivated, nil
}

func (s *Store) UpdateMemberStatus(ctx context.Context, roomID, userID uuid.UUID, status models.MemberStatus) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE room_members SET status = $3 WHERE room_id = $1 AND user_id = $2
		`, roomID, userID, status)
		return err
	})
}
