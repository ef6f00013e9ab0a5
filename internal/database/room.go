// internal/database/room.go
package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
	"github.com/typeloop/typeloop/internal/room"
)

const roomColumns = `
	id, name, join_code, creator_id, max_players, is_private, status,
	time_limit_seconds, custom_text, code_valid, created_at, expires_at
`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var r models.Room
	err := row.Scan(
		&r.ID, &r.Name, &r.JoinCode, &r.CreatorID, &r.MaxPlayers, &r.IsPrivate,
		&r.Status, &r.TimeLimitSeconds, &r.CustomText, &r.CodeValid,
		&r.CreatedAt, &r.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRoomWithCreator inserts the room and the creator's CREATOR membership
// in one transaction. A partial unique index on join_code over live rooms
// turns a concurrent code collision into ErrDuplicateJoinCode for the caller
// to retry.
func (s *Store) CreateRoomWithCreator(ctx context.Context, rm *models.Room, creator *models.RoomMember) error {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO rooms (`+roomColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			rm.ID, rm.Name, rm.JoinCode, rm.CreatorID, rm.MaxPlayers, rm.IsPrivate,
			rm.Status, rm.TimeLimitSeconds, rm.CustomText, rm.CodeValid,
			rm.CreatedAt, rm.ExpiresAt,
		)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO room_members (id, room_id, user_id, role, status, joined_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			creator.ID, creator.RoomID, creator.UserID, creator.Role,
			creator.Status, creator.JoinedAt,
		)
		return err
	})
	if isUniqueViolation(err, "rooms_join_code_live") {
		return apperr.Wrap(apperr.ErrDuplicateJoinCode, err)
	}
	return err
}

func (s *Store) RoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	rm, err := scanRoom(s.pool.QueryRow(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrRoomNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rm, nil
}

func (s *Store) RoomByJoinCode(ctx context.Context, code string) (*models.Room, error) {
	rm, err := scanRoom(s.pool.QueryRow(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE join_code = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrRoomNotFound
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rm, nil
}

func (s *Store) CountActiveRoomsByCreator(ctx context.Context, creatorID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM rooms
		WHERE creator_id = $1 AND status IN ('WAITING', 'IN_GAME')
	`, creatorID).Scan(&n)
	return n, err
}

// TransitionRoom conditionally moves the room to target. The status guard and
// the side writes land in one UPDATE, so a join racing a start can never
// observe IN_GAME with a still-valid join code.
func (s *Store) TransitionRoom(ctx context.Context, roomID uuid.UUID, from []models.RoomStatus, to models.RoomStatus, update room.TransitionUpdate) (*models.Room, error) {
	fromStrs := make([]string, len(from))
	for i, st := range from {
		fromStrs[i] = string(st)
	}
	var expiresAt *time.Time
	if !update.ExpiresAt.IsZero() {
		expiresAt = &update.ExpiresAt
	}

	rm, err := scanRoom(s.pool.QueryRow(ctx, `
		UPDATE rooms
		SET status = $2,
		    code_valid = CASE WHEN $3 THEN false ELSE code_valid END,
		    expires_at = COALESCE($4, expires_at)
		WHERE id = $1 AND status = ANY($5)
		RETURNING `+roomColumns,
		roomID, to, update.InvalidateCode, expiresAt, fromStrs,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		// guard did not match: the room moved on before this write
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rm, nil
}

// ExpireRooms sweeps every stale non-terminal room to EXPIRED.
func (s *Store) ExpireRooms(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE rooms
		SET status = 'EXPIRED', code_valid = false
		WHERE expires_at < $1 AND status IN ('WAITING', 'IN_GAME')
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
