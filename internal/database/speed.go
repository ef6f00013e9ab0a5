// internal/database/speed.go
package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
)

const speedColumns = `
	id, user_id, room_id, wpm, correct_word_count, incorrect_chars,
	duration_seconds, participant_status, updated_at
`

// UpsertSpeedRecord inserts or fully overwrites the single row keyed by
// (user_id, room_id). The composite uniqueness constraint makes concurrent
// calls for the same key a deterministic last-write-wins, and disjoint keys
// never touch each other's rows.
func (s *Store) UpsertSpeedRecord(ctx context.Context, rec *models.SpeedRecord) (*models.SpeedRecord, error) {
	incorrect := rec.IncorrectChars
	if incorrect == nil {
		incorrect = []string{}
	}

	var saved models.SpeedRecord
	err := s.pool.QueryRow(ctx, `
		INSERT INTO speed_records (
			id, user_id, room_id, wpm, correct_word_count, incorrect_chars,
			duration_seconds, participant_status, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (user_id, room_id) DO UPDATE SET
			wpm = EXCLUDED.wpm,
			correct_word_count = EXCLUDED.correct_word_count,
			incorrect_chars = EXCLUDED.incorrect_chars,
			duration_seconds = EXCLUDED.duration_seconds,
			participant_status = EXCLUDED.participant_status,
			updated_at = now()
		RETURNING `+speedColumns,
		uuid.New(), rec.UserID, rec.RoomID, rec.WPM, rec.CorrectWordCount,
		incorrect, rec.DurationSeconds, rec.ParticipantStatus,
	).Scan(
		&saved.ID, &saved.UserID, &saved.RoomID, &saved.WPM, &saved.CorrectWordCount,
		&saved.IncorrectChars, &saved.DurationSeconds, &saved.ParticipantStatus,
		&saved.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return nil, apperr.Wrap(apperr.ErrRoomNotFound, err)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &saved, nil
}

// FindOrCreateSpeedRecord returns the row for (user_id, room_id), creating it
// with zero defaults when absent. The no-op DO UPDATE makes RETURNING yield
// the existing row on conflict.
func (s *Store) FindOrCreateSpeedRecord(ctx context.Context, userID, roomID uuid.UUID) (*models.SpeedRecord, error) {
	var rec models.SpeedRecord
	err := s.pool.QueryRow(ctx, `
		INSERT INTO speed_records (id, user_id, room_id, incorrect_chars, participant_status, updated_at)
		VALUES ($1, $2, $3, '{}', 'ACTIVE', now())
		ON CONFLICT (user_id, room_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+speedColumns,
		uuid.New(), userID, roomID,
	).Scan(
		&rec.ID, &rec.UserID, &rec.RoomID, &rec.WPM, &rec.CorrectWordCount,
		&rec.IncorrectChars, &rec.DurationSeconds, &rec.ParticipantStatus,
		&rec.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return nil, apperr.Wrap(apperr.ErrRoomNotFound, err)
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return &rec, nil
}

// MarkParticipantLeft is the speed-record half of the departure beacon. A
// missing row is a no-op: the beacon may arrive before the first upsert.
func (s *Store) MarkParticipantLeft(ctx context.Context, userID, roomID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE speed_records
		SET participant_status = 'LEFT', updated_at = now()
		WHERE user_id = $1 AND room_id = $2
	`, userID, roomID)
	return err
}

// SpeedRecords returns all records for a room, for the polling snapshot.
func (s *Store) SpeedRecords(ctx context.Context, roomID uuid.UUID) ([]models.SpeedRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+speedColumns+` FROM speed_records WHERE room_id = $1 ORDER BY updated_at
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.SpeedRecord
	for rows.Next() {
		var r models.SpeedRecord
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.RoomID, &r.WPM, &r.CorrectWordCount,
			&r.IncorrectChars, &r.DurationSeconds, &r.ParticipantStatus, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
