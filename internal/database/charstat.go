// internal/database/charstat.go
package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/typeloop/typeloop/internal/models"
	"github.com/typeloop/typeloop/internal/stats"
)

// ReplaceCharacterStats deletes all prior character rows for the speed record
// and inserts the new batch in one transaction. Repeated flushes within a
// session are therefore idempotent and always reflect only the latest
// complete picture; a failure rolls back completely, never a partial merge.
func (s *Store) ReplaceCharacterStats(ctx context.Context, speedRecordID uuid.UUID, chars []models.CharacterStat) (int, error) {
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			DELETE FROM character_stats WHERE speed_record_id = $1
		`, speedRecordID); err != nil {
			return err
		}
		for _, c := range chars {
			if _, err := tx.Exec(ctx, `
				INSERT INTO character_stats (id, speed_record_id, char, avg_latency_ms, max_latency_ms, error_frequency)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, uuid.New(), speedRecordID, c.Char, c.AvgLatencyMs, c.MaxLatencyMs, c.ErrorFrequency); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(chars), nil
}

// LeaderboardRows joins speed records with display names, ordered by wpm
// descending. Empty usernames are left as-is; the projection layer fills in
// the anonymous default.
func (s *Store) LeaderboardRows(ctx context.Context, roomID uuid.UUID) ([]stats.LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT COALESCE(u.username, ''), s.wpm, s.correct_word_count,
		       COALESCE(array_length(s.incorrect_chars, 1), 0), s.participant_status
		FROM speed_records s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.room_id = $1
		ORDER BY s.wpm DESC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []stats.LeaderboardEntry
	for rows.Next() {
		var e stats.LeaderboardEntry
		if err := rows.Scan(&e.DisplayName, &e.WPM, &e.CorrectWords, &e.IncorrectCharCount, &e.ParticipantStatus); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
