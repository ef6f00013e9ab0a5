// internal/scoring/publisher.go
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/typeloop/typeloop/internal/models"
)

// DefaultQueueName is the Redis list the external scoring pipeline consumes.
var DefaultQueueName = "typeloop_char_stats"

// StatBatch is one participant's finalized character stats for one session,
// queued for the external ML scorer.
type StatBatch struct {
	UserID    uuid.UUID              `json:"user_id"`
	RoomID    uuid.UUID              `json:"room_id"`
	Chars     []models.CharacterStat `json:"chars"`
	Timestamp int64                  `json:"timestamp"`
}

// Publisher pushes flushed analytics to a Redis queue. Delivery is strictly
// best-effort: gameplay never blocks on or reacts to scoring delivery, so
// every failure is logged and swallowed.
type Publisher struct {
	rdb    *redis.Client
	queue  string
	logger *log.Logger
}

// ConnectPublisher initializes the Redis client from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - SCORING_QUEUE_NAME (optional)
func ConnectPublisher(logger *log.Logger) (*Publisher, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Publisher{
		rdb:    rdb,
		queue:  getEnv("SCORING_QUEUE_NAME", DefaultQueueName),
		logger: logger,
	}, nil
}

// Dispatch serializes the batch and RPushes it onto the scoring queue.
func (p *Publisher) Dispatch(ctx context.Context, userID, roomID uuid.UUID, chars []models.CharacterStat) {
	batch := StatBatch{
		UserID:    userID,
		RoomID:    roomID,
		Chars:     chars,
		Timestamp: time.Now().UnixMilli(),
	}
	data, err := json.Marshal(batch)
	if err != nil {
		p.logger.WithError(err).Warn("failed to marshal scoring batch")
		return
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		p.logger.WithError(err).WithField("queue", p.queue).Warn("failed to enqueue scoring batch")
	}
}

func (p *Publisher) Close() error {
	return p.rdb.Close()
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
