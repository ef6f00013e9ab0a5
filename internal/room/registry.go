// internal/room/registry.go
package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
	"github.com/typeloop/typeloop/internal/session"
)

const (
	MinPlayers       = 2
	MaxPlayers       = 10
	MinTimeLimitSec  = 30
	MaxTimeLimitSec  = 600
	MaxNameLength    = 64
	MaxCustomTextLen = 2000

	// DefaultCreatorRoomCap limits how many WAITING/IN_GAME rooms one user may own.
	DefaultCreatorRoomCap = 3

	// DefaultCodeAttempts bounds join-code collision retries before the
	// request surfaces JoinCodeGenerationFailed.
	DefaultCodeAttempts = 10
)

// Config tunes the registry. Zero values fall back to the defaults above.
type Config struct {
	CreatorRoomCap int
	CodeAttempts   int
}

func (c Config) withDefaults() Config {
	if c.CreatorRoomCap <= 0 {
		c.CreatorRoomCap = DefaultCreatorRoomCap
	}
	if c.CodeAttempts <= 0 {
		c.CodeAttempts = DefaultCodeAttempts
	}
	return c
}

// CreateConfig is the client-supplied room configuration.
type CreateConfig struct {
	Name             string `json:"name"`
	MaxPlayers       int    `json:"maxPlayers"`
	IsPrivate        bool   `json:"isPrivate"`
	TimeLimitSeconds int    `json:"timeLimitSeconds"`
	CustomText       string `json:"customText,omitempty"`
}

// Registry owns the room lifecycle state machine: creation, joins, status
// transitions and the polling read. All cross-client races are settled by the
// store's transactional guarantees.
type Registry struct {
	store  Store
	clock  *session.Clock
	cfg    Config
	logger *log.Logger

	// genCode is swappable in tests to force collisions.
	genCode func() string
}

func NewRegistry(store Store, clock *session.Clock, cfg Config, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Registry{
		store:   store,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		logger:  logger,
		genCode: NewJoinCode,
	}
}

func validateCreate(cfg CreateConfig) error {
	if cfg.Name == "" || len(cfg.Name) > MaxNameLength {
		return apperr.Validation("room name must be 1-%d characters", MaxNameLength)
	}
	if cfg.MaxPlayers < MinPlayers || cfg.MaxPlayers > MaxPlayers {
		return apperr.Validation("maxPlayers must be between %d and %d", MinPlayers, MaxPlayers)
	}
	if cfg.TimeLimitSeconds < MinTimeLimitSec || cfg.TimeLimitSeconds > MaxTimeLimitSec {
		return apperr.Validation("timeLimitSeconds must be between %d and %d", MinTimeLimitSec, MaxTimeLimitSec)
	}
	if len(cfg.CustomText) > MaxCustomTextLen {
		return apperr.Validation("customText must be at most %d characters", MaxCustomTextLen)
	}
	return nil
}

// Create validates the config, enforces the per-creator cap, and inserts the
// room together with the creator's CREATOR membership in one transaction.
// Join-code issuance treats "generate, check, insert" as racy on purpose and
// retries on the storage layer's uniqueness violation up to CodeAttempts.
func (r *Registry) Create(ctx context.Context, creatorID uuid.UUID, cfg CreateConfig) (*models.Room, error) {
	if err := validateCreate(cfg); err != nil {
		return nil, err
	}

	active, err := r.store.CountActiveRoomsByCreator(ctx, creatorID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if active >= r.cfg.CreatorRoomCap {
		return nil, apperr.ErrRoomLimitExceeded
	}

	now := r.clock.Now()
	for attempt := 0; attempt < r.cfg.CodeAttempts; attempt++ {
		rm := &models.Room{
			ID:               uuid.New(),
			Name:             cfg.Name,
			JoinCode:         r.genCode(),
			CreatorID:        creatorID,
			MaxPlayers:       cfg.MaxPlayers,
			IsPrivate:        cfg.IsPrivate,
			Status:           models.RoomWaiting,
			TimeLimitSeconds: cfg.TimeLimitSeconds,
			CustomText:       cfg.CustomText,
			CodeValid:        true,
			CreatedAt:        now,
			ExpiresAt:        r.clock.WaitingDeadline(now),
		}
		creator := &models.RoomMember{
			ID:       uuid.New(),
			RoomID:   rm.ID,
			UserID:   creatorID,
			Role:     models.RoleCreator,
			Status:   models.MemberJoined,
			JoinedAt: now,
		}

		err := r.store.CreateRoomWithCreator(ctx, rm, creator)
		if err == nil {
			r.logger.WithFields(log.Fields{
				"room":    rm.ID,
				"code":    rm.JoinCode,
				"creator": creatorID,
			}).Info("room created")
			return rm, nil
		}
		if errors.Is(err, apperr.ErrDuplicateJoinCode) {
			continue
		}
		return nil, apperr.Internal(err)
	}
	return nil, apperr.ErrJoinCodeGeneration
}

// Join admits a user via join code. Rejoin after leave reactivates the
// existing membership row rather than inserting a duplicate. A stale WAITING
// room observed here is lazily expired, never joined.
func (r *Registry) Join(ctx context.Context, joinCode string, userID uuid.UUID) (*models.RoomSnapshot, error) {
	rm, err := r.store.RoomByJoinCode(ctx, joinCode)
	if err != nil {
		return nil, err
	}

	if r.clock.Expired(rm) {
		r.expireLazily(ctx, rm.ID)
		return nil, apperr.ErrRoomExpired
	}
	switch {
	case rm.Status == models.RoomExpired:
		return nil, apperr.ErrRoomExpired
	case rm.Status == models.RoomFinished:
		return nil, apperr.ErrRoomFinished
	case rm.Status == models.RoomInGame || !rm.CodeValid:
		// no late joins once play starts
		return nil, apperr.ErrRoomInGame
	}

	now := r.clock.Now()

	existing, err := r.store.MemberByUser(ctx, rm.ID, userID)
	if err != nil && !errors.Is(err, apperr.ErrMemberNotFound) {
		return nil, apperr.Internal(err)
	}
	if existing != nil {
		if existing.Status != models.MemberLeft {
			return nil, apperr.ErrAlreadyInRoom
		}
		// Rejoin competes for capacity like any other join: leaving freed the
		// slot, and someone else may have taken it since.
		ok, err := r.store.ReactivateMemberIfCapacity(ctx, rm.ID, existing.ID, now, rm.MaxPlayers)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if !ok {
			return nil, r.joinRejection(ctx, rm.ID)
		}
		return r.Get(ctx, rm.ID)
	}

	member := &models.RoomMember{
		ID:       uuid.New(),
		RoomID:   rm.ID,
		UserID:   userID,
		Role:     models.RolePlayer,
		Status:   models.MemberJoined,
		JoinedAt: now,
	}
	ok, err := r.store.AddMemberIfCapacity(ctx, member, rm.MaxPlayers)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyInRoom) {
			// a concurrent join by the same user landed first
			return nil, apperr.ErrAlreadyInRoom
		}
		return nil, apperr.Internal(err)
	}
	if !ok {
		return nil, r.joinRejection(ctx, rm.ID)
	}

	r.logger.WithFields(log.Fields{"room": rm.ID, "user": userID}).Info("user joined room")
	return r.Get(ctx, rm.ID)
}

// joinRejection reports why a join guard did not match: either capacity was
// reached or a start landed between the status read and the write.
func (r *Registry) joinRejection(ctx context.Context, roomID uuid.UUID) error {
	cur, err := r.store.RoomByID(ctx, roomID)
	if err == nil && cur.Status != models.RoomWaiting {
		return apperr.ErrRoomInGame
	}
	return apperr.ErrRoomFull
}

// Transition requests a status change. Legal moves are WAITING -> IN_GAME
// (creator only) and * -> {FINISHED, EXPIRED}. Finish requests are expected
// to race across clients observing the same deadline: a request that finds
// the room already terminal is answered idempotently with the current state,
// never treated as an error. Everything else is InvalidTransition.
func (r *Registry) Transition(ctx context.Context, roomID uuid.UUID, target models.RoomStatus, actingUserID uuid.UUID) (*models.RoomSnapshot, error) {
	rm, err := r.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	member, err := r.store.MemberByUser(ctx, roomID, actingUserID)
	if err != nil || member.Status == models.MemberLeft {
		return nil, apperr.ErrUnauthorized
	}

	switch target {
	case models.RoomInGame:
		if rm.CreatorID != actingUserID {
			return nil, apperr.ErrUnauthorized
		}
		if rm.Status != models.RoomWaiting || r.clock.Expired(rm) {
			r.expireLazily(ctx, rm.ID)
			return nil, apperr.ErrInvalidTransition
		}
		now := r.clock.Now()
		updated, err := r.store.TransitionRoom(ctx, roomID,
			[]models.RoomStatus{models.RoomWaiting}, models.RoomInGame,
			TransitionUpdate{
				InvalidateCode: true,
				ExpiresAt:      r.clock.PlayDeadline(now, rm.TimeLimitSeconds),
			})
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if updated == nil {
			// lost the race to another transition
			return nil, apperr.ErrInvalidTransition
		}
		r.logger.WithFields(log.Fields{"room": roomID, "by": actingUserID}).Info("race started")

	case models.RoomFinished, models.RoomExpired:
		if rm.Status.Terminal() {
			// duplicate finish/expire: first writer won, converge silently
			return r.Get(ctx, roomID)
		}
		updated, err := r.store.TransitionRoom(ctx, roomID,
			[]models.RoomStatus{models.RoomWaiting, models.RoomInGame}, target,
			TransitionUpdate{InvalidateCode: true})
		if err != nil {
			return nil, apperr.Internal(err)
		}
		if updated == nil {
			// another client's finish landed first; still idempotent
			return r.Get(ctx, roomID)
		}
		r.logger.WithFields(log.Fields{"room": roomID, "status": target}).Info("room closed")

	default:
		return nil, apperr.Wrap(apperr.ErrInvalidTransition,
			fmt.Errorf("target status %q is not reachable", target))
	}

	return r.Get(ctx, roomID)
}

// Get is the polling read used by both the waiting room and the in-game view.
// A stale room observed here is expired before being returned, so no poll can
// ever see a joinable room that is past its deadline.
func (r *Registry) Get(ctx context.Context, roomID uuid.UUID) (*models.RoomSnapshot, error) {
	rm, err := r.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if r.clock.Expired(rm) {
		if expired := r.expireLazily(ctx, roomID); expired != nil {
			rm = expired
		}
	}

	members, err := r.store.Members(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	records, err := r.store.SpeedRecords(ctx, roomID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &models.RoomSnapshot{Room: *rm, Members: members, SpeedRecords: records}, nil
}

// Leave is the server side of the departure beacon. It is best-effort and
// idempotent: a duplicate or late beacon is a harmless no-op, and callers
// never react to its outcome.
func (r *Registry) Leave(ctx context.Context, roomID, userID uuid.UUID) error {
	member, err := r.store.MemberByUser(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, apperr.ErrMemberNotFound) {
			return nil
		}
		return apperr.Internal(err)
	}
	if member.Status == models.MemberLeft {
		return nil
	}
	if err := r.store.UpdateMemberStatus(ctx, roomID, userID, models.MemberLeft); err != nil {
		return apperr.Internal(err)
	}
	r.logger.WithFields(log.Fields{"room": roomID, "user": userID}).Info("user left room")
	return nil
}

// expireLazily moves a stale room to EXPIRED on access. Safe to lose the race
// against the sweeper or another request doing the same.
func (r *Registry) expireLazily(ctx context.Context, roomID uuid.UUID) *models.Room {
	updated, err := r.store.TransitionRoom(ctx, roomID,
		[]models.RoomStatus{models.RoomWaiting, models.RoomInGame}, models.RoomExpired,
		TransitionUpdate{InvalidateCode: true})
	if err != nil {
		r.logger.WithError(err).WithField("room", roomID).Warn("lazy expire failed")
		return nil
	}
	return updated
}
