package room

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/models"
	"github.com/typeloop/typeloop/internal/session"
)

var testEpoch = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

// fakeStore is an in-memory Store with the same guard semantics the pgx
// implementation gets from Postgres constraints.
type fakeStore struct {
	mu      sync.Mutex
	rooms   map[uuid.UUID]*models.Room
	members map[uuid.UUID]*models.RoomMember
	speeds  []models.SpeedRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		rooms:   make(map[uuid.UUID]*models.Room),
		members: make(map[uuid.UUID]*models.RoomMember),
	}
}

func (f *fakeStore) CreateRoomWithCreator(ctx context.Context, rm *models.Room, creator *models.RoomMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.rooms {
		if existing.JoinCode == rm.JoinCode && !existing.Status.Terminal() {
			return apperr.ErrDuplicateJoinCode
		}
	}
	roomCopy, memberCopy := *rm, *creator
	f.rooms[rm.ID] = &roomCopy
	f.members[creator.ID] = &memberCopy
	return nil
}

func (f *fakeStore) RoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rm, ok := f.rooms[id]
	if !ok {
		return nil, apperr.ErrRoomNotFound
	}
	cp := *rm
	return &cp, nil
}

func (f *fakeStore) RoomByJoinCode(ctx context.Context, code string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var newest *models.Room
	for _, rm := range f.rooms {
		if rm.JoinCode == code && (newest == nil || rm.CreatedAt.After(newest.CreatedAt)) {
			newest = rm
		}
	}
	if newest == nil {
		return nil, apperr.ErrRoomNotFound
	}
	cp := *newest
	return &cp, nil
}

func (f *fakeStore) CountActiveRoomsByCreator(ctx context.Context, creatorID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, rm := range f.rooms {
		if rm.CreatorID == creatorID && !rm.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Members(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.RoomMember
	for _, mb := range f.members {
		if mb.RoomID == roomID {
			out = append(out, *mb)
		}
	}
	return out, nil
}

func (f *fakeStore) MemberByUser(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, mb := range f.members {
		if mb.RoomID == roomID && mb.UserID == userID {
			cp := *mb
			return &cp, nil
		}
	}
	return nil, apperr.ErrMemberNotFound
}

func (f *fakeStore) AddMemberIfCapacity(ctx context.Context, member *models.RoomMember, maxPlayers int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	active := 0
	for _, mb := range f.members {
		if mb.RoomID != member.RoomID {
			continue
		}
		if mb.UserID == member.UserID {
			return false, apperr.ErrAlreadyInRoom
		}
		if mb.Status != models.MemberLeft {
			active++
		}
	}
	rm, ok := f.rooms[member.RoomID]
	if !ok || rm.Status != models.RoomWaiting || !rm.CodeValid || active >= maxPlayers {
		return false, nil
	}
	cp := *member
	f.members[member.ID] = &cp
	return true, nil
}

func (f *fakeStore) ReactivateMemberIfCapacity(ctx context.Context, roomID, memberID uuid.UUID, joinedAt time.Time, maxPlayers int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mb, ok := f.members[memberID]
	if !ok || mb.Status != models.MemberLeft {
		return false, nil
	}
	active := 0
	for _, other := range f.members {
		if other.RoomID == roomID && other.Status != models.MemberLeft {
			active++
		}
	}
	rm, ok := f.rooms[roomID]
	if !ok || rm.Status != models.RoomWaiting || !rm.CodeValid || active >= maxPlayers {
		return false, nil
	}
	mb.Status = models.MemberJoined
	mb.JoinedAt = joinedAt
	return true, nil
}

func (f *fakeStore) UpdateMemberStatus(ctx context.Context, roomID, userID uuid.UUID, status models.MemberStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, mb := range f.members {
		if mb.RoomID == roomID && mb.UserID == userID {
			mb.Status = status
		}
	}
	return nil
}

func (f *fakeStore) TransitionRoom(ctx context.Context, roomID uuid.UUID, from []models.RoomStatus, to models.RoomStatus, update TransitionUpdate) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rm, ok := f.rooms[roomID]
	if !ok {
		return nil, nil
	}
	matched := false
	for _, st := range from {
		if rm.Status == st {
			matched = true
		}
	}
	if !matched {
		return nil, nil
	}
	rm.Status = to
	if update.InvalidateCode {
		rm.CodeValid = false
	}
	if !update.ExpiresAt.IsZero() {
		rm.ExpiresAt = update.ExpiresAt
	}
	cp := *rm
	return &cp, nil
}

func (f *fakeStore) ExpireRooms(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, rm := range f.rooms {
		if !rm.Status.Terminal() && rm.ExpiresAt.Before(now) {
			rm.Status = models.RoomExpired
			rm.CodeValid = false
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SpeedRecords(ctx context.Context, roomID uuid.UUID) ([]models.SpeedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SpeedRecord
	for _, rec := range f.speeds {
		if rec.RoomID == roomID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func quietLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestRegistry(t *testing.T) (*fakeStore, *Registry, *clockwork.FakeClock) {
	t.Helper()
	store := newFakeStore()
	fc := clockwork.NewFakeClockAt(testEpoch)
	registry := NewRegistry(store, session.NewClock(fc), Config{}, quietLogger())
	return store, registry, fc
}

func validConfig() CreateConfig {
	return CreateConfig{Name: "friday sprint", MaxPlayers: 4, TimeLimitSeconds: 120}
}

func TestCreateRoom(t *testing.T) {
	_, registry, _ := newTestRegistry(t)
	creator := uuid.New()

	rm, err := registry.Create(context.Background(), creator, validConfig())
	require.NoError(t, err)

	assert.Equal(t, models.RoomWaiting, rm.Status)
	assert.Len(t, rm.JoinCode, JoinCodeLength)
	assert.True(t, rm.CodeValid)
	assert.Equal(t, testEpoch.Add(session.DefaultAbandonTimeout), rm.ExpiresAt)

	snap, err := registry.Get(context.Background(), rm.ID)
	require.NoError(t, err)
	require.Len(t, snap.Members, 1)
	assert.Equal(t, models.RoleCreator, snap.Members[0].Role)
	assert.Equal(t, creator, snap.Members[0].UserID)
}

func TestCreateValidation(t *testing.T) {
	_, registry, _ := newTestRegistry(t)
	creator := uuid.New()

	for name, cfg := range map[string]CreateConfig{
		"empty name":          {Name: "", MaxPlayers: 4, TimeLimitSeconds: 120},
		"too few players":     {Name: "x", MaxPlayers: 1, TimeLimitSeconds: 120},
		"too many players":    {Name: "x", MaxPlayers: 11, TimeLimitSeconds: 120},
		"time limit too low":  {Name: "x", MaxPlayers: 4, TimeLimitSeconds: 10},
		"time limit too high": {Name: "x", MaxPlayers: 4, TimeLimitSeconds: 601},
	} {
		_, err := registry.Create(context.Background(), creator, cfg)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err), name)
	}
}

func TestCreateRetriesOnJoinCodeCollision(t *testing.T) {
	_, registry, _ := newTestRegistry(t)

	registry.genCode = func() string { return "AAAAAA" }
	first, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)
	require.Equal(t, "AAAAAA", first.JoinCode)

	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	registry.genCode = func() string {
		code := codes[0]
		codes = codes[1:]
		return code
	}
	second, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.JoinCode)
}

func TestCreateFailsAfterExhaustingCodeAttempts(t *testing.T) {
	store, registry, _ := newTestRegistry(t)

	registry.genCode = func() string { return "AAAAAA" }
	_, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)

	_, err = registry.Create(context.Background(), uuid.New(), validConfig())
	assert.ErrorIs(t, err, apperr.ErrJoinCodeGeneration)
	assert.Len(t, store.rooms, 1, "no partial room must survive a failed create")
}

func TestCreateEnforcesCreatorRoomCap(t *testing.T) {
	_, registry, _ := newTestRegistry(t)
	creator := uuid.New()

	for i := 0; i < DefaultCreatorRoomCap; i++ {
		_, err := registry.Create(context.Background(), creator, validConfig())
		require.NoError(t, err)
	}
	_, err := registry.Create(context.Background(), creator, validConfig())
	assert.ErrorIs(t, err, apperr.ErrRoomLimitExceeded)
}

func TestJoinRoom(t *testing.T) {
	_, registry, _ := newTestRegistry(t)

	rm, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)

	joiner := uuid.New()
	snap, err := registry.Join(context.Background(), rm.JoinCode, joiner)
	require.NoError(t, err)
	assert.Len(t, snap.Members, 2)
}

func TestJoinUnknownCode(t *testing.T) {
	_, registry, _ := newTestRegistry(t)

	_, err := registry.Join(context.Background(), "NOSUCH", uuid.New())
	assert.ErrorIs(t, err, apperr.ErrRoomNotFound)
}

func TestJoinTwiceConflicts(t *testing.T) {
	_, registry, _ := newTestRegistry(t)

	rm, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)

	joiner := uuid.New()
	_, err = registry.Join(context.Background(), rm.JoinCode, joiner)
	require.NoError(t, err)

	_, err = registry.Join(context.Background(), rm.JoinCode, joiner)
	assert.ErrorIs(t, err, apperr.ErrAlreadyInRoom)
}

func TestJoinFullRoom(t *testing.T) {
	_, registry, _ := newTestRegistry(t)

	cfg := validConfig()
	cfg.MaxPlayers = 2
	rm, err := registry.Create(context.Background(), uuid.New(), cfg)
	require.NoError(t, err)

	_, err = registry.Join(context.Background(), rm.JoinCode, uuid.New())
	require.NoError(t, err)

	_, err = registry.Join(context.Background(), rm.JoinCode, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrRoomFull)
}

func TestJoinAfterStartRejected(t *testing.T) {
	_, registry, _ := newTestRegistry(t)
	creator := uuid.New()

	rm, err := registry.Create(context.Background(), creator, validConfig())
	require.NoError(t, err)
	_, err = registry.Join(context.Background(), rm.JoinCode, uuid.New())
	require.NoError(t, err)

	_, err = registry.Transition(context.Background(), rm.ID, models.RoomInGame, creator)
	require.NoError(t, err)

	_, err = registry.Join(context.Background(), rm.JoinCode, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrRoomInGame)
}

func TestJoinExpiredRoom(t *testing.T) {
	store, registry, fc := newTestRegistry(t)

	rm, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)

	fc.Advance(session.DefaultAbandonTimeout + time.Second)

	_, err = registry.Join(context.Background(), rm.JoinCode, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrRoomExpired)

	// the failed join expired the room on access
	assert.Equal(t, models.RoomExpired, store.rooms[rm.ID].Status)
}

func TestRejoinReactivatesMembership(t *testing.T) {
	store, registry, _ := newTestRegistry(t)

	rm, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)

	joiner := uuid.New()
	snap, err := registry.Join(context.Background(), rm.JoinCode, joiner)
	require.NoError(t, err)

	var originalMemberID uuid.UUID
	for _, mb := range snap.Members {
		if mb.UserID == joiner {
			originalMemberID = mb.ID
		}
	}
	require.NotEqual(t, uuid.Nil, originalMemberID)

	require.NoError(t, registry.Leave(context.Background(), rm.ID, joiner))

	snap, err = registry.Join(context.Background(), rm.JoinCode, joiner)
	require.NoError(t, err)
	assert.Len(t, snap.Members, 2, "rejoin must not grow the member list")

	mb := store.members[originalMemberID]
	require.NotNil(t, mb)
	assert.Equal(t, models.MemberJoined, mb.Status)
}

func TestRejoinAfterSlotRefilledRejected(t *testing.T) {
	store, registry, _ := newTestRegistry(t)

	cfg := validConfig()
	cfg.MaxPlayers = 2
	rm, err := registry.Create(context.Background(), uuid.New(), cfg)
	require.NoError(t, err)

	leaver := uuid.New()
	_, err = registry.Join(context.Background(), rm.JoinCode, leaver)
	require.NoError(t, err)
	require.NoError(t, registry.Leave(context.Background(), rm.ID, leaver))

	// someone else takes the freed slot
	_, err = registry.Join(context.Background(), rm.JoinCode, uuid.New())
	require.NoError(t, err)

	_, err = registry.Join(context.Background(), rm.JoinCode, leaver)
	assert.ErrorIs(t, err, apperr.ErrRoomFull)

	active := 0
	for _, mb := range store.members {
		if mb.RoomID == rm.ID && mb.Status != models.MemberLeft {
			active++
		}
	}
	assert.LessOrEqual(t, active, cfg.MaxPlayers, "rejoin must never push a room over capacity")

	returning, err := store.MemberByUser(context.Background(), rm.ID, leaver)
	require.NoError(t, err)
	assert.Equal(t, models.MemberLeft, returning.Status, "a rejected rejoin must not flip the row")
}

func TestStartRace(t *testing.T) {
	store, registry, _ := newTestRegistry(t)
	creator := uuid.New()

	cfg := validConfig()
	cfg.TimeLimitSeconds = 120
	rm, err := registry.Create(context.Background(), creator, cfg)
	require.NoError(t, err)

	snap, err := registry.Transition(context.Background(), rm.ID, models.RoomInGame, creator)
	require.NoError(t, err)

	assert.Equal(t, models.RoomInGame, snap.Room.Status)
	assert.False(t, snap.Room.CodeValid, "starting must close the join code")
	assert.Equal(t,
		testEpoch.Add(120*time.Second+session.DefaultFinishGrace),
		store.rooms[rm.ID].ExpiresAt,
		"starting must extend expiry to the play deadline")
}

func TestStartByNonCreatorRejected(t *testing.T) {
	_, registry, _ := newTestRegistry(t)

	rm, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)

	joiner := uuid.New()
	_, err = registry.Join(context.Background(), rm.JoinCode, joiner)
	require.NoError(t, err)

	_, err = registry.Transition(context.Background(), rm.ID, models.RoomInGame, joiner)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestTransitionByNonMemberRejected(t *testing.T) {
	_, registry, _ := newTestRegistry(t)

	rm, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)

	_, err = registry.Transition(context.Background(), rm.ID, models.RoomFinished, uuid.New())
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestStartStaleWaitingRoomExpiresInstead(t *testing.T) {
	store, registry, fc := newTestRegistry(t)
	creator := uuid.New()

	rm, err := registry.Create(context.Background(), creator, validConfig())
	require.NoError(t, err)

	fc.Advance(session.DefaultAbandonTimeout + time.Second)

	_, err = registry.Transition(context.Background(), rm.ID, models.RoomInGame, creator)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.Equal(t, models.RoomExpired, store.rooms[rm.ID].Status,
		"a stale WAITING room must expire, never start")
}

func TestDuplicateFinishIsIdempotent(t *testing.T) {
	_, registry, _ := newTestRegistry(t)
	creator := uuid.New()

	rm, err := registry.Create(context.Background(), creator, validConfig())
	require.NoError(t, err)
	_, err = registry.Transition(context.Background(), rm.ID, models.RoomInGame, creator)
	require.NoError(t, err)

	first, err := registry.Transition(context.Background(), rm.ID, models.RoomFinished, creator)
	require.NoError(t, err)
	assert.Equal(t, models.RoomFinished, first.Room.Status)

	// a second client observing the same deadline reports finish too
	second, err := registry.Transition(context.Background(), rm.ID, models.RoomFinished, creator)
	require.NoError(t, err)
	assert.Equal(t, models.RoomFinished, second.Room.Status)
}

func TestStartFinishedRoomRejected(t *testing.T) {
	_, registry, _ := newTestRegistry(t)
	creator := uuid.New()

	rm, err := registry.Create(context.Background(), creator, validConfig())
	require.NoError(t, err)
	_, err = registry.Transition(context.Background(), rm.ID, models.RoomInGame, creator)
	require.NoError(t, err)
	_, err = registry.Transition(context.Background(), rm.ID, models.RoomFinished, creator)
	require.NoError(t, err)

	_, err = registry.Transition(context.Background(), rm.ID, models.RoomInGame, creator)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestTransitionToWaitingRejected(t *testing.T) {
	_, registry, _ := newTestRegistry(t)
	creator := uuid.New()

	rm, err := registry.Create(context.Background(), creator, validConfig())
	require.NoError(t, err)

	_, err = registry.Transition(context.Background(), rm.ID, models.RoomWaiting, creator)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestGetExpiresStaleRoom(t *testing.T) {
	_, registry, fc := newTestRegistry(t)

	rm, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)

	fc.Advance(session.DefaultAbandonTimeout + time.Second)

	snap, err := registry.Get(context.Background(), rm.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomExpired, snap.Room.Status,
		"no poll may observe a joinable room past its deadline")
}

func TestLeaveIsIdempotent(t *testing.T) {
	_, registry, _ := newTestRegistry(t)

	rm, err := registry.Create(context.Background(), uuid.New(), validConfig())
	require.NoError(t, err)

	joiner := uuid.New()
	_, err = registry.Join(context.Background(), rm.JoinCode, joiner)
	require.NoError(t, err)

	assert.NoError(t, registry.Leave(context.Background(), rm.ID, joiner))
	assert.NoError(t, registry.Leave(context.Background(), rm.ID, joiner), "duplicate beacon")
	assert.NoError(t, registry.Leave(context.Background(), rm.ID, uuid.New()), "beacon from a stranger")
}
