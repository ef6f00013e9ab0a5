// Package testutil provides an in-memory Store fake mirroring the semantics
// the pgx implementation gets from Postgres constraints: join-code uniqueness
// among live rooms, one membership row per (room, user), one speed record per
// (user, room), and wholesale character-stat replacement.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/typeloop/typeloop/internal/apperr"
	"github.com/typeloop/typeloop/internal/auth"
	"github.com/typeloop/typeloop/internal/models"
	"github.com/typeloop/typeloop/internal/room"
	"github.com/typeloop/typeloop/internal/stats"
)

type speedKey struct {
	userID uuid.UUID
	roomID uuid.UUID
}

type MemStore struct {
	mu        sync.Mutex
	rooms     map[uuid.UUID]*models.Room
	members   map[uuid.UUID]*models.RoomMember // by member id
	speeds    map[speedKey]*models.SpeedRecord
	charStats map[uuid.UUID][]models.CharacterStat // by speed record id
	users     map[uuid.UUID]*models.User
}

func NewMemStore() *MemStore {
	return &MemStore{
		rooms:     make(map[uuid.UUID]*models.Room),
		members:   make(map[uuid.UUID]*models.RoomMember),
		speeds:    make(map[speedKey]*models.SpeedRecord),
		charStats: make(map[uuid.UUID][]models.CharacterStat),
		users:     make(map[uuid.UUID]*models.User),
	}
}

// ---- room.Store ----

func (m *MemStore) CreateRoomWithCreator(ctx context.Context, rm *models.Room, creator *models.RoomMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.rooms {
		if existing.JoinCode == rm.JoinCode && !existing.Status.Terminal() {
			return apperr.ErrDuplicateJoinCode
		}
	}

	roomCopy := *rm
	memberCopy := *creator
	m.rooms[rm.ID] = &roomCopy
	m.members[creator.ID] = &memberCopy
	return nil
}

func (m *MemStore) RoomByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.rooms[id]
	if !ok {
		return nil, apperr.ErrRoomNotFound
	}
	cp := *rm
	return &cp, nil
}

func (m *MemStore) RoomByJoinCode(ctx context.Context, code string) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var newest *models.Room
	for _, rm := range m.rooms {
		if rm.JoinCode != code {
			continue
		}
		if newest == nil || rm.CreatedAt.After(newest.CreatedAt) {
			newest = rm
		}
	}
	if newest == nil {
		return nil, apperr.ErrRoomNotFound
	}
	cp := *newest
	return &cp, nil
}

func (m *MemStore) CountActiveRoomsByCreator(ctx context.Context, creatorID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, rm := range m.rooms {
		if rm.CreatorID == creatorID && !rm.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) Members(ctx context.Context, roomID uuid.UUID) ([]models.RoomMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.RoomMember
	for _, mb := range m.members {
		if mb.RoomID == roomID {
			out = append(out, *mb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *MemStore) MemberByUser(ctx context.Context, roomID, userID uuid.UUID) (*models.RoomMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mb := range m.members {
		if mb.RoomID == roomID && mb.UserID == userID {
			cp := *mb
			return &cp, nil
		}
	}
	return nil, apperr.ErrMemberNotFound
}

func (m *MemStore) AddMemberIfCapacity(ctx context.Context, member *models.RoomMember, maxPlayers int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := 0
	for _, mb := range m.members {
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

	rm, ok := m.rooms[member.RoomID]
	if !ok || rm.Status != models.RoomWaiting || !rm.CodeValid || active >= maxPlayers {
		return false, nil
	}

	cp := *member
	m.members[member.ID] = &cp
	return true, nil
}

func (m *MemStore) ReactivateMemberIfCapacity(ctx context.Context, roomID, memberID uuid.UUID, joinedAt time.Time, maxPlayers int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mb, ok := m.members[memberID]
	if !ok || mb.Status != models.MemberLeft {
		return false, nil
	}

	active := 0
	for _, other := range m.members {
		if other.RoomID == roomID && other.Status != models.MemberLeft {
			active++
		}
	}
	rm, ok := m.rooms[roomID]
	if !ok || rm.Status != models.RoomWaiting || !rm.CodeValid || active >= maxPlayers {
		return false, nil
	}

	mb.Status = models.MemberJoined
	mb.JoinedAt = joinedAt
	return true, nil
}

func (m *MemStore) UpdateMemberStatus(ctx context.Context, roomID, userID uuid.UUID, status models.MemberStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mb := range m.members {
		if mb.RoomID == roomID && mb.UserID == userID {
			mb.Status = status
		}
	}
	return nil
}

func (m *MemStore) TransitionRoom(ctx context.Context, roomID uuid.UUID, from []models.RoomStatus, to models.RoomStatus, update room.TransitionUpdate) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rm, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	matched := false
	for _, st := range from {
		if rm.Status == st {
			matched = true
			break
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

func (m *MemStore) ExpireRooms(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, rm := range m.rooms {
		if !rm.Status.Terminal() && rm.ExpiresAt.Before(now) {
			rm.Status = models.RoomExpired
			rm.CodeValid = false
			n++
		}
	}
	return n, nil
}

func (m *MemStore) SpeedRecords(ctx context.Context, roomID uuid.UUID) ([]models.SpeedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.SpeedRecord
	for _, rec := range m.speeds {
		if rec.RoomID == roomID {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}

// ---- stats.Store ----

func (m *MemStore) UpsertSpeedRecord(ctx context.Context, rec *models.SpeedRecord) (*models.SpeedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[rec.RoomID]; !ok {
		return nil, apperr.ErrRoomNotFound
	}

	key := speedKey{userID: rec.UserID, roomID: rec.RoomID}
	existing, ok := m.speeds[key]

	cp := *rec
	if ok {
		cp.ID = existing.ID
	} else {
		cp.ID = uuid.New()
	}
	if cp.IncorrectChars == nil {
		cp.IncorrectChars = []string{}
	}
	cp.UpdatedAt = time.Now()
	m.speeds[key] = &cp

	out := cp
	return &out, nil
}

func (m *MemStore) FindOrCreateSpeedRecord(ctx context.Context, userID, roomID uuid.UUID) (*models.SpeedRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return nil, apperr.ErrRoomNotFound
	}

	key := speedKey{userID: userID, roomID: roomID}
	if rec, ok := m.speeds[key]; ok {
		cp := *rec
		return &cp, nil
	}

	rec := &models.SpeedRecord{
		ID:                uuid.New(),
		UserID:            userID,
		RoomID:            roomID,
		IncorrectChars:    []string{},
		ParticipantStatus: models.ParticipantActive,
		UpdatedAt:         time.Now(),
	}
	m.speeds[key] = rec
	cp := *rec
	return &cp, nil
}

func (m *MemStore) ReplaceCharacterStats(ctx context.Context, speedRecordID uuid.UUID, chars []models.CharacterStat) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := make([]models.CharacterStat, len(chars))
	copy(batch, chars)
	m.charStats[speedRecordID] = batch
	return len(batch), nil
}

func (m *MemStore) MarkParticipantLeft(ctx context.Context, userID, roomID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec, ok := m.speeds[speedKey{userID: userID, roomID: roomID}]; ok {
		rec.ParticipantStatus = models.ParticipantLeft
		rec.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemStore) LeaderboardRows(ctx context.Context, roomID uuid.UUID) ([]stats.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []stats.LeaderboardEntry
	for _, rec := range m.speeds {
		if rec.RoomID != roomID {
			continue
		}
		name := ""
		if u, ok := m.users[rec.UserID]; ok {
			name = u.Username
		}
		out = append(out, stats.LeaderboardEntry{
			DisplayName:        name,
			WPM:                rec.WPM,
			CorrectWords:       rec.CorrectWordCount,
			IncorrectCharCount: len(rec.IncorrectChars),
			ParticipantStatus:  rec.ParticipantStatus,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WPM > out[j].WPM })
	return out, nil
}

// ---- user store ----

func (m *MemStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	for _, u := range m.users {
		if u.Email == user.Email {
			return apperr.New(apperr.CodeConflict, "email already registered")
		}
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MemStore) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

// AuthenticateUser compares the stored password verbatim (the fake does not
// hash) and mints a real session token.
func (m *MemStore) AuthenticateUser(ctx context.Context, email, password string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email && u.Password == password {
			return auth.CreateJWT(u.ID.String())
		}
	}
	return "", apperr.ErrUnauthorized
}

// CharacterStats exposes the stored batch for assertions.
func (m *MemStore) CharacterStats(speedRecordID uuid.UUID) []models.CharacterStat {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := m.charStats[speedRecordID]
	out := make([]models.CharacterStat, len(batch))
	copy(out, batch)
	return out
}
