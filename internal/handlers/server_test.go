package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/typeloop/typeloop/internal/auth"
	"github.com/typeloop/typeloop/internal/models"
	"github.com/typeloop/typeloop/internal/room"
	"github.com/typeloop/typeloop/internal/session"
	"github.com/typeloop/typeloop/internal/stats"
	"github.com/typeloop/typeloop/internal/testutil"
)

var testEpoch = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store *testutil.MemStore
	clock *clockwork.FakeClock
	srv   *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	auth.Init()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := testutil.NewMemStore()
	fc := clockwork.NewFakeClockAt(testEpoch)
	sclock := session.NewClock(fc)

	registry := room.NewRegistry(store, sclock, room.Config{}, logger)
	tracker := stats.NewTracker(store, logger)
	analytics := stats.NewAnalytics(store, nil, logger)
	leaderboard := stats.NewLeaderboard(store)

	return &fixture{
		store: store,
		clock: fc,
		srv:   NewServer(registry, tracker, analytics, leaderboard, store, logger),
	}
}

// newUser registers an account directly in the store and mints its session cookie.
func (f *fixture) newUser(t *testing.T, username string) (uuid.UUID, *http.Cookie) {
	t.Helper()
	u := models.User{
		Email:    username + "@example.com",
		Password: "hunter2",
		Username: username,
	}
	require.NoError(t, f.store.CreateUser(context.Background(), &u))

	token, err := auth.CreateJWT(u.ID.String())
	require.NoError(t, err)
	return u.ID, &http.Cookie{Name: "auth_token", Value: token}
}

func (f *fixture) do(t *testing.T, handler http.HandlerFunc, method, target string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
