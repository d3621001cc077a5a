package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"ffinder-server/store"
)

const testSecret = "test-secret"

type recordingMailer struct {
	mu   sync.Mutex
	sent []InviteMail
	err  error
}

func (m *recordingMailer) SendInvite(_ context.Context, mail InviteMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail)
	return m.err
}

func (m *recordingMailer) last(t *testing.T) InviteMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no invitation sent")
	return m.sent[len(m.sent)-1]
}

type testEnv struct {
	store   store.Store
	redis   *redis.Client
	mailer  *recordingMailer
	users   *UserService
	invites *InviteService
	groups  *GroupService
	rooms   *RoomService
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewBadgerStore("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// newTestEnv wires every service against an in-memory store. withRedis
// adds a miniredis-backed cache and geo index.
func newTestEnv(t *testing.T, withRedis bool) *testEnv {
	t.Helper()
	env := &testEnv{store: newTestStore(t), mailer: &recordingMailer{}}
	if withRedis {
		env.redis = newTestRedis(t)
	}
	env.users = NewUserService(env.store, env.redis, UserServiceConfig{
		TokenSecret: testSecret,
		TokenTTL:    time.Hour,
		Timeout:     time.Second,
	})
	env.invites = NewInviteService(env.store, env.users, env.mailer, "https://ffinder.example/", time.Second)
	env.groups = NewGroupService(env.store, env.users, env.invites, time.Second)
	env.rooms = NewRoomService(env.store, time.Second)
	return env
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	i := strings.LastIndex(link, "/confirm/")
	require.GreaterOrEqual(t, i, 0, "unexpected link %q", link)
	return link[i+len("/confirm/"):]
}
