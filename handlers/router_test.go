package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffinder-server/services"
	"ffinder-server/store"
)

type fakeMailer struct {
	mu    sync.Mutex
	links []string
}

func (m *fakeMailer) SendInvite(_ context.Context, mail services.InviteMail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, mail.Link)
	return nil
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"error"`
	StatusCode int `json:"status_code"`
}

type testServer struct {
	handler http.Handler
	mailer  *fakeMailer
}

func newTestServer(t *testing.T, rateLimit int) *testServer {
	t.Helper()
	st, err := store.NewBadgerStore("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	mailer := &fakeMailer{}
	users := services.NewUserService(st, nil, services.UserServiceConfig{
		TokenSecret: "test-secret",
		TokenTTL:    time.Hour,
		Timeout:     time.Second,
	})
	invites := services.NewInviteService(st, users, mailer, "http://ffinder.test", time.Second)
	return &testServer{
		mailer: mailer,
		handler: NewRouter(RouterConfig{
			Users:       users,
			Groups:      services.NewGroupService(st, users, invites, time.Second),
			Invites:     invites,
			Rooms:       services.NewRoomService(st, time.Second),
			Store:       st,
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   rateLimit,
			RateWindow:  time.Minute,
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(data))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "FFINDER "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (s *testServer) register(t *testing.T, email string) (id, token string) {
	t.Helper()
	rec, env := s.do(t, http.MethodPost, "/users/register", "", map[string]string{"email": email, "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var profile struct {
		ID          string `json:"id"`
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	require.NotEmpty(t, profile.AccessToken)
	return profile.ID, profile.AccessToken
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t, 0)
	_, token := s.register(t, "alice@example.com")

	tt := []struct {
		name   string
		header string
	}{
		{name: "Missing", header: ""},
		{name: "Wrong scheme", header: "Bearer " + token},
		{name: "Unknown token", header: "FFINDER nope"},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)

			require.Equal(t, http.StatusForbidden, rec.Code)
			var env envelope
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
			require.NotNil(t, env.Error)
			assert.Equal(t, "Forbidden", env.Error.Name)
			assert.Equal(t, http.StatusForbidden, env.StatusCode)
		})
	}

	rec, env := s.do(t, http.MethodGet, "/users/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusOK, env.StatusCode)
	assert.Nil(t, env.Error)
}

func TestUnmatchedRoutes(t *testing.T) {
	s := newTestServer(t, 0)

	rec, env := s.do(t, http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "PageNotFound", env.Error.Name)

	rec, env = s.do(t, http.MethodGet, "/users/register", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "MethodNotAllowed", env.Error.Name)
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t, 0)
	id, token := s.register(t, "alice@example.com")

	rec, env := s.do(t, http.MethodPost, "/users/register", "", map[string]string{"email": "alice@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UsedEmail", env.Error.Name)

	rec, env = s.do(t, http.MethodPost, "/users/register", "", map[string]string{"email": "bob@example.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "BadRequest", env.Error.Name)

	rec, env = s.do(t, http.MethodPost, "/users/login", "", map[string]string{"email": "alice@example.com", "password": "wrong!!"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "IncorrectEmailOrPassword", env.Error.Name)

	rec, env = s.do(t, http.MethodPost, "/users/login", "", map[string]string{"email": "alice@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rec.Code)
	var profile map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &profile))
	assert.Equal(t, id, profile["id"])
	assert.NotEqual(t, token, profile["access_token"])
	assert.NotContains(t, profile, "password")
}

func TestGroupFlow(t *testing.T) {
	s := newTestServer(t, 0)
	aliceID, alice := s.register(t, "alice@example.com")
	bobID, bob := s.register(t, "bob@example.com")

	rec, env := s.do(t, http.MethodPost, "/groups", alice, map[string]string{"group_id": "g1", "name": "Friends"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var group struct {
		ID    string   `json:"id"`
		Users []string `json:"users"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &group))
	assert.Equal(t, []string{aliceID}, group.Users)

	rec, _ = s.do(t, http.MethodGet, "/groups/g1/locations", bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, env = s.do(t, http.MethodPost, "/groups/g1/add", alice, map[string]string{"user_id": bobID})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &group))
	assert.Equal(t, []string{aliceID, bobID}, group.Users)

	rec, _ = s.do(t, http.MethodPost, "/groups/g1/add", alice, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/users/location", bob, map[string]float64{"lat": 52.37, "lon": 4.89})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(t, http.MethodPost, "/users/location", bob, map[string]float64{"lat": 95, "lon": 4.89})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/groups/g1/locations", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var locations struct {
		Friends []struct {
			ID       string     `json:"id"`
			Location [2]float64 `json:"location"`
		} `json:"friends"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &locations))
	require.Len(t, locations.Friends, 2)
	assert.Equal(t, [2]float64{52.37, 4.89}, locations.Friends[1].Location)
	assert.NotContains(t, string(env.Data), "access_token")

	rec, _ = s.do(t, http.MethodGet, "/groups/g1/nearby?radius=abc", alice, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, env = s.do(t, http.MethodGet, "/groups/g1/nearby", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"radius":3`)
}

func TestInviteFlow(t *testing.T) {
	s := newTestServer(t, 0)
	_, alice := s.register(t, "alice@example.com")
	rec, _ := s.do(t, http.MethodPost, "/groups", alice, map[string]string{"group_id": "g1", "name": "Friends"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodPost, "/groups/g1/add", alice, map[string]string{"email": "new@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, s.mailer.links, 1)
	link, err := url.Parse(s.mailer.links[0])
	require.NoError(t, err)
	token := strings.TrimPrefix(link.Path, "/confirm/")

	rec, _ = s.do(t, http.MethodGet, link.Path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `action="/activate/`+token+`"`)
	assert.Contains(t, rec.Body.String(), "new@example.com")

	activate := func(pw string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/activate/"+token, strings.NewReader(url.Values{"password": {pw}}.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}
	rec = activate("secret1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = activate("secret1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "InviteAlreadyUsed")

	rec, env := s.do(t, http.MethodGet, link.Path, "", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "InviteAlreadyUsed", env.Error.Name)

	rec, _ = s.do(t, http.MethodPost, "/users/login", "", map[string]string{"email": "new@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(t, http.MethodGet, "/confirm/unknown", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoomsAndBeacons(t *testing.T) {
	s := newTestServer(t, 0)
	_, token := s.register(t, "alice@example.com")

	rec, _ := s.do(t, http.MethodPost, "/rooms", token, map[string]any{
		"id": "r1", "name": "Office", "size": map[string]int{"width": 10, "height": 5, "floors": 1},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env := s.do(t, http.MethodPost, "/beacons", token, map[string]any{"id": "b1", "room_id": "r1", "name": "Door"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Message, "location is required")

	rec, _ = s.do(t, http.MethodPost, "/beacons", token, map[string]any{
		"id": "b1", "room_id": "r1", "name": "Door", "location": map[string]float64{"x": 1, "y": 2, "z": 0},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env = s.do(t, http.MethodGet, "/rooms/r1/beacons", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var beacons []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &beacons))
	require.Len(t, beacons, 1)
	assert.Equal(t, "Door", beacons[0]["name"])
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, 2)
	body := map[string]string{"email": "alice@example.com", "password": "nope"}

	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodPost, "/users/login", "", body)
		assert.NotEqual(t, http.StatusTooManyRequests, rec.Code)
	}
	rec, env := s.do(t, http.MethodPost, "/users/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "TooManyRequests", env.Error.Name)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, 0)
	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/groups", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
		rec := httptest.NewRecorder()
		s.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("http://localhost:3000")
	assert.Contains(t, []int{http.StatusOK, http.StatusNoContent}, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	rec = preflight("https://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthzAndMetrics(t *testing.T) {
	s := newTestServer(t, 0)

	rec, _ := s.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}
