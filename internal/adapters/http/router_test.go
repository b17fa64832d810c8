package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/dkeye/roomrelay/internal/app"
	"github.com/dkeye/roomrelay/internal/config"
	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/dkeye/roomrelay/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:   "test",
		Port:   8080,
		Secret: "test-secret",
		WS: config.WSConfig{
			ReadLimit:  4096,
			PingPeriod: time.Second,
			PongWait:   2 * time.Second,
			WriteWait:  time.Second,
			SendBuffer: 8,
		},
		RateLimit: config.RateLimitConfig{ChatLimit: 10, ChatInterval: time.Second},
	}
}

func newRouter(t *testing.T, opts app.Options) (*gin.Engine, *app.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	orch := app.New(opts)
	return SetupRouter(context.Background(), testConfig(), orch), orch
}

func do(r *gin.Engine, method, target string, cookies ...*stdhttp.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)

func TestCreateRoom(t *testing.T) {
	r, orch := newRouter(t, app.Options{})

	w := do(r, stdhttp.MethodPost, "/api/rooms")
	require.Equal(t, stdhttp.StatusCreated, w.Code)

	var body struct {
		RoomID string `json:"roomId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Regexp(t, codePattern, body.RoomID)
	assert.True(t, orch.Rooms.Exists(domain.RoomCode(body.RoomID)))

	// The session remembers the room for the same browser.
	cookies := w.Result().Cookies()
	w = do(r, stdhttp.MethodGet, "/api/session", cookies...)
	require.Equal(t, stdhttp.StatusOK, w.Code)
	var sess struct {
		ClientToken string `json:"clientToken"`
		LastRoom    string `json:"lastRoom"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, body.RoomID, sess.LastRoom)
	assert.NotEmpty(t, sess.ClientToken)
}

func TestGetRoom(t *testing.T) {
	r, orch := newRouter(t, app.Options{})

	w := do(r, stdhttp.MethodGet, "/api/rooms/NOPE")
	assert.Equal(t, stdhttp.StatusNotFound, w.Code)

	require.NoError(t, orch.CreateRoom("AB12", "tok"))
	w = do(r, stdhttp.MethodGet, "/api/rooms/AB12")
	require.Equal(t, stdhttp.StatusOK, w.Code)

	var s app.RoomSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, domain.RoomCode("AB12"), s.Code)
	assert.Zero(t, s.MemberCount)
	assert.Empty(t, s.Members)
	assert.Nil(t, s.Game)
}

func TestListRooms(t *testing.T) {
	r, orch := newRouter(t, app.Options{})
	require.NoError(t, orch.CreateRoom("AB12", ""))
	require.NoError(t, orch.CreateRoom("ZZ99", ""))

	w := do(r, stdhttp.MethodGet, "/api/rooms")
	require.Equal(t, stdhttp.StatusOK, w.Code)
	var body struct {
		Rooms []app.RoomSummary `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Rooms, 2)
}

func TestRoomMessages(t *testing.T) {
	mem := store.NewMemory(0)
	require.NoError(t, mem.AppendMessage(context.Background(), "AB12", json.RawMessage(`{"message":"one"}`)))
	require.NoError(t, mem.AppendMessage(context.Background(), "AB12", json.RawMessage(`{"message":"two"}`)))
	r, _ := newRouter(t, app.Options{History: mem, HistoryLimit: 50})

	w := do(r, stdhttp.MethodGet, "/api/rooms/AB12/messages?limit=1")
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[{"message":"two"}]}`, w.Body.String())

	w = do(r, stdhttp.MethodGet, "/api/rooms/AB12/messages?limit=abc")
	assert.Equal(t, stdhttp.StatusBadRequest, w.Code)
}

func TestHealthz(t *testing.T) {
	r, _ := newRouter(t, app.Options{})
	w := do(r, stdhttp.MethodGet, "/healthz")
	require.Equal(t, stdhttp.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","connections":0}`, w.Body.String())
}

func TestClientTokenCookie(t *testing.T) {
	r, _ := newRouter(t, app.Options{})

	w := do(r, stdhttp.MethodGet, "/healthz")
	var token string
	for _, c := range w.Result().Cookies() {
		if c.Name == clientTokenCookie {
			token = c.Value
		}
	}
	require.NotEmpty(t, token)

	// An existing token is kept.
	w = do(r, stdhttp.MethodGet, "/api/session", &stdhttp.Cookie{Name: clientTokenCookie, Value: "keep-me"})
	assert.Contains(t, w.Body.String(), `"clientToken":"keep-me"`)
}

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]struct{})
	for range 50 {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 45)
}
