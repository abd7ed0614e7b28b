package websocket_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/mautops/procurement-gin/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, hub *websocket.Hub) *httptest.Server {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	resolve := func(c *gin.Context) (string, error) {
		return c.Query("user"), nil
	}
	router.GET("/ws/badges", websocket.WebSocketHandler(hub, websocket.NewUpgrader([]string{"*"}), resolve, nil))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *gorillaWS.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/badges?user=" + user
	conn, _, err := gorillaWS.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()
	srv := newTestServer(t, hub)

	a := dial(t, srv, "u1")
	b := dial(t, srv, "u2")
	require.Eventually(t, func() bool { return hub.GetClientCount() == 2 }, time.Second, 10*time.Millisecond)

	assert.True(t, hub.Broadcast([]byte(`{"type":"badge_counts_changed"}`)))
	for _, conn := range []*gorillaWS.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(msg), "badge_counts_changed")
	}

	hub.BroadcastToUser("u2", []byte("only-u2"))
	require.NoError(t, b.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "only-u2", string(msg))

	// 客户端断开后注销
	a.Close()
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_RequiresUser(t *testing.T) {
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()
	srv := newTestServer(t, hub)

	resp, err := http.Get(srv.URL + "/ws/badges")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNewUpgrader_CheckOrigin(t *testing.T) {
	up := websocket.NewUpgrader([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ws/badges", nil)
	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, up.CheckOrigin(req))
}
