package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SPI/internal/domain/models"
	applogger "SPI/pkg/logger"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	h := NewHub(time.Second, 4, applogger.Nop())
	e := echo.New()
	e.GET("/ws", h.ServeWS)
	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	return h, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.Clients() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	h, url := startHub(t)
	all := dial(t, url)
	onlyB := dial(t, url+"?sku=B-2")
	waitClients(t, h, 2)

	h.Broadcast(&models.Recommendation{ID: "1", SKU: "A-1", RecommendedPrice: 115})
	h.Broadcast(&models.Recommendation{ID: "2", SKU: "B-2", RecommendedPrice: 60})

	var got models.Recommendation
	require.NoError(t, all.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, "1", got.ID)
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, "2", got.ID)

	require.NoError(t, onlyB.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, onlyB.ReadJSON(&got))
	assert.Equal(t, "2", got.ID)
	assert.Equal(t, 60.0, got.RecommendedPrice)
}

func TestHubForgetsClosedSubscribers(t *testing.T) {
	h, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, h, 1)

	require.NoError(t, conn.Close())
	waitClients(t, h, 0)
}

func TestHubCloseDisconnects(t *testing.T) {
	h, url := startHub(t)
	conn := dial(t, url)
	waitClients(t, h, 1)

	require.NoError(t, h.Close(context.Background()))
	assert.Equal(t, 0, h.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}
