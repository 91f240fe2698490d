package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"settings-portal/api"
	"settings-portal/feed"
	"settings-portal/settings"
)

const (
	testTimeout  = 2 * time.Second
	pollInterval = 5 * time.Millisecond
)

type wsMsg struct {
	Type     string            `json:"type"`
	Label    string            `json:"label,omitempty"`
	Value    string            `json:"value,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
}

func newWSTestServer(t *testing.T) (*httptest.Server, *settings.Store, *feed.Hub) {
	t.Helper()
	store := newTestStore(t)
	hub := feed.NewHub()
	api.PublishChanges(store, hub)
	srv := httptest.NewServer(api.RegisterRoutes(store, hub, api.Options{}))
	t.Cleanup(srv.Close)
	return srv, store, hub
}

func dialWS(t *testing.T, srv *httptest.Server, path string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	return websocket.DefaultDialer.Dial(wsURL, nil)
}

func TestWSSnapshot(t *testing.T) {
	srv, store, _ := newWSTestServer(t)

	conn, _, err := dialWS(t, srv, "/api/settings/ws")
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(testTimeout))
	var msg wsMsg
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg.Type)
	assert.Len(t, msg.Settings, len(settings.Labels))
	assert.Equal(t, store.Get(settings.MQTTBrokerPort), msg.Settings[settings.MQTTBrokerPort])
}

func TestWSChangeFeed(t *testing.T) {
	srv, store, hub := newWSTestServer(t)

	conn, _, err := dialWS(t, srv, "/api/settings/ws")
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(testTimeout))
	var snap wsMsg
	require.NoError(t, conn.ReadJSON(&snap))
	require.Eventually(t, func() bool { return hub.Len() == 1 }, testTimeout, pollInterval)

	require.NoError(t, store.Set(settings.MQTTBrokerHost, "broker.lan"))

	var msg wsMsg
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "changed", msg.Type)
	assert.Equal(t, settings.MQTTBrokerHost, msg.Label)
	assert.Equal(t, "broker.lan", msg.Value)
}

func TestWSUnsubscribesOnDisconnect(t *testing.T) {
	srv, _, hub := newWSTestServer(t)

	conn, _, err := dialWS(t, srv, "/api/settings/ws")
	require.NoError(t, err)
	conn.SetReadDeadline(time.Now().Add(testTimeout))
	var snap wsMsg
	require.NoError(t, conn.ReadJSON(&snap))
	require.Eventually(t, func() bool { return hub.Len() == 1 }, testTimeout, pollInterval)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, testTimeout, pollInterval)
}

func TestWSDisabledWithoutHub(t *testing.T) {
	store := newTestStore(t)
	srv := httptest.NewServer(api.RegisterRoutes(store, nil, api.Options{}))
	defer srv.Close()

	_, resp, err := dialWS(t, srv, "/api/settings/ws")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
