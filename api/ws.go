package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"settings-portal/feed"
	"settings-portal/settings"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsMessage struct {
	Type     string            `json:"type"`
	Label    string            `json:"label,omitempty"`
	Value    string            `json:"value,omitempty"`
	Settings map[string]string `json:"settings,omitempty"`
}

// handleWS streams a snapshot of all settings followed by one "changed"
// message per saved setting.
func (h *handler) handleWS(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		http.Error(w, "live feed disabled", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WS upgrade error")
		return
	}
	defer conn.Close()

	// gorilla/websocket forbids concurrent writes.
	var writeMu sync.Mutex
	writeMsg := func(msg wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	sub := h.hub.Subscribe()
	defer h.hub.Unsubscribe(sub.ID) //nolint:errcheck

	snapshot := make(map[string]string, h.store.Len())
	for _, s := range h.store.Settings() {
		snapshot[s.Label] = s.Value
	}
	if err := writeMsg(wsMessage{Type: "snapshot", Settings: snapshot}); err != nil {
		log.WithError(err).Warn("WS snapshot error")
		return
	}

	// Pump hub events until the subscription closes or a write fails. Either
	// way the connection is closed so the read loop below returns.
	go func() {
		defer conn.Close()
		for ev := range sub.Events() {
			if err := writeMsg(wsMessage{Type: ev.Type, Label: ev.Label, Value: ev.Value}); err != nil {
				return
			}
		}
	}()

	// The client sends nothing useful; reading only detects the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// PublishChanges forwards every saved setting to hub as a "changed" event.
func PublishChanges(store *settings.Store, hub *feed.Hub) {
	store.OnChange(func(s settings.Setting) {
		hub.Publish(feed.Event{Type: "changed", Label: s.Label, Value: s.Value})
	})
}
